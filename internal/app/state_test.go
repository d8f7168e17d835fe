package app

import (
	"context"
	"testing"
	"time"

	"github.com/rescp17/codedrop/pkg/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateManager_SingleRequest(t *testing.T) {
	m := NewStateManager()
	offer := transfer.Descriptor{Name: "a.txt", Size: 5}

	decisions, err := m.CreateRequest(offer)
	require.NoError(t, err)

	_, err = m.CreateRequest(offer)
	assert.ErrorIs(t, err, ErrRequestExists)

	got, err := m.GetOffer()
	require.NoError(t, err)
	assert.Equal(t, offer, got)

	require.NoError(t, m.SetDecision(Accepted))
	assert.ErrorIs(t, m.SetDecision(Rejected), ErrNoRequest, "second decision is ignored")
	assert.Equal(t, Accepted, <-decisions)

	m.CloseRequest()
	_, err = m.GetOffer()
	assert.ErrorIs(t, err, ErrNoRequest)
}

func TestStateManager_Await(t *testing.T) {
	m := NewStateManager()
	var announced transfer.Descriptor
	announce := func(d transfer.Descriptor) {
		announced = d
		go func() { _ = m.SetDecision(Rejected) }()
	}

	d, err := m.Await(context.Background(), transfer.Descriptor{Name: "b"}, announce)
	require.NoError(t, err)
	assert.Equal(t, Rejected, d)
	assert.Equal(t, "b", announced.Name)

	_, err = m.GetOffer()
	assert.ErrorIs(t, err, ErrNoRequest, "request is cleared after the decision")
}

func TestStateManager_AwaitCancelled(t *testing.T) {
	m := NewStateManager()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	d, err := m.Await(ctx, transfer.Descriptor{Name: "c"}, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, Rejected, d)
	assert.ErrorIs(t, m.SetDecision(Accepted), ErrNoRequest)
}
