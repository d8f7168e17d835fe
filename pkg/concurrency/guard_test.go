package concurrency

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrencyGuard_RejectsWhileBusy(t *testing.T) {
	g := NewConcurrencyGuard()

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- g.Execute(func() error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	assert.True(t, g.IsBusy())

	err := g.Execute(func() error {
		t.Error("second task must not run")
		return nil
	})
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, g.IsBusy())
}

func TestConcurrencyGuard_PropagatesTaskError(t *testing.T) {
	g := NewConcurrencyGuard()
	boom := errors.New("boom")

	err := g.Execute(func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, g.IsBusy(), "guard must be released after a failing task")
}

func TestConcurrencyGuard_ExecuteWithContext(t *testing.T) {
	g := NewConcurrencyGuard()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := g.ExecuteWithContext(ctx, func(context.Context) error {
		t.Error("task must not run with a cancelled context")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	ran := false
	err = g.ExecuteWithContext(context.Background(), func(context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
}
