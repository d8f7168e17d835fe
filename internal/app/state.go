package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/rescp17/codedrop/pkg/transfer"
)

// Decision is the type for user's decision.
type Decision bool

const (
	Accepted Decision = true
	Rejected Decision = false
)

var (
	ErrRequestExists = errors.New("invalid state: request already exists")
	ErrNoRequest     = errors.New("invalid state: no pending request")
)

// RequestState holds one offer waiting for the user.
type RequestState struct {
	Offer        transfer.Descriptor
	DecisionChan chan Decision
}

// StateManager tracks the single offer awaiting a decision in a concurrent-safe manner.
type StateManager struct {
	mu    sync.Mutex
	state *RequestState
}

// NewStateManager creates a new StateManager instance.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// CreateRequest stores the offer and returns the channel its decision arrives on.
func (m *StateManager) CreateRequest(offer transfer.Descriptor) (<-chan Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != nil {
		slog.Warn("Failed to create request", "error", ErrRequestExists)
		return nil, ErrRequestExists
	}
	m.state = &RequestState{
		Offer:        offer,
		DecisionChan: make(chan Decision, 1), // Buffered so SetDecision never blocks
	}
	return m.state.DecisionChan, nil
}

// GetOffer retrieves the currently stored offer.
func (m *StateManager) GetOffer() (transfer.Descriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return transfer.Descriptor{}, ErrNoRequest
	}
	return m.state.Offer, nil
}

// SetDecision records the user's decision. Only the first decision counts.
func (m *StateManager) SetDecision(decision Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil || m.state.DecisionChan == nil {
		return ErrNoRequest
	}
	m.state.DecisionChan <- decision
	close(m.state.DecisionChan)
	m.state.DecisionChan = nil
	return nil
}

// CloseRequest cleans up the state of the current request.
func (m *StateManager) CloseRequest() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = nil
}

// Await registers offer, calls announce once a decision can be accepted,
// and blocks until the user decides or ctx ends.
func (m *StateManager) Await(ctx context.Context, offer transfer.Descriptor, announce func(transfer.Descriptor)) (Decision, error) {
	decisions, err := m.CreateRequest(offer)
	if err != nil {
		return Rejected, err
	}
	defer m.CloseRequest()
	if announce != nil {
		announce(offer)
	}

	select {
	case d := <-decisions:
		return d, nil
	case <-ctx.Done():
		return Rejected, ctx.Err()
	}
}
