// Package finitestate wraps go-fsm with the lifecycle states shared by every long-running
// component of the engine (module cache sweeper, admin server).
package finitestate

import (
	"context"
	"log/slog"

	"github.com/robbyt/go-fsm"
)

const (
	StatusNew       = fsm.StatusNew
	StatusBooting   = fsm.StatusBooting
	StatusRunning   = fsm.StatusRunning
	StatusReloading = fsm.StatusReloading
	StatusStopping  = fsm.StatusStopping
	StatusStopped   = fsm.StatusStopped
	StatusError     = fsm.StatusError
	StatusUnknown   = fsm.StatusUnknown
)

// TypicalTransitions is the New -> Booting -> Running -> Stopping -> Stopped lifecycle.
var TypicalTransitions = fsm.TypicalTransitions

// Machine is the subset of the state machine a runnable needs.
type Machine interface {
	// Transition moves to state or fails if the transition is not allowed.
	Transition(state string) error

	// GetState returns the current state.
	GetState() string

	// GetStateChan emits every state change until ctx is canceled.
	GetStateChan(ctx context.Context) <-chan string
}

// New creates a machine in StatusNew using TypicalTransitions.
func New(handler slog.Handler) (Machine, error) {
	machine, err := fsm.New(handler, StatusNew, TypicalTransitions)
	if err != nil {
		return nil, err
	}
	return machine, nil
}

// TransitionOrLog attempts a transition and logs instead of failing.
func TransitionOrLog(m Machine, logger *slog.Logger, state string) {
	if err := m.Transition(state); err != nil {
		logger.Error("Failed to transition state", "target", state, "current", m.GetState(), "error", err)
	}
}
