package secstore

import (
	"context"

	serrors "github.com/mwantia/secstore/data/errors"
)

// State describes the initialization state of an engine.
type State int

const (
	StateUninitialized State = iota
	// StateInitializing is kept until the first rebuild succeeds.
	StateInitializing
	StateReady
	// StateStale marks a ready engine whose last re-initialization failed.
	// Size and listing answers may not reflect the stored items.
	StateStale
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateStale:
		return "stale"
	default:
		return "unknown"
	}
}

func (e *Engine) State() State {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	return e.state
}

func (e *Engine) setState(state State) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	if e.state != state {
		e.logger.Debug("State changed from %s to %s", e.state, state)
		e.state = state
	}
}

// initialized reports whether the initial rebuild has completed.
func (e *Engine) initialized() bool {
	state := e.State()
	return state == StateReady || state == StateStale
}

// ensureReady performs the initial rebuild if it has not succeeded yet.
// Concurrent callers share a single rebuild attempt and its result. The
// rebuild is not bound to the cancellation of whichever caller started it;
// each caller stops waiting once its own context is done.
// Must be called without holding e.mu.
func (e *Engine) ensureReady(ctx context.Context) error {
	if e.initialized() {
		return nil
	}

	detached := context.WithoutCancel(ctx)
	ch := e.init.DoChan("init", func() (any, error) {
		e.mu.Lock()
		defer e.mu.Unlock()

		return nil, e.initLocked(detached)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return serrors.Classify(ctx.Err())
	}
}

// initLocked runs the initial rebuild. Must be called with e.mu held.
func (e *Engine) initLocked(ctx context.Context) error {
	if e.initialized() {
		return nil
	}

	e.setState(StateInitializing)
	if err := e.tracker.Rebuild(ctx, e.storage); err != nil {
		e.logger.Warn("Initialization failed: %v", err)
		return err
	}

	e.setState(StateReady)
	e.updateTracked()
	return nil
}
