package modcache

import (
	"context"
	"fmt"
	"time"

	"github.com/atlanticdynamic/payscript/internal/finitestate"
	"github.com/robbyt/go-supervisor/supervisor"
)

var (
	_ supervisor.Runnable  = (*Cache)(nil)
	_ supervisor.Stateable = (*Cache)(nil)
)

// Minimum sweep interval, so tiny timeouts do not spin.
const minSweepInterval = 10 * time.Millisecond

// String implements the supervisor.Runnable interface
func (c *Cache) String() string {
	return "modcache.Cache"
}

// Run sweeps the cache every timeout interval until ctx or the parent context is canceled.
// Every module is unloaded on exit.
func (c *Cache) Run(ctx context.Context) error {
	c.logger.Debug("Starting module cache", "timeout", c.timeout)

	if err := c.fsm.Transition(finitestate.StatusBooting); err != nil {
		return fmt.Errorf("failed to transition to booting state: %w", err)
	}

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()
	c.runMu.Lock()
	c.runCancel = runCancel
	c.runMu.Unlock()

	if err := c.fsm.Transition(finitestate.StatusRunning); err != nil {
		return fmt.Errorf("failed to transition to running state: %w", err)
	}

	var tick <-chan time.Time
	if c.Enabled() {
		ticker := time.NewTicker(max(c.timeout, minSweepInterval))
		defer ticker.Stop()
		tick = ticker.C
	}

	for running := true; running; {
		select {
		case <-c.parentCtx.Done():
			c.logger.Debug("Parent context canceled")
			running = false
		case <-runCtx.Done():
			c.logger.Debug("Run context canceled")
			running = false
		case <-tick:
			c.Sweep()
		}
	}

	c.logger.Info("Module cache shutting down")

	if c.fsm.GetState() != finitestate.StatusStopping {
		finitestate.TransitionOrLog(c.fsm, c.logger, finitestate.StatusStopping)
	}
	c.ClearAll()

	if err := c.fsm.Transition(finitestate.StatusStopped); err != nil {
		return fmt.Errorf("failed to transition to stopped state: %w", err)
	}
	return nil
}

// Stop implements the supervisor.Runnable interface
func (c *Cache) Stop() {
	c.logger.Debug("Stopping module cache")
	finitestate.TransitionOrLog(c.fsm, c.logger, finitestate.StatusStopping)

	c.runMu.Lock()
	cancel := c.runCancel
	c.runMu.Unlock()
	if cancel != nil {
		cancel()
	}
}
