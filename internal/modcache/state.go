package modcache

import (
	"context"

	"github.com/atlanticdynamic/payscript/internal/finitestate"
)

func (c *Cache) GetState() string {
	return c.fsm.GetState()
}

func (c *Cache) GetStateChan(ctx context.Context) <-chan string {
	return c.fsm.GetStateChan(ctx)
}

func (c *Cache) IsRunning() bool {
	return c.fsm.GetState() == finitestate.StatusRunning
}
