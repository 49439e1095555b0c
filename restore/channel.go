package restore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/mwantia/secstore/log"
)

// Channel keeps the registered restore handlers and delivers events to them
// sequentially in registration order.
type Channel struct {
	mu       sync.RWMutex
	handlers []registration
	logger   *log.Logger
}

type registration struct {
	ref     HandlerRef
	handler Handler
}

func NewChannel(logger *log.Logger) *Channel {
	if logger == nil {
		logger = log.Discard()
	}

	return &Channel{
		logger: logger,
	}
}

// Register adds h to the end of the delivery list.
func (c *Channel) Register(h Handler) HandlerRef {
	ref := HandlerRef{id: uuid.New()}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.handlers = append(c.handlers, registration{ref: ref, handler: h})
	c.logger.Debug("Registered restore handler %s", ref)

	return ref
}

func (c *Channel) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.handlers)
}

// Fire delivers ev to every handler. A failing or panicking handler is
// logged and does not stop delivery to the remaining ones.
func (c *Channel) Fire(ctx context.Context, ev Event) {
	c.mu.RLock()
	handlers := make([]registration, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.RUnlock()

	c.logger.Info("Delivering restore event %s from '%s' to %d handler(s)", ev.ID, ev.Source, len(handlers))

	for _, reg := range handlers {
		if err := c.invoke(ctx, reg, ev); err != nil {
			c.logger.Warn("Restore handler %s failed: %v", reg.ref, err)
		}
	}
}

func (c *Channel) invoke(ctx context.Context, reg registration, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	return reg.handler(ctx, ev)
}
