package chat

import (
	"context"
	"sync"
)

// CancellationController issues one cancellation token per logical
// send. Beginning a new send invalidates any previous uncompleted
// token; cancelling after completion is a no-op.
type CancellationController struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

// Begin derives a cancellable context for a new send, cancelling any
// token still outstanding from a previous one.
func (c *CancellationController) Begin(ctx context.Context) context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	ctx, c.cancel = context.WithCancel(ctx)
	return ctx
}

// Cancel aborts the in-flight send, if any.
func (c *CancellationController) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Finish releases the token once the send completes.
func (c *CancellationController) Finish() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}
