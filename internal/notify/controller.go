package notify

import (
	"context"
	"sync"
)

// Controller lets the admin surface start/stop the Telegram bot sender
// and command poller without restarting the whole process.
type Controller struct {
	sender   *Sender
	poller   *CommandPoller
	messages <-chan Message

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

// NewController wraps a Sender/CommandPoller pair.
func NewController(sender *Sender, poller *CommandPoller, messages <-chan Message) *Controller {
	return &Controller{sender: sender, poller: poller, messages: messages}
}

// Start launches the sender and command poller if not already running.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.running = true

	go c.sender.Run(ctx.Done(), c.messages)
	go c.poller.Run(ctx)
}

// Stop cancels the running sender/poller pair.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.cancel()
	c.running = false
}

// Running reports whether the bot is currently active.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
