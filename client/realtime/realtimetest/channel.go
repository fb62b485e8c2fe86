// Package realtimetest provides an in-memory Channel for tests in packages
// that sit on top of the realtime layer.
package realtimetest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/aegisalert/aegis/client/realtime"
)

type FakeChannel struct {
	mu        sync.Mutex
	Connected bool
	Joins     []realtime.Identity
	Published []string
	handlers  map[string]realtime.Handler
	DialErr   error
}

func NewFakeChannel() *FakeChannel {
	return &FakeChannel{handlers: make(map[string]realtime.Handler)}
}

func (c *FakeChannel) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.DialErr != nil {
		return c.DialErr
	}

	c.Connected = true
	return nil
}

func (c *FakeChannel) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Connected = false
}

func (c *FakeChannel) Join(identity realtime.Identity) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Joins = append(c.Joins, identity)
	return nil
}

func (c *FakeChannel) On(event string, handler realtime.Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.handlers[event] = handler
}

func (c *FakeChannel) Off(events ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, event := range events {
		delete(c.handlers, event)
	}
}

func (c *FakeChannel) Publish(event string, payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Published = append(c.Published, event)
	return nil
}

// Emit drives an inbound event into whatever handler is installed.
func (c *FakeChannel) Emit(event string, payload interface{}) {
	raw, _ := json.Marshal(payload)

	c.mu.Lock()
	handler := c.handlers[event]
	c.mu.Unlock()

	if handler != nil {
		handler(raw)
	}
}

// HandlerCount reports how many handlers are installed for an event - used
// to prove that re-subscription does not stack handlers.
func (c *FakeChannel) HandlerCount(event string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.handlers[event]; ok {
		return 1
	}

	return 0
}
