// Package realtime maintains the push channel that keeps every observer of
// an emergency alert in sync. A process owns exactly one channel - event
// delivery is multiplexed over a single subscription identity - so the
// channel is constructed once at startup and injected wherever it's needed.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/aegisalert/aegis/client/session"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	EMERGENCY_ALERT_EVENT  = "emergency-alert"
	TRIGGER_UPDATED_EVENT  = "trigger-updated"
	TRIGGER_ACCEPTED_EVENT = "trigger-accepted"
)

const (
	respondersTopic = "alerts/responders"
	userTopicPrefix = "alerts/user/"
)

var (
	MaxReconnectAttempts = 5
	ReconnectDelay       = 1 * time.Second
)

// Handler consumes one inbound event payload. Payloads are hints, not
// authoritative state - consumers re-fetch over REST.
type Handler func(payload []byte)

// Identity is the role-scoped join identity: responders share one broadcast
// group, everyone else gets a group keyed by their own user id.
type Identity struct {
	UserID string
	Role   string
}

func (id Identity) topic() string {
	if id.Role == session.RESPONDER_ROLE {
		return respondersTopic
	}

	return userTopicPrefix + id.UserID
}

// envelope is the wire form of every event on the channel.
type envelope struct {
	Event     string          `json:"event"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Transport is the raw bidirectional pipe under the channel. The MQTT
// implementation is the production one; tests substitute an in-memory fake.
type Transport interface {
	Dial() error
	Close()
	IsConnected() bool
	Subscribe(topic string, fn func(topic string, payload []byte)) error
	Publish(topic string, payload []byte) error
	OnConnectionLost(fn func(err error))
}

// Channel is the client's view of the push channel.
type Channel interface {
	Connect(ctx context.Context) error
	Disconnect()
	Join(identity Identity) error
	On(event string, handler Handler)
	Off(events ...string)
	Publish(event string, payload interface{}) error
}

type PushChannel struct {
	transport Transport
	logg      *zap.SugaredLogger

	mu       sync.Mutex
	identity *Identity
	handlers map[string]Handler
	closed   bool
}

func NewPushChannel(transport Transport, logg *zap.SugaredLogger) *PushChannel {
	channel := &PushChannel{
		transport: transport,
		logg:      logg,
		handlers:  make(map[string]Handler),
	}
	transport.OnConnectionLost(channel.reconnect)

	return channel
}

// Connect dials the transport. Calling it while already connected is a no-op.
func (c *PushChannel) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.transport.IsConnected() {
		return nil
	}

	if err := c.dialAndJoin(ctx); err != nil {
		return errors.Wrap(err, "realtime connect")
	}

	c.closed = false
	return nil
}

// Disconnect tears the channel down. Safe to call when already disconnected.
func (c *PushChannel) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.transport.IsConnected() {
		c.transport.Close()
	}
}

// Join records the identity for this session and, when connected, subscribes
// its group immediately. The identity is re-applied on every reconnect -
// group membership is not preserved server-side, and a responder who misses
// re-join silently stops receiving alerts.
func (c *PushChannel) Join(identity Identity) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.identity = &identity
	if !c.transport.IsConnected() {
		return nil
	}

	return c.subscribeIdentity()
}

// On installs the handler for an event name, replacing any previous one.
func (c *PushChannel) On(event string, handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.handlers[event] = handler
}

// Off removes handlers for the given event names.
func (c *PushChannel) Off(events ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, event := range events {
		delete(c.handlers, event)
	}
}

// Publish emits an event to the responders group. The only client-produced
// event today is the emergency-alert echo after a successful trigger create,
// which shaves latency off the backend's own broadcast; receivers treat it
// as a hint and re-fetch.
func (c *PushChannel) Publish(event string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	body, err := json.Marshal(envelope{
		Event:     event,
		Timestamp: time.Now().UnixMilli(),
		Payload:   raw,
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.transport.IsConnected() {
		return errors.New("realtime channel is not connected")
	}

	return c.transport.Publish(respondersTopic, body)
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func (c *PushChannel) dialAndJoin(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() { errChan <- c.transport.Dial() }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errChan:
		if err != nil {
			return err
		}
	}

	return c.subscribeIdentity()
}

// subscribeIdentity must run with c.mu held.
func (c *PushChannel) subscribeIdentity() error {
	if c.identity == nil {
		return nil
	}

	return c.transport.Subscribe(c.identity.topic(), c.dispatch)
}

func (c *PushChannel) dispatch(topic string, payload []byte) {
	event := envelope{}
	if err := json.Unmarshal(payload, &event); err != nil {
		c.logg.Warnf("dropping malformed event on %v: %v", topic, err)
		return
	}

	c.mu.Lock()
	handler := c.handlers[event.Event]
	c.mu.Unlock()

	if handler != nil {
		handler(event.Payload)
	}
}

// reconnect retries a bounded number of times with a fixed delay, re-joining
// the identity group before any further events are dispatched. After the
// attempts are exhausted it gives up without surfacing an error to callers.
func (c *PushChannel) reconnect(lostErr error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.logg.Warnf("realtime connection lost: %v", lostErr)

	for attempt := 1; attempt <= MaxReconnectAttempts; attempt++ {
		time.Sleep(ReconnectDelay)

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}

		err := c.dialAndJoin(context.Background())
		c.mu.Unlock()

		if err == nil {
			c.logg.Infof("realtime connection restored after %v attempt(s)", attempt)
			return
		}

		c.logg.Warnf("reconnect attempt %v/%v failed: %v", attempt, MaxReconnectAttempts, err)
	}

	c.logg.Warnf("giving up on realtime reconnection after %v attempts", MaxReconnectAttempts)
}
