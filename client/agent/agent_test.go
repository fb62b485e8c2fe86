package agent

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aegisalert/aegis/client/auth"
	"github.com/aegisalert/aegis/client/fanout"
	"github.com/aegisalert/aegis/client/logger"
	"github.com/aegisalert/aegis/client/realtime"
	"github.com/aegisalert/aegis/client/realtime/realtimetest"
	"github.com/aegisalert/aegis/client/restapi"
	"github.com/aegisalert/aegis/client/restapi/restapitest"
	"github.com/aegisalert/aegis/client/session"
	"github.com/aegisalert/aegis/shared"
	"github.com/stretchr/testify/assert"
)

// syncBuffer guards the output buffer against the resync job's goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

type fixture struct {
	server  *restapitest.Server
	channel *realtimetest.FakeChannel
	out     *syncBuffer
	agent   *Agent
}

// newFixture seeds a user with a saved session, so Run comes up authenticated.
func newFixture(t *testing.T, role string) *fixture {
	server := restapitest.NewServer()
	t.Cleanup(server.Close)

	user := server.SeedUser("Rachel Zane", "rachel@example.com", "pw-123456", role)

	store, err := session.NewStore(t.TempDir())
	assert.Nil(t, err)
	err = store.Save(&session.Session{
		UserID:      user.ID,
		Role:        role,
		DisplayName: user.Name,
		Token:       server.TokenFor(user.ID),
	})
	assert.Nil(t, err)
	store.ClearMemory()

	channel := realtimetest.NewFakeChannel()
	api := restapi.NewClient(server.URL, store)
	flow := auth.NewFlow(store, api, channel, logger.NewNopLogger())
	fan := fanout.NewFanout(api, channel, logger.NewNopLogger())
	out := &syncBuffer{}

	config := shared.AgentConfig{ResyncSchedule: "30ms"}
	return &fixture{
		server:  server,
		channel: channel,
		out:     out,
		agent:   New(flow, fan, channel, config, out, logger.NewNopLogger()),
	}
}

func TestRunWithoutSession(t *testing.T) {
	server := restapitest.NewServer()
	defer server.Close()

	store, err := session.NewStore(t.TempDir())
	assert.Nil(t, err)

	channel := realtimetest.NewFakeChannel()
	api := restapi.NewClient(server.URL, store)
	flow := auth.NewFlow(store, api, channel, logger.NewNopLogger())
	fan := fanout.NewFanout(api, channel, logger.NewNopLogger())

	agent := New(flow, fan, channel, shared.AgentConfig{}, &syncBuffer{}, logger.NewNopLogger())
	err = agent.Run(context.Background())
	assert.NotNil(t, err, "the agent never prompts for credentials")
}

func TestRunAsResponder(t *testing.T) {
	f := newFixture(t, session.RESPONDER_ROLE)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.agent.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	assert.True(t, f.channel.Connected)
	assert.Len(t, f.channel.Joins, 1)
	assert.Equal(t, session.RESPONDER_ROLE, f.channel.Joins[0].Role)
	assert.Equal(t, 1, f.channel.HandlerCount(realtime.EMERGENCY_ALERT_EVENT))

	// the initial paint plus the resync ticks land on the terminal
	assert.Contains(t, f.out.String(), "No active alerts")

	// an inbound alert prints a notice immediately
	user := f.server.SeedUser("Harvey Specter", "harvey@example.com", "pw-123456", "enduser")
	f.channel.Emit(realtime.EMERGENCY_ALERT_EVENT, restapi.Trigger{
		ID:          "t-99",
		TriggeredBy: *user,
		Priority:    restapi.HIGH_PRIORITY,
		Location:    restapi.Location{Address: "100 Queen St W, Toronto"},
	})
	assert.Contains(t, f.out.String(), "Harvey Specter")
	assert.Contains(t, f.out.String(), "100 Queen St W, Toronto")

	cancel()
	assert.Nil(t, <-done)

	// clean shutdown: channel down, handlers gone
	assert.False(t, f.channel.Connected)
	assert.Equal(t, 0, f.channel.HandlerCount(realtime.EMERGENCY_ALERT_EVENT))
}

func TestRunAsEndUser(t *testing.T) {
	f := newFixture(t, session.ENDUSER_ROLE)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.agent.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	assert.Len(t, f.channel.Joins, 1)
	assert.Equal(t, 0, f.channel.HandlerCount(realtime.EMERGENCY_ALERT_EVENT), "end users don't watch the responder feed")
	assert.Equal(t, 1, f.channel.HandlerCount(realtime.TRIGGER_ACCEPTED_EVENT))
	assert.Contains(t, f.out.String(), "You have no alerts")

	cancel()
	assert.Nil(t, <-done)
}
