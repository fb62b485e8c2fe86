package fanout

import (
	"context"
	"testing"

	"github.com/aegisalert/aegis/client/lifecycle"
	"github.com/aegisalert/aegis/client/logger"
	"github.com/aegisalert/aegis/client/realtime"
	"github.com/aegisalert/aegis/client/realtime/realtimetest"
	"github.com/aegisalert/aegis/client/restapi"
	"github.com/aegisalert/aegis/client/restapi/restapitest"
	"github.com/aegisalert/aegis/client/session"
	"github.com/stretchr/testify/assert"
)

type fixture struct {
	server  *restapitest.Server
	channel *realtimetest.FakeChannel
	user    *restapi.User
	device  *restapi.Device
}

func newFixture(t *testing.T) *fixture {
	server := restapitest.NewServer()
	t.Cleanup(server.Close)

	user := server.SeedUser("Harvey Specter", "harvey@example.com", "pw-123456", "enduser")
	device := server.SeedDevice("AB-100", "button", restapi.ACTIVE_DEVICE, 80, user.ID)

	return &fixture{
		server:  server,
		channel: realtimetest.NewFakeChannel(),
		user:    user,
		device:  device,
	}
}

func (f *fixture) fanoutFor(userID string) *Fanout {
	token := f.server.TokenFor(userID)
	api := restapi.NewClient(f.server.URL, restapi.TokenFunc(func() string { return token }))

	return NewFanout(api, f.channel, logger.NewNopLogger())
}

// raise creates an alert directly through the fake backend's REST surface.
func (f *fixture) raise(t *testing.T) *restapi.Trigger {
	token := f.server.TokenFor(f.user.ID)
	api := restapi.NewClient(f.server.URL, restapi.TokenFunc(func() string { return token }))

	trigger, err := api.CreateTrigger(context.Background(), restapi.CreateTriggerParams{
		DeviceID: f.device.ID,
		Location: restapi.Location{
			Type:        "Point",
			Coordinates: []float64{-79.3832, 43.6532},
		},
		Priority:    restapi.HIGH_PRIORITY,
		TriggerType: restapi.MANUAL_TRIGGER,
	})
	assert.Nil(t, err)

	return trigger
}

func TestResponderRefetchesOnEmergencyAlert(t *testing.T) {
	f := newFixture(t)
	responder := f.server.SeedUser("Rachel Zane", "rachel@example.com", "pw-123456", "responder")
	trigger := f.raise(t)

	refreshed := [][]restapi.Trigger{}
	notices := []Notice{}

	fan := f.fanoutFor(responder.ID)
	fan.Subscribe(session.RESPONDER_ROLE, Listener{
		OnActiveAlerts: func(triggers []restapi.Trigger) { refreshed = append(refreshed, triggers) },
		OnNotice:       func(notice Notice) { notices = append(notices, notice) },
	})

	// the payload is only a hint - the refreshed list comes from REST
	f.channel.Emit(realtime.EMERGENCY_ALERT_EVENT, trigger)

	assert.Len(t, refreshed, 1)
	assert.Len(t, refreshed[0], 1)
	assert.Equal(t, trigger.ID, refreshed[0][0].ID)

	assert.Len(t, notices, 1)
	assert.Contains(t, notices[0].Message, "Harvey Specter")
}

func TestResponderRefetchesOnTriggerUpdated(t *testing.T) {
	f := newFixture(t)
	responder := f.server.SeedUser("Rachel Zane", "rachel@example.com", "pw-123456", "responder")
	f.raise(t)

	refreshed := [][]restapi.Trigger{}
	fan := f.fanoutFor(responder.ID)
	fan.Subscribe(session.RESPONDER_ROLE, Listener{
		OnActiveAlerts: func(triggers []restapi.Trigger) { refreshed = append(refreshed, triggers) },
	})

	// a garbled payload still forces a refresh
	f.channel.Emit(realtime.TRIGGER_UPDATED_EVENT, "not-json")
	assert.Len(t, refreshed, 1)
}

func TestResponderRefetchesOwnResponses(t *testing.T) {
	f := newFixture(t)
	responder := f.server.SeedUser("Rachel Zane", "rachel@example.com", "pw-123456", "responder")
	trigger := f.raise(t)

	token := f.server.TokenFor(responder.ID)
	api := restapi.NewClient(f.server.URL, restapi.TokenFunc(func() string { return token }))
	_, err := api.CreateResponse(context.Background(), restapi.CreateResponseParams{
		TriggerID: trigger.ID,
		Status:    lifecycle.ACCEPTED_RESPONSE,
	})
	assert.Nil(t, err)

	responses := [][]restapi.Response{}
	fan := f.fanoutFor(responder.ID)
	fan.Subscribe(session.RESPONDER_ROLE, Listener{
		OnMyResponses: func(r []restapi.Response) { responses = append(responses, r) },
	})

	f.channel.Emit(realtime.TRIGGER_UPDATED_EVENT, nil)
	assert.Len(t, responses, 1)
	assert.Equal(t, lifecycle.ACCEPTED_RESPONSE, responses[0][0].Status)
}

func TestEndUserRefetchesOnAccepted(t *testing.T) {
	f := newFixture(t)
	responder := f.server.SeedUser("Rachel Zane", "rachel@example.com", "pw-123456", "responder")
	trigger := f.raise(t)

	refreshed := [][]restapi.Trigger{}
	notices := []Notice{}

	fan := f.fanoutFor(f.user.ID)
	fan.Subscribe(session.ENDUSER_ROLE, Listener{
		OnMyAlerts: func(triggers []restapi.Trigger) { refreshed = append(refreshed, triggers) },
		OnNotice:   func(notice Notice) { notices = append(notices, notice) },
	})

	// a responder accepts over REST, then the push hint lands
	token := f.server.TokenFor(responder.ID)
	api := restapi.NewClient(f.server.URL, restapi.TokenFunc(func() string { return token }))
	_, err := api.CreateResponse(context.Background(), restapi.CreateResponseParams{
		TriggerID: trigger.ID,
		Status:    lifecycle.ACCEPTED_RESPONSE,
	})
	assert.Nil(t, err)

	f.channel.Emit(realtime.TRIGGER_ACCEPTED_EVENT, map[string]interface{}{
		"trigger_id": trigger.ID,
		"responder":  responder,
	})

	assert.Len(t, refreshed, 1)
	assert.Equal(t, lifecycle.RESPONDED_TRIGGER, refreshed[0][0].Status, "re-fetch sees the authoritative status")

	assert.Len(t, notices, 1)
	assert.Contains(t, notices[0].Message, "Rachel Zane")
}

func TestSubscribeNeverStacksHandlers(t *testing.T) {
	f := newFixture(t)
	responder := f.server.SeedUser("Rachel Zane", "rachel@example.com", "pw-123456", "responder")
	f.raise(t)

	refreshes := 0
	fan := f.fanoutFor(responder.ID)
	listener := Listener{
		OnActiveAlerts: func(triggers []restapi.Trigger) { refreshes++ },
	}

	// repeated auth cycles re-subscribe; one event must mean one refresh
	fan.Subscribe(session.RESPONDER_ROLE, listener)
	fan.Subscribe(session.RESPONDER_ROLE, listener)
	fan.Subscribe(session.RESPONDER_ROLE, listener)

	assert.Equal(t, 1, f.channel.HandlerCount(realtime.EMERGENCY_ALERT_EVENT))
	assert.Equal(t, 1, f.channel.HandlerCount(realtime.TRIGGER_UPDATED_EVENT))

	f.channel.Emit(realtime.TRIGGER_UPDATED_EVENT, nil)
	assert.Equal(t, 1, refreshes)
}

func TestRoleSwitchReplacesWiring(t *testing.T) {
	f := newFixture(t)
	fan := f.fanoutFor(f.user.ID)

	fan.Subscribe(session.RESPONDER_ROLE, Listener{})
	assert.Equal(t, 1, f.channel.HandlerCount(realtime.EMERGENCY_ALERT_EVENT))

	fan.Subscribe(session.ENDUSER_ROLE, Listener{})
	assert.Equal(t, 0, f.channel.HandlerCount(realtime.EMERGENCY_ALERT_EVENT), "responder wiring is fully removed")
	assert.Equal(t, 1, f.channel.HandlerCount(realtime.TRIGGER_ACCEPTED_EVENT))
}

func TestResync(t *testing.T) {
	f := newFixture(t)
	f.raise(t)

	refreshed := [][]restapi.Trigger{}
	fan := f.fanoutFor(f.user.ID)
	fan.Subscribe(session.ENDUSER_ROLE, Listener{
		OnMyAlerts: func(triggers []restapi.Trigger) { refreshed = append(refreshed, triggers) },
	})

	fan.Resync()
	assert.Len(t, refreshed, 1)
	assert.Len(t, refreshed[0], 1)
}

func TestClose(t *testing.T) {
	f := newFixture(t)
	fan := f.fanoutFor(f.user.ID)
	fan.Subscribe(session.ENDUSER_ROLE, Listener{})

	fan.Close()
	assert.Equal(t, 0, f.channel.HandlerCount(realtime.TRIGGER_ACCEPTED_EVENT))
	assert.Equal(t, 0, f.channel.HandlerCount(realtime.TRIGGER_UPDATED_EVENT))
}
