// Package fanout turns raw push events into refreshed views for whoever is
// watching. Event payloads are treated purely as wake-up hints: every event
// triggers a full re-fetch over REST, so a dropped or duplicated push can
// never leave a listener looking at stale or invented state.
package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aegisalert/aegis/client/realtime"
	"github.com/aegisalert/aegis/client/restapi"
	"github.com/aegisalert/aegis/client/session"
	"go.uber.org/zap"
)

// refetchBudget caps each event-driven REST refresh.
var refetchBudget = 15 * time.Second

// Notice is the human-readable hint carried on a push event, shown
// immediately while the authoritative re-fetch is in flight.
type Notice struct {
	Event   string
	Message string
}

// Listener receives refreshed state. Any callback may be nil.
type Listener struct {
	// OnActiveAlerts receives the full active-alert list (responder view).
	OnActiveAlerts func(triggers []restapi.Trigger)
	// OnMyAlerts receives the caller's own alerts (end-user view).
	OnMyAlerts func(triggers []restapi.Trigger)
	// OnMyResponses receives the responder's own response records.
	OnMyResponses func(responses []restapi.Response)
	// OnNotice receives the immediate hint extracted from the event payload.
	OnNotice func(notice Notice)
}

type Fanout struct {
	api      *restapi.Client
	channel  realtime.Channel
	logg     *zap.SugaredLogger
	role     string
	listener Listener
}

func NewFanout(api *restapi.Client, channel realtime.Channel, logg *zap.SugaredLogger) *Fanout {
	return &Fanout{api: api, channel: channel, logg: logg}
}

// Subscribe wires the role's events to the listener. Subscribing replaces any
// previously installed handlers wholesale, so repeated auth cycles in one
// process never stack duplicate handlers.
func (f *Fanout) Subscribe(role string, listener Listener) {
	f.channel.Off(
		realtime.EMERGENCY_ALERT_EVENT,
		realtime.TRIGGER_UPDATED_EVENT,
		realtime.TRIGGER_ACCEPTED_EVENT,
	)

	f.role = role
	f.listener = listener

	if role == session.RESPONDER_ROLE {
		f.channel.On(realtime.EMERGENCY_ALERT_EVENT, f.onEmergencyAlert)
		f.channel.On(realtime.TRIGGER_UPDATED_EVENT, func(payload []byte) { f.refreshActive() })
		return
	}

	f.channel.On(realtime.TRIGGER_ACCEPTED_EVENT, f.onTriggerAccepted)
	f.channel.On(realtime.TRIGGER_UPDATED_EVENT, func(payload []byte) { f.refreshMine() })
}

// Resync re-fetches the subscribed view without waiting for an event, for
// periodic reconciliation against missed pushes.
func (f *Fanout) Resync() {
	if f.role == session.RESPONDER_ROLE {
		f.refreshActive()
		return
	}

	f.refreshMine()
}

// Close deregisters every handler this fanout installed.
func (f *Fanout) Close() {
	f.channel.Off(
		realtime.EMERGENCY_ALERT_EVENT,
		realtime.TRIGGER_UPDATED_EVENT,
		realtime.TRIGGER_ACCEPTED_EVENT,
	)
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func (f *Fanout) onEmergencyAlert(payload []byte) {
	trigger := restapi.Trigger{}
	if err := json.Unmarshal(payload, &trigger); err == nil && trigger.ID != "" {
		f.notify(realtime.EMERGENCY_ALERT_EVENT, fmt.Sprintf(
			"emergency alert from %v at %v (%v priority)",
			trigger.TriggeredBy.Name, trigger.Location.DisplayAddress(), trigger.Priority))
	}

	f.refreshActive()
}

func (f *Fanout) onTriggerAccepted(payload []byte) {
	accepted := struct {
		Responder restapi.User `json:"responder"`
	}{}
	if err := json.Unmarshal(payload, &accepted); err == nil && accepted.Responder.Name != "" {
		f.notify(realtime.TRIGGER_ACCEPTED_EVENT, fmt.Sprintf(
			"%v accepted your alert and is on the way", accepted.Responder.Name))
	}

	f.refreshMine()
}

func (f *Fanout) refreshActive() {
	ctx, cancel := context.WithTimeout(context.Background(), refetchBudget)
	defer cancel()

	if f.listener.OnActiveAlerts != nil {
		triggers, err := f.api.ActiveTriggers(ctx)
		if err != nil {
			f.logg.Warnf("unable to refresh active alerts: %v", err)
			return
		}

		f.listener.OnActiveAlerts(triggers)
	}

	if f.listener.OnMyResponses != nil {
		responses, err := f.api.MyResponses(ctx)
		if err != nil {
			f.logg.Warnf("unable to refresh responses: %v", err)
			return
		}

		f.listener.OnMyResponses(responses)
	}
}

func (f *Fanout) refreshMine() {
	if f.listener.OnMyAlerts == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), refetchBudget)
	defer cancel()

	triggers, err := f.api.MyTriggers(ctx)
	if err != nil {
		f.logg.Warnf("unable to refresh alerts: %v", err)
		return
	}

	f.listener.OnMyAlerts(triggers)
}

func (f *Fanout) notify(event, message string) {
	if f.listener.OnNotice != nil {
		f.listener.OnNotice(Notice{Event: event, Message: message})
	}
}
