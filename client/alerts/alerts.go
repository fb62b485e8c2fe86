// Package alerts drives the emergency trigger lifecycle from the client
// side: raising an alert, accepting it as a responder, stepping a response
// through its status chain & cancelling. Transition rules are checked
// locally before any network round trip, so an out-of-order action fails
// fast with the same error the backend would have produced.
package alerts

import (
	"context"
	"fmt"

	"github.com/aegisalert/aegis/client/geo"
	"github.com/aegisalert/aegis/client/lifecycle"
	"github.com/aegisalert/aegis/client/realtime"
	"github.com/aegisalert/aegis/client/restapi"
	"go.uber.org/zap"
)

type Service struct {
	api      *restapi.Client
	channel  realtime.Channel
	resolver *geo.Resolver
	logg     *zap.SugaredLogger
}

func NewService(api *restapi.Client, channel realtime.Channel, resolver *geo.Resolver, logg *zap.SugaredLogger) *Service {
	return &Service{api: api, channel: channel, resolver: resolver, logg: logg}
}

// CreateParams describes a new alert. The location is deliberately absent -
// it is always acquired fresh at trigger time, never supplied by the caller.
type CreateParams struct {
	DeviceID     string
	Description  string
	Priority     string
	TriggerType  string
	BatteryLevel *int
}

// Create raises an emergency alert: pre-flight the device, acquire a fresh
// location fix, then create the trigger. The backend fans the alert out to
// responders; the client additionally publishes an emergency-alert hint on
// the push channel, best-effort.
func (s *Service) Create(ctx context.Context, params CreateParams) (*restapi.Trigger, error) {
	device, err := s.preflightDevice(ctx, params.DeviceID)
	if err != nil {
		return nil, err
	}

	fix, err := s.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	trigger, err := s.api.CreateTrigger(ctx, restapi.CreateTriggerParams{
		DeviceID: device.ID,
		Location: restapi.Location{
			Type:        "Point",
			Coordinates: []float64{fix.Longitude, fix.Latitude},
			Address:     fix.Address,
		},
		Description:  params.Description,
		Priority:     params.Priority,
		TriggerType:  params.TriggerType,
		BatteryLevel: params.BatteryLevel,
	})
	if err != nil {
		return nil, err
	}

	if err := s.channel.Publish(realtime.EMERGENCY_ALERT_EVENT, trigger); err != nil {
		// the REST write already succeeded & the backend notifies
		// responders itself; a dead channel only costs the local echo
		s.logg.Warnf("unable to publish emergency-alert hint: %v", err)
	}

	return trigger, nil
}

// Accept claims an active alert as the calling responder. A duplicate accept
// while a prior response is still open surfaces the backend's conflict.
func (s *Service) Accept(ctx context.Context, triggerID, notes string) (*restapi.Response, error) {
	return s.api.CreateResponse(ctx, restapi.CreateResponseParams{
		TriggerID: triggerID,
		Status:    lifecycle.ACCEPTED_RESPONSE,
		Notes:     notes,
	})
}

// Advance moves a response to its sole legal successor status. A terminal or
// unknown current status fails locally without touching the network.
func (s *Service) Advance(ctx context.Context, response restapi.Response, notes string) (*restapi.Response, error) {
	next, err := lifecycle.NextResponseStatus(response.Status)
	if err != nil {
		return nil, restapi.NewAPIError(restapi.INVALID_TRANSITION_ERROR, err.Error(), 0)
	}

	return s.api.UpdateResponseStatus(ctx, response.ID, restapi.UpdateResponseStatusParams{
		Status: next,
		Notes:  notes,
	})
}

// SetResponseStatus moves a response to an explicit target status, rejecting
// anything but the single next step in the chain.
func (s *Service) SetResponseStatus(ctx context.Context, response restapi.Response, to, notes string) (*restapi.Response, error) {
	if !lifecycle.CanAdvanceResponse(response.Status, to) {
		message := fmt.Sprintf("invalid status transition from %v to %v", response.Status, to)
		return nil, restapi.NewAPIError(restapi.INVALID_TRANSITION_ERROR, message, 0)
	}

	return s.api.UpdateResponseStatus(ctx, response.ID, restapi.UpdateResponseStatusParams{
		Status: lifecycle.Normalize(to),
		Notes:  notes,
	})
}

// Cancel withdraws an alert. Only its owner may cancel, and only while it is
// still cancellable - both rules are checked locally first so the common
// misuse never leaves the process.
func (s *Service) Cancel(ctx context.Context, trigger restapi.Trigger, callerID string) (*restapi.Trigger, error) {
	if trigger.TriggeredBy.ID != callerID {
		return nil, restapi.NewAPIError(restapi.FORBIDDEN_ERROR, "only the user who raised an alert can cancel it", 0)
	}

	if !lifecycle.CanTransitionTrigger(trigger.Status, lifecycle.CANCELLED_TRIGGER) {
		message := fmt.Sprintf("a %v alert can no longer be cancelled", trigger.Status)
		return nil, restapi.NewAPIError(restapi.FORBIDDEN_ERROR, message, 0)
	}

	return s.api.CancelTrigger(ctx, trigger.ID)
}

// Active lists the alerts still awaiting resolution.
func (s *Service) Active(ctx context.Context) ([]restapi.Trigger, error) {
	return s.api.ActiveTriggers(ctx)
}

// History lists every alert visible to the caller.
func (s *Service) History(ctx context.Context) ([]restapi.Trigger, error) {
	return s.api.Triggers(ctx)
}

// Mine lists the alerts raised by the caller.
func (s *Service) Mine(ctx context.Context) ([]restapi.Trigger, error) {
	return s.api.MyTriggers(ctx)
}

// MyResponses lists the caller's response records, newest state included.
func (s *Service) MyResponses(ctx context.Context) ([]restapi.Response, error) {
	return s.api.MyResponses(ctx)
}

// ResponsesFor lists all responses attached to one alert.
func (s *Service) ResponsesFor(ctx context.Context, triggerID string) ([]restapi.Response, error) {
	return s.api.ResponsesForTrigger(ctx, triggerID)
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

// preflightDevice resolves the caller's device record, rejecting a trigger
// from a device the caller doesn't hold or that is out of service before any
// location work happens. The identifier may be the record id or the hardware
// device id.
func (s *Service) preflightDevice(ctx context.Context, deviceID string) (*restapi.Device, error) {
	devices, err := s.api.MyDevices(ctx)
	if err != nil {
		return nil, err
	}

	for i := range devices {
		device := &devices[i]
		if device.ID != deviceID && device.DeviceID != deviceID {
			continue
		}

		if device.Status != restapi.ACTIVE_DEVICE {
			message := fmt.Sprintf("device %v is %v, not active", device.DeviceID, device.Status)
			return nil, restapi.NewAPIError(restapi.VALIDATION_ERROR, message, 0)
		}

		return device, nil
	}

	return nil, restapi.NewAPIError(restapi.VALIDATION_ERROR, "device is not assigned to you", 0)
}
