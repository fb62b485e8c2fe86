package restapi

import (
	"fmt"
	"time"

	"github.com/aegisalert/aegis/client/lifecycle"
)

const (
	LOW_PRIORITY      = "low"
	MEDIUM_PRIORITY   = "medium"
	HIGH_PRIORITY     = "high"
	CRITICAL_PRIORITY = "critical"
)

const (
	MANUAL_TRIGGER    = "manual"
	AUTOMATIC_TRIGGER = "automatic"
)

const (
	ACTIVE_DEVICE      = "active"
	INACTIVE_DEVICE    = "inactive"
	MAINTENANCE_DEVICE = "maintenance"
)

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

type Device struct {
	ID             string    `json:"id"`
	DeviceID       string    `json:"device_id"`
	Type           string    `json:"type"`
	Status         string    `json:"status"`
	BatteryLevel   int       `json:"battery_level"`
	AssignedUserID string    `json:"assigned_user_id,omitempty"`
	AssignedTo     *User     `json:"assigned_to,omitempty"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
	UpdatedAt      time.Time `json:"updated_at,omitempty"`
}

// Location is carried on the wire as a GeoJSON-style point, with
// coordinates ordered [longitude, latitude].
type Location struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates" validate:"lnglat"`
	Address     string    `json:"address,omitempty"`
}

func (l Location) Lng() float64 {
	if len(l.Coordinates) < 2 {
		return 0
	}
	return l.Coordinates[0]
}

func (l Location) Lat() float64 {
	if len(l.Coordinates) < 2 {
		return 0
	}
	return l.Coordinates[1]
}

// DisplayAddress falls back to a plain coordinate string when reverse
// geocoding never produced an address.
func (l Location) DisplayAddress() string {
	if l.Address != "" {
		return l.Address
	}

	return fmt.Sprintf("%.4f, %.4f", l.Lat(), l.Lng())
}

type Trigger struct {
	ID                 string    `json:"id"`
	TriggeredBy        User      `json:"triggered_by"`
	DeviceID           string    `json:"device_id,omitempty"`
	Location           Location  `json:"location"`
	Description        string    `json:"description,omitempty"`
	Priority           string    `json:"priority"`
	TriggerType        string    `json:"trigger_type"`
	BatteryLevel       *int      `json:"battery_level,omitempty"`
	Status             string    `json:"status"`
	RespondersNotified []string  `json:"responders_notified"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type Response struct {
	ID          string     `json:"id"`
	TriggerID   string     `json:"trigger_id"`
	ResponderID string     `json:"responder_id"`
	Responder   *User      `json:"responder,omitempty"`
	Status      string     `json:"status"`
	Notes       string     `json:"notes,omitempty"`
	AcceptedAt  time.Time  `json:"accepted_at"`
	ArrivedAt   *time.Time `json:"arrived_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// normalize maps legacy status spellings from older backend rows onto the
// canonical vocabulary, so the rest of the client only ever sees one.
func (t *Trigger) normalize() {
	t.Status = lifecycle.Normalize(t.Status)
}

func (r *Response) normalize() {
	r.Status = lifecycle.Normalize(r.Status)
}

// ---------------------------------------------------------------------------------//
// Request payloads
// --------------------------------------------------------------------------------//

type LoginParams struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterParams struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Phone    string `json:"phone" validate:"omitempty,e164"`
	Role     string `json:"role" validate:"required,oneof=admin responder enduser"`
}

type CreateTriggerParams struct {
	DeviceID     string   `json:"device_id" validate:"required"`
	Location     Location `json:"location" validate:"required"`
	Description  string   `json:"description"`
	Priority     string   `json:"priority" validate:"required,oneof=low medium high critical"`
	TriggerType  string   `json:"trigger_type" validate:"required,oneof=manual automatic"`
	BatteryLevel *int     `json:"battery_level,omitempty" validate:"omitempty,min=0,max=100"`
}

type CreateResponseParams struct {
	TriggerID string `json:"trigger_id" validate:"required"`
	Status    string `json:"status" validate:"required,oneof=accepted"`
	Notes     string `json:"notes"`
}

type UpdateResponseStatusParams struct {
	Status string `json:"status" validate:"required"`
	Notes  string `json:"notes"`
}

type CreateDeviceParams struct {
	DeviceID     string `json:"device_id" validate:"required"`
	Type         string `json:"type" validate:"required,oneof=button wearable mobile sensor"`
	Status       string `json:"status" validate:"required,oneof=active inactive maintenance"`
	BatteryLevel int    `json:"battery_level" validate:"min=0,max=100"`
}

// ---------------------------------------------------------------------------------//
// Response envelopes
// --------------------------------------------------------------------------------//

type authEnvelope struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type errorEnvelope struct {
	Message string `json:"message"`
}
