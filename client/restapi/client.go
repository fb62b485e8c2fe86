// Package restapi is the typed client for the alert platform's REST API.
// List endpoints return {data, count}, mutations return {data} and errors
// return {message} with a non-2xx status; this package maps those envelopes
// onto Go types and the shared error taxonomy.
package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/pkg/errors"
)

const defaultTimeout = 15 * time.Second

var validate *validator.Validate

func init() {
	validate = validator.New()
	if err := RegisterValidators(validate); err != nil {
		panic(err)
	}
}

// RegisterValidators installs the custom payload rules this API needs on top
// of the builtin ones.
func RegisterValidators(validate *validator.Validate) error {
	// GeoJSON-style [lng, lat] pair with both values in range
	return validate.RegisterValidation("lnglat", func(fl validator.FieldLevel) bool {
		pair, ok := fl.Field().Interface().([]float64)
		if !ok || len(pair) != 2 {
			return false
		}

		lng, lat := pair[0], pair[1]
		return lng >= -180 && lng <= 180 && lat >= -90 && lat <= 90
	})
}

// TokenSource supplies the bearer credential for authenticated requests.
// The session store satisfies this via a small adapter in the auth package.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a plain function to a TokenSource.
type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }

type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
}

func NewClient(baseURL string, tokens TokenSource) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		tokens:     tokens,
	}
}

// SetTimeout overrides the default per-request timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.httpClient.Timeout = timeout
}

// ---------------------------------------------------------------------------------//
// Auth
// --------------------------------------------------------------------------------//

type AuthResult struct {
	Token string
	User  User
}

func (c *Client) Login(ctx context.Context, params LoginParams) (*AuthResult, error) {
	if err := validatePayload(params); err != nil {
		return nil, err
	}

	envelope := authEnvelope{}
	if err := c.do(ctx, http.MethodPost, "/auth/login", params, &envelope); err != nil {
		return nil, err
	}

	return &AuthResult{Token: envelope.Token, User: envelope.User}, nil
}

func (c *Client) Register(ctx context.Context, params RegisterParams) (*AuthResult, error) {
	if err := validatePayload(params); err != nil {
		return nil, err
	}

	envelope := authEnvelope{}
	if err := c.do(ctx, http.MethodPost, "/auth/register", params, &envelope); err != nil {
		return nil, err
	}

	return &AuthResult{Token: envelope.Token, User: envelope.User}, nil
}

// ---------------------------------------------------------------------------------//
// Users
// --------------------------------------------------------------------------------//

func (c *Client) Users(ctx context.Context) ([]User, error) {
	users := []User{}
	err := c.getList(ctx, "/users", &users)
	return users, err
}

func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/users/%v", userID), nil, nil)
}

// ---------------------------------------------------------------------------------//
// Devices
// --------------------------------------------------------------------------------//

func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	devices := []Device{}
	err := c.getList(ctx, "/devices", &devices)
	return devices, err
}

func (c *Client) MyDevices(ctx context.Context) ([]Device, error) {
	devices := []Device{}
	err := c.getList(ctx, "/devices/my-devices", &devices)
	return devices, err
}

func (c *Client) CreateDevice(ctx context.Context, params CreateDeviceParams) (*Device, error) {
	if err := validatePayload(params); err != nil {
		return nil, err
	}

	device := Device{}
	if err := c.doData(ctx, http.MethodPost, "/devices", params, &device); err != nil {
		return nil, err
	}

	return &device, nil
}

func (c *Client) AssignDevice(ctx context.Context, deviceID, userID string) error {
	body := map[string]string{"user_id": userID}
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/devices/%v/assign", deviceID), body, nil)
}

func (c *Client) UnassignDevice(ctx context.Context, deviceID string) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/devices/%v/unassign", deviceID), nil, nil)
}

// ---------------------------------------------------------------------------------//
// Triggers
// --------------------------------------------------------------------------------//

func (c *Client) Triggers(ctx context.Context) ([]Trigger, error) {
	return c.triggerList(ctx, "/triggers")
}

func (c *Client) ActiveTriggers(ctx context.Context) ([]Trigger, error) {
	return c.triggerList(ctx, "/triggers/active")
}

func (c *Client) MyTriggers(ctx context.Context) ([]Trigger, error) {
	return c.triggerList(ctx, "/triggers/my-triggers")
}

func (c *Client) CreateTrigger(ctx context.Context, params CreateTriggerParams) (*Trigger, error) {
	if err := validatePayload(params); err != nil {
		return nil, err
	}

	trigger := Trigger{}
	if err := c.doData(ctx, http.MethodPost, "/triggers", params, &trigger); err != nil {
		return nil, err
	}

	trigger.normalize()
	return &trigger, nil
}

func (c *Client) CancelTrigger(ctx context.Context, triggerID string) (*Trigger, error) {
	trigger := Trigger{}
	err := c.doData(ctx, http.MethodPut, fmt.Sprintf("/triggers/%v/cancel", triggerID), nil, &trigger)
	if err != nil {
		return nil, err
	}

	trigger.normalize()
	return &trigger, nil
}

// ---------------------------------------------------------------------------------//
// Responses
// --------------------------------------------------------------------------------//

func (c *Client) CreateResponse(ctx context.Context, params CreateResponseParams) (*Response, error) {
	if err := validatePayload(params); err != nil {
		return nil, err
	}

	response := Response{}
	if err := c.doData(ctx, http.MethodPost, "/responses", params, &response); err != nil {
		return nil, err
	}

	response.normalize()
	return &response, nil
}

func (c *Client) MyResponses(ctx context.Context) ([]Response, error) {
	return c.responseList(ctx, "/responses/my-responses")
}

func (c *Client) ResponsesForTrigger(ctx context.Context, triggerID string) ([]Response, error) {
	return c.responseList(ctx, fmt.Sprintf("/responses/trigger/%v", triggerID))
}

func (c *Client) UpdateResponseStatus(ctx context.Context, responseID string, params UpdateResponseStatusParams) (*Response, error) {
	if err := validatePayload(params); err != nil {
		return nil, err
	}

	response := Response{}
	err := c.doData(ctx, http.MethodPut, fmt.Sprintf("/responses/%v/status", responseID), params, &response)
	if err != nil {
		return nil, err
	}

	response.normalize()
	return &response, nil
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func validatePayload(payload interface{}) error {
	if err := validate.Struct(payload); err != nil {
		return NewAPIError(VALIDATION_ERROR, err.Error(), 0)
	}

	return nil
}

func (c *Client) triggerList(ctx context.Context, path string) ([]Trigger, error) {
	triggers := []Trigger{}
	if err := c.getList(ctx, path, &triggers); err != nil {
		return nil, err
	}

	for i := range triggers {
		triggers[i].normalize()
	}

	return triggers, nil
}

func (c *Client) responseList(ctx context.Context, path string) ([]Response, error) {
	responses := []Response{}
	if err := c.getList(ctx, path, &responses); err != nil {
		return nil, err
	}

	for i := range responses {
		responses[i].normalize()
	}

	return responses, nil
}

// getList fetches a {data, count} envelope into the given slice.
func (c *Client) getList(ctx context.Context, path string, out interface{}) error {
	envelope := struct {
		Data  json.RawMessage `json:"data"`
		Count int             `json:"count"`
	}{}

	if err := c.do(ctx, http.MethodGet, path, nil, &envelope); err != nil {
		return err
	}

	if envelope.Data == nil {
		return nil
	}

	return json.Unmarshal(envelope.Data, out)
}

// doData performs a mutation & decodes the {data} envelope into out.
func (c *Client) doData(ctx context.Context, method, path string, body, out interface{}) error {
	envelope := struct {
		Data json.RawMessage `json:"data"`
	}{}

	if err := c.do(ctx, method, path, body, &envelope); err != nil {
		return err
	}

	if envelope.Data == nil || out == nil {
		return nil
	}

	return json.Unmarshal(envelope.Data, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	reqBody := bytes.NewBuffer(nil)

	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "unable to encode request body")
		}
		reqBody = bytes.NewBuffer(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NewAPIError(NETWORK_ERROR, err.Error(), 0)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return errorFromResponse(resp.StatusCode, resp.Body)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "unable to decode response")
	}

	return nil
}

func errorFromResponse(statusCode int, body io.Reader) error {
	envelope := errorEnvelope{}
	json.NewDecoder(body).Decode(&envelope)

	return NewAPIError(kindForStatus(statusCode, envelope.Message), envelope.Message, statusCode)
}

// kindForStatus maps HTTP status codes onto the error taxonomy. 422 is
// ambiguous between a malformed payload & an out-of-order status change, so
// the backend message is used to break the tie.
func kindForStatus(statusCode int, message string) string {
	switch statusCode {
	case http.StatusUnauthorized:
		return AUTH_ERROR
	case http.StatusForbidden:
		return FORBIDDEN_ERROR
	case http.StatusConflict:
		return CONFLICT_ERROR
	case http.StatusNotFound:
		return NOT_FOUND_ERROR
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		if strings.Contains(strings.ToLower(message), "transition") {
			return INVALID_TRANSITION_ERROR
		}
		return VALIDATION_ERROR
	}

	return SERVER_ERROR
}
