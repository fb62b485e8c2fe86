package restapi

import (
	"fmt"

	"github.com/pkg/errors"
)

const (
	AUTH_ERROR               = "auth"
	VALIDATION_ERROR         = "validation"
	CONFLICT_ERROR           = "conflict"
	FORBIDDEN_ERROR          = "forbidden"
	INVALID_TRANSITION_ERROR = "invalid_transition"
	NETWORK_ERROR            = "network"
	NOT_FOUND_ERROR          = "not_found"
	SERVER_ERROR             = "server"
)

// fallbackMessages are shown when the backend omits a 'message' field.
var fallbackMessages = map[string]string{
	AUTH_ERROR:               "email/password is invalid",
	VALIDATION_ERROR:         "request payload is invalid",
	CONFLICT_ERROR:           "you already have an open response for this alert",
	FORBIDDEN_ERROR:          "action is forbidden",
	INVALID_TRANSITION_ERROR: "status change is out of order",
	NETWORK_ERROR:            "unable to reach the alert service",
	NOT_FOUND_ERROR:          "record not found",
	SERVER_ERROR:             "the alert service failed, please try again",
}

// APIError carries the backend's user-displayable message alongside an error
// kind callers can branch on.
type APIError struct {
	Kind       string
	Message    string
	StatusCode int
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%v (%v): %v", e.Kind, e.StatusCode, e.Message)
	}

	return fmt.Sprintf("%v: %v", e.Kind, e.Message)
}

// NewAPIError builds an APIError of the given kind, falling back to a
// generic per-kind message when the backend didn't provide one.
func NewAPIError(kind, message string, statusCode int) *APIError {
	if message == "" {
		message = fallbackMessages[kind]
	}

	return &APIError{Kind: kind, Message: message, StatusCode: statusCode}
}

func errKind(err error) string {
	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}

	return ""
}

func IsAuthError(err error) bool    { return errKind(err) == AUTH_ERROR }
func IsValidation(err error) bool   { return errKind(err) == VALIDATION_ERROR }
func IsConflict(err error) bool     { return errKind(err) == CONFLICT_ERROR }
func IsForbidden(err error) bool    { return errKind(err) == FORBIDDEN_ERROR }
func IsNetworkError(err error) bool { return errKind(err) == NETWORK_ERROR }
func IsNotFound(err error) bool     { return errKind(err) == NOT_FOUND_ERROR }

func IsInvalidTransition(err error) bool {
	return errKind(err) == INVALID_TRANSITION_ERROR
}

// Message extracts the user-displayable message from any error produced by
// this package; other errors are surfaced as-is.
func Message(err error) string {
	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}

	return err.Error()
}
