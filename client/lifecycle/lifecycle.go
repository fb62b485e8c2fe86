// Package lifecycle declares the trigger & response status vocabularies and
// their transition tables. Both the client operations and the API test double
// validate against these tables, so there is exactly one source of truth for
// which status moves are legal.
package lifecycle

import "fmt"

const (
	ACTIVE_TRIGGER    = "active"
	RESPONDED_TRIGGER = "responded"
	RESOLVED_TRIGGER  = "resolved"
	CANCELLED_TRIGGER = "cancelled"
)

const (
	ACCEPTED_RESPONSE  = "accepted"
	EN_ROUTE_RESPONSE  = "en_route"
	ARRIVED_RESPONSE   = "arrived"
	COMPLETED_RESPONSE = "completed"
)

// triggerTransitions maps each trigger status to the set of statuses it may
// move to. Resolved & cancelled are terminal.
var triggerTransitions = map[string]map[string]bool{
	ACTIVE_TRIGGER:    {RESPONDED_TRIGGER: true, CANCELLED_TRIGGER: true},
	RESPONDED_TRIGGER: {RESOLVED_TRIGGER: true, CANCELLED_TRIGGER: true},
	RESOLVED_TRIGGER:  {},
	CANCELLED_TRIGGER: {},
}

// responseOrder is the strict chain a response walks through. A responder
// can only ever advance to the immediate successor.
var responseOrder = []string{
	ACCEPTED_RESPONSE,
	EN_ROUTE_RESPONSE,
	ARRIVED_RESPONSE,
	COMPLETED_RESPONSE,
}

// statusAliases normalizes vocabulary drift found in older payloads:
// "on-route" & "false_alarm" still show up from pre-migration rows.
var statusAliases = map[string]string{
	"on-route":    EN_ROUTE_RESPONSE,
	"false_alarm": CANCELLED_TRIGGER,
}

func IsTriggerStatus(status string) bool {
	_, ok := triggerTransitions[status]
	return ok
}

func IsResponseStatus(status string) bool {
	return responseIndex(status) >= 0
}

func IsTerminalTrigger(status string) bool {
	targets, ok := triggerTransitions[status]
	return ok && len(targets) == 0
}

func IsTerminalResponse(status string) bool {
	return status == COMPLETED_RESPONSE
}

// CanTransitionTrigger reports whether a trigger may move from one status to
// another in a single step.
func CanTransitionTrigger(from, to string) bool {
	return triggerTransitions[Normalize(from)][Normalize(to)]
}

// NextResponseStatus returns the sole legal successor of the given response
// status, or an error if the status is terminal or unknown.
func NextResponseStatus(current string) (string, error) {
	idx := responseIndex(Normalize(current))
	if idx < 0 {
		return "", fmt.Errorf("unknown response status %q", current)
	}

	if idx == len(responseOrder)-1 {
		return "", fmt.Errorf("response status %q is terminal", current)
	}

	return responseOrder[idx+1], nil
}

// CanAdvanceResponse reports whether a response may move from 'from' to 'to'.
// Only a single forward step is ever legal.
func CanAdvanceResponse(from, to string) bool {
	next, err := NextResponseStatus(from)
	if err != nil {
		return false
	}

	return next == Normalize(to)
}

// Normalize maps legacy status spellings onto the canonical vocabulary.
// Unknown statuses pass through untouched, so callers can still report them.
func Normalize(status string) string {
	if canonical, ok := statusAliases[status]; ok {
		return canonical
	}

	return status
}

func responseIndex(status string) int {
	for i, s := range responseOrder {
		if s == status {
			return i
		}
	}

	return -1
}
