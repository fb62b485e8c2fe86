package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTrigger(t *testing.T) {
	allStatuses := []string{ACTIVE_TRIGGER, RESPONDED_TRIGGER, RESOLVED_TRIGGER, CANCELLED_TRIGGER}

	allowed := map[[2]string]bool{
		{ACTIVE_TRIGGER, RESPONDED_TRIGGER}:    true,
		{ACTIVE_TRIGGER, CANCELLED_TRIGGER}:    true,
		{RESPONDED_TRIGGER, RESOLVED_TRIGGER}:  true,
		{RESPONDED_TRIGGER, CANCELLED_TRIGGER}: true,
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			expected := allowed[[2]string{from, to}]
			assert.Equal(t, expected, CanTransitionTrigger(from, to),
				"transition %v -> %v should be %v", from, to, expected)
		}
	}
}

func TestNextResponseStatus(t *testing.T) {
	next, err := NextResponseStatus(ACCEPTED_RESPONSE)
	assert.Nil(t, err)
	assert.Equal(t, EN_ROUTE_RESPONSE, next)

	next, err = NextResponseStatus(EN_ROUTE_RESPONSE)
	assert.Nil(t, err)
	assert.Equal(t, ARRIVED_RESPONSE, next)

	next, err = NextResponseStatus(ARRIVED_RESPONSE)
	assert.Nil(t, err)
	assert.Equal(t, COMPLETED_RESPONSE, next)

	_, err = NextResponseStatus(COMPLETED_RESPONSE)
	assert.NotNil(t, err, "completed should be terminal")

	_, err = NextResponseStatus("lost")
	assert.NotNil(t, err, "unknown status should error")
}

func TestCanAdvanceResponse(t *testing.T) {
	assert.True(t, CanAdvanceResponse(ACCEPTED_RESPONSE, EN_ROUTE_RESPONSE))
	assert.True(t, CanAdvanceResponse(EN_ROUTE_RESPONSE, ARRIVED_RESPONSE))
	assert.True(t, CanAdvanceResponse(ARRIVED_RESPONSE, COMPLETED_RESPONSE))

	// skipping a step or moving backwards is never legal
	assert.False(t, CanAdvanceResponse(ACCEPTED_RESPONSE, ARRIVED_RESPONSE))
	assert.False(t, CanAdvanceResponse(ACCEPTED_RESPONSE, COMPLETED_RESPONSE))
	assert.False(t, CanAdvanceResponse(ARRIVED_RESPONSE, EN_ROUTE_RESPONSE))
	assert.False(t, CanAdvanceResponse(COMPLETED_RESPONSE, ACCEPTED_RESPONSE))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, EN_ROUTE_RESPONSE, Normalize("on-route"))
	assert.Equal(t, CANCELLED_TRIGGER, Normalize("false_alarm"))
	assert.Equal(t, ACTIVE_TRIGGER, Normalize(ACTIVE_TRIGGER))
	assert.Equal(t, "garbage", Normalize("garbage"))
}

func TestCanAdvanceResponseWithLegacySpelling(t *testing.T) {
	assert.True(t, CanAdvanceResponse(ACCEPTED_RESPONSE, "on-route"))
	assert.True(t, CanAdvanceResponse("on-route", ARRIVED_RESPONSE))
}
