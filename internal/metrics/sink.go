package metrics

import "time"

// Sink defines the interface for recording pipeline metrics.
// All methods are fire-and-forget: implementations MUST NOT block or
// propagate errors. If the metrics backend is unavailable, implementations
// log warnings and continue.
type Sink interface {
	// Feed poller metrics
	PollCycleStarted()
	PollCycleCompleted(duration time.Duration, entries int, err error)

	// Capture filter metrics
	EntryCaptured()
	EntryDropped(reason string)

	// Router metrics
	EventRouted(matched bool)
	ObserveError()
	EventsInFlightIncr()
	EventsInFlightDecr()

	// Compiler metrics
	ScheduleRejectedPast()

	// Registrar metrics
	RegistrationAttemptCompleted(attempt int, statusClass string, duration time.Duration)
	RegistrationOutcome(outcome string)
	RetryAttempt(retryable bool)

	// EventBus metrics
	BufferSizeUpdate(size int)
	BufferCapacitySet(capacity int)
	BufferSaturationUpdate(saturation float64)
	EmitError()

	// Dispatch entry point metrics
	DispatchReceived(outcome string, duration time.Duration)

	// Leader election metrics
	LeaderStatusChanged(isLeader bool)
	LeaderAcquired()
	LeaderLost(reason string)
}

// Outcome constants for RegistrationOutcome.
const (
	OutcomeRegistered = "registered"
	OutcomeDuplicate  = "duplicate"
	OutcomeFailed     = "failed"
)

// Drop reasons for EntryDropped.
const (
	DropReasonKind      = "event_kind"
	DropReasonEntity    = "entity"
	DropReasonMalformed = "malformed"
)

// Outcome constants for DispatchReceived.
const (
	DispatchOutcomeAccepted   = "accepted"
	DispatchOutcomeRejected   = "rejected"
	DispatchOutcomePublishErr = "publish_error"
)

// StatusClass constants for RegistrationAttemptCompleted.
const (
	StatusClass2xx             = "2xx"
	StatusClass4xx             = "4xx"
	StatusClass5xx             = "5xx"
	StatusClassTimeout         = "timeout"
	StatusClassConnectionError = "connection_error"
	StatusClassOtherError      = "other_error"
)

// ClassifyStatus maps a status code and error to a status class with
// bounded cardinality.
func ClassifyStatus(statusCode int, err error) string {
	if err != nil {
		errStr := err.Error()
		if containsFold(errStr, "timeout") || containsFold(errStr, "deadline exceeded") {
			return StatusClassTimeout
		}
		if containsFold(errStr, "connection refused") || containsFold(errStr, "no such host") ||
			containsFold(errStr, "network is unreachable") || containsFold(errStr, "dial") {
			return StatusClassConnectionError
		}
		return StatusClassOtherError
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		return StatusClass2xx
	case statusCode >= 400 && statusCode < 500:
		return StatusClass4xx
	case statusCode >= 500:
		return StatusClass5xx
	default:
		return StatusClassOtherError
	}
}

// containsFold is a case-insensitive substring check.
func containsFold(s, substr string) bool {
	if len(s) < len(substr) {
		return false
	}
	for i := 0; i <= len(s)-len(substr); i++ {
		if equalFoldAt(s, i, substr) {
			return true
		}
	}
	return false
}

func equalFoldAt(s string, offset int, substr string) bool {
	for j := 0; j < len(substr); j++ {
		c1 := s[offset+j]
		c2 := substr[j]
		if c1 != c2 && toLower(c1) != toLower(c2) {
			return false
		}
	}
	return true
}

func toLower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + 32
	}
	return c
}
