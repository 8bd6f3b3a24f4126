package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) PollCycleStarted()                                                         {}
func (n *NoopSink) PollCycleCompleted(duration time.Duration, entries int, err error)         {}
func (n *NoopSink) EntryCaptured()                                                            {}
func (n *NoopSink) EntryDropped(reason string)                                                {}
func (n *NoopSink) EventRouted(matched bool)                                                  {}
func (n *NoopSink) ObserveError()                                                             {}
func (n *NoopSink) EventsInFlightIncr()                                                       {}
func (n *NoopSink) EventsInFlightDecr()                                                       {}
func (n *NoopSink) ScheduleRejectedPast()                                                     {}
func (n *NoopSink) RegistrationAttemptCompleted(attempt int, sc string, d time.Duration)      {}
func (n *NoopSink) RegistrationOutcome(outcome string)                                        {}
func (n *NoopSink) RetryAttempt(retryable bool)                                               {}
func (n *NoopSink) BufferSizeUpdate(size int)                                                 {}
func (n *NoopSink) BufferCapacitySet(capacity int)                                            {}
func (n *NoopSink) BufferSaturationUpdate(saturation float64)                                 {}
func (n *NoopSink) EmitError()                                                                {}
func (n *NoopSink) DispatchReceived(outcome string, duration time.Duration)                   {}
func (n *NoopSink) LeaderStatusChanged(isLeader bool)                                         {}
func (n *NoopSink) LeaderAcquired()                                                           {}
func (n *NoopSink) LeaderLost(reason string)                                                  {}
