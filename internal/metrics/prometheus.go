package metrics

import (
	"log"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using the Prometheus client library.
// All methods are non-blocking and fire-and-forget. Registration errors
// are logged but never propagated.
type PrometheusSink struct {
	// Feed poller metrics
	pollCyclesTotal     prometheus.Counter
	pollCycleErrorsTotal prometheus.Counter
	feedEntriesTotal    prometheus.Counter
	pollCycleDuration   prometheus.Histogram

	// Capture metrics
	entriesCapturedTotal prometheus.Counter
	entriesDroppedTotal  *prometheus.CounterVec

	// Router metrics
	eventsRoutedTotal *prometheus.CounterVec
	observeErrorsTotal prometheus.Counter
	eventsInFlight     prometheus.Gauge

	// Compiler metrics
	pastSchedulesTotal prometheus.Counter

	// Registrar metrics
	registrationAttemptsTotal *prometheus.CounterVec
	registrationOutcomesTotal *prometheus.CounterVec
	registrationDuration      prometheus.Histogram
	retryAttemptsTotal        *prometheus.CounterVec

	// EventBus metrics
	bufferSize       prometheus.Gauge
	bufferCapacity   prometheus.Gauge
	bufferSaturation prometheus.Gauge
	emitErrorsTotal  prometheus.Counter

	// Dispatch metrics
	dispatchReceivedTotal *prometheus.CounterVec
	dispatchDuration      prometheus.Histogram

	// Leader election metrics
	leaderStatus        prometheus.Gauge
	leaderAcquiredTotal prometheus.Counter
	leaderLostTotal     *prometheus.CounterVec
}

// NewPrometheusSink creates a new Prometheus metrics sink.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initFeedMetrics(reg)
	s.initCaptureMetrics(reg)
	s.initRouterMetrics(reg)
	s.initRegistrarMetrics(reg)
	s.initEventBusMetrics(reg)
	s.initDispatchMetrics(reg)
	s.initLeaderMetrics(reg)
	return s
}

func (s *PrometheusSink) initFeedMetrics(reg prometheus.Registerer) {
	s.pollCyclesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aiwriter_feed_poll_cycles_total",
		Help: "Total number of change-feed poll cycles.",
	})
	s.pollCycleErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aiwriter_feed_poll_cycle_errors_total",
		Help: "Total number of poll cycles that ended with an error.",
	})
	s.feedEntriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aiwriter_feed_entries_total",
		Help: "Total number of change-feed entries fetched.",
	})
	s.pollCycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "aiwriter_feed_poll_cycle_duration_seconds",
		Help:    "Duration of each change-feed poll cycle in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	})

	s.register(reg, s.pollCyclesTotal, "aiwriter_feed_poll_cycles_total")
	s.register(reg, s.pollCycleErrorsTotal, "aiwriter_feed_poll_cycle_errors_total")
	s.register(reg, s.feedEntriesTotal, "aiwriter_feed_entries_total")
	s.register(reg, s.pollCycleDuration, "aiwriter_feed_poll_cycle_duration_seconds")
}

func (s *PrometheusSink) initCaptureMetrics(reg prometheus.Registerer) {
	s.entriesCapturedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aiwriter_capture_entries_captured_total",
		Help: "Total number of change-feed entries reshaped into domain events.",
	})
	s.entriesDroppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aiwriter_capture_entries_dropped_total",
		Help: "Total number of change-feed entries dropped by the capture filter.",
	}, []string{"reason"})

	s.register(reg, s.entriesCapturedTotal, "aiwriter_capture_entries_captured_total")
	s.register(reg, s.entriesDroppedTotal, "aiwriter_capture_entries_dropped_total")
}

func (s *PrometheusSink) initRouterMetrics(reg prometheus.Registerer) {
	s.eventsRoutedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aiwriter_router_events_total",
		Help: "Total number of events routed, by whether a rule matched.",
	}, []string{"matched"})
	s.observeErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aiwriter_router_observe_errors_total",
		Help: "Total number of observability sink failures.",
	})
	s.eventsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "aiwriter_router_events_in_flight",
		Help: "Number of events currently being processed.",
	})
	s.pastSchedulesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aiwriter_compiler_past_schedules_total",
		Help: "Total number of schedules rejected because the target was not in the future.",
	})

	s.register(reg, s.eventsRoutedTotal, "aiwriter_router_events_total")
	s.register(reg, s.observeErrorsTotal, "aiwriter_router_observe_errors_total")
	s.register(reg, s.eventsInFlight, "aiwriter_router_events_in_flight")
	s.register(reg, s.pastSchedulesTotal, "aiwriter_compiler_past_schedules_total")
}

func (s *PrometheusSink) initRegistrarMetrics(reg prometheus.Registerer) {
	s.registrationAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aiwriter_registrar_attempts_total",
		Help: "Total number of job creation attempts against the external scheduler.",
	}, []string{"attempt", "status_class"})
	s.registrationOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aiwriter_registrar_outcomes_total",
		Help: "Total number of final registration outcomes per record.",
	}, []string{"outcome"})
	s.registrationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "aiwriter_registrar_request_duration_seconds",
		Help:    "Scheduler service request latency in seconds (excludes backoff wait).",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})
	s.retryAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aiwriter_registrar_retry_attempts_total",
		Help: "Total number of retry attempts (excludes first attempt).",
	}, []string{"retryable"})

	s.register(reg, s.registrationAttemptsTotal, "aiwriter_registrar_attempts_total")
	s.register(reg, s.registrationOutcomesTotal, "aiwriter_registrar_outcomes_total")
	s.register(reg, s.registrationDuration, "aiwriter_registrar_request_duration_seconds")
	s.register(reg, s.retryAttemptsTotal, "aiwriter_registrar_retry_attempts_total")
}

func (s *PrometheusSink) initEventBusMetrics(reg prometheus.Registerer) {
	s.bufferSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "aiwriter_eventbus_buffer_size",
		Help: "Current number of events in the event bus buffer.",
	})
	s.bufferCapacity = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "aiwriter_eventbus_buffer_capacity",
		Help: "Configured capacity of the event bus buffer.",
	})
	s.bufferSaturation = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "aiwriter_eventbus_buffer_saturation",
		Help: "Event bus buffer fill ratio (0.0 to 1.0).",
	})
	s.emitErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aiwriter_eventbus_emit_errors_total",
		Help: "Total number of emit errors (buffer full).",
	})

	s.register(reg, s.bufferSize, "aiwriter_eventbus_buffer_size")
	s.register(reg, s.bufferCapacity, "aiwriter_eventbus_buffer_capacity")
	s.register(reg, s.bufferSaturation, "aiwriter_eventbus_buffer_saturation")
	s.register(reg, s.emitErrorsTotal, "aiwriter_eventbus_emit_errors_total")
}

func (s *PrometheusSink) initDispatchMetrics(reg prometheus.Registerer) {
	s.dispatchReceivedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aiwriter_dispatch_received_total",
		Help: "Total number of fire-time invocations received, by outcome.",
	}, []string{"outcome"})
	s.dispatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "aiwriter_dispatch_duration_seconds",
		Help:    "Duration of dispatch handling in seconds, including hand-off.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
	})

	s.register(reg, s.dispatchReceivedTotal, "aiwriter_dispatch_received_total")
	s.register(reg, s.dispatchDuration, "aiwriter_dispatch_duration_seconds")
}

func (s *PrometheusSink) initLeaderMetrics(reg prometheus.Registerer) {
	s.leaderStatus = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "aiwriter_leader_status",
		Help: "Whether this instance currently holds the leader lock (1) or not (0).",
	})
	s.leaderAcquiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aiwriter_leader_acquired_total",
		Help: "Total number of times this instance acquired leadership.",
	})
	s.leaderLostTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aiwriter_leader_lost_total",
		Help: "Total number of times this instance lost leadership, by reason.",
	}, []string{"reason"})

	s.register(reg, s.leaderStatus, "aiwriter_leader_status")
	s.register(reg, s.leaderAcquiredTotal, "aiwriter_leader_acquired_total")
	s.register(reg, s.leaderLostTotal, "aiwriter_leader_lost_total")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

// Feed poller metrics implementation

func (s *PrometheusSink) PollCycleStarted() {
	s.pollCyclesTotal.Inc()
}

func (s *PrometheusSink) PollCycleCompleted(duration time.Duration, entries int, err error) {
	s.pollCycleDuration.Observe(duration.Seconds())
	s.feedEntriesTotal.Add(float64(entries))
	if err != nil {
		s.pollCycleErrorsTotal.Inc()
	}
}

// Capture filter metrics implementation

func (s *PrometheusSink) EntryCaptured() {
	s.entriesCapturedTotal.Inc()
}

func (s *PrometheusSink) EntryDropped(reason string) {
	s.entriesDroppedTotal.WithLabelValues(reason).Inc()
}

// Router metrics implementation

func (s *PrometheusSink) EventRouted(matched bool) {
	label := "false"
	if matched {
		label = "true"
	}
	s.eventsRoutedTotal.WithLabelValues(label).Inc()
}

func (s *PrometheusSink) ObserveError() {
	s.observeErrorsTotal.Inc()
}

func (s *PrometheusSink) EventsInFlightIncr() {
	s.eventsInFlight.Inc()
}

func (s *PrometheusSink) EventsInFlightDecr() {
	s.eventsInFlight.Dec()
}

// Compiler metrics implementation

func (s *PrometheusSink) ScheduleRejectedPast() {
	s.pastSchedulesTotal.Inc()
}

// Registrar metrics implementation

func (s *PrometheusSink) RegistrationAttemptCompleted(attempt int, statusClass string, duration time.Duration) {
	s.registrationAttemptsTotal.WithLabelValues(strconv.Itoa(attempt), statusClass).Inc()
	s.registrationDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) RegistrationOutcome(outcome string) {
	s.registrationOutcomesTotal.WithLabelValues(outcome).Inc()
}

func (s *PrometheusSink) RetryAttempt(retryable bool) {
	label := "false"
	if retryable {
		label = "true"
	}
	s.retryAttemptsTotal.WithLabelValues(label).Inc()
}

// EventBus metrics implementation

func (s *PrometheusSink) BufferSizeUpdate(size int) {
	s.bufferSize.Set(float64(size))
}

func (s *PrometheusSink) BufferCapacitySet(capacity int) {
	s.bufferCapacity.Set(float64(capacity))
}

func (s *PrometheusSink) BufferSaturationUpdate(saturation float64) {
	s.bufferSaturation.Set(saturation)
}

func (s *PrometheusSink) EmitError() {
	s.emitErrorsTotal.Inc()
}

// Dispatch metrics implementation

func (s *PrometheusSink) DispatchReceived(outcome string, duration time.Duration) {
	s.dispatchReceivedTotal.WithLabelValues(outcome).Inc()
	s.dispatchDuration.Observe(duration.Seconds())
}

// Leader election metrics implementation

func (s *PrometheusSink) LeaderStatusChanged(isLeader bool) {
	if isLeader {
		s.leaderStatus.Set(1)
	} else {
		s.leaderStatus.Set(0)
	}
}

func (s *PrometheusSink) LeaderAcquired() {
	s.leaderAcquiredTotal.Inc()
}

func (s *PrometheusSink) LeaderLost(reason string) {
	s.leaderLostTotal.WithLabelValues(reason).Inc()
}
