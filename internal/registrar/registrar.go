// Package registrar creates one-shot timers against the external
// scheduling service.
//
// Registration is idempotent keyed by record id: the job name is derived
// deterministically from the record, so redelivery of the same
// change-feed entry attempts to create a job with the same name and the
// duplicate is treated as success.
package registrar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/EducloudHQ/ai-writer-scheduler/internal/domain"
	"github.com/EducloudHQ/ai-writer-scheduler/internal/metrics"
	"github.com/EducloudHQ/ai-writer-scheduler/internal/timeexpr"
)

// JobNameSuffix is appended to the record id to form the deterministic
// job name.
const JobNameSuffix = "-scheduled-post"

// ErrJobExists is returned by scheduler clients when a job with the same
// name is already registered. The registrar treats it as success.
var ErrJobExists = errors.New("job already exists")

var defaultBackoff = []time.Duration{
	0,
	2 * time.Second,
	10 * time.Second,
	30 * time.Second,
}

const maxAttempts = 4

// ServiceError reports a failed call to the external scheduler service.
// StatusCode is zero for transport-level failures.
type ServiceError struct {
	StatusCode int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("scheduler service: %v", e.Err)
	}
	return fmt.Sprintf("scheduler service: status %d", e.StatusCode)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// IsRetryable reports whether the failure is transient: transport
// errors, throttling and server-side failures retry; other rejections
// are permanent.
func (e *ServiceError) IsRetryable() bool {
	if e.StatusCode == 0 {
		return true // transport-level failure
	}
	if e.StatusCode == 429 {
		return true
	}
	return e.StatusCode >= 500
}

// RegistrationError is the terminal failure of a registration: the
// external scheduler rejected the job or stayed unreachable through all
// retries. Permanent failures must be surfaced to an operator channel.
type RegistrationError struct {
	JobName   string
	Permanent bool
	Err       error
}

func (e *RegistrationError) Error() string {
	kind := "transient"
	if e.Permanent {
		kind = "permanent"
	}
	return fmt.Sprintf("register job %s: %s failure: %v", e.JobName, kind, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// SchedulerClient creates jobs against the external scheduling service.
// Implementations return ErrJobExists on duplicate names and
// *ServiceError on service failures.
type SchedulerClient interface {
	CreateJob(ctx context.Context, job domain.ScheduleJob) error
}

// MetricsSink defines the interface for recording registrar metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	RegistrationAttemptCompleted(attempt int, statusClass string, duration time.Duration)
	RegistrationOutcome(outcome string)
	RetryAttempt(retryable bool)
}

// Config carries the deployment-injected collaborator references. The
// core never reads them from the environment.
type Config struct {
	TargetRef string // identity of the dispatch entry point to invoke
	RoleRef   string // execution role the scheduler assumes
	GroupRef  string // scheduler group the job is created in
}

// Registrar registers one-shot jobs. Once a job is created, lifecycle
// control passes entirely to the external scheduler.
type Registrar struct {
	config  Config
	client  SchedulerClient
	breaker *Breaker    // optional, nil = disabled
	metrics MetricsSink // optional, nil = disabled
	backoff []time.Duration
}

// New creates a registrar with the given collaborator references.
func New(config Config, client SchedulerClient) *Registrar {
	return &Registrar{
		config:  config,
		client:  client,
		backoff: defaultBackoff,
	}
}

// WithBreaker guards the scheduler endpoint with a circuit breaker.
func (r *Registrar) WithBreaker(b *Breaker) *Registrar {
	r.breaker = b
	return r
}

// WithMetrics attaches a metrics sink to the registrar.
func (r *Registrar) WithMetrics(sink MetricsSink) *Registrar {
	r.metrics = sink
	return r
}

// JobName derives the deterministic idempotency key for a record.
func JobName(recordID string) string {
	return recordID + JobNameSuffix
}

// Register creates the one-shot job for a record. Transient service
// failures are retried with bounded backoff; a duplicate name is an
// idempotent no-op returning the job as if freshly created.
func (r *Registrar) Register(ctx context.Context, record domain.ScheduledContentRecord, expr timeexpr.FireExpression) (domain.ScheduleJob, error) {
	name := JobName(record.ID)

	payload, err := json.Marshal(domain.DispatchPayload{
		ScheduledContent: record,
		Context:          domain.ContextScheduledPost,
	})
	if err != nil {
		return domain.ScheduleJob{}, &RegistrationError{JobName: name, Permanent: true, Err: err}
	}

	job := domain.ScheduleJob{
		Name:           name,
		Description:    "deferred publication of content " + record.ID + " for user " + record.UserID,
		TargetRef:      r.config.TargetRef,
		RoleRef:        r.config.RoleRef,
		GroupRef:       r.config.GroupRef,
		Payload:        payload,
		FireExpression: string(expr),
		DisposalPolicy: domain.DisposalPolicyDeleteAfterFire,
	}

	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if r.metrics != nil {
				r.metrics.RetryAttempt(retryable(lastErr))
			}

			idx := attempt - 1
			if idx >= len(r.backoff) {
				idx = len(r.backoff) - 1
			}
			backoff := r.backoff[idx]

			log.Printf("registrar: job=%s attempt=%d backoff=%s", name, attempt, backoff)

			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				return domain.ScheduleJob{}, ctx.Err()
			case <-timer.C:
			}
		}

		if r.breaker != nil {
			if err := r.breaker.Allow(); err != nil {
				lastErr = err
				break
			}
		}

		startedAt := time.Now()
		createErr := r.client.CreateJob(ctx, job)
		duration := time.Since(startedAt)

		if r.metrics != nil {
			r.metrics.RegistrationAttemptCompleted(attempt, classifyCreateErr(createErr), duration)
		}

		if createErr == nil {
			if r.breaker != nil {
				r.breaker.RecordSuccess()
			}
			log.Printf("registrar: registered job=%s fire=%s attempt=%d", name, expr, attempt)
			if r.metrics != nil {
				r.metrics.RegistrationOutcome(metrics.OutcomeRegistered)
			}
			return job, nil
		}

		if errors.Is(createErr, ErrJobExists) {
			// Redelivered feed entry; the job is already live with the
			// same name. Idempotent success.
			if r.breaker != nil {
				r.breaker.RecordSuccess()
			}
			log.Printf("registrar: job=%s already registered, treating as success", name)
			if r.metrics != nil {
				r.metrics.RegistrationOutcome(metrics.OutcomeDuplicate)
			}
			return job, nil
		}

		if r.breaker != nil {
			r.breaker.RecordFailure()
		}
		lastErr = createErr

		if !retryable(createErr) {
			log.Printf("registrar: job=%s non-retryable failure: %v", name, createErr)
			break
		}

		log.Printf("registrar: job=%s attempt=%d failed: %v", name, attempt, createErr)
	}

	if r.metrics != nil {
		r.metrics.RegistrationOutcome(metrics.OutcomeFailed)
	}
	log.Printf("registrar: job=%s failed: %v", name, lastErr)
	return domain.ScheduleJob{}, &RegistrationError{
		JobName:   name,
		Permanent: !retryable(lastErr),
		Err:       lastErr,
	}
}

func retryable(err error) bool {
	if errors.Is(err, ErrCircuitOpen) {
		return true
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.IsRetryable()
	}
	return false
}

func classifyCreateErr(err error) string {
	if err == nil {
		return metrics.StatusClass2xx
	}
	if errors.Is(err, ErrJobExists) {
		return metrics.StatusClass4xx
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return metrics.ClassifyStatus(svcErr.StatusCode, svcErr.Err)
	}
	return metrics.StatusClassOtherError
}
