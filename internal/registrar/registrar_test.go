package registrar

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/EducloudHQ/ai-writer-scheduler/internal/domain"
	"github.com/EducloudHQ/ai-writer-scheduler/internal/timeexpr"
)

func testConfig() Config {
	return Config{
		TargetRef: "arn:dispatch:scheduled-post",
		RoleRef:   "arn:role:scheduler-invoke",
		GroupRef:  "publication",
	}
}

func testRecord() domain.ScheduledContentRecord {
	return domain.ScheduledContentRecord{
		ID:      "abc123",
		UserID:  "u1",
		DraftID: "d1",
		Entity:  domain.EntityScheduledContent,
		Schedule: domain.LocalSchedule{
			Year: 2025, Month: 6, Day: 1, Hour: 10,
		},
	}
}

// mockClient tracks create calls and returns scripted errors.
type mockClient struct {
	mu    sync.Mutex
	jobs  map[string]domain.ScheduleJob
	errs  []error // consumed per call; nil past the end
	calls int
}

func newMockClient() *mockClient {
	return &mockClient{jobs: make(map[string]domain.ScheduleJob)}
}

func (c *mockClient) CreateJob(ctx context.Context, job domain.ScheduleJob) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++

	if c.calls <= len(c.errs) {
		if err := c.errs[c.calls-1]; err != nil {
			return err
		}
	}

	if _, exists := c.jobs[job.Name]; exists {
		return ErrJobExists
	}
	c.jobs[job.Name] = job
	return nil
}

func (c *mockClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *mockClient) jobCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.jobs)
}

// fastRegistrar removes backoff waits for tests.
func fastRegistrar(client SchedulerClient) *Registrar {
	r := New(testConfig(), client)
	r.backoff = []time.Duration{0, 0, 0, 0}
	return r
}

func TestRegistrar_Register(t *testing.T) {
	client := newMockClient()
	r := fastRegistrar(client)

	job, err := r.Register(context.Background(), testRecord(), "at(2025-06-01T10:00:00)")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if job.Name != "abc123-scheduled-post" {
		t.Errorf("Name = %q, want %q", job.Name, "abc123-scheduled-post")
	}
	if job.FireExpression != "at(2025-06-01T10:00:00)" {
		t.Errorf("FireExpression = %q, want %q", job.FireExpression, "at(2025-06-01T10:00:00)")
	}
	if job.DisposalPolicy != domain.DisposalPolicyDeleteAfterFire {
		t.Errorf("DisposalPolicy = %q, want delete-after-fire", job.DisposalPolicy)
	}
	if job.TargetRef != "arn:dispatch:scheduled-post" || job.RoleRef != "arn:role:scheduler-invoke" || job.GroupRef != "publication" {
		t.Errorf("collaborator refs not carried: %+v", job)
	}

	var payload domain.DispatchPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if payload.Context != domain.ContextScheduledPost {
		t.Errorf("payload context = %q, want %q", payload.Context, domain.ContextScheduledPost)
	}
	if payload.ScheduledContent != testRecord() {
		t.Errorf("payload record = %+v, want original record", payload.ScheduledContent)
	}
}

func TestRegistrar_IdempotentOnRedelivery(t *testing.T) {
	client := newMockClient()
	r := fastRegistrar(client)

	record := testRecord()
	expr := timeexpr.FireExpression("at(2025-06-01T10:00:00)")

	if _, err := r.Register(context.Background(), record, expr); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	// Redelivered feed entry: same record id, same name. Must succeed
	// without creating a second job.
	if _, err := r.Register(context.Background(), record, expr); err != nil {
		t.Fatalf("second Register should be idempotent success, got: %v", err)
	}

	if client.jobCount() != 1 {
		t.Errorf("live jobs = %d, want 1", client.jobCount())
	}
}

func TestRegistrar_RetriesTransientFailures(t *testing.T) {
	client := newMockClient()
	client.errs = []error{
		&ServiceError{StatusCode: 503},
		&ServiceError{Err: errors.New("dial tcp: connection refused")},
	}
	r := fastRegistrar(client)

	if _, err := r.Register(context.Background(), testRecord(), "at(2025-06-01T10:00:00)"); err != nil {
		t.Fatalf("Register should succeed after transient failures, got: %v", err)
	}
	if client.callCount() != 3 {
		t.Errorf("calls = %d, want 3", client.callCount())
	}
}

func TestRegistrar_PermanentFailureNotRetried(t *testing.T) {
	client := newMockClient()
	client.errs = []error{&ServiceError{StatusCode: 400}}
	r := fastRegistrar(client)

	_, err := r.Register(context.Background(), testRecord(), "at(2025-06-01T10:00:00)")
	var regErr *RegistrationError
	if !errors.As(err, &regErr) {
		t.Fatalf("expected RegistrationError, got: %v", err)
	}
	if !regErr.Permanent {
		t.Error("400 rejection should be permanent")
	}
	if client.callCount() != 1 {
		t.Errorf("calls = %d, want 1 (no retry on permanent failure)", client.callCount())
	}
}

func TestRegistrar_ExhaustedRetriesIsTransientFailure(t *testing.T) {
	client := newMockClient()
	client.errs = []error{
		&ServiceError{StatusCode: 500},
		&ServiceError{StatusCode: 500},
		&ServiceError{StatusCode: 500},
		&ServiceError{StatusCode: 500},
	}
	r := fastRegistrar(client)

	_, err := r.Register(context.Background(), testRecord(), "at(2025-06-01T10:00:00)")
	var regErr *RegistrationError
	if !errors.As(err, &regErr) {
		t.Fatalf("expected RegistrationError, got: %v", err)
	}
	if regErr.Permanent {
		t.Error("exhausted 5xx retries should stay transient")
	}
	if client.callCount() != maxAttempts {
		t.Errorf("calls = %d, want %d", client.callCount(), maxAttempts)
	}
}

func TestRegistrar_ContextCancelledDuringBackoff(t *testing.T) {
	client := newMockClient()
	client.errs = []error{&ServiceError{StatusCode: 503}}
	r := New(testConfig(), client)
	r.backoff = []time.Duration{0, time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := r.Register(ctx, testRecord(), "at(2025-06-01T10:00:00)")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Register = %v, want context.Canceled", err)
	}
	if client.callCount() != 1 {
		t.Errorf("calls = %d, want 1", client.callCount())
	}
}

func TestRegistrar_BreakerOpensAfterThreshold(t *testing.T) {
	client := newMockClient()
	client.errs = []error{
		&ServiceError{StatusCode: 500},
		&ServiceError{StatusCode: 500},
	}
	r := fastRegistrar(client).WithBreaker(NewBreaker(2, time.Hour))

	// First registration: two failures open the breaker, remaining
	// attempts are short-circuited.
	_, err := r.Register(context.Background(), testRecord(), "at(2025-06-01T10:00:00)")
	if err == nil {
		t.Fatal("Register should fail")
	}
	if client.callCount() != 2 {
		t.Errorf("calls = %d, want 2 (breaker short-circuits the rest)", client.callCount())
	}

	// Second registration hits the open breaker without reaching the service.
	record2 := testRecord()
	record2.ID = "def456"
	_, err = r.Register(context.Background(), record2, "at(2025-06-01T10:00:00)")
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Register = %v, want ErrCircuitOpen", err)
	}
	if client.callCount() != 2 {
		t.Errorf("calls = %d, want 2 (no call while open)", client.callCount())
	}
}

func TestBreaker_HalfOpenProbeAfterCooldown(t *testing.T) {
	b := NewBreaker(1, time.Minute)
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	b.clock = func() time.Time { return now }

	b.RecordFailure()
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Allow = %v, want ErrCircuitOpen", err)
	}

	now = now.Add(2 * time.Minute)
	if err := b.Allow(); err != nil {
		t.Fatalf("half-open probe should be allowed, got: %v", err)
	}
	// Only one probe until it resolves.
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("second probe = %v, want ErrCircuitOpen", err)
	}

	b.RecordSuccess()
	if err := b.Allow(); err != nil {
		t.Errorf("Allow after success = %v, want nil", err)
	}
}

// mockRegistrarMetrics tracks registrar metric calls.
type mockRegistrarMetrics struct {
	mu       sync.Mutex
	attempts []string
	outcomes []string
	retries  int
}

func (m *mockRegistrarMetrics) RegistrationAttemptCompleted(attempt int, statusClass string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, statusClass)
}

func (m *mockRegistrarMetrics) RegistrationOutcome(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *mockRegistrarMetrics) RetryAttempt(retryable bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries++
}

func TestRegistrar_Metrics(t *testing.T) {
	client := newMockClient()
	client.errs = []error{&ServiceError{StatusCode: 503}}
	sink := &mockRegistrarMetrics{}
	r := fastRegistrar(client).WithMetrics(sink)

	if _, err := r.Register(context.Background(), testRecord(), "at(2025-06-01T10:00:00)"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.attempts) != 2 {
		t.Errorf("attempts recorded = %d, want 2", len(sink.attempts))
	}
	if sink.retries != 1 {
		t.Errorf("retries recorded = %d, want 1", sink.retries)
	}
	if len(sink.outcomes) != 1 || sink.outcomes[0] != "registered" {
		t.Errorf("outcomes = %v, want [registered]", sink.outcomes)
	}
}
