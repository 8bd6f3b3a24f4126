package router

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/EducloudHQ/ai-writer-scheduler/internal/domain"
)

func scheduleCreatedEvent(id string) domain.Event {
	return domain.Event{
		Source:     domain.EventSourceScheduledContent,
		DetailType: domain.EventTypeScheduleCreated,
		Detail: domain.EventDetail{
			ScheduledContent: domain.ScheduledContentRecord{
				ID:      id,
				UserID:  "u1",
				DraftID: "d1",
				Entity:  domain.EntityScheduledContent,
				Schedule: domain.LocalSchedule{
					Year: 2025, Month: 6, Day: 1, Hour: 10,
				},
			},
		},
	}
}

// mockHandler records handled events.
type mockHandler struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (h *mockHandler) Handle(ctx context.Context, event domain.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return h.err
}

func (h *mockHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

// mockObserver records observed events.
type mockObserver struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (o *mockObserver) Observe(ctx context.Context, event domain.Event) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event)
	return o.err
}

func (o *mockObserver) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.events)
}

func TestRouter_MatchingRuleInvoked(t *testing.T) {
	handler := &mockHandler{}
	r := New(Rule{
		Source:     domain.EventSourceScheduledContent,
		DetailType: domain.EventTypeScheduleCreated,
		Handler:    handler,
	})

	if err := r.Dispatch(context.Background(), scheduleCreatedEvent("abc123")); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if handler.count() != 1 {
		t.Errorf("handler invoked %d times, want 1", handler.count())
	}
}

func TestRouter_ExactMatchOnly(t *testing.T) {
	tests := []struct {
		name       string
		source     string
		detailType string
	}{
		{"wrong source", "other.source", domain.EventTypeScheduleCreated},
		{"wrong detail type", domain.EventSourceScheduledContent, "ScheduleContentUpdated"},
		{"prefix is not a match", "scheduled.content.extra", domain.EventTypeScheduleCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := &mockHandler{}
			r := New(Rule{
				Source:     domain.EventSourceScheduledContent,
				DetailType: domain.EventTypeScheduleCreated,
				Handler:    handler,
			})

			event := scheduleCreatedEvent("abc123")
			event.Source = tt.source
			event.DetailType = tt.detailType

			if err := r.Dispatch(context.Background(), event); err != nil {
				t.Fatalf("Dispatch failed: %v", err)
			}
			if handler.count() != 0 {
				t.Errorf("handler invoked %d times, want 0", handler.count())
			}
		})
	}
}

func TestRouter_ObserverSeesEveryEvent(t *testing.T) {
	handler := &mockHandler{}
	observer := &mockObserver{}
	r := New(Rule{
		Source:     domain.EventSourceScheduledContent,
		DetailType: domain.EventTypeScheduleCreated,
		Handler:    handler,
	}).WithObserver(observer)

	// A matching and a non-matching event: observer gets both.
	matching := scheduleCreatedEvent("abc123")
	other := scheduleCreatedEvent("def456")
	other.Source = "other.source"

	r.Dispatch(context.Background(), matching)
	r.Dispatch(context.Background(), other)

	if observer.count() != 2 {
		t.Errorf("observer saw %d events, want 2", observer.count())
	}
	if handler.count() != 1 {
		t.Errorf("handler invoked %d times, want 1", handler.count())
	}
}

func TestRouter_ObserverErrorDoesNotBlockRouting(t *testing.T) {
	handler := &mockHandler{}
	observer := &mockObserver{err: errors.New("sink unavailable")}
	r := New(Rule{
		Source:     domain.EventSourceScheduledContent,
		DetailType: domain.EventTypeScheduleCreated,
		Handler:    handler,
	}).WithObserver(observer)

	if err := r.Dispatch(context.Background(), scheduleCreatedEvent("abc123")); err != nil {
		t.Fatalf("observer failure should not propagate, got: %v", err)
	}
	if handler.count() != 1 {
		t.Errorf("handler invoked %d times, want 1", handler.count())
	}
}

func TestRouter_HandlerErrorPropagates(t *testing.T) {
	handlerErr := errors.New("registration failed")
	handler := &mockHandler{err: handlerErr}
	r := New(Rule{
		Source:     domain.EventSourceScheduledContent,
		DetailType: domain.EventTypeScheduleCreated,
		Handler:    handler,
	})

	err := r.Dispatch(context.Background(), scheduleCreatedEvent("abc123"))
	if !errors.Is(err, handlerErr) {
		t.Errorf("Dispatch = %v, want wrapped %v", err, handlerErr)
	}
}

func TestRouter_RunConsumesAndDrains(t *testing.T) {
	handler := &mockHandler{}
	r := New(Rule{
		Source:     domain.EventSourceScheduledContent,
		DetailType: domain.EventTypeScheduleCreated,
		Handler:    handler,
	}).WithDrainTimeout(time.Second)

	ch := make(chan domain.Event, 10)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		r.Run(ctx, ch)
		close(done)
	}()

	ch <- scheduleCreatedEvent("live")

	// Wait for the live event, then buffer two more and shut down; the
	// drain must pick them up.
	deadline := time.After(2 * time.Second)
	for handler.count() < 1 {
		select {
		case <-deadline:
			t.Fatal("timeout waiting for live event")
		case <-time.After(10 * time.Millisecond):
		}
	}

	ch <- scheduleCreatedEvent("buffered-1")
	ch <- scheduleCreatedEvent("buffered-2")
	cancel()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if handler.count() != 3 {
		t.Errorf("handler invoked %d times, want 3 (1 live + 2 drained)", handler.count())
	}
}

// mockRouterMetrics tracks router metric calls.
type mockRouterMetrics struct {
	mu           sync.Mutex
	routed       map[bool]int
	observeErrs  int
	inFlightIncr int
	inFlightDecr int
}

func newMockRouterMetrics() *mockRouterMetrics {
	return &mockRouterMetrics{routed: make(map[bool]int)}
}

func (m *mockRouterMetrics) EventRouted(matched bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routed[matched]++
}

func (m *mockRouterMetrics) ObserveError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observeErrs++
}

func (m *mockRouterMetrics) EventsInFlightIncr() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlightIncr++
}

func (m *mockRouterMetrics) EventsInFlightDecr() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlightDecr++
}

func TestRouter_Metrics(t *testing.T) {
	metrics := newMockRouterMetrics()
	observer := &mockObserver{err: errors.New("down")}
	r := New(Rule{
		Source:     domain.EventSourceScheduledContent,
		DetailType: domain.EventTypeScheduleCreated,
		Handler:    &mockHandler{},
	}).WithObserver(observer).WithMetrics(metrics)

	r.Dispatch(context.Background(), scheduleCreatedEvent("abc123"))

	unmatched := scheduleCreatedEvent("def456")
	unmatched.DetailType = "Other"
	r.Dispatch(context.Background(), unmatched)

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	if metrics.routed[true] != 1 || metrics.routed[false] != 1 {
		t.Errorf("routed = %v, want map[true:1 false:1]", metrics.routed)
	}
	if metrics.observeErrs != 2 {
		t.Errorf("observeErrs = %d, want 2", metrics.observeErrs)
	}
	if metrics.inFlightIncr != 2 || metrics.inFlightDecr != 2 {
		t.Errorf("in-flight incr/decr = %d/%d, want 2/2", metrics.inFlightIncr, metrics.inFlightDecr)
	}
}
