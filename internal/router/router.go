// Package router dispatches normalized domain events to their handlers
// and fans every event out to an observability sink.
package router

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/EducloudHQ/ai-writer-scheduler/internal/domain"
)

// Handler consumes an event delivered by a matching rule.
type Handler interface {
	Handle(ctx context.Context, event domain.Event) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, event domain.Event) error

func (f HandlerFunc) Handle(ctx context.Context, event domain.Event) error {
	return f(ctx, event)
}

// Observer receives a copy of every event regardless of rule matches.
// Observer failures are logged and never block routing.
type Observer interface {
	Observe(ctx context.Context, event domain.Event) error
}

// MetricsSink defines the interface for recording router metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	EventRouted(matched bool)
	ObserveError()
	EventsInFlightIncr()
	EventsInFlightDecr()
}

// Rule matches events by exact source and detail-type strings.
type Rule struct {
	Source     string
	DetailType string
	Handler    Handler
}

func (r Rule) matches(event domain.Event) bool {
	return event.Source == r.Source && event.DetailType == r.DetailType
}

// Router fans events out to matching rules and the observer. The
// observer and matching rules fire independently; this is fan-out, not a
// priority chain.
type Router struct {
	rules        []Rule
	observer     Observer    // optional, nil = disabled
	metrics      MetricsSink // optional, nil = disabled
	drainTimeout time.Duration
}

// DrainTimeout is the default maximum time to wait for buffered events
// during shutdown.
const DrainTimeout = 30 * time.Second

// New creates a router with the given rules.
func New(rules ...Rule) *Router {
	return &Router{rules: rules, drainTimeout: DrainTimeout}
}

// WithObserver attaches the catch-all observability sink.
func (r *Router) WithObserver(obs Observer) *Router {
	r.observer = obs
	return r
}

// WithMetrics attaches a metrics sink to the router.
func (r *Router) WithMetrics(sink MetricsSink) *Router {
	r.metrics = sink
	return r
}

// WithDrainTimeout overrides the shutdown drain timeout.
func (r *Router) WithDrainTimeout(d time.Duration) *Router {
	r.drainTimeout = d
	return r
}

// Run processes events from the channel until the context is cancelled.
// After cancellation, it drains remaining buffered events with a timeout.
func (r *Router) Run(ctx context.Context, ch <-chan domain.Event) {
	for {
		select {
		case <-ctx.Done():
			r.drain(ch)
			return
		case event := <-ch:
			if err := r.Dispatch(ctx, event); err != nil {
				log.Printf("router: error: %v", err)
			}
		}
	}
}

// drain processes remaining events in the channel buffer after the
// shutdown signal. Uses a background context since the main context is
// already cancelled.
func (r *Router) drain(ch <-chan domain.Event) {
	drainCtx, cancel := context.WithTimeout(context.Background(), r.drainTimeout)
	defer cancel()

	count := 0
	for {
		select {
		case <-drainCtx.Done():
			if count > 0 {
				log.Printf("router: drain timeout, processed %d events", count)
			}
			return
		case event, ok := <-ch:
			if !ok {
				log.Printf("router: drain complete, processed %d events", count)
				return
			}
			if err := r.Dispatch(drainCtx, event); err != nil {
				log.Printf("router: drain error: %v", err)
			}
			count++
		default:
			if count > 0 {
				log.Printf("router: drain complete, processed %d events", count)
			}
			return
		}
	}
}

// Dispatch delivers one event: the observer copy first, then every
// matching rule. Handler errors are joined and returned to the caller.
func (r *Router) Dispatch(ctx context.Context, event domain.Event) error {
	if r.metrics != nil {
		r.metrics.EventsInFlightIncr()
		defer r.metrics.EventsInFlightDecr()
	}

	if r.observer != nil {
		if err := r.observer.Observe(ctx, event); err != nil {
			log.Printf("router: observer error for record=%s: %v",
				event.Detail.ScheduledContent.ID, err)
			if r.metrics != nil {
				r.metrics.ObserveError()
			}
		}
	}

	matched := false
	var firstErr error
	for _, rule := range r.rules {
		if !rule.matches(event) {
			continue
		}
		matched = true
		if err := rule.Handler.Handle(ctx, event); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("handle (%s, %s) record=%s: %w",
					rule.Source, rule.DetailType, event.Detail.ScheduledContent.ID, err)
			}
		}
	}

	if r.metrics != nil {
		r.metrics.EventRouted(matched)
	}
	if !matched {
		log.Printf("router: no rule matched source=%q detail-type=%q", event.Source, event.DetailType)
	}
	return firstErr
}
