// Package creator is the schedule-creation path the event router targets:
// compile the fire time, then register the one-shot job.
package creator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/EducloudHQ/ai-writer-scheduler/internal/domain"
	"github.com/EducloudHQ/ai-writer-scheduler/internal/timeexpr"
)

// Registrar registers one-shot jobs for records.
type Registrar interface {
	Register(ctx context.Context, record domain.ScheduledContentRecord, expr timeexpr.FireExpression) (domain.ScheduleJob, error)
}

// MetricsSink defines the interface for recording creator metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	ScheduleRejectedPast()
}

// Creator handles ScheduleContentCreated events.
type Creator struct {
	registrar Registrar
	clock     func() time.Time
	metrics   MetricsSink // optional, nil = disabled
}

// New creates a Creator.
func New(registrar Registrar) *Creator {
	return &Creator{
		registrar: registrar,
		clock:     time.Now,
	}
}

// WithMetrics attaches a metrics sink to the creator.
func (c *Creator) WithMetrics(sink MetricsSink) *Creator {
	c.metrics = sink
	return c
}

// Handle compiles the record's fire time and registers the job.
//
// A past schedule is terminal for the event: a redelivered identical
// event would fail identically, so it is logged with the computed diff
// and consumed rather than propagated. Registration failures propagate
// to the caller's retry machinery.
func (c *Creator) Handle(ctx context.Context, event domain.Event) error {
	record := event.Detail.ScheduledContent

	// The clock is read once; the compiler never re-reads it.
	now := c.clock()

	expr, err := timeexpr.Compile(record.Schedule, now)
	if err != nil {
		var pastErr *timeexpr.PastScheduleError
		if errors.As(err, &pastErr) {
			log.Printf("creator: record=%s schedule is past (candidate=%s diff=%dm), dropping",
				record.ID, pastErr.CandidateAt.Format("2006-01-02T15:04:05"), pastErr.DiffMinutes)
			if c.metrics != nil {
				c.metrics.ScheduleRejectedPast()
			}
			return nil
		}
		// Invalid calendar fields slipped past boundary validation.
		log.Printf("creator: record=%s invalid schedule: %v, dropping", record.ID, err)
		return nil
	}

	if _, err := c.registrar.Register(ctx, record, expr); err != nil {
		return fmt.Errorf("record=%s: %w", record.ID, err)
	}
	return nil
}
