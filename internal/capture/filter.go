// Package capture narrows raw change-feed entries to newly inserted
// scheduled-content rows and reshapes them into normalized domain events.
package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/EducloudHQ/ai-writer-scheduler/internal/domain"
)

// EventKindInsert is the change-feed kind for newly inserted rows.
// Updates and deletes never enter the pipeline.
const EventKindInsert = "INSERT"

// Entry is a raw change-feed entry: an inserted row image plus an
// event-kind tag. Seq is the feed's delivery position.
type Entry struct {
	Seq        int64
	EventKind  string
	EntityType string
	RowImage   json.RawMessage
}

// MalformedEventError reports a change-feed entry that passed the filter
// but is missing required fields. Entries failing this way are dropped
// with a log line; the feed continues.
type MalformedEventError struct {
	Seq      int64
	RecordID string
	Err      error
}

func (e *MalformedEventError) Error() string {
	if e.RecordID != "" {
		return fmt.Sprintf("malformed change-feed entry seq=%d record=%s: %v", e.Seq, e.RecordID, e.Err)
	}
	return fmt.Sprintf("malformed change-feed entry seq=%d: %v", e.Seq, e.Err)
}

func (e *MalformedEventError) Unwrap() error { return e.Err }

// EventEmitter places normalized events on the internal bus.
type EventEmitter interface {
	Emit(ctx context.Context, event domain.Event) error
}

// MetricsSink defines the interface for recording capture metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	EntryCaptured()
	EntryDropped(reason string)
}

// Capture is the change capture filter. Stateless per entry; safe for
// concurrent use.
type Capture struct {
	emitter EventEmitter
	metrics MetricsSink // optional, nil = disabled
}

// New creates a capture filter emitting onto the given bus.
func New(emitter EventEmitter) *Capture {
	return &Capture{emitter: emitter}
}

// WithMetrics attaches a metrics sink to the capture filter.
func (c *Capture) WithMetrics(sink MetricsSink) *Capture {
	c.metrics = sink
	return c
}

// Process inspects one raw entry and emits zero or one domain event.
// Non-insert and non-scheduled-content entries are dropped silently.
// Malformed row images are dropped with a log entry and are never a
// pipeline failure. Only emit failures propagate.
func (c *Capture) Process(ctx context.Context, entry Entry) error {
	event, ok, err := filterEntry(entry)
	if err != nil {
		log.Printf("capture: dropping entry: %v", err)
		if c.metrics != nil {
			c.metrics.EntryDropped("malformed")
		}
		return nil
	}
	if !ok {
		if c.metrics != nil {
			c.metrics.EntryDropped(dropReason(entry))
		}
		return nil
	}

	if err := c.emitter.Emit(ctx, event); err != nil {
		return fmt.Errorf("emit seq=%d record=%s: %w", entry.Seq, event.Detail.ScheduledContent.ID, err)
	}
	if c.metrics != nil {
		c.metrics.EntryCaptured()
	}
	log.Printf("capture: captured record=%s user=%s seq=%d",
		event.Detail.ScheduledContent.ID, event.Detail.ScheduledContent.UserID, entry.Seq)
	return nil
}

// filterEntry narrows and reshapes a raw entry. The bool reports whether
// the entry survived the filter; a MalformedEventError means it matched
// the filter but failed the validating parse.
func filterEntry(entry Entry) (domain.Event, bool, error) {
	if entry.EventKind != EventKindInsert {
		return domain.Event{}, false, nil
	}

	var record domain.ScheduledContentRecord
	if err := json.Unmarshal(entry.RowImage, &record); err != nil {
		return domain.Event{}, false, &MalformedEventError{Seq: entry.Seq, Err: err}
	}

	if record.Entity != domain.EntityScheduledContent {
		return domain.Event{}, false, nil
	}

	if err := record.Validate(); err != nil {
		return domain.Event{}, false, &MalformedEventError{Seq: entry.Seq, RecordID: record.ID, Err: err}
	}

	return domain.Event{
		Source:     domain.EventSourceScheduledContent,
		DetailType: domain.EventTypeScheduleCreated,
		Detail:     domain.EventDetail{ScheduledContent: record},
	}, true, nil
}

func dropReason(entry Entry) string {
	if entry.EventKind != EventKindInsert {
		return "event_kind"
	}
	return "entity"
}
