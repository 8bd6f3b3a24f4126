// Package channel provides the in-memory event bus between the change
// capture filter and the event router.
package channel

import (
	"context"
	"errors"
	"time"

	"github.com/EducloudHQ/ai-writer-scheduler/internal/domain"
)

// ErrBufferFull is returned when an emit times out because the buffer is full.
var ErrBufferFull = errors.New("event bus buffer full")

// DefaultEmitTimeout bounds how long Emit blocks on a full buffer.
const DefaultEmitTimeout = 5 * time.Second

// MetricsSink defines the interface for recording bus metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	BufferSizeUpdate(size int)
	BufferCapacitySet(capacity int)
	BufferSaturationUpdate(saturation float64)
	EmitError()
}

// Option configures the event bus.
type Option func(*EventBus)

// WithEmitTimeout overrides the default emit timeout.
func WithEmitTimeout(d time.Duration) Option {
	return func(b *EventBus) { b.emitTimeout = d }
}

// WithMetrics attaches a metrics sink to the bus.
func WithMetrics(sink MetricsSink) Option {
	return func(b *EventBus) { b.metrics = sink }
}

// EventBus is a bounded in-memory topic of domain events.
type EventBus struct {
	ch          chan domain.Event
	capacity    int
	emitTimeout time.Duration
	metrics     MetricsSink // optional, nil = disabled
}

// NewEventBus creates a bus with the given buffer size.
func NewEventBus(buffer int, opts ...Option) *EventBus {
	b := &EventBus{
		ch:          make(chan domain.Event, buffer),
		capacity:    buffer,
		emitTimeout: DefaultEmitTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.metrics != nil {
		b.metrics.BufferCapacitySet(b.capacity)
	}
	return b
}

// Emit places an event on the bus. It fails with ErrBufferFull when the
// buffer stays full past the emit timeout, or with the context error when
// ctx is cancelled first.
func (b *EventBus) Emit(ctx context.Context, event domain.Event) error {
	timer := time.NewTimer(b.emitTimeout)
	defer timer.Stop()

	select {
	case b.ch <- event:
		b.updateMetrics()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		if b.metrics != nil {
			b.metrics.EmitError()
		}
		return ErrBufferFull
	}
}

// Channel exposes the consuming side of the bus.
func (b *EventBus) Channel() <-chan domain.Event {
	return b.ch
}

func (b *EventBus) updateMetrics() {
	if b.metrics == nil {
		return
	}
	size := len(b.ch)
	b.metrics.BufferSizeUpdate(size)
	b.metrics.BufferSaturationUpdate(float64(size) / float64(b.capacity))
}
