// Package feed drives the pipeline's intake: it polls the change feed
// for new entries past a committed cursor and hands each entry to the
// capture filter.
//
// The cursor is committed only after every entry of a batch was handed
// off, so a crash mid-batch redelivers the batch. Downstream
// registration is idempotent by job name, which makes redelivery safe.
package feed

import (
	"context"
	"log"
	"time"

	"github.com/EducloudHQ/ai-writer-scheduler/internal/capture"
)

// Source reads change-feed entries and tracks the consumer cursor.
type Source interface {
	// LoadCursor returns the last committed sequence, zero when the
	// consumer has never committed.
	LoadCursor(ctx context.Context) (int64, error)

	// FetchEntries returns up to limit entries with Seq > afterSeq in
	// ascending sequence order.
	FetchEntries(ctx context.Context, afterSeq int64, limit int) ([]capture.Entry, error)

	// CommitCursor durably records the given sequence as consumed.
	CommitCursor(ctx context.Context, seq int64) error
}

// Processor consumes one raw entry. Errors abort the current batch
// before the cursor moves.
type Processor interface {
	Process(ctx context.Context, entry capture.Entry) error
}

// MetricsSink defines the interface for recording poller metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	PollCycleStarted()
	PollCycleCompleted(duration time.Duration, entries int, err error)
}

// Config holds poller configuration.
type Config struct {
	// Interval is how often the feed is polled.
	// Default: 2 seconds.
	Interval time.Duration

	// BatchSize is the maximum number of entries fetched per cycle.
	// Default: 100.
	BatchSize int
}

// DefaultConfig returns the default poller configuration.
func DefaultConfig() Config {
	return Config{
		Interval:  2 * time.Second,
		BatchSize: 100,
	}
}

// Poller polls the change feed and feeds the capture filter.
type Poller struct {
	config    Config
	source    Source
	processor Processor
	metrics   MetricsSink // optional, nil = disabled
	clock     func() time.Time
}

// New creates a new Poller.
func New(config Config, source Source, processor Processor) *Poller {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	return &Poller{
		config:    config,
		source:    source,
		processor: processor,
		clock:     time.Now,
	}
}

// WithMetrics attaches a metrics sink to the poller.
func (p *Poller) WithMetrics(sink MetricsSink) *Poller {
	p.metrics = sink
	return p
}

// Run starts the polling loop. It blocks until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	log.Printf("feed: started (interval=%s, batch=%d)", p.config.Interval, p.config.BatchSize)

	// Run immediately on startup, then on ticker.
	p.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("feed: stopped")
			return
		case <-ticker.C:
			p.runCycle(ctx)
		}
	}
}

// runCycle fetches one batch past the cursor and processes it in
// sequence order.
func (p *Poller) runCycle(ctx context.Context) {
	if p.metrics != nil {
		p.metrics.PollCycleStarted()
	}
	start := p.clock()

	processed, err := p.consumeBatch(ctx)

	if p.metrics != nil {
		p.metrics.PollCycleCompleted(p.clock().Sub(start), processed, err)
	}
	if err != nil {
		// Cursor did not move; the next cycle retries the batch.
		log.Printf("feed: cycle aborted after %d entries: %v", processed, err)
	}
}

func (p *Poller) consumeBatch(ctx context.Context) (int, error) {
	cursor, err := p.source.LoadCursor(ctx)
	if err != nil {
		return 0, err
	}

	entries, err := p.source.FetchEntries(ctx, cursor, p.config.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		// Nothing to do. Silent success.
		return 0, nil
	}

	for i, entry := range entries {
		// Check context before each entry to allow graceful shutdown.
		if ctx.Err() != nil {
			log.Printf("feed: cycle interrupted, processed %d/%d entries", i, len(entries))
			return i, ctx.Err()
		}
		if err := p.processor.Process(ctx, entry); err != nil {
			return i, err
		}
	}

	last := entries[len(entries)-1].Seq
	if err := p.source.CommitCursor(ctx, last); err != nil {
		return len(entries), err
	}

	log.Printf("feed: cycle complete, processed=%d cursor=%d", len(entries), last)
	return len(entries), nil
}
