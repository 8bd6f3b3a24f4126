// Package postgres implements feed.Source against a PostgreSQL change
// feed.
//
// The change_feed table is an append-only log of row changes with a
// monotonically increasing seq; feed_cursors tracks the last consumed
// seq per consumer name. The cursor upsert is guarded so it never moves
// backwards even under concurrent writers.
package postgres

import (
	"context"
	"database/sql"

	"github.com/EducloudHQ/ai-writer-scheduler/internal/capture"
	"github.com/EducloudHQ/ai-writer-scheduler/internal/feed"
)

// DefaultConsumer is the cursor name the scheduler pipeline commits
// under.
const DefaultConsumer = "scheduler-pipeline"

// Source reads the change feed from PostgreSQL.
type Source struct {
	db       *sql.DB
	consumer string
}

// New creates a Source with the given database connection.
func New(db *sql.DB) *Source {
	return &Source{db: db, consumer: DefaultConsumer}
}

// WithConsumer overrides the cursor name.
func (s *Source) WithConsumer(name string) *Source {
	s.consumer = name
	return s
}

// LoadCursor returns the last committed sequence for the consumer,
// zero if the consumer has never committed.
func (s *Source) LoadCursor(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, queryLoadCursor, s.consumer).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return seq, nil
}

// FetchEntries returns up to limit entries with seq > afterSeq in
// ascending order.
func (s *Source) FetchEntries(ctx context.Context, afterSeq int64, limit int) ([]capture.Entry, error) {
	rows, err := s.db.QueryContext(ctx, queryFetchEntries, afterSeq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []capture.Entry
	for rows.Next() {
		var entry capture.Entry
		if err := rows.Scan(&entry.Seq, &entry.EventKind, &entry.EntityType, &entry.RowImage); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// CommitCursor durably records seq as consumed for the consumer.
func (s *Source) CommitCursor(ctx context.Context, seq int64) error {
	_, err := s.db.ExecContext(ctx, queryCommitCursor, s.consumer, seq)
	return err
}

// Compile-time interface assertion
var _ feed.Source = (*Source)(nil)
