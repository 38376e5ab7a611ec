package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-switch/internal/command"
)

// Logger defines the logging interface used by the journal.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Entry is one recorded report.
type Entry struct {
	ID        int64
	Feature   string
	Topic     string
	Payload   string
	Value     string
	Published bool
	CreatedAt time.Time
}

// Journal reads and writes the state_journal table.
type Journal struct {
	db     *sql.DB
	now    func() time.Time
	logger Logger
}

// New creates a journal over an open, migrated database.
//
// Parameters:
//   - db: SQLite connection with the state_journal table
//
// Returns:
//   - *Journal: Journal ready for use
func New(db *sql.DB) *Journal {
	return &Journal{db: db, now: time.Now, logger: noopLogger{}}
}

// SetLogger sets the logger used by Retain.
func (j *Journal) SetLogger(logger Logger) {
	j.logger = logger
}

// Record appends a report. published says whether the broker accepted it.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - report: Report produced by a handler
//   - published: Outcome of the publish
//
// Returns:
//   - error: ErrFeatureRequired or the underlying database error
func (j *Journal) Record(ctx context.Context, report command.Report, published bool) error {
	if report.Feature == "" {
		return ErrFeatureRequired
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO state_journal (feature, topic, payload, value, published, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		report.Feature,
		report.Topic,
		report.Payload,
		report.Value,
		published,
		j.now().UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("inserting journal entry: %w", err)
	}
	return nil
}

// Latest returns the newest entry for a feature, or ErrNotFound.
func (j *Journal) Latest(ctx context.Context, feature string) (Entry, error) {
	if feature == "" {
		return Entry{}, ErrFeatureRequired
	}

	row := j.db.QueryRowContext(ctx,
		`SELECT id, feature, topic, payload, value, published, created_at
		 FROM state_journal
		 WHERE feature = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		feature,
	)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return e, err
}

// Prune deletes entries older than the given age, keeping the newest entry
// of every feature so Restore still has a value to work from.
//
// Returns:
//   - int64: Number of rows deleted
//   - error: nil on success, otherwise the underlying database error
func (j *Journal) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := j.now().UTC().Add(-olderThan).UnixNano()
	result, err := j.db.ExecContext(ctx,
		`DELETE FROM state_journal
		 WHERE created_at < ?
		   AND id NOT IN (
		       SELECT MAX(id) FROM state_journal GROUP BY feature
		   )`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("pruning journal: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

// Retain prunes entries older than olderThan once every interval until ctx
// is cancelled. Failures are logged and retried on the next interval.
//
// Parameters:
//   - ctx: Context whose cancellation stops the loop
//   - olderThan: Retention window passed to Prune
//   - every: Time between prunes
func (j *Journal) Retain(ctx context.Context, olderThan, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := j.Prune(ctx, olderThan)
			if err != nil {
				if ctx.Err() == nil {
					j.logger.Error("pruning journal failed", "error", err)
				}
				continue
			}
			if n > 0 {
				j.logger.Debug("journal pruned", "deleted", n, "older_than", olderThan)
			}
		}
	}
}

// Restore sets every handler to its feature's latest recorded value.
// Features with no entries are left untouched.
//
// Returns:
//   - int: Number of handlers restored
//   - error: The first query error; handlers before it stay restored
func (j *Journal) Restore(ctx context.Context, handlers ...command.Handler) (int, error) {
	n := 0
	for _, h := range handlers {
		e, err := j.Latest(ctx, h.Feature())
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return n, fmt.Errorf("restoring %s: %w", h.Feature(), err)
		}
		h.Restore(e.Value)
		n++
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var e Entry
	var createdAt int64
	if err := s.Scan(&e.ID, &e.Feature, &e.Topic, &e.Payload, &e.Value, &e.Published, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("scanning journal entry: %w", err)
	}
	e.CreatedAt = time.Unix(0, createdAt).UTC()
	return e, nil
}
