package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alem-hub/scorm-interceptor/internal/domain/statement"
)

const (
	insertEntrySQL = `
		INSERT INTO statement_journal (statement_id, verb, actor, outcome, error, statement, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	recentEntriesSQL = `
		SELECT statement, outcome, error, recorded_at
		FROM statement_journal
		ORDER BY recorded_at DESC, id DESC
		LIMIT $1`

	defaultRecentLimit = 100
)

// Journal stores entries in the statement_journal table.
type Journal struct {
	db Querier
}

// NewJournal creates a journal on db. Run the Migrator first.
func NewJournal(db Querier) *Journal {
	return &Journal{db: db}
}

// Record implements statement.Journal.
func (j *Journal) Record(ctx context.Context, entry statement.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	args, err := entryArgs(entry)
	if err != nil {
		return err
	}

	if _, err := j.db.Exec(ctx, insertEntrySQL, args...); err != nil {
		return fmt.Errorf("journal record: %w", err)
	}
	return nil
}

// Recent implements statement.Journal.
func (j *Journal) Recent(ctx context.Context, limit int) ([]statement.Entry, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	rows, err := j.db.Query(ctx, recentEntriesSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("journal recent: %w", err)
	}
	defer rows.Close()

	var entries []statement.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal recent: %w", err)
	}
	return entries, nil
}

// entryArgs returns the insert arguments in column order.
func entryArgs(e statement.Entry) ([]interface{}, error) {
	doc, err := json.Marshal(e.Statement)
	if err != nil {
		return nil, fmt.Errorf("journal record: marshal statement: %w", err)
	}

	recordedAt := e.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}

	return []interface{}{
		e.Statement.ID,
		e.Statement.Verb.Name,
		e.Statement.Actor.ID,
		string(e.Outcome),
		e.Error,
		doc,
		recordedAt.UTC(),
	}, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (statement.Entry, error) {
	var (
		e       statement.Entry
		doc     []byte
		outcome string
	)

	if err := row.Scan(&doc, &outcome, &e.Error, &e.RecordedAt); err != nil {
		return statement.Entry{}, fmt.Errorf("journal scan: %w", err)
	}
	if err := json.Unmarshal(doc, &e.Statement); err != nil {
		return statement.Entry{}, fmt.Errorf("journal scan: unmarshal statement: %w", err)
	}
	e.Outcome = statement.Outcome(outcome)

	return e, nil
}

var _ statement.Journal = (*Journal)(nil)
