package statement

import (
	"context"
	"errors"
	"time"
)

// Outcome is the delivery result recorded for a dispatched statement.
type Outcome string

const (
	OutcomeSent   Outcome = "sent"
	OutcomeFailed Outcome = "failed"
)

// ErrInvalidEntry is returned when an entry cannot be recorded.
var ErrInvalidEntry = errors.New("invalid journal entry")

// Entry is one journaled delivery attempt.
type Entry struct {
	Statement  Statement `json:"statement"`
	Outcome    Outcome   `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	RecordedAt time.Time `json:"recordedAt"`
}

// NewEntry builds the entry for a finished delivery attempt.
func NewEntry(st Statement, sendErr error, at time.Time) Entry {
	e := Entry{
		Statement:  st,
		Outcome:    OutcomeSent,
		RecordedAt: at,
	}
	if sendErr != nil {
		e.Outcome = OutcomeFailed
		e.Error = sendErr.Error()
	}
	return e
}

// Validate checks the fields every backend relies on.
func (e Entry) Validate() error {
	if e.Statement.ID == "" {
		return errors.Join(ErrInvalidEntry, errors.New("statement id is empty"))
	}
	if e.Outcome != OutcomeSent && e.Outcome != OutcomeFailed {
		return errors.Join(ErrInvalidEntry, errors.New("unknown outcome "+string(e.Outcome)))
	}
	return nil
}

// Journal records dispatched statements. It is an audit log: nothing is
// ever re-sent from it.
type Journal interface {
	// Record appends an entry.
	Record(ctx context.Context, entry Entry) error

	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)
}
