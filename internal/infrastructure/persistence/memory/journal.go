// Package memory implements an in-process statement journal.
package memory

import (
	"context"
	"sync"

	"github.com/alem-hub/scorm-interceptor/internal/domain/statement"
)

// DefaultSize is the number of entries kept when no size is given.
const DefaultSize = 1000

// Journal keeps the most recent entries in a fixed-size ring.
type Journal struct {
	mu      sync.RWMutex
	entries []statement.Entry
	next    int
	full    bool
}

// NewJournal creates a journal holding at most size entries.
func NewJournal(size int) *Journal {
	if size <= 0 {
		size = DefaultSize
	}
	return &Journal{entries: make([]statement.Entry, size)}
}

// Record implements statement.Journal.
func (j *Journal) Record(_ context.Context, entry statement.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	j.entries[j.next] = entry
	j.next = (j.next + 1) % len(j.entries)
	if j.next == 0 {
		j.full = true
	}
	return nil
}

// Recent implements statement.Journal.
func (j *Journal) Recent(_ context.Context, limit int) ([]statement.Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	n := j.lenLocked()
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]statement.Entry, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (j.next - i + len(j.entries)) % len(j.entries)
		out = append(out, j.entries[idx])
	}
	return out, nil
}

// Len returns the number of entries held.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.lenLocked()
}

func (j *Journal) lenLocked() int {
	if j.full {
		return len(j.entries)
	}
	return j.next
}

var _ statement.Journal = (*Journal)(nil)
