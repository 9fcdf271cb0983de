// Package state keeps the query history of a sqlfence deployment in SQLite.
// Every pipeline run, successful or not, is recorded as one Entry.
package state

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when no entry has the requested id.
var ErrNotFound = errors.New("history entry not found")

// Status is the outcome of one pipeline run.
type Status string

// Run outcomes.
const (
	StatusSucceeded Status = "succeeded"
	StatusRejected  Status = "rejected"
	StatusFailed    Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusSucceeded, StatusRejected, StatusFailed:
		return true
	}
	return false
}

// Entry is one recorded pipeline run.
type Entry struct {
	ID        string        `json:"id"`
	Prompt    string        `json:"prompt"`
	SQL       string        `json:"sql"`
	Status    Status        `json:"status"`
	Error     string        `json:"error,omitempty"`
	RowCount  int           `json:"row_count"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"created_at"`
}

// Filter narrows List. Zero values mean no restriction, except Limit which
// falls back to DefaultListLimit.
type Filter struct {
	Status Status
	Limit  int
}

// DefaultListLimit bounds List when Filter.Limit is unset.
const DefaultListLimit = 50

// Store persists history entries.
type Store interface {
	// Record inserts e, assigning ID and CreatedAt when they are empty.
	Record(ctx context.Context, e *Entry) error
	// Get returns the entry with the given id or ErrNotFound.
	Get(ctx context.Context, id string) (*Entry, error)
	// List returns entries newest first.
	List(ctx context.Context, f Filter) ([]*Entry, error)
	// Close releases the underlying database.
	Close() error
}
