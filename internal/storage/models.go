package storage

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStoreUnavailable is returned when the database cannot be created, opened or reached.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInvalidTimestamp is returned by Add when OccurredAt is not a usable instant.
	// Nothing is written.
	ErrInvalidTimestamp = errors.New("invalid timestamp")

	// ErrMigrationFailed is returned by Open when a schema migration cannot be applied.
	ErrMigrationFailed = errors.New("migration failed")
)

// DateKeyLayout is the calendar-date format of Record.DateKey.
const DateKeyLayout = "2006-01-02"

// Record is one persisted log entry. ID is its only identity: two records may
// otherwise be identical.
type Record struct {
	ID              int64
	OccurredAt      time.Time
	DateKey         string // YYYY-MM-DD of OccurredAt in the store's location
	Category        string
	GenderTag       string
	ExplicitnessTag string
	MoistureTag     string
	PersonName      string
	CreatedAt       time.Time // zero for rows written before created_at existed
}

// RecordInput carries the caller-supplied fields of a new record.
type RecordInput struct {
	OccurredAt      time.Time
	Category        string
	GenderTag       string
	ExplicitnessTag string
	MoistureTag     string
	PersonName      string
}

// ValidInstant reports whether t can be stored as OccurredAt.
func ValidInstant(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	y := t.Year()
	return y >= 1 && y <= 9999
}
