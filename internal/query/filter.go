// Package query selects and orders log records for the history view.
package query

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/kalambet/logbook/internal/storage"
)

// Field names a record attribute that can be constrained by a predicate.
type Field string

const (
	FieldDate         Field = "date"
	FieldCategory     Field = "category"
	FieldGender       Field = "gender"
	FieldExplicitness Field = "explicitness"
	FieldMoisture     Field = "moisture"
	FieldPerson       Field = "person"
)

// Fields lists every filterable field in display order.
var Fields = []Field{FieldDate, FieldCategory, FieldGender, FieldExplicitness, FieldMoisture, FieldPerson}

var (
	// ErrUnknownField is returned by ParseField for a name that is not filterable.
	ErrUnknownField = errors.New("unknown filter field")

	// ErrInvalidDate is returned by ValidateDate for a value that is not YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date")
)

// Predicates maps a field to the exact value it must equal. An empty value
// places no constraint on that field.
type Predicates map[Field]string

// ParseField validates a field name.
func ParseField(name string) (Field, error) {
	for _, f := range Fields {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, name)
}

// ValidateDate checks that s is empty or a calendar date in DateKey form.
func ValidateDate(s string) error {
	if s == "" {
		return nil
	}
	if _, err := time.Parse(storage.DateKeyLayout, s); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return nil
}

// PredicatesFromValues builds predicates from query parameters, keeping only
// filterable fields. Unknown parameters are ignored.
func PredicatesFromValues(v url.Values) Predicates {
	p := Predicates{}
	for _, f := range Fields {
		if val := v.Get(string(f)); val != "" {
			p[f] = val
		}
	}
	return p
}

// Value returns the attribute of r that f refers to.
func (f Field) Value(r storage.Record) string {
	switch f {
	case FieldDate:
		return r.DateKey
	case FieldCategory:
		return r.Category
	case FieldGender:
		return r.GenderTag
	case FieldExplicitness:
		return r.ExplicitnessTag
	case FieldMoisture:
		return r.MoistureTag
	case FieldPerson:
		return r.PersonName
	}
	return ""
}

// Matches reports whether r satisfies every non-empty predicate.
// Comparison is exact and case-sensitive.
func (p Predicates) Matches(r storage.Record) bool {
	for f, want := range p {
		if want == "" {
			continue
		}
		if f.Value(r) != want {
			return false
		}
	}
	return true
}

// Apply returns the records that satisfy p, in their input order.
// The input slice is not modified.
func Apply(records []storage.Record, p Predicates) []storage.Record {
	out := make([]storage.Record, 0, len(records))
	for _, r := range records {
		if p.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// SortNewestFirst orders records by OccurredAt descending, then id descending.
func SortNewestFirst(records []storage.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.OccurredAt.Equal(b.OccurredAt) {
			return a.OccurredAt.After(b.OccurredAt)
		}
		return a.ID > b.ID
	})
}

// SortOldestFirst orders records by OccurredAt ascending, then id ascending.
func SortOldestFirst(records []storage.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.OccurredAt.Equal(b.OccurredAt) {
			return a.OccurredAt.Before(b.OccurredAt)
		}
		return a.ID < b.ID
	})
}
