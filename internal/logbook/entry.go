package logbook

import (
	"fmt"
	"time"

	"github.com/kalambet/logbook/internal/storage"
)

// Entry is the JSON view of a record.
type Entry struct {
	ID              int64     `json:"id"`
	OccurredAt      time.Time `json:"occurredAt"`
	DateKey         string    `json:"dateKey"`
	Time            string    `json:"time"`
	Weekday         string    `json:"weekday"`
	Category        string    `json:"category"`
	GenderTag       string    `json:"genderTag"`
	ExplicitnessTag string    `json:"explicitnessTag"`
	MoistureTag     string    `json:"moistureTag"`
	PersonName      string    `json:"personName"`
}

// EntryFrom converts r, rendering clock fields in loc.
func EntryFrom(r storage.Record, loc *time.Location) Entry {
	t := r.OccurredAt.In(loc)
	return Entry{
		ID:              r.ID,
		OccurredAt:      t,
		DateKey:         r.DateKey,
		Time:            t.Format("15:04"),
		Weekday:         t.Weekday().String()[:3],
		Category:        r.Category,
		GenderTag:       r.GenderTag,
		ExplicitnessTag: r.ExplicitnessTag,
		MoistureTag:     r.MoistureTag,
		PersonName:      r.PersonName,
	}
}

// Entries converts records in order. The result is never nil.
func Entries(records []storage.Record, loc *time.Location) []Entry {
	out := make([]Entry, 0, len(records))
	for _, r := range records {
		out = append(out, EntryFrom(r, loc))
	}
	return out
}

// EntryInput is the JSON body accepted when adding a record.
// OccurredAt defaults to now when empty.
type EntryInput struct {
	OccurredAt      string `json:"occurredAt"`
	Category        string `json:"category"`
	GenderTag       string `json:"genderTag"`
	ExplicitnessTag string `json:"explicitnessTag"`
	MoistureTag     string `json:"moistureTag"`
	PersonName      string `json:"personName"`
}

// localLayouts are accepted in addition to RFC 3339 and read in the service location.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseOccurredAt reads a user-supplied timestamp. An empty value means now.
func (s *Service) ParseOccurredAt(v string) (time.Time, error) {
	if v == "" {
		return s.clock.Now(), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, v, s.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", storage.ErrInvalidTimestamp, v)
}

// Input converts in to a RecordInput.
func (s *Service) Input(in EntryInput) (storage.RecordInput, error) {
	at, err := s.ParseOccurredAt(in.OccurredAt)
	if err != nil {
		return storage.RecordInput{}, err
	}
	return storage.RecordInput{
		OccurredAt:      at,
		Category:        in.Category,
		GenderTag:       in.GenderTag,
		ExplicitnessTag: in.ExplicitnessTag,
		MoistureTag:     in.MoistureTag,
		PersonName:      in.PersonName,
	}, nil
}
