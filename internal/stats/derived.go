package stats

import (
	"sort"
	"strings"
	"time"

	"github.com/kalambet/logbook/internal/storage"
)

// Orders holds the caller-configured canonical orders. A nil order falls back
// to count-descending.
type Orders struct {
	Category     []string
	Explicitness []string
	Moisture     []string
}

// PerDay counts records per calendar date, oldest date first.
func PerDay(records []storage.Record) []Entry {
	entries := GroupAndCount(records, ByDateKey).entries()
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Key < entries[j].Key
	})
	return entries
}

// PerWeekday counts records per weekday in Monday-first order.
func PerWeekday(records []storage.Record) []Entry {
	return OrderEntries(GroupAndCount(records, ByWeekday), WeekdayOrder)
}

// PerCategory counts records per category in the given canonical order.
func PerCategory(records []storage.Record, order []string) []Entry {
	return OrderEntries(GroupAndCount(records, ByCategory), order)
}

// PerGender counts records per gender tag, most frequent first.
func PerGender(records []storage.Record) []Entry {
	return OrderEntries(GroupAndCount(records, ByGender), nil)
}

// PerExplicitness counts records per explicitness tag in the given canonical order.
func PerExplicitness(records []storage.Record, order []string) []Entry {
	return OrderEntries(GroupAndCount(records, ByExplicitness), order)
}

// PerMoisture counts records per moisture tag in the given canonical order.
func PerMoisture(records []storage.Record, order []string) []Entry {
	return OrderEntries(GroupAndCount(records, ByMoisture), order)
}

// PerPerson counts records per person name, most frequent first.
// Records without a name are left out.
func PerPerson(records []storage.Record) []Entry {
	return OrderEntries(GroupAndCount(named(records), ByPerson), nil)
}

// YearHighlight counts named records of the given calendar year per person,
// most frequent first.
func YearHighlight(records []storage.Record, year int) []Entry {
	var inYear []storage.Record
	for _, r := range named(records) {
		if yearOf(r) == year {
			inYear = append(inYear, r)
		}
	}
	return OrderEntries(GroupAndCount(inYear, ByPerson), nil)
}

func named(records []storage.Record) []storage.Record {
	var out []storage.Record
	for _, r := range records {
		if strings.TrimSpace(r.PersonName) != "" {
			out = append(out, r)
		}
	}
	return out
}

// LastEntry describes the most recent record.
type LastEntry struct {
	ID         int64     `json:"id"`
	DateKey    string    `json:"dateKey"`
	Time       string    `json:"time"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Summary bundles every aggregation shown on the analytics view.
type Summary struct {
	Total           int        `json:"total"`
	Last            *LastEntry `json:"last,omitempty"`
	PerDay          []Entry    `json:"perDay"`
	PerWeekday      []Entry    `json:"perWeekday"`
	PerCategory     []Entry    `json:"perCategory"`
	PerGender       []Entry    `json:"perGender"`
	PerExplicitness []Entry    `json:"perExplicitness"`
	PerMoisture     []Entry    `json:"perMoisture"`
	PerPerson       []Entry    `json:"perPerson"`
	Year            int        `json:"year"`
	YearHighlight   []Entry    `json:"yearHighlight"`
}

// Summarize computes the analytics summary. now selects the highlight year.
func Summarize(records []storage.Record, now time.Time, orders Orders) Summary {
	s := Summary{
		Total:           len(records),
		PerDay:          PerDay(records),
		PerWeekday:      PerWeekday(records),
		PerCategory:     PerCategory(records, orders.Category),
		PerGender:       PerGender(records),
		PerExplicitness: PerExplicitness(records, orders.Explicitness),
		PerMoisture:     PerMoisture(records, orders.Moisture),
		PerPerson:       PerPerson(records),
		Year:            now.Year(),
		YearHighlight:   YearHighlight(records, now.Year()),
	}

	var last *storage.Record
	for i := range records {
		r := &records[i]
		if last == nil || r.OccurredAt.After(last.OccurredAt) ||
			(r.OccurredAt.Equal(last.OccurredAt) && r.ID > last.ID) {
			last = r
		}
	}
	if last != nil {
		s.Last = &LastEntry{
			ID:         last.ID,
			DateKey:    last.DateKey,
			Time:       last.OccurredAt.Format("15:04"),
			OccurredAt: last.OccurredAt,
		}
	}
	return s
}
