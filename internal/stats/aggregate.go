// Package stats groups log records into counted, ordered series for the
// analytics views.
package stats

import (
	"sort"
	"strings"
	"time"

	"github.com/kalambet/logbook/internal/storage"
)

// Placeholder is the key used for records whose grouped attribute is empty.
const Placeholder = "—"

// UnknownRank is the rank given to keys missing from a canonical order.
const UnknownRank = 999

// Entry is one group in an ordered aggregation.
type Entry struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Counts is a key→count map that remembers the order in which keys were first seen.
type Counts struct {
	keys   []string
	counts map[string]int
}

// NewCounts returns an empty Counts.
func NewCounts() *Counts {
	return &Counts{counts: make(map[string]int)}
}

// Inc adds one to key.
func (c *Counts) Inc(key string) {
	if _, ok := c.counts[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.counts[key]++
}

// Get returns the count for key.
func (c *Counts) Get(key string) int {
	return c.counts[key]
}

// Keys returns the keys in first-seen order.
func (c *Counts) Keys() []string {
	return append([]string(nil), c.keys...)
}

// Len returns the number of distinct keys.
func (c *Counts) Len() int {
	return len(c.keys)
}

// Total returns the sum of all counts.
func (c *Counts) Total() int {
	n := 0
	for _, v := range c.counts {
		n += v
	}
	return n
}

// Map returns a copy of the counts as a plain map.
func (c *Counts) Map() map[string]int {
	m := make(map[string]int, len(c.counts))
	for k, v := range c.counts {
		m[k] = v
	}
	return m
}

// entries returns the groups in first-seen order.
func (c *Counts) entries() []Entry {
	out := make([]Entry, 0, len(c.keys))
	for _, k := range c.keys {
		out = append(out, Entry{Key: k, Count: c.counts[k]})
	}
	return out
}

// KeyFunc derives a grouping key from a record.
type KeyFunc func(storage.Record) string

// GroupAndCount applies keyFn to every record and counts each key.
func GroupAndCount(records []storage.Record, keyFn KeyFunc) *Counts {
	c := NewCounts()
	for _, r := range records {
		c.Inc(keyFn(r))
	}
	return c
}

// OrderEntries orders the groups of c.
//
// With a canonical order, groups sort by their index in it; keys missing from
// it rank UnknownRank and keep first-seen order among themselves. Without one,
// groups sort by count descending with first-seen order breaking ties.
func OrderEntries(c *Counts, canonical []string) []Entry {
	entries := c.entries()

	if len(canonical) > 0 {
		rank := make(map[string]int, len(canonical))
		for i, k := range canonical {
			if _, dup := rank[k]; !dup {
				rank[k] = i
			}
		}
		rankOf := func(k string) int {
			if r, ok := rank[k]; ok {
				return r
			}
			return UnknownRank
		}
		sort.SliceStable(entries, func(i, j int) bool {
			return rankOf(entries[i].Key) < rankOf(entries[j].Key)
		})
		return entries
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Count > entries[j].Count
	})
	return entries
}

// orEmpty maps an empty (after trimming) value to Placeholder.
func orEmpty(v string) string {
	if strings.TrimSpace(v) == "" {
		return Placeholder
	}
	return v
}

// ByDateKey groups by calendar date.
func ByDateKey(r storage.Record) string { return r.DateKey }

// ByCategory groups by category, with Placeholder for empty values.
func ByCategory(r storage.Record) string { return orEmpty(r.Category) }

// ByGender groups by gender tag, with Placeholder for empty values.
func ByGender(r storage.Record) string { return orEmpty(r.GenderTag) }

// ByExplicitness groups by explicitness tag, with Placeholder for empty values.
func ByExplicitness(r storage.Record) string { return orEmpty(r.ExplicitnessTag) }

// ByMoisture groups by moisture tag, with Placeholder for empty values.
func ByMoisture(r storage.Record) string { return orEmpty(r.MoistureTag) }

// ByPerson groups by trimmed person name.
func ByPerson(r storage.Record) string { return strings.TrimSpace(r.PersonName) }

// WeekdayOrder is the canonical Monday-first weekday order.
var WeekdayOrder = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// ByWeekday groups by the short weekday name of the record's calendar date.
func ByWeekday(r storage.Record) string {
	return weekdayOf(r).String()[:3]
}

func weekdayOf(r storage.Record) time.Weekday {
	if d, err := time.Parse(storage.DateKeyLayout, r.DateKey); err == nil {
		return d.Weekday()
	}
	return r.OccurredAt.Weekday()
}

func yearOf(r storage.Record) int {
	if d, err := time.Parse(storage.DateKeyLayout, r.DateKey); err == nil {
		return d.Year()
	}
	return r.OccurredAt.Year()
}
