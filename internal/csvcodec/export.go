package csvcodec

import (
	"sort"
	"time"

	"github.com/kalambet/logbook/internal/storage"
)

// ExportHeader is the first row of a record export.
var ExportHeader = []any{
	"ISO Date", "Time", "Weekday", "Category",
	"GenderTag", "ExplicitnessTag", "MoistureTag", "PersonName",
}

// ExportRows returns the header followed by one row per record, oldest first.
// Times are rendered as HH:MM in loc.
func ExportRows(records []storage.Record, loc *time.Location) [][]any {
	if loc == nil {
		loc = time.Local
	}
	sorted := append([]storage.Record(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].OccurredAt.Equal(sorted[j].OccurredAt) {
			return sorted[i].OccurredAt.Before(sorted[j].OccurredAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	rows := make([][]any, 0, len(sorted)+1)
	rows = append(rows, ExportHeader)
	for _, r := range sorted {
		t := r.OccurredAt.In(loc)
		rows = append(rows, []any{
			r.DateKey,
			t.Format("15:04"),
			t.Weekday().String()[:3],
			r.Category,
			r.GenderTag,
			r.ExplicitnessTag,
			r.MoistureTag,
			r.PersonName,
		})
	}
	return rows
}

// Export renders records as CSV text with the export header.
func Export(records []storage.Record, loc *time.Location) string {
	return Encode(ExportRows(records, loc))
}
