package stats

import (
	"reflect"
	"testing"
	"time"

	"github.com/kalambet/logbook/internal/storage"
)

func rec(id int64, dateKey string) storage.Record {
	d, _ := time.Parse(storage.DateKeyLayout, dateKey)
	return storage.Record{ID: id, DateKey: dateKey, OccurredAt: d.Add(12 * time.Hour)}
}

func countsOf(pairs ...any) *Counts {
	c := NewCounts()
	for i := 0; i < len(pairs); i += 2 {
		k := pairs[i].(string)
		for n := 0; n < pairs[i+1].(int); n++ {
			c.Inc(k)
		}
	}
	return c
}

func TestGroupAndCount_SumsToLength(t *testing.T) {
	records := []storage.Record{
		{ID: 1, Category: "A"}, {ID: 2, Category: ""}, {ID: 3, Category: "A"},
		{ID: 4, Category: "B"}, {ID: 5, Category: "  "},
	}
	c := GroupAndCount(records, ByCategory)
	if c.Total() != len(records) {
		t.Errorf("Total = %d, want %d", c.Total(), len(records))
	}
	if got := c.Keys(); !reflect.DeepEqual(got, []string{"A", Placeholder, "B"}) {
		t.Errorf("Keys = %v, want first-seen order with placeholder", got)
	}
	if c.Get(Placeholder) != 2 {
		t.Errorf("placeholder count = %d, want 2", c.Get(Placeholder))
	}
}

func TestOrderEntries_CanonicalWinsOverCount(t *testing.T) {
	c := countsOf("Wed", 2, "Mon", 5, "Sun", 1)
	got := OrderEntries(c, WeekdayOrder)
	want := []Entry{{"Mon", 5}, {"Wed", 2}, {"Sun", 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("OrderEntries = %v, want %v", got, want)
	}
}

func TestOrderEntries_UnknownKeysAfterKnownInEncounterOrder(t *testing.T) {
	c := countsOf("zeta", 9, "B", 1, "alpha", 4, "A", 2)
	got := OrderEntries(c, []string{"A", "B"})
	want := []Entry{{"A", 2}, {"B", 1}, {"zeta", 9}, {"alpha", 4}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("OrderEntries = %v, want %v", got, want)
	}
}

func TestOrderEntries_CountDescendingStableTies(t *testing.T) {
	tests := []struct {
		name string
		c    *Counts
		want []Entry
	}{
		{"A before B", countsOf("A", 3, "B", 3, "C", 1), []Entry{{"A", 3}, {"B", 3}, {"C", 1}}},
		{"B before A", countsOf("B", 3, "A", 3, "C", 1), []Entry{{"B", 3}, {"A", 3}, {"C", 1}}},
		{"low first", countsOf("C", 1, "A", 3, "B", 3), []Entry{{"A", 3}, {"B", 3}, {"C", 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Repeat to catch any non-deterministic ordering.
			for i := 0; i < 20; i++ {
				got := OrderEntries(tt.c, nil)
				if !reflect.DeepEqual(got, tt.want) {
					t.Fatalf("OrderEntries = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestOrderEntries_Empty(t *testing.T) {
	got := OrderEntries(NewCounts(), WeekdayOrder)
	if got == nil || len(got) != 0 {
		t.Errorf("OrderEntries(empty) = %#v, want empty non-nil", got)
	}
}

func TestByWeekday(t *testing.T) {
	tests := []struct {
		date string
		want string
	}{
		{"2024-01-01", "Mon"},
		{"2024-01-03", "Wed"},
		{"2024-01-07", "Sun"},
		{"2024-01-06", "Sat"},
	}
	for _, tt := range tests {
		if got := ByWeekday(rec(1, tt.date)); got != tt.want {
			t.Errorf("ByWeekday(%s) = %q, want %q", tt.date, got, tt.want)
		}
	}
}

func TestScenario_PerDayAndPerWeekday(t *testing.T) {
	records := []storage.Record{rec(1, "2024-01-01"), rec(2, "2024-01-03"), rec(3, "2024-01-01")}

	day := PerDay(records)
	wantDay := []Entry{{"2024-01-01", 2}, {"2024-01-03", 1}}
	if !reflect.DeepEqual(day, wantDay) {
		t.Errorf("PerDay = %v, want %v", day, wantDay)
	}

	wd := PerWeekday(records)
	wantWd := []Entry{{"Mon", 2}, {"Wed", 1}}
	if !reflect.DeepEqual(wd, wantWd) {
		t.Errorf("PerWeekday = %v, want %v", wd, wantWd)
	}
}

func TestPerDay_SortedByDate(t *testing.T) {
	records := []storage.Record{rec(1, "2024-03-01"), rec(2, "2023-12-31"), rec(3, "2024-01-15")}
	got := PerDay(records)
	want := []Entry{{"2023-12-31", 1}, {"2024-01-15", 1}, {"2024-03-01", 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("PerDay = %v, want %v", got, want)
	}
}

func TestPerCategory_FixedOrder(t *testing.T) {
	records := []storage.Record{
		{Category: "C3"}, {Category: "C1"}, {Category: "C3"}, {Category: ""}, {Category: "other"},
	}
	got := PerCategory(records, []string{"C1", "C2", "C3"})
	want := []Entry{{"C1", 1}, {"C3", 2}, {Placeholder, 1}, {"other", 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("PerCategory = %v, want %v", got, want)
	}
}

func TestPerPerson_ExcludesEmptyNames(t *testing.T) {
	records := []storage.Record{
		{PersonName: "Sam"}, {PersonName: ""}, {PersonName: "Alex"}, {PersonName: "  "},
		{PersonName: "Alex"}, {PersonName: " Sam "},
	}
	got := PerPerson(records)
	want := []Entry{{"Sam", 2}, {"Alex", 2}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("PerPerson = %v, want %v", got, want)
	}
}

func TestYearHighlight(t *testing.T) {
	r := func(date, name string) storage.Record {
		x := rec(0, date)
		x.PersonName = name
		return x
	}
	records := []storage.Record{
		r("2023-12-31", "Old"),
		r("2024-01-01", "Alex"),
		r("2024-05-01", ""),
		r("2024-06-01", "Sam"),
		r("2024-07-01", "Sam"),
	}
	got := YearHighlight(records, 2024)
	want := []Entry{{"Sam", 2}, {"Alex", 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("YearHighlight = %v, want %v", got, want)
	}
	if got := YearHighlight(records, 2022); len(got) != 0 {
		t.Errorf("YearHighlight(2022) = %v, want empty", got)
	}
}

func TestSummarize(t *testing.T) {
	records := []storage.Record{rec(1, "2024-01-01"), rec(2, "2024-01-03"), rec(3, "2024-01-01")}
	records[1].PersonName = "Alex"
	records[0].MoistureTag = "Dry"

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	s := Summarize(records, now, Orders{Moisture: []string{"Wet", "Dry"}})

	if s.Total != 3 {
		t.Errorf("Total = %d, want 3", s.Total)
	}
	if s.Last == nil || s.Last.ID != 2 || s.Last.DateKey != "2024-01-03" || s.Last.Time != "12:00" {
		t.Errorf("Last = %+v, want record 2 at 12:00", s.Last)
	}
	if s.Year != 2024 || !reflect.DeepEqual(s.YearHighlight, []Entry{{"Alex", 1}}) {
		t.Errorf("YearHighlight = %d %v", s.Year, s.YearHighlight)
	}
	if !reflect.DeepEqual(s.PerMoisture, []Entry{{"Dry", 1}, {Placeholder, 2}}) {
		t.Errorf("PerMoisture = %v", s.PerMoisture)
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, time.Now(), Orders{})
	if s.Total != 0 || s.Last != nil {
		t.Errorf("Summarize(nil) = %+v", s)
	}
	if s.PerDay == nil || s.PerWeekday == nil || s.YearHighlight == nil {
		t.Error("empty series should be non-nil so they encode as []")
	}
}
