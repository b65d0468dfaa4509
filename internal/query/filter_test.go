package query

import (
	"errors"
	"net/url"
	"reflect"
	"testing"
	"time"

	"github.com/kalambet/logbook/internal/storage"
)

func sample() []storage.Record {
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	return []storage.Record{
		{ID: 1, OccurredAt: base, DateKey: "2024-01-01", Category: "X", GenderTag: "F", PersonName: "Alex"},
		{ID: 2, OccurredAt: base.Add(48 * time.Hour), DateKey: "2024-01-03", Category: "Y", GenderTag: "M"},
		{ID: 3, OccurredAt: base.Add(time.Hour), DateKey: "2024-01-01", Category: "X", GenderTag: "M", ExplicitnessTag: "With"},
		{ID: 4, OccurredAt: base.Add(72 * time.Hour), DateKey: "2024-01-04", Category: "x", MoistureTag: "Dry"},
	}
}

func ids(records []storage.Record) []int64 {
	out := make([]int64, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestApply_NoPredicatesReturnsAllInOrder(t *testing.T) {
	in := sample()
	for _, p := range []Predicates{nil, {}, {FieldCategory: ""}} {
		got := Apply(in, p)
		if !reflect.DeepEqual(ids(got), []int64{1, 2, 3, 4}) {
			t.Errorf("Apply(%v) = %v, want all in order", p, ids(got))
		}
	}
}

func TestApply(t *testing.T) {
	tests := []struct {
		name string
		p    Predicates
		want []int64
	}{
		{"category exact", Predicates{FieldCategory: "X"}, []int64{1, 3}},
		{"case sensitive", Predicates{FieldCategory: "x"}, []int64{4}},
		{"date", Predicates{FieldDate: "2024-01-01"}, []int64{1, 3}},
		{"combined", Predicates{FieldCategory: "X", FieldGender: "M"}, []int64{3}},
		{"explicitness", Predicates{FieldExplicitness: "With"}, []int64{3}},
		{"moisture", Predicates{FieldMoisture: "Dry"}, []int64{4}},
		{"person", Predicates{FieldPerson: "Alex"}, []int64{1}},
		{"no match", Predicates{FieldCategory: "Z"}, []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(sample(), tt.p)
			if !reflect.DeepEqual(ids(got), tt.want) {
				t.Errorf("Apply = %v, want %v", ids(got), tt.want)
			}
		})
	}
}

func TestApply_Idempotent(t *testing.T) {
	p := Predicates{FieldCategory: "X"}
	once := Apply(sample(), p)
	twice := Apply(once, p)
	if !reflect.DeepEqual(ids(once), ids(twice)) {
		t.Errorf("reapplying changed result: %v -> %v", ids(once), ids(twice))
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	in := sample()
	_ = Apply(in, Predicates{FieldCategory: "Y"})
	if !reflect.DeepEqual(ids(in), []int64{1, 2, 3, 4}) {
		t.Errorf("input mutated: %v", ids(in))
	}
}

func TestPredicatesFromValues(t *testing.T) {
	v := url.Values{}
	v.Set("category", "X")
	v.Set("date", "2024-01-01")
	v.Set("limit", "5")
	v.Set("gender", "")

	got := PredicatesFromValues(v)
	want := Predicates{FieldCategory: "X", FieldDate: "2024-01-01"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("PredicatesFromValues = %v, want %v", got, want)
	}
}

func TestParseField(t *testing.T) {
	if f, err := ParseField("moisture"); err != nil || f != FieldMoisture {
		t.Errorf("ParseField(moisture) = %q, %v", f, err)
	}
	if _, err := ParseField("Category"); !errors.Is(err, ErrUnknownField) {
		t.Errorf("ParseField(Category) error = %v, want ErrUnknownField", err)
	}
}

func TestValidateDate(t *testing.T) {
	for _, ok := range []string{"", "2024-01-01", "2024-02-29"} {
		if err := ValidateDate(ok); err != nil {
			t.Errorf("ValidateDate(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"2024-1-1", "2023-02-29", "01/02/2024", "today"} {
		if err := ValidateDate(bad); !errors.Is(err, ErrInvalidDate) {
			t.Errorf("ValidateDate(%q) = %v, want ErrInvalidDate", bad, err)
		}
	}
}

func TestSortNewestAndOldestFirst(t *testing.T) {
	recs := sample()
	recs = append(recs, storage.Record{ID: 5, OccurredAt: recs[0].OccurredAt})

	SortNewestFirst(recs)
	if got := ids(recs); !reflect.DeepEqual(got, []int64{4, 2, 3, 5, 1}) {
		t.Errorf("SortNewestFirst = %v", got)
	}

	SortOldestFirst(recs)
	if got := ids(recs); !reflect.DeepEqual(got, []int64{1, 5, 3, 2, 4}) {
		t.Errorf("SortOldestFirst = %v", got)
	}
}
