package core

import (
	"math"
	"reflect"
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func avocadoTable() *Table {
	return NewTable([]Record{
		NewRecord(map[string]string{"geography": "LA", "type": "organic"}, map[string]float64{"average_price": 1.2}, day(2020, 1, 1)),
		NewRecord(map[string]string{"geography": "LA", "type": "conventional"}, map[string]float64{"average_price": 1.0}, day(2020, 1, 1)),
		NewRecord(map[string]string{"geography": "NY", "type": "organic"}, map[string]float64{"average_price": 1.5}, day(2020, 1, 1)),
	})
}

func ptr(v float64) *float64 { return &v }

func geographies(t *Table) []string {
	var out []string
	for _, r := range t.Records() {
		g, _ := r.Dim("geography")
		out = append(out, g)
	}
	return out
}

func TestFilterEmptySpecIsIdentity(t *testing.T) {
	tbl := avocadoTable()
	specs := []FilterSpec{
		{},
		{Categories: []CategoryPredicate{{Field: "geography"}}},
		{Ranges: []RangePredicate{{Field: "average_price"}}},
		{Time: &TimeRange{}},
	}
	for i, spec := range specs {
		if got := Filter(tbl, spec); got != tbl {
			t.Errorf("spec %d: expected the input table back", i)
		}
	}
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name string
		spec FilterSpec
		want []string
	}{
		{
			name: "category membership",
			spec: FilterSpec{Categories: []CategoryPredicate{{Field: "geography", Allowed: []string{"LA"}}}},
			want: []string{"LA", "LA"},
		},
		{
			name: "conjunction of categories",
			spec: FilterSpec{Categories: []CategoryPredicate{
				{Field: "geography", Allowed: []string{"LA", "NY"}},
				{Field: "type", Allowed: []string{"organic"}},
			}},
			want: []string{"LA", "NY"},
		},
		{
			name: "inclusive numeric range",
			spec: FilterSpec{Ranges: []RangePredicate{{Field: "average_price", Min: ptr(1.2), Max: ptr(1.5)}}},
			want: []string{"LA", "NY"},
		},
		{
			name: "open upper bound",
			spec: FilterSpec{Ranges: []RangePredicate{{Field: "average_price", Min: ptr(1.3)}}},
			want: []string{"NY"},
		},
		{
			name: "time window excludes everything",
			spec: FilterSpec{Time: &TimeRange{From: day(2021, 1, 1)}},
			want: nil,
		},
		{
			name: "time window is inclusive",
			spec: FilterSpec{Time: &TimeRange{From: day(2020, 1, 1), To: day(2020, 1, 1)}},
			want: []string{"LA", "LA", "NY"},
		},
		{
			name: "missing field fails predicate",
			spec: FilterSpec{Categories: []CategoryPredicate{{Field: "region", Allowed: []string{"LA"}}}},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := geographies(Filter(avocadoTable(), tt.spec))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Filter() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterIsIdempotent(t *testing.T) {
	tbl := avocadoTable()
	spec := FilterSpec{
		Categories: []CategoryPredicate{{Field: "type", Allowed: []string{"organic"}}},
		Ranges:     []RangePredicate{{Field: "average_price", Max: ptr(1.4)}},
	}
	once := Filter(tbl, spec)
	twice := Filter(once, spec)
	if !reflect.DeepEqual(once.Records(), twice.Records()) {
		t.Fatalf("filter not idempotent: %v vs %v", once.Records(), twice.Records())
	}
	if tbl.Len() != 3 {
		t.Fatalf("source table mutated: len=%d", tbl.Len())
	}
}

func TestFilterMissingTimestampFailsTimePredicate(t *testing.T) {
	tbl := NewTable([]Record{
		NewRecord(map[string]string{"geography": "LA"}, nil, time.Time{}),
		NewRecord(map[string]string{"geography": "NY"}, nil, day(2020, 1, 1)),
	})
	got := geographies(Filter(tbl, FilterSpec{Time: &TimeRange{To: day(2020, 12, 31)}}))
	if !reflect.DeepEqual(got, []string{"NY"}) {
		t.Fatalf("got %v", got)
	}
}

func TestFilterNilTable(t *testing.T) {
	spec := FilterSpec{Categories: []CategoryPredicate{{Field: "geography", Allowed: []string{"LA"}}}}
	if got := Filter(nil, spec); got.Len() != 0 {
		t.Fatalf("expected empty result, got %d rows", got.Len())
	}
}

func TestNewRecordDropsNonFiniteValues(t *testing.T) {
	r := NewRecord(nil, map[string]float64{"a": math.NaN(), "c": math.Inf(1), "b": 2}, time.Time{})
	if _, ok := r.Value("a"); ok {
		t.Error("NaN value should be treated as missing")
	}
	if _, ok := r.Value("c"); ok {
		t.Error("Inf value should be treated as missing")
	}
	if v, ok := r.Value("b"); !ok || v != 2 {
		t.Errorf("b = %v, %v", v, ok)
	}
	if f, ok := r.Field("b"); !ok || f != "2" {
		t.Errorf("Field(b) = %q, %v", f, ok)
	}
	if _, ok := r.Time(); ok {
		t.Error("zero timestamp should be missing")
	}
}

func TestWithDimLeavesOriginalUntouched(t *testing.T) {
	r := NewRecord(map[string]string{"genres": "Action|Drama"}, nil, time.Time{})
	r2 := r.WithDim("genre", "Action")
	if _, ok := r.Dim("genre"); ok {
		t.Fatal("original record changed")
	}
	if g, _ := r2.Dim("genre"); g != "Action" {
		t.Fatalf("genre = %q", g)
	}
}
