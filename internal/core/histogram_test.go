package core

import (
	"math"
	"reflect"
	"testing"
	"time"
)

func TestHistogram(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		bins   int
		counts []int
	}{
		{"empty", nil, 4, []int{}},
		{"single value", []float64{3, 3, 3}, 4, []int{3}},
		{"max lands in last bin", []float64{0, 1, 2, 3, 4}, 2, []int{2, 3}},
		{"non-finite skipped", []float64{0, math.NaN(), 10, math.Inf(1)}, 5, []int{1, 0, 0, 0, 1}},
		{"default bins", []float64{0, 10}, 0, []int{1, 0, 0, 0, 0, 0, 0, 0, 0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Histogram(tt.values, tt.bins)
			counts := make([]int, len(got))
			for i, b := range got {
				counts[i] = b.Count
			}
			if !reflect.DeepEqual(counts, tt.counts) {
				t.Fatalf("counts = %v, want %v", counts, tt.counts)
			}
		})
	}
}

func TestHistogramOf(t *testing.T) {
	tbl := NewTable([]Record{
		NewRecord(nil, map[string]float64{"n": 1}, time.Time{}),
		NewRecord(nil, map[string]float64{"n": 5}, time.Time{}),
		NewRecord(nil, nil, time.Time{}),
	})
	bins, dropped := HistogramOf(tbl, "n", 2)
	if dropped != 1 || len(bins) != 2 || bins[0].Lo != 1 || bins[1].Hi != 5 {
		t.Fatalf("bins=%+v dropped=%d", bins, dropped)
	}
}

func TestPivot(t *testing.T) {
	rec := func(user, movie string, r float64) Record {
		return NewRecord(map[string]string{"userId": user, "movieId": movie}, map[string]float64{"rating": r}, time.Time{})
	}
	tbl := NewTable([]Record{
		rec("10", "2", 4), rec("9", "2", 2), rec("10", "2", 5), rec("10", "11", 3),
		NewRecord(map[string]string{"userId": "9"}, nil, time.Time{}),
	})

	got := Pivot(tbl, "userId", "movieId", "rating")
	if !reflect.DeepEqual(got.Rows, []string{"9", "10"}) || !reflect.DeepEqual(got.Columns, []string{"2", "11"}) {
		t.Fatalf("labels = %v x %v", got.Rows, got.Columns)
	}
	if got.Dropped != 1 {
		t.Errorf("dropped = %d", got.Dropped)
	}
	if c := got.Cells[1][0]; c == nil || *c != 4.5 {
		t.Errorf("cell(10,2) = %v", c)
	}
	if got.Cells[0][1] != nil {
		t.Errorf("cell(9,11) should be empty")
	}
}

func TestPivotLabelOrderIsStable(t *testing.T) {
	rec := func(user, movie string) Record {
		return NewRecord(map[string]string{"userId": user, "movieId": movie}, map[string]float64{"rating": 1}, time.Time{})
	}
	tbl := NewTable([]Record{
		rec("3", "2"), rec("1", "10"), rec("2", "1a"), rec("1.0", "2"),
	})

	tests := []struct {
		name string
		axis func(PivotTable) []string
		want []string
	}{
		{"numeric rows", func(p PivotTable) []string { return p.Rows }, []string{"1", "1.0", "2", "3"}},
		{"mixed columns sort as text", func(p PivotTable) []string { return p.Columns }, []string{"10", "1a", "2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 50; i++ {
				if got := tt.axis(Pivot(tbl, "userId", "movieId", "rating")); !reflect.DeepEqual(got, tt.want) {
					t.Fatalf("call %d: labels = %v, want %v", i, got, tt.want)
				}
			}
		})
	}
}

func TestSampleIsDeterministic(t *testing.T) {
	var recs []Record
	for i := 0; i < 100; i++ {
		recs = append(recs, NewRecord(nil, map[string]float64{"i": float64(i)}, time.Time{}))
	}
	tbl := NewTable(recs)

	a := Sample(tbl, 10, 42)
	b := Sample(tbl, 10, 42)
	if a.Len() != 10 || !reflect.DeepEqual(a.Records(), b.Records()) {
		t.Fatal("same seed should pick the same rows")
	}
	prev := -1.0
	for _, r := range a.Records() {
		v, _ := r.Value("i")
		if v <= prev {
			t.Fatalf("sample lost source order")
		}
		prev = v
	}
	if Sample(tbl, 500, 1) != tbl {
		t.Error("oversized sample should return the table")
	}
}
