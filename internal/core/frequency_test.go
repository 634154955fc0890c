package core

import (
	"reflect"
	"testing"
	"time"
)

func TestFrequency(t *testing.T) {
	tbl := NewTable([]Record{
		NewRecord(map[string]string{"genre": "Drama"}, nil, time.Time{}),
		NewRecord(map[string]string{"genre": "Comedy"}, nil, time.Time{}),
		NewRecord(map[string]string{"genre": "Drama"}, nil, time.Time{}),
		NewRecord(map[string]string{"genre": "Horror"}, nil, time.Time{}),
		NewRecord(nil, nil, time.Time{}),
	})

	got := Frequency(tbl, "genre", 0)
	want := []FrequencyEntry{{"Drama", 2}, {"Comedy", 1}, {"Horror", 1}}
	if !reflect.DeepEqual(got.Entries, want) {
		t.Fatalf("entries = %v, want %v", got.Entries, want)
	}
	if got.Dropped != 1 {
		t.Errorf("dropped = %d", got.Dropped)
	}

	sum := 0
	for _, e := range got.Entries {
		sum += e.Count
	}
	if sum != tbl.Len()-got.Dropped {
		t.Errorf("counts sum to %d, want %d", sum, tbl.Len()-got.Dropped)
	}

	top := Frequency(tbl, "genre", 2)
	if !reflect.DeepEqual(top.Entries, want[:2]) {
		t.Errorf("top 2 = %v", top.Entries)
	}
}

func TestFrequencyOfNumericField(t *testing.T) {
	tbl := NewTable([]Record{
		NewRecord(nil, map[string]float64{"userId": 7}, time.Time{}),
		NewRecord(nil, map[string]float64{"userId": 7}, time.Time{}),
		NewRecord(nil, map[string]float64{"userId": 12}, time.Time{}),
	})
	got := Frequency(tbl, "userId", 0)
	want := []FrequencyEntry{{"7", 2}, {"12", 1}}
	if !reflect.DeepEqual(got.Entries, want) {
		t.Fatalf("entries = %v, want %v", got.Entries, want)
	}
}

func TestFrequencyEmpty(t *testing.T) {
	got := Frequency(nil, "genre", 5)
	if got.Entries == nil || len(got.Entries) != 0 || got.Dropped != 0 {
		t.Fatalf("got %#v", got)
	}
}

func TestDistinctAndSummarize(t *testing.T) {
	tbl := avocadoTable()
	if got := Distinct(tbl, "geography"); !reflect.DeepEqual(got, []string{"LA", "NY"}) {
		t.Errorf("Distinct = %v", got)
	}
	s := Summarize(tbl, "geography", "type", "missing")
	want := Summary{Rows: 3, Distinct: map[string]int{"geography": 2, "type": 2, "missing": 0}}
	if !reflect.DeepEqual(s, want) {
		t.Errorf("Summarize = %+v, want %+v", s, want)
	}
}
