package core

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"
)

func rating(movie string, value float64) Record {
	return NewRecord(map[string]string{"movieId": movie}, map[string]float64{"rating": value}, time.Time{})
}

var topRated = RankSpec{
	GroupBy: []string{"movieId"},
	Metric:  "rating",
	Aggs:    []Agg{AggMean, AggCount},
	SortBy:  []SortKey{{Agg: AggMean, Desc: true}, {Agg: AggCount, Desc: true}},
}

func TestRankSecondaryKeyBreaksTies(t *testing.T) {
	tbl := NewTable([]Record{rating("1", 5), rating("1", 5), rating("2", 5)})
	spec := topRated
	spec.TopN = 1

	got, err := Rank(tbl, spec)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	want := []RankedGroup{{Keys: []string{"1"}, Count: 2, Values: map[Agg]float64{AggMean: 5, AggCount: 2}}}
	if !reflect.DeepEqual(got.Groups, want) {
		t.Fatalf("Rank() = %+v, want %+v", got.Groups, want)
	}
}

func TestRankSortedAndBounded(t *testing.T) {
	tbl := NewTable([]Record{
		rating("a", 3), rating("b", 4), rating("c", 4), rating("b", 4),
		rating("d", 2), rating("a", 5), rating("e", 4.5),
	})

	for _, topN := range []int{0, 1, 3, 10} {
		t.Run(fmt.Sprintf("top_%d", topN), func(t *testing.T) {
			spec := topRated
			spec.TopN = topN
			got, err := Rank(tbl, spec)
			if err != nil {
				t.Fatalf("Rank: %v", err)
			}
			if topN > 0 && len(got.Groups) > topN {
				t.Errorf("len=%d exceeds top_n=%d", len(got.Groups), topN)
			}
			if len(got.Groups) > 5 {
				t.Errorf("len=%d exceeds distinct groups", len(got.Groups))
			}
			for i := 1; i < len(got.Groups); i++ {
				prev, cur := got.Groups[i-1].Values, got.Groups[i].Values
				if prev[AggMean] < cur[AggMean] ||
					(prev[AggMean] == cur[AggMean] && prev[AggCount] < cur[AggCount]) {
					t.Errorf("groups %d and %d out of order: %v then %v", i-1, i, prev, cur)
				}
			}
		})
	}
}

func TestRankTiesKeepFirstEncounteredOrder(t *testing.T) {
	tbl := NewTable([]Record{rating("x", 4), rating("y", 4), rating("z", 4)})
	got, err := Rank(tbl, topRated)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	var keys []string
	for _, g := range got.Groups {
		keys = append(keys, g.Keys[0])
	}
	if !reflect.DeepEqual(keys, []string{"x", "y", "z"}) {
		t.Fatalf("order = %v", keys)
	}
}

func TestRankMultipleGroupKeys(t *testing.T) {
	rec := func(id, title string, v float64) Record {
		return NewRecord(map[string]string{"movieId": id, "title": title}, map[string]float64{"rating": v}, time.Time{})
	}
	tbl := NewTable([]Record{rec("1", "Heat", 4), rec("1", "Heat", 2), rec("2", "Up", 5)})
	spec := RankSpec{
		GroupBy: []string{"movieId", "title"},
		Metric:  "rating",
		Aggs:    []Agg{AggMean, AggSum, AggMin, AggMax},
		SortBy:  []SortKey{{Agg: AggMean, Desc: true}},
	}
	got, err := Rank(tbl, spec)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(got.Groups) != 2 {
		t.Fatalf("groups = %+v", got.Groups)
	}
	heat := got.Groups[1]
	if !reflect.DeepEqual(heat.Keys, []string{"1", "Heat"}) {
		t.Errorf("keys = %v", heat.Keys)
	}
	want := map[Agg]float64{AggMean: 3, AggSum: 6, AggMin: 2, AggMax: 4}
	if !reflect.DeepEqual(heat.Values, want) {
		t.Errorf("values = %v, want %v", heat.Values, want)
	}
}

func TestRankDropsMalformedRows(t *testing.T) {
	tbl := NewTable([]Record{
		rating("1", 4),
		NewRecord(map[string]string{"movieId": "2"}, nil, time.Time{}),
		NewRecord(nil, map[string]float64{"rating": 3}, time.Time{}),
	})
	got, err := Rank(tbl, topRated)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if got.Dropped != 2 || len(got.Groups) != 1 {
		t.Fatalf("dropped=%d groups=%d", got.Dropped, len(got.Groups))
	}
}

func TestRankEmptyTable(t *testing.T) {
	for _, tbl := range []*Table{nil, NewTable(nil)} {
		got, err := Rank(tbl, topRated)
		if err != nil {
			t.Fatalf("Rank: %v", err)
		}
		if got.Groups == nil || len(got.Groups) != 0 {
			t.Fatalf("expected empty non-nil groups, got %#v", got.Groups)
		}
	}
}

func TestRankInvalidSpec(t *testing.T) {
	tests := []struct {
		name string
		spec RankSpec
		want error
	}{
		{"no group keys", RankSpec{Metric: "rating"}, ErrNoGroupKeys},
		{"no metric", RankSpec{GroupBy: []string{"movieId"}}, ErrNoMetric},
		{"unknown agg", RankSpec{GroupBy: []string{"movieId"}, Metric: "rating", Aggs: []Agg{"median"}}, ErrUnknownAgg},
		{
			"sort key not aggregated",
			RankSpec{GroupBy: []string{"movieId"}, Metric: "rating", Aggs: []Agg{AggMean}, SortBy: []SortKey{{Agg: AggCount}}},
			ErrSortKeyNotAggregated,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Rank(NewTable(nil), tt.spec); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestJoinKeyAvoidsCollisions(t *testing.T) {
	if joinKey([]string{"a|b", "c"}) == joinKey([]string{"a", "b|c"}) {
		t.Fatal("distinct key tuples must not collide")
	}
}

func TestRankMinCount(t *testing.T) {
	tbl := NewTable([]Record{rating("1", 3), rating("1", 4), rating("2", 5)})
	spec := topRated
	spec.MinCount = 2
	got, err := Rank(tbl, spec)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(got.Groups) != 1 || got.Groups[0].Keys[0] != "1" {
		t.Fatalf("groups = %+v", got.Groups)
	}
}
