package core

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
)

// Agg names an aggregate function over a numeric field.
type Agg string

const (
	AggMean  Agg = "mean"
	AggCount Agg = "count"
	AggSum   Agg = "sum"
	AggMin   Agg = "min"
	AggMax   Agg = "max"
)

var (
	ErrNoGroupKeys          = errors.New("no group keys")
	ErrNoMetric             = errors.New("no metric field")
	ErrUnknownAgg           = errors.New("unknown aggregate")
	ErrSortKeyNotAggregated = errors.New("sort key is not an aggregated value")
)

// Valid reports whether a is a supported aggregate.
func (a Agg) Valid() bool {
	switch a {
	case AggMean, AggCount, AggSum, AggMin, AggMax:
		return true
	default:
		return false
	}
}

// SortKey orders ranked groups by one aggregate.
type SortKey struct {
	Agg  Agg
	Desc bool
}

// RankSpec describes a group → aggregate → sort → truncate pipeline.
type RankSpec struct {
	GroupBy []string
	Metric  string
	Aggs    []Agg
	SortBy  []SortKey
	// MinCount drops groups with fewer rows before sorting.
	MinCount int
	// TopN <= 0 keeps every group.
	TopN int
}

// RankedGroup is one aggregated group.
type RankedGroup struct {
	Keys   []string        `json:"keys"`
	Count  int             `json:"count"`
	Values map[Agg]float64 `json:"values"`
}

// RankedSummary is the ordered, truncated result of Rank. Dropped counts
// rows missing a group key or the metric.
type RankedSummary struct {
	Groups  []RankedGroup `json:"groups"`
	Dropped int           `json:"dropped"`
}

func (s RankSpec) validate() error {
	if len(s.GroupBy) == 0 {
		return ErrNoGroupKeys
	}
	if s.Metric == "" {
		return ErrNoMetric
	}
	requested := make(map[Agg]bool, len(s.Aggs))
	for _, a := range s.Aggs {
		if !a.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownAgg, a)
		}
		requested[a] = true
	}
	for _, k := range s.SortBy {
		if !requested[k.Agg] {
			return fmt.Errorf("%w: %q", ErrSortKeyNotAggregated, k.Agg)
		}
	}
	return nil
}

type accumulator struct {
	keys  []string
	count int
	sum   float64
	min   float64
	max   float64
}

func (a *accumulator) add(v float64) {
	if a.count == 0 {
		a.min, a.max = v, v
	} else {
		a.min = math.Min(a.min, v)
		a.max = math.Max(a.max, v)
	}
	a.count++
	a.sum += v
}

func (a *accumulator) value(agg Agg) float64 {
	switch agg {
	case AggMean:
		return a.sum / float64(a.count)
	case AggCount:
		return float64(a.count)
	case AggSum:
		return a.sum
	case AggMin:
		return a.min
	case AggMax:
		return a.max
	}
	return 0
}

// Rank groups rows of t by spec.GroupBy, aggregates spec.Metric per group,
// sorts groups by spec.SortBy and keeps the first spec.TopN. Ties keep the
// order in which groups were first encountered. An empty table yields an
// empty summary.
func Rank(t *Table, spec RankSpec) (RankedSummary, error) {
	if err := spec.validate(); err != nil {
		return RankedSummary{}, err
	}
	summary := RankedSummary{Groups: []RankedGroup{}}

	index := make(map[string]*accumulator)
	var order []*accumulator
	keys := make([]string, len(spec.GroupBy))
	for i := 0; i < t.Len(); i++ {
		rec := t.rows[i]
		if !groupKeys(rec, spec.GroupBy, keys) {
			summary.Dropped++
			continue
		}
		v, ok := rec.Value(spec.Metric)
		if !ok {
			summary.Dropped++
			continue
		}
		id := joinKey(keys)
		acc, seen := index[id]
		if !seen {
			acc = &accumulator{keys: append([]string(nil), keys...)}
			index[id] = acc
			order = append(order, acc)
		}
		acc.add(v)
	}

	for _, acc := range order {
		if acc.count < spec.MinCount {
			continue
		}
		g := RankedGroup{
			Keys:   acc.keys,
			Count:  acc.count,
			Values: make(map[Agg]float64, len(spec.Aggs)),
		}
		for _, a := range spec.Aggs {
			g.Values[a] = acc.value(a)
		}
		summary.Groups = append(summary.Groups, g)
	}

	sortGroups(summary.Groups, spec.SortBy)

	if spec.TopN > 0 && len(summary.Groups) > spec.TopN {
		summary.Groups = summary.Groups[:spec.TopN]
	}
	return summary, nil
}

func groupKeys(rec Record, fields []string, dst []string) bool {
	for i, f := range fields {
		v, ok := rec.Field(f)
		if !ok {
			return false
		}
		dst[i] = v
	}
	return true
}

// joinKey builds a collision-free map key from a key tuple.
func joinKey(keys []string) string {
	if len(keys) == 1 {
		return keys[0]
	}
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%d:%s|", len(k), k)
	}
	return b.String()
}

func sortGroups(groups []RankedGroup, keys []SortKey) {
	if len(keys) == 0 {
		return
	}
	slices.SortStableFunc(groups, func(x, y RankedGroup) int {
		for _, k := range keys {
			c := cmp.Compare(x.Values[k.Agg], y.Values[k.Agg])
			if k.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
}
