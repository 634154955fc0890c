package core

import "time"

// CategoryPredicate keeps rows whose field is one of Allowed.
// An empty Allowed set does not filter.
type CategoryPredicate struct {
	Field   string
	Allowed []string
}

// RangePredicate keeps rows whose numeric field lies in [Min, Max].
// A nil bound is open.
type RangePredicate struct {
	Field string
	Min   *float64
	Max   *float64
}

// TimeRange keeps rows whose timestamp lies in [From, To].
// A zero bound is open.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// FilterSpec is a conjunction of predicates.
type FilterSpec struct {
	Categories []CategoryPredicate
	Ranges     []RangePredicate
	Time       *TimeRange
}

func (p CategoryPredicate) active() bool { return len(p.Allowed) > 0 }

func (p RangePredicate) active() bool { return p.Min != nil || p.Max != nil }

func (r *TimeRange) active() bool {
	return r != nil && (!r.From.IsZero() || !r.To.IsZero())
}

// IsEmpty reports whether the spec has no active predicate.
func (s FilterSpec) IsEmpty() bool {
	for _, p := range s.Categories {
		if p.active() {
			return false
		}
	}
	for _, p := range s.Ranges {
		if p.active() {
			return false
		}
	}
	return !s.Time.active()
}

type categorySet struct {
	field   string
	allowed map[string]struct{}
}

// Filter returns the rows of t that satisfy every predicate in spec, in
// their original order. A spec without active predicates returns t itself.
func Filter(t *Table, spec FilterSpec) *Table {
	if spec.IsEmpty() || t.Len() == 0 {
		return t
	}

	sets := make([]categorySet, 0, len(spec.Categories))
	for _, p := range spec.Categories {
		if !p.active() {
			continue
		}
		set := make(map[string]struct{}, len(p.Allowed))
		for _, v := range p.Allowed {
			set[v] = struct{}{}
		}
		sets = append(sets, categorySet{field: p.Field, allowed: set})
	}
	ranges := make([]RangePredicate, 0, len(spec.Ranges))
	for _, p := range spec.Ranges {
		if p.active() {
			ranges = append(ranges, p)
		}
	}
	var window *TimeRange
	if spec.Time.active() {
		window = spec.Time
	}

	indices := make([]int, 0, t.Len())
	for i, rec := range t.rows {
		if matches(rec, sets, ranges, window) {
			indices = append(indices, i)
		}
	}
	if len(indices) == t.Len() {
		return t
	}
	return t.subset(indices)
}

func matches(rec Record, sets []categorySet, ranges []RangePredicate, window *TimeRange) bool {
	for _, s := range sets {
		v, ok := rec.Field(s.field)
		if !ok {
			return false
		}
		if _, ok := s.allowed[v]; !ok {
			return false
		}
	}
	for _, p := range ranges {
		v, ok := rec.Value(p.Field)
		if !ok {
			return false
		}
		if p.Min != nil && v < *p.Min {
			return false
		}
		if p.Max != nil && v > *p.Max {
			return false
		}
	}
	if window != nil {
		ts, ok := rec.Time()
		if !ok {
			return false
		}
		if !window.From.IsZero() && ts.Before(window.From) {
			return false
		}
		if !window.To.IsZero() && ts.After(window.To) {
			return false
		}
	}
	return true
}
