package core

import (
	"cmp"
	"slices"
)

// FrequencyEntry is the number of rows carrying one value.
type FrequencyEntry struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// FrequencyList is ordered by descending count, ties by first encounter.
// Dropped counts rows missing the field.
type FrequencyList struct {
	Entries []FrequencyEntry `json:"entries"`
	Dropped int              `json:"dropped"`
}

// Frequency counts the distinct values of field. topN <= 0 keeps every entry.
func Frequency(t *Table, field string, topN int) FrequencyList {
	out := FrequencyList{Entries: []FrequencyEntry{}}
	index := make(map[string]int)
	for i := 0; i < t.Len(); i++ {
		v, ok := t.rows[i].Field(field)
		if !ok {
			out.Dropped++
			continue
		}
		pos, seen := index[v]
		if !seen {
			pos = len(out.Entries)
			index[v] = pos
			out.Entries = append(out.Entries, FrequencyEntry{Value: v})
		}
		out.Entries[pos].Count++
	}

	slices.SortStableFunc(out.Entries, func(a, b FrequencyEntry) int {
		return cmp.Compare(b.Count, a.Count)
	})
	if topN > 0 && len(out.Entries) > topN {
		out.Entries = out.Entries[:topN]
	}
	return out
}

// Distinct returns the distinct values of field in first-encountered order.
func Distinct(t *Table, field string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for i := 0; i < t.Len(); i++ {
		v, ok := t.rows[i].Field(field)
		if !ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Summary holds headline counts for a table.
type Summary struct {
	Rows     int            `json:"rows"`
	Distinct map[string]int `json:"distinct"`
}

// Summarize counts rows and the number of distinct values of each field.
func Summarize(t *Table, fields ...string) Summary {
	s := Summary{Rows: t.Len(), Distinct: make(map[string]int, len(fields))}
	for _, f := range fields {
		s.Distinct[f] = len(Distinct(t, f))
	}
	return s
}
