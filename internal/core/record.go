// Package core implements the tabular aggregator behind the dashboards:
// filtering, ranking, time bucketing and frequency counts over an
// immutable in-memory table. Nothing here performs I/O.
package core

import (
	"math"
	"strconv"
	"time"
)

// Record is a single immutable row: string fields, finite numeric fields
// and an optional timestamp.
type Record struct {
	dims   map[string]string
	values map[string]float64
	at     time.Time
}

// NewRecord copies the given maps into a new Record. Non-finite values are
// discarded so that every stored value is a real number. A zero ts means the
// row has no timestamp.
func NewRecord(dims map[string]string, values map[string]float64, ts time.Time) Record {
	r := Record{
		dims:   make(map[string]string, len(dims)),
		values: make(map[string]float64, len(values)),
	}
	for k, v := range dims {
		r.dims[k] = v
	}
	for k, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		r.values[k] = v
	}
	if !ts.IsZero() {
		r.at = ts.UTC()
	}
	return r
}

// Dim returns a string field.
func (r Record) Dim(name string) (string, bool) {
	v, ok := r.dims[name]
	return v, ok
}

// Value returns a numeric field.
func (r Record) Value(name string) (float64, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Field returns a string view of a field of either kind. String fields win
// over numeric fields of the same name.
func (r Record) Field(name string) (string, bool) {
	if v, ok := r.dims[name]; ok {
		return v, true
	}
	if v, ok := r.values[name]; ok {
		return formatNumber(v), true
	}
	return "", false
}

// WithDim returns a copy of r with the string field name set to value.
func (r Record) WithDim(name, value string) Record {
	dims := make(map[string]string, len(r.dims)+1)
	for k, v := range r.dims {
		dims[k] = v
	}
	dims[name] = value
	return Record{dims: dims, values: r.values, at: r.at}
}

// Time returns the row timestamp in UTC.
func (r Record) Time() (time.Time, bool) {
	return r.at, !r.at.IsZero()
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Table is an ordered, immutable sequence of Records. Operations that narrow
// a Table return a new one sharing the same Records.
type Table struct {
	rows []Record
}

// NewTable builds a Table from a copy of records.
func NewTable(records []Record) *Table {
	rows := make([]Record, len(records))
	copy(rows, records)
	return &Table{rows: rows}
}

// Len returns the number of rows. A nil Table is empty.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// At returns the i-th row.
func (t *Table) At(i int) Record {
	return t.rows[i]
}

// Records returns a copy of the rows.
func (t *Table) Records() []Record {
	if t == nil {
		return nil
	}
	out := make([]Record, len(t.rows))
	copy(out, t.rows)
	return out
}

func (t *Table) all() []Record {
	if t == nil {
		return nil
	}
	return t.rows
}

// subset builds a Table from row indices without copying Records.
func (t *Table) subset(indices []int) *Table {
	rows := make([]Record, len(indices))
	for i, idx := range indices {
		rows[i] = t.rows[idx]
	}
	return &Table{rows: rows}
}
