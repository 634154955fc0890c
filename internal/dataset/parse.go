package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"dashboard/internal/core"
)

// ParseStats counts rows the parser could not use.
type ParseStats struct {
	Rows    int `json:"rows"`
	Skipped int `json:"skipped"`
}

// ParseRows builds a Table from a header and data rows. Rows whose cell
// count differs from the header, or whose value cells do not parse as finite
// numbers, are skipped and counted. An empty cell is a missing field. A row
// whose timestamp cannot be read is kept without a timestamp.
func ParseRows(header []string, rows [][]string, schema Schema) (*core.Table, ParseStats, error) {
	idx, err := indexHeader(header, schema)
	if err != nil {
		return nil, ParseStats{}, err
	}

	stats := ParseStats{}
	records := make([]core.Record, 0, len(rows))
	for _, row := range rows {
		rec, ok := parseRow(idx, row, schema)
		if !ok {
			stats.Skipped++
			continue
		}
		records = append(records, rec)
	}
	stats.Rows = len(records)
	return core.NewTable(records), stats, nil
}

// column positions resolved from a header
type headerIndex struct {
	names  []string
	byName map[string]int
	kinds  []Kind
	known  []bool
}

func indexHeader(header []string, schema Schema) (headerIndex, error) {
	if len(header) == 0 {
		return headerIndex{}, ErrEmptyInput
	}
	idx := headerIndex{
		names:  make([]string, len(header)),
		byName: make(map[string]int, len(header)),
		kinds:  make([]Kind, len(header)),
		known:  make([]bool, len(header)),
	}
	for i, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		idx.names[i] = name
		idx.byName[name] = i
		if c, ok := schema.Column(name); ok {
			idx.kinds[i] = c.Kind
			idx.known[i] = true
		}
	}
	var missing []string
	for _, c := range schema.Columns {
		if _, ok := idx.byName[c.Name]; c.Required && !ok {
			missing = append(missing, c.Name)
		}
	}
	if len(missing) > 0 {
		return headerIndex{}, fmt.Errorf("%s: %w: %s", schema.Name, ErrMissingColumn, strings.Join(missing, ", "))
	}
	return idx, nil
}

func parseRow(idx headerIndex, row []string, schema Schema) (core.Record, bool) {
	if len(row) != len(idx.names) {
		return core.Record{}, false
	}
	dims := make(map[string]string, len(row))
	values := make(map[string]float64, len(row))
	for i, cell := range row {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		name := idx.names[i]
		switch {
		case idx.known[i] && idx.kinds[i] == Value:
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return core.Record{}, false
			}
			values[name] = v
		case idx.known[i]:
			dims[name] = cell
		case schema.KeepExtra:
			if v, err := strconv.ParseFloat(cell, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
				values[name] = v
			} else {
				dims[name] = cell
			}
		}
	}
	return core.NewRecord(dims, values, rowTime(schema.Time, dims, values)), true
}

// Epoch seconds of 0001-01-01 and 9999-12-31T23:59:59 UTC.
const (
	minEpoch = -62135596800
	maxEpoch = 253402300799
)

func whole(v, lo, hi float64) bool {
	return v == math.Trunc(v) && v >= lo && v <= hi
}

func rowTime(spec TimeSpec, dims map[string]string, values map[string]float64) time.Time {
	if spec.fromParts() {
		y, okY := values[spec.Year]
		m, okM := values[spec.Month]
		d, okD := values[spec.Day]
		if !okY || !okM || !okD || !whole(y, 1, 9999) || !whole(m, 1, 12) || !whole(d, 1, 31) {
			return time.Time{}
		}
		ts := time.Date(int(y), time.Month(int(m)), int(d), 0, 0, 0, 0, time.UTC)
		if ts.Day() != int(d) {
			return time.Time{}
		}
		return ts
	}
	if spec.Column == "" {
		return time.Time{}
	}
	if spec.Epoch {
		secs, ok := values[spec.Column]
		if !ok {
			return time.Time{}
		}
		if secs < minEpoch || secs > maxEpoch {
			return time.Time{}
		}
		sec, frac := math.Modf(secs)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC()
	}
	raw, ok := dims[spec.Column]
	if !ok {
		return time.Time{}
	}
	ts, err := time.Parse(spec.Layout, raw)
	if err != nil {
		return time.Time{}
	}
	return ts
}
