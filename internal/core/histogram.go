package core

import (
	"cmp"
	"math"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
)

// DefaultBins is used when a histogram is requested with bins <= 0.
const DefaultBins = 10

// HistogramBin counts values in [Lo, Hi). The last bin is closed on the right.
type HistogramBin struct {
	Lo    float64 `json:"lo"`
	Hi    float64 `json:"hi"`
	Count int     `json:"count"`
}

// Histogram splits the range of values into equal-width bins. Non-finite
// values are skipped. When all values are equal a single bin is returned.
func Histogram(values []float64, bins int) []HistogramBin {
	if bins <= 0 {
		bins = DefaultBins
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	n := 0
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
		n++
	}
	if n == 0 {
		return []HistogramBin{}
	}
	if lo == hi {
		return []HistogramBin{{Lo: lo, Hi: hi, Count: n}}
	}

	width := (hi - lo) / float64(bins)
	out := make([]HistogramBin, bins)
	for i := range out {
		out[i].Lo = lo + float64(i)*width
		out[i].Hi = lo + float64(i+1)*width
	}
	out[bins-1].Hi = hi

	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		i := int((v - lo) / width)
		if i >= bins {
			i = bins - 1
		}
		out[i].Count++
	}
	return out
}

// HistogramOf bins the numeric field of t. The second result counts rows
// missing the field.
func HistogramOf(t *Table, field string, bins int) ([]HistogramBin, int) {
	values := make([]float64, 0, t.Len())
	dropped := 0
	for i := 0; i < t.Len(); i++ {
		v, ok := t.rows[i].Value(field)
		if !ok {
			dropped++
			continue
		}
		values = append(values, v)
	}
	return Histogram(values, bins), dropped
}

// PivotTable holds the mean value per (row, column) pair. Cells without data
// are nil.
type PivotTable struct {
	Rows    []string     `json:"rows"`
	Columns []string     `json:"columns"`
	Cells   [][]*float64 `json:"cells"`
	Dropped int          `json:"dropped"`
}

// Pivot averages valueField for every (rowField, colField) pair. Row and
// column labels sort numerically when every label of the axis is a number,
// lexically otherwise.
func Pivot(t *Table, rowField, colField, valueField string) PivotTable {
	type cell struct{ row, col string }
	accs := make(map[cell]*accumulator)
	rowSet := make(map[string]struct{})
	colSet := make(map[string]struct{})
	out := PivotTable{}

	for i := 0; i < t.Len(); i++ {
		rec := t.rows[i]
		r, okR := rec.Field(rowField)
		c, okC := rec.Field(colField)
		v, okV := rec.Value(valueField)
		if !okR || !okC || !okV {
			out.Dropped++
			continue
		}
		k := cell{r, c}
		acc, seen := accs[k]
		if !seen {
			acc = &accumulator{}
			accs[k] = acc
		}
		acc.add(v)
		rowSet[r] = struct{}{}
		colSet[c] = struct{}{}
	}

	out.Rows = sortedLabels(rowSet)
	out.Columns = sortedLabels(colSet)
	out.Cells = make([][]*float64, len(out.Rows))
	for i, r := range out.Rows {
		out.Cells[i] = make([]*float64, len(out.Columns))
		for j, c := range out.Columns {
			if acc, ok := accs[cell{r, c}]; ok {
				mean := acc.value(AggMean)
				out.Cells[i][j] = &mean
			}
		}
	}
	return out
}

func sortedLabels(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	nums, ok := numericLabels(out)
	if !ok {
		slices.Sort(out)
		return out
	}
	// "1" and "1.0" compare equal as numbers; fall back to the text
	slices.SortFunc(out, func(a, b string) int {
		if c := cmp.Compare(nums[a], nums[b]); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	return out
}

func numericLabels(labels []string) (map[string]float64, bool) {
	nums := make(map[string]float64, len(labels))
	for _, l := range labels {
		f, err := strconv.ParseFloat(l, 64)
		if err != nil || math.IsNaN(f) {
			return nil, false
		}
		nums[l] = f
	}
	return nums, true
}

// Sample picks n rows without replacement using a generator seeded with
// seed, keeping their original order. The same seed gives the same rows.
func Sample(t *Table, n int, seed uint64) *Table {
	if n < 0 {
		n = 0
	}
	if n >= t.Len() {
		return t
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	picked := rng.Perm(t.Len())[:n]
	slices.Sort(picked)
	return t.subset(picked)
}
