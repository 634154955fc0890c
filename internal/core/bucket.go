package core

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// Granularity discretizes a timestamp into a bucket.
type Granularity string

const (
	HourOfDay Granularity = "hour"
	Date      Granularity = "date"
	Month     Granularity = "month"
	Year      Granularity = "year"
)

var (
	ErrUnknownGranularity = errors.New("unknown granularity")
	ErrUnsupportedAgg     = errors.New("aggregate not supported for time series")
	ErrNoValueField       = errors.New("no value field")
)

// BucketSpec describes a time-bucketed aggregate. Value may be empty only
// when Agg is AggCount, in which case every timestamped row counts.
type BucketSpec struct {
	Granularity Granularity
	Value       string
	Agg         Agg
}

// Bucket is one time bucket. Ordinal orders buckets and is unique per key.
type Bucket struct {
	Key     string  `json:"key"`
	Ordinal int64   `json:"ordinal"`
	Value   float64 `json:"value"`
	Count   int     `json:"count"`
}

// BucketedSeries is ordered by ascending Ordinal. Dropped counts rows with a
// missing timestamp or a missing value field.
type BucketedSeries struct {
	Granularity Granularity `json:"granularity"`
	Buckets     []Bucket    `json:"buckets"`
	Dropped     int         `json:"dropped"`
}

// NamedSeries is a BucketedSeries for one value of a split field.
type NamedSeries struct {
	Name   string         `json:"name"`
	Series BucketedSeries `json:"series"`
}

func (s BucketSpec) validate() error {
	switch s.Granularity {
	case HourOfDay, Date, Month, Year:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownGranularity, s.Granularity)
	}
	switch s.Agg {
	case AggMean, AggSum:
		if s.Value == "" {
			return ErrNoValueField
		}
	case AggCount:
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedAgg, s.Agg)
	}
	return nil
}

// bucketOf returns the ordinal and label of ts under g.
func bucketOf(ts time.Time, g Granularity) (int64, string) {
	switch g {
	case HourOfDay:
		h := ts.Hour()
		return int64(h), fmt.Sprintf("%02d", h)
	case Month:
		return int64(ts.Year())*12 + int64(ts.Month()) - 1, ts.Format("2006-01")
	case Year:
		return int64(ts.Year()), ts.Format("2006")
	default:
		day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
		return day.Unix() / 86400, day.Format("2006-01-02")
	}
}

// BucketTimeSeries aggregates spec.Value per time bucket. Rows without a
// timestamp, or without the value field when one is named, are dropped and
// counted.
func BucketTimeSeries(t *Table, spec BucketSpec) (BucketedSeries, error) {
	if err := spec.validate(); err != nil {
		return BucketedSeries{}, err
	}
	return bucketRows(t.all(), spec), nil
}

func bucketRows(rows []Record, spec BucketSpec) BucketedSeries {
	out := BucketedSeries{Granularity: spec.Granularity, Buckets: []Bucket{}}
	accs := make(map[int64]*accumulator)
	labels := make(map[int64]string)

	for _, rec := range rows {
		ts, ok := rec.Time()
		if !ok {
			out.Dropped++
			continue
		}
		v := 1.0
		if spec.Value != "" {
			if v, ok = rec.Value(spec.Value); !ok {
				out.Dropped++
				continue
			}
		}
		ord, label := bucketOf(ts, spec.Granularity)
		acc, seen := accs[ord]
		if !seen {
			acc = &accumulator{}
			accs[ord] = acc
			labels[ord] = label
		}
		acc.add(v)
	}

	ordinals := make([]int64, 0, len(accs))
	for ord := range accs {
		ordinals = append(ordinals, ord)
	}
	slices.Sort(ordinals)

	for _, ord := range ordinals {
		acc := accs[ord]
		out.Buckets = append(out.Buckets, Bucket{
			Key:     labels[ord],
			Ordinal: ord,
			Value:   acc.value(spec.Agg),
			Count:   acc.count,
		})
	}
	return out
}

// SplitTimeSeries returns one series per distinct value of splitField, in
// first-encountered order. Rows missing splitField are left out of every
// series.
func SplitTimeSeries(t *Table, spec BucketSpec, splitField string) ([]NamedSeries, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}
	parts := make(map[string][]Record)
	var names []string
	for i := 0; i < t.Len(); i++ {
		rec := t.rows[i]
		name, ok := rec.Field(splitField)
		if !ok {
			continue
		}
		if _, seen := parts[name]; !seen {
			names = append(names, name)
		}
		parts[name] = append(parts[name], rec)
	}

	out := make([]NamedSeries, 0, len(names))
	for _, name := range names {
		out = append(out, NamedSeries{Name: name, Series: bucketRows(parts[name], spec)})
	}
	return out, nil
}
