package dashboard

import (
	"context"
	"time"

	"dashboard/internal/core"
	"dashboard/internal/dataset"
	"dashboard/internal/log"
)

const (
	fieldGeography = "geography"
	fieldType      = "type"
	fieldPrice     = "average_price"
)

// AvocadoOptions lists the values the price chart can be filtered by.
type AvocadoOptions struct {
	Geographies []string `json:"geographies"`
	Types       []string `json:"types"`
}

// AvocadoQuery narrows the price chart. Zero fields do not filter.
type AvocadoQuery struct {
	Geographies []string
	Types       []string
	From, To    time.Time
	MinPrice    *float64
	MaxPrice    *float64
}

// AvocadoPrices is the mean price per date, one series per avocado type.
type AvocadoPrices struct {
	Rows   int                `json:"rows"`
	Series []core.NamedSeries `json:"series"`
}

func (s *Service) AvocadoOptions(ctx context.Context) (AvocadoOptions, error) {
	tbl, err := s.table(ctx, dataset.Avocado)
	if err != nil {
		return AvocadoOptions{}, err
	}
	return AvocadoOptions{
		Geographies: core.Distinct(tbl, fieldGeography),
		Types:       core.Distinct(tbl, fieldType),
	}, nil
}

func (s *Service) AvocadoPrices(ctx context.Context, q AvocadoQuery) (AvocadoPrices, error) {
	tbl, err := s.table(ctx, dataset.Avocado)
	if err != nil {
		return AvocadoPrices{}, err
	}

	spec := core.FilterSpec{
		Categories: []core.CategoryPredicate{
			{Field: fieldGeography, Allowed: q.Geographies},
			{Field: fieldType, Allowed: q.Types},
		},
	}
	if q.MinPrice != nil || q.MaxPrice != nil {
		spec.Ranges = append(spec.Ranges, core.RangePredicate{Field: fieldPrice, Min: q.MinPrice, Max: q.MaxPrice})
	}
	if !q.From.IsZero() || !q.To.IsZero() {
		spec.Time = &core.TimeRange{From: q.From, To: q.To}
	}
	filtered := core.Filter(tbl, spec)

	series, err := core.SplitTimeSeries(filtered, core.BucketSpec{
		Granularity: core.Date,
		Value:       fieldPrice,
		Agg:         core.AggMean,
	}, fieldType)
	if err != nil {
		return AvocadoPrices{}, err
	}

	dropped := 0
	for _, ns := range series {
		dropped += ns.Series.Dropped
	}
	s.dropped(ctx, dataset.Avocado, log.OpBucket, dropped)

	return AvocadoPrices{Rows: filtered.Len(), Series: series}, nil
}
