package dashboard

import (
	"context"
	"strings"

	"github.com/samber/lo"

	"dashboard/internal/core"
	"dashboard/internal/dataset"
	"dashboard/internal/log"
)

const (
	fieldUser   = "userId"
	fieldMovie  = "movieId"
	fieldTitle  = "title"
	fieldGenres = "genres"
	fieldGenre  = "genre"
	fieldYear   = "year"
	fieldRating = "rating"
)

// Defaults used when a query leaves a knob unset.
const (
	DefaultTopMovies     = 10
	DefaultUserBins      = 50
	DefaultHeatmapSample = 1000
	DefaultHeatmapSeed   = 42
)

// MovieSort selects the ranking order of TopMovies.
type MovieSort string

const (
	// SortByRating orders by mean rating, then by number of ratings.
	SortByRating MovieSort = "rating"
	// SortByCount orders by number of ratings, then by mean rating.
	SortByCount MovieSort = "count"
)

type MoviesOverview struct {
	TotalRatings int `json:"total_ratings"`
	UniqueUsers  int `json:"unique_users"`
	MoviesRated  int `json:"movies_rated"`
}

type TopMoviesQuery struct {
	N        int
	Genre    string
	YearFrom *float64
	YearTo   *float64
	MinCount int
	Sort     MovieSort
}

type MovieRank struct {
	MovieID string  `json:"movie_id"`
	Title   string  `json:"title"`
	Mean    float64 `json:"mean"`
	Count   int     `json:"count"`
}

type UserFrequency struct {
	Users int                 `json:"users"`
	Bins  []core.HistogramBin `json:"bins"`
}

func (s *Service) MoviesOverview(ctx context.Context) (MoviesOverview, error) {
	tbl, err := s.table(ctx, dataset.Ratings)
	if err != nil {
		return MoviesOverview{}, err
	}
	sum := core.Summarize(tbl, fieldUser, fieldMovie)
	return MoviesOverview{
		TotalRatings: sum.Rows,
		UniqueUsers:  sum.Distinct[fieldUser],
		MoviesRated:  sum.Distinct[fieldMovie],
	}, nil
}

// TopMovies ranks movies by their ratings. A genre filter matches one entry
// of the pipe-separated genres column exactly.
func (s *Service) TopMovies(ctx context.Context, q TopMoviesQuery) ([]MovieRank, error) {
	tbl, err := s.table(ctx, dataset.Movies)
	if err != nil {
		return nil, err
	}
	if q.N <= 0 {
		q.N = DefaultTopMovies
	}

	spec := core.FilterSpec{}
	if q.Genre != "" {
		tbl = explodeGenres(tbl)
		spec.Categories = append(spec.Categories, core.CategoryPredicate{Field: fieldGenre, Allowed: []string{q.Genre}})
	}
	if q.YearFrom != nil || q.YearTo != nil {
		spec.Ranges = append(spec.Ranges, core.RangePredicate{Field: fieldYear, Min: q.YearFrom, Max: q.YearTo})
	}
	filtered := core.Filter(tbl, spec)

	sortBy := []core.SortKey{{Agg: core.AggMean, Desc: true}, {Agg: core.AggCount, Desc: true}}
	if q.Sort == SortByCount {
		sortBy[0], sortBy[1] = sortBy[1], sortBy[0]
	}
	ranked, err := core.Rank(filtered, core.RankSpec{
		GroupBy:  []string{fieldMovie},
		Metric:   fieldRating,
		Aggs:     []core.Agg{core.AggMean, core.AggCount},
		SortBy:   sortBy,
		MinCount: q.MinCount,
		TopN:     q.N,
	})
	if err != nil {
		return nil, err
	}
	s.dropped(ctx, dataset.Movies, log.OpRank, ranked.Dropped)

	titles := movieTitles(filtered)
	return lo.Map(ranked.Groups, func(g core.RankedGroup, _ int) MovieRank {
		return MovieRank{MovieID: g.Keys[0], Title: titles[g.Keys[0]], Mean: g.Values[core.AggMean], Count: g.Count}
	}), nil
}

// movieTitles maps each movie to the first title seen for it. Title is
// optional in the movies file.
func movieTitles(t *core.Table) map[string]string {
	titles := make(map[string]string)
	for _, rec := range t.Records() {
		id, ok := rec.Dim(fieldMovie)
		if !ok {
			continue
		}
		if _, seen := titles[id]; seen {
			continue
		}
		if title, ok := rec.Dim(fieldTitle); ok {
			titles[id] = title
		}
	}
	return titles
}

// Activity counts ratings per hour of day (UTC).
func (s *Service) Activity(ctx context.Context) (core.BucketedSeries, error) {
	tbl, err := s.table(ctx, dataset.Ratings)
	if err != nil {
		return core.BucketedSeries{}, err
	}
	series, err := core.BucketTimeSeries(tbl, core.BucketSpec{Granularity: core.HourOfDay, Value: fieldRating, Agg: core.AggCount})
	if err != nil {
		return core.BucketedSeries{}, err
	}
	s.dropped(ctx, dataset.Ratings, log.OpBucket, series.Dropped)
	return series, nil
}

// Genres counts movie rows per genre, most frequent first.
func (s *Service) Genres(ctx context.Context, n int) (core.FrequencyList, error) {
	tbl, err := s.table(ctx, dataset.Movies)
	if err != nil {
		return core.FrequencyList{}, err
	}
	freq := core.Frequency(explodeGenres(tbl), fieldGenre, n)
	s.dropped(ctx, dataset.Movies, log.OpCount, freq.Dropped)
	return freq, nil
}

// UserFrequency bins users by how many ratings they gave.
func (s *Service) UserFrequency(ctx context.Context, bins int) (UserFrequency, error) {
	tbl, err := s.table(ctx, dataset.Ratings)
	if err != nil {
		return UserFrequency{}, err
	}
	if bins <= 0 {
		bins = DefaultUserBins
	}
	freq := core.Frequency(tbl, fieldUser, 0)
	s.dropped(ctx, dataset.Ratings, log.OpCount, freq.Dropped)

	counts := lo.Map(freq.Entries, func(e core.FrequencyEntry, _ int) float64 { return float64(e.Count) })
	return UserFrequency{Users: len(freq.Entries), Bins: core.Histogram(counts, bins)}, nil
}

// Heatmap pivots the mean rating of a deterministic sample of ratings by
// user and movie.
func (s *Service) Heatmap(ctx context.Context, sample int, seed uint64) (core.PivotTable, error) {
	tbl, err := s.table(ctx, dataset.Ratings)
	if err != nil {
		return core.PivotTable{}, err
	}
	if sample <= 0 {
		sample = DefaultHeatmapSample
	}
	pivot := core.Pivot(core.Sample(tbl, sample, seed), fieldUser, fieldMovie, fieldRating)
	s.dropped(ctx, dataset.Ratings, log.OpPivot, pivot.Dropped)
	return pivot, nil
}

// explodeGenres yields one record per genre listed in the genres column.
// Records without genres are left out.
func explodeGenres(t *core.Table) *core.Table {
	out := make([]core.Record, 0, t.Len())
	for _, rec := range t.Records() {
		raw, ok := rec.Dim(fieldGenres)
		if !ok {
			continue
		}
		for _, g := range strings.Split(raw, "|") {
			if g = strings.TrimSpace(g); g != "" {
				out = append(out, rec.WithDim(fieldGenre, g))
			}
		}
	}
	return core.NewTable(out)
}
