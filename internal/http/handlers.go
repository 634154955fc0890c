package http

import (
	"context"
	"net/http"
	"strings"

	"dashboard/internal/amqp"
	"dashboard/internal/dashboard"
	"dashboard/internal/dataset"
	"dashboard/internal/log"
	"dashboard/internal/sources"
)

func (s *Server) withTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.requestTimeout)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports ready once every dataset can be loaded.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.loader == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	ctx, cancel := s.withTimeout(r)
	defer cancel()
	if _, err := sources.LoadAll(ctx, s.loader, dataset.Names()...); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err.Error())
		writeError(w, http.StatusServiceUnavailable, "datasets not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleAvocadoOptions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.withTimeout(r)
	defer cancel()
	opts, err := s.svc.AvocadoOptions(ctx)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

func (s *Server) handleAvocadoPrices(w http.ResponseWriter, r *http.Request) {
	p := newQueryParser(r.URL.Query())
	q := avocadoPricesQuery{
		Geography: p.Strings("geography"),
		Type:      p.Strings("type"),
		From:      p.Date("from"),
		To:        p.Date("to"),
		MinPrice:  p.Float("min_price"),
		MaxPrice:  p.Float("max_price"),
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		p.violations = append(p.violations, rangeViolation("to", "from"))
	}
	if q.MinPrice != nil && q.MaxPrice != nil && *q.MaxPrice < *q.MinPrice {
		p.violations = append(p.violations, rangeViolation("max_price", "min_price"))
	}
	if err := s.check(p, q); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()
	prices, err := s.svc.AvocadoPrices(ctx, dashboard.AvocadoQuery{
		Geographies: q.Geography,
		Types:       q.Type,
		From:        q.From,
		To:          q.To,
		MinPrice:    q.MinPrice,
		MaxPrice:    q.MaxPrice,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prices)
}

func (s *Server) handleMoviesOverview(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.withTimeout(r)
	defer cancel()
	overview, err := s.svc.MoviesOverview(ctx)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (s *Server) handleTopMovies(w http.ResponseWriter, r *http.Request) {
	p := newQueryParser(r.URL.Query())
	q := topMoviesQuery{
		N:        p.Int("n", dashboard.DefaultTopMovies),
		Genre:    p.String("genre"),
		YearFrom: p.Float("year_from"),
		YearTo:   p.Float("year_to"),
		MinCount: p.Int("min_count", 0),
		Sort:     p.String("sort"),
	}
	if q.YearFrom != nil && q.YearTo != nil && *q.YearTo < *q.YearFrom {
		p.violations = append(p.violations, rangeViolation("year_to", "year_from"))
	}
	if err := s.check(p, q); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()
	movies, err := s.svc.TopMovies(ctx, dashboard.TopMoviesQuery{
		N:        q.N,
		Genre:    q.Genre,
		YearFrom: q.YearFrom,
		YearTo:   q.YearTo,
		MinCount: q.MinCount,
		Sort:     dashboard.MovieSort(strings.ToLower(q.Sort)),
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"movies": movies})
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.withTimeout(r)
	defer cancel()
	series, err := s.svc.Activity(ctx)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, series)
}

func (s *Server) handleGenres(w http.ResponseWriter, r *http.Request) {
	p := newQueryParser(r.URL.Query())
	q := genresQuery{N: p.Int("n", 0)}
	if err := s.check(p, q); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()
	freq, err := s.svc.Genres(ctx, q.N)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, freq)
}

func (s *Server) handleUserFrequency(w http.ResponseWriter, r *http.Request) {
	p := newQueryParser(r.URL.Query())
	q := userFrequencyQuery{Bins: p.Int("bins", dashboard.DefaultUserBins)}
	if err := s.check(p, q); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()
	uf, err := s.svc.UserFrequency(ctx, q.Bins)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, uf)
}

func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	p := newQueryParser(r.URL.Query())
	q := heatmapQuery{
		Sample: p.Int("sample", dashboard.DefaultHeatmapSample),
		Seed:   p.Uint64("seed", dashboard.DefaultHeatmapSeed),
	}
	if err := s.check(p, q); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()
	pivot, err := s.svc.Heatmap(ctx, q.Sample, q.Seed)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pivot)
}

type refreshResponse struct {
	Datasets  []string `json:"datasets"`
	Published bool     `json:"published"`
	MessageID string   `json:"message_id,omitempty"`
}

// handleRefresh drops cached tables and asks the worker for fresh
// snapshots. A failed publish does not fail the request.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	p := newQueryParser(r.URL.Query())
	q := refreshQuery{Name: p.String("name")}
	if err := s.check(p, q); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	names := dataset.Names()
	if q.Name != "" {
		names = []string{q.Name}
	}
	if s.invalidator != nil {
		for _, name := range names {
			s.invalidator.Invalidate(name)
		}
	}

	resp := refreshResponse{Datasets: names}
	if s.publisher != nil {
		ctx, cancel := s.withTimeout(r)
		defer cancel()
		msg := amqp.NewRefreshMessage(q.Name, "api")
		if err := s.publisher.PublishRefresh(ctx, msg); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Failed to publish refresh message",
				log.FieldDataset, q.Name, log.FieldError, err.Error())
		} else {
			resp.Published = true
			resp.MessageID = msg.ID
		}
	}
	writeJSON(w, http.StatusAccepted, resp)
}
