// Package worker copies datasets from their upstream source into the
// SQLite snapshot store.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"

	"dashboard/internal/amqp"
	"dashboard/internal/dataset"
	"dashboard/internal/log"
	"dashboard/internal/metrics"
	"dashboard/internal/sources"
)

// ErrUnknownDataset is returned when asked to refresh a dataset with no
// configured upstream location.
var ErrUnknownDataset = errors.New("unknown dataset")

// SnapshotWriter stores a dataset snapshot.
type SnapshotWriter interface {
	ReplaceDataset(ctx context.Context, name, source string, raw sources.RawTable) error
}

// RefreshWorker reads upstream rows, checks them against the dataset
// schema and replaces the stored snapshot.
type RefreshWorker struct {
	upstream  sources.RowReader
	store     SnapshotWriter
	locations map[string]string
	logger    *log.Logger
	metrics   *metrics.Metrics
}

func NewRefreshWorker(upstream sources.RowReader, store SnapshotWriter, locations map[string]string, logger *log.Logger, m *metrics.Metrics) *RefreshWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &RefreshWorker{
		upstream:  upstream,
		store:     store,
		locations: lo.Assign(locations),
		logger:    logger.WithComponent(log.ComponentWorker),
		metrics:   m,
	}
}

// Refresh replaces the snapshot of one dataset. Rows that fail schema
// validation leave the previous snapshot in place.
func (w *RefreshWorker) Refresh(ctx context.Context, name string) (err error) {
	defer func() { w.metrics.ObserveRefresh(name, err) }()

	location, ok := w.locations[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDataset, name)
	}
	schema, err := dataset.Lookup(name)
	if err != nil {
		return err
	}

	start := time.Now()
	raw, err := w.upstream.ReadRows(ctx, location)
	if err != nil {
		return fmt.Errorf("read %s from %s: %w", name, location, err)
	}
	_, stats, err := dataset.ParseRows(raw.Header, raw.Rows, schema)
	if err != nil {
		return fmt.Errorf("validate %s: %w", name, err)
	}
	if err := w.store.ReplaceDataset(ctx, name, location, raw); err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "Dataset refreshed",
		log.NewFields().
			WithOperation(log.OpRefresh).
			WithDataset(name, location).
			WithRowCounts(stats.Rows, stats.Skipped+raw.Malformed).
			ToSlice()...,
	)
	w.logger.DebugContext(ctx, "Refresh timing", log.FieldDataset, name, log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

// RefreshAll refreshes every configured dataset and joins the failures.
func (w *RefreshWorker) RefreshAll(ctx context.Context) error {
	var errs []error
	for _, name := range w.names() {
		if err := w.Refresh(ctx, name); err != nil {
			w.logger.ErrorContext(ctx, "Dataset refresh failed",
				log.NewFields().WithOperation(log.OpRefresh).WithDataset(name, w.locations[name]).WithError(err).ToSlice()...)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// HandleRefreshMessage serves refresh requests received over AMQP.
// Requests for unknown datasets are logged and acknowledged.
func (w *RefreshWorker) HandleRefreshMessage(ctx context.Context, msg *amqp.RefreshMessage) error {
	w.logger.InfoContext(ctx, "Processing refresh message",
		"message_id", msg.ID, log.FieldDataset, msg.Dataset, "reason", msg.Reason)

	if msg.Dataset == "" {
		return w.RefreshAll(ctx)
	}
	err := w.Refresh(ctx, msg.Dataset)
	if errors.Is(err, ErrUnknownDataset) || errors.Is(err, dataset.ErrUnknownSchema) {
		w.logger.WarnContext(ctx, "Ignoring refresh for unknown dataset", "message_id", msg.ID, log.FieldDataset, msg.Dataset)
		return nil
	}
	return err
}

// Run refreshes everything at startup and then every interval until ctx
// is cancelled. Failed passes are logged; the next tick retries.
func (w *RefreshWorker) Run(ctx context.Context, interval time.Duration) error {
	w.logger.InfoContext(ctx, "Refresh worker started", "interval", interval.String(), "datasets", w.names())
	if err := w.RefreshAll(ctx); err != nil {
		w.logger.WarnContext(ctx, "Startup refresh incomplete", log.FieldError, err.Error())
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "Refresh worker stopped")
			return ctx.Err()
		case <-ticker.C:
			_ = w.RefreshAll(ctx)
		}
	}
}

func (w *RefreshWorker) names() []string {
	// schema order keeps passes deterministic
	return lo.Filter(dataset.Names(), func(name string, _ int) bool {
		_, ok := w.locations[name]
		return ok
	})
}
