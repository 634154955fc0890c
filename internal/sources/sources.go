// Package sources fetches raw dataset rows and turns them into core tables.
package sources

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dashboard/internal/core"
	"dashboard/internal/dataset"
	"dashboard/internal/log"
	"dashboard/internal/metrics"
)

// ErrLoad wraps every failure to produce a table. Callers treat it as
// terminal for the current request.
var ErrLoad = errors.New("dataset load failed")

// RawTable is a header and the rows under it, as read from a source.
// Malformed counts records the reader had to discard.
type RawTable struct {
	Header    []string
	Rows      [][]string
	Malformed int
}

// RowReader fetches the raw rows stored at location.
type RowReader interface {
	ReadRows(ctx context.Context, location string) (RawTable, error)
}

// TableLoader returns the parsed table for a dataset name.
type TableLoader interface {
	Load(ctx context.Context, name string) (*core.Table, error)
}

// RowReaderFunc adapts a function to RowReader.
type RowReaderFunc func(ctx context.Context, location string) (RawTable, error)

func (f RowReaderFunc) ReadRows(ctx context.Context, location string) (RawTable, error) {
	return f(ctx, location)
}

// Loader reads a dataset through a RowReader and parses it with the
// dataset's schema.
type Loader struct {
	reader    RowReader
	locations map[string]string
	logger    *log.Logger
	metrics   *metrics.Metrics
}

var _ TableLoader = (*Loader)(nil)

// NewLoader maps dataset names to reader locations.
func NewLoader(reader RowReader, locations map[string]string, logger *log.Logger, m *metrics.Metrics) *Loader {
	locs := make(map[string]string, len(locations))
	for k, v := range locations {
		locs[k] = v
	}
	return &Loader{
		reader:    reader,
		locations: locs,
		logger:    logger.WithComponent(log.ComponentSources),
		metrics:   m,
	}
}

// Location returns where name is read from.
func (l *Loader) Location(name string) (string, bool) {
	loc, ok := l.locations[name]
	return loc, ok
}

// Load fetches and parses one dataset. Any failure is wrapped in ErrLoad.
func (l *Loader) Load(ctx context.Context, name string) (*core.Table, error) {
	start := time.Now()
	tbl, stats, err := l.load(ctx, name)
	l.metrics.ObserveLoad(name, stats.Rows, time.Since(start), err)
	if err != nil {
		l.logger.ErrorContext(ctx, "Dataset load failed",
			log.NewFields().WithDataset(name, l.locations[name]).WithOperation(log.OpLoad).WithError(err).ToSlice()...)
		return nil, fmt.Errorf("%w: %s: %w", ErrLoad, name, err)
	}

	fields := log.NewFields().
		WithDataset(name, l.locations[name]).
		WithRowCounts(stats.Rows, stats.Skipped).
		WithOperation(log.OpLoad)
	if stats.Skipped > 0 {
		l.logger.WarnContext(ctx, "Dataset loaded with malformed rows", fields.ToSlice()...)
	} else {
		l.logger.InfoContext(ctx, "Dataset loaded", fields.ToSlice()...)
	}
	return tbl, nil
}

func (l *Loader) load(ctx context.Context, name string) (*core.Table, dataset.ParseStats, error) {
	schema, err := dataset.Lookup(name)
	if err != nil {
		return nil, dataset.ParseStats{}, err
	}
	loc, ok := l.locations[name]
	if !ok || loc == "" {
		return nil, dataset.ParseStats{}, fmt.Errorf("no source configured for %q", name)
	}
	raw, err := l.reader.ReadRows(ctx, loc)
	if err != nil {
		return nil, dataset.ParseStats{}, err
	}
	tbl, stats, err := dataset.ParseRows(raw.Header, raw.Rows, schema)
	if err != nil {
		return nil, stats, err
	}
	stats.Skipped += raw.Malformed
	return tbl, stats, nil
}
