// Package storage keeps snapshots of dataset rows in SQLite so the server
// can read datasets without reaching the upstream source.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"dashboard/internal/log"
	"dashboard/internal/sources"
)

// ErrNotFound is returned for a dataset that has no snapshot yet.
var ErrNotFound = errors.New("dataset snapshot not found")

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *log.Logger
}

var _ sources.RowReader = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	if _, err := RunMigrations(dbPath, logger); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  logger.WithComponent(log.ComponentStorage),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ReplaceDataset swaps the stored snapshot of name for raw in a single
// transaction.
func (r *SQLiteRepository) ReplaceDataset(ctx context.Context, name, source string, raw sources.RawTable) (err error) {
	header, err := json.Marshal(raw.Header)
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	q := r.queries.WithTx(tx)
	if err = q.UpsertDataset(ctx, UpsertDatasetParams{
		Name:      name,
		Source:    source,
		Header:    string(header),
		RowCount:  int64(len(raw.Rows)),
		Malformed: int64(raw.Malformed),
		LoadedAt:  time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("upsert dataset %s: %w", name, err)
	}
	if err = q.DeleteDatasetRows(ctx, name); err != nil {
		return fmt.Errorf("clear rows of %s: %w", name, err)
	}

	stmt, err := tx.PrepareContext(ctx, insertDatasetRow)
	if err != nil {
		return fmt.Errorf("prepare row insert: %w", err)
	}
	defer stmt.Close()
	for i, row := range raw.Rows {
		cells, mErr := json.Marshal(row)
		if mErr != nil {
			err = fmt.Errorf("encode row %d: %w", i, mErr)
			return err
		}
		if _, err = stmt.ExecContext(ctx, name, i, string(cells)); err != nil {
			return fmt.Errorf("insert row %d of %s: %w", i, name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot %s: %w", name, err)
	}
	r.logger.InfoContext(ctx, "Snapshot stored",
		log.NewFields().WithDataset(name, source).WithRowCounts(len(raw.Rows), raw.Malformed).WithOperation(log.OpSnapshot).ToSlice()...)
	return nil
}

// ReadRows returns the stored snapshot of the dataset called name.
func (r *SQLiteRepository) ReadRows(ctx context.Context, name string) (sources.RawTable, error) {
	d, err := r.queries.GetDataset(ctx, name)
	if errors.Is(err, sql.ErrNoRows) {
		return sources.RawTable{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return sources.RawTable{}, fmt.Errorf("get dataset %s: %w", name, err)
	}

	raw := sources.RawTable{Malformed: int(d.Malformed)}
	if err := json.Unmarshal([]byte(d.Header), &raw.Header); err != nil {
		return sources.RawTable{}, fmt.Errorf("decode header of %s: %w", name, err)
	}

	cells, err := r.queries.ListDatasetCells(ctx, name)
	if err != nil {
		return sources.RawTable{}, fmt.Errorf("list rows of %s: %w", name, err)
	}
	raw.Rows = make([][]string, 0, len(cells))
	for _, c := range cells {
		var row []string
		if err := json.Unmarshal([]byte(c), &row); err != nil {
			raw.Malformed++
			continue
		}
		raw.Rows = append(raw.Rows, row)
	}
	return raw, nil
}

// Datasets lists stored snapshots.
func (r *SQLiteRepository) Datasets(ctx context.Context) ([]Dataset, error) {
	items, err := r.queries.ListDatasets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	return items, nil
}
