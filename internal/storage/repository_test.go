package storage

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"dashboard/internal/log"
	"dashboard/internal/sources"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "test.db"), log.Discard())
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestReplaceAndReadDataset(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	raw := sources.RawTable{
		Header:    []string{"userId", "movieId", "rating", "timestamp"},
		Rows:      [][]string{{"1", "31", "2.5", "1260759144"}, {"1", "1029", "3.0", ""}},
		Malformed: 1,
	}
	if err := repo.ReplaceDataset(ctx, "ratings", "https://example.com/r.csv", raw); err != nil {
		t.Fatalf("ReplaceDataset: %v", err)
	}

	got, err := repo.ReadRows(ctx, "ratings")
	if err != nil {
		t.Fatalf("ReadRows: %v", err)
	}
	if !reflect.DeepEqual(got, raw) {
		t.Fatalf("ReadRows = %+v, want %+v", got, raw)
	}

	smaller := sources.RawTable{Header: raw.Header, Rows: raw.Rows[:1]}
	if err := repo.ReplaceDataset(ctx, "ratings", "https://example.com/r.csv", smaller); err != nil {
		t.Fatalf("second ReplaceDataset: %v", err)
	}
	got, err = repo.ReadRows(ctx, "ratings")
	if err != nil {
		t.Fatalf("ReadRows: %v", err)
	}
	if len(got.Rows) != 1 || got.Malformed != 0 {
		t.Fatalf("snapshot not replaced: %+v", got)
	}

	items, err := repo.Datasets(ctx)
	if err != nil || len(items) != 1 || items[0].RowCount != 1 || items[0].Name != "ratings" {
		t.Fatalf("Datasets = %+v, %v", items, err)
	}
}

func TestReadRowsNotFound(t *testing.T) {
	repo := newTestRepo(t)
	if _, err := repo.ReadRows(context.Background(), "avocado"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRepositoryFeedsLoader(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	raw := sources.RawTable{
		Header: []string{"date", "average_price", "type", "geography"},
		Rows:   [][]string{{"2020-01-01", "1.2", "organic", "LA"}},
	}
	if err := repo.ReplaceDataset(ctx, "avocado", "./avocado.csv", raw); err != nil {
		t.Fatal(err)
	}
	l := sources.NewLoader(repo, map[string]string{"avocado": "avocado"}, log.Discard(), nil)
	tbl, err := l.Load(ctx, "avocado")
	if err != nil || tbl.Len() != 1 {
		t.Fatalf("Load: len=%d err=%v", tbl.Len(), err)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")

	first, err := RunMigrations(path, log.Discard())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if !first.Applied || first.Version != 1 {
		t.Fatalf("first run = %+v, want version 1 applied", first)
	}

	second, err := RunMigrations(path, log.Discard())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Applied || second.Version != first.Version {
		t.Fatalf("second run = %+v, want no change at version %d", second, first.Version)
	}
}
