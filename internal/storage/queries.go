package storage

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries holds the SQL the repository runs.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Dataset is a row of the datasets table.
type Dataset struct {
	Name      string    `json:"name"`
	Source    string    `json:"source"`
	Header    string    `json:"-"`
	RowCount  int64     `json:"row_count"`
	Malformed int64     `json:"malformed"`
	LoadedAt  time.Time `json:"loaded_at"`
}

const upsertDataset = `
INSERT INTO datasets (name, source, header, row_count, malformed, loaded_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
    source = excluded.source,
    header = excluded.header,
    row_count = excluded.row_count,
    malformed = excluded.malformed,
    loaded_at = excluded.loaded_at
`

type UpsertDatasetParams struct {
	Name      string
	Source    string
	Header    string
	RowCount  int64
	Malformed int64
	LoadedAt  time.Time
}

func (q *Queries) UpsertDataset(ctx context.Context, arg UpsertDatasetParams) error {
	_, err := q.db.ExecContext(ctx, upsertDataset,
		arg.Name, arg.Source, arg.Header, arg.RowCount, arg.Malformed, arg.LoadedAt)
	return err
}

const deleteDatasetRows = `DELETE FROM dataset_rows WHERE dataset = ?`

func (q *Queries) DeleteDatasetRows(ctx context.Context, dataset string) error {
	_, err := q.db.ExecContext(ctx, deleteDatasetRows, dataset)
	return err
}

const insertDatasetRow = `INSERT INTO dataset_rows (dataset, row_num, cells) VALUES (?, ?, ?)`

const getDataset = `
SELECT name, source, header, row_count, malformed, loaded_at
FROM datasets WHERE name = ?
`

func (q *Queries) GetDataset(ctx context.Context, name string) (Dataset, error) {
	var d Dataset
	err := q.db.QueryRowContext(ctx, getDataset, name).
		Scan(&d.Name, &d.Source, &d.Header, &d.RowCount, &d.Malformed, &d.LoadedAt)
	return d, err
}

const listDatasets = `
SELECT name, source, header, row_count, malformed, loaded_at
FROM datasets ORDER BY name
`

func (q *Queries) ListDatasets(ctx context.Context) ([]Dataset, error) {
	rows, err := q.db.QueryContext(ctx, listDatasets)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Dataset
	for rows.Next() {
		var d Dataset
		if err := rows.Scan(&d.Name, &d.Source, &d.Header, &d.RowCount, &d.Malformed, &d.LoadedAt); err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

const listDatasetCells = `SELECT cells FROM dataset_rows WHERE dataset = ? ORDER BY row_num`

func (q *Queries) ListDatasetCells(ctx context.Context, dataset string) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listDatasetCells, dataset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var cells string
		if err := rows.Scan(&cells); err != nil {
			return nil, err
		}
		items = append(items, cells)
	}
	return items, rows.Err()
}
