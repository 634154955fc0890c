// Package google reads dataset rows from Google Sheets ranges.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"dashboard/internal/log"
	"dashboard/internal/sources"
)

// Reader reads an A1 range of one spreadsheet. The first row of the range
// is the header.
type Reader struct {
	svc           *gsheet.Service
	spreadsheetID string
	logger        *log.Logger
}

var _ sources.RowReader = (*Reader)(nil)

// Credentials holds a service account key, inline or as a file path.
type Credentials struct {
	JSON string
	File string
}

func (c Credentials) load() ([]byte, error) {
	switch {
	case strings.TrimSpace(c.JSON) != "":
		return []byte(c.JSON), nil
	case strings.TrimSpace(c.File) != "":
		b, err := os.ReadFile(c.File)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

// New creates a read-only Sheets reader authenticated as a service account.
func New(ctx context.Context, spreadsheetID string, creds Credentials, logger *log.Logger) (*Reader, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	key, err := creds.load()
	if err != nil {
		return nil, err
	}
	return NewWithOptions(ctx, spreadsheetID, logger,
		goption.WithCredentialsJSON(key),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
}

// NewWithOptions builds a reader from explicit client options.
func NewWithOptions(ctx context.Context, spreadsheetID string, logger *log.Logger, opts ...goption.ClientOption) (*Reader, error) {
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Reader{svc: svc, spreadsheetID: spreadsheetID, logger: logger.WithComponent(log.ComponentSheets)}, nil
}

// ReadRows reads the A1 range rng. Trailing empty cells that the API omits
// are padded back so every row matches the header width.
func (r *Reader) ReadRows(ctx context.Context, rng string) (sources.RawTable, error) {
	if r.svc == nil {
		return sources.RawTable{}, errors.New("sheets service not initialized")
	}
	resp, err := r.svc.Spreadsheets.Values.Get(r.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).Do()
	if err != nil {
		return sources.RawTable{}, fmt.Errorf("read range %s: %w", rng, err)
	}
	if len(resp.Values) == 0 {
		return sources.RawTable{}, fmt.Errorf("range %s is empty", rng)
	}

	header := toStrings(resp.Values[0])
	raw := sources.RawTable{Header: header, Rows: make([][]string, 0, len(resp.Values)-1)}
	for _, v := range resp.Values[1:] {
		row := toStrings(v)
		if len(row) > len(header) {
			raw.Malformed++
			continue
		}
		if isBlank(row) {
			continue
		}
		for len(row) < len(header) {
			row = append(row, "")
		}
		raw.Rows = append(raw.Rows, row)
	}
	r.logger.DebugContext(ctx, "Sheet range read", "range", rng, log.FieldRows, len(raw.Rows))
	return raw, nil
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func isBlank(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}
