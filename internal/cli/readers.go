package cli

import (
	"context"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/samber/lo"

	"dashboard/internal/config"
	"dashboard/internal/log"
	"dashboard/internal/sources"
	"dashboard/internal/sources/google"
)

// NewRowReader builds the reader for a csv or sheets backend. The S3
// client is only created when a location needs it, so local and HTTP
// sources work without AWS credentials.
func NewRowReader(ctx context.Context, cfg *config.Config, backend string, logger *log.Logger) (sources.RowReader, error) {
	switch backend {
	case config.BackendCSV:
		if !needsS3(cfg.Sources()) {
			return sources.NewCSVReader(nil), nil
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		logger.Info("S3 client initialized", log.FieldBackend, backend)
		return sources.NewCSVReader(s3.NewFromConfig(awsCfg)), nil
	case config.BackendSheets:
		r, err := google.New(ctx, cfg.GoogleSpreadsheetID, google.Credentials{
			JSON: cfg.GoogleServiceAccountJSON,
			File: cfg.GoogleServiceAccountFile,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("init sheets reader: %w", err)
		}
		return r, nil
	default:
		return nil, fmt.Errorf("backend %q has no upstream reader", backend)
	}
}

func needsS3(locations map[string]string) bool {
	return lo.SomeBy(lo.Values(locations), func(loc string) bool {
		return strings.HasPrefix(loc, "s3://")
	})
}

// SnapshotLocations maps every dataset to its own name, the key the
// snapshot store files it under.
func SnapshotLocations(cfg *config.Config) map[string]string {
	return lo.MapValues(cfg.Sources(), func(_ string, name string) string { return name })
}
