package sources

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrStatus is returned when an HTTP source answers with anything but 200.
var ErrStatus = errors.New("unexpected HTTP status")

// S3API is the part of the S3 client the CSV reader needs.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// CSVReader reads CSV text from a local path, an http(s) URL or an
// s3://bucket/key object. Each location is fetched once per call.
type CSVReader struct {
	HTTP *http.Client
	S3   S3API
}

var _ RowReader = (*CSVReader)(nil)

// NewCSVReader returns a reader with a bounded HTTP client. s3Client may be
// nil when no source lives in S3.
func NewCSVReader(s3Client S3API) *CSVReader {
	return &CSVReader{
		HTTP: &http.Client{Timeout: 60 * time.Second},
		S3:   s3Client,
	}
}

func (r *CSVReader) ReadRows(ctx context.Context, location string) (RawTable, error) {
	body, err := r.open(ctx, location)
	if err != nil {
		return RawTable{}, err
	}
	defer body.Close()
	return ReadCSV(body)
}

func (r *CSVReader) open(ctx context.Context, location string) (io.ReadCloser, error) {
	switch {
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return r.openHTTP(ctx, location)
	case strings.HasPrefix(location, "s3://"):
		return r.openS3(ctx, location)
	default:
		f, err := os.Open(strings.TrimPrefix(location, "file://"))
		if err != nil {
			return nil, fmt.Errorf("open csv file: %w", err)
		}
		return f, nil
	}
}

func (r *CSVReader) openHTTP(ctx context.Context, location string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	client := r.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", location, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: %w: %d", location, ErrStatus, resp.StatusCode)
	}
	return resp.Body, nil
}

func (r *CSVReader) openS3(ctx context.Context, location string) (io.ReadCloser, error) {
	if r.S3 == nil {
		return nil, fmt.Errorf("s3 source %s: no S3 client configured", location)
	}
	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("parse s3 location: %w", err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return nil, fmt.Errorf("s3 location %q must be s3://bucket/key", location)
	}
	out, err := r.S3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.Host),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3 object %s: %w", location, err)
	}
	return out.Body, nil
}

// ReadCSV reads a header and rows from CSV text. Records the csv package
// rejects are counted in Malformed.
func ReadCSV(in io.Reader) (RawTable, error) {
	cr := csv.NewReader(in)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return RawTable{}, errors.New("empty csv")
	}
	if err != nil {
		return RawTable{}, fmt.Errorf("read csv header: %w", err)
	}

	raw := RawTable{Header: header}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return raw, nil
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			raw.Malformed++
			continue
		}
		if err != nil {
			return RawTable{}, fmt.Errorf("read csv: %w", err)
		}
		raw.Rows = append(raw.Rows, rec)
	}
}
