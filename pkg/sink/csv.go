// Package sink appends flattened listing rows to a CSV file.
package sink

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Sternrassler/listing-collector/pkg/listing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// FirstID is the identifier assigned to the first row of a run.
const FirstID int64 = 1

// ErrSinkWrite is returned when rows could not be persisted.
var ErrSinkWrite = errors.New("sink write failed")

var sinkRowsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "sink_rows_total",
	Help: "Total rows persisted to the CSV sink",
})

// CSVWriter appends rows to a CSV file. The file is opened and closed on
// every Write.
type CSVWriter struct {
	path   string
	schema listing.Schema
	logger zerolog.Logger
}

// NewCSVWriter creates a writer for path using schema.
func NewCSVWriter(path string, schema listing.Schema, logger zerolog.Logger) *CSVWriter {
	return &CSVWriter{
		path:   path,
		schema: schema,
		logger: logger,
	}
}

// Path returns the sink location.
func (w *CSVWriter) Path() string {
	return w.path
}

// Write flattens batch into rows numbered from nextID and appends them.
// With isFirstWrite the file is truncated and the header written first.
// It returns the identifier to use for the next row, which has advanced by
// exactly the number of rows persisted.
func (w *CSVWriter) Write(batch []listing.Record, city string, isFirstWrite bool, nextID int64) (next int64, err error) {
	next = nextID

	flag := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if isFirstWrite {
		flag = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}

	if dir := filepath.Dir(w.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return next, fmt.Errorf("%w: create directory: %w", ErrSinkWrite, err)
		}
	}

	f, err := os.OpenFile(w.path, flag, 0o644)
	if err != nil {
		return next, fmt.Errorf("%w: open %s: %w", ErrSinkWrite, w.path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			next = nextID
			err = fmt.Errorf("%w: close %s: %w", ErrSinkWrite, w.path, cerr)
		}
	}()

	cw := csv.NewWriter(f)

	if isFirstWrite {
		if err := cw.Write(w.schema.Header()); err != nil {
			return next, fmt.Errorf("%w: write header: %w", ErrSinkWrite, err)
		}
	}

	for i, rec := range batch {
		if err := cw.Write(w.schema.Row(nextID+int64(i), city, rec)); err != nil {
			return next, fmt.Errorf("%w: write row %d: %w", ErrSinkWrite, nextID+int64(i), err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return next, fmt.Errorf("%w: flush: %w", ErrSinkWrite, err)
	}

	next = nextID + int64(len(batch))
	sinkRowsTotal.Add(float64(len(batch)))

	w.logger.Debug().
		Str("city", city).
		Int("rows", len(batch)).
		Int64("first_id", nextID).
		Int64("next_id", next).
		Bool("header", isFirstWrite).
		Msg("Rows appended")

	return next, nil
}
