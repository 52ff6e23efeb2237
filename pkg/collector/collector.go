// Package collector drives pagination for a list of locations and hands each
// non-empty batch to an incremental writer.
package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/listing-collector/pkg/client"
	"github.com/Sternrassler/listing-collector/pkg/dedup"
	"github.com/Sternrassler/listing-collector/pkg/listing"
	"github.com/Sternrassler/listing-collector/pkg/pagination"
	"github.com/Sternrassler/listing-collector/pkg/sink"
)

var (
	pagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_pages_total",
		Help: "Total listing pages fetched by city",
	}, []string{"city"})

	rowsWrittenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_rows_written_total",
		Help: "Total rows handed to the sink by city",
	}, []string{"city"})

	duplicatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collector_duplicates_total",
		Help: "Total records skipped as already written",
	})

	locationFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_location_failures_total",
		Help: "Total locations abandoned after fetch errors by error class",
	}, []string{"error_class"})
)

// Writer persists batches of records. It returns the ID the next row should
// carry.
type Writer interface {
	Write(batch []listing.Record, city string, isFirstWrite bool, nextID int64) (int64, error)
}

// Config holds collector configuration.
type Config struct {
	Pagination pagination.Config

	// Retry wraps every page fetch. The zero value fetches once.
	Retry client.RetryPolicy

	// Dedup drops records already written in this run. Nil keeps every record.
	Dedup dedup.Store

	// FirstID is the ID of the first row. Zero means sink.FirstID.
	FirstID int64
}

// DefaultConfig returns the default pagination and a single 403 retry after
// a minute.
func DefaultConfig() Config {
	return Config{
		Pagination: pagination.DefaultConfig(),
		Retry:      client.ForbiddenPolicy(60 * time.Second),
		FirstID:    sink.FirstID,
	}
}

// LocationFailure records a location that was abandoned after a fetch error.
type LocationFailure struct {
	Location listing.Location
	Offset   int
	Err      error
}

// Summary reports the outcome of a run.
type Summary struct {
	Locations  int
	Pages      int
	Records    int
	Rows       int
	Duplicates int
	Failed     []LocationFailure

	// NextID is the ID the next row would have received.
	NextID int64
}

// Collector runs the per-location pagination loop.
type Collector struct {
	paginator *pagination.Paginator
	writer    Writer
	config    Config
	logger    zerolog.Logger
}

// New creates a collector.
func New(fetcher pagination.PageFetcher, writer Writer, cfg Config, logger zerolog.Logger) (*Collector, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("page fetcher is required")
	}
	if writer == nil {
		return nil, fmt.Errorf("writer is required")
	}
	if cfg.FirstID <= 0 {
		cfg.FirstID = sink.FirstID
	}

	f := fetcher
	if cfg.Retry.MaxAttempts > 1 {
		f = &retryingFetcher{next: fetcher, policy: cfg.Retry}
	}

	return &Collector{
		paginator: pagination.NewPaginator(f, cfg.Pagination, logger),
		writer:    writer,
		config:    cfg,
		logger:    logger,
	}, nil
}

// Run collects every location in order. A location whose fetch fails is
// recorded in Summary.Failed and the run moves on. Writer and dedup errors
// and context cancellation stop the run; the partial summary is returned.
func (c *Collector) Run(ctx context.Context, locations []listing.Location) (Summary, error) {
	start := time.Now()
	sum := Summary{NextID: c.config.FirstID}

	for _, loc := range locations {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.Locations++

		res, err := c.paginator.Run(ctx, loc, func(offset int, batch []listing.Record) error {
			return c.persist(ctx, loc, batch, &sum)
		})
		sum.Pages += res.Pages
		sum.Records += res.Records
		pagesTotal.WithLabelValues(loc.City).Add(float64(res.Pages))

		if err == nil {
			continue
		}
		if !errors.Is(err, pagination.ErrFetch) || ctx.Err() != nil {
			return sum, err
		}

		errorClass := string(client.ClassOf(err))
		locationFailuresTotal.WithLabelValues(errorClass).Inc()
		c.logger.Error().
			Err(err).
			Str("city", loc.City).
			Float64("lat", loc.Lat).
			Float64("lng", loc.Lng).
			Str("error_class", errorClass).
			Msg("Location failed, continuing")
		sum.Failed = append(sum.Failed, LocationFailure{
			Location: loc,
			Offset:   res.Pages,
			Err:      err,
		})
	}

	c.logger.Info().
		Int("locations", sum.Locations).
		Int("pages", sum.Pages).
		Int("records", sum.Records).
		Int("rows", sum.Rows).
		Int("duplicates", sum.Duplicates).
		Int("failed", len(sum.Failed)).
		Dur("duration", time.Since(start)).
		Msg("Collection complete")

	return sum, nil
}

func (c *Collector) persist(ctx context.Context, loc listing.Location, batch []listing.Record, sum *Summary) error {
	if c.config.Dedup != nil {
		fresh, err := c.filter(ctx, batch)
		if err != nil {
			return err
		}
		skipped := len(batch) - len(fresh)
		sum.Duplicates += skipped
		duplicatesTotal.Add(float64(skipped))
		batch = fresh
	}
	if len(batch) == 0 {
		return nil
	}

	next, err := c.writer.Write(batch, loc.City, sum.Rows == 0, sum.NextID)
	if err != nil {
		return fmt.Errorf("write %s batch: %w", loc.City, err)
	}

	written := int(next - sum.NextID)
	sum.Rows += written
	sum.NextID = next
	rowsWrittenTotal.WithLabelValues(loc.City).Add(float64(written))
	return nil
}

// filter keeps records whose key is new or absent.
func (c *Collector) filter(ctx context.Context, batch []listing.Record) ([]listing.Record, error) {
	fresh := batch[:0:0]
	for _, r := range batch {
		key := r.Key()
		if key == "" {
			fresh = append(fresh, r)
			continue
		}
		seen, err := c.config.Dedup.Seen(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("dedup %q: %w", key, err)
		}
		if !seen {
			fresh = append(fresh, r)
		}
	}
	return fresh, nil
}

// retryingFetcher resubmits failed page requests according to a policy.
type retryingFetcher struct {
	next   pagination.PageFetcher
	policy client.RetryPolicy
}

func (f *retryingFetcher) Fetch(ctx context.Context, loc listing.Location, offset int) ([]listing.Record, error) {
	var batch []listing.Record
	err := client.Retry(ctx, f.policy, func(ctx context.Context) error {
		var err error
		batch, err = f.next.Fetch(ctx, loc, offset)
		return err
	})
	return batch, err
}
