package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/listing-collector/pkg/listing"
	"github.com/rs/zerolog"
)

// ErrFetch marks errors raised by the PageFetcher, as opposed to errors
// returned by the visit callback.
var ErrFetch = errors.New("page fetch failed")

// PageFetcher fetches a single page of records for a location.
type PageFetcher interface {
	Fetch(ctx context.Context, loc listing.Location, offset int) ([]listing.Record, error)
}

// Progress describes the walk right after a page was fetched.
type Progress struct {
	Offset      int
	BatchSize   int
	EmptyStreak int
	Records     int
}

// StopStrategy decides whether pagination ends after the current page.
type StopStrategy interface {
	Stop(p Progress) bool
}

// FirstEmpty stops as soon as a page comes back empty.
type FirstEmpty struct{}

// Stop implements StopStrategy.
func (FirstEmpty) Stop(p Progress) bool {
	return p.BatchSize == 0
}

// ConsecutiveEmpty stops after N empty pages in a row.
type ConsecutiveEmpty struct {
	N int
}

// Stop implements StopStrategy.
func (s ConsecutiveEmpty) Stop(p Progress) bool {
	n := s.N
	if n < 1 {
		n = 1
	}
	return p.EmptyStreak >= n
}

// Config holds paginator configuration.
type Config struct {
	// MaxPages caps the number of requests per location. Offsets run from 0
	// to MaxPages-1.
	MaxPages int

	// Stop ends the walk early.
	Stop StopStrategy
}

// DefaultConfig returns 10 pages with first-empty termination.
func DefaultConfig() Config {
	return Config{
		MaxPages: 10,
		Stop:     FirstEmpty{},
	}
}

// Result summarizes the walk for one location.
type Result struct {
	Pages   int
	Records int
}

// Paginator requests pages sequentially.
type Paginator struct {
	fetcher PageFetcher
	config  Config
	logger  zerolog.Logger
}

// NewPaginator creates a new paginator.
func NewPaginator(fetcher PageFetcher, config Config, logger zerolog.Logger) *Paginator {
	if config.MaxPages <= 0 {
		config.MaxPages = 10
	}
	if config.Stop == nil {
		config.Stop = FirstEmpty{}
	}

	return &Paginator{
		fetcher: fetcher,
		config:  config,
		logger:  logger,
	}
}

// Run walks the pages of loc and calls visit for every non-empty batch.
// Fetch errors are wrapped with ErrFetch; visit errors are returned as is.
func (p *Paginator) Run(ctx context.Context, loc listing.Location, visit func(offset int, batch []listing.Record) error) (Result, error) {
	start := time.Now()
	var (
		res   Result
		empty int
	)

	for offset := 0; offset < p.config.MaxPages; offset++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		p.logger.Debug().
			Str("city", loc.City).
			Float64("lat", loc.Lat).
			Float64("lng", loc.Lng).
			Int("offset", offset).
			Msg("Fetching page")

		batch, err := p.fetcher.Fetch(ctx, loc, offset)
		if err != nil {
			return res, fmt.Errorf("%w at offset %d: %w", ErrFetch, offset, err)
		}
		res.Pages++

		if len(batch) == 0 {
			empty++
		} else {
			empty = 0
			res.Records += len(batch)
			if err := visit(offset, batch); err != nil {
				return res, err
			}
		}

		progress := Progress{
			Offset:      offset,
			BatchSize:   len(batch),
			EmptyStreak: empty,
			Records:     res.Records,
		}
		if p.config.Stop.Stop(progress) {
			p.logger.Debug().
				Str("city", loc.City).
				Int("offset", offset).
				Msg("Stop strategy ended pagination")
			break
		}
	}

	p.logger.Info().
		Str("city", loc.City).
		Float64("lat", loc.Lat).
		Float64("lng", loc.Lng).
		Int("pages", res.Pages).
		Int("records", res.Records).
		Dur("duration", time.Since(start)).
		Msg("Location complete")

	return res, nil
}
