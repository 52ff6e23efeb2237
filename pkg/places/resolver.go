// Package places turns city names into geocoded listing locations using the
// platform's autocomplete and address-recommend endpoints.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/listing-collector/pkg/cache"
	"github.com/Sternrassler/listing-collector/pkg/listing"
)

const (
	autocompletePath = "/dapi/misc/place-autocomplete"
	recommendPath    = "/dapi/misc/address-recommend"
)

// Config holds the resolver configuration.
type Config struct {
	BaseURL   string
	UserAgent string

	// Cookie is sent verbatim when set. The endpoints reject some
	// requests without a session cookie.
	Cookie string

	Timeout time.Duration

	// ExpandViewport adds the northeast and southwest viewport corners as
	// extra locations for every resolved place.
	ExpandViewport bool
}

// Cache stores raw endpoint responses. *cache.Manager satisfies it.
type Cache interface {
	Remember(ctx context.Context, key cache.CacheKey, load func(ctx context.Context) ([]byte, int, error)) ([]byte, int, error)
}

// Resolver resolves cities into listing locations.
type Resolver struct {
	client *resty.Client
	cache  Cache
	host   string
	config Config
	logger zerolog.Logger
}

type point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type autocompleteResponse struct {
	StatusCode int `json:"statusCode"`
	Data       []struct {
		PlaceID     string `json:"place_id"`
		Description string `json:"description"`
	} `json:"data"`
}

type recommendResponse struct {
	StatusCode int `json:"statusCode"`
	Data       []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location point `json:"location"`
			Viewport struct {
				Northeast *point `json:"northeast"`
				Southwest *point `json:"southwest"`
			} `json:"viewport"`
		} `json:"geometry"`
	} `json:"data"`
}

// NewResolver creates a resolver. c may be nil to disable caching.
func NewResolver(cfg Config, c Cache, logger zerolog.Logger) (*Resolver, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("places base url is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse places base url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	if cfg.Cookie != "" {
		client.SetHeader("Cookie", cfg.Cookie)
	}

	return &Resolver{
		client: client,
		cache:  c,
		host:   base.Host,
		config: cfg,
		logger: logger,
	}, nil
}

// Resolve returns the locations for city. Unknown cities and rejected
// lookups yield no locations and no error; transport failures are returned.
func (r *Resolver) Resolve(ctx context.Context, city string) ([]listing.Location, error) {
	var ac autocompleteResponse
	ok, err := r.getJSON(ctx, autocompletePath, url.Values{"input": {city}, "types": {""}}, &ac)
	if err != nil {
		return nil, fmt.Errorf("autocomplete %q: %w", city, err)
	}
	if !ok || ac.StatusCode != 0 || len(ac.Data) == 0 || ac.Data[0].PlaceID == "" {
		r.logger.Warn().Str("city", city).Int("status_code", ac.StatusCode).Msg("City not found")
		return nil, nil
	}
	placeID := ac.Data[0].PlaceID

	var rec recommendResponse
	ok, err = r.getJSON(ctx, recommendPath, url.Values{"place_id": {placeID}}, &rec)
	if err != nil {
		return nil, fmt.Errorf("recommend %q: %w", city, err)
	}
	if !ok || rec.StatusCode != 0 {
		r.logger.Warn().Str("city", city).Str("place_id", placeID).Msg("No address for place")
		return nil, nil
	}

	var locations []listing.Location
	for _, d := range rec.Data {
		at := func(p point) listing.Location {
			return listing.Location{
				City:    city,
				Lat:     p.Lat,
				Lng:     p.Lng,
				PlaceID: placeID,
				Address: d.FormattedAddress,
			}
		}

		locations = append(locations, at(d.Geometry.Location))
		if !r.config.ExpandViewport {
			continue
		}
		if ne := d.Geometry.Viewport.Northeast; ne != nil {
			locations = append(locations, at(*ne))
		}
		if sw := d.Geometry.Viewport.Southwest; sw != nil {
			locations = append(locations, at(*sw))
		}
	}

	r.logger.Debug().
		Str("city", city).
		Str("place_id", placeID).
		Int("locations", len(locations)).
		Msg("Resolved city")
	return locations, nil
}

// ResolveAll resolves every city in order and concatenates the results.
func (r *Resolver) ResolveAll(ctx context.Context, cities []string) ([]listing.Location, error) {
	var all []listing.Location
	for _, city := range cities {
		locs, err := r.Resolve(ctx, city)
		if err != nil {
			return all, err
		}
		all = append(all, locs...)
	}
	return all, nil
}

// getJSON fetches path and decodes a 200 body into v. It reports false for
// any other status or an undecodable body.
func (r *Resolver) getJSON(ctx context.Context, path string, query url.Values, v any) (bool, error) {
	load := func(ctx context.Context) ([]byte, int, error) {
		resp, err := r.client.R().
			SetContext(ctx).
			SetQueryParamsFromValues(query).
			Get(path)
		if err != nil {
			return nil, 0, err
		}
		return resp.Body(), resp.StatusCode(), nil
	}

	var (
		body   []byte
		status int
		err    error
	)
	if r.cache != nil {
		body, status, err = r.cache.Remember(ctx, cache.CacheKey{Host: r.host, Endpoint: path, QueryParams: query}, load)
	} else {
		body, status, err = load(ctx)
	}
	if err != nil {
		return false, err
	}

	if status != http.StatusOK {
		r.logger.Warn().Str("endpoint", path).Int("status", status).Msg("Place lookup rejected")
		return false, nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		r.logger.Warn().Err(err).Str("endpoint", path).Msg("Malformed place response")
		return false, nil
	}
	return true, nil
}
