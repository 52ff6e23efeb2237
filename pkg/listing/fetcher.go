package listing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"
)

// EndpointConfig holds the fixed parts of a listing request.
type EndpointConfig struct {
	// URL of the listing endpoint.
	URL string

	// Headers
	Origin    string
	UserAgent string

	// Payload template
	NextOffset      string
	WidgetKey       string
	SEOURL          string
	SEOPageType     string
	APIName         string
	ListingPageType string
	CSRF            string

	// OffsetStep scales the page index into the wire offset.
	OffsetStep int
}

// DefaultEndpointConfig returns the desktop web listing configuration.
func DefaultEndpointConfig() EndpointConfig {
	return EndpointConfig{
		URL:             "https://www.swiggy.com/dapi/restaurants/list/update",
		Origin:          "https://www.swiggy.com",
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/116.0.0.0 Safari/537.36",
		NextOffset:      "COVCELQ4KICA38rDsq36ZjCnEzgD",
		WidgetKey:       "collectionV5RestaurantListWidget_SimRestoRelevance_food_seo",
		SEOURL:          "https://www.swiggy.com/",
		SEOPageType:     "FOOD_HOMEPAGE",
		APIName:         "FoodHomePage",
		ListingPageType: "DESKTOP_WEB_LISTING",
		CSRF:            "PQ9djvYTyhnX-ovwRLrEQcRFsGQ9cnhu2UMq",
		OffsetStep:      1,
	}
}

// Doer executes HTTP requests. Non-success statuses are expected to come
// back as errors.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type seoParams struct {
	SEOURL   string `json:"seoUrl"`
	PageType string `json:"pageType"`
	APIName  string `json:"apiName"`
}

type listRequest struct {
	Lat          float64           `json:"lat"`
	Lng          float64           `json:"lng"`
	NextOffset   string            `json:"nextOffset"`
	WidgetOffset map[string]string `json:"widgetOffset"`
	Filters      struct{}          `json:"filters"`
	SEOParams    seoParams         `json:"seoParams"`
	PageType     string            `json:"page_type"`
	CSRF         string            `json:"_csrf"`
}

// listingPath leads from cards[0] to the restaurant list.
var listingPath = []string{"card", "card", "gridElements", "infoWithStyle", "restaurants"}

// HTTPFetcher fetches one listing page per call.
type HTTPFetcher struct {
	doer   Doer
	config EndpointConfig
	logger zerolog.Logger
}

// NewHTTPFetcher creates a fetcher for the configured endpoint.
func NewHTTPFetcher(doer Doer, cfg EndpointConfig, logger zerolog.Logger) (*HTTPFetcher, error) {
	if doer == nil {
		return nil, fmt.Errorf("http doer is required")
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("listing url is required")
	}
	if cfg.OffsetStep <= 0 {
		cfg.OffsetStep = 1
	}

	return &HTTPFetcher{
		doer:   doer,
		config: cfg,
		logger: logger,
	}, nil
}

// Fetch issues exactly one request for the given location and page offset.
// A response without the restaurant list at the expected path yields an
// empty batch and no error.
func (f *HTTPFetcher) Fetch(ctx context.Context, loc Location, offset int) ([]Record, error) {
	body, err := json.Marshal(f.payload(loc, offset))
	if err != nil {
		return nil, fmt.Errorf("marshal listing request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.config.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if f.config.Origin != "" {
		req.Header.Set("Origin", f.config.Origin)
	}
	if f.config.UserAgent != "" {
		req.Header.Set("User-Agent", f.config.UserAgent)
	}

	resp, err := f.doer.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read listing response: %w", err)
	}

	records := ParseListing(data)
	if records == nil {
		f.logger.Debug().
			Str("city", loc.City).
			Int("offset", offset).
			Msg("No restaurant list in response")
	}
	return records, nil
}

func (f *HTTPFetcher) payload(loc Location, offset int) listRequest {
	return listRequest{
		Lat:        loc.Lat,
		Lng:        loc.Lng,
		NextOffset: f.config.NextOffset,
		WidgetOffset: map[string]string{
			f.config.WidgetKey: strconv.Itoa(offset * f.config.OffsetStep),
		},
		SEOParams: seoParams{
			SEOURL:   f.config.SEOURL,
			PageType: f.config.SEOPageType,
			APIName:  f.config.APIName,
		},
		PageType: f.config.ListingPageType,
		CSRF:     f.config.CSRF,
	}
}

// ParseListing extracts the restaurant list from a listing response body.
// Only data.cards[0] is inspected. Malformed bodies and missing or
// mistyped levels on that path return nil; list elements that are not
// objects are skipped.
func ParseListing(data []byte) []Record {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return nil
	}

	cards, ok := Record(body).Lookup("data", "cards").([]any)
	if !ok || len(cards) == 0 {
		return nil
	}
	first, ok := cards[0].(map[string]any)
	if !ok {
		return nil
	}
	list, ok := Record(first).Lookup(listingPath...).([]any)
	if !ok {
		return nil
	}

	var records []Record
	for _, item := range list {
		if obj, ok := item.(map[string]any); ok {
			records = append(records, Record(obj))
		}
	}
	return records
}
