// Package testutil provides mock listing and place-resolution servers for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
)

// ListingPath is the path served by MockListing.
const ListingPath = "/dapi/restaurants/list/update"

// MockResponse defines a canned response for one request.
type MockResponse struct {
	StatusCode int
	Body       string
}

// ListingRequest is the subset of the listing payload the mock inspects.
type ListingRequest struct {
	Lat          float64           `json:"lat"`
	Lng          float64           `json:"lng"`
	WidgetOffset map[string]string `json:"widgetOffset"`
}

// MockListing is a configurable mock of the listing endpoint. Pages are
// keyed by the wire offset found in widgetOffset.
type MockListing struct {
	server *httptest.Server
	mu     sync.Mutex

	pages     map[string][]MockResponse
	requests  []ListingRequest
	userAgent string
}

// NewMockListing creates and starts a mock listing server.
func NewMockListing() *MockListing {
	mock := &MockListing{
		pages: make(map[string][]MockResponse),
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the full listing endpoint URL.
func (m *MockListing) URL() string {
	return m.server.URL + ListingPath
}

// Close shuts down the mock server.
func (m *MockListing) Close() {
	m.server.Close()
}

// SetPage queues responses for a location/offset pair. Responses are served
// in order; the last one repeats. Lat is formatted with %g.
func (m *MockListing) SetPage(lat float64, offset int, responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[pageKey(lat, strconv.Itoa(offset))] = responses
}

// SetRestaurants serves count generated restaurants for a location/offset pair.
func (m *MockListing) SetRestaurants(lat float64, offset int, prefix string, count int) {
	m.SetPage(lat, offset, MockResponse{
		StatusCode: http.StatusOK,
		Body:       ListingBody(GenerateRestaurants(prefix, count)),
	})
}

// Requests returns the payloads received so far.
func (m *MockListing) Requests() []ListingRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ListingRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// RequestCount returns the number of requests received.
func (m *MockListing) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// LastUserAgent returns the User-Agent of the latest request.
func (m *MockListing) LastUserAgent() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userAgent
}

func (m *MockListing) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != ListingPath || r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	body, _ := io.ReadAll(r.Body)
	var req ListingRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}

	var offset string
	for _, v := range req.WidgetOffset {
		offset = v
	}

	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.userAgent = r.Header.Get("User-Agent")
	key := pageKey(req.Lat, offset)
	queue := m.pages[key]
	resp := MockResponse{StatusCode: http.StatusOK, Body: ListingBody(nil)}
	if len(queue) > 0 {
		resp = queue[0]
		if len(queue) > 1 {
			m.pages[key] = queue[1:]
		}
	}
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

func pageKey(lat float64, offset string) string {
	return fmt.Sprintf("%g|%s", lat, offset)
}

// ListingBody wraps restaurants in the listing response envelope.
func ListingBody(restaurants []map[string]any) string {
	if restaurants == nil {
		restaurants = []map[string]any{}
	}
	body := map[string]any{
		"data": map[string]any{
			"cards": []any{
				map[string]any{
					"card": map[string]any{
						"card": map[string]any{
							"gridElements": map[string]any{
								"infoWithStyle": map[string]any{
									"restaurants": restaurants,
								},
							},
						},
					},
				},
			},
		},
	}
	data, _ := json.Marshal(body)
	return string(data)
}

// Restaurant returns a fully populated restaurant object.
func Restaurant(name, link string) map[string]any {
	return map[string]any{
		"info": map[string]any{
			"id":                 link,
			"name":               name,
			"areaName":           "Koregaon Park",
			"costForTwo":         "₹400 for two",
			"cuisines":           []string{"North Indian", "Chinese"},
			"avgRating":          4.3,
			"totalRatingsString": "1K+",
			"isOpen":             true,
			"availability": map[string]any{
				"nextCloseTime": "2023-09-20 23:00:00",
			},
			"aggregatedDiscountInfoV3": map[string]any{
				"header": "50% OFF",
			},
			"sla": map[string]any{
				"serviceability": "SERVICEABLE",
			},
		},
		"cta": map[string]any{
			"link": link,
		},
	}
}

// GenerateRestaurants builds count restaurants with links unique per prefix.
func GenerateRestaurants(prefix string, count int) []map[string]any {
	out := make([]map[string]any, count)
	for i := range out {
		out[i] = Restaurant(
			fmt.Sprintf("%s Restaurant %d", prefix, i+1),
			fmt.Sprintf("https://example.com/%s/%d", prefix, i+1),
		)
	}
	return out
}

// NewForbiddenResponse creates the platform's 403 rate-limit response.
func NewForbiddenResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusForbidden,
		Body:       `{"error": "forbidden"}`,
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
	}
}
