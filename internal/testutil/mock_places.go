package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
)

// Place-resolution paths served by MockPlaces.
const (
	AutocompletePath = "/dapi/misc/place-autocomplete"
	RecommendPath    = "/dapi/misc/address-recommend"
)

// MockPlace describes one resolvable city.
type MockPlace struct {
	PlaceID  string
	Address  string
	Lat, Lng float64

	// Viewport corners; nil omits the corner.
	Northeast, Southwest *[2]float64
}

// MockPlaces is a mock of the autocomplete and recommend endpoints.
type MockPlaces struct {
	server *httptest.Server
	mu     sync.Mutex

	places map[string]MockPlace
	calls  map[string]int
}

// NewMockPlaces creates and starts a mock place-resolution server.
func NewMockPlaces() *MockPlaces {
	mock := &MockPlaces{
		places: make(map[string]MockPlace),
		calls:  make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(AutocompletePath, mock.autocomplete)
	mux.HandleFunc(RecommendPath, mock.recommend)
	mock.server = httptest.NewServer(mux)
	return mock
}

// URL returns the server base URL.
func (m *MockPlaces) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockPlaces) Close() {
	m.server.Close()
}

// AddPlace registers a city.
func (m *MockPlaces) AddPlace(city string, place MockPlace) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.places[city] = place
}

// Calls returns how often path was requested.
func (m *MockPlaces) Calls(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[path]
}

func (m *MockPlaces) autocomplete(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.calls[AutocompletePath]++
	place, ok := m.places[r.URL.Query().Get("input")]
	m.mu.Unlock()

	if !ok {
		writeJSON(w, map[string]any{"statusCode": 1, "statusMessage": "no results"})
		return
	}
	writeJSON(w, map[string]any{
		"statusCode": 0,
		"data": []any{
			map[string]any{"place_id": place.PlaceID, "description": place.Address},
		},
	})
}

func (m *MockPlaces) recommend(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.calls[RecommendPath]++
	var (
		place MockPlace
		found bool
	)
	for _, p := range m.places {
		if p.PlaceID == r.URL.Query().Get("place_id") {
			place, found = p, true
			break
		}
	}
	m.mu.Unlock()

	if !found {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	viewport := map[string]any{}
	if place.Northeast != nil {
		viewport["northeast"] = map[string]any{"lat": place.Northeast[0], "lng": place.Northeast[1]}
	}
	if place.Southwest != nil {
		viewport["southwest"] = map[string]any{"lat": place.Southwest[0], "lng": place.Southwest[1]}
	}

	writeJSON(w, map[string]any{
		"statusCode": 0,
		"data": []any{
			map[string]any{
				"formatted_address": place.Address,
				"geometry": map[string]any{
					"location": map[string]any{"lat": place.Lat, "lng": place.Lng},
					"viewport": viewport,
				},
			},
		},
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}
