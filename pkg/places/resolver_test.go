package places

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/listing-collector/internal/testutil"
	"github.com/Sternrassler/listing-collector/pkg/cache"
	"github.com/Sternrassler/listing-collector/pkg/listing"
)

// memoryCache is a Cache that stores 200 responses in a map.
type memoryCache struct {
	data map[string][]byte
}

func (m *memoryCache) Remember(ctx context.Context, key cache.CacheKey, load func(context.Context) ([]byte, int, error)) ([]byte, int, error) {
	if body, ok := m.data[key.String()]; ok {
		return body, 200, nil
	}
	body, status, err := load(ctx)
	if err == nil && status == 200 {
		m.data[key.String()] = body
	}
	return body, status, err
}

func newTestResolver(t *testing.T, baseURL string, expand bool, c Cache) *Resolver {
	t.Helper()

	r, err := NewResolver(Config{
		BaseURL:        baseURL,
		UserAgent:      "listing-collector-test",
		Timeout:        5 * time.Second,
		ExpandViewport: expand,
	}, c, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	return r
}

func punePlace() testutil.MockPlace {
	return testutil.MockPlace{
		PlaceID:   "pune-1",
		Address:   "Pune, Maharashtra, India",
		Lat:       18.52,
		Lng:       73.85,
		Northeast: &[2]float64{18.63, 73.98},
		Southwest: &[2]float64{18.41, 73.74},
	}
}

func TestNewResolver_Validation(t *testing.T) {
	if _, err := NewResolver(Config{}, nil, zerolog.Nop()); err == nil {
		t.Error("Expected error for empty base url")
	}
}

func TestResolver_Resolve(t *testing.T) {
	mock := testutil.NewMockPlaces()
	defer mock.Close()
	mock.AddPlace("Pune", punePlace())

	tests := []struct {
		name   string
		expand bool
		want   []listing.Location
	}{
		{
			name: "center only",
			want: []listing.Location{
				{City: "Pune", Lat: 18.52, Lng: 73.85, PlaceID: "pune-1", Address: "Pune, Maharashtra, India"},
			},
		},
		{
			name:   "with viewport corners",
			expand: true,
			want: []listing.Location{
				{City: "Pune", Lat: 18.52, Lng: 73.85, PlaceID: "pune-1", Address: "Pune, Maharashtra, India"},
				{City: "Pune", Lat: 18.63, Lng: 73.98, PlaceID: "pune-1", Address: "Pune, Maharashtra, India"},
				{City: "Pune", Lat: 18.41, Lng: 73.74, PlaceID: "pune-1", Address: "Pune, Maharashtra, India"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestResolver(t, mock.URL(), tt.expand, nil)

			got, err := r.Resolve(context.Background(), "Pune")
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Resolve() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolver_Resolve_MissingCorner(t *testing.T) {
	mock := testutil.NewMockPlaces()
	defer mock.Close()

	place := punePlace()
	place.Southwest = nil
	mock.AddPlace("Pune", place)

	r := newTestResolver(t, mock.URL(), true, nil)
	got, err := r.Resolve(context.Background(), "Pune")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d locations, want 2 (center + northeast)", len(got))
	}
}

func TestResolver_Resolve_UnknownCity(t *testing.T) {
	mock := testutil.NewMockPlaces()
	defer mock.Close()

	r := newTestResolver(t, mock.URL(), false, nil)
	got, err := r.Resolve(context.Background(), "Atlantis")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d locations, want 0", len(got))
	}
	if mock.Calls(testutil.RecommendPath) != 0 {
		t.Error("recommend must not be called when autocomplete fails")
	}
}

func TestResolver_Resolve_TransportError(t *testing.T) {
	mock := testutil.NewMockPlaces()
	baseURL := mock.URL()
	mock.Close()

	r := newTestResolver(t, baseURL, false, nil)
	if _, err := r.Resolve(context.Background(), "Pune"); err == nil {
		t.Error("Expected error for unreachable server")
	}
}

func TestResolver_Resolve_Cached(t *testing.T) {
	mock := testutil.NewMockPlaces()
	defer mock.Close()
	mock.AddPlace("Pune", punePlace())

	c := &memoryCache{data: make(map[string][]byte)}
	r := newTestResolver(t, mock.URL(), false, c)

	for i := 0; i < 3; i++ {
		if _, err := r.Resolve(context.Background(), "Pune"); err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
	}

	if n := mock.Calls(testutil.AutocompletePath); n != 1 {
		t.Errorf("autocomplete calls = %d, want 1", n)
	}
	if n := mock.Calls(testutil.RecommendPath); n != 1 {
		t.Errorf("recommend calls = %d, want 1", n)
	}
}

func TestResolver_ResolveAll(t *testing.T) {
	mock := testutil.NewMockPlaces()
	defer mock.Close()
	mock.AddPlace("Pune", punePlace())
	mock.AddPlace("Mumbai", testutil.MockPlace{PlaceID: "mumbai-1", Lat: 19.07, Lng: 72.87})

	r := newTestResolver(t, mock.URL(), false, nil)
	got, err := r.ResolveAll(context.Background(), []string{"Pune", "Atlantis", "Mumbai"})
	if err != nil {
		t.Fatalf("ResolveAll() error = %v", err)
	}

	var cities []string
	for _, loc := range got {
		cities = append(cities, loc.City)
	}
	if diff := cmp.Diff([]string{"Pune", "Mumbai"}, cities); diff != "" {
		t.Errorf("cities mismatch (-want +got):\n%s", diff)
	}
}

func TestResolver_Resolve_CachePerHost(t *testing.T) {
	first := testutil.NewMockPlaces()
	defer first.Close()
	first.AddPlace("Pune", punePlace())

	second := testutil.NewMockPlaces()
	defer second.Close()
	second.AddPlace("Pune", testutil.MockPlace{PlaceID: "pune-2", Lat: 18.60, Lng: 73.90})

	c := &memoryCache{data: make(map[string][]byte)}
	if _, err := newTestResolver(t, first.URL(), false, c).Resolve(context.Background(), "Pune"); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	got, err := newTestResolver(t, second.URL(), false, c).Resolve(context.Background(), "Pune")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(got) != 1 || got[0].PlaceID != "pune-2" {
		t.Errorf("Resolve() = %+v, want the second host's place", got)
	}
	if second.Calls(testutil.AutocompletePath) != 1 {
		t.Error("second host should not be served from the first host's cache")
	}
}
