package distance

import (
	"context"
	"delivery-batch-service/internal/domain"
	"delivery-batch-service/internal/ports"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type memoryDistanceCache struct {
	mu sync.Mutex
	m  map[string]ports.DistanceResult
}

func (c *memoryDistanceCache) GetMany(_ context.Context, origin string, destinations []string) (map[string]ports.DistanceResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := map[string]ports.DistanceResult{}
	for _, d := range destinations {
		if r, ok := c.m[origin+"|"+d]; ok {
			out[d] = r
		}
	}
	return out, nil
}

func (c *memoryDistanceCache) PutMany(_ context.Context, origin string, results map[string]ports.DistanceResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for d, r := range results {
		c.m[origin+"|"+d] = r
	}
	return nil
}

func newORSStub(t *testing.T, matrixCalls *atomic.Int64, failFirst bool) *httptest.Server {
	t.Helper()

	coords := map[string][]float64{
		"1 Hub St Phoenix AZ 85004": {-112.07, 33.45},
		"2 Oak Ave Phoenix AZ 85008": {-112.00, 33.46},
	}
	var failed atomic.Bool

	mux := http.NewServeMux()
	mux.HandleFunc("/geocode/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		c, ok := coords[r.URL.Query().Get("text")]
		features := []map[string]any{}
		if ok {
			features = append(features, map[string]any{"geometry": map[string]any{"coordinates": c}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"features": features})
	})
	mux.HandleFunc("/v2/matrix/driving-car", func(w http.ResponseWriter, r *http.Request) {
		if failFirst && failed.CompareAndSwap(false, true) {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		matrixCalls.Add(1)

		var req matrixRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Units != "mi" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		dist := make([]float64, len(req.Destinations))
		dur := make([]float64, len(req.Destinations))
		for i := range req.Destinations {
			dist[i] = 0.77
			dur[i] = 300.6
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"distances": [][]float64{dist},
			"durations": [][]float64{dur},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestORSGetDistancesUsesCacheOnSecondCall(t *testing.T) {
	var matrixCalls atomic.Int64
	srv := newORSStub(t, &matrixCalls, false)

	cache := &memoryDistanceCache{m: map[string]ports.DistanceResult{}}
	p, err := NewORSDistanceProvider(ORSOptions{APIKey: "test-key", BaseURL: srv.URL, DistanceCache: cache})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		got, err := p.GetDistance(ctx, "1 Hub St  Phoenix AZ 85004", "2 Oak Ave Phoenix AZ 85008")
		if err != nil {
			t.Fatalf("get distance: %v", err)
		}
		if got.DistanceMiles != 0.77 || got.DurationSeconds != 301 {
			t.Fatalf("got %+v, want 0.77mi/301s", got)
		}
	}

	if n := matrixCalls.Load(); n != 1 {
		t.Fatalf("matrix calls = %d, want 1", n)
	}
}

func TestORSRetriesTransientStatus(t *testing.T) {
	var matrixCalls atomic.Int64
	srv := newORSStub(t, &matrixCalls, true)

	p, err := NewORSDistanceProvider(ORSOptions{APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	if _, err := p.GetDistance(context.Background(), "1 Hub St Phoenix AZ 85004", "2 Oak Ave Phoenix AZ 85008"); err != nil {
		t.Fatalf("get distance after retry: %v", err)
	}
	if n := matrixCalls.Load(); n != 1 {
		t.Fatalf("successful matrix calls = %d, want 1", n)
	}
}

func TestORSRetriesStopAtCallTimeout(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	p, err := NewORSDistanceProvider(ORSOptions{
		APIKey:       "test-key",
		BaseURL:      srv.URL,
		Timeout:      300 * time.Millisecond,
		MaxAttempts:  10,
		RetryBackoff: 200 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	start := time.Now()
	_, err = p.Geocode(context.Background(), []string{"2 Oak Ave Phoenix AZ 85008"})
	elapsed := time.Since(start)

	var oe *orsError
	if !errors.As(err, &oe) || oe.Status != http.StatusServiceUnavailable {
		t.Fatalf("err = %v, want the last 503", err)
	}
	// The second backoff (400ms) no longer fits in the 300ms budget.
	if n := attempts.Load(); n < 1 || n > 2 {
		t.Fatalf("attempts = %d, want at most 2", n)
	}
	if elapsed > time.Second {
		t.Fatalf("gave up after %s", elapsed)
	}
}

func TestORSDoesNotRetryClientErrors(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	p, err := NewORSDistanceProvider(ORSOptions{APIKey: "test-key", BaseURL: srv.URL, RetryBackoff: time.Millisecond})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	if _, err := p.Geocode(context.Background(), []string{"1 Hub St Phoenix AZ 85004"}); err == nil {
		t.Fatal("expected error for 403")
	}
	if n := attempts.Load(); n != 1 {
		t.Fatalf("attempts = %d, want 1", n)
	}
}

func TestORSGeocodeUnknownAddress(t *testing.T) {
	var matrixCalls atomic.Int64
	srv := newORSStub(t, &matrixCalls, false)

	p, err := NewORSDistanceProvider(ORSOptions{APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	got, err := p.Geocode(context.Background(), []string{"2 Oak Ave Phoenix AZ 85008"})
	if err != nil {
		t.Fatalf("geocode: %v", err)
	}
	want := domain.Coordinates{Lon: -112.00, Lat: 33.46}
	if got["2 Oak Ave Phoenix AZ 85008"] != want {
		t.Fatalf("coords = %+v, want %+v", got, want)
	}

	if _, err := p.Geocode(context.Background(), []string{"nowhere"}); err == nil {
		t.Fatal("expected error for unknown address")
	}
}

func TestNewORSDistanceProviderRequiresKey(t *testing.T) {
	if _, err := NewORSDistanceProvider(ORSOptions{}); err == nil {
		t.Fatal("expected error for empty api key")
	}
}
