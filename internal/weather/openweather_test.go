package weather

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

const geoBody = `[{"name":"Nakuru","country":"KE","lat":-0.2833,"lon":36.0667}]`

const forecastBody = `{"list":[
	{"dt":1787572800,"main":{"temp":24.36,"feels_like":25.1,"humidity":55},
	 "weather":[{"description":"scattered clouds"}],"wind":{"speed":5.0},"rain":{"3h":1.5}},
	{"dt":1787583600,"main":{"temp":23,"feels_like":23,"humidity":60},
	 "weather":[{"description":"light rain"}],"wind":{"speed":4.0},"rain":{"3h":2.25}},
	{"dt":1787594400,"main":{"temp":20,"feels_like":20,"humidity":70},
	 "weather":[{"description":"clear sky"}],"wind":{"speed":3.0}},
	{"dt":1787605200,"main":{"temp":18,"feels_like":18,"humidity":75},
	 "weather":[{"description":"clear sky"}],"wind":{"speed":2.0}},
	{"dt":1787616000,"main":{"temp":16,"feels_like":16,"humidity":80},
	 "weather":[{"description":"clear sky"}],"wind":{"speed":2.0}},
	{"dt":1787626800,"main":{"temp":15,"feels_like":15,"humidity":82},
	 "weather":[{"description":"clear sky"}],"wind":{"speed":2.0}},
	{"dt":1787637600,"main":{"temp":17,"feels_like":17,"humidity":78},
	 "weather":[{"description":"clear sky"}],"wind":{"speed":2.5}},
	{"dt":1787648400,"main":{"temp":21,"feels_like":21,"humidity":65},
	 "weather":[{"description":"few clouds"}],"wind":{"speed":3.5}},
	{"dt":1787659200,"main":{"temp":24,"feels_like":24,"humidity":55},
	 "weather":[{"description":"few clouds"}],"wind":{"speed":4.0}}
]}`

func newTestProvider(t *testing.T, cache Cache) (*OpenWeather, *int) {
	t.Helper()
	calls := 0
	geo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "" || r.URL.Query().Get("appid") != "ow-key" {
			t.Errorf("bad geocode query: %s", r.URL.RawQuery)
		}
		w.Write([]byte(geoBody))
	}))
	t.Cleanup(geo.Close)

	fc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("units") != "metric" {
			t.Errorf("forecast must request metric units: %s", r.URL.RawQuery)
		}
		w.Write([]byte(forecastBody))
	}))
	t.Cleanup(fc.Close)

	return New(Config{
		APIKey:      "ow-key",
		GeoURL:      geo.URL,
		ForecastURL: fc.URL,
		Cache:       cache,
		Logger:      testLogger(),
	}), &calls
}

func TestForecast(t *testing.T) {
	w, _ := newTestProvider(t, nil)

	snap, err := w.Forecast(context.Background(), "Nakuru")
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if snap.Place != "Nakuru" || snap.Country != "KE" {
		t.Errorf("unexpected place: %+v", snap)
	}
	if snap.Current.Temp != 24.36 || snap.Current.Humidity != 55 {
		t.Errorf("current conditions should come from the first period: %+v", snap.Current)
	}
	if snap.Current.Description != "scattered clouds" {
		t.Errorf("unexpected description: %q", snap.Current.Description)
	}
	if len(snap.Periods) != 8 {
		t.Fatalf("expected 8 periods, got %d", len(snap.Periods))
	}
	if snap.Periods[0].Rain == nil || *snap.Periods[0].Rain != 1.5 {
		t.Errorf("first period rain should be 1.5mm: %+v", snap.Periods[0])
	}
	if snap.Periods[2].Rain != nil {
		t.Errorf("dry period should carry no rain value: %+v", snap.Periods[2])
	}
	if got := snap.Periods[1].At.Sub(snap.Periods[0].At); got != 3*time.Hour {
		t.Errorf("periods should be 3 hours apart, got %v", got)
	}
}

func TestForecast_GeocodeMiss(t *testing.T) {
	geo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer geo.Close()

	w := New(Config{APIKey: "ow-key", GeoURL: geo.URL, ForecastURL: "http://unused.invalid", Logger: testLogger()})
	if _, err := w.Forecast(context.Background(), "Atlantis"); err == nil {
		t.Error("expected error for unknown place")
	}
}

// fakeCache is an in-memory Cache for tests.
type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[key], nil
}

func (c *fakeCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = make(map[string][]byte)
	}
	c.data[key] = value
	return nil
}

func TestForecast_Cache(t *testing.T) {
	cache := &fakeCache{}
	w, calls := newTestProvider(t, cache)
	ctx := context.Background()

	if _, err := w.Forecast(ctx, "Nakuru"); err != nil {
		t.Fatal(err)
	}
	if *calls != 1 {
		t.Fatalf("expected one upstream call, got %d", *calls)
	}

	// Same place, different case: served from cache.
	snap, err := w.Forecast(ctx, " NAKURU ")
	if err != nil {
		t.Fatal(err)
	}
	if *calls != 1 {
		t.Errorf("expected cache hit, upstream called %d times", *calls)
	}
	if snap.Place != "Nakuru" || len(snap.Periods) != 8 {
		t.Errorf("cached snapshot incomplete: %+v", snap)
	}
}
