// Package weather resolves place names and fetches short-range forecasts
// from OpenWeather.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"agribot/internal/domain"
)

const (
	defaultGeoURL      = "https://api.openweathermap.org/geo/1.0/direct"
	defaultForecastURL = "https://api.openweathermap.org/data/2.5/forecast"

	forecastPeriods = 8 // 3-hour steps, 24 hours ahead
)

// OpenWeather implements domain.ForecastProvider.
type OpenWeather struct {
	apiKey      string
	geoURL      string
	forecastURL string
	cache       Cache
	cacheTTL    time.Duration
	client      *http.Client
	logger      *slog.Logger
}

type Config struct {
	APIKey      string
	GeoURL      string // defaults to the public OpenWeather endpoint
	ForecastURL string
	Cache       Cache // optional; nil disables caching
	CacheTTL    time.Duration
	Timeout     time.Duration
	Logger      *slog.Logger
}

func New(cfg Config) *OpenWeather {
	if cfg.GeoURL == "" {
		cfg.GeoURL = defaultGeoURL
	}
	if cfg.ForecastURL == "" {
		cfg.ForecastURL = defaultForecastURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Minute
	}
	return &OpenWeather{
		apiKey:      cfg.APIKey,
		geoURL:      cfg.GeoURL,
		forecastURL: cfg.ForecastURL,
		cache:       cfg.Cache,
		cacheTTL:    cfg.CacheTTL,
		client:      &http.Client{Timeout: cfg.Timeout},
		logger:      cfg.Logger,
	}
}

type geoResult struct {
	Name    string  `json:"name"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

type forecastResult struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp      float64 `json:"temp"`
			FeelsLike float64 `json:"feels_like"`
			Humidity  int     `json:"humidity"`
		} `json:"main"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
		Rain *struct {
			ThreeH float64 `json:"3h"`
		} `json:"rain,omitempty"`
	} `json:"list"`
}

// Forecast geocodes the place name and returns current conditions plus the
// next 24 hours in 3-hour periods. Results are cached per place when a
// cache is configured.
func (w *OpenWeather) Forecast(ctx context.Context, place string) (*domain.ForecastSnapshot, error) {
	key := cacheKey(place)
	if w.cache != nil {
		if snap := w.cacheGet(ctx, key); snap != nil {
			w.logger.Debug("forecast cache hit", "place", place)
			return snap, nil
		}
	}

	coords, err := w.geocode(ctx, place)
	if err != nil {
		return nil, err
	}

	snap, err := w.fetchForecast(ctx, coords)
	if err != nil {
		return nil, err
	}

	if w.cache != nil {
		w.cachePut(ctx, key, snap)
	}
	return snap, nil
}

func (w *OpenWeather) geocode(ctx context.Context, place string) (*geoResult, error) {
	q := url.Values{}
	q.Set("q", place)
	q.Set("limit", "1")
	q.Set("appid", w.apiKey)

	var results []geoResult
	if err := w.getJSON(ctx, w.geoURL+"?"+q.Encode(), &results); err != nil {
		return nil, fmt.Errorf("geocode %q: %w", place, err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("geocode %q: no match", place)
	}
	return &results[0], nil
}

func (w *OpenWeather) fetchForecast(ctx context.Context, loc *geoResult) (*domain.ForecastSnapshot, error) {
	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%.4f", loc.Lat))
	q.Set("lon", fmt.Sprintf("%.4f", loc.Lon))
	q.Set("units", "metric")
	q.Set("appid", w.apiKey)

	var result forecastResult
	if err := w.getJSON(ctx, w.forecastURL+"?"+q.Encode(), &result); err != nil {
		return nil, fmt.Errorf("forecast %s: %w", loc.Name, err)
	}
	if len(result.List) == 0 {
		return nil, fmt.Errorf("forecast %s: empty response", loc.Name)
	}

	now := result.List[0]
	snap := &domain.ForecastSnapshot{
		Place:   loc.Name,
		Country: loc.Country,
		Coords:  domain.Coordinates{Lat: loc.Lat, Lon: loc.Lon},
		Current: domain.CurrentConditions{
			Temp:      now.Main.Temp,
			FeelsLike: now.Main.FeelsLike,
			Humidity:  now.Main.Humidity,
			WindSpeed: now.Wind.Speed,
		},
	}
	if len(now.Weather) > 0 {
		snap.Current.Description = now.Weather[0].Description
	}

	periods := result.List
	if len(periods) > forecastPeriods {
		periods = periods[:forecastPeriods]
	}
	for _, p := range periods {
		fp := domain.ForecastPeriod{At: time.Unix(p.Dt, 0).UTC()}
		if p.Rain != nil {
			mm := p.Rain.ThreeH
			fp.Rain = &mm
		}
		snap.Periods = append(snap.Periods, fp)
	}
	return snap, nil
}

func (w *OpenWeather) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (w *OpenWeather) cacheGet(ctx context.Context, key string) *domain.ForecastSnapshot {
	data, err := w.cache.Get(ctx, key)
	if err != nil || data == nil {
		return nil
	}
	var snap domain.ForecastSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		w.logger.Warn("corrupt forecast cache entry", "key", key, "error", err)
		return nil
	}
	return &snap
}

func (w *OpenWeather) cachePut(ctx context.Context, key string, snap *domain.ForecastSnapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := w.cache.Set(ctx, key, data, w.cacheTTL); err != nil {
		w.logger.Warn("forecast cache write failed", "key", key, "error", err)
	}
}

func cacheKey(place string) string {
	return "forecast:" + strings.ToLower(strings.TrimSpace(place))
}
