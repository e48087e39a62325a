package advisory

import (
	"strings"
	"testing"

	"agribot/internal/domain"
)

func snapshot(humidity int, temp, wind float64, rainMM []float64) *domain.ForecastSnapshot {
	snap := &domain.ForecastSnapshot{
		Place:   "Nakuru",
		Country: "KE",
		Current: domain.CurrentConditions{
			Temp:        temp,
			FeelsLike:   temp + 1,
			Humidity:    humidity,
			Description: "scattered clouds",
			WindSpeed:   wind,
		},
	}
	for _, mm := range rainMM {
		v := mm
		snap.Periods = append(snap.Periods, domain.ForecastPeriod{Rain: &v})
	}
	// Pad to the full 8 periods with dry intervals.
	for len(snap.Periods) < 8 {
		snap.Periods = append(snap.Periods, domain.ForecastPeriod{})
	}
	return snap
}

func TestFormatWeather_Absent(t *testing.T) {
	out := FormatWeather(nil)
	if out != weatherUnavailable {
		t.Errorf("nil snapshot must return fixed failure text, got: %q", out)
	}
}

func TestFormatWeather_CurrentConditions(t *testing.T) {
	out := FormatWeather(snapshot(55, 24.36, 5.0, nil))

	if !strings.Contains(out, "Weather for Nakuru") {
		t.Errorf("missing place name:\n%s", out)
	}
	if !strings.Contains(out, "24.4°C") {
		t.Errorf("temperature should render to one decimal:\n%s", out)
	}
	if !strings.Contains(out, "Humidity: 55%") {
		t.Errorf("missing humidity:\n%s", out)
	}
	if !strings.Contains(out, "Scattered clouds") {
		t.Errorf("condition description should be capitalized:\n%s", out)
	}
	// 5.0 m/s * 3.6 = 18.0 km/h
	if !strings.Contains(out, "18.0 km/h") {
		t.Errorf("wind should be converted to km/h:\n%s", out)
	}
}

func TestFormatWeather_IrrigationTable(t *testing.T) {
	tests := []struct {
		name     string
		humidity int
		rainMM   []float64
		want     string
	}{
		{"heavy rain", 50, []float64{6, 5.5}, "Hold off on irrigation"},
		{"light rain", 50, []float64{2, 3}, "Wait and monitor"},
		{"exactly 10mm total is light", 50, []float64{4, 6}, "Wait and monitor"},
		{"just over 10mm is heavy", 50, []float64{4, 6.1}, "Hold off on irrigation"},
		{"dry low humidity", 39, nil, "Irrigate soon"},
		{"dry humidity exactly 40", 40, nil, "Check soil moisture"},
		{"dry moderate humidity", 59, nil, "Check soil moisture"},
		{"dry humidity exactly 60", 60, nil, "Soil should be okay"},
		{"dry high humidity", 75, nil, "Soil should be okay"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := FormatWeather(snapshot(tt.humidity, 25, 3, tt.rainMM))
			if !strings.Contains(out, tt.want) {
				t.Errorf("expected %q branch, got:\n%s", tt.want, out)
			}
		})
	}
}

func TestFormatWeather_RainSummary(t *testing.T) {
	out := FormatWeather(snapshot(50, 25, 3, []float64{1.5, 2.25}))
	if !strings.Contains(out, "2 periods") || !strings.Contains(out, "3.8mm") {
		t.Errorf("expected rain period count and one-decimal total, got:\n%s", out)
	}

	dry := FormatWeather(snapshot(50, 25, 3, nil))
	if !strings.Contains(dry, "No rain expected") {
		t.Errorf("expected no-rain line, got:\n%s", dry)
	}
}

func TestFormatWeather_TemperatureWarnings(t *testing.T) {
	hot := FormatWeather(snapshot(50, 36.5, 3, nil))
	if !strings.Contains(hot, "Heat Warning") {
		t.Errorf("expected heat warning above 35°C:\n%s", hot)
	}
	if strings.Contains(hot, "Cold Warning") {
		t.Errorf("warnings are mutually exclusive:\n%s", hot)
	}

	cold := FormatWeather(snapshot(50, 8, 3, nil))
	if !strings.Contains(cold, "Cold Warning") {
		t.Errorf("expected cold warning below 10°C:\n%s", cold)
	}

	mild := FormatWeather(snapshot(50, 22, 3, nil))
	if strings.Contains(mild, "Heat Warning") || strings.Contains(mild, "Cold Warning") {
		t.Errorf("no warning expected at 22°C:\n%s", mild)
	}
}

func TestFormatWeather_WindWarning(t *testing.T) {
	// 9 m/s = 32.4 km/h
	windy := FormatWeather(snapshot(50, 25, 9, nil))
	if !strings.Contains(windy, "Wind Warning") {
		t.Errorf("expected wind warning above 30 km/h:\n%s", windy)
	}

	calm := FormatWeather(snapshot(50, 25, 8, nil)) // 28.8 km/h
	if strings.Contains(calm, "Wind Warning") {
		t.Errorf("no wind warning expected at 28.8 km/h:\n%s", calm)
	}
}

func TestFormatWeather_RainFieldZero(t *testing.T) {
	// A period may carry a rain object with no volume; it still counts as
	// a rain period with 0mm.
	zero := 0.0
	snap := snapshot(50, 25, 3, nil)
	snap.Periods[0].Rain = &zero
	out := FormatWeather(snap)
	if !strings.Contains(out, "1 periods") {
		t.Errorf("zero-volume rain period should still count, got:\n%s", out)
	}
	if !strings.Contains(out, "Wait and monitor") {
		t.Errorf("0mm total is below the heavy threshold, got:\n%s", out)
	}
}
