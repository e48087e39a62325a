package advisory

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestPlantingAdvice_MaizeAllMonths(t *testing.T) {
	tests := []struct {
		month time.Month
		want  string
	}{
		{time.January, "Wait for long rains"},
		{time.February, "Perfect timing"},
		{time.March, "Perfect timing"},
		{time.April, "Late but possible"},
		{time.May, "Late but possible"},
		{time.June, "Wait for short rains"},
		{time.July, "Wait for short rains"},
		{time.August, "Wait for short rains"},
		{time.September, "Good time to plant"},
		{time.October, "Good time to plant"},
		{time.November, "Late but possible"},
		{time.December, "Late but possible"},
	}
	for _, tt := range tests {
		got := PlantingAdvice("maize", tt.month)
		if !strings.Contains(got, tt.want) {
			t.Errorf("maize %s: expected %q bucket, got %q", tt.month, tt.want, got)
		}
	}
}

func TestPlantingAdvice_Coffee(t *testing.T) {
	if got := PlantingAdvice("coffee", time.March); !strings.Contains(got, "Good time for coffee planting") {
		t.Errorf("coffee in March should be ideal, got %q", got)
	}
	if got := PlantingAdvice("coffee", time.October); !strings.Contains(got, "Acceptable planting time") {
		t.Errorf("coffee in October should be acceptable, got %q", got)
	}
	if got := PlantingAdvice("coffee", time.July); !strings.Contains(got, "Not ideal for planting") {
		t.Errorf("coffee in July should be not-ideal, got %q", got)
	}
}

func TestPlantingAdvice_UnknownCrop(t *testing.T) {
	got := PlantingAdvice("wheat", time.March)
	if !strings.Contains(got, "maize or coffee") {
		t.Errorf("unknown crop should prompt for a supported crop, got %q", got)
	}
}

func TestPlantingAdvice_CaseInsensitive(t *testing.T) {
	if PlantingAdvice("Maize", time.March) != PlantingAdvice("maize", time.March) {
		t.Error("crop matching should be case-insensitive")
	}
	if PlantingAdvice(" COFFEE ", time.March) != PlantingAdvice("coffee", time.March) {
		t.Error("crop matching should trim whitespace")
	}
}

func TestLoadCalendar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crops.yaml")
	data := `
crops:
  sorghum:
    buckets:
      - months: [3, 4]
        advice: "Plant sorghum now."
    fallback: "Wait for the rains."
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cal, err := LoadCalendar(path)
	if err != nil {
		t.Fatalf("LoadCalendar: %v", err)
	}
	if got := cal.PlantingAdvice("sorghum", time.March); got != "Plant sorghum now." {
		t.Errorf("expected bucket advice, got %q", got)
	}
	if got := cal.PlantingAdvice("sorghum", time.August); got != "Wait for the rains." {
		t.Errorf("expected fallback advice, got %q", got)
	}
	// UnknownCrop inherits the built-in prompt when the file omits it.
	if got := cal.PlantingAdvice("banana", time.March); !strings.Contains(got, "maize or coffee") {
		t.Errorf("expected inherited unknown-crop prompt, got %q", got)
	}
}

func TestLoadCalendar_IncompleteCoverage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crops.yaml")
	data := `
crops:
  sorghum:
    buckets:
      - months: [3]
        advice: "Plant now."
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCalendar(path); err == nil {
		t.Error("calendar without full month coverage and no fallback should fail validation")
	}
}

func TestDefaultCalendar_TotalOverMonths(t *testing.T) {
	cal := DefaultCalendar()
	for crop := range cal.Crops {
		for m := 1; m <= 12; m++ {
			if got := cal.PlantingAdvice(crop, time.Month(m)); got == "" {
				t.Errorf("%s month %d maps to no advice", crop, m)
			}
		}
	}
}
