package advisory

import (
	"strings"
	"testing"

	"agribot/internal/domain"
)

func TestFormatDisease_HighConfidence(t *testing.T) {
	out := FormatDisease([]domain.Prediction{
		{Label: "Northern_Corn_Leaf_Blight", Score: 0.91},
		{Label: "Gray_Leaf_Spot", Score: 0.05},
	})

	if !strings.Contains(out, "Northern Corn Leaf Blight") {
		t.Errorf("expected normalized label, got:\n%s", out)
	}
	if !strings.Contains(out, "✅") {
		t.Errorf("expected very-confident marker, got:\n%s", out)
	}
	if !strings.Contains(out, "91.0%") {
		t.Errorf("expected one-decimal confidence, got:\n%s", out)
	}
	if strings.Contains(out, "Other possibilities") {
		t.Errorf("high confidence should omit alternatives, got:\n%s", out)
	}
}

func TestFormatDisease_MediumConfidence(t *testing.T) {
	out := FormatDisease([]domain.Prediction{
		{Label: "coffee_leaf_rust", Score: 0.72},
		{Label: "coffee_berry_disease", Score: 0.15},
		{Label: "healthy", Score: 0.08},
		{Label: "sooty_mold", Score: 0.05},
	})

	if !strings.Contains(out, "⚠️") {
		t.Errorf("expected fairly-confident marker, got:\n%s", out)
	}
	if !strings.Contains(out, "Other possibilities") {
		t.Errorf("expected alternatives section, got:\n%s", out)
	}
	// Ranks 2-3 only, never rank 4.
	if !strings.Contains(out, "Coffee Berry Disease") || !strings.Contains(out, "Healthy") {
		t.Errorf("expected two alternatives, got:\n%s", out)
	}
	if strings.Contains(out, "Sooty Mold") {
		t.Errorf("rank 4 should not be shown, got:\n%s", out)
	}
	if strings.Contains(out, "confidence is low") {
		t.Errorf("medium confidence should omit the low-confidence caveat, got:\n%s", out)
	}
}

func TestFormatDisease_MediumConfidence_SingleEntry(t *testing.T) {
	out := FormatDisease([]domain.Prediction{{Label: "maize_streak_virus", Score: 0.65}})
	if strings.Contains(out, "Other possibilities") {
		t.Errorf("single entry has no alternatives, got:\n%s", out)
	}
}

func TestFormatDisease_LowConfidence(t *testing.T) {
	out := FormatDisease([]domain.Prediction{
		{Label: "fall_armyworm", Score: 0.41},
		{Label: "healthy", Score: 0.30},
	})

	if !strings.Contains(out, "❓") {
		t.Errorf("expected uncertain marker, got:\n%s", out)
	}
	if !strings.Contains(out, "confidence is low") {
		t.Errorf("expected low-confidence caveat, got:\n%s", out)
	}
	if !strings.Contains(out, "Other possibilities") {
		t.Errorf("expected alternatives section, got:\n%s", out)
	}
}

func TestFormatDisease_TierBoundaries(t *testing.T) {
	tests := []struct {
		score  float64
		marker string
	}{
		{0.80, "✅"}, // 80 is inclusive for the top tier
		{0.799, "⚠️"},
		{0.60, "⚠️"}, // 60 is inclusive for the middle tier
		{0.599, "❓"},
	}
	for _, tt := range tests {
		out := FormatDisease([]domain.Prediction{{Label: "x", Score: tt.score}})
		if !strings.Contains(out, tt.marker) {
			t.Errorf("score %.3f: expected marker %s, got:\n%s", tt.score, tt.marker, out)
		}
	}
}

func TestFormatDisease_Empty(t *testing.T) {
	out := FormatDisease(nil)
	if out != diseaseUnavailable {
		t.Errorf("empty predictions must return the fixed unavailable block verbatim, got:\n%s", out)
	}
}

func TestFormatDisease_LoadingSentinel(t *testing.T) {
	note := "The disease detection model is starting up. Please try again in 20 seconds."
	out := FormatDisease([]domain.Prediction{{Label: "Model Loading", Score: 0, Note: note}})
	if out != note {
		t.Errorf("loading sentinel must return its note verbatim, got: %q", out)
	}
}

func TestCleanLabel(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Northern_Corn_Leaf_Blight", "Northern Corn Leaf Blight"},
		{"coffee_leaf_rust", "Coffee Leaf Rust"},
		{"HEALTHY", "Healthy"},
		{"gray  leaf_spot", "Gray Leaf Spot"},
	}
	for _, tt := range tests {
		if got := cleanLabel(tt.in); got != tt.want {
			t.Errorf("cleanLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
