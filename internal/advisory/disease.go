// Package advisory turns raw classifier and forecast payloads into
// tiered, farmer-readable advisory text. Everything here is a pure
// function of its input plus fixed threshold constants.
package advisory

import (
	"fmt"
	"strings"
	"unicode"

	"agribot/internal/domain"
)

// Confidence tiers for disease predictions, in percent.
const (
	confidentPct = 80.0
	uncertainPct = 60.0
)

// maxAlternatives is how many runner-up predictions are shown when the
// top prediction is not in the "very confident" tier.
const maxAlternatives = 2

const diseaseUnavailable = `Sorry, I couldn't analyze this image. This could be because:

1. The image is unclear or too dark
2. The crop is not visible enough
3. The disease detection service is temporarily unavailable

Please try:
- Taking a clearer photo in good lighting
- Getting closer to the affected part of the plant
- Sending the photo again

You can also describe what you see and I'll do my best to help!`

// FormatDisease renders classifier predictions as a tiered advisory block.
// An empty prediction list means the classifier was unavailable; a
// sentinel entry with a note means the model is still loading. Both are
// terminal textual outputs, not errors.
func FormatDisease(preds []domain.Prediction) string {
	if len(preds) == 0 {
		return diseaseUnavailable
	}
	if preds[0].Note != "" {
		return preds[0].Note
	}

	top := preds[0]
	confidence := top.Score * 100
	disease := cleanLabel(top.Label)

	var tier, marker string
	switch {
	case confidence >= confidentPct:
		tier, marker = "very confident", "✅"
	case confidence >= uncertainPct:
		tier, marker = "fairly confident", "⚠️"
	default:
		tier, marker = "uncertain - this is my best guess", "❓"
	}

	var b strings.Builder
	b.WriteString("🔍 **Disease Detection Results**\n\n")
	fmt.Fprintf(&b, "%s **Most Likely: %s**\n", marker, disease)
	fmt.Fprintf(&b, "Confidence: %.1f%% (%s)\n", confidence, tier)

	if confidence < confidentPct && len(preds) > 1 {
		b.WriteString("\n**Other possibilities:**\n")
		alts := preds[1:]
		if len(alts) > maxAlternatives {
			alts = alts[:maxAlternatives]
		}
		for _, p := range alts {
			fmt.Fprintf(&b, "• %s (%.1f%%)\n", cleanLabel(p.Label), p.Score*100)
		}
	}

	if confidence < uncertainPct {
		b.WriteString("\n💡 **Note:** The confidence is low. Please provide more details or a clearer image for a better diagnosis.")
	}

	return b.String()
}

// cleanLabel turns classifier labels like "Northern_Corn_Leaf_Blight"
// into "Northern Corn Leaf Blight".
func cleanLabel(label string) string {
	words := strings.Fields(strings.ReplaceAll(label, "_", " "))
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
