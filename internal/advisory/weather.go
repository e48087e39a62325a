package advisory

import (
	"fmt"
	"strings"
	"unicode"

	"agribot/internal/domain"
)

// Thresholds for the irrigation decision table and the weather warnings.
const (
	heavyRainMM     = 10.0 // >10mm in the next 24h: hold off irrigation
	lowHumidityPct  = 40
	goodHumidityPct = 60
	heatStressC     = 35.0
	coldStressC     = 10.0
	strongWindKMH   = 30.0
	msToKMH         = 3.6
)

const weatherUnavailable = "Sorry, I couldn't get weather data for that location. Please check the location name and try again."

// FormatWeather renders a forecast snapshot as a farmer-readable report:
// current conditions, a 24-hour rain summary, irrigation advice from the
// threshold table, and heat/cold/wind warnings when crossed. A nil
// snapshot means the provider could not resolve the location.
func FormatWeather(snap *domain.ForecastSnapshot) string {
	if snap == nil {
		return weatherUnavailable
	}

	cur := snap.Current
	windKMH := cur.WindSpeed * msToKMH

	rainPeriods := 0
	totalRain := 0.0
	for _, p := range snap.Periods {
		if p.Rain != nil {
			rainPeriods++
			totalRain += *p.Rain
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🌤️ **Weather for %s**\n\n", snap.Place)
	b.WriteString("**Current Conditions:**\n")
	fmt.Fprintf(&b, "• Temperature: %.1f°C (feels like %.1f°C)\n", cur.Temp, cur.FeelsLike)
	fmt.Fprintf(&b, "• Condition: %s\n", capitalize(cur.Description))
	fmt.Fprintf(&b, "• Humidity: %d%%\n", cur.Humidity)
	fmt.Fprintf(&b, "• Wind: %.1f km/h\n", windKMH)

	b.WriteString("\n**Next 24 Hours:**\n")
	if rainPeriods > 0 {
		fmt.Fprintf(&b, "⚠️ Rain expected (%d periods, ~%.1fmm total)\n", rainPeriods, totalRain)
	} else {
		b.WriteString("☀️ No rain expected\n")
	}

	b.WriteString("\n**💧 Irrigation Advice:**\n")
	switch {
	case rainPeriods > 0 && totalRain > heavyRainMM:
		b.WriteString("✋ **Hold off on irrigation** - significant rain expected. Your crops will get plenty of water.\n")
	case rainPeriods > 0:
		b.WriteString("⏸️ **Wait and monitor** - some rain expected but may not be enough. Check soil moisture after rain.\n")
	case cur.Humidity < lowHumidityPct:
		b.WriteString("💧 **Irrigate soon** - low humidity and no rain forecast. Your crops need water.\n")
	case cur.Humidity < goodHumidityPct:
		b.WriteString("👀 **Check soil moisture** - moderate humidity but no rain. Irrigate if soil is dry.\n")
	default:
		b.WriteString("✅ **Soil should be okay** - good humidity levels. Monitor for next few days.\n")
	}

	// At most one temperature warning.
	if cur.Temp > heatStressC {
		b.WriteString("\n🌡️ **Heat Warning:** Very high temperatures. Crops may experience heat stress. Consider additional watering in evening.\n")
	} else if cur.Temp < coldStressC {
		b.WriteString("\n❄️ **Cold Warning:** Low temperatures may slow growth or damage sensitive crops. Protect if possible.\n")
	}

	if windKMH > strongWindKMH {
		b.WriteString("\n💨 **Wind Warning:** Strong winds may damage plants. Consider providing support if needed.\n")
	}

	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
