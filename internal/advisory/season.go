package advisory

import "time"

var defaultCalendar = DefaultCalendar()

// UseCalendar swaps the process-wide calendar, typically after loading a
// YAML override at startup.
func UseCalendar(cal *Calendar) {
	if cal != nil {
		defaultCalendar = cal
	}
}

// PlantingAdvice returns the planting-window advisory from the active
// calendar. Crop matching is case-insensitive.
func PlantingAdvice(crop string, month time.Month) string {
	return defaultCalendar.PlantingAdvice(crop, month)
}
