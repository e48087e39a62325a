package advisory

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Calendar maps (crop, month) to a planting-window advisory. The built-in
// default covers maize and coffee for the East African long rains
// (March-May) and short rains (October-December); deployments in other
// regions can load a YAML calendar to override it.
type Calendar struct {
	Crops       map[string]CropCalendar `yaml:"crops"`
	UnknownCrop string                  `yaml:"unknownCrop"`
}

type CropCalendar struct {
	Buckets  []SeasonBucket `yaml:"buckets"`
	Fallback string         `yaml:"fallback,omitempty"`
}

// SeasonBucket is one month set with its advisory text. Buckets are
// evaluated in order; the first one containing the month wins.
type SeasonBucket struct {
	Months []int  `yaml:"months"`
	Advice string `yaml:"advice"`
}

// PlantingAdvice returns the advisory for the crop and month. Every month
// maps to exactly one bucket per known crop; unknown crops get the fixed
// prompt asking the farmer to name a supported crop.
func (c *Calendar) PlantingAdvice(crop string, month time.Month) string {
	cal, ok := c.Crops[strings.ToLower(strings.TrimSpace(crop))]
	if !ok {
		return c.UnknownCrop
	}
	m := int(month)
	for _, b := range cal.Buckets {
		for _, bm := range b.Months {
			if bm == m {
				return b.Advice
			}
		}
	}
	return cal.Fallback
}

// LoadCalendar reads a YAML calendar file and validates that every crop
// covers all twelve months.
func LoadCalendar(path string) (*Calendar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calendar %s: %w", path, err)
	}
	var cal Calendar
	if err := yaml.Unmarshal(data, &cal); err != nil {
		return nil, fmt.Errorf("parse calendar %s: %w", path, err)
	}
	if cal.UnknownCrop == "" {
		cal.UnknownCrop = DefaultCalendar().UnknownCrop
	}
	for crop, cc := range cal.Crops {
		if err := checkCoverage(cc); err != nil {
			return nil, fmt.Errorf("calendar %s: crop %q: %w", path, crop, err)
		}
	}
	return &cal, nil
}

func checkCoverage(cc CropCalendar) error {
	covered := make(map[int]bool, 12)
	for _, b := range cc.Buckets {
		for _, m := range b.Months {
			if m < 1 || m > 12 {
				return fmt.Errorf("month %d out of range", m)
			}
			covered[m] = true
		}
	}
	if cc.Fallback != "" {
		return nil
	}
	for m := 1; m <= 12; m++ {
		if !covered[m] {
			return fmt.Errorf("month %d has no bucket and no fallback", m)
		}
	}
	return nil
}

// DefaultCalendar returns the built-in East African planting calendar.
func DefaultCalendar() *Calendar {
	return &Calendar{
		UnknownCrop: "Please specify your crop (maize or coffee) for planting recommendations.",
		Crops: map[string]CropCalendar{
			"maize": {
				Buckets: []SeasonBucket{
					{Months: []int{2, 3}, Advice: "🌱 **Perfect timing!** Plant maize now before the long rains (March-May). Soil should be ready."},
					{Months: []int{9, 10}, Advice: "🌱 **Good time to plant!** Short rains (October-December) are coming. Prepare your land now."},
					{Months: []int{4, 5, 11, 12}, Advice: "⏰ **Late but possible** - You can still plant but expect lower yields. Ensure good weed control."},
					{Months: []int{6, 7, 8}, Advice: "⏸️ **Wait for short rains** - Too dry now. Prepare land and get seeds ready for October planting."},
					{Months: []int{1}, Advice: "⏸️ **Wait for long rains** - Too dry now. Prepare land and get seeds ready for March planting."},
				},
			},
			"coffee": {
				Buckets: []SeasonBucket{
					{Months: []int{2, 3, 4}, Advice: "🌱 **Good time for coffee planting** - Plant before long rains. Ensure you have shade trees ready."},
					{Months: []int{10, 11}, Advice: "🌱 **Acceptable planting time** - Can plant during short rains, but long rains are better."},
				},
				Fallback: "⏸️ **Not ideal for planting** - Coffee is best planted before rainy season. Wait for March-April.",
			},
		},
	}
}
