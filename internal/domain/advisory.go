package domain

import "time"

// Prediction is one ranked label from the image classifier.
// A non-empty Note marks the "model loading" sentinel entry the
// inference API returns while the model warms up.
type Prediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"` // confidence in [0,1]
	Note  string  `json:"note,omitempty"`
}

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// CurrentConditions is the current observation for a resolved location.
type CurrentConditions struct {
	Temp        float64 `json:"temp"`       // °C
	FeelsLike   float64 `json:"feels_like"` // °C
	Humidity    int     `json:"humidity"`   // percent
	Description string  `json:"description"`
	WindSpeed   float64 `json:"wind_speed"` // m/s, provider native unit
}

// ForecastPeriod is one upcoming forecast interval (3-hour spacing).
// Rain is nil when the provider reported no rain field for the period.
type ForecastPeriod struct {
	At   time.Time `json:"at"`
	Rain *float64  `json:"rain,omitempty"` // mm over the period
}

// ForecastSnapshot is a resolved place plus its current observation and
// the next forecast periods in chronological order.
type ForecastSnapshot struct {
	Place   string            `json:"place"`
	Country string            `json:"country"`
	Coords  Coordinates       `json:"coords"`
	Current CurrentConditions `json:"current"`
	Periods []ForecastPeriod  `json:"periods"`
}
