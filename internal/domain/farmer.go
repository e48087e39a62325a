package domain

import "time"

// FarmerProfile is one registered farmer, keyed by contact phone.
// Profiles are created on first contact and soft-deactivated only;
// nothing in the system hard-deletes a farmer.
type FarmerProfile struct {
	ID         int64     `json:"id"`
	Phone      string    `json:"phone"` // unique contact key, channel prefix stripped
	Name       string    `json:"name"`
	Location   string    `json:"location"` // free-text town/region, empty until the farmer tells us
	Crops      []string  `json:"crops"`
	Language   string    `json:"language"` // language tag, default "en"
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

// TurnKind classifies a conversation turn by the inbound message type.
type TurnKind string

const (
	TurnText  TurnKind = "text"
	TurnImage TurnKind = "image"
	TurnVoice TurnKind = "voice"
)

// ConversationTurn is one stored user/assistant exchange. Turns are
// append-only and ordered by creation time.
type ConversationTurn struct {
	ID          string        `json:"id"` // ULID, lexicographically ordered by creation time
	FarmerPhone string        `json:"farmer_phone"`
	Kind        TurnKind      `json:"kind"`
	UserMessage string        `json:"user_message"`
	AIResponse  string        `json:"ai_response"`
	Metadata    *TurnMetadata `json:"metadata,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// TurnMetadata carries structured payloads attached to a turn. Which
// fields are set depends on the turn kind: image turns carry classifier
// predictions, weather turns carry the forecast snapshot used for the
// advisory.
type TurnMetadata struct {
	Predictions []Prediction      `json:"predictions,omitempty"`
	ImageURL    string            `json:"image_url,omitempty"`
	Forecast    *ForecastSnapshot `json:"forecast,omitempty"`
}

// FarmerUpdate is a partial profile update. Nil fields are left unchanged.
type FarmerUpdate struct {
	Name     *string  `json:"name,omitempty"`
	Location *string  `json:"location,omitempty"`
	Crops    []string `json:"crops,omitempty"`
	Language *string  `json:"language,omitempty"`
}
