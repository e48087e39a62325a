package domain

import "context"

// ChatMessage is one entry in the context window sent to the dialogue model.
type ChatMessage struct {
	Role    string `json:"role"` // "user" | "assistant"
	Content string `json:"content"`
}

// DialogueModel produces a conversational reply from a system prompt and
// an alternating user/assistant message sequence ending in a user entry.
type DialogueModel interface {
	Respond(ctx context.Context, system string, messages []ChatMessage) (string, error)
	Name() string
	Healthy(ctx context.Context) error
}

// ImageClassifier turns an image into a ranked label/score list.
// A download or service failure surfaces as an error; the caller maps it
// to the formatter's "unavailable" branch rather than crashing.
type ImageClassifier interface {
	Classify(ctx context.Context, imageURL string) ([]Prediction, error)
}

// ForecastProvider resolves a free-text place name to coordinates and a
// multi-period forecast.
type ForecastProvider interface {
	Forecast(ctx context.Context, place string) (*ForecastSnapshot, error)
}

// ProfileStore is durable storage for farmer profiles and conversation turns.
type ProfileStore interface {
	// GetOrCreateFarmer returns the profile for the contact key, creating
	// it on first contact. Either way the last-active timestamp is touched.
	GetOrCreateFarmer(ctx context.Context, phone string) (*FarmerProfile, error)
	UpdateFarmer(ctx context.Context, phone string, upd FarmerUpdate) error
	AppendTurn(ctx context.Context, turn ConversationTurn) error
	// RecentTurns returns the newest limit turns for the farmer, ordered
	// oldest-first, ready for context assembly.
	RecentTurns(ctx context.Context, phone string, limit int) ([]ConversationTurn, error)
}

// Channel is a user-facing chat transport (WhatsApp, Telegram, CLI).
type Channel interface {
	Name() string
	Start(ctx context.Context, bus MessageBus) error
	Stop() error
	Send(ctx context.Context, chatID string, content string) error
}

// MessageBus decouples channels from the advisor loop.
type MessageBus interface {
	Publish(msg InboundMessage)
	Subscribe() <-chan InboundMessage
	SendOutbound(msg OutboundMessage)
	OnOutbound(channelName string, handler func(OutboundMessage))
}
