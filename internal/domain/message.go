package domain

import "time"

// InboundMessage is one chat message received from a channel.
type InboundMessage struct {
	Channel   string   // "whatsapp" | "telegram" | "cli"
	ChatID    string   // reply address on the channel
	From      string   // channel-prefixed contact key, e.g. "whatsapp:+254712345678"
	MessageID string   // provider-assigned message identifier
	Body      string   // free text, may be empty
	Media     []string // resolved URLs of attached media, if any
	Timestamp time.Time
}

// HasMedia reports whether the message carries at least one attachment.
func (m InboundMessage) HasMedia() bool { return len(m.Media) > 0 }

type OutboundMessage struct {
	Channel string
	ChatID  string
	Content string
}
