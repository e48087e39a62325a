package advisor

import (
	"strings"

	"agribot/internal/domain"
)

// Path is the processing route chosen for an inbound message.
type Path string

const (
	ImagePath        Path = "image"
	WeatherPath      Path = "weather"
	ConversationPath Path = "conversation"
)

// weatherKeywords route a text message to the forecast path when any of
// them appears as a substring of the lowercased body.
var weatherKeywords = []string{"weather", "rain", "forecast", "temperature"}

// SelectPath routes a message: attachments win over text, weather keywords
// win over plain conversation.
func SelectPath(msg domain.InboundMessage) Path {
	if msg.HasMedia() {
		return ImagePath
	}
	body := strings.ToLower(msg.Body)
	for _, kw := range weatherKeywords {
		if strings.Contains(body, kw) {
			return WeatherPath
		}
	}
	return ConversationPath
}
