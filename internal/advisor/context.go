package advisor

import "agribot/internal/domain"

// AssembleContext converts stored turns (oldest first) into the alternating
// user/assistant history the model expects, ending with the current message
// as the final user entry. n stored turns yield exactly 2n+1 entries.
func AssembleContext(turns []domain.ConversationTurn, current string) []domain.ChatMessage {
	msgs := make([]domain.ChatMessage, 0, 2*len(turns)+1)
	for _, t := range turns {
		msgs = append(msgs, domain.ChatMessage{Role: "user", Content: t.UserMessage})
		msgs = append(msgs, domain.ChatMessage{Role: "assistant", Content: t.AIResponse})
	}
	msgs = append(msgs, domain.ChatMessage{Role: "user", Content: current})
	return msgs
}
