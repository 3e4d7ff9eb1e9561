package domain

import (
	"time"

	"github.com/google/uuid"
)

// FlattenHistory expands question/answer pairs into alternating user and
// assistant messages. Empty halves of a pair are skipped.
func FlattenHistory(turns []HistoryTurn, now time.Time) []ChatMessage {
	messages := make([]ChatMessage, 0, len(turns)*2)
	for _, turn := range turns {
		if turn.Question != "" {
			messages = append(messages, ChatMessage{
				ID:        uuid.NewString(),
				Role:      RoleUser,
				Text:      turn.Question,
				Timestamp: now,
			})
		}
		if turn.Answer != "" {
			messages = append(messages, ChatMessage{
				ID:        uuid.NewString(),
				Role:      RoleAssistant,
				Text:      turn.Answer,
				Timestamp: now,
			})
		}
	}
	return messages
}
