package ai

import (
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/jaeuk-oh/Chatbot-redis-local/internal/model/chat"
)

// Chain input keys.
const (
	keySystem   = "system"
	keyHistory  = "history"
	keyQuestion = "question"
)

// newPromptTemplate lays out a system instruction, the prior turns, then the current question.
// Values are injected as variables so braces in user text are never reformatted.
func newPromptTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{"+keySystem+"}"),
		schema.MessagesPlaceholder(keyHistory, true),
		schema.UserMessage("{"+keyQuestion+"}"),
	)
}

// toSchemaMessages converts stored turns to model messages, keeping at most window turns (0 keeps all).
func toSchemaMessages(turns []chat.Turn, window int) []*schema.Message {
	if len(turns) == 0 {
		return nil
	}

	start := 0
	if window > 0 && len(turns) > window {
		start = len(turns) - window
	}

	messages := make([]*schema.Message, 0, len(turns)-start)
	for _, turn := range turns[start:] {
		switch turn.Role {
		case chat.RoleUser:
			messages = append(messages, schema.UserMessage(turn.Content))
		case chat.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(turn.Content, nil))
		}
	}
	return messages
}
