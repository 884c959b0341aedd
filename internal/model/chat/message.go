package chat

import "time"

// Role tags the originator of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message exchanged in a conversation. Turns are appended, never edited.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserTurn builds a user turn stamped with the current time.
func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content, CreatedAt: time.Now().UTC()}
}

// AssistantTurn builds an assistant turn stamped with the current time.
func AssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content, CreatedAt: time.Now().UTC()}
}

// TokenSink receives streamed model output as it arrives.
type TokenSink interface {
	OnToken(text string)
}
