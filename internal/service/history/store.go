package history

import (
	"context"

	"github.com/jaeuk-oh/Chatbot-redis-local/internal/model/chat"
)

// Store resolves a history key to the message list stored under it.
type Store interface {
	Resolve(key string) History
}

// History is the ordered list of turns stored under one key.
type History interface {
	Append(ctx context.Context, turns ...chat.Turn) error
	ReadAll(ctx context.Context) ([]chat.Turn, error)
	Clear(ctx context.Context) error
}
