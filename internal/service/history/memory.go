package history

import (
	"context"
	"sync"

	"github.com/jaeuk-oh/Chatbot-redis-local/internal/model/chat"
)

// MemoryStore keeps histories in process memory. Contents are lost on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	turns map[string][]chat.Turn
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{turns: make(map[string][]chat.Turn)}
}

// Resolve returns the history bound to key.
func (s *MemoryStore) Resolve(key string) History {
	return &memoryHistory{store: s, key: key}
}

type memoryHistory struct {
	store *MemoryStore
	key   string
}

func (h *memoryHistory) Append(_ context.Context, turns ...chat.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	h.store.mu.Lock()
	h.store.turns[h.key] = append(h.store.turns[h.key], turns...)
	h.store.mu.Unlock()
	return nil
}

func (h *memoryHistory) ReadAll(_ context.Context) ([]chat.Turn, error) {
	h.store.mu.RLock()
	defer h.store.mu.RUnlock()

	turns := h.store.turns[h.key]
	copied := make([]chat.Turn, len(turns))
	copy(copied, turns)
	return copied, nil
}

func (h *memoryHistory) Clear(_ context.Context) error {
	h.store.mu.Lock()
	delete(h.store.turns, h.key)
	h.store.mu.Unlock()
	return nil
}
