package chat

import (
	"sync"
	"time"
)

// Service tracks the conversation of every UI session served by this process.
type Service struct {
	orchestrator Orchestrator

	mu            sync.RWMutex
	conversations map[string]*Conversation
}

// NewService creates a registry whose conversations run turns through orchestrator.
// A nil orchestrator is allowed; turns then fail with ErrModelUnavailable.
func NewService(orchestrator Orchestrator) *Service {
	return &Service{
		orchestrator:  orchestrator,
		conversations: make(map[string]*Conversation),
	}
}

// Available reports whether chat turns can reach a model.
func (s *Service) Available() bool {
	return s.orchestrator != nil
}

// Conversation returns the conversation for clientID, creating it on first use.
func (s *Service) Conversation(clientID string) *Conversation {
	if conv, ok := s.Lookup(clientID); ok {
		return conv
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok := s.conversations[clientID]; ok {
		conv.touch()
		return conv
	}
	conv := newConversation(s.orchestrator)
	s.conversations[clientID] = conv
	return conv
}

// Lookup returns an existing conversation without creating one.
func (s *Service) Lookup(clientID string) (*Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[clientID]
	if ok {
		// refreshed under the registry lock so Prune cannot drop a conversation just handed out
		conv.touch()
	}
	return conv, ok
}

// Forget drops the conversation for clientID. Persisted history is untouched.
// A conversation with a running turn is kept and ErrTurnInProgress is returned.
func (s *Service) Forget(clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[clientID]
	if !ok {
		return nil
	}
	if conv.busy() {
		return ErrTurnInProgress
	}
	delete(s.conversations, clientID)
	return nil
}

// Prune drops conversations idle for longer than idle and reports how many were removed.
// Conversations with a running turn are never dropped.
func (s *Service) Prune(idle time.Duration) int {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, conv := range s.conversations {
		if conv.busy() || conv.idleSince(now) <= idle {
			continue
		}
		delete(s.conversations, id)
		removed++
	}
	return removed
}

// Len reports the number of tracked conversations.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}
