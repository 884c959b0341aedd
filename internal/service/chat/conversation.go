package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jaeuk-oh/Chatbot-redis-local/internal/model/chat"
)

var (
	ErrSessionNotInitialized = errors.New("session not initialized")
	ErrTurnInProgress        = errors.New("another turn is already in progress")
	ErrModelUnavailable      = errors.New("model orchestrator unavailable")
)

// WarnSessionNotInitialized is shown to the user when a turn arrives before mint.
const WarnSessionNotInitialized = "Generate a session before sending a message."

// Orchestrator runs one question against the model with the history stored under historyKey.
type Orchestrator interface {
	Invoke(ctx context.Context, question, historyKey string, sink chat.TokenSink) (string, error)
}

// Display is the rendering surface for one UI session.
type Display interface {
	chat.TokenSink
	Warn(message string)
}

// Conversation is the state of one UI session: its identity and the displayed transcript.
type Conversation struct {
	orchestrator Orchestrator

	turn sync.Mutex

	mu         sync.Mutex
	state      chat.State
	transcript []chat.Turn
	lastSeen   time.Time
}

func newConversation(orchestrator Orchestrator) *Conversation {
	return &Conversation{
		orchestrator: orchestrator,
		transcript:   make([]chat.Turn, 0, 16),
		lastSeen:     time.Now(),
	}
}

// Mint starts a new logical session. The transcript is left untouched.
func (c *Conversation) Mint() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSeen = time.Now()
	return c.state.Mint()
}

// State returns a snapshot of the session identity.
func (c *Conversation) State() chat.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Transcript returns a copy of the displayed turns.
func (c *Conversation) Transcript() []chat.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := make([]chat.Turn, len(c.transcript))
	copy(copied, c.transcript)
	return copied
}

// Clear empties the displayed transcript. Identity and persisted history are kept.
func (c *Conversation) Clear() {
	c.mu.Lock()
	c.transcript = c.transcript[:0:0]
	c.lastSeen = time.Now()
	c.mu.Unlock()
}

// Submit runs one chat turn. Before mint it only warns the display and returns
// ErrSessionNotInitialized. Collaborator failures are returned as-is and not retried.
func (c *Conversation) Submit(ctx context.Context, text string, display Display) (chat.Turn, error) {
	if !c.turn.TryLock() {
		return chat.Turn{}, ErrTurnInProgress
	}
	defer c.turn.Unlock()

	c.mu.Lock()
	state := c.state
	c.lastSeen = time.Now()
	c.mu.Unlock()

	if !state.IsValid() {
		display.Warn(WarnSessionNotInitialized)
		return chat.Turn{}, ErrSessionNotInitialized
	}
	if c.orchestrator == nil {
		return chat.Turn{}, ErrModelUnavailable
	}

	key, err := HistoryKey(state.Token)
	if err != nil {
		return chat.Turn{}, err
	}

	c.append(chat.UserTurn(text))

	reply, err := c.orchestrator.Invoke(ctx, text, key, display)
	if err != nil {
		return chat.Turn{}, fmt.Errorf("invoke model: %w", err)
	}

	answer := chat.AssistantTurn(reply)
	c.append(answer)
	log.Printf("[chat] completed turn key=%s reply_len=%d", key, len(reply))
	return answer, nil
}

func (c *Conversation) append(turn chat.Turn) {
	c.mu.Lock()
	c.transcript = append(c.transcript, turn)
	c.lastSeen = time.Now()
	c.mu.Unlock()
}

func (c *Conversation) touch() {
	c.mu.Lock()
	c.lastSeen = time.Now()
	c.mu.Unlock()
}

// busy reports whether a turn is currently running.
func (c *Conversation) busy() bool {
	if !c.turn.TryLock() {
		return true
	}
	c.turn.Unlock()
	return false
}

func (c *Conversation) idleSince(now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return now.Sub(c.lastSeen)
}
