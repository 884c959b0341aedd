package socket

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/jaeuk-oh/Chatbot-redis-local/internal/middleware"
	chatService "github.com/jaeuk-oh/Chatbot-redis-local/internal/service/chat"
)

// Inbound message types.
const (
	TypeMint   = "mint"
	TypeSubmit = "submit"
	TypeClear  = "clear"
)

// Outbound message types.
const (
	TypeSession = "session"
	TypeWarning = "warning"
	TypeDelta   = "delta"
	TypeMessage = "message"
	TypeCleared = "cleared"
	TypeError   = "error"
)

// Handler drives a UI session over a WebSocket. It shares conversations with the HTTP endpoints.
type Handler struct {
	chatSvc  *chatService.Service
	upgrader websocket.Upgrader
}

// New creates the WebSocket handler.
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		// A nil CheckOrigin rejects cross-origin upgrades that would carry the client cookie.
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes registers the WebSocket route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

// InboundMessage is a client command.
type InboundMessage struct {
	Type string  `json:"type"`
	Text *string `json:"text,omitempty"`
}

// OutgoingMessage is a server event.
type OutgoingMessage struct {
	Type        string `json:"type"`
	Token       string `json:"token,omitempty"`
	Initialized bool   `json:"initialized,omitempty"`
	HistoryKey  string `json:"historyKey,omitempty"`
	Content     string `json:"content,omitempty"`
	Error       string `json:"error,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}

// connDisplay writes streamed output to the socket. All writes happen on the dispatch goroutine.
type connDisplay struct {
	ctx  context.Context
	conn *websocket.Conn
}

func (d *connDisplay) send(msg OutgoingMessage) {
	if d.ctx.Err() != nil {
		return
	}
	msg.Timestamp = time.Now().UnixMilli()
	if err := d.conn.WriteJSON(msg); err != nil {
		log.Printf("[ws] write failed: %v", err)
	}
}

func (d *connDisplay) OnToken(text string) {
	d.send(OutgoingMessage{Type: TypeDelta, Content: text})
}

func (d *connDisplay) Warn(message string) {
	d.send(OutgoingMessage{Type: TypeWarning, Content: message})
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	clientID := middleware.ClientID(r.Context())
	if clientID == "" {
		http.Error(w, "client session is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// cancelled by readLoop when the socket drops
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conv := h.chatSvc.Conversation(clientID)
	display := &connDisplay{ctx: ctx, conn: conn}
	display.send(sessionMessage(conv))
	log.Printf("[ws] connected client=%s", clientID)

	inbound := make(chan []byte)
	go h.readLoop(ctx, cancel, conn, clientID, inbound)

	for raw := range inbound {
		var msg InboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			display.send(OutgoingMessage{Type: TypeError, Error: "invalid message"})
			continue
		}

		h.dispatch(ctx, conv, display, msg)
	}
}

// readLoop forwards frames until the socket fails, then cancels any running turn.
func (h *Handler) readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, clientID string, inbound chan<- []byte) {
	defer close(inbound)
	defer cancel()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] read failed client=%s: %v", clientID, err)
			}
			return
		}

		select {
		case inbound <- raw:
		case <-ctx.Done():
			return
		}
	}
}

func (h *Handler) dispatch(ctx context.Context, conv *chatService.Conversation, display *connDisplay, msg InboundMessage) {
	switch msg.Type {
	case TypeMint:
		conv.Mint()
		display.send(sessionMessage(conv))
	case TypeClear:
		conv.Clear()
		display.send(OutgoingMessage{Type: TypeCleared})
	case TypeSubmit:
		if msg.Text == nil {
			display.send(OutgoingMessage{Type: TypeError, Error: "text is required"})
			return
		}
		answer, err := conv.Submit(ctx, *msg.Text, display)
		switch {
		case err == nil:
			display.send(OutgoingMessage{Type: TypeMessage, Content: answer.Content})
		case errors.Is(err, chatService.ErrSessionNotInitialized):
			// already warned through the display
		case ctx.Err() != nil:
			log.Printf("[ws] turn abandoned after disconnect: %v", err)
		case errors.Is(err, chatService.ErrTurnInProgress), errors.Is(err, chatService.ErrModelUnavailable):
			display.send(OutgoingMessage{Type: TypeError, Error: err.Error()})
		default:
			log.Printf("[ws] turn failed: %v", err)
			display.send(OutgoingMessage{Type: TypeError, Error: "generation failed"})
		}
	default:
		display.send(OutgoingMessage{Type: TypeError, Error: "unknown message type"})
	}
}

func sessionMessage(conv *chatService.Conversation) OutgoingMessage {
	state := conv.State()
	msg := OutgoingMessage{Type: TypeSession, Token: state.Token, Initialized: state.Initialized}
	if state.IsValid() {
		msg.HistoryKey, _ = chatService.HistoryKey(state.Token)
	}
	return msg
}
