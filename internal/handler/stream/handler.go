package stream

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jaeuk-oh/Chatbot-redis-local/internal/middleware"
	chatService "github.com/jaeuk-oh/Chatbot-redis-local/internal/service/chat"
	"github.com/jaeuk-oh/Chatbot-redis-local/pkg/utils"
)

// Handler streams chat turns to the browser via Server-Sent Events.
type Handler struct {
	chatSvc *chatService.Service
}

// New creates a new stream handler.
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes registers the streaming chat route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
}

// StreamResponse is one streamed event.
type StreamResponse struct {
	Event    string `json:"event"`
	Content  string `json:"content,omitempty"`
	Finished bool   `json:"finished,omitempty"`
	Error    string `json:"error,omitempty"`
}

type chatRequest struct {
	Message *string `json:"message"`
}

// sseDisplay renders one turn as SSE events.
type sseDisplay struct {
	sse *utils.SSEWriter
}

func (d *sseDisplay) OnToken(text string) {
	d.sse.Send(StreamResponse{Event: "delta", Content: text})
}

func (d *sseDisplay) Warn(message string) {
	d.sse.Send(StreamResponse{Event: "warning", Content: message})
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload chatRequest
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.Message == nil {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}
	if !h.chatSvc.Available() {
		utils.RespondError(w, http.StatusServiceUnavailable, "ai streaming unavailable")
		return
	}

	sse, err := utils.NewSSEWriter(w)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	clientID := middleware.ClientID(r.Context())
	conv := h.chatSvc.Conversation(clientID)

	answer, err := conv.Submit(r.Context(), *payload.Message, &sseDisplay{sse: sse})
	switch {
	case err == nil:
		sse.Send(StreamResponse{Event: "message", Content: answer.Content})
	case errors.Is(err, chatService.ErrSessionNotInitialized):
		log.Printf("[stream] dropped turn for uninitialized client=%s", clientID)
	case errors.Is(err, chatService.ErrTurnInProgress) && !sse.Started():
		utils.RespondError(w, http.StatusConflict, err.Error())
		return
	default:
		log.Printf("[stream] turn failed client=%s: %v", clientID, err)
		sse.Send(StreamResponse{Event: "error", Error: "generation failed"})
	}

	sse.Send(StreamResponse{Event: "end", Finished: true})
}
