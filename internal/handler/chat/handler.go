package chat

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jaeuk-oh/Chatbot-redis-local/internal/middleware"
	chatModel "github.com/jaeuk-oh/Chatbot-redis-local/internal/model/chat"
	chatService "github.com/jaeuk-oh/Chatbot-redis-local/internal/service/chat"
	"github.com/jaeuk-oh/Chatbot-redis-local/internal/service/history"
	"github.com/jaeuk-oh/Chatbot-redis-local/pkg/utils"
)

// Handler serves session identity and transcript endpoints.
type Handler struct {
	chatSvc *chatService.Service
	store   history.Store
}

// New creates the chat handler.
func New(chatSvc *chatService.Service, store history.Store) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		store:   store,
	}
}

// RegisterRoutes registers the session and transcript routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleMintSession)
	r.Get("/session", h.handleGetSession)
	r.Delete("/session", h.handleEndSession)
	r.Get("/messages", h.handleListMessages)
	r.Delete("/messages", h.handleClearMessages)
	r.Get("/history", h.handleReadHistory)
}

// SessionResponse describes the identity of the caller's UI session.
type SessionResponse struct {
	Token       string `json:"token,omitempty"`
	Initialized bool   `json:"initialized"`
	HistoryKey  string `json:"historyKey,omitempty"`
}

func (h *Handler) conversation(r *http.Request) *chatService.Conversation {
	return h.chatSvc.Conversation(middleware.ClientID(r.Context()))
}

func (h *Handler) handleMintSession(w http.ResponseWriter, r *http.Request) {
	conv := h.conversation(r)
	conv.Mint()
	log.Printf("[session] minted token for client=%s", middleware.ClientID(r.Context()))
	utils.RespondJSON(w, http.StatusCreated, describe(conv))
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.chatSvc.Lookup(middleware.ClientID(r.Context()))
	if !ok {
		utils.RespondJSON(w, http.StatusOK, SessionResponse{})
		return
	}
	utils.RespondJSON(w, http.StatusOK, describe(conv))
}

// handleEndSession drops the caller's UI session. Persisted history stays in the store.
func (h *Handler) handleEndSession(w http.ResponseWriter, r *http.Request) {
	clientID := middleware.ClientID(r.Context())
	if err := h.chatSvc.Forget(clientID); err != nil {
		if errors.Is(err, chatService.ErrTurnInProgress) {
			utils.RespondError(w, http.StatusConflict, err.Error())
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.Printf("[session] ended ui session for client=%s", clientID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.chatSvc.Lookup(middleware.ClientID(r.Context()))
	if !ok {
		utils.RespondJSON(w, http.StatusOK, []any{})
		return
	}
	utils.RespondJSON(w, http.StatusOK, conv.Transcript())
}

func (h *Handler) handleClearMessages(w http.ResponseWriter, r *http.Request) {
	h.conversation(r).Clear()
	w.WriteHeader(http.StatusNoContent)
}

// handleReadHistory returns what the history store holds for the current token.
func (h *Handler) handleReadHistory(w http.ResponseWriter, r *http.Request) {
	var state chatModel.State
	if conv, ok := h.chatSvc.Lookup(middleware.ClientID(r.Context())); ok {
		state = conv.State()
	}
	if !state.IsValid() {
		utils.RespondError(w, http.StatusConflict, chatService.ErrSessionNotInitialized.Error())
		return
	}

	key, err := chatService.HistoryKey(state.Token)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	turns, err := h.store.Resolve(key).ReadAll(r.Context())
	if err != nil {
		log.Printf("[history] read failed key=%s: %v", key, err)
		utils.RespondError(w, http.StatusBadGateway, "history store unavailable")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"historyKey": key,
		"messages":   turns,
	})
}

func describe(conv *chatService.Conversation) SessionResponse {
	state := conv.State()
	resp := SessionResponse{Token: state.Token, Initialized: state.Initialized}
	if state.IsValid() {
		resp.HistoryKey, _ = chatService.HistoryKey(state.Token)
	}
	return resp
}
