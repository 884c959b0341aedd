package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jaeuk-oh/Chatbot-redis-local/internal/handler/chat"
	"github.com/jaeuk-oh/Chatbot-redis-local/internal/handler/socket"
	"github.com/jaeuk-oh/Chatbot-redis-local/internal/handler/stream"
	"github.com/jaeuk-oh/Chatbot-redis-local/internal/handler/web"
	middlewarePkg "github.com/jaeuk-oh/Chatbot-redis-local/internal/middleware"
	chatService "github.com/jaeuk-oh/Chatbot-redis-local/internal/service/chat"
	"github.com/jaeuk-oh/Chatbot-redis-local/internal/service/history"
	"github.com/jaeuk-oh/Chatbot-redis-local/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(chatSvc *chatService.Service, store history.Store) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)
	r.Use(middlewarePkg.ClientSession)

	r.Get("/", web.Index)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"aiReady": chatSvc.Available(),
		})
	})

	r.Route("/api", func(api chi.Router) {
		chat.New(chatSvc, store).RegisterRoutes(api)
		stream.New(chatSvc).RegisterRoutes(api)
		socket.New(chatSvc).RegisterRoutes(api)
	})

	return r
}
