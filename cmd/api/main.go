package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/jaeuk-oh/Chatbot-redis-local/internal/config"
	"github.com/jaeuk-oh/Chatbot-redis-local/internal/handler"
	"github.com/jaeuk-oh/Chatbot-redis-local/internal/service/ai"
	"github.com/jaeuk-oh/Chatbot-redis-local/internal/service/chat"
	"github.com/jaeuk-oh/Chatbot-redis-local/internal/service/history"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	store, closeStore, err := newHistoryStore(ctx, cfg.History)
	if err != nil {
		log.Fatalf("failed to initialize history store: %v", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Printf("warning: failed to close history store: %v", err)
		}
	}()

	// A nil orchestrator keeps the UI up; chat turns then report the model as unavailable.
	var orchestrator chat.Orchestrator
	if cfg.AI.Enabled() {
		aiService, err := newAIService(ctx, cfg.AI, store)
		if err != nil {
			log.Printf("warning: failed to initialize AI service: %v", err)
			log.Println("continuing without AI functionality - check ARK_* environment variables")
		} else {
			orchestrator = aiService
			log.Printf("AI service initialized (model=%s, stream=%t)", cfg.AI.Model, cfg.AI.Stream)
		}
	} else {
		log.Println("Ark credentials not configured, skipping AI initialization")
	}

	chatService := chat.NewService(orchestrator)
	go pruneSessions(ctx, chatService, cfg.Session.IdleTimeout)

	router := handler.NewRouter(chatService, store)

	startServer(ctx, cfg.Server, router)
}

func newHistoryStore(ctx context.Context, cfg config.HistoryConfig) (history.Store, func() error, error) {
	if cfg.Backend == config.BackendMemory {
		log.Println("history backend: memory (history is lost on restart)")
		return history.NewMemoryStore(), func() error { return nil }, nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	store, err := history.NewRedisStore(pingCtx, history.RedisConfig{URL: cfg.RedisURL, TTL: cfg.TTL})
	if err != nil {
		return nil, nil, err
	}
	log.Printf("history backend: redis (ttl=%s)", cfg.TTL)
	return store, store.Close, nil
}

func newAIService(ctx context.Context, cfg config.AIConfig, store history.Store) (*ai.Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, err
	}

	return ai.NewService(ctx, chatModel, store, ai.Options{
		SystemPrompt:  cfg.SystemPrompt,
		HistoryWindow: cfg.HistoryWindow,
		Stream:        cfg.Stream,
	})
}

func pruneSessions(ctx context.Context, svc *chat.Service, idle time.Duration) {
	ticker := time.NewTicker(idle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := svc.Prune(idle); removed > 0 {
				log.Printf("[session] pruned %d idle conversations, %d remaining", removed, svc.Len())
			}
		}
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("SSAC_TALK listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
