package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// DefaultSystemPrompt asks for short, witty answers that end with "나무🍀".
const DefaultSystemPrompt = "짧고 위트있게 답변해줘. 말끝에는 나무🍀 를 붙여줘"

// Config aggregates every setting the service reads at startup.
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	History HistoryConfig
	Session SessionConfig
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	history, err := loadHistoryConfig()
	if err != nil {
		return nil, err
	}

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, AI: ai, History: history, Session: session}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// ":8080" and "127.0.0.1:8080" are passed through.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig describes the hosted model and how the chat chain drives it.
type AIConfig struct {
	APIKey        string
	AccessKey     string
	SecretKey     string
	Model         string
	BaseURL       string
	Region        string
	Temperature   *float64
	TopP          *float64
	MaxTokens     *int
	Stream        bool
	SystemPrompt  string
	HistoryWindow int
}

// Enabled reports whether a model and its credentials are configured.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel builds an Ark chat model. Client retries are disabled.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: set ARK_MODEL with ARK_API_KEY or ARK_ACCESS_KEY/ARK_SECRET_KEY")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	retries := 0
	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
		RetryTimes:  &retries,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	stream, err := parseBoolEnv("ARK_STREAM", true)
	if err != nil {
		return AIConfig{}, err
	}

	window := 0
	if override, err := parseOptionalIntEnv("CHAT_HISTORY_WINDOW"); err != nil {
		return AIConfig{}, err
	} else if override != nil {
		if *override < 0 {
			return AIConfig{}, fmt.Errorf("invalid CHAT_HISTORY_WINDOW value %d: must not be negative", *override)
		}
		window = *override
	}

	return AIConfig{
		APIKey:        strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:     strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:     strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:         strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:       getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:        getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:   temperature,
		TopP:          topP,
		MaxTokens:     maxTokens,
		Stream:        stream,
		SystemPrompt:  getEnvOrDefault("CHAT_SYSTEM_PROMPT", DefaultSystemPrompt),
		HistoryWindow: window,
	}, nil
}

// History backends.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// HistoryConfig describes where chat history is persisted.
type HistoryConfig struct {
	Backend  string
	RedisURL string
	TTL      time.Duration
}

func loadHistoryConfig() (HistoryConfig, error) {
	backend := strings.ToLower(getEnvOrDefault("HISTORY_BACKEND", BackendRedis))
	if backend != BackendRedis && backend != BackendMemory {
		return HistoryConfig{}, fmt.Errorf("invalid HISTORY_BACKEND value %q: want %s or %s", backend, BackendRedis, BackendMemory)
	}

	ttl, err := parseDurationEnv("HISTORY_TTL", 0)
	if err != nil {
		return HistoryConfig{}, err
	}

	return HistoryConfig{
		Backend:  backend,
		RedisURL: getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),
		TTL:      ttl,
	}, nil
}

// MinSessionIdleTimeout is the shortest accepted SESSION_IDLE_TIMEOUT.
const MinSessionIdleTimeout = time.Second

// SessionConfig controls how long idle UI sessions are kept in memory.
type SessionConfig struct {
	IdleTimeout time.Duration
}

func loadSessionConfig() (SessionConfig, error) {
	idle, err := parseDurationEnv("SESSION_IDLE_TIMEOUT", 2*time.Hour)
	if err != nil {
		return SessionConfig{}, err
	}
	if idle < MinSessionIdleTimeout {
		return SessionConfig{}, fmt.Errorf("invalid SESSION_IDLE_TIMEOUT value %s: must be at least %s", idle, MinSessionIdleTimeout)
	}
	return SessionConfig{IdleTimeout: idle}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
