package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/jaeuk-oh/Chatbot-redis-local/internal/model/chat"
	"github.com/jaeuk-oh/Chatbot-redis-local/internal/service/history"
)

// Options tunes how the chain is driven.
type Options struct {
	SystemPrompt  string
	HistoryWindow int
	Stream        bool
}

// Service answers questions with the prior turns stored in the history store
// and records each answered exchange back into it.
type Service struct {
	chatModel model.ChatModel
	store     history.Store
	opts      Options
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewService compiles the prompt → model chain.
func NewService(ctx context.Context, chatModel model.ChatModel, store history.Store, opts Options) (*Service, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	if store == nil {
		return nil, errors.New("history store is required")
	}

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(newPromptTemplate())
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		store:     store,
		opts:      opts,
		chain:     runnable,
	}, nil
}

// StreamingEnabled reports whether replies are streamed chunk by chunk.
func (s *Service) StreamingEnabled() bool {
	return s.opts.Stream
}

// Invoke answers question using the history stored under historyKey, reporting
// output to sink as it arrives. The exchange is persisted only after the model
// finishes. Nothing is retried.
func (s *Service) Invoke(ctx context.Context, question, historyKey string, sink chat.TokenSink) (string, error) {
	h := s.store.Resolve(historyKey)

	prior, err := h.ReadAll(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load history: %w", err)
	}

	input := map[string]any{
		keySystem:   s.opts.SystemPrompt,
		keyHistory:  toSchemaMessages(prior, s.opts.HistoryWindow),
		keyQuestion: question,
	}

	var response *schema.Message
	if s.StreamingEnabled() {
		response, err = s.stream(ctx, input, sink)
	} else {
		response, err = s.generate(ctx, input, sink)
	}
	if err != nil {
		return "", err
	}

	if err := h.Append(ctx, chat.UserTurn(question), chat.AssistantTurn(response.Content)); err != nil {
		return "", fmt.Errorf("failed to save history: %w", err)
	}

	log.Printf("[ai] answered key=%s history=%d length=%d", historyKey, len(prior), len(response.Content))
	return response.Content, nil
}

func (s *Service) generate(ctx context.Context, input map[string]any, sink chat.TokenSink) (*schema.Message, error) {
	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to run AI chain: %w", err)
	}
	if response.Content != "" {
		sink.OnToken(response.Content)
	}
	return response, nil
}

func (s *Service) stream(ctx context.Context, input map[string]any, sink chat.TokenSink) (*schema.Message, error) {
	stream, err := s.chain.Stream(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to stream AI chain output: %w", err)
	}
	defer stream.Close()

	chunks := make([]*schema.Message, 0, 8)
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return nil, fmt.Errorf("failed to receive AI chunk: %w", recvErr)
		}
		if chunk == nil {
			continue
		}

		chunks = append(chunks, chunk)
		if chunk.Content != "" {
			sink.OnToken(chunk.Content)
		}
	}

	if len(chunks) == 0 {
		return schema.AssistantMessage("", nil), nil
	}

	response, err := schema.ConcatMessages(chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to concat AI chunks: %w", err)
	}
	return response, nil
}
