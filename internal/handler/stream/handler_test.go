package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	model "github.com/jaeuk-oh/Chatbot-redis-local/internal/model/chat"
	"github.com/jaeuk-oh/Chatbot-redis-local/internal/middleware"
	chatservice "github.com/jaeuk-oh/Chatbot-redis-local/internal/service/chat"
)

type scriptedOrchestrator struct {
	tokens []string
	err    error
	calls  int
}

func (s *scriptedOrchestrator) Invoke(_ context.Context, _, _ string, sink model.TokenSink) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	for _, token := range s.tokens {
		sink.OnToken(token)
	}
	return strings.Join(s.tokens, ""), nil
}

// gatedOrchestrator streams one token and then waits for release.
type gatedOrchestrator struct {
	started chan struct{}
	release chan struct{}
}

func (g *gatedOrchestrator) Invoke(_ context.Context, _, _ string, sink model.TokenSink) (string, error) {
	close(g.started)
	<-g.release
	sink.OnToken("done")
	return "done", nil
}

func setupRouter(orch chatservice.Orchestrator) (*chi.Mux, *chatservice.Service) {
	chatSvc := chatservice.NewService(orch)
	r := chi.NewRouter()
	r.Use(middleware.ClientSession)
	New(chatSvc).RegisterRoutes(r)
	return r, chatSvc
}

func postChat(r http.Handler, clientID, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: middleware.ClientCookie, Value: clientID})
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func readEvents(t *testing.T, resp *httptest.ResponseRecorder) []StreamResponse {
	t.Helper()
	var events []StreamResponse
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event StreamResponse
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
			t.Fatalf("decode event %q: %v", line, err)
		}
		events = append(events, event)
	}
	return events
}

func eventNames(events []StreamResponse) []string {
	names := make([]string, 0, len(events))
	for _, e := range events {
		names = append(names, e.Event)
	}
	return names
}

func TestChatBeforeMintWarns(t *testing.T) {
	orch := &scriptedOrchestrator{tokens: []string{"unused"}}
	r, chatSvc := setupRouter(orch)
	client := uuid.NewString()

	resp := postChat(r, client, `{"message":"hello"}`)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	got := strings.Join(eventNames(readEvents(t, resp)), ",")
	if got != "warning,end" {
		t.Fatalf("unexpected events: %s", got)
	}
	if orch.calls != 0 {
		t.Fatalf("expected no model call, got %d", orch.calls)
	}
	if turns := chatSvc.Conversation(client).Transcript(); len(turns) != 0 {
		t.Fatalf("expected no turns, got %d", len(turns))
	}
}

func TestChatStreamsTokens(t *testing.T) {
	orch := &scriptedOrchestrator{tokens: []string{"안녕", " 나무🍀"}}
	r, chatSvc := setupRouter(orch)
	client := uuid.NewString()
	chatSvc.Conversation(client).Mint()

	resp := postChat(r, client, `{"message":"hello"}`)

	if ct := resp.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type: %s", ct)
	}
	events := readEvents(t, resp)
	if got := strings.Join(eventNames(events), ","); got != "delta,delta,message,end" {
		t.Fatalf("unexpected events: %s", got)
	}
	if events[2].Content != "안녕 나무🍀" {
		t.Fatalf("unexpected final message: %q", events[2].Content)
	}
	if turns := chatSvc.Conversation(client).Transcript(); len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
}

func TestChatAcceptsEmptyMessage(t *testing.T) {
	orch := &scriptedOrchestrator{tokens: []string{"?"}}
	r, chatSvc := setupRouter(orch)
	client := uuid.NewString()
	chatSvc.Conversation(client).Mint()

	resp := postChat(r, client, `{"message":""}`)

	if got := strings.Join(eventNames(readEvents(t, resp)), ","); got != "delta,message,end" {
		t.Fatalf("unexpected events: %s", got)
	}
}

func TestChatReportsModelFailure(t *testing.T) {
	orch := &scriptedOrchestrator{err: errors.New("upstream down")}
	r, chatSvc := setupRouter(orch)
	client := uuid.NewString()
	chatSvc.Conversation(client).Mint()

	resp := postChat(r, client, `{"message":"hello"}`)

	if got := strings.Join(eventNames(readEvents(t, resp)), ","); got != "error,end" {
		t.Fatalf("unexpected events: %s", got)
	}
	if orch.calls != 1 {
		t.Fatalf("expected exactly one model call, got %d", orch.calls)
	}
}

func TestChatRejectsMissingMessage(t *testing.T) {
	r, _ := setupRouter(&scriptedOrchestrator{})

	if resp := postChat(r, uuid.NewString(), `{}`); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if resp := postChat(r, uuid.NewString(), `not json`); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestChatWithoutModel(t *testing.T) {
	r, _ := setupRouter(nil)

	if resp := postChat(r, uuid.NewString(), `{"message":"hi"}`); resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}

func TestChatRejectsOverlappingTurn(t *testing.T) {
	orch := &gatedOrchestrator{started: make(chan struct{}), release: make(chan struct{})}
	r, chatSvc := setupRouter(orch)
	client := uuid.NewString()
	chatSvc.Conversation(client).Mint()

	first := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		first <- postChat(r, client, `{"message":"slow"}`)
	}()
	<-orch.started

	resp := postChat(r, client, `{"message":"impatient"}`)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("expected a plain error response, got content type %q", ct)
	}

	close(orch.release)
	events := readEvents(t, <-first)
	if got := strings.Join(eventNames(events), ","); got != "delta,message,end" {
		t.Fatalf("unexpected first turn events: %s", got)
	}
	if turns := chatSvc.Conversation(client).Transcript(); len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
}
