package chat_test

import (
	"errors"
	"testing"

	model "github.com/jaeuk-oh/Chatbot-redis-local/internal/model/chat"
	chat "github.com/jaeuk-oh/Chatbot-redis-local/internal/service/chat"
)

func TestHistoryKeyDeterministic(t *testing.T) {
	var state model.State
	token := state.Mint()

	first, err := chat.HistoryKey(token)
	if err != nil {
		t.Fatalf("HistoryKey err: %v", err)
	}
	second, err := chat.HistoryKey(token)
	if err != nil {
		t.Fatalf("HistoryKey err: %v", err)
	}
	if first != second {
		t.Fatalf("expected identical keys, got %s and %s", first, second)
	}
	if first != "message_store:"+token {
		t.Fatalf("unexpected key layout: %s", first)
	}
}

func TestHistoryKeyDistinctTokens(t *testing.T) {
	var a, b model.State
	keyA, _ := chat.HistoryKey(a.Mint())
	keyB, _ := chat.HistoryKey(b.Mint())

	if keyA == keyB {
		t.Fatalf("expected distinct keys, got %s twice", keyA)
	}
}

func TestHistoryKeyEmptyToken(t *testing.T) {
	if _, err := chat.HistoryKey(""); !errors.Is(err, chat.ErrTokenRequired) {
		t.Fatalf("expected ErrTokenRequired, got %v", err)
	}
}
