package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestIndexServesPage(t *testing.T) {
	resp := httptest.NewRecorder()
	Index(resp, httptest.NewRequest(http.MethodGet, "/", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("unexpected content type: %s", ct)
	}
	if !strings.Contains(resp.Body.String(), "/api/chat") {
		t.Fatal("expected page to talk to /api/chat")
	}
}
