package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func captureClientID(got *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = ClientID(r.Context())
	})
}

func TestClientSessionIssuesCookie(t *testing.T) {
	var got string
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()

	ClientSession(captureClientID(&got)).ServeHTTP(resp, req)

	if _, err := uuid.Parse(got); err != nil {
		t.Fatalf("expected uuid client id, got %q", got)
	}
	cookies := resp.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != ClientCookie || cookies[0].Value != got {
		t.Fatalf("expected %s cookie carrying %s, got %+v", ClientCookie, got, cookies)
	}
}

func TestClientSessionReusesCookie(t *testing.T) {
	var got string
	existing := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: ClientCookie, Value: existing})
	resp := httptest.NewRecorder()

	ClientSession(captureClientID(&got)).ServeHTTP(resp, req)

	if got != existing {
		t.Fatalf("expected client id %s, got %s", existing, got)
	}
	if cookies := resp.Result().Cookies(); len(cookies) != 0 {
		t.Fatalf("expected no new cookie, got %+v", cookies)
	}
}

func TestClientSessionReplacesMalformedCookie(t *testing.T) {
	var got string
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: ClientCookie, Value: "not-a-uuid"})
	resp := httptest.NewRecorder()

	ClientSession(captureClientID(&got)).ServeHTTP(resp, req)

	if got == "not-a-uuid" {
		t.Fatal("expected malformed cookie to be replaced")
	}
	if _, err := uuid.Parse(got); err != nil {
		t.Fatalf("expected uuid client id, got %q", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	resp := httptest.NewRecorder()

	CORS(next).ServeHTTP(resp, req)

	if called {
		t.Fatal("expected preflight to stop before the handler")
	}
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("unexpected allow-origin: %q", got)
	}
}

func TestCORSDoesNotAllowCredentials(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.Header.Set("Origin", "http://localhost:3001")
	resp := httptest.NewRecorder()

	CORS(next).ServeHTTP(resp, req)

	if got := resp.Header().Get("Access-Control-Allow-Credentials"); got != "" {
		t.Fatalf("expected no credentials header, got %q", got)
	}
	if got := resp.Header().Get("Access-Control-Allow-Origin"); got == "http://localhost:3001" {
		t.Fatal("expected the request origin not to be echoed")
	}
}
