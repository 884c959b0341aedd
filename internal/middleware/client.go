package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// ClientCookie names the cookie that identifies one browser UI session.
const ClientCookie = "ssac_client"

type clientIDKey struct{}

// ClientSession makes sure every request carries a client id, issuing a cookie when missing.
// The client id only selects the UI session; it is never used as a history key.
func ClientSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := ""
		if cookie, err := r.Cookie(ClientCookie); err == nil {
			if _, err := uuid.Parse(cookie.Value); err == nil {
				clientID = cookie.Value
			}
		}

		if clientID == "" {
			clientID = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     ClientCookie,
				Value:    clientID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		next.ServeHTTP(w, r.WithContext(WithClientID(r.Context(), clientID)))
	})
}

// WithClientID returns a copy of ctx carrying clientID.
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDKey{}, clientID)
}

// ClientID returns the client id stored by ClientSession, or "" outside of it.
func ClientID(ctx context.Context) string {
	id, _ := ctx.Value(clientIDKey{}).(string)
	return id
}
