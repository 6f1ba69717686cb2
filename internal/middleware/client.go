package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// ClientIDKey is the context key for the anonymous client identity.
const ClientIDKey contextKey = "client_id"

// clientCookie names the cookie carrying the anonymous client ID.
const clientCookie = "planora_client"

// clientCookieMaxAge keeps the identity stable across the signup detour.
const clientCookieMaxAge = 30 * 24 * 60 * 60 // seconds

// GetClientID extracts the anonymous client ID from the context.
// Returns empty string if not found.
func GetClientID(ctx context.Context) string {
	clientID, _ := ctx.Value(ClientIDKey).(string)
	return clientID
}

// ClientID assigns each browser a stable anonymous identity via cookie.
// The identity exists before login and survives it, which is what lets a
// pending invite staged by a logged-out visitor be consumed after they
// authenticate.
func ClientID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var clientID string
		if c, err := r.Cookie(clientCookie); err == nil && c.Value != "" {
			clientID = c.Value
		} else {
			clientID = uuid.New().String()
			http.SetCookie(w, &http.Cookie{
				Name:     clientCookie,
				Value:    clientID,
				Path:     "/",
				MaxAge:   clientCookieMaxAge,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), ClientIDKey, clientID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
