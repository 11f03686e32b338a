package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const sessionCookieName = "session_id"

type contextKey string

const (
	ownerIDKey   contextKey = "owner_id"
	sessionIDKey contextKey = "session_id"
	requestIDKey contextKey = "request_id"
)

// IdentityMiddleware establishes who the request acts as. An X-User-ID
// header marks an authenticated owner (upstream auth is trusted to have
// validated it); otherwise the session cookie identifies a guest, minted on
// first contact so every shopper can carry a cart.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if ownerID := r.Header.Get("X-User-ID"); ownerID != "" {
			ctx = context.WithValue(ctx, ownerIDKey, ownerID)
		}

		sessionID := ""
		if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
			sessionID = c.Value
		} else {
			sessionID = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookieName,
				Value:    sessionID,
				Path:     "/",
				MaxAge:   int((24 * time.Hour).Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		ctx = context.WithValue(ctx, sessionIDKey, sessionID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = fmt.Sprintf("req-%d", time.Now().UnixNano())
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func getOwnerID(ctx context.Context) string {
	if ownerID, ok := ctx.Value(ownerIDKey).(string); ok {
		return ownerID
	}
	return ""
}

func getSessionID(ctx context.Context) string {
	if sessionID, ok := ctx.Value(sessionIDKey).(string); ok {
		return sessionID
	}
	return ""
}

func getRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// identity is the id orders and coupon limits attribute to: the owner when
// authenticated, the session otherwise.
func identity(ctx context.Context) string {
	if ownerID := getOwnerID(ctx); ownerID != "" {
		return ownerID
	}
	return getSessionID(ctx)
}
