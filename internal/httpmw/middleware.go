// Package httpmw carries the HTTP middleware shared by both service routers.
package httpmw

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/MiniCooper40/ecommerce-website-sub001/internal/events"
)

type ctxKey int

const (
	userIDKey ctxKey = iota
	requestIDKey
)

// CorrelationMiddleware seeds the correlation context at HTTP ingress from
// the X-Correlation-ID header, generating a fresh ID when the caller sent
// none, and echoes the ID on the response.
func CorrelationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := r.Header.Get(events.CorrelationIDHeader); id != "" {
			ctx = events.WithCorrelationID(ctx, id)
		}
		ctx, correlationID := events.EnsureCorrelation(ctx)

		w.Header().Set(events.CorrelationIDHeader, correlationID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// MockAuthMiddleware simulates JWT authentication (replace with real JWT validation)
func MockAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// In production: validate JWT token from Authorization header and
		// read the user id from token claims.
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			userID = "demo-user"
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
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

// UserID returns the authenticated user from the request context, or "".
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
