// Package server provides the HTTP API server, middleware, and handlers.
package server

import (
	"crypto/subtle"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/citybrief/citybrief/internal/cryptoutil"
	"github.com/citybrief/citybrief/internal/requestctx"
)

// SessionAuthMiddleware validates the X-Session-ID / X-Session-Token header
// pair against the signing key and stores the session id in the request
// context. Requests with a missing or forged token never reach the core.
func SessionAuthMiddleware(signingKey []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := r.Header.Get("X-Session-ID")
			token := r.Header.Get("X-Session-Token")
			if sessionID == "" || token == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing session credentials")
				return
			}
			if err := cryptoutil.VerifySession(sessionID, token, signingKey); err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid session token")
				return
			}
			r = r.WithContext(requestctx.SetSessionID(r.Context(), sessionID))
			next.ServeHTTP(w, r)
		})
	}
}

// AdminAuthMiddleware validates X-API-Key against the configured admin key
// with a constant-time compare. An empty configured key disables the admin
// surface entirely.
func AdminAuthMiddleware(adminKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKey == "" {
				writeError(w, http.StatusForbidden, "forbidden", "admin API is not configured")
				return
			}
			key := r.Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(key), []byte(adminKey)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid or missing API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitMiddleware applies a per-caller token bucket. Callers are keyed
// by session id when authenticated, otherwise by remote address (chi's
// RealIP middleware has already normalized RemoteAddr).
func RateLimitMiddleware(rps float64, burst int) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)
	limiterFor := func(caller string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		l, ok := limiters[caller]
		if !ok {
			l = rate.NewLimiter(rate.Limit(rps), burst)
			limiters[caller] = l
		}
		return l
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := requestctx.SessionID(r.Context())
			if caller == "" {
				caller = r.RemoteAddr
			}
			if !limiterFor(caller).Allow() {
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
