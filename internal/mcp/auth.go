package mcp

import (
	"crypto/subtle"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

const (
	defaultMaxBodyBytes    int64 = 1 << 20
	defaultRequestsPerMin        = 60
)

type HTTPHandlerConfig struct {
	AuthToken       string
	RateLimitPerMin int
	MaxBodyBytes    int64
}

// guardHTTPHandler applies, outermost first, bearer auth, a per-client rate
// limit and a request body cap.
func guardHTTPHandler(base http.Handler, cfg HTTPHandlerConfig) http.Handler {
	h := limitBody(base, cfg.MaxBodyBytes)
	h = limitRate(h, newClientLimiter(cfg.RateLimitPerMin))
	return requireBearer(h, cfg.AuthToken)
}

func requireBearer(next http.Handler, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		provided, ok := bearerToken(r)
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if token == "" || provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			writeJSONError(w, http.StatusForbidden, "invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(authz, "Bearer ") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer ")), true
}

func limitBody(next http.Handler, max int64) http.Handler {
	if max <= 0 {
		max = defaultMaxBodyBytes
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, max)
		}
		next.ServeHTTP(w, r)
	})
}

func limitRate(next http.Handler, limiter *clientLimiter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.allow(clientKey(r)) {
			writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey identifies a caller by token and remote host.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		host = strings.TrimSpace(r.RemoteAddr)
	}
	if host == "" {
		host = "unknown"
	}
	if token, ok := bearerToken(r); ok && token != "" {
		return token + "|" + host
	}
	return host
}

type clientLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients map[string]*rate.Limiter
}

func newClientLimiter(perMin int) *clientLimiter {
	if perMin <= 0 {
		perMin = defaultRequestsPerMin
	}
	return &clientLimiter{
		limit:   rate.Limit(float64(perMin) / 60.0),
		burst:   perMin,
		clients: make(map[string]*rate.Limiter),
	}
}

func (l *clientLimiter) allow(key string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	lim, ok := l.clients[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.clients[key] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
