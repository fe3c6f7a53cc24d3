package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSPolicy defines the CORS headers to emit for matching origins.
// Empty method and header lists fall back to the service defaults.
type CORSPolicy struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

var (
	defaultCORSMethods = []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}
	defaultCORSHeaders = []string{"Content-Type", RequestIDHeader}
)

// WithCORS answers preflights and decorates responses for allowed origins.
// With no allowed origins it is a no-op.
func WithCORS(cfg CORSPolicy) Middleware {
	origins := normalizeList(cfg.AllowedOrigins)
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	methods := normalizeList(cfg.AllowedMethods)
	if len(methods) == 0 {
		methods = defaultCORSMethods
	}
	headers := normalizeList(cfg.AllowedHeaders)
	if len(headers) == 0 {
		headers = defaultCORSHeaders
	}
	allowMethods := strings.Join(methods, ", ")
	allowHeaders := strings.Join(headers, ", ")
	maxAge := int(cfg.MaxAge.Seconds())

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowOrigin, ok := matchOrigin(origin, origins, cfg.AllowCredentials)
			if origin == "" || !ok {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allowOrigin)
			h.Set("Access-Control-Allow-Methods", allowMethods)
			h.Set("Access-Control-Allow-Headers", allowHeaders)
			h.Set("Access-Control-Expose-Headers", RequestIDHeader)
			if cfg.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			if maxAge > 0 {
				h.Set("Access-Control-Max-Age", strconv.Itoa(maxAge))
			}
			h.Add("Vary", "Origin")

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func normalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// matchOrigin echoes the origin for a wildcard when credentials are allowed,
// since browsers reject "*" together with credentials.
func matchOrigin(origin string, allowed []string, allowCredentials bool) (string, bool) {
	for _, candidate := range allowed {
		switch {
		case candidate == "*" && allowCredentials:
			return origin, true
		case candidate == "*":
			return "*", true
		case strings.EqualFold(candidate, origin):
			return origin, true
		}
	}
	return "", false
}
