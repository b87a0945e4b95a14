package middleware

import (
	"net/http"
	"strings"
)

const (
	corsMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	corsHeaders = "Content-Type, Authorization, " + TraceHeader
)

// CORSMiddleware answers browser cross-origin checks for the web client.
// Entries are exact origins, "*" for any origin, or ".example.com" for every
// subdomain of example.com.
type CORSMiddleware struct {
	exact    map[string]bool
	suffixes []string
	allowAll bool
}

// NewCORSMiddleware creates a CORS middleware for allowedOrigins.
func NewCORSMiddleware(allowedOrigins []string) *CORSMiddleware {
	m := &CORSMiddleware{exact: make(map[string]bool, len(allowedOrigins))}
	for _, origin := range allowedOrigins {
		switch {
		case origin == "*":
			m.allowAll = true
		case strings.HasPrefix(origin, "."):
			m.suffixes = append(m.suffixes, origin)
		default:
			m.exact[origin] = true
		}
	}
	return m
}

// Allows reports whether origin may call the API. Requests without an Origin
// header are not cross-origin and are always allowed.
func (m *CORSMiddleware) Allows(origin string) bool {
	if origin == "" || m.allowAll || m.exact[origin] {
		return true
	}
	for _, suffix := range m.suffixes {
		if strings.HasSuffix(origin, suffix) {
			return true
		}
	}
	return false
}

// CheckOrigin matches the websocket upgrader's hook.
func (m *CORSMiddleware) CheckOrigin(r *http.Request) bool {
	return m.Allows(r.Header.Get("Origin"))
}

// Handler sets the CORS headers for allowed origins and ends preflights.
func (m *CORSMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && m.Allows(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", corsMethods)
			h.Set("Access-Control-Allow-Headers", corsHeaders)
			h.Set("Access-Control-Expose-Headers", TraceHeader)
			h.Set("Access-Control-Max-Age", "3600")
			h.Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
