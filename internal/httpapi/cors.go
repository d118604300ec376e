package httpapi

import (
	"net/http"
	"strings"

	"tapfarm/internal/config"
)

// corsMiddleware answers preflights itself and tags read responses for the
// configured origins. The API is read-only, so only GET is advertised.
func corsMiddleware(cfg config.CorsConfig, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Origin")
		if allowed := matchOrigin(cfg.AllowOrigins, r.Header.Get("Origin")); allowed != "" {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allowed)
			if cfg.AllowCredentials && allowed != "*" {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			if r.Method == http.MethodOptions {
				h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type")
				h.Set("Access-Control-Max-Age", "600")
			}
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// matchOrigin returns the value for Access-Control-Allow-Origin, or "" when
// origin is not allowed.
func matchOrigin(allow []string, origin string) string {
	if origin == "" {
		return ""
	}
	for _, o := range allow {
		switch {
		case o == "*":
			return "*"
		case strings.EqualFold(o, origin):
			return origin
		}
	}
	return ""
}
