package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-gateway/internal/tts/ttsutils"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

const (
	corsAllowMethods  = "GET, POST, OPTIONS"
	corsExposeHeaders = "Content-Length, Content-Range, Accept-Ranges"
	corsMaxAge        = "3600"
	corsWildcard      = "*"

	logFmtRequest = "[%s] %s %s -> %d (%s, %d bytes)"
)

// CORS allows the configured origins. A "*" entry allows any origin.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	originsSet := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		originsSet[origin] = true
	}

	allowAll := originsSet[corsWildcard]

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowAll || originsSet[origin]) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Add("Vary", "Origin")
			}

			w.Header().Set("Access-Control-Allow-Methods", corsAllowMethods)
			w.Header().Set("Access-Control-Expose-Headers", corsExposeHeaders)
			w.Header().Set("Access-Control-Max-Age", corsMaxAge)

			requested := r.Header.Get("Access-Control-Request-Headers")
			if requested != "" {
				w.Header().Set("Access-Control-Allow-Headers", requested)
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Logging writes one line per request to log.
func Logging(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(wrapped, r)

			status := wrapped.Status()
			if status == 0 {
				status = http.StatusOK
			}

			requestID := chimiddleware.GetReqID(r.Context())
			if requestID == "" {
				requestID = "-"
			}

			line := []any{
				requestID, r.Method, r.URL.Path, status,
				ttsutils.FormatDuration(time.Since(start)), wrapped.BytesWritten(),
			}

			if status >= http.StatusInternalServerError {
				log.Error(logFmtRequest, line...)

				return
			}

			log.Info(logFmtRequest, line...)
		})
	}
}

func isSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}

	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
