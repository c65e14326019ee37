package middleware

import (
	"net/http"
	"strings"
)

// SkipCompressionForStreaming wraps a compression middleware handler to skip
// compression for long-lived streaming responses: the broadcast endpoint's
// chunked MPEG-TS output and any SSE (text/event-stream) responses. Both
// require unbuffered writes; gzip's internal buffering interferes with
// http.Flusher.
func SkipCompressionForStreaming(compressionHandler func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		compressedHandler := compressionHandler(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			acceptHeader := r.Header.Get("Accept")
			if strings.Contains(acceptHeader, "text/event-stream") || r.URL.Path == "/stream" {
				next.ServeHTTP(w, r)
				return
			}

			compressedHandler.ServeHTTP(w, r)
		})
	}
}
