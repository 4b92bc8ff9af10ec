package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// maxInboundRequestIDLen caps client-supplied ids so log lines stay bounded;
// anything longer (or absent) is replaced with a fresh uuid.
const maxInboundRequestIDLen = 64

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestID tags every request with an id, echoing a well-formed inbound
// X-Request-ID so traces can span the dashboard and this service.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get(requestIDHeader)
		if rid == "" || len(rid) > maxInboundRequestIDLen {
			rid = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey, rid)
		w.Header().Set(requestIDHeader, rid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}
