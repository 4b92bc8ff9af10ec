package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requestIDFor(t *testing.T, inbound string) (fromCtx, echoed string) {
	t.Helper()
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = RequestIDFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if inbound != "" {
		req.Header.Set(requestIDHeader, inbound)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return fromCtx, rr.Header().Get(requestIDHeader)
}

func TestRequestIDGeneratedWhenAbsent(t *testing.T) {
	fromCtx, echoed := requestIDFor(t, "")
	require.NotEmpty(t, fromCtx)
	assert.Equal(t, fromCtx, echoed, "generated id is echoed to the client")
	_, err := uuid.Parse(fromCtx)
	assert.NoError(t, err)
}

func TestRequestIDEchoesInboundID(t *testing.T) {
	fromCtx, echoed := requestIDFor(t, "dashboard-trace-42")
	assert.Equal(t, "dashboard-trace-42", fromCtx)
	assert.Equal(t, "dashboard-trace-42", echoed)
}

func TestRequestIDReplacesOversizedInboundID(t *testing.T) {
	oversized := strings.Repeat("x", maxInboundRequestIDLen+1)
	fromCtx, echoed := requestIDFor(t, oversized)
	assert.NotEqual(t, oversized, fromCtx)
	assert.Equal(t, fromCtx, echoed)
}

func TestRequestIDFromContextMissing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, RequestIDFromContext(req.Context()))
}
