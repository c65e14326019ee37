package handlers

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamHandler_ServeStreamFlushesChunksUntilDisconnect(t *testing.T) {
	svc := newTestService(t)
	layoutH := NewLayoutHandler(svc, time.Minute, nil)
	_, err := layoutH.SetLayout(context.Background(), &SetLayoutInput{Body: pipLayoutReq()})
	require.NoError(t, err)
	defer svc.Stop(context.Background())

	h := NewStreamHandler(svc, nil)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", "/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.serveStream(rec, req)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return rec.Body.Len() > 0
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, "video/mp2t", rec.Header().Get("Content-Type"))

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("serveStream did not return after client disconnect")
	}
}

func TestStreamHandler_ServeStreamNoHistoryReturnsJSONError(t *testing.T) {
	svc := newTestService(t)
	h := NewStreamHandler(svc, nil)

	req := httptest.NewRequest("GET", "/stream", nil)
	rec := httptest.NewRecorder()

	h.serveStream(rec, req)

	assert.NotEqual(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_found")
}
