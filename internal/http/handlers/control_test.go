package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kikootwo/multiview/internal/logcapture"
	"github.com/kikootwo/multiview/pkg/httpclient"
)

func TestControlHandler_GetStatusReflectsMode(t *testing.T) {
	svc := newTestService(t)
	layoutH := NewLayoutHandler(svc, time.Minute, nil)
	logs := logcapture.New(10)
	ctrlH := NewControlHandler(svc, time.Minute, "auto", "/stream", logs, nil)

	out, err := ctrlH.GetStatus(context.Background(), &StatusInput{})
	require.NoError(t, err)
	assert.Equal(t, "idle", out.Body.Mode)
	assert.Equal(t, "software", out.Body.Encoder.Name)
	assert.Equal(t, "software", out.Body.Encoder.Type)
	assert.Equal(t, "auto", out.Body.Encoder.Preference)
	assert.Equal(t, "/stream", out.Body.StreamURL)
	assert.Nil(t, out.Body.RecentLogs)

	_, err = layoutH.SetLayout(context.Background(), &SetLayoutInput{Body: pipLayoutReq()})
	require.NoError(t, err)

	out, err = ctrlH.GetStatus(context.Background(), &StatusInput{})
	require.NoError(t, err)
	assert.Equal(t, "live", out.Body.Mode)

	svc.Stop(context.Background())
}

func TestControlHandler_GetStatusIncludesLogsWhenRequested(t *testing.T) {
	svc := newTestService(t)
	logs := logcapture.New(10)
	logs.Add(logcapture.Entry{Message: "hello"})
	ctrlH := NewControlHandler(svc, time.Minute, "auto", "/stream", logs, nil)

	out, err := ctrlH.GetStatus(context.Background(), &StatusInput{IncludeLogs: true})
	require.NoError(t, err)
	require.Len(t, out.Body.RecentLogs, 1)
	assert.Equal(t, "hello", out.Body.RecentLogs[0].Message)
}

func TestControlHandler_GetStatusReportsUpstreamCircuitBreakers(t *testing.T) {
	httpclient.DefaultRegistry.Register("test_upstream", httpclient.NewWithDefaults())
	defer httpclient.DefaultRegistry.Unregister("test_upstream")

	svc := newTestService(t)
	ctrlH := NewControlHandler(svc, time.Minute, "auto", "/stream", nil, nil)

	out, err := ctrlH.GetStatus(context.Background(), &StatusInput{})
	require.NoError(t, err)

	var found bool
	for _, c := range out.Body.UpstreamClients {
		if c.Name == "test_upstream" {
			found = true
			assert.Equal(t, "closed", c.State)
		}
	}
	assert.True(t, found, "expected test_upstream to be reported in UpstreamClients")
}

func TestControlHandler_StopReturnsIdle(t *testing.T) {
	svc := newTestService(t)
	layoutH := NewLayoutHandler(svc, time.Minute, nil)
	ctrlH := NewControlHandler(svc, time.Minute, "auto", "/stream", nil, nil)

	_, err := layoutH.SetLayout(context.Background(), &SetLayoutInput{Body: pipLayoutReq()})
	require.NoError(t, err)

	out, err := ctrlH.Stop(context.Background(), &StopInput{})
	require.NoError(t, err)
	assert.Equal(t, "idle", out.Body.Status)
}
