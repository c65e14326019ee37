package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kikootwo/multiview/internal/apperr"
	"github.com/kikootwo/multiview/internal/broadcast"
	"github.com/kikootwo/multiview/internal/catalog"
	"github.com/kikootwo/multiview/internal/compiler"
	"github.com/kikootwo/multiview/internal/encoder"
	"github.com/kikootwo/multiview/internal/models"
	"github.com/kikootwo/multiview/internal/supervisor"
)

const samplePlaylist = `#EXTM3U
#EXTINF:-1 tvg-id="a" ,Channel A
http://example.com/a.m3u8
#EXTINF:-1 tvg-id="b" ,Channel B
http://example.com/b.m3u8
`

// newFakeEncoderScript writes a tiny shell script that ignores whatever
// ffmpeg-style argument vector it's invoked with and just produces a
// continuous byte stream, standing in for the real encoder binary the way
// supervisor_test.go stands in with /bin/sh.
func newFakeEncoderScript(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake_encoder.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexec yes x\n"), 0o755))
	return path
}

func newTestService(t *testing.T) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	playlist := filepath.Join(dir, "playlist.m3u")
	require.NoError(t, os.WriteFile(playlist, []byte(samplePlaylist), 0o644))

	cat := catalog.New(catalog.NewLoader(playlist, "MultiView", 0, nil), nil)
	require.NoError(t, cat.Load(context.Background()))

	sup := supervisor.New(newFakeEncoderScript(t), 200*time.Millisecond, nil)
	bcast := broadcast.New(nil)
	svc := New(cat, sup, bcast, encoder.Software(), compiler.NetworkTuning{}, 2*time.Second, nil)
	return svc, playlist
}

func pipLayoutRequest() ApplyLayoutRequest {
	return ApplyLayoutRequest{
		Kind:      models.LayoutPIP,
		Streams:   map[string]string{"main": "a", "inset": "b"},
		AudioSlot: "main",
	}
}

func recvWithin(t *testing.T, v *broadcast.Viewer, timeout time.Duration) []byte {
	t.Helper()
	select {
	case chunk := <-v.Chan():
		return chunk
	case <-v.Closed():
		t.Fatal("viewer was evicted before receiving a chunk")
	case <-time.After(timeout):
		t.Fatal("timed out waiting for a chunk")
	}
	return nil
}

func TestOrchestrator_DetachRemovesViewer(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.ApplyLayout(context.Background(), pipLayoutRequest())
	require.NoError(t, err)

	v, err := svc.AttachViewer(context.Background())
	require.NoError(t, err)

	svc.Detach(v.ID)
	select {
	case <-v.Closed():
	case <-time.After(time.Second):
		t.Fatal("viewer was not evicted after Detach")
	}

	svc.Stop(context.Background())
}

func TestOrchestrator_ChannelsReflectsCatalog(t *testing.T) {
	svc, _ := newTestService(t)
	channels := svc.Channels()
	require.Len(t, channels, 2)
	assert.ElementsMatch(t, []string{"a", "b"}, []string{channels[0].ID, channels[1].ID})
}

func TestOrchestrator_ApplyLayoutStartsChildAndGoesLive(t *testing.T) {
	svc, _ := newTestService(t)

	layout, err := svc.ApplyLayout(context.Background(), pipLayoutRequest())
	require.NoError(t, err)
	assert.Equal(t, models.LayoutPIP, layout.Kind)
	assert.Equal(t, 1.0, layout.PerSlotVolume["main"])
	assert.Equal(t, 0.0, layout.PerSlotVolume["inset"])

	st := svc.Status(time.Minute)
	assert.Equal(t, models.ModeLive, st.Mode)
	require.NotNil(t, st.CurrentLayout)
	require.NotNil(t, st.LastGoodLayout)

	svc.Stop(context.Background())
}

func TestOrchestrator_ApplyLayoutUnknownChannelFailsWithoutMutatingState(t *testing.T) {
	svc, _ := newTestService(t)

	req := pipLayoutRequest()
	req.Streams["inset"] = "does-not-exist"
	_, err := svc.ApplyLayout(context.Background(), req)
	require.Error(t, err)

	// An unknown channel id referenced by a layout-apply is a bad request,
	// not a missing-resource lookup: it must surface as BadLayout (HTTP
	// 400), not the catalog's own NotFound (HTTP 404).
	assert.Equal(t, apperr.BadLayout, apperr.CodeOf(err))
	assert.Equal(t, models.ModeIdle, svc.Status(time.Minute).Mode)
}

func TestOrchestrator_AttachViewerWhileLiveIsImmediate(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.ApplyLayout(context.Background(), pipLayoutRequest())
	require.NoError(t, err)

	v, err := svc.AttachViewer(context.Background())
	require.NoError(t, err)
	chunk := recvWithin(t, v, time.Second)
	assert.NotEmpty(t, chunk)

	svc.Stop(context.Background())
}

func TestOrchestrator_AttachViewerWithNoHistoryFails(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.AttachViewer(context.Background())
	require.Error(t, err)
}

// Property 7 (§8): a viewer attaching after an idle period cold-starts the
// last-good layout and still receives output within the deadline.
func TestOrchestrator_AttachViewerColdStartsFromLastGoodLayout(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.ApplyLayout(context.Background(), pipLayoutRequest())
	require.NoError(t, err)
	require.NoError(t, svc.Stop(context.Background()))
	require.Equal(t, models.ModeIdle, svc.Status(time.Minute).Mode)

	v, err := svc.AttachViewer(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, recvWithin(t, v, 2*time.Second))
	assert.Equal(t, models.ModeLive, svc.Status(time.Minute).Mode)

	svc.Stop(context.Background())
}

func TestOrchestrator_SetVolumeRejectsUnknownSlot(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.ApplyLayout(context.Background(), pipLayoutRequest())
	require.NoError(t, err)

	_, err = svc.SetVolume(context.Background(), "nonexistent", 0.5)
	require.Error(t, err)

	svc.Stop(context.Background())
}

func TestOrchestrator_SetVolumeRequiresLiveLayout(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.SetVolume(context.Background(), "main", 0.5)
	require.Error(t, err)
}

func TestOrchestrator_SwapAudioChangesAudioSlot(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.ApplyLayout(context.Background(), pipLayoutRequest())
	require.NoError(t, err)

	layout, err := svc.SwapAudio(context.Background(), "inset")
	require.NoError(t, err)
	assert.Equal(t, "inset", layout.AudioSlot)
	assert.Equal(t, 1.0, layout.PerSlotVolume["inset"])
	assert.Equal(t, 0.0, layout.PerSlotVolume["main"])

	svc.Stop(context.Background())
}

// Property 8 (§8): an optimistic replace never interrupts a viewer already
// attached to the broadcast.
func TestOrchestrator_OptimisticReplaceDoesNotDisruptAttachedViewer(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.ApplyLayout(context.Background(), pipLayoutRequest())
	require.NoError(t, err)

	v, err := svc.AttachViewer(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, recvWithin(t, v, time.Second))

	_, err = svc.SwapAudio(context.Background(), "inset")
	require.NoError(t, err)

	assert.NotEmpty(t, recvWithin(t, v, time.Second))
	select {
	case <-v.Closed():
		t.Fatal("viewer must survive an optimistic replace")
	default:
	}

	svc.Stop(context.Background())
}

// Property 6 (§8): idle safety - the watchdog Controller surface only
// reports idle-ready once live with zero viewers past the timeout.
func TestOrchestrator_IdleCheckRequiresLiveAndNoViewers(t *testing.T) {
	svc, _ := newTestService(t)
	assert.False(t, svc.IdleCheck(time.Now(), time.Millisecond))

	_, err := svc.ApplyLayout(context.Background(), pipLayoutRequest())
	require.NoError(t, err)

	v, err := svc.AttachViewer(context.Background())
	require.NoError(t, err)
	assert.False(t, svc.IdleCheck(time.Now().Add(time.Hour), time.Millisecond), "must not be idle while a viewer is attached")

	svc.bcast.Detach(v.ID)
	assert.True(t, svc.IdleCheck(time.Now().Add(time.Hour), time.Millisecond))

	svc.Stop(context.Background())
}

func TestOrchestrator_StopForIdleReturnsToIdleAndRetainsLastGoodLayout(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.ApplyLayout(context.Background(), pipLayoutRequest())
	require.NoError(t, err)

	svc.StopForIdle(context.Background())

	st := svc.Status(time.Minute)
	assert.Equal(t, models.ModeIdle, st.Mode)
	assert.Nil(t, st.CurrentLayout)
	assert.NotNil(t, st.LastGoodLayout)
}

func TestOrchestrator_RecycleForSizeKeepsViewerAttached(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.ApplyLayout(context.Background(), pipLayoutRequest())
	require.NoError(t, err)

	v, err := svc.AttachViewer(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, recvWithin(t, v, time.Second))

	svc.RecycleForSize(context.Background())

	assert.NotEmpty(t, recvWithin(t, v, time.Second))
	assert.Equal(t, models.ModeLive, svc.Status(time.Minute).Mode)

	svc.Stop(context.Background())
}

func TestOrchestrator_SizeExceededDisabledWhenBoundIsZero(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.ApplyLayout(context.Background(), pipLayoutRequest())
	require.NoError(t, err)
	assert.False(t, svc.SizeExceeded(0))
	svc.Stop(context.Background())
}

func TestOrchestrator_SizeExceededTrueOnceBoundCrossed(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.ApplyLayout(context.Background(), pipLayoutRequest())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return svc.SizeExceeded(1)
	}, 2*time.Second, 10*time.Millisecond)

	svc.Stop(context.Background())
}
