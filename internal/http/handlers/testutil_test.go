package handlers

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kikootwo/multiview/internal/broadcast"
	"github.com/kikootwo/multiview/internal/catalog"
	"github.com/kikootwo/multiview/internal/compiler"
	"github.com/kikootwo/multiview/internal/encoder"
	"github.com/kikootwo/multiview/internal/orchestrator"
	"github.com/kikootwo/multiview/internal/supervisor"
)

const samplePlaylist = `#EXTM3U
#EXTINF:-1 tvg-id="a" ,Channel A
http://example.com/a.m3u8
#EXTINF:-1 tvg-id="b" ,Channel B
http://example.com/b.m3u8
`

func newFakeEncoderScript(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake_encoder.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexec yes x\n"), 0o755))
	return path
}

func newTestService(t *testing.T) *orchestrator.Service {
	t.Helper()
	dir := t.TempDir()
	playlist := filepath.Join(dir, "playlist.m3u")
	require.NoError(t, os.WriteFile(playlist, []byte(samplePlaylist), 0o644))

	cat := catalog.New(catalog.NewLoader(playlist, "MultiView", 0, nil), nil)
	require.NoError(t, cat.Load(context.Background()))

	sup := supervisor.New(newFakeEncoderScript(t), 200*time.Millisecond, nil)
	bcast := broadcast.New(nil)
	return orchestrator.New(cat, sup, bcast, encoder.Software(), compiler.NetworkTuning{}, 2*time.Second, nil)
}

func pipLayoutReq() SetLayoutBody {
	return SetLayoutBody{
		Layout:      "pip",
		Streams:     map[string]string{"main": "a", "inset": "b"},
		AudioSource: "main",
	}
}
