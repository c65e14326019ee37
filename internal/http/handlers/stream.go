package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"github.com/kikootwo/multiview/internal/apperr"
	"github.com/kikootwo/multiview/internal/orchestrator"
)

// StreamHandler serves the MPEG-TS broadcast endpoint as a raw Chi handler,
// mirroring the teacher's ServeStreamWithRequest flush-per-chunk loop.
// Huma's typed StreamResponse commits status and headers before the handler
// body runs, which can't express "block until the cold-started child
// produces its first byte, then stream indefinitely" — so this bypasses
// huma entirely and is only documented through it.
type StreamHandler struct {
	svc    *orchestrator.Service
	logger *slog.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(svc *orchestrator.Service, logger *slog.Logger) *StreamHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamHandler{svc: svc, logger: logger}
}

// streamDocsInput is unused by the raw handler; it exists only so the
// OpenAPI document carries a /stream entry.
type streamDocsInput struct{}

// Register registers a documentation-only operation for /stream; the real
// route is wired by RegisterChiRoutes.
func (h *StreamHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:      "stream",
		Method:           "GET",
		Path:             "/stream",
		Summary:          "Broadcast stream",
		Description:      "Attaches as a viewer to the MPEG-TS broadcast, cold-starting the last-good layout if idle. Served by a raw handler; this entry exists for documentation only.",
		Tags:             []string{"Stream"},
		SkipValidateBody: true,
		Responses: map[string]*huma.Response{
			"200": {Description: "video/mp2t, Transfer-Encoding: chunked"},
			"504": {Description: "cold start did not produce output within the startup deadline"},
		},
	}, h.docsHandler)
}

func (h *StreamHandler) docsHandler(ctx context.Context, input *streamDocsInput) (*huma.StreamResponse, error) {
	return nil, huma.Error500InternalServerError("this endpoint is handled by a raw Chi handler")
}

// RegisterChiRoutes registers the real streaming route as a raw Chi handler.
func (h *StreamHandler) RegisterChiRoutes(router chi.Router) {
	router.Get("/stream", h.serveStream)
}

// serveStream attaches the requester as a viewer and relays chunks until
// the client disconnects or the viewer is evicted.
func (h *StreamHandler) serveStream(w http.ResponseWriter, r *http.Request) {
	viewer, err := h.svc.AttachViewer(r.Context())
	if err != nil {
		h.logger.Warn("stream attach failed", slog.Any("error", err))
		writeJSONError(w, apperr.HTTPStatus(err), err)
		return
	}
	defer h.svc.Detach(viewer.ID)

	w.Header().Set("Content-Type", "video/mp2t")
	w.Header().Set("Transfer-Encoding", "chunked")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("response writer does not support flushing")
		return
	}

	for {
		select {
		case chunk, open := <-viewer.Chan():
			if !open {
				return
			}
			if _, err := w.Write(chunk); err != nil {
				h.logger.Debug("stream write failed, detaching viewer", slog.Any("error", err))
				return
			}
			flusher.Flush()
		case <-viewer.Closed():
			return
		case <-r.Context().Done():
			return
		}
	}
}
