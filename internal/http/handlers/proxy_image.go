package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"github.com/kikootwo/multiview/internal/apperr"
	"github.com/kikootwo/multiview/pkg/httpclient"
)

// ProxyImageHandler is a byte-for-byte pass-through image fetcher for
// channel logos that live behind CORS or mixed-content restrictions. It is
// a raw Chi handler rather than a huma operation because the response's
// Content-Type is only known once the upstream reply arrives, and the body
// is relayed unread rather than decoded into a typed schema.
type ProxyImageHandler struct {
	client *httpclient.Client
	logger *slog.Logger
}

// NewProxyImageHandler creates a new proxy-image handler.
func NewProxyImageHandler(client *httpclient.Client, logger *slog.Logger) *ProxyImageHandler {
	if client == nil {
		client = httpclient.DefaultFactory.CreateClientForService("proxy_image")
		httpclient.DefaultRegistry.Register("proxy_image", client)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProxyImageHandler{client: client, logger: logger}
}

type proxyImageDocsInput struct {
	URL string `query:"url" doc:"Absolute URL of the image to fetch."`
}

// Register registers a documentation-only operation for /api/proxy-image;
// the real route is wired by RegisterChiRoutes.
func (h *ProxyImageHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:      "proxyImage",
		Method:           "GET",
		Path:             "/api/proxy-image",
		Summary:          "Proxy an image",
		Description:      "Fetches url and relays the response body with its original Content-Type. Served by a raw handler; this entry exists for documentation only.",
		Tags:             []string{"Channels"},
		SkipValidateBody: true,
	}, h.docsHandler)
}

func (h *ProxyImageHandler) docsHandler(ctx context.Context, input *proxyImageDocsInput) (*huma.StreamResponse, error) {
	return nil, huma.Error500InternalServerError("this endpoint is handled by a raw Chi handler")
}

// RegisterChiRoutes registers the real route as a raw Chi handler.
func (h *ProxyImageHandler) RegisterChiRoutes(router chi.Router) {
	router.Get("/api/proxy-image", h.serveProxyImage)
}

func (h *ProxyImageHandler) serveProxyImage(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if raw == "" {
		writeJSONError(w, http.StatusBadRequest, apperr.New(apperr.BadLayout, "url query parameter is required"))
		return
	}
	parsed, err := url.Parse(raw)
	if err != nil || !parsed.IsAbs() || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		writeJSONError(w, http.StatusBadRequest, apperr.Newf(apperr.BadLayout, "url must be an absolute http(s) URL, got %q", raw))
		return
	}

	resp, err := h.client.Get(r.Context(), raw)
	if err != nil {
		h.logger.Warn("proxy-image fetch failed", slog.String("url", raw), slog.Any("error", err))
		writeJSONError(w, http.StatusBadGateway, apperr.Wrap(apperr.SourceUnavailable, "failed to fetch image", err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		writeJSONError(w, http.StatusBadGateway, apperr.Newf(apperr.SourceUnavailable, "upstream returned status %d", resp.StatusCode))
		return
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		w.Header().Set("Content-Length", cl)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Debug("proxy-image copy failed", slog.Any("error", err))
	}
}
