// Package handlers implements the §6 HTTP API surface as a thin
// translation layer in front of internal/orchestrator: decode request,
// call the orchestrator, map the result or error to a response.
package handlers

import (
	"context"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	multiviewhttp "github.com/kikootwo/multiview/internal/http"
	"github.com/kikootwo/multiview/internal/models"
	"github.com/kikootwo/multiview/internal/orchestrator"
)

// ChannelsHandler handles the catalog-facing endpoints.
type ChannelsHandler struct {
	svc    *orchestrator.Service
	logger *slog.Logger
}

// NewChannelsHandler creates a new channels handler.
func NewChannelsHandler(svc *orchestrator.Service, logger *slog.Logger) *ChannelsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChannelsHandler{svc: svc, logger: logger}
}

// ChannelsInput is the input for both channel endpoints; neither takes a
// body or query parameters.
type ChannelsInput struct{}

// ChannelsResponse is the body shape §6 names for /api/channels and
// /api/channels/refresh.
type ChannelsResponse struct {
	Channels []models.Channel `json:"channels"`
	Count    int              `json:"count"`
}

// ChannelsOutput wraps ChannelsResponse for huma registration.
type ChannelsOutput struct {
	Body ChannelsResponse
}

// Register registers the channel routes with the API.
func (h *ChannelsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listChannels",
		Method:      "GET",
		Path:        "/api/channels",
		Summary:     "List channels",
		Description: "Returns a snapshot of the current channel catalog.",
		Tags:        []string{"Channels"},
	}, h.ListChannels)

	huma.Register(api, huma.Operation{
		OperationID: "refreshChannels",
		Method:      "POST",
		Path:        "/api/channels/refresh",
		Summary:     "Refresh channel catalog",
		Description: "Reloads the catalog from the configured M3U source and returns the refreshed snapshot.",
		Tags:        []string{"Channels"},
	}, h.RefreshChannels)
}

// ListChannels returns the current catalog snapshot.
func (h *ChannelsHandler) ListChannels(ctx context.Context, input *ChannelsInput) (*ChannelsOutput, error) {
	channels := h.svc.Channels()
	return &ChannelsOutput{Body: ChannelsResponse{Channels: channels, Count: len(channels)}}, nil
}

// RefreshChannels reloads the catalog and returns the refreshed snapshot.
func (h *ChannelsHandler) RefreshChannels(ctx context.Context, input *ChannelsInput) (*ChannelsOutput, error) {
	if err := h.svc.RefreshCatalog(ctx); err != nil {
		h.logger.Warn("catalog refresh failed", slog.Any("error", err))
		return nil, multiviewhttp.APIError(err)
	}
	channels := h.svc.Channels()
	return &ChannelsOutput{Body: ChannelsResponse{Channels: channels, Count: len(channels)}}, nil
}
