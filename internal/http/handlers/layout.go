package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/danielgtaylor/huma/v2"

	multiviewhttp "github.com/kikootwo/multiview/internal/http"
	"github.com/kikootwo/multiview/internal/models"
	"github.com/kikootwo/multiview/internal/orchestrator"
)

// LayoutHandler handles the layout-apply and layout-query endpoints.
type LayoutHandler struct {
	svc         *orchestrator.Service
	idleTimeout time.Duration
	logger      *slog.Logger
}

// NewLayoutHandler creates a new layout handler. idleTimeout is only used
// to fill the idle-countdown surfaced elsewhere; layout responses don't
// carry it, but it's threaded through for a consistent Status() call shape.
func NewLayoutHandler(svc *orchestrator.Service, idleTimeout time.Duration, logger *slog.Logger) *LayoutHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LayoutHandler{svc: svc, idleTimeout: idleTimeout, logger: logger}
}

// StatusResponse is the trivial {status: "ok"} body most mutating
// endpoints return on success.
type StatusResponse struct {
	Status string `json:"status"`
}

// SetLayoutBody is the request body for POST /api/layout/set.
type SetLayoutBody struct {
	Layout      models.LayoutKind  `json:"layout"`
	Streams     map[string]string  `json:"streams"`
	AudioSource string             `json:"audio_source"`
	CustomSlots []models.CustomSlot `json:"custom_slots,omitempty"`
}

// SetLayoutInput wraps SetLayoutBody for huma registration.
type SetLayoutInput struct {
	Body SetLayoutBody
}

// StatusOutput wraps StatusResponse for huma registration.
type StatusOutput struct {
	Body StatusResponse
}

// CurrentLayoutInput is the (empty) input for GET /api/layout/current.
type CurrentLayoutInput struct{}

// CurrentLayoutOutput wraps the last-applied layout configuration.
type CurrentLayoutOutput struct {
	Body models.LayoutConfig
}

// SwapAudioBody is the request body for POST /api/layout/swap-audio.
type SwapAudioBody struct {
	AudioSource string `json:"audio_source"`
}

// SwapAudioInput wraps SwapAudioBody for huma registration.
type SwapAudioInput struct {
	Body SwapAudioBody
}

// Register registers the layout routes with the API.
func (h *LayoutHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "setLayout",
		Method:      "POST",
		Path:        "/api/layout/set",
		Summary:     "Apply a layout",
		Description: "Starts or optimistically replaces the running composition with the given layout.",
		Tags:        []string{"Layout"},
	}, h.SetLayout)

	huma.Register(api, huma.Operation{
		OperationID: "getCurrentLayout",
		Method:      "GET",
		Path:        "/api/layout/current",
		Summary:     "Get the current layout",
		Description: "Returns the last-applied layout configuration, live or retained from before an idle stop.",
		Tags:        []string{"Layout"},
	}, h.GetCurrentLayout)

	huma.Register(api, huma.Operation{
		OperationID: "swapAudio",
		Method:      "POST",
		Path:        "/api/layout/swap-audio",
		Summary:     "Swap the audio source",
		Description: "Equivalent to a layout-set that only changes audio_source.",
		Tags:        []string{"Layout"},
	}, h.SwapAudio)
}

// SetLayout applies a new layout via the orchestrator.
func (h *LayoutHandler) SetLayout(ctx context.Context, input *SetLayoutInput) (*StatusOutput, error) {
	req := orchestrator.ApplyLayoutRequest{
		Kind:        input.Body.Layout,
		Streams:     input.Body.Streams,
		AudioSlot:   input.Body.AudioSource,
		CustomSlots: input.Body.CustomSlots,
	}
	if _, err := h.svc.ApplyLayout(ctx, req); err != nil {
		h.logger.Warn("layout apply failed", slog.Any("error", err))
		return nil, multiviewhttp.APIError(err)
	}
	return &StatusOutput{Body: StatusResponse{Status: "ok"}}, nil
}

// GetCurrentLayout returns the last-applied layout, or a not-found error
// when nothing has ever been applied.
func (h *LayoutHandler) GetCurrentLayout(ctx context.Context, input *CurrentLayoutInput) (*CurrentLayoutOutput, error) {
	st := h.svc.Status(h.idleTimeout)
	layout := st.CurrentLayout
	if layout == nil {
		layout = st.LastGoodLayout
	}
	if layout == nil {
		return nil, huma.Error404NotFound("no layout has been applied yet")
	}
	return &CurrentLayoutOutput{Body: *layout}, nil
}

// SwapAudio re-applies the current layout with a new audio_source.
func (h *LayoutHandler) SwapAudio(ctx context.Context, input *SwapAudioInput) (*StatusOutput, error) {
	if _, err := h.svc.SwapAudio(ctx, input.Body.AudioSource); err != nil {
		h.logger.Warn("audio swap failed", slog.Any("error", err))
		return nil, multiviewhttp.APIError(err)
	}
	return &StatusOutput{Body: StatusResponse{Status: "ok"}}, nil
}
