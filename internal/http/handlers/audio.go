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

// AudioHandler handles the per-slot volume endpoints.
type AudioHandler struct {
	svc         *orchestrator.Service
	idleTimeout time.Duration
	logger      *slog.Logger
}

// NewAudioHandler creates a new audio handler.
func NewAudioHandler(svc *orchestrator.Service, idleTimeout time.Duration, logger *slog.Logger) *AudioHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AudioHandler{svc: svc, idleTimeout: idleTimeout, logger: logger}
}

// SetVolumeBody is the request body for POST /api/audio/volume.
type SetVolumeBody struct {
	SlotID string  `json:"slot_id"`
	Volume float64 `json:"volume"`
}

// SetVolumeInput wraps SetVolumeBody for huma registration.
type SetVolumeInput struct {
	Body SetVolumeBody
}

// SetVolumeResponse is the response body for POST /api/audio/volume.
type SetVolumeResponse struct {
	Status string  `json:"status"`
	SlotID string  `json:"slot_id"`
	Volume float64 `json:"volume"`
}

// SetVolumeOutput wraps SetVolumeResponse for huma registration.
type SetVolumeOutput struct {
	Body SetVolumeResponse
}

// VolumesInput is the (empty) input for GET /api/audio/volumes.
type VolumesInput struct{}

// VolumesResponse is the response body for GET /api/audio/volumes.
type VolumesResponse struct {
	Volumes map[string]float64 `json:"volumes"`
	Layout  models.LayoutKind  `json:"layout"`
	Streams map[string]string  `json:"streams"`
}

// VolumesOutput wraps VolumesResponse for huma registration.
type VolumesOutput struct {
	Body VolumesResponse
}

// Register registers the audio routes with the API.
func (h *AudioHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "setVolume",
		Method:      "POST",
		Path:        "/api/audio/volume",
		Summary:     "Set a slot's volume",
		Description: "Clamps volume to [0,1] and optimistically replaces the running child with the recompiled filter graph.",
		Tags:        []string{"Audio"},
	}, h.SetVolume)

	huma.Register(api, huma.Operation{
		OperationID: "getVolumes",
		Method:      "GET",
		Path:        "/api/audio/volumes",
		Summary:     "Get per-slot volumes",
		Description: "Returns the current layout's per-slot volume map alongside its kind and stream assignments.",
		Tags:        []string{"Audio"},
	}, h.GetVolumes)
}

// SetVolume adjusts a single slot's volume on the live layout.
func (h *AudioHandler) SetVolume(ctx context.Context, input *SetVolumeInput) (*SetVolumeOutput, error) {
	layout, err := h.svc.SetVolume(ctx, input.Body.SlotID, input.Body.Volume)
	if err != nil {
		h.logger.Warn("volume set failed", slog.Any("error", err))
		return nil, multiviewhttp.APIError(err)
	}
	return &SetVolumeOutput{Body: SetVolumeResponse{
		Status: "ok",
		SlotID: input.Body.SlotID,
		Volume: layout.PerSlotVolume[input.Body.SlotID],
	}}, nil
}

// GetVolumes returns the current (or last-good) layout's volume map.
func (h *AudioHandler) GetVolumes(ctx context.Context, input *VolumesInput) (*VolumesOutput, error) {
	st := h.svc.Status(h.idleTimeout)
	layout := st.CurrentLayout
	if layout == nil {
		layout = st.LastGoodLayout
	}
	if layout == nil {
		return nil, huma.Error404NotFound("no layout has been applied yet")
	}
	return &VolumesOutput{Body: VolumesResponse{
		Volumes: layout.PerSlotVolume,
		Layout:  layout.Kind,
		Streams: layout.SlotToChannel,
	}}, nil
}
