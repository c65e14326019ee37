package handlers

import (
	"context"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"

	multiviewhttp "github.com/kikootwo/multiview/internal/http"
	"github.com/kikootwo/multiview/internal/logcapture"
	"github.com/kikootwo/multiview/internal/orchestrator"
	"github.com/kikootwo/multiview/pkg/httpclient"
)

// ControlHandler handles the runtime-status and stop endpoints.
type ControlHandler struct {
	svc               *orchestrator.Service
	idleTimeout       time.Duration
	encoderPreference string
	streamURL         string
	logs              *logcapture.Buffer
	logger            *slog.Logger
}

// NewControlHandler creates a new control handler. encoderPreference is the
// configured ENCODER_PREFERENCE value (the probe result itself is read off
// the orchestrator's Status()); streamURL is the path clients fetch /stream
// from, surfaced so a caller doesn't have to hardcode it.
func NewControlHandler(svc *orchestrator.Service, idleTimeout time.Duration, encoderPreference, streamURL string, logs *logcapture.Buffer, logger *slog.Logger) *ControlHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ControlHandler{
		svc:               svc,
		idleTimeout:       idleTimeout,
		encoderPreference: encoderPreference,
		streamURL:         streamURL,
		logs:              logs,
		logger:            logger,
	}
}

// EncoderStatus is the encoder sub-object of /control/status.
type EncoderStatus struct {
	Type       string `json:"type"`
	Name       string `json:"name"`
	Codec      string `json:"codec"`
	Preference string `json:"preference"`
}

// StatusInput is the input for GET /control/status. IncludeLogs opts into
// the ambient log-ring snapshot (not part of the documented default
// response shape) for diagnostics.
type StatusInput struct {
	IncludeLogs bool `query:"include_logs" doc:"Include the most recent captured log entries in the response."`
}

// HostInfo is the host-load sub-object of /control/status, surfaced so an
// operator can tell a slow stream apart from a starved host.
type HostInfo struct {
	CPUCores        int     `json:"cpu_cores"`
	LoadPercent1Min float64 `json:"load_percent_1min"`
	MemoryUsedMB    float64 `json:"memory_used_mb"`
	MemoryTotalMB   float64 `json:"memory_total_mb"`
}

// ControlStatusResponse is the body §6 names for /control/status, plus an
// optional recent_logs diagnostic field and an ambient host-load snapshot.
type ControlStatusResponse struct {
	Mode             string                           `json:"mode"`
	ConnectedClients int                              `json:"connected_clients"`
	TimeUntilIdle    *float64                         `json:"time_until_idle,omitempty"`
	Encoder          EncoderStatus                    `json:"encoder"`
	StreamURL        string                           `json:"stream_url"`
	Host             HostInfo                         `json:"host"`
	UpstreamClients  []httpclient.CircuitBreakerStatus `json:"upstream_clients"`
	RecentLogs       []logcapture.Entry               `json:"recent_logs,omitempty"`
}

// ControlStatusOutput wraps ControlStatusResponse for huma registration.
type ControlStatusOutput struct {
	Body ControlStatusResponse
}

// StopInput is the (empty) input for GET /control/stop.
type StopInput struct{}

// StopResponse is the body §6 names for /control/stop.
type StopResponse struct {
	Status string `json:"status"`
}

// StopOutput wraps StopResponse for huma registration.
type StopOutput struct {
	Body StopResponse
}

// Register registers the control routes with the API.
func (h *ControlHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getStatus",
		Method:      "GET",
		Path:        "/control/status",
		Summary:     "Get runtime status",
		Description: "Returns the current mode, connected viewer count, idle countdown, and encoder profile.",
		Tags:        []string{"Control"},
	}, h.GetStatus)

	huma.Register(api, huma.Operation{
		OperationID: "stop",
		Method:      "GET",
		Path:        "/control/stop",
		Summary:     "Force stop",
		Description: "Forces the running child to stop and disconnects every viewer, retaining the last-good layout.",
		Tags:        []string{"Control"},
	}, h.Stop)
}

// GetStatus returns a point-in-time runtime snapshot.
func (h *ControlHandler) GetStatus(ctx context.Context, input *StatusInput) (*ControlStatusOutput, error) {
	st := h.svc.Status(h.idleTimeout)

	var timeUntilIdle *float64
	if st.TimeUntilIdle != nil {
		seconds := st.TimeUntilIdle.Seconds()
		timeUntilIdle = &seconds
	}

	encType := "software"
	if !strings.EqualFold(st.EncoderProfile.Name, "software") {
		encType = "hardware"
	}

	resp := ControlStatusResponse{
		Mode:             string(st.Mode),
		ConnectedClients: st.ConnectedClients,
		TimeUntilIdle:    timeUntilIdle,
		Encoder: EncoderStatus{
			Type:       encType,
			Name:       st.EncoderProfile.Name,
			Codec:      st.EncoderProfile.Codec,
			Preference: h.encoderPreference,
		},
		StreamURL:       h.streamURL,
		Host:            h.hostInfo(),
		UpstreamClients: httpclient.DefaultRegistry.GetCircuitBreakerStatuses(),
	}
	if input.IncludeLogs && h.logs != nil {
		resp.RecentLogs = h.logs.Recent(200)
	}
	return &ControlStatusOutput{Body: resp}, nil
}

// hostInfo samples host CPU load and memory, best-effort: a failed gopsutil
// read leaves the corresponding fields at zero rather than failing the
// request.
func (h *ControlHandler) hostInfo() HostInfo {
	info := HostInfo{CPUCores: runtime.NumCPU()}

	if avg, err := load.Avg(); err == nil && avg != nil && info.CPUCores > 0 {
		info.LoadPercent1Min = (avg.Load1 / float64(info.CPUCores)) * 100
	}
	if vm, err := mem.VirtualMemory(); err == nil && vm != nil {
		info.MemoryUsedMB = float64(vm.Used) / 1024 / 1024
		info.MemoryTotalMB = float64(vm.Total) / 1024 / 1024
	}
	return info
}

// Stop forces the running child to stop.
func (h *ControlHandler) Stop(ctx context.Context, input *StopInput) (*StopOutput, error) {
	if err := h.svc.Stop(ctx); err != nil {
		h.logger.Warn("forced stop failed", slog.Any("error", err))
		return nil, multiviewhttp.APIError(err)
	}
	return &StopOutput{Body: StopResponse{Status: "idle"}}, nil
}
