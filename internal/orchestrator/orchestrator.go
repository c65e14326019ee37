// Package orchestrator owns the single runtime-state record (§3) and
// coordinates the catalog, encoder profile, filter-graph compiler,
// subprocess supervisor, and broadcast fan-out behind it. It is the only
// package that ever mutates mode, current_layout, or last_good_layout, and
// it is the concrete Controller the watchdog drives (§4.7, §5).
package orchestrator

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kikootwo/multiview/internal/apperr"
	"github.com/kikootwo/multiview/internal/broadcast"
	"github.com/kikootwo/multiview/internal/catalog"
	"github.com/kikootwo/multiview/internal/compiler"
	"github.com/kikootwo/multiview/internal/encoder"
	"github.com/kikootwo/multiview/internal/models"
	"github.com/kikootwo/multiview/internal/supervisor"
)

// pollInterval is how often AttachViewer's cold-start path checks for the
// first byte of output, mirroring the watchdog's ticker shape at a much
// tighter cadence (§4.7's cold-start contract).
const pollInterval = 20 * time.Millisecond

// ApplyLayoutRequest is the validated shape of a layout-set API call
// (§6): which channel occupies which slot, which slot carries audio, and
// the custom slot geometry when Kind is LayoutCustom.
type ApplyLayoutRequest struct {
	Kind        models.LayoutKind
	Streams     map[string]string // slot name -> channel id
	AudioSlot   string
	CustomSlots []models.CustomSlot
}

// Status is a point-in-time snapshot for /control/status and
// /api/layout/current.
type Status struct {
	Mode             models.Mode
	ConnectedClients int
	TimeUntilIdle    *time.Duration
	EncoderProfile   models.EncoderProfile
	CurrentLayout    *models.LayoutConfig
	LastGoodLayout   *models.LayoutConfig
}

// Service is the single owned record of RuntimeState (§3, §9's "global
// mutable state -> single owned record" note) plus the collaborators it
// coordinates. Its own mutex is the supervisor lock of §5: it guards mode,
// current_layout, and last_good_layout. The catalog lock and viewers lock
// live inside catalog.Catalog and broadcast.Broadcaster respectively —
// composed rather than re-implemented here.
type Service struct {
	cat     *catalog.Catalog
	sup     *supervisor.Supervisor
	bcast   *broadcast.Broadcaster
	profile encoder.Profile
	network compiler.NetworkTuning

	coldStartDeadline time.Duration
	logger            *slog.Logger

	mu             sync.Mutex
	mode           models.Mode
	currentLayout  *models.LayoutConfig
	lastGoodLayout *models.LayoutConfig
	lastActivity   time.Time
}

// New constructs a Service and wires itself as the supervisor's self-heal
// observer. coldStartDeadline is the hard cap on cold start (default 30s
// per §5).
func New(
	cat *catalog.Catalog,
	sup *supervisor.Supervisor,
	bcast *broadcast.Broadcaster,
	profile encoder.Profile,
	network compiler.NetworkTuning,
	coldStartDeadline time.Duration,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if coldStartDeadline <= 0 {
		coldStartDeadline = 30 * time.Second
	}
	s := &Service{
		cat:               cat,
		sup:               sup,
		bcast:             bcast,
		profile:           profile,
		network:           network,
		coldStartDeadline: coldStartDeadline,
		logger:            logger,
		mode:              models.ModeIdle,
	}
	sup.OnGiveUp(s.handleGiveUp)
	sup.OnHeal(s.handleHeal)
	return s
}

// ApplyLayout validates req against the catalog, compiles it, and starts
// or optimistically replaces the running child (§4.7's layout-apply rows).
// Channel-resolution and compile failures are returned without disturbing
// any running child (§4.8).
func (s *Service) ApplyLayout(ctx context.Context, req ApplyLayoutRequest) (*models.LayoutConfig, error) {
	layout, err := s.newLayoutConfig(req)
	if err != nil {
		return nil, err
	}
	args, err := s.compileArgsFor(&layout)
	if err != nil {
		return nil, err
	}
	if err := s.startChild(ctx, &layout, args); err != nil {
		return nil, err
	}
	return &layout, nil
}

// SwapAudio re-applies the current (or, if idle, last-good) layout with a
// new audio_source, per §6's "equivalent to a layout-set that only changes
// audio_source". The default single-source volume assignment (chosen slot
// at 1.0, every other slot at 0.0) is re-derived rather than carried over,
// so swapping audio always yields one clearly audible source.
func (s *Service) SwapAudio(ctx context.Context, newAudioSlot string) (*models.LayoutConfig, error) {
	base := s.baseLayout()
	if base == nil {
		return nil, apperr.New(apperr.NotFound, "no layout has been applied yet")
	}
	return s.ApplyLayout(ctx, ApplyLayoutRequest{
		Kind:        base.Kind,
		Streams:     base.SlotToChannel,
		AudioSlot:   newAudioSlot,
		CustomSlots: base.CustomSlots,
	})
}

// SetVolume adjusts a single slot's volume on the currently live layout and
// optimistically replaces the child with the recompiled filter graph
// (§4.7's volume-change row). It requires a live layout; there is nothing
// to recompile while idle.
func (s *Service) SetVolume(ctx context.Context, slot string, volume float64) (*models.LayoutConfig, error) {
	s.mu.Lock()
	current := s.currentLayout
	s.mu.Unlock()
	if current == nil {
		return nil, apperr.New(apperr.NotFound, "no active layout to adjust")
	}
	if _, ok := current.SlotToChannel[slot]; !ok {
		return nil, apperr.Newf(apperr.BadLayout, "unknown slot %q", slot)
	}

	next := cloneLayout(current)
	next.PerSlotVolume[slot] = models.ClampVolume(volume)

	args, err := s.compileArgsFor(&next)
	if err != nil {
		return nil, err
	}
	if err := s.startChild(ctx, &next, args); err != nil {
		return nil, err
	}
	return &next, nil
}

// AttachViewer registers a new viewer, cold-starting the last-good layout
// first if the service is idle (§4.7's viewer-attach rows). It blocks until
// either the child is live with at least one byte produced, or the
// cold-start deadline elapses.
func (s *Service) AttachViewer(ctx context.Context) (*broadcast.Viewer, error) {
	s.mu.Lock()
	mode := s.mode
	last := s.lastGoodLayout
	s.mu.Unlock()

	switch mode {
	case models.ModeStarting:
		return nil, apperr.New(apperr.Busy, "a layout transition is already in flight")
	case models.ModeLive:
		s.touchActivity()
		return s.bcast.Attach(time.Now().UnixNano()), nil
	case models.ModeIdle:
		if last == nil {
			return nil, apperr.New(apperr.NotFound, "no content has ever been started")
		}
		args, err := s.compileArgsFor(last)
		if err != nil {
			return nil, err
		}
		if err := s.startChild(ctx, last, args); err != nil {
			return nil, err
		}
		if err := s.waitForFirstBytes(ctx); err != nil {
			return nil, err
		}
		return s.bcast.Attach(time.Now().UnixNano()), nil
	default:
		return nil, apperr.Newf(apperr.Internal, "unknown runtime mode %q", mode)
	}
}

// Stop forces the running child to stop and disconnects every viewer,
// retaining last_good_layout (§4.4, §4.7's explicit-stop row). A no-op
// while already idle.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	idle := s.mode == models.ModeIdle
	s.mu.Unlock()
	if idle {
		return nil
	}

	s.sup.Stop()
	s.bcast.StopReading()
	s.bcast.ClearViewers()

	s.mu.Lock()
	s.mode = models.ModeIdle
	s.currentLayout = nil
	s.mu.Unlock()
	return nil
}

// Channels returns a snapshot of the current catalog.
func (s *Service) Channels() []models.Channel {
	return s.cat.List()
}

// Detach removes a viewer from the broadcast, for the /stream handler's
// disconnect cleanup. A no-op if the viewer is already gone.
func (s *Service) Detach(id uuid.UUID) {
	s.bcast.Detach(id)
}

// RefreshCatalog reloads the channel list; a fetch failure leaves the prior
// catalog intact (§4.1, §4.8) and is reported as apperr.SourceUnavailable.
func (s *Service) RefreshCatalog(ctx context.Context) error {
	if err := s.cat.Load(ctx); err != nil {
		return apperr.Wrap(apperr.SourceUnavailable, "catalog refresh failed", err)
	}
	return nil
}

// Status returns a point-in-time snapshot for the control/status endpoint.
// TimeUntilIdle is non-nil only while live with zero viewers, mirroring the
// watchdog's idle check (§4.6).
func (s *Service) Status(idleTimeout time.Duration) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Mode:             s.mode,
		ConnectedClients: s.bcast.ViewerCount(),
		EncoderProfile:   s.profile.ToRuntimeProfile(),
		CurrentLayout:    s.currentLayout,
		LastGoodLayout:   s.lastGoodLayout,
	}
	if s.mode == models.ModeLive && st.ConnectedClients == 0 {
		remaining := idleTimeout - time.Since(s.lastActivity)
		if remaining < 0 {
			remaining = 0
		}
		st.TimeUntilIdle = &remaining
	}
	return st
}

// --- watchdog.Controller ---

// IdleCheck reports whether the running child should be stopped for
// idleness (§4.6's first bullet).
func (s *Service) IdleCheck(now time.Time, idleTimeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != models.ModeLive {
		return false
	}
	if s.bcast.ViewerCount() != 0 {
		return false
	}
	return now.Sub(s.lastActivity) >= idleTimeout
}

// SizeExceeded reports whether the running child's cumulative output has
// crossed maxStreamSize (§4.6's second bullet). A zero bound disables the
// check.
func (s *Service) SizeExceeded(maxStreamSize uint64) bool {
	if maxStreamSize == 0 {
		return false
	}
	s.mu.Lock()
	live := s.mode == models.ModeLive
	s.mu.Unlock()
	if !live {
		return false
	}
	return s.bcast.TotalBytes() > maxStreamSize
}

// StopForIdle implements watchdog.Controller by delegating to Stop.
func (s *Service) StopForIdle(ctx context.Context) {
	if err := s.Stop(ctx); err != nil {
		s.logger.Warn("idle stop failed", slog.Any("error", err))
	}
}

// RecycleForSize implements watchdog.Controller: it restarts the child with
// its last-used argument vector and re-points the broadcast reader, without
// touching mode or current_layout (§4.4's recycle() contract, §4.7's "any"
// size-exceeded row).
func (s *Service) RecycleForSize(ctx context.Context) {
	stdout, err := s.sup.Recycle(ctx)
	if err != nil {
		s.logger.Warn("size-triggered recycle failed", slog.Any("error", err))
		return
	}
	s.bcast.ResetByteCount()
	s.bcast.ReadFrom(stdout, s.onReaderEOF)
	s.touchActivity()
}

// --- internals ---

func (s *Service) baseLayout() *models.LayoutConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentLayout != nil {
		return s.currentLayout
	}
	return s.lastGoodLayout
}

func (s *Service) touchActivity() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// layoutOrder returns the canonical slot-name order for kind: the fixed
// list for non-custom kinds, or the names in customSlots in area-descending
// order (largest first, stable on ties), which is also the compiler's
// z-order for custom layouts.
func (s *Service) layoutOrder(kind models.LayoutKind, customSlots []models.CustomSlot) ([]string, error) {
	if kind == models.LayoutCustom {
		if len(customSlots) == 0 {
			return nil, apperr.New(apperr.BadLayout, "custom layout requires at least one slot")
		}
		cfg := models.LayoutConfig{Kind: kind, CustomSlots: customSlots}
		return cfg.SlotNames(), nil
	}
	if !kind.Valid() {
		return nil, apperr.Newf(apperr.BadLayout, "unknown layout kind %q", kind)
	}
	return kind.Slots(), nil
}

// newLayoutConfig builds a fully-specified LayoutConfig from an apply
// request, defaulting per_slot_volume to the single-audio-source pattern
// (the chosen audio slot at 1.0, every other slot at 0.0) — §4.3's "exactly
// one slot assigned non-zero volume equals audio_slot" branch is the normal
// state immediately after an apply.
func (s *Service) newLayoutConfig(req ApplyLayoutRequest) (models.LayoutConfig, error) {
	order, err := s.layoutOrder(req.Kind, req.CustomSlots)
	if err != nil {
		return models.LayoutConfig{}, err
	}

	slotToChannel := make(map[string]string, len(order))
	for _, slot := range order {
		chanID, ok := req.Streams[slot]
		if !ok || chanID == "" {
			return models.LayoutConfig{}, apperr.Newf(apperr.BadLayout, "layout %q requires a stream assignment for slot %q", req.Kind, slot)
		}
		slotToChannel[slot] = chanID
	}

	audioFound := false
	perSlotVolume := make(map[string]float64, len(order))
	for _, slot := range order {
		v := 0.0
		if slot == req.AudioSlot {
			v = 1.0
			audioFound = true
		}
		perSlotVolume[slot] = v
	}
	if !audioFound {
		return models.LayoutConfig{}, apperr.Newf(apperr.BadLayout, "audio_source %q is not one of this layout's slots", req.AudioSlot)
	}

	return models.LayoutConfig{
		Kind:          req.Kind,
		SlotToChannel: slotToChannel,
		AudioSlot:     req.AudioSlot,
		PerSlotVolume: perSlotVolume,
		CustomSlots:   req.CustomSlots,
	}, nil
}

// compileArgsFor resolves every slot's channel against the catalog and
// compiles the full ffmpeg argument vector for layout, in the same
// canonical order used when the layout was built.
func (s *Service) compileArgsFor(layout *models.LayoutConfig) ([]string, error) {
	order, err := s.layoutOrder(layout.Kind, layout.CustomSlots)
	if err != nil {
		return nil, err
	}

	inputs := make([]compiler.SlotInput, len(order))
	volumes := make([]float64, len(order))
	audioIndex := -1
	for i, slot := range order {
		chanID, ok := layout.SlotToChannel[slot]
		if !ok || chanID == "" {
			return nil, apperr.Newf(apperr.BadLayout, "layout %q is missing a stream assignment for slot %q", layout.Kind, slot)
		}
		ch, err := s.cat.Resolve(chanID)
		if err != nil {
			// A layout-apply that references an unknown channel id is a bad
			// request, not a missing-resource lookup: report it as BadLayout
			// (HTTP 400) rather than letting the catalog's NotFound (404)
			// leak through.
			return nil, apperr.Newf(apperr.BadLayout, "layout %q references unknown channel id %q", layout.Kind, chanID)
		}
		inputs[i] = compiler.SlotInput{Slot: slot, URL: ch.StreamURL}
		volumes[i] = layout.PerSlotVolume[slot]
		if slot == layout.AudioSlot {
			audioIndex = i
		}
	}
	if audioIndex < 0 {
		return nil, apperr.Newf(apperr.BadLayout, "audio_source %q is not one of this layout's slots", layout.AudioSlot)
	}

	return compiler.Compile(compiler.CompileRequest{
		Kind:           layout.Kind,
		Inputs:         inputs,
		AudioSlotIndex: audioIndex,
		Volumes:        volumes,
		CustomSlots:    layout.CustomSlots,
		Profile:        s.profile,
		Network:        s.network,
	})
}

// startChild spawns (or optimistically replaces) the running child with
// args and re-points the broadcast reader at it, serialized by the
// supervisor lock (§4.4's invariant that only one transition is in flight
// at a time). It is the sole place mode advances to live.
func (s *Service) startChild(ctx context.Context, layout *models.LayoutConfig, args []string) error {
	s.mu.Lock()
	if s.mode == models.ModeStarting {
		s.mu.Unlock()
		return apperr.New(apperr.Busy, "a layout transition is already in flight")
	}
	wasIdle := s.mode == models.ModeIdle
	if wasIdle {
		s.mode = models.ModeStarting
	}

	stdout, err := s.sup.Start(ctx, args)
	if err != nil {
		if wasIdle {
			s.mode = models.ModeIdle
		}
		s.mu.Unlock()
		return apperr.Wrap(apperr.EncoderFailed, "failed to start encoder child", err)
	}

	s.bcast.ResetByteCount()
	s.bcast.ReadFrom(stdout, s.onReaderEOF)
	s.mode = models.ModeLive
	s.currentLayout = layout
	s.lastGoodLayout = layout
	s.lastActivity = time.Now()
	s.mu.Unlock()
	return nil
}

// waitForFirstBytes blocks until the broadcaster has read at least one byte
// from the freshly started child, or the cold-start deadline elapses
// (§4.7's cold-start contract, §5's hard 30s cap). The child is left
// running either way — a late-arriving first byte still benefits whatever
// viewer attaches next.
func (s *Service) waitForFirstBytes(ctx context.Context) error {
	deadline := time.Now().Add(s.coldStartDeadline)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if s.bcast.TotalBytes() > 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return apperr.New(apperr.StartupTimeout, "encoder did not produce output within the startup deadline")
		}
		select {
		case <-ctx.Done():
			return apperr.Wrap(apperr.Internal, "cold start cancelled", ctx.Err())
		case <-ticker.C:
		}
	}
}

// onReaderEOF is the broadcaster's end-of-stream callback. Mode transitions
// on child exit are driven exclusively by the supervisor's give-up/heal
// callbacks below, not by this, so the two notification paths never
// disagree about runtime state.
func (s *Service) onReaderEOF(err error) {
	s.logger.Debug("broadcast reader stopped", slog.Any("error", err))
}

// handleGiveUp is invoked by the supervisor when self-healing fails twice
// in a row (§4.8): mode returns to idle, last_good_layout is retained so a
// future viewer can cold-start it again, and current viewers are
// disconnected cleanly.
func (s *Service) handleGiveUp() {
	s.mu.Lock()
	s.mode = models.ModeIdle
	s.currentLayout = nil
	s.mu.Unlock()

	s.bcast.StopReading()
	s.bcast.ClearViewers()
	s.logger.Warn("encoder child crash-looped; viewers disconnected")
}

// handleHeal is invoked by the supervisor when a single unexpected exit is
// followed by a successful restart: the broadcast reader is re-pointed at
// the replacement child's stdout without disturbing mode or current_layout.
func (s *Service) handleHeal(stdout io.ReadCloser) {
	s.bcast.ResetByteCount()
	s.bcast.ReadFrom(stdout, s.onReaderEOF)
	s.logger.Info("encoder child self-healed after unexpected exit")
}

func cloneLayout(l *models.LayoutConfig) models.LayoutConfig {
	cp := *l
	cp.SlotToChannel = make(map[string]string, len(l.SlotToChannel))
	for k, v := range l.SlotToChannel {
		cp.SlotToChannel[k] = v
	}
	cp.PerSlotVolume = make(map[string]float64, len(l.PerSlotVolume))
	for k, v := range l.PerSlotVolume {
		cp.PerSlotVolume[k] = v
	}
	cp.CustomSlots = append([]models.CustomSlot{}, l.CustomSlots...)
	return cp
}
