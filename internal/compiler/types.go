// Package compiler turns a declarative layout plus stream inputs and
// per-slot audio volumes into the complete argument vector for the
// external encoder subprocess (§4.3). It is a pure function package: no
// I/O, no subprocess, no global state, which is what makes the determinism
// property in §8 checkable without a running encoder.
package compiler

import (
	"github.com/kikootwo/multiview/internal/encoder"
	"github.com/kikootwo/multiview/internal/models"
)

// SlotInput is one canonically-ordered (slot, source URL) pair.
type SlotInput struct {
	Slot string
	URL  string
}

// NetworkTuning carries the per-input reconnect/timeout flags (§12), made
// configurable rather than hardcoded as in the original prototype.
type NetworkTuning struct {
	ReconnectTimeoutMicros int64
	UserAgent              string
}

// CompileRequest bundles everything Compile needs to produce a byte-
// identical argument vector for a given input (§4.3, §8 property 1).
type CompileRequest struct {
	Kind            models.LayoutKind
	Inputs          []SlotInput
	AudioSlotIndex  int
	Volumes         []float64
	CustomSlots     []models.CustomSlot
	Profile         encoder.Profile
	Network         NetworkTuning
}

// FrameRate is the normalized output framerate every input is resampled to
// (§4.3's normalization bullet) and the clock the dvd_pip trajectory is
// driven by instead of wall-clock time (§14(b)).
const FrameRate = 30

// CanvasWidth and CanvasHeight are the fixed output frame dimensions.
const (
	CanvasWidth  = 1920
	CanvasHeight = 1080
)
