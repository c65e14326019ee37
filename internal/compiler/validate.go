package compiler

import (
	"math"

	"github.com/kikootwo/multiview/internal/apperr"
	"github.com/kikootwo/multiview/internal/models"
)

const aspectTolerance = 0.01 // §4.3: 16:9 +/- 1%

const (
	minCustomSlotWidth  = 320
	minCustomSlotHeight = 180
)

// validateRequest performs every check that must happen before any string
// building (§8 property 4: invalid layouts are rejected before any ffmpeg
// argument is built). Geometry-specific membership checks live alongside
// their geometry functions; this covers the cross-cutting invariants.
func validateRequest(req CompileRequest) error {
	if len(req.Inputs) == 0 {
		return apperr.New(apperr.BadLayout, "at least one input is required")
	}
	if len(req.Inputs) > models.MaxStreams {
		return apperr.Newf(apperr.BadLayout, "at most %d streams are supported, got %d", models.MaxStreams, len(req.Inputs))
	}
	if !req.Kind.Valid() {
		return apperr.Newf(apperr.BadLayout, "unknown layout kind %q", req.Kind)
	}
	if req.Kind != models.LayoutCustom {
		want := req.Kind.Slots()
		if len(want) != len(req.Inputs) {
			return apperr.Newf(apperr.BadLayout, "layout %q requires %d inputs, got %d", req.Kind, len(want), len(req.Inputs))
		}
		for i, in := range req.Inputs {
			if in.Slot != want[i] {
				return apperr.Newf(apperr.BadLayout, "layout %q expects slot %q at position %d, got %q", req.Kind, want[i], i, in.Slot)
			}
		}
	}
	if req.AudioSlotIndex < 0 || req.AudioSlotIndex >= len(req.Inputs) {
		return apperr.Newf(apperr.BadLayout, "audio slot index %d out of range for %d inputs", req.AudioSlotIndex, len(req.Inputs))
	}
	if len(req.Volumes) != 0 && len(req.Volumes) != len(req.Inputs) {
		return apperr.Newf(apperr.BadLayout, "volume count (%d) does not match input count (%d)", len(req.Volumes), len(req.Inputs))
	}
	for _, v := range req.Volumes {
		if v < 0 || v > 1 {
			return apperr.Newf(apperr.BadLayout, "volume %v out of range [0,1]", v)
		}
	}
	for _, in := range req.Inputs {
		if in.URL == "" {
			return apperr.Newf(apperr.BadLayout, "input for slot %q has no source URL", in.Slot)
		}
	}
	return nil
}

// validateCustomSlots enforces custom-layout-only invariants: unique names,
// non-degenerate bounds within the canvas, and the 16:9 +/-1% aspect
// constraint (§4.3, §8 property 5).
func validateCustomSlots(slots []models.CustomSlot) error {
	if len(slots) == 0 {
		return apperr.New(apperr.BadLayout, "custom layout requires at least one slot")
	}
	seen := make(map[string]bool, len(slots))
	for _, s := range slots {
		if s.Name == "" {
			return apperr.New(apperr.BadGeometry, "custom slot name must not be empty")
		}
		if seen[s.Name] {
			return apperr.Newf(apperr.BadLayout, "duplicate custom slot name %q", s.Name)
		}
		seen[s.Name] = true

		if s.Width <= 0 || s.Height <= 0 {
			return apperr.Newf(apperr.BadGeometry, "custom slot %q has non-positive dimensions %dx%d", s.Name, s.Width, s.Height)
		}
		if s.Width < minCustomSlotWidth || s.Width > CanvasWidth || s.Height < minCustomSlotHeight || s.Height > CanvasHeight {
			return apperr.Newf(apperr.BadGeometry, "custom slot %q dimensions %dx%d fall outside the allowed %d-%d x %d-%d range",
				s.Name, s.Width, s.Height, minCustomSlotWidth, CanvasWidth, minCustomSlotHeight, CanvasHeight)
		}
		if s.X < 0 || s.Y < 0 || s.X+s.Width > CanvasWidth || s.Y+s.Height > CanvasHeight {
			return apperr.Newf(apperr.BadGeometry, "custom slot %q bounds [%d,%d,%d,%d] fall outside the %dx%d canvas",
				s.Name, s.X, s.Y, s.Width, s.Height, CanvasWidth, CanvasHeight)
		}
		if err := checkAspect(s.Name, s.Width, s.Height); err != nil {
			return err
		}
	}
	return nil
}

func checkAspect(name string, w, h int) error {
	got := float64(w) / float64(h)
	want := 16.0 / 9.0
	if math.Abs(got-want)/want > aspectTolerance {
		return apperr.Newf(apperr.BadGeometry, "custom slot %q aspect ratio %.4f deviates from 16:9 by more than %.0f%%", name, got, aspectTolerance*100)
	}
	return nil
}
