package compiler

import (
	"fmt"

	"github.com/kikootwo/multiview/internal/apperr"
	"github.com/kikootwo/multiview/internal/models"
)

// slotGeom is the computed placement for one input: the bounding box it is
// normalized into, an optional border thickness, and its overlay position
// on the 1920x1080 canvas. dvd_pip's inset carries XExpr/YExpr instead of
// fixed X/Y — a closed-form function of ffmpeg's per-frame counter `n`.
type slotGeom struct {
	Slot         string
	InputIndex   int // position in the ffmpeg -i list, i.e. CompileRequest.Inputs order
	BoxW, BoxH   int
	Border       int
	X, Y         int
	XExpr, YExpr string // non-empty only for the dvd_pip inset
}

// borderedSize returns the final on-screen size once a white border of
// thickness g.Border has been padded around the normalized box.
func (g slotGeom) borderedSize() (int, int) {
	return g.BoxW + 2*g.Border, g.BoxH + 2*g.Border
}

const (
	pipInsetMargin    = 40
	pipInsetBorder    = 8
	multiPipBorder    = 4
	multiPipGap       = 20
	multiPipMargin    = 40
	customSlotBorder  = 4
	dvdPipSpeedPxPerFrame = 2
)

// computeGeometry returns the ordered slotGeom list for req, matching the
// canonical slot order in req.Inputs. It is pure and depends only on Kind,
// the slot names present, and (for custom) CustomSlots.
func computeGeometry(req CompileRequest) ([]slotGeom, error) {
	switch req.Kind {
	case models.LayoutPIP:
		return pipGeometry(req.Inputs)
	case models.LayoutSplitH:
		return splitGeometry(req.Inputs, true)
	case models.LayoutSplitV:
		return splitGeometry(req.Inputs, false)
	case models.LayoutGrid2x2:
		return gridGeometry(req.Inputs)
	case models.LayoutMultiPIP2, models.LayoutMultiPIP3, models.LayoutMultiPIP4:
		return multiPIPGeometry(req.Inputs)
	case models.LayoutDVDPIP:
		return dvdPIPGeometry(req.Inputs)
	case models.LayoutCustom:
		return customGeometry(req.Inputs, req.CustomSlots)
	default:
		return nil, apperr.Newf(apperr.BadLayout, "unknown layout kind %q", req.Kind)
	}
}

func pipGeometry(inputs []SlotInput) ([]slotGeom, error) {
	if len(inputs) != 2 {
		return nil, apperr.Newf(apperr.BadLayout, "pip requires exactly 2 inputs, got %d", len(inputs))
	}
	main := slotGeom{Slot: inputs[0].Slot, InputIndex: 0, BoxW: CanvasWidth, BoxH: CanvasHeight, X: 0, Y: 0}
	inset := slotGeom{Slot: inputs[1].Slot, InputIndex: 1, BoxW: 640, BoxH: 360, Border: pipInsetBorder}
	bw, bh := inset.borderedSize()
	inset.X = CanvasWidth - bw - pipInsetMargin
	inset.Y = CanvasHeight - bh - pipInsetMargin
	return []slotGeom{main, inset}, nil
}

func splitGeometry(inputs []SlotInput, horizontal bool) ([]slotGeom, error) {
	if len(inputs) != 2 {
		return nil, apperr.Newf(apperr.BadLayout, "split layout requires exactly 2 inputs, got %d", len(inputs))
	}
	if horizontal {
		return []slotGeom{
			{Slot: inputs[0].Slot, InputIndex: 0, BoxW: 960, BoxH: 1080, X: 0, Y: 0},
			{Slot: inputs[1].Slot, InputIndex: 1, BoxW: 960, BoxH: 1080, X: 960, Y: 0},
		}, nil
	}
	return []slotGeom{
		{Slot: inputs[0].Slot, InputIndex: 0, BoxW: 1920, BoxH: 540, X: 0, Y: 0},
		{Slot: inputs[1].Slot, InputIndex: 1, BoxW: 1920, BoxH: 540, X: 0, Y: 540},
	}, nil
}

func gridGeometry(inputs []SlotInput) ([]slotGeom, error) {
	if len(inputs) != 4 {
		return nil, apperr.Newf(apperr.BadLayout, "grid_2x2 requires exactly 4 inputs, got %d", len(inputs))
	}
	positions := [4][2]int{{0, 0}, {960, 0}, {0, 540}, {960, 540}}
	out := make([]slotGeom, 4)
	for i, in := range inputs {
		out[i] = slotGeom{Slot: in.Slot, InputIndex: i, BoxW: 960, BoxH: 540, X: positions[i][0], Y: positions[i][1]}
	}
	return out, nil
}

func multiPIPGeometry(inputs []SlotInput) ([]slotGeom, error) {
	if len(inputs) < 3 || len(inputs) > 5 {
		return nil, apperr.Newf(apperr.BadLayout, "multi_pip requires 1 main + 2..4 insets, got %d total inputs", len(inputs))
	}
	out := make([]slotGeom, len(inputs))
	out[0] = slotGeom{Slot: inputs[0].Slot, InputIndex: 0, BoxW: CanvasWidth, BoxH: CanvasHeight, X: 0, Y: 0}

	insetW, insetH := 384, 216
	bw := insetW + 2*multiPipBorder
	bh := insetH + 2*multiPipBorder
	y := CanvasHeight - bh - multiPipMargin

	for i := 1; i < len(inputs); i++ {
		idx := i - 1 // 0-based inset index, rightmost first
		x := CanvasWidth - multiPipMargin - bw - idx*(bw+multiPipGap)
		out[i] = slotGeom{Slot: inputs[i].Slot, InputIndex: i, BoxW: insetW, BoxH: insetH, Border: multiPipBorder, X: x, Y: y}
	}
	return out, nil
}

// dvdPIPGeometry computes the main slot's static placement and the inset's
// deterministic bounce-trajectory expressions, resolving the open question
// in §9(b)/§14(b): position is a function of ffmpeg's frame counter `n`,
// not wall-clock time, at a fixed speed of dvdPipSpeedPxPerFrame px/frame
// (60px/s at 30fps) in each axis, reflecting off the canvas edges.
func dvdPIPGeometry(inputs []SlotInput) ([]slotGeom, error) {
	if len(inputs) != 2 {
		return nil, apperr.Newf(apperr.BadLayout, "dvd_pip requires exactly 2 inputs, got %d", len(inputs))
	}
	main := slotGeom{Slot: inputs[0].Slot, InputIndex: 0, BoxW: CanvasWidth, BoxH: CanvasHeight, X: 0, Y: 0}

	insetW, insetH := 480, 270
	maxX := CanvasWidth - insetW
	maxY := CanvasHeight - insetH
	inset := slotGeom{
		Slot:  inputs[1].Slot,
		InputIndex: 1,
		BoxW: insetW, BoxH: insetH,
		XExpr: bounceExpr(maxX, dvdPipSpeedPxPerFrame),
		YExpr: bounceExpr(maxY, dvdPipSpeedPxPerFrame),
	}
	return []slotGeom{main, inset}, nil
}

// bounceExpr renders a triangle-wave closed-form expression in ffmpeg's
// expression syntax: pos(n) = max - |mod(n*speed, 2*max) - max|, which
// ramps 0 -> max -> 0 with reflections at both edges, computed once at
// compile time as a string — no runtime clock dependency.
func bounceExpr(max, speed int) string {
	if max <= 0 {
		return "0"
	}
	return fmt.Sprintf("(%d-abs(mod(n*%d\\,%d)-%d))", max, speed, 2*max, max)
}

func customGeometry(inputs []SlotInput, slots []models.CustomSlot) ([]slotGeom, error) {
	if len(inputs) != len(slots) {
		return nil, apperr.Newf(apperr.BadGeometry, "custom layout input count (%d) does not match slot count (%d)", len(inputs), len(slots))
	}
	if err := validateCustomSlots(slots); err != nil {
		return nil, err
	}

	ordered := sortSlotsDescByArea(slots)
	indexBySlot := make(map[string]int, len(inputs))
	for i, in := range inputs {
		indexBySlot[in.Slot] = i
	}

	out := make([]slotGeom, len(ordered))
	for i, s := range ordered {
		idx, ok := indexBySlot[s.Name]
		if !ok {
			return nil, apperr.Newf(apperr.BadLayout, "custom slot %q has no assigned input", s.Name)
		}
		border := 0
		if s.Border {
			border = customSlotBorder
		}
		out[i] = slotGeom{
			Slot:       s.Name,
			InputIndex: idx,
			BoxW:       s.Width - 2*border,
			BoxH:       s.Height - 2*border,
			Border:     border,
			X:          s.X,
			Y:          s.Y,
		}
	}
	return out, nil
}

// sortSlotsDescByArea returns slots ordered largest-first (§3, §4.3, §8
// property 2) with a stable tie-break so determinism holds for equal areas.
func sortSlotsDescByArea(slots []models.CustomSlot) []models.CustomSlot {
	out := make([]models.CustomSlot, len(slots))
	copy(out, slots)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Area() > out[j-1].Area(); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
