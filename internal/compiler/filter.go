package compiler

import (
	"fmt"
	"strings"
)

// buildFilterGraph renders the geometry and per-slot volumes into a single
// -filter_complex string producing exactly two labelled outputs, [v] and
// [a], per §4.3. Video: each input is scaled preserving aspect ratio into
// its normalized box, letterboxed with black to fill any leftover space,
// then padded with a border if requested, and composited onto a black
// canvas in geometry order (canonical slot order, or largest-area-first for
// custom layouts). Audio: every input's PTS drift is
// compensated with async resampling, resampled to 48kHz stereo, scaled by
// its slot's volume, and mixed — a volume of 0 contributes silence, which
// is how a slot "without audio" is represented rather than as a distinct
// code path.
func buildFilterGraph(geoms []slotGeom, volumes []float64) string {
	var b strings.Builder

	fmt.Fprintf(&b, "color=c=black:s=%dx%d:r=%d[base]", CanvasWidth, CanvasHeight, FrameRate)

	videoLabels := make([]string, len(geoms))
	for i, g := range geoms {
		label := fmt.Sprintf("v%d", i)
		videoLabels[i] = label
		b.WriteString(";")
		fmt.Fprintf(&b, "[%d:v]scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=black,setsar=1,fps=%d", g.InputIndex, g.BoxW, g.BoxH, g.BoxW, g.BoxH, FrameRate)
		if g.Border > 0 {
			bw, bh := g.borderedSize()
			fmt.Fprintf(&b, ",pad=%d:%d:%d:%d:color=white", bw, bh, g.Border, g.Border)
		}
		fmt.Fprintf(&b, "[%s]", label)
	}

	prev := "base"
	for i, g := range geoms {
		out := fmt.Sprintf("ov%d", i)
		if i == len(geoms)-1 {
			out = "v"
		}
		b.WriteString(";")
		if g.XExpr != "" || g.YExpr != "" {
			x, y := g.XExpr, g.YExpr
			if x == "" {
				x = fmt.Sprintf("%d", g.X)
			}
			if y == "" {
				y = fmt.Sprintf("%d", g.Y)
			}
			fmt.Fprintf(&b, "[%s][%s]overlay=x=%s:y=%s:eval=frame[%s]", prev, videoLabels[i], x, y, out)
		} else {
			fmt.Fprintf(&b, "[%s][%s]overlay=x=%d:y=%d[%s]", prev, videoLabels[i], g.X, g.Y, out)
		}
		prev = out
	}

	vols := volumes
	if len(vols) != len(geoms) {
		vols = make([]float64, len(geoms))
		for i := range vols {
			vols[i] = 1
		}
	}

	audioLabels := make([]string, len(geoms))
	for i, g := range geoms {
		label := fmt.Sprintf("a%d", i)
		audioLabels[i] = label
		b.WriteString(";")
		fmt.Fprintf(&b, "[%d:a]aresample=async=1:first_pts=0,aformat=sample_rates=48000:channel_layouts=stereo,volume=%.4f[%s]", g.InputIndex, vols[g.InputIndex], label)
	}

	b.WriteString(";")
	for _, l := range audioLabels {
		fmt.Fprintf(&b, "[%s]", l)
	}
	fmt.Fprintf(&b, "amix=inputs=%d:normalize=0,aformat=sample_rates=48000:channel_layouts=stereo[a]", len(audioLabels))

	return b.String()
}
