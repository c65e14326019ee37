package compiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kikootwo/multiview/internal/encoder"
	"github.com/kikootwo/multiview/internal/models"
)

func pipRequest() CompileRequest {
	return CompileRequest{
		Kind: models.LayoutPIP,
		Inputs: []SlotInput{
			{Slot: "main", URL: "http://example.test/main.ts"},
			{Slot: "inset", URL: "http://example.test/inset.ts"},
		},
		AudioSlotIndex: 0,
		Volumes:        []float64{1, 0},
		Profile:        encoder.Software(),
		Network:        NetworkTuning{UserAgent: "multiview-test/1.0"},
	}
}

// Property 1 (§8): compiling the same request twice yields byte-identical
// argument vectors.
func TestCompile_Deterministic(t *testing.T) {
	req := pipRequest()
	a, err := Compile(req)
	require.NoError(t, err)
	b, err := Compile(req)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCompile_PIP_ProducesExpectedStructure(t *testing.T) {
	args, err := Compile(pipRequest())
	require.NoError(t, err)

	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "-filter_complex")
	assert.Contains(t, joined, "-map [v] -map [a]")
	assert.Contains(t, joined, "-f mpegts -")
	assert.Contains(t, joined, "-user_agent multiview-test/1.0")

	var graph string
	for i, a := range args {
		if a == "-filter_complex" {
			graph = args[i+1]
		}
	}
	require.NotEmpty(t, graph)
	assert.Contains(t, graph, "[0:v]")
	assert.Contains(t, graph, "[1:v]")
	assert.Contains(t, graph, "scale=640:360:force_original_aspect_ratio=decrease")
	assert.Contains(t, graph, "pad=640:360:(ow-iw)/2:(oh-ih)/2:color=black")
	assert.Contains(t, graph, "pad=656:376:8:8:color=white")
	assert.Contains(t, graph, "aresample=async=1:first_pts=0")
	assert.Contains(t, graph, "[v]")
	assert.Contains(t, graph, "[a]")
}

func TestCompile_RejectsTooManyInputs(t *testing.T) {
	req := CompileRequest{
		Kind: models.LayoutCustom,
		Inputs: []SlotInput{
			{Slot: "a", URL: "u"}, {Slot: "b", URL: "u"}, {Slot: "c", URL: "u"},
			{Slot: "d", URL: "u"}, {Slot: "e", URL: "u"}, {Slot: "f", URL: "u"},
		},
		Profile: encoder.Software(),
	}
	_, err := Compile(req)
	assert.Error(t, err)
}

func TestCompile_RejectsWrongSlotNamesForKind(t *testing.T) {
	req := CompileRequest{
		Kind: models.LayoutPIP,
		Inputs: []SlotInput{
			{Slot: "left", URL: "u1"},
			{Slot: "right", URL: "u2"},
		},
		Profile: encoder.Software(),
	}
	_, err := Compile(req)
	assert.Error(t, err)
}

// Property 5 (§8): a custom slot whose aspect ratio deviates from 16:9 by
// more than 1% is rejected before any filter string is built.
func TestCompile_RejectsBadAspectRatioCustomSlot(t *testing.T) {
	req := CompileRequest{
		Kind: models.LayoutCustom,
		Inputs: []SlotInput{
			{Slot: "square", URL: "u1"},
		},
		CustomSlots: []models.CustomSlot{
			{Name: "square", X: 0, Y: 0, Width: 500, Height: 500},
		},
		Profile: encoder.Software(),
	}
	_, err := Compile(req)
	assert.Error(t, err)
}

// Property 5 (§8): a custom slot below the 320x180 floor is rejected even
// when its aspect ratio is a perfect 16:9, since the floor and the aspect
// check are independent invariants.
func TestCompile_RejectsUndersizedCustomSlot(t *testing.T) {
	req := CompileRequest{
		Kind: models.LayoutCustom,
		Inputs: []SlotInput{
			{Slot: "tiny", URL: "u1"},
		},
		CustomSlots: []models.CustomSlot{
			{Name: "tiny", X: 0, Y: 0, Width: 160, Height: 90},
		},
		Profile: encoder.Software(),
	}
	_, err := Compile(req)
	assert.Error(t, err)
}

// Property 2 (§8): custom slots are composited largest-area-first regardless
// of the order they were declared in, and the video filter for each slot
// still references its own original input index in the ffmpeg -i list.
func TestCompile_CustomLayoutOrdersByAreaButKeepsInputIndices(t *testing.T) {
	req := CompileRequest{
		Kind: models.LayoutCustom,
		Inputs: []SlotInput{
			{Slot: "small", URL: "http://example.test/small.ts"},
			{Slot: "big", URL: "http://example.test/big.ts"},
		},
		CustomSlots: []models.CustomSlot{
			{Name: "small", X: 0, Y: 0, Width: 320, Height: 180},
			{Name: "big", X: 0, Y: 0, Width: 1920, Height: 1080},
		},
		Profile: encoder.Software(),
	}
	args, err := Compile(req)
	require.NoError(t, err)

	var graph string
	for i, a := range args {
		if a == "-filter_complex" {
			graph = args[i+1]
		}
	}
	// "small" is input 0, "big" is input 1 regardless of composite order.
	assert.Contains(t, graph, "[0:v]scale=320:180:force_original_aspect_ratio=decrease")
	assert.Contains(t, graph, "[1:v]scale=1920:1080:force_original_aspect_ratio=decrease")
}

// Property 3 (§8): out-of-range volumes are rejected rather than silently
// clamped by the compiler (clamping happens earlier, on layout ingest).
func TestCompile_RejectsOutOfRangeVolume(t *testing.T) {
	req := pipRequest()
	req.Volumes = []float64{1.5, 0}
	_, err := Compile(req)
	assert.Error(t, err)
}

func TestCompile_DVDPIPProducesFrameDrivenExpression(t *testing.T) {
	req := CompileRequest{
		Kind: models.LayoutDVDPIP,
		Inputs: []SlotInput{
			{Slot: "main", URL: "http://example.test/main.ts"},
			{Slot: "inset", URL: "http://example.test/inset.ts"},
		},
		AudioSlotIndex: 0,
		Profile:        encoder.Software(),
	}
	args, err := Compile(req)
	require.NoError(t, err)

	var graph string
	for i, a := range args {
		if a == "-filter_complex" {
			graph = args[i+1]
		}
	}
	assert.Contains(t, graph, "eval=frame")
	assert.Contains(t, graph, "mod(n*2")
}

func TestCompile_GridRequiresExactlyFourInputs(t *testing.T) {
	req := CompileRequest{
		Kind: models.LayoutGrid2x2,
		Inputs: []SlotInput{
			{Slot: "slot1", URL: "u"}, {Slot: "slot2", URL: "u"}, {Slot: "slot3", URL: "u"},
		},
		Profile: encoder.Software(),
	}
	_, err := Compile(req)
	assert.Error(t, err)
}
