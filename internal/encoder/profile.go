// Package encoder probes for an available hardware encoder at startup and
// selects one profile from a fixed-priority table (§4.2). The winner is
// stored once and never re-probed for the process lifetime.
package encoder

import "github.com/kikootwo/multiview/internal/models"

// Profile is a statically declared candidate: a named encoder configuration
// plus the ffmpeg arguments needed to test-encode and to actually use it.
type Profile struct {
	Name             string
	Codec            string
	HWAccelArgs      []string // e.g. -hwaccel cuda, inserted before the synthetic test input
	TestFilterArgs   []string // extra -vf/-c:v args needed for the test encode to exercise the accelerator
	EncoderArgs      []string // -c:v <encoder> [options...], used in the real compiled command
	SupportsHWFilter bool
}

// ToRuntimeProfile converts a Profile to the trimmed models.EncoderProfile
// retained in runtime state and reported on /control/status.
func (p Profile) ToRuntimeProfile() models.EncoderProfile {
	return models.EncoderProfile{
		Name:              p.Name,
		Codec:             p.Codec,
		ExtraPreInputArgs: append([]string{}, p.HWAccelArgs...),
		ExtraOutputArgs:   append([]string{}, p.EncoderArgs...),
		SupportsHWFilter:  p.SupportsHWFilter,
	}
}

// Table is the fixed-priority, compile-time candidate list: three hardware
// profiles in declared order, plus a software fallback that is always
// available. Order matters — it is the auto-select priority (§4.2, §13.2).
var Table = []Profile{
	{
		Name:        "nvenc",
		Codec:       "h264_nvenc",
		HWAccelArgs: []string{"-hwaccel", "cuda"},
		EncoderArgs: []string{"-c:v", "h264_nvenc", "-preset", "p4", "-rc", "vbr", "-b:v", "6M"},
	},
	{
		Name:        "qsv",
		Codec:       "h264_qsv",
		HWAccelArgs: []string{"-init_hw_device", "qsv=hw", "-filter_hw_device", "hw"},
		EncoderArgs: []string{"-c:v", "h264_qsv", "-preset", "fast", "-b:v", "6M"},
	},
	{
		Name:        "vaapi",
		Codec:       "h264_vaapi",
		HWAccelArgs: []string{"-vaapi_device", "/dev/dri/renderD128"},
		EncoderArgs: []string{"-c:v", "h264_vaapi", "-b:v", "6M"},
	},
	{
		Name:        "software",
		Codec:       "libx264",
		EncoderArgs: []string{"-c:v", "libx264", "-preset", "veryfast", "-b:v", "6M"},
	},
}

// Software is the guaranteed fallback profile (§13.2's "FORCE_CPU" branch
// equivalent), used when the preferred/hardware candidates all fail.
func Software() Profile {
	for _, p := range Table {
		if p.Name == "software" {
			return p
		}
	}
	panic("encoder: software fallback profile missing from Table")
}

// ByName returns the profile with the given name and whether it exists.
func ByName(name string) (Profile, bool) {
	for _, p := range Table {
		if p.Name == name {
			return p, true
		}
	}
	return Profile{}, false
}
