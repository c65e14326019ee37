package encoder

import (
	"context"
	"log/slog"
	"os/exec"
	"time"
)

// Prober runs the fixed-priority candidate list against a short synthetic
// encode to pick the first profile that actually works on this host.
type Prober struct {
	binaryPath string
	timeout    time.Duration
	logger     *slog.Logger
}

// NewProber constructs a Prober. binaryPath is the ffmpeg executable to
// invoke for each candidate's test encode.
func NewProber(binaryPath string, timeout time.Duration, logger *slog.Logger) *Prober {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Prober{binaryPath: binaryPath, timeout: timeout, logger: logger}
}

// Select runs the probe. If preference is "auto" or empty, every hardware
// candidate is tried in table order followed by software. If preference
// names a profile, only that profile is tried, falling back to software on
// failure. "cpu" is an alias that skips straight to the software profile.
//
// Candidates are tried strictly in priority order, not concurrently —
// parallel GPU contention during probing would skew results, and each
// candidate already gets its own per-call timeout via testCandidate.
func (p *Prober) Select(ctx context.Context, preference string) (Profile, error) {
	return p.selectSequential(ctx, preference), nil
}

func (p *Prober) selectSequential(ctx context.Context, preference string) Profile {
	switch preference {
	case "", "auto":
		for _, candidate := range Table {
			if candidate.Name == "software" {
				continue
			}
			if p.testCandidate(ctx, candidate) {
				return candidate
			}
		}
		return Software()
	case "cpu":
		return Software()
	default:
		if candidate, ok := ByName(preference); ok && candidate.Name != "software" {
			if p.testCandidate(ctx, candidate) {
				return candidate
			}
			p.logger.Warn("preferred encoder profile failed probe, falling back to software",
				slog.String("preference", preference))
		} else {
			p.logger.Warn("unknown encoder preference, falling back to software",
				slog.String("preference", preference))
		}
		return Software()
	}
}

// testCandidate runs a short -f lavfi synthetic test encode using the
// candidate's hwaccel flags, mirroring the hardware-probe methodology of
// hwaccel detection: a zero-dependency color source (video only, no audio
// input), encoded for a fraction of a second to -f null.
func (p *Prober) testCandidate(ctx context.Context, candidate Profile) bool {
	testCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := append([]string{}, candidate.HWAccelArgs...)
	args = append(args,
		"-hide_banner",
		"-f", "lavfi", "-i", "color=c=black:s=320x240:d=0.1",
	)
	args = append(args, candidate.TestFilterArgs...)
	args = append(args, "-c:v", candidate.Codec, "-t", "0.05", "-f", "null", "-")

	cmd := exec.CommandContext(testCtx, p.binaryPath, args...)
	err := cmd.Run()
	if err != nil {
		p.logger.Debug("encoder probe candidate failed",
			slog.String("profile", candidate.Name), slog.String("error", err.Error()))
		return false
	}
	p.logger.Info("encoder probe candidate succeeded", slog.String("profile", candidate.Name))
	return true
}
