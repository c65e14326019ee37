package models

import "time"

// Mode is the top-level state of the runtime record (§3, §4.7).
type Mode string

const (
	ModeIdle     Mode = "idle"
	ModeStarting Mode = "starting"
	ModeLive     Mode = "live"
)

// EncoderProfile is a named bundle of codec arguments chosen once at
// startup by the encoder probe and retained for the process lifetime (§3).
type EncoderProfile struct {
	Name               string   `json:"name"`
	Codec              string   `json:"codec"`
	ExtraPreInputArgs  []string `json:"-"`
	ExtraOutputArgs    []string `json:"-"`
	SupportsHWFilter   bool     `json:"supports_hw_filter"`
}

// RuntimeState is the single owned record described in §3 and §9 ("global
// mutable state -> single owned record"). It is guarded by the supervisor
// lock. The active-viewer set is not part of this struct; it lives in
// broadcast.Broadcaster under the viewers lock (§5).
type RuntimeState struct {
	Mode               Mode
	CurrentLayout      *LayoutConfig
	LastGoodLayout     *LayoutConfig
	LastActivity       time.Time
	EncoderProfile      EncoderProfile
}
