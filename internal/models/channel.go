// Package models holds the shared data types for the MultiView domain:
// channels, layout configuration, runtime state, and the encoder profile.
package models

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Channel is a single entry resolved from the M3U catalog. Identity is ID,
// which is the tvg-id attribute when present, or a freshly minted ULID when
// the playlist entry omits it. Channels are immutable once constructed; the
// catalog is replaced wholesale on refresh, never mutated in place.
type Channel struct {
	ID            string `json:"id"`
	DisplayName   string `json:"display_name"`
	LogoURL       string `json:"logo_url,omitempty"`
	StreamURL     string `json:"stream_url"`
	Group         string `json:"group,omitempty"`
	ChannelNumber string `json:"channel_number,omitempty"`
}

// NewChannelID mints a fresh, time-sortable opaque identifier for a
// playlist entry that has no tvg-id.
func NewChannelID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}
