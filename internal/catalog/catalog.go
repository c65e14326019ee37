package catalog

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/kikootwo/multiview/internal/apperr"
	"github.com/kikootwo/multiview/internal/models"
)

// Catalog holds the current channel list behind the catalog lock (§5's
// lock (a)). The whole list is replaced atomically on refresh; readers
// always see a consistent snapshot.
type Catalog struct {
	mu       sync.RWMutex
	channels []models.Channel
	byID     map[string]models.Channel

	loader *Loader
	logger *slog.Logger

	loadGroup singleflight.Group
}

// New constructs an empty Catalog backed by loader.
func New(loader *Loader, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{loader: loader, logger: logger}
}

// Load fetches a fresh playlist and replaces the catalog atomically. On
// failure, the existing catalog is left in place (§4.1, §4.8). Concurrent
// callers (the initial startup load racing an operator-triggered
// /api/channels/refresh, or several refresh calls in flight at once)
// collapse into a single fetch via loadGroup; every caller observes that
// fetch's result.
func (c *Catalog) Load(ctx context.Context) error {
	_, err, _ := c.loadGroup.Do("load", func() (any, error) {
		return nil, c.load(ctx)
	})
	return err
}

func (c *Catalog) load(ctx context.Context) error {
	channels, err := c.loader.Load(ctx)
	if err != nil {
		c.logger.Warn("catalog load failed, retaining previous catalog", slog.String("error", err.Error()))
		return err
	}

	byID := make(map[string]models.Channel, len(channels))
	for _, ch := range channels {
		byID[ch.ID] = ch
	}

	c.mu.Lock()
	c.channels = channels
	c.byID = byID
	c.mu.Unlock()

	c.logger.Info("catalog loaded", slog.Int("channel_count", len(channels)))
	return nil
}

// List returns a snapshot of the current channel list.
func (c *Catalog) List() []models.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Channel, len(c.channels))
	copy(out, c.channels)
	return out
}

// Resolve looks up a channel by ID, returning apperr.NotFound if absent.
func (c *Catalog) Resolve(id string) (models.Channel, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ch, ok := c.byID[id]
	if !ok {
		return models.Channel{}, apperr.Newf(apperr.NotFound, "unknown channel id %q", id)
	}
	return ch, nil
}
