// Package catalog loads and holds the M3U-derived channel list behind the
// catalog lock (§4.1, §5). It is the leaf component: nothing else in the
// dependency order feeds it, and it feeds channel resolution to the
// orchestrator and the filter-graph compiler.
package catalog

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/kikootwo/multiview/internal/apperr"
	"github.com/kikootwo/multiview/internal/models"
	"github.com/kikootwo/multiview/pkg/httpclient"
	"github.com/kikootwo/multiview/pkg/m3u"
)

// Loader fetches playlist bytes from an absolute URL or a local path and
// parses them into a []models.Channel.
type Loader struct {
	source     string
	selfName   string
	httpClient *httpclient.Client
	logger     *slog.Logger
}

// NewLoader constructs a Loader. source is either an absolute URL
// (scheme+host) or a local filesystem path; selfName is the service's own
// display name, filtered out of the loaded catalog to avoid feedback loops.
func NewLoader(source, selfName string, httpTimeout time.Duration, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := httpclient.DefaultConfig()
	cfg.Timeout = httpTimeout
	cfg.Logger = logger
	client := httpclient.DefaultFactory.CreateClientWithConfig("catalog_m3u", cfg)
	httpclient.DefaultRegistry.Register("catalog_m3u", client)
	return &Loader{
		source:     source,
		selfName:   selfName,
		httpClient: client,
		logger:     logger,
	}
}

// Fetch retrieves the raw playlist bytes from the configured source.
func (l *Loader) Fetch(ctx context.Context) (io.ReadCloser, error) {
	if isAbsoluteURL(l.source) {
		resp, err := l.httpClient.Get(ctx, l.source)
		if err != nil {
			return nil, apperr.Wrap(apperr.SourceUnavailable, "fetching M3U playlist", err)
		}
		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, apperr.Newf(apperr.SourceUnavailable, "M3U source returned HTTP %d", resp.StatusCode)
		}
		return resp.Body, nil
	}

	f, err := os.Open(l.source)
	if err != nil {
		return nil, apperr.Wrap(apperr.SourceUnavailable, "reading M3U file", err)
	}
	return f, nil
}

// Load fetches and parses the playlist into a fresh channel slice. Parse
// errors on individual entries are skipped silently (§4.1); a transport
// failure surfaces as apperr.SourceUnavailable with no channels returned.
func (l *Loader) Load(ctx context.Context) ([]models.Channel, error) {
	if l.source == "" {
		return nil, apperr.New(apperr.SourceUnavailable, "no M3U source configured")
	}

	body, err := l.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var channels []models.Channel

	parser := &m3u.Parser{
		Dedup: true,
		OnEntry: func(entry *m3u.Entry) error {
			ch := toChannel(entry)
			if ch.DisplayName == l.selfName {
				return nil
			}
			if ch.ID == "" {
				ch.ID = models.NewChannelID()
			}
			channels = append(channels, ch)
			return nil
		},
		OnError: func(lineNum int, err error) {
			l.logger.Debug("skipping malformed M3U entry",
				slog.Int("line", lineNum), slog.String("error", err.Error()))
		},
	}

	if err := parser.ParseCompressed(body); err != nil {
		return nil, apperr.Wrap(apperr.SourceUnavailable, "parsing M3U playlist", err)
	}

	return channels, nil
}

func toChannel(e *m3u.Entry) models.Channel {
	ch := models.Channel{
		ID:          e.TvgID,
		DisplayName: e.Title,
		LogoURL:     e.TvgLogo,
		StreamURL:   e.URL,
		Group:       e.GroupTitle,
	}
	if e.ChannelNumber > 0 {
		ch.ChannelNumber = strconv.Itoa(e.ChannelNumber)
	}
	if ch.DisplayName == "" {
		ch.DisplayName = e.TvgName
	}
	return ch
}

func isAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}
