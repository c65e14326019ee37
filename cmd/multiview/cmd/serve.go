package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kikootwo/multiview/internal/broadcast"
	"github.com/kikootwo/multiview/internal/catalog"
	"github.com/kikootwo/multiview/internal/compiler"
	"github.com/kikootwo/multiview/internal/config"
	"github.com/kikootwo/multiview/internal/encoder"
	internalhttp "github.com/kikootwo/multiview/internal/http"
	"github.com/kikootwo/multiview/internal/http/handlers"
	"github.com/kikootwo/multiview/internal/logcapture"
	"github.com/kikootwo/multiview/internal/orchestrator"
	"github.com/kikootwo/multiview/internal/supervisor"
	"github.com/kikootwo/multiview/internal/version"
	"github.com/kikootwo/multiview/internal/watchdog"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the multiview server",
	Long: `Start the multiview HTTP server.

The server loads the configured M3U catalog on demand, probes the host for
a hardware-accelerated encoder, and serves:
- the channel catalog and layout/audio control API
- a single continuous MPEG-TS stream at /stream
- runtime status and forced-stop control at /control`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logBuffer := logcapture.New(cfg.Logging.RingSize)
	slog.SetDefault(slog.New(logcapture.Wrap(slog.Default().Handler(), logBuffer)))
	logger := slog.Default()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loader := catalog.NewLoader(cfg.Catalog.Source, cfg.Catalog.SelfName, cfg.Catalog.HTTPTimeout, logger)
	cat := catalog.New(loader, logger)
	if cfg.Catalog.Source != "" {
		if err := cat.Load(ctx); err != nil {
			logger.Warn("initial catalog load failed, channel list will be empty until /api/channels/refresh succeeds", slog.Any("error", err))
		}
	}

	prober := encoder.NewProber(cfg.Encoder.BinaryPath, cfg.Encoder.ProbeTimeout, logger)
	profile, err := prober.Select(ctx, cfg.Encoder.Preference)
	if err != nil {
		return fmt.Errorf("selecting encoder profile: %w", err)
	}
	logger.Info("encoder selected", slog.String("name", profile.Name), slog.String("codec", profile.Codec))

	sup := supervisor.New(cfg.Encoder.BinaryPath, cfg.Broadcast.StopGrace, logger)
	bcast := broadcast.New(logger)

	network := compiler.NetworkTuning{
		ReconnectTimeoutMicros: cfg.Encoder.ReconnectTimeoutMicros,
		UserAgent:              cfg.Encoder.UserAgent,
	}

	svc := orchestrator.New(cat, sup, bcast, profile, network, cfg.Broadcast.ColdStartDeadline, logger)

	wd := watchdog.New(svc, cfg.Watchdog.Interval, cfg.Watchdog.IdleTimeout, uint64(cfg.Broadcast.MaxStreamSize.Bytes()), logger)
	wd.Start(ctx)
	defer wd.Stop()

	serverConfig := internalhttp.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
	server := internalhttp.NewServer(serverConfig, logger, version.Version)

	streamURL := "/stream"

	channelsHandler := handlers.NewChannelsHandler(svc, logger)
	channelsHandler.Register(server.API())

	layoutHandler := handlers.NewLayoutHandler(svc, cfg.Watchdog.IdleTimeout, logger)
	layoutHandler.Register(server.API())

	audioHandler := handlers.NewAudioHandler(svc, cfg.Watchdog.IdleTimeout, logger)
	audioHandler.Register(server.API())

	controlHandler := handlers.NewControlHandler(svc, cfg.Watchdog.IdleTimeout, cfg.Encoder.Preference, streamURL, logBuffer, logger)
	controlHandler.Register(server.API())

	streamHandler := handlers.NewStreamHandler(svc, logger)
	streamHandler.Register(server.API())
	streamHandler.RegisterChiRoutes(server.Router())

	proxyImageHandler := handlers.NewProxyImageHandler(nil, logger)
	proxyImageHandler.Register(server.API())
	proxyImageHandler.RegisterChiRoutes(server.Router())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		_ = svc.Stop(context.Background())
		cancel()
	}()

	logger.Info("starting multiview server",
		slog.String("host", serverConfig.Host),
		slog.Int("port", serverConfig.Port),
		slog.String("version", version.Version),
	)

	return server.ListenAndServe(ctx)
}
