// Package config provides configuration management for MultiView using
// Viper: programmatic defaults, an optional YAML file, and environment
// variables layered on top. Five settings are named by the specification
// as bare, unprefixed environment variables and are bound explicitly;
// every other setting lives under the MULTIVIEW_ prefix.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/kikootwo/multiview/pkg/bytesize"
)

// Default configuration values.
const (
	defaultServerPort       = 8080
	defaultReadTimeout      = 30 * time.Second
	defaultWriteTimeout     = 0 // streaming response, no write deadline
	defaultShutdownTimeout  = 10 * time.Second
	defaultIdleTimeout      = 60 * time.Second
	defaultMaxStreamSize    = 500 * 1024 * 1024 // 500MB
	defaultColdStartDeadline = 30 * time.Second
	defaultStopGrace        = 3 * time.Second
	defaultWatchdogInterval = 5 * time.Second
	defaultChunkSize        = 64 * 1024 // 64 KiB
	defaultViewerQueueDepth = 100
	defaultHTTPTimeout      = 15 * time.Second
	defaultLogRingSize      = 1000
)

// Config holds all configuration for the process.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Encoder   EncoderConfig   `mapstructure:"encoder"`
	Broadcast BroadcastConfig `mapstructure:"broadcast"`
	Watchdog  WatchdogConfig  `mapstructure:"watchdog"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig holds structured logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
	RingSize   int    `mapstructure:"ring_size"`
}

// CatalogConfig holds M3U catalog loader configuration.
type CatalogConfig struct {
	// Source is the M3U playlist location: an absolute URL or a local path.
	Source string `mapstructure:"source"`
	// SelfName is filtered out of the loaded catalog by display name to
	// avoid the service relaying its own broadcast (§4.1 feedback avoidance).
	SelfName    string        `mapstructure:"self_name"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
}

// EncoderConfig holds encoder-probe configuration.
type EncoderConfig struct {
	// Preference is "auto", a profile name, or "cpu" (§6 ENCODER_PREFERENCE).
	Preference  string        `mapstructure:"preference"`
	BinaryPath  string        `mapstructure:"binary_path"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
	// ReconnectTimeoutMicros is the per-input -rw_timeout/-timeout value, in
	// microseconds, matching the prototype's 15000000 default.
	ReconnectTimeoutMicros int64 `mapstructure:"reconnect_timeout_micros"`
	UserAgent              string `mapstructure:"user_agent"`
}

// BroadcastConfig holds fan-out tuning.
type BroadcastConfig struct {
	ChunkSize         int           `mapstructure:"chunk_size"`
	ViewerQueueDepth  int           `mapstructure:"viewer_queue_depth"`
	MaxStreamSize     bytesize.Size `mapstructure:"max_stream_size"`
	ColdStartDeadline time.Duration `mapstructure:"cold_start_deadline"`
	StopGrace         time.Duration `mapstructure:"stop_grace"`
	RestartWindow     time.Duration `mapstructure:"restart_window"`
}

// WatchdogConfig holds idle/size watchdog tuning.
type WatchdogConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

// Load builds a Config from defaults, an optional config file, and
// environment variables, in that ascending order of precedence.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("multiview")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/multiview")
		v.AddConfigPath("$HOME/.multiview")
	}

	v.SetEnvPrefix("MULTIVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindBareEnvVars(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		byteSizeDecodeHook,
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// bindBareEnvVars binds the five environment variables §6 names without the
// MULTIVIEW_ prefix directly onto their nested config keys. They override
// the config file and the defaults. viper consults AutomaticEnv before
// BindEnv names, so a MULTIVIEW_-prefixed variable for the same key (e.g.
// MULTIVIEW_SERVER_PORT) wins over the bare one.
func bindBareEnvVars(v *viper.Viper) {
	_ = v.BindEnv("catalog.source", "M3U_SOURCE")
	_ = v.BindEnv("encoder.preference", "ENCODER_PREFERENCE")
	_ = v.BindEnv("watchdog.idle_timeout", "IDLE_TIMEOUT")
	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("broadcast.max_stream_size", "MAX_STREAM_SIZE")
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultReadTimeout)
	v.SetDefault("server.write_timeout", defaultWriteTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)
	v.SetDefault("logging.ring_size", defaultLogRingSize)

	v.SetDefault("catalog.source", "")
	v.SetDefault("catalog.self_name", "MultiView")
	v.SetDefault("catalog.http_timeout", defaultHTTPTimeout)

	v.SetDefault("encoder.preference", "auto")
	v.SetDefault("encoder.binary_path", "ffmpeg")
	v.SetDefault("encoder.probe_timeout", 5*time.Second)
	v.SetDefault("encoder.reconnect_timeout_micros", int64(15_000_000))
	v.SetDefault("encoder.user_agent", "MultiView/1.0")

	v.SetDefault("broadcast.chunk_size", defaultChunkSize)
	v.SetDefault("broadcast.viewer_queue_depth", defaultViewerQueueDepth)
	v.SetDefault("broadcast.max_stream_size", int64(defaultMaxStreamSize))
	v.SetDefault("broadcast.cold_start_deadline", defaultColdStartDeadline)
	v.SetDefault("broadcast.stop_grace", defaultStopGrace)
	v.SetDefault("broadcast.restart_window", 5*time.Second)

	v.SetDefault("watchdog.interval", defaultWatchdogInterval)
	v.SetDefault("watchdog.idle_timeout", defaultIdleTimeout)
}

// byteSizeDecodeHook lets MAX_STREAM_SIZE carry a human-readable string
// ("500MB") in addition to a raw byte count, mirroring the teacher's
// ByteSize mapstructure decode hook.
func byteSizeDecodeHook(f reflect.Type, t reflect.Type, data any) (any, error) {
	if t != reflect.TypeOf(bytesize.Size(0)) {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return bytesize.Parse(v)
	case int64:
		return bytesize.Size(v), nil
	case int:
		return bytesize.Size(v), nil
	default:
		return data, nil
	}
}
