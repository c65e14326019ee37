package cmd

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kikootwo/multiview/internal/config"
	"github.com/kikootwo/multiview/pkg/bytesize"
	"github.com/kikootwo/multiview/pkg/duration"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing multiview configuration.`,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the effective configuration",
	Long: `Dump the effective configuration values in YAML format.

This shows all available configuration options with their effective values:
the defaults, overridden by any config file and environment variables found.
You can redirect this output to a file to create a configuration template:

  multiview config dump > multiview.yaml

Configuration can be set via:
  - Config file (multiview.yaml, /etc/multiview, $HOME/.multiview)
  - Environment variables (MULTIVIEW_SERVER_PORT, MULTIVIEW_ENCODER_PREFERENCE, etc.)
  - The five bare environment variables named in the specification:
    M3U_SOURCE, ENCODER_PREFERENCE, IDLE_TIMEOUT, PORT, MAX_STREAM_SIZE

Environment variables otherwise use the MULTIVIEW_ prefix and underscores
for nesting. Example: server.port -> MULTIVIEW_SERVER_PORT`,
	RunE: runConfigDump,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}

// toMap converts a struct to a map, formatting durations and sizes for human readability.
func toMap(v any) map[string]any {
	result := make(map[string]any)
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		key := fieldType.Tag.Get("mapstructure")
		if key == "" {
			key = fieldType.Name
		}

		switch v := field.Interface().(type) {
		case time.Duration:
			result[key] = duration.Format(v)
		case bytesize.Size:
			result[key] = bytesize.Format(v)
		default:
			if field.Kind() == reflect.Struct {
				result[key] = toMap(field.Interface())
			} else {
				result[key] = field.Interface()
			}
		}
	}
	return result
}

func runConfigDump(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cfgMap := toMap(cfg)

	yamlData, err := yaml.Marshal(cfgMap)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	var b strings.Builder
	b.WriteString("# multiview Configuration File\n")
	b.WriteString("# =============================\n")
	b.WriteString("#\n")
	b.WriteString("# Values shown below are the effective configuration (defaults plus overrides).\n")
	b.WriteString("# Duration format: 30s, 5m, 1h\n")
	b.WriteString("# Size format: 500MB, 1GB\n")
	b.WriteString("#\n")
	b.WriteString("# Bare environment variable overrides (override the file; a MULTIVIEW_ variable for the same key wins):\n")
	b.WriteString("#   M3U_SOURCE, ENCODER_PREFERENCE, IDLE_TIMEOUT, PORT, MAX_STREAM_SIZE\n")
	b.WriteString("#\n")
	b.WriteString("# Prefixed environment variable overrides:\n")
	b.WriteString("#   MULTIVIEW_SERVER_HOST, MULTIVIEW_SERVER_PORT, MULTIVIEW_LOGGING_LEVEL, etc.\n")
	b.WriteString("#\n\n")

	fmt.Print(b.String())
	fmt.Print(string(yamlData))

	return nil
}
