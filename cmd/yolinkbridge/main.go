// yolinkbridge - YoLink cloud to InfluxDB / local MQTT bridge
//
// The bridge authenticates against the YoLink cloud, enumerates the home's
// sensors, subscribes to their reports on the vendor MQTT broker, and
// forwards readings to InfluxDB and state changes to a local MQTT broker.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nerrad567/yolink-bridge/internal/infrastructure/config"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

const (
	// defaultConfigPath is used when neither --config nor YOLINK_CONFIG is set.
	defaultConfigPath = "configs/config.yaml"

	// configEnvVar names the environment variable holding the config path.
	configEnvVar = "YOLINK_CONFIG"
)

// options holds the persistent command-line flags.
type options struct {
	configPath string
	debug      bool
}

func main() {
	// Cancel on Ctrl+C or SIGTERM for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Running the root command with no
// subcommand is the same as "run".
func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "yolinkbridge",
		Short:         "Bridge YoLink sensor reports to InfluxDB and a local MQTT broker",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file path (default $"+configEnvVar+" or "+defaultConfigPath+")")
	flags.BoolVar(&opts.debug, "debug", false, "force debug logging")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the bridge until interrupted",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd.Context(), opts)
			},
		},
		newDevicesCmd(opts),
	)

	return root
}

// getConfigPath returns the configuration file path.
// Priority: --config flag, then YOLINK_CONFIG, then the default.
func getConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv(configEnvVar); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadConfig loads and validates the configuration selected by opts.
func loadConfig(opts *options) (*config.Config, string, error) {
	path := getConfigPath(opts.configPath)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, fmt.Errorf("loading config: %w", err)
	}
	if opts.debug {
		cfg.Logging.Level = "debug"
	}
	return cfg, path, nil
}
