// cmd/root.go
//
// Command tree for the rings binary.
//   - rings serve  → run the HTTP API
//   - rings solve  → solve a layout offline
//   - rings daily  → print a daily layout
//
// Every command loads .env (godotenv) and sets the zerolog level first.

package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/robalobadob/rings/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "rings",
	Short: "Rotating-ring puzzle server and tools",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
		level := os.Getenv("LOG_LEVEL")
		if level == "" {
			level = "info"
		}
		if lvl, err := zerolog.ParseLevel(level); err == nil {
			zerolog.SetGlobalLevel(lvl)
		}
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (default $RINGS_CONFIG)")
}

// loadConfig reads the configuration and applies its log level.
func loadConfig() config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	return cfg
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
