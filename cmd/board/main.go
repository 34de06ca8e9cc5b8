package main

import (
	"errors"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"statusboard/config"
	"statusboard/internal/logging"
	"statusboard/internal/presence"
)

var (
	configPath string
	logLevel   string
	baseURL    string

	cfg    *config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "board",
	Short:         "Headless statusboard client",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		cfg, err = config.LoadFile(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		if baseURL != "" {
			cfg.Board.BaseURL = baseURL
		}
		// A terminal client always gets console output.
		logger = logging.Setup(cfg.Log.Level, "development")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("STATUSBOARD_CONFIG"), "path to a TOML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")
	rootCmd.PersistentFlags().StringVar(&baseURL, "server", "", "server base URL")
	rootCmd.AddCommand(watchCmd, statusCmd, listCmd, logoutCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, presence.ErrNotLoggedIn) {
			log.Error().Msg("not logged in; pass --username and --password or set a token")
		} else {
			log.Error().Err(err).Msg("board")
		}
		os.Exit(1)
	}
}
