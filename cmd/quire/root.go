package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/quirelabs/quire/internal/config"
	"github.com/quirelabs/quire/internal/logger"
)

var (
	cfg       *config.Config
	logCloser io.Closer

	flagConfig   string
	flagLogLevel string
	flagLogFile  string
)

var rootCmd = &cobra.Command{
	Use:     "quire",
	Short:   "Notebook document tool",
	Long:    "Quire loads, inspects and evaluates cell-tree notebooks through a reversible action pipeline.",
	Version: "0.1.0",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(flagConfig)
		if err != nil {
			return err
		}
		if flagLogLevel != "" {
			cfg.Logger.Level = flagLogLevel
		}
		if flagLogFile != "" {
			cfg.Logger.File = flagLogFile
		}
		logCloser, err = logger.InitFromConfig(cfg.Logger)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: user config dir)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "log output file (default: stderr)")
}
