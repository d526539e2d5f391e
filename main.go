package main

import (
	"fmt"
	"os"

	"sphere-cms/internal/config"
	"sphere-cms/internal/logger"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	configPath string
	verbose    bool

	cfg *config.Config
)

// rootCmd serves the API when run without a subcommand.
var rootCmd = &cobra.Command{
	Use:           "sphere-cms",
	Short:         "Image gallery CMS with a golden-spiral sphere view",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		level := loaded.Logging.Level
		if verbose {
			level = "debug"
		}
		if err := logger.Init(level, loaded.Logging.Format); err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "sphere.yaml", "Config file (missing file means defaults)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func main() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		logger.Error("CLI", err.Error())
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
