// Command convo runs the image conversion service and its tooling.
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/trunov/convo/internal/config"
)

const defaultConfigFile = "config.json"

var cfg = config.NewConfig()

var rootCmd = &cobra.Command{
	Use:   "convo",
	Short: "Convert images between raster formats",
	Long: `convo re-encodes raster images (png, jpg, webp, gif, bmp, tiff).

Run "convo serve" for the HTTP API or "convo convert" for a one-off local
conversion. Configuration is read from config.json and can be overridden
with CONVO_* environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		file, _ := cmd.Flags().GetString("config")
		if err := cfg.Read(file); err != nil {
			return err
		}
		setupLogging(cfg.Log)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", defaultConfigFile, "path to the JSON config file")

	rootCmd.AddCommand(serveCmd, convertCmd, migrateCmd)
}

func setupLogging(lc config.LogConfig) {
	level, err := zerolog.ParseLevel(lc.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if lc.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
