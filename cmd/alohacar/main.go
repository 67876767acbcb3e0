// alohacar decodes and presents phone-projection video and plays its audio.
//
// Usage:
//
//	alohacar [flags] <command> [args]
//
// Commands:
//
//	play     Replay an H.264 file through the decode and render pipeline
//	probe    Print framing, NAL unit types and SPS fields of an H.264 file
//	version  Print version information
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/lanikai/alohacar/internal/config"
	"github.com/lanikai/alohacar/internal/logging"
	"github.com/spf13/cobra"
)

// Populated via -ldflags="-X ...".
var GitRevisionId string

var log = logging.DefaultLogger.WithTag("alohacar")

var (
	flagConfig   string
	flagLogLevel string

	cfg *config.Config
)

func init() {
	// Windowing systems want their events handled on the main thread.
	runtime.LockOSThread()
}

var rootCmd = &cobra.Command{
	Use:   "alohacar",
	Short: "Phone projection media core",
	Long: `Decodes H.264 video from a phone projection dongle and presents it on a
GPU surface, and plays the phone's audio streams.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level = flagLogLevel
		}
		level, err := logging.ParseLevel(cfg.Log.Level)
		if err != nil {
			return err
		}
		logging.SetLevel("", level)
		return nil
	},
}

func loadConfig() (*config.Config, error) {
	path := flagConfig
	if path == "" {
		if _, err := os.Stat(config.DefaultPath); err != nil {
			return config.Default(), nil
		}
		path = config.DefaultPath
	}
	log.Debug("Loading configuration from %s", path)
	return config.Load(path)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		version()
	},
}

// version displays information and exits successfully (GNU convention)
func version() {
	fmt.Println("alohacar", GitRevisionId)
	fmt.Println("Copyright 2019 Lanikai Labs LLC. All rights reserved.")
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Configuration file (default: "+config.DefaultPath+" if present)")
	rootCmd.PersistentFlags().StringVarP(&flagLogLevel, "log-level", "l", "info", "Logging level: error, warn, info, debug or trace")

	defaultHelp := rootCmd.HelpFunc()
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if cmd == rootCmd {
			banner()
		}
		defaultHelp(cmd, args)
	})

	rootCmd.AddCommand(playCmd, probeCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
