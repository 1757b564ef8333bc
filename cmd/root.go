// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/netreplay/internal/config"
	"firestige.xyz/netreplay/internal/log"
	"firestige.xyz/netreplay/pkg/response"
)

var (
	// Global flags
	configFile string
	verbose    bool

	// cfg is loaded before any subcommand runs.
	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "netreplay",
	Short: "netreplay - capture and replay tooling for probe response logs",
	Long: `netreplay works with the response logs of network-measurement probes:
append-only capture files of framed response records (packets, socket names,
destination addresses, TTLs, timestamps) that let probe behaviour be replayed
deterministically and offline.

Commands:
  convert   turn binary .net logs into their JSON document form
  inspect   dump a log record by record (binary or JSON, auto-detected)
  record    run an ICMP echo probe and capture its response log`,
	Version: "0.1.0",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Log.Level = "debug"
		}
		return log.Init(cfg.Log)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (default: ./netreplay.yml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable debug logging")
}

// layoutFromName maps the configured producer layout name onto a Layout.
func layoutFromName(name string) (response.Layout, error) {
	switch name {
	case "", "linux-le-64":
		return response.LinuxLE64, nil
	case "linux-le-32":
		return response.LinuxLE32, nil
	default:
		return response.Layout{}, fmt.Errorf("unknown layout %q (linux-le-64 or linux-le-32)", name)
	}
}

// exitWithError prints error message and exits with code 1
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
