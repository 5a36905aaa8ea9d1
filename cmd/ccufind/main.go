// Ccufind locates CCU controllers on the local network.
//
// It sends the CCU Identify probe to the multicast group 224.0.0.1:43439 on
// every usable IPv4 interface and lists the controllers that answer.
//
// Usage:
//
//	ccufind [command] [flags]
//
// See 'ccufind --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/ccufind/internal/logging"
	"github.com/muurk/ccufind/internal/version"
)

var logLevel string

func main() {
	defer logging.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ccufind",
	Short: "CCU network discovery utility",
	Long: `Find CCU controllers on the local network.

ccufind probes every up, multicast-capable IPv4 interface with the CCU
Identify request and prints each controller that answers, once per host.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Silent unless --log-level or CCUFIND_LOG_LEVEL is set
		return logging.Initialize(logLevel)
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level (debug, info, warn, error); logs go to stderr")

	rootCmd.AddCommand(versionCmd)
}

var versionFormat string

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		switch versionFormat {
		case "json", "yaml":
			return printDocument(cmd.OutOrStdout(), versionFormat, version.Get())
		default:
			info := version.Get()
			fmt.Fprintf(cmd.OutOrStdout(), "ccufind %s (commit: %s, %s, %s)\n",
				info.Version, info.Commit, info.GoVersion, info.Platform)
			return nil
		}
	},
}

func init() {
	versionCmd.Flags().StringVar(&versionFormat, "format", "text", "Output format (text, json, yaml)")
}
