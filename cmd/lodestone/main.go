// ABOUTME: Main entry point for the lodestone CLI application
// ABOUTME: Sets up the root command and executes the CLI
package main

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/gillisandrew/lodestone/internal/cmd"
	"github.com/gillisandrew/lodestone/internal/cmd/inspect"
	"github.com/gillisandrew/lodestone/internal/cmd/read"
	"github.com/gillisandrew/lodestone/internal/cmd/trust"
)

var (
	// Global flags
	configPath string
	verbose    bool
	quiet      bool

	// Build-time variables (injected via -ldflags)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// cmdContext is shared with every subcommand. PersistentPreRun fills it in
// once flag parsing has happened.
var cmdContext = &cmd.CommandContext{}

var rootCmd = &cobra.Command{
	Use:   "lodestone",
	Short: "Read and verify content provenance manifests",
	Long: `Lodestone reads the provenance manifests embedded in assets, normalizes
the manifest graph into a bounded tree, and evaluates the signing chain
against configured trust material.

Reports render as text or as canonical JSON with a stable byte layout,
so two reads of the same asset always compare equal.`,
	PersistentPreRun: func(cobraCmd *cobra.Command, args []string) {
		cmdContext.Logger = newLogger(quiet, verbose)
		cmdContext.ConfigPath = configPath
	},
}

func init() {
	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging (debug level)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Enable quiet mode (warnings and errors only)")
}

// newLogger builds the CLI logger. It writes to stderr to keep stdout clean
// for report payloads.
func newLogger(quiet, verbose bool) *pterm.Logger {
	var logger *pterm.Logger
	if quiet {
		logger = pterm.DefaultLogger.WithTime(false).WithLevel(pterm.LogLevelWarn)
	} else if verbose {
		logger = pterm.DefaultLogger.WithTime(false).WithLevel(pterm.LogLevelDebug)
	} else {
		logger = pterm.DefaultLogger.WithTime(false).WithLevel(pterm.LogLevelInfo)
	}
	return logger.WithWriter(os.Stderr)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cobraCmd *cobra.Command, args []string) {
			fmt.Printf("lodestone version %s\n", Version)
			fmt.Printf("Git commit: %s\n", Commit)
			fmt.Printf("Build time: %s\n", BuildTime)
		},
	}
}

func main() {
	// Failures before PersistentPreRun still need a logger
	cmdContext.Logger = newLogger(false, false)

	rootCmd.AddCommand(read.NewReadCommand(cmdContext))
	rootCmd.AddCommand(trust.NewTrustCommand(cmdContext))
	rootCmd.AddCommand(inspect.NewInspectCommand(cmdContext))
	rootCmd.AddCommand(newVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		cmdContext.Logger.Error("Command execution failed", cmdContext.Logger.Args("error", err))
		os.Exit(1)
	}
}
