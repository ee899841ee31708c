package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/juju/loggo/v2"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose   bool
	quiet     bool
	jsonOut   bool
	logConfig string
)

var rootCmd = &cobra.Command{
	Use:   "poolctl",
	Short: "Inspect and exercise fixed-capacity memory pools",
	Long: `poolctl builds fixed-capacity memory and object pools and checks their
behaviour: the layout of the chunks a pool hands out, and how a shared object
pool holds up under many concurrent workers.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging()
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().
		StringVar(&logConfig, "log-config", "", `Logger levels, e.g. "<root>=DEBUG;weos.pool.objpool=TRACE"`)
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v\n", err)
		os.Exit(1)
	}
}

// setupLogging applies --log-config, or raises pool logging to DEBUG with
// --verbose.
func setupLogging() error {
	cfg := logConfig
	if cfg == "" && verbose {
		cfg = "weos=DEBUG"
	}
	if cfg == "" {
		return nil
	}
	if err := loggo.ConfigureLoggers(cfg); err != nil {
		return fmt.Errorf("invalid --log-config %q: %w", cfg, err)
	}
	return nil
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printError prints an error message
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format, args...)
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...interface{}) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// mark renders a check result.
func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}
