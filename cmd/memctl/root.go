package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/memkit/alloc"
	"github.com/joshuapare/memkit/bootmap"
	"github.com/joshuapare/memkit/cmd/memctl/logger"
	"github.com/joshuapare/memkit/phys"
)

var (
	// Global flags
	verbose bool
	quiet   bool
	jsonOut bool
	logDir  string
	logOn   bool
)

var rootCmd = &cobra.Command{
	Use:   "memctl",
	Short: "Inspect and manipulate physical memory images",
	Long: `memctl manages file-backed physical memory images. An image holds a
heap managed by a free-list allocator, a pool of 4 KiB frames managed by a
page descriptor table and, optionally, an Sv39 page table built from those
frames. Every change is flushed back to the image file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, err := logger.Init(logger.Options{Enabled: logOn || logDir != "", LogDir: logDir})
		if err != nil {
			return fmt.Errorf("failed to start logging: %w", err)
		}
		if path != "" {
			printVerbose("Logging to %s\n", path)
		}
		logger.Debug("command start", "cmd", cmd.CommandPath(), "args", args)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&logOn, "log", false, "Write a diagnostic log to ~/.memctl/logs")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "Write the diagnostic log to this directory")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("command failed", "err", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// parseAddr parses an address or size argument. Sizes may carry a K, M or
// G suffix.
func parseAddr(what, s string) (uint64, error) {
	v, err := bootmap.ParseValue(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", what, err)
	}
	return uint64(v), nil
}

// guard converts a precondition panic from the allocators into an error so
// a bad address on the command line does not crash the tool.
func guard(fn func()) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if e, ok := r.(error); ok && (errors.Is(e, alloc.ErrPrecondition) || errors.Is(e, phys.ErrOutOfRange)) {
			err = e
			return
		}
		panic(r)
	}()
	fn()
	return nil
}
