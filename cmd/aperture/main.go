// Package main implements the aperture CLI: a thin front-end over the
// analysis pipeline, the quality engine, and the admission gate.
//
// # File Index
//
//   - main.go     - entry point, rootCmd, persistent flags, logger wiring
//   - analyze.go  - `aperture analyze` - run the pipeline over one snapshot
//   - gate.go     - `aperture gate`    - admit or reject head against base
//   - exit.go     - exitErr, the exit-code-on-verdict plumbing
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aperturehq/aperture/internal/logging"
)

var (
	flagVerbose   bool
	flagWorkspace string
	flagPolicy    string
	flagCacheDir  string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "aperture",
	Short:         "Repository quality assessment: admission gating over a normalized risk vector",
	Version:       "0.1.0",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if flagVerbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}

		ws := flagWorkspace
		if ws == "" {
			ws, _ = os.Getwd()
		}
		logPath := logging.DefaultLogPath(ws)
		if err := os.MkdirAll(dirOf(logPath), 0o755); err == nil {
			if f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
				level := "info"
				if flagVerbose {
					level = "debug"
				}
				logging.Initialize(f, logging.Options{Enabled: true, Level: level, JSONFormat: true})
			}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func dirOf(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[:i]
		}
	}
	return "."
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug-level logging")
	rootCmd.PersistentFlags().StringVarP(&flagWorkspace, "workspace", "w", "", "workspace directory (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&flagPolicy, "policy", "", "path to a policy YAML document (default: built-in defaults)")
	rootCmd.PersistentFlags().StringVar(&flagCacheDir, "cache-dir", "", "analyzer-output cache directory (default: <analyzed path>/.aperture/cache; \"-\" disables caching)")

	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newGateCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var ee *exitErr
		if errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, ee.msg)
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitInfra)
	}
}
