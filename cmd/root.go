package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/scoreguard/internal/config"
	"github.com/KaramelBytes/scoreguard/internal/logging"
)

var (
	// Global flags
	cfgFile      string
	debug        bool
	flagLogLevel string

	// Loaded configuration and logger
	cfg    *cfgpkg.Global
	logger *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "scoreguard",
	Short: "ScoreGuard: flag anomalous student scores in class score sheets",
	Long: `ScoreGuard reads a score sheet (CSV, TSV or XLSX) with a student ID column, a class
column and one column per subject, computes per-subject Z-scores over the selected classes
and reports every student whose |z| exceeds the threshold in at least one subject.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("✗ Error:"), err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.scoreguard/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug|info|warn|error (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: fall back to defaults so every command still runs
		warnf(os.Stderr, "Warning: failed to load config: %v", err)
		c = cfgpkg.Default()
	}
	cfg = c

	f := rootCmd.PersistentFlags()
	if f.Changed("log-level") && flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if debug {
		cfg.LogLevel = "debug"
	}

	l, err := logging.NewFromConfig(cfg)
	if err != nil {
		warnf(os.Stderr, "Warning: %v; logging to stderr", err)
		l = logging.Global()
	}
	logger = l
	logging.SetGlobal(l)
}

func successf(w io.Writer, format string, a ...any) {
	fmt.Fprintf(w, "%s %s\n", color.GreenString("✓"), fmt.Sprintf(format, a...))
}

func warnf(w io.Writer, format string, a ...any) {
	fmt.Fprintf(w, "%s %s\n", color.YellowString("⚠"), fmt.Sprintf(format, a...))
}

func headingf(w io.Writer, format string, a ...any) {
	fmt.Fprintln(w, color.CyanString(format, a...))
}
