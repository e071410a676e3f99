package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/scoreguard/internal/analysis"
	"github.com/KaramelBytes/scoreguard/internal/logging"
	"github.com/KaramelBytes/scoreguard/internal/render"
	"github.com/KaramelBytes/scoreguard/internal/scoretable"
	"github.com/KaramelBytes/scoreguard/internal/utils"
)

var (
	anaFlags      sheetFlags
	anaOutputPath string
	anaExportPath string
	anaChartsDir  string
	anaFormat     string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Flag anomalous students in a CSV/TSV/XLSX score sheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
		switch anaFormat {
		case "text", "markdown", "json":
		default:
			return fmt.Errorf("unsupported --format: %s (use text|markdown|json)", anaFormat)
		}
		opt, err := anaFlags.loaderOptions(cmd)
		if err != nil {
			return err
		}
		sel, err := anaFlags.selection(cmd)
		if err != nil {
			return err
		}

		tbl, err := scoretable.LoadFile(args[0], opt)
		if err != nil {
			return err
		}
		res, err := analysis.Analyze(tbl, sel)
		if errors.Is(err, analysis.ErrEmptyPopulation) {
			warnf(errOut, "No students in the selected classes (available: %s)", strings.Join(tbl.Classes(), ", "))
			return nil
		}
		if err != nil {
			return err
		}
		res.RunID = uuid.New().String()
		logging.Debug("analysis completed",
			"run_id", res.RunID,
			"source", res.Source,
			"students", res.Filtered.Len(),
			"subjects", len(res.Subjects),
			"anomalies", res.AnomalyCount(),
		)
		for _, w := range res.Warnings {
			warnf(errOut, "%s", w)
		}

		if err := printResult(out, res, anaFormat); err != nil {
			return err
		}

		if anaOutputPath != "" {
			if err := utils.SafeWriteFile(anaOutputPath, []byte(res.Markdown())); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			successf(out, "Wrote report to %s", anaOutputPath)
		}
		if anaExportPath != "" {
			path := anaExportPath
			if fi, err := os.Stat(path); err == nil && fi.IsDir() {
				path = filepath.Join(path, analysis.ExportFileName)
			}
			b, err := res.AnomalyCSV()
			if err != nil {
				return err
			}
			if err := utils.SafeWriteFile(path, b); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			successf(out, "Exported %d anomalous students to %s", res.AnomalyCount(), path)
		}
		if anaChartsDir != "" {
			paths, err := render.WriteCharts(anaChartsDir, res)
			if err != nil {
				return err
			}
			successf(out, "Wrote %d charts to %s", len(paths), anaChartsDir)
		}
		return nil
	},
}

// printResult writes the result to w in the given format.
func printResult(w io.Writer, res *analysis.Result, format string) error {
	switch format {
	case "json":
		b, err := utils.PrettyJSON(res)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(b))
	case "markdown":
		fmt.Fprintln(w, res.Markdown())
	default:
		headingf(w, "%s: %d students in %d classes, threshold |z| > %.1f",
			res.Source, res.Filtered.Len(), len(res.Classes), res.Threshold)
		headingf(w, "\nStudents (%d)", res.Filtered.Len())
		render.ScoresTable(w, res.Filtered)
		headingf(w, "\nSubjects")
		render.StatsTable(w, res)
		headingf(w, "\nClass summary")
		render.SummaryTable(w, res)
		if res.AnomalyCount() == 0 {
			fmt.Fprintln(w, "\nNo anomalous students.")
			return nil
		}
		headingf(w, "\nAnomalous students (%d)", res.AnomalyCount())
		render.AnomaliesTable(w, res)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	anaFlags.register(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&anaOutputPath, "output", "o", "", "optional path to write the Markdown report")
	analyzeCmd.Flags().StringVar(&anaExportPath, "export", "", "optional path (file or directory) for the anomaly CSV")
	analyzeCmd.Flags().StringVar(&anaChartsDir, "charts-dir", "", "optional directory for PNG charts")
	analyzeCmd.Flags().StringVar(&anaFormat, "format", "text", "stdout format: text|markdown|json")
}
