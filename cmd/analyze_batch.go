package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/scoreguard/internal/analysis"
	"github.com/KaramelBytes/scoreguard/internal/logging"
	"github.com/KaramelBytes/scoreguard/internal/render"
	"github.com/KaramelBytes/scoreguard/internal/scoretable"
	"github.com/KaramelBytes/scoreguard/internal/utils"
)

const (
	reportSuffix  = ".report.md"
	anomalySuffix = ".anomalies.csv"
)

var (
	abFlags  sheetFlags
	abOutDir string
	abCharts bool
	abQuiet  bool
)

var analyzeBatchCmd = &cobra.Command{
	Use:   "analyze-batch <files...>",
	Short: "Analyze multiple score sheets and write a report and anomaly CSV for each",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
		files := expandInputs(args)
		if len(files) == 0 {
			return fmt.Errorf("no input files matched")
		}

		opt, err := abFlags.loaderOptions(cmd)
		if err != nil {
			return err
		}
		sel, err := abFlags.selection(cmd)
		if err != nil {
			return err
		}
		outDir := abOutDir
		if !cmd.Flags().Changed("out-dir") && cfg != nil {
			outDir = cfg.OutputDir
		}
		charts := abCharts
		if !cmd.Flags().Changed("charts") && cfg != nil {
			charts = cfg.Charts
		}
		if err := utils.EnsureDir(outDir); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}

		total, anomalous, skipped := len(files), 0, 0
		for i, path := range files {
			if !abQuiet {
				fmt.Fprintf(out, "[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			tbl, err := scoretable.LoadFile(path, opt)
			if err != nil {
				return err
			}
			res, err := analysis.Analyze(tbl, sel)
			if errors.Is(err, analysis.ErrEmptyPopulation) {
				warnf(errOut, "%s: no students in the selected classes, skipped", filepath.Base(path))
				skipped++
				continue
			}
			if err != nil {
				return err
			}
			res.RunID = uuid.New().String()

			base := utils.SafeBase(path)
			if opt.SheetName != "" {
				base += "__sheet-" + utils.SafeBase(opt.SheetName)
			}
			reportPath := utils.UniquePath(outDir, base, reportSuffix)
			stem := strings.TrimSuffix(filepath.Base(reportPath), reportSuffix)
			if stem != base && !abQuiet {
				warnf(out, "Detected existing output, writing %s to avoid overwrite.", filepath.Base(reportPath))
			}
			csvPath := filepath.Join(outDir, stem+anomalySuffix)

			if err := utils.SafeWriteFile(reportPath, []byte(res.Markdown())); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			b, err := res.AnomalyCSV()
			if err != nil {
				return err
			}
			if err := utils.SafeWriteFile(csvPath, b); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			if charts {
				if _, err := render.WriteCharts(filepath.Join(outDir, stem+"_charts"), res); err != nil {
					return err
				}
			}
			logging.Debug("batch item written",
				"run_id", res.RunID,
				"source", path,
				"report", reportPath,
				"anomalies", res.AnomalyCount(),
			)
			anomalous += res.AnomalyCount()
			if !abQuiet {
				successf(out, "%s: %d anomalous of %d students -> %s", filepath.Base(path), res.AnomalyCount(), res.Filtered.Len(), filepath.Base(reportPath))
			}
		}
		successf(out, "Analyzed %d of %d files, %d anomalous students", total-skipped, total, anomalous)
		return nil
	},
}

// expandInputs resolves globs, keeps literal paths that exist, dedupes and
// sorts the result.
func expandInputs(args []string) []string {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			// treat as literal path if exists
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files
}

func init() {
	rootCmd.AddCommand(analyzeBatchCmd)
	abFlags.register(analyzeBatchCmd)
	analyzeBatchCmd.Flags().StringVar(&abOutDir, "out-dir", ".", "directory for reports and anomaly CSVs (default from config)")
	analyzeBatchCmd.Flags().BoolVar(&abCharts, "charts", false, "also write PNG charts per file (default from config)")
	analyzeBatchCmd.Flags().BoolVar(&abQuiet, "quiet", false, "suppress progress and non-essential output")
}
