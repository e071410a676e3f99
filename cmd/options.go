package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/scoreguard/internal/analysis"
	"github.com/KaramelBytes/scoreguard/internal/scoretable"
)

// sheetFlags are the input flags shared by analyze and analyze-batch.
type sheetFlags struct {
	threshold  float64
	classes    []string
	subjects   []string
	delimiter  string
	decimal    string
	sheetName  string
	sheetIndex int
}

func (f *sheetFlags) register(c *cobra.Command) {
	c.Flags().Float64Var(&f.threshold, "threshold", analysis.DefaultThreshold,
		fmt.Sprintf("flag students with |z| above this value (%.1f-%.1f in steps of %.1f, default from config)",
			analysis.MinThreshold, analysis.MaxThreshold, analysis.ThresholdStep))
	c.Flags().StringSliceVar(&f.classes, "classes", nil, "comma-separated classes to include (default all; empty value selects none)")
	c.Flags().StringSliceVar(&f.subjects, "subjects", nil, "comma-separated subjects to score (default all)")
	c.Flags().StringVar(&f.delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab'")
	c.Flags().StringVar(&f.decimal, "decimal", "", "decimal separator for scores: '.'|'comma' (auto-detect if omitted)")
	c.Flags().StringVar(&f.sheetName, "sheet-name", "", "XLSX: sheet name to analyze")
	c.Flags().IntVar(&f.sheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
}

// loaderOptions resolves delimiter and decimal against the loaded config.
func (f *sheetFlags) loaderOptions(c *cobra.Command) (scoretable.Options, error) {
	delimiter, decimal := f.delimiter, f.decimal
	if !c.Flags().Changed("delimiter") && cfg != nil {
		delimiter = cfg.Delimiter
	}
	if !c.Flags().Changed("decimal") && cfg != nil {
		decimal = cfg.Decimal
	}
	opt, err := scoretable.ParseOptions(delimiter, decimal, f.sheetName, f.sheetIndex)
	if err != nil {
		return opt, fmt.Errorf("invalid input options: %w", err)
	}
	return opt, nil
}

// selection builds the analysis selection. An explicitly passed but empty
// --classes selects no class.
func (f *sheetFlags) selection(c *cobra.Command) (analysis.Selection, error) {
	sel := analysis.Selection{Threshold: f.threshold}
	if !c.Flags().Changed("threshold") && cfg != nil {
		sel.Threshold = cfg.Threshold
	}
	if err := analysis.CheckThresholdRange(sel.Threshold); err != nil {
		return sel, err
	}
	if c.Flags().Changed("classes") {
		sel.Classes = cleanList(f.classes)
	}
	if c.Flags().Changed("subjects") {
		sel.Subjects = cleanList(f.subjects)
	}
	return sel, nil
}

// cleanList trims entries and drops blanks; the result is never nil.
func cleanList(s []string) []string {
	out := []string{}
	for _, v := range s {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
