// Package render draws analysis results as terminal tables and PNG charts.
package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/KaramelBytes/scoreguard/internal/analysis"
	"github.com/KaramelBytes/scoreguard/internal/scoretable"
)

func newTable(w io.Writer, header []string) *tablewriter.Table {
	tw := tablewriter.NewWriter(w)
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	tw.SetHeader(header)
	return tw
}

func scoreRow(id, class string, scores []scoretable.Score) []string {
	row := make([]string, 0, len(scores)+2)
	row = append(row, id, class)
	for _, s := range scores {
		row = append(row, s.String())
	}
	return row
}

// ScoresTable prints every record of t. Missing scores are left blank.
func ScoresTable(w io.Writer, t *scoretable.Table) {
	header := append([]string{t.IDColumn, t.ClassColumn}, t.Subjects...)
	tw := newTable(w, header)
	for _, rec := range t.Records {
		tw.Append(scoreRow(rec.StudentID, rec.Class, rec.Scores))
	}
	tw.Render()
}

// AnomaliesTable prints the flagged students with their raw scores.
func AnomaliesTable(w io.Writer, r *analysis.Result) {
	header := []string{analysis.ExportIDHeader, analysis.ExportClassHeader}
	header = append(header, r.Subjects...)
	header = append(header, "Flagged")
	tw := newTable(w, header)
	for _, a := range r.Anomalies {
		tw.Append(append(scoreRow(a.StudentID, a.Class, a.Scores), strings.Join(a.Flagged, ", ")))
	}
	tw.Render()
}

// SummaryTable prints the per-class totals.
func SummaryTable(w io.Writer, r *analysis.Result) {
	tw := newTable(w, []string{"Class", "Students", "Anomalous"})
	total, anomalous := 0, 0
	for _, s := range r.Summary {
		tw.Append([]string{s.Class, strconv.Itoa(s.Total), strconv.Itoa(s.Anomalous)})
		total += s.Total
		anomalous += s.Anomalous
	}
	tw.SetFooter([]string{"Total", strconv.Itoa(total), strconv.Itoa(anomalous)})
	tw.Render()
}

// StatsTable prints mean, population std and anomaly count per subject.
func StatsTable(w io.Writer, r *analysis.Result) {
	tw := newTable(w, []string{"Subject", "Mean", "Std", "Anomalies", "Note"})
	for _, s := range r.Stats {
		note := ""
		if s.Degenerate {
			note = "zero variance"
		}
		tw.Append([]string{
			s.Subject,
			fmt.Sprintf("%.2f", s.Mean),
			fmt.Sprintf("%.2f", s.StdDev),
			strconv.Itoa(s.Anomalies),
			note,
		})
	}
	tw.Render()
}
