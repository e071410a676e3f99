package analysis

import (
	"fmt"
	"strings"
)

// maxReportRows caps the anomaly rows listed in Markdown.
const maxReportRows = 200

// Markdown renders a compact report of the result.
func (r *Result) Markdown() string {
	var b strings.Builder
	b.WriteString("[SCORE SHEET SUMMARY]\n")
	if r.Source != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", r.Source))
	}
	if r.RunID != "" {
		b.WriteString(fmt.Sprintf("Run: %s\n", r.RunID))
	}
	if r.Filtered != nil && r.Filtered.Encoding != "" {
		b.WriteString(fmt.Sprintf("Encoding: %s\n", r.Filtered.Encoding))
	}
	b.WriteString(fmt.Sprintf("Students: %d\n", r.studentCount()))
	b.WriteString(fmt.Sprintf("Classes: %s\n", strings.Join(r.Classes, ", ")))
	b.WriteString(fmt.Sprintf("Subjects: %s\n", strings.Join(r.Subjects, ", ")))
	b.WriteString(fmt.Sprintf("Threshold: |z| > %.1f\n", r.Threshold))
	b.WriteString(fmt.Sprintf("Anomalous students: %d\n", r.AnomalyCount()))

	b.WriteString("\n[SUBJECTS]\n")
	for _, s := range r.Stats {
		b.WriteString(fmt.Sprintf("- %s: mean %.4g, std %.4g, anomalies %d", safeName(s.Subject), s.Mean, s.StdDev, s.Anomalies))
		if s.Degenerate {
			b.WriteString(" (zero variance)")
		}
		b.WriteString("\n")
	}

	b.WriteString("\n[CLASS SUMMARY]\n")
	b.WriteString("| Class | Students | Anomalous |\n")
	b.WriteString("| --- | --- | --- |\n")
	for _, c := range r.Summary {
		b.WriteString(fmt.Sprintf("| %s | %d | %d |\n", safeVal(c.Class), c.Total, c.Anomalous))
	}

	if len(r.Anomalies) > 0 {
		b.WriteString("\n[ANOMALOUS STUDENTS]\n")
		b.WriteString("| " + ExportIDHeader + " | " + ExportClassHeader)
		for _, s := range r.Subjects {
			b.WriteString(" | ")
			b.WriteString(safeName(s))
		}
		b.WriteString(" | Flagged |\n|")
		for i := 0; i < len(r.Subjects)+3; i++ {
			b.WriteString(" --- |")
		}
		b.WriteString("\n")
		for i, a := range r.Anomalies {
			if i == maxReportRows {
				b.WriteString(fmt.Sprintf("\n(%d more rows in the CSV export)\n", len(r.Anomalies)-maxReportRows))
				break
			}
			b.WriteString("| ")
			b.WriteString(safeVal(a.StudentID))
			b.WriteString(" | ")
			b.WriteString(safeVal(a.Class))
			for _, s := range a.Scores {
				b.WriteString(" | ")
				b.WriteString(s.String())
			}
			b.WriteString(" | ")
			b.WriteString(strings.Join(a.Flagged, ", "))
			b.WriteString(" |\n")
		}
	}

	if len(r.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range r.Warnings {
			b.WriteString("- ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (r *Result) studentCount() int {
	if r.Filtered == nil {
		return 0
	}
	return r.Filtered.Len()
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
