// Package analysis flags anomalous students in a score sheet and summarizes
// them per class.
package analysis

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/KaramelBytes/scoreguard/internal/outlier"
	"github.com/KaramelBytes/scoreguard/internal/scoretable"
)

// Threshold bounds offered to interactive callers.
const (
	DefaultThreshold = 2.0
	MinThreshold     = 1.0
	MaxThreshold     = 5.0
	ThresholdStep    = 0.1
)

var (
	// ErrEmptyPopulation means the class selection matched no students. The
	// table stays usable with another selection.
	ErrEmptyPopulation = errors.New("no students in the selected classes")
	// ErrUnknownSubject is returned when a selected subject is not a score column.
	ErrUnknownSubject = errors.New("unknown subject")
	// ErrThresholdRange is returned by CheckThresholdRange.
	ErrThresholdRange = fmt.Errorf("threshold must be between %.1f and %.1f", MinThreshold, MaxThreshold)
)

// Selection is the caller-controlled state of one analysis.
type Selection struct {
	Threshold float64
	// Classes to keep; nil keeps all, an empty slice keeps none.
	Classes []string
	// Subjects to score; nil scores all, in table order.
	Subjects []string
}

// DefaultSelection scores every class and subject at DefaultThreshold.
func DefaultSelection() Selection {
	return Selection{Threshold: DefaultThreshold}
}

// CheckThresholdRange enforces the [MinThreshold, MaxThreshold] range used by
// the CLI and the HTTP API. Analyze itself accepts any finite threshold >= 0.
func CheckThresholdRange(t float64) error {
	if math.IsNaN(t) || t < MinThreshold || t > MaxThreshold {
		return fmt.Errorf("%w: got %v", ErrThresholdRange, t)
	}
	return nil
}

// SubjectStats holds the Z-scores of one subject over the filtered students.
type SubjectStats struct {
	Subject    string    `json:"subject"`
	Mean       float64   `json:"mean"`
	StdDev     float64   `json:"std_dev"`
	Degenerate bool      `json:"degenerate"`
	Z          []float64 `json:"z"`
	Flags      []bool    `json:"flags"`
	Anomalies  int       `json:"anomalies"`
}

// AnomalyRecord is a student flagged in at least one selected subject. Scores
// are the raw values for Result.Subjects.
type AnomalyRecord struct {
	StudentID string             `json:"student_id"`
	Class     string             `json:"class"`
	Scores    []scoretable.Score `json:"scores"`
	Flagged   []string           `json:"flagged_subjects"`
}

// ClassSummary counts students per class in the filtered population.
type ClassSummary struct {
	Class     string `json:"class"`
	Total     int    `json:"total"`
	Anomalous int    `json:"anomalous"`
}

// Result is everything a presentation layer needs for one selection.
type Result struct {
	RunID     string  `json:"run_id,omitempty"`
	Source    string  `json:"source"`
	Threshold float64 `json:"threshold"`
	// Classes lists the classes present in the filtered population.
	Classes  []string `json:"classes"`
	Subjects []string `json:"subjects"`
	// Filtered holds the selected classes, projected to the selected subjects.
	Filtered *scoretable.Table `json:"filtered"`
	Stats    []SubjectStats    `json:"stats"`
	// Anomalous parallels Filtered.Records.
	Anomalous []bool          `json:"anomalous"`
	Anomalies []AnomalyRecord `json:"anomalies"`
	Summary   []ClassSummary  `json:"class_summary"`
	Warnings  []string        `json:"warnings,omitempty"`
}

// Analyze filters t by sel.Classes, scores every selected subject over the
// remaining students and aggregates the flags. Missing scores count as 0.
func Analyze(t *scoretable.Table, sel Selection) (*Result, error) {
	if err := outlier.ValidateThreshold(sel.Threshold); err != nil {
		return nil, err
	}
	idx, err := subjectIndexes(t, sel.Subjects)
	if err != nil {
		return nil, err
	}
	filtered := t.Filter(sel.Classes).Project(idx)
	if filtered.Len() == 0 {
		return nil, fmt.Errorf("%s: %w", t.Name, ErrEmptyPopulation)
	}

	res := &Result{
		Source:    t.Name,
		Threshold: sel.Threshold,
		Classes:   filtered.Classes(),
		Subjects:  filtered.Subjects,
		Filtered:  filtered,
		Anomalous: make([]bool, filtered.Len()),
		Warnings:  append([]string(nil), t.Warnings...),
	}

	flagged := make([][]string, filtered.Len())
	for j, name := range filtered.Subjects {
		values := make([]float64, filtered.Len())
		for i, s := range filtered.Column(j) {
			values[i] = s.OrZero()
		}
		det, err := outlier.Detect(values, sel.Threshold)
		if err != nil {
			return nil, err
		}
		st := SubjectStats{
			Subject:    name,
			Mean:       det.Mean,
			StdDev:     det.StdDev,
			Degenerate: det.Degenerate,
			Z:          det.Z,
			Flags:      det.Flags,
		}
		for i, f := range det.Flags {
			if f {
				st.Anomalies++
				res.Anomalous[i] = true
				flagged[i] = append(flagged[i], name)
			}
		}
		if det.Degenerate {
			res.Warnings = append(res.Warnings, fmt.Sprintf("subject %q has zero variance; no anomalies flagged", name))
		}
		res.Stats = append(res.Stats, st)
	}

	for i, rec := range filtered.Records {
		if !res.Anomalous[i] {
			continue
		}
		res.Anomalies = append(res.Anomalies, AnomalyRecord{
			StudentID: rec.StudentID,
			Class:     rec.Class,
			Scores:    rec.Scores,
			Flagged:   flagged[i],
		})
	}
	res.Summary = Summarize(filtered, res.Anomalous)
	return res, nil
}

// Summarize groups records by class, in class order, and counts the anomalous
// ones. Classes without anomalies report 0.
func Summarize(t *scoretable.Table, anomalous []bool) []ClassSummary {
	pos := make(map[string]int)
	var out []ClassSummary
	for i, rec := range t.Records {
		k, ok := pos[rec.Class]
		if !ok {
			k = len(out)
			pos[rec.Class] = k
			out = append(out, ClassSummary{Class: rec.Class})
		}
		out[k].Total++
		if i < len(anomalous) && anomalous[i] {
			out[k].Anomalous++
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Class < out[b].Class })
	return out
}

// AnomalyCount returns the number of flagged students.
func (r *Result) AnomalyCount() int { return len(r.Anomalies) }

func subjectIndexes(t *scoretable.Table, subjects []string) ([]int, error) {
	if subjects == nil {
		idx := make([]int, len(t.Subjects))
		for i := range idx {
			idx[i] = i
		}
		return idx, nil
	}
	seen := make(map[int]bool)
	idx := make([]int, 0, len(subjects))
	var unknown []string
	for _, s := range subjects {
		j, ok := t.SubjectIndex(s)
		if !ok {
			unknown = append(unknown, s)
			continue
		}
		if seen[j] {
			continue
		}
		seen[j] = true
		idx = append(idx, j)
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: %s (available: %s)", ErrUnknownSubject,
			strings.Join(unknown, ", "), strings.Join(t.Subjects, ", "))
	}
	return idx, nil
}
