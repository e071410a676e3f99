package scoretable

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Score is a single subject score; Present is false for missing cells.
type Score struct {
	Value   float64
	Present bool
}

// OrZero returns the score, or 0 when it is missing.
func (s Score) OrZero() float64 {
	if !s.Present {
		return 0
	}
	return s.Value
}

// String returns the exported cell text; missing scores are empty.
func (s Score) String() string {
	if !s.Present {
		return ""
	}
	return FormatScore(s.Value)
}

// MarshalJSON encodes a missing score as null.
func (s Score) MarshalJSON() ([]byte, error) {
	if !s.Present {
		return []byte("null"), nil
	}
	return json.Marshal(s.Value)
}

// Record is one student row. Scores is aligned with Table.Subjects.
type Record struct {
	StudentID string  `json:"student_id"`
	Class     string  `json:"class"`
	Scores    []Score `json:"scores"`
}

// Table is a resolved score sheet. It is never mutated after Build; Filter and
// Project return new tables that share the underlying score slices.
type Table struct {
	Name        string   `json:"name"`
	Encoding    string   `json:"encoding"`
	IDColumn    string   `json:"id_column"`
	ClassColumn string   `json:"class_column"`
	Subjects    []string `json:"subjects"`
	Records     []Record `json:"records"`
	Warnings    []string `json:"warnings,omitempty"`
}

// Build resolves header and converts rows into a Table. Candidate subject
// columns holding non-numeric cells are skipped with a warning.
func Build(name string, header []string, rows [][]string, opt Options) (*Table, error) {
	res, err := ResolveColumns(header)
	if err != nil {
		return nil, err
	}
	t := &Table{
		Name:        name,
		Encoding:    EncodingUTF8,
		IDColumn:    res.Headers[res.StudentIndex],
		ClassColumn: res.Headers[res.ClassIndex],
	}
	t.Warnings = append(t.Warnings, res.Warnings...)

	ncol := len(header)
	padded := make([][]string, len(rows))
	for i, rec := range rows {
		if len(rec) < ncol {
			tmp := make([]string, ncol)
			copy(tmp, rec)
			rec = tmp
		}
		padded[i] = rec
	}
	rows = padded

	type column struct {
		name   string
		scores []Score
	}
	var cols []column
	for k, idx := range res.SubjectIndexes {
		scores := make([]Score, len(rows))
		numeric := true
		for r, rec := range rows {
			cell := rec[idx]
			if isMissing(cell) {
				continue
			}
			v, ok := parseNumeric(cell, opt.DecimalSeparator, opt.ThousandsSeparator)
			if !ok {
				t.Warnings = append(t.Warnings, fmt.Sprintf("column %q is not numeric (row %d: %q); skipped", res.SubjectNames[k], r+2, safeCell(cell)))
				numeric = false
				break
			}
			scores[r] = Score{Value: v, Present: true}
		}
		if numeric {
			cols = append(cols, column{name: res.SubjectNames[k], scores: scores})
		}
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrNoSubjectColumns)
	}

	t.Subjects = make([]string, len(cols))
	for j, c := range cols {
		t.Subjects[j] = c.name
	}
	t.Records = make([]Record, len(rows))
	for r, rec := range rows {
		scores := make([]Score, len(cols))
		for j, c := range cols {
			scores[j] = c.scores[r]
		}
		t.Records[r] = Record{
			StudentID: strings.TrimSpace(rec[res.StudentIndex]),
			Class:     strings.TrimSpace(rec[res.ClassIndex]),
			Scores:    scores,
		}
	}
	return t, nil
}

// Len returns the number of student records.
func (t *Table) Len() int { return len(t.Records) }

// Classes returns the distinct class values in ascending order.
func (t *Table) Classes() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range t.Records {
		if _, ok := seen[r.Class]; ok {
			continue
		}
		seen[r.Class] = struct{}{}
		out = append(out, r.Class)
	}
	sort.Strings(out)
	return out
}

// SubjectIndex finds a subject by exact name, falling back to a
// case-insensitive match on the canonical form.
func (t *Table) SubjectIndex(name string) (int, bool) {
	for i, s := range t.Subjects {
		if s == name {
			return i, true
		}
	}
	canon := CanonicalHeader(name)
	for i, s := range t.Subjects {
		if strings.EqualFold(s, canon) {
			return i, true
		}
	}
	return -1, false
}

// Column returns the scores of subject j in record order.
func (t *Table) Column(j int) []Score {
	out := make([]Score, len(t.Records))
	for i, r := range t.Records {
		out[i] = r.Scores[j]
	}
	return out
}

// Filter keeps the records whose class is in classes. A nil slice keeps every
// record; an empty non-nil slice keeps none.
func (t *Table) Filter(classes []string) *Table {
	out := t.shallow()
	if classes == nil {
		out.Records = append([]Record(nil), t.Records...)
		return out
	}
	keep := make(map[string]struct{}, len(classes))
	for _, c := range classes {
		keep[strings.TrimSpace(c)] = struct{}{}
	}
	out.Records = make([]Record, 0, len(t.Records))
	for _, r := range t.Records {
		if _, ok := keep[r.Class]; ok {
			out.Records = append(out.Records, r)
		}
	}
	return out
}

// Project returns a table restricted to the subjects at the given indexes, in
// that order.
func (t *Table) Project(idx []int) *Table {
	out := t.shallow()
	out.Subjects = make([]string, len(idx))
	for k, j := range idx {
		out.Subjects[k] = t.Subjects[j]
	}
	out.Records = make([]Record, len(t.Records))
	for i, r := range t.Records {
		scores := make([]Score, len(idx))
		for k, j := range idx {
			scores[k] = r.Scores[j]
		}
		out.Records[i] = Record{StudentID: r.StudentID, Class: r.Class, Scores: scores}
	}
	return out
}

func (t *Table) shallow() *Table {
	return &Table{
		Name:        t.Name,
		Encoding:    t.Encoding,
		IDColumn:    t.IDColumn,
		ClassColumn: t.ClassColumn,
		Subjects:    append([]string(nil), t.Subjects...),
		Warnings:    append([]string(nil), t.Warnings...),
	}
}

func safeCell(s string) string {
	if len(s) > 32 {
		return s[:29] + "..."
	}
	return s
}
