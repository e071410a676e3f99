package scoretable

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// ErrMissingClassColumn is returned when no header matches ClassAliases.
	ErrMissingClassColumn = errors.New("class column not found (expected 'Lop')")
	// ErrMissingStudentColumn is returned when no header matches StudentIDAliases.
	ErrMissingStudentColumn = errors.New("student id column not found (expected 'MaHS', 'ID' or 'StudentID')")
	// ErrNoSubjectColumns is returned when nothing is left to score.
	ErrNoSubjectColumns = errors.New("no subject score columns found")
)

// Lowercase aliases matched against canonical headers.
var (
	ClassAliases     = []string{"lop"}
	StudentIDAliases = []string{"mahs", "id", "studentid"}
)

// CanonicalHeader trims h, drops every whitespace rune, and capitalizes the
// first letter while lowercasing the rest ("  ma hs " -> "Mahs").
func CanonicalHeader(h string) string {
	var b strings.Builder
	for _, r := range h {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	s := b.String()
	if s == "" {
		return ""
	}
	first, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(first)) + strings.ToLower(s[size:])
}

// Resolution maps raw header positions to the roles used by the analysis.
type Resolution struct {
	// Headers holds the canonical form of every raw header, in input order.
	Headers      []string
	ClassIndex   int
	StudentIndex int
	// SubjectIndexes are candidate score columns in input order.
	SubjectIndexes []int
	// SubjectNames parallels SubjectIndexes; duplicates carry a ".N" suffix.
	SubjectNames []string
	Warnings     []string
}

// ResolveColumns canonicalizes raw headers and locates the class and student
// id columns. When more than one header matches an alias set the first one in
// input order wins; the others are reported and excluded from the subjects.
func ResolveColumns(raw []string) (*Resolution, error) {
	res := &Resolution{
		Headers:      make([]string, len(raw)),
		ClassIndex:   -1,
		StudentIndex: -1,
	}
	for i, h := range raw {
		res.Headers[i] = CanonicalHeader(h)
	}

	identity := make(map[int]bool)
	for i, h := range res.Headers {
		switch {
		case matchesAlias(h, ClassAliases):
			identity[i] = true
			if res.ClassIndex < 0 {
				res.ClassIndex = i
				continue
			}
			res.Warnings = append(res.Warnings, fmt.Sprintf("column %d %q also matches the class column; using %q", i+1, h, res.Headers[res.ClassIndex]))
		case matchesAlias(h, StudentIDAliases):
			identity[i] = true
			if res.StudentIndex < 0 {
				res.StudentIndex = i
				continue
			}
			res.Warnings = append(res.Warnings, fmt.Sprintf("column %d %q also matches the student id column; using %q", i+1, h, res.Headers[res.StudentIndex]))
		}
	}
	if res.ClassIndex < 0 {
		return nil, ErrMissingClassColumn
	}
	if res.StudentIndex < 0 {
		return nil, ErrMissingStudentColumn
	}

	seen := make(map[string]int)
	for i, h := range res.Headers {
		if identity[i] {
			continue
		}
		if h == "" {
			res.Warnings = append(res.Warnings, fmt.Sprintf("column %d has an empty header; skipped", i+1))
			continue
		}
		name := h
		if n := seen[h]; n > 0 {
			name = fmt.Sprintf("%s.%d", h, n)
		}
		seen[h]++
		res.SubjectIndexes = append(res.SubjectIndexes, i)
		res.SubjectNames = append(res.SubjectNames, name)
	}
	if len(res.SubjectIndexes) == 0 {
		return nil, ErrNoSubjectColumns
	}
	return res, nil
}

func matchesAlias(h string, aliases []string) bool {
	for _, a := range aliases {
		if strings.EqualFold(h, a) {
			return true
		}
	}
	return false
}
