package scoretable

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoad(t *testing.T, data string) *Table {
	t.Helper()
	tbl, err := Load("t.csv", strings.NewReader(data), DefaultOptions())
	require.NoError(t, err)
	return tbl
}

func TestFilterDoesNotMutateSource(t *testing.T) {
	tbl := mustLoad(t, sampleCSV)

	all := tbl.Filter(nil)
	assert.Equal(t, 4, all.Len())

	b := tbl.Filter([]string{"10B", "12Z"})
	require.Equal(t, 2, b.Len())
	assert.Equal(t, "HS3", b.Records[0].StudentID)
	assert.Equal(t, 4, tbl.Len())

	none := tbl.Filter([]string{})
	assert.Equal(t, 0, none.Len())
	assert.Equal(t, tbl.Subjects, none.Subjects)
}

func TestProject(t *testing.T) {
	tbl := mustLoad(t, sampleCSV)
	p := tbl.Project([]int{1})
	assert.Equal(t, []string{"Van"}, p.Subjects)
	assert.Equal(t, []Score{{7.5, true}}, p.Records[0].Scores)
	assert.Len(t, tbl.Records[0].Scores, 2)
}

func TestSubjectIndex(t *testing.T) {
	tbl := mustLoad(t, sampleCSV)
	i, ok := tbl.SubjectIndex("Van")
	assert.True(t, ok)
	assert.Equal(t, 1, i)
	i, ok = tbl.SubjectIndex(" TOAN ")
	assert.True(t, ok)
	assert.Equal(t, 0, i)
	_, ok = tbl.SubjectIndex("Hoa")
	assert.False(t, ok)
}

func TestColumn(t *testing.T) {
	tbl := mustLoad(t, sampleCSV)
	col := tbl.Column(0)
	assert.Equal(t, []Score{{8, true}, {9, true}, {}, {2, true}}, col)
}

func TestScoreJSONAndString(t *testing.T) {
	b, err := json.Marshal([]Score{{Value: 7.25, Present: true}, {}})
	require.NoError(t, err)
	assert.JSONEq(t, `[7.25, null]`, string(b))
	assert.Equal(t, "7.25", Score{Value: 7.25, Present: true}.String())
	assert.Equal(t, "", Score{}.String())
}

func TestParseNumeric(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"8", 8, true},
		{"8.5", 8.5, true},
		{"8,5", 8.5, true},
		{"-1.25", -1.25, true},
		{"1,000.5", 1000.5, true},
		{"1.000,5", 1000.5, true},
		// A lone comma is always the decimal mark when auto-detecting.
		{"1,000", 1.0, true},
		{"abc", 0, false},
		{"inf", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, ok := parseNumeric(c.in, 0, 0)
		assert.Equal(t, c.ok, ok, c.in)
		if c.ok {
			assert.InDelta(t, c.want, got, 1e-12, c.in)
		}
	}
	// An explicit '.' decimal turns the same comma into a thousands separator.
	got, ok := parseNumeric("1,000", '.', 0)
	require.True(t, ok)
	assert.Equal(t, 1000.0, got)

	for _, v := range []float64{0.1, 1.0 / 3, -7.125, 1e-7, 123456789.5} {
		got, ok := parseNumeric(FormatScore(v), 0, 0)
		require.True(t, ok)
		assert.Equal(t, v, got)
	}
}

func TestBuildPadsShortRowsWithoutMutatingInput(t *testing.T) {
	rows := [][]string{
		{"HS01", "10A", "7", "6"},
		{"HS02", "10A", "8"},
	}
	tbl, err := Build("t.csv", []string{"MaHS", "Lop", "Toan", "Van"}, rows, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, tbl.Records, 2)
	assert.False(t, tbl.Records[1].Scores[1].Present)
	assert.Len(t, rows[1], 3, "caller rows must not be padded in place")
}

func TestParseOptions(t *testing.T) {
	opt, err := ParseOptions("tab", "comma", " Diem ", 0)
	require.NoError(t, err)
	assert.Equal(t, '\t', opt.Delimiter)
	assert.Equal(t, ',', opt.DecimalSeparator)
	assert.Equal(t, "Diem", opt.SheetName)
	assert.Equal(t, 1, opt.SheetIndex)

	opt, err = ParseOptions("", "", "", 3)
	require.NoError(t, err)
	assert.Equal(t, rune(0), opt.Delimiter)
	assert.Equal(t, rune(0), opt.DecimalSeparator)
	assert.Equal(t, 3, opt.SheetIndex)

	_, err = ParseOptions("|", "", "", 0)
	assert.Error(t, err)
	_, err = ParseOptions("", "x", "", 0)
	assert.Error(t, err)
}
