package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const sheet = "MaHS,Lop,Toan,Van\n" +
	"HS01,10A,7,6\n" +
	"HS02,10A,8,7\n" +
	"HS03,10A,7,6\n" +
	"HS04,10A,8,7\n" +
	"HS05,10B,7,6\n" +
	"HS06,10B,8,7\n" +
	"HS07,10B,7,6\n" +
	"HS08,10B,0,\n"

// resetFlags restores every flag to its default so runs do not leak state.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// runCmd executes the root command with args under an isolated HOME and
// returns stdout and stderr.
func runCmd(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func setup(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func writeSheet(t *testing.T, dir, name string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(sheet), 0o644))
	return p
}

func TestAnalyze_Text(t *testing.T) {
	home := setup(t)
	p := writeSheet(t, home, "scores.csv")

	out, _, err := runCmd(t, "analyze", p)
	require.NoError(t, err)
	assert.Contains(t, out, "8 students in 2 classes")
	assert.Contains(t, out, "Students (8)")
	assert.Contains(t, out, "Anomalous students (1)")
	assert.Contains(t, out, "HS08")
	// HS01 is not flagged, so it can only come from the filtered score table.
	assert.Contains(t, out, "HS01")
	assert.Contains(t, out, "HS07")
}

func TestAnalyze_TextShowsOnlySelectedClasses(t *testing.T) {
	home := setup(t)
	p := writeSheet(t, home, "scores.csv")

	out, _, err := runCmd(t, "analyze", p, "--classes", "10A")
	require.NoError(t, err)
	assert.Contains(t, out, "Students (4)")
	assert.Contains(t, out, "HS02")
	assert.NotContains(t, out, "HS06")
	assert.Contains(t, out, "No anomalous students.")
}

func TestAnalyze_ThresholdHelpShowsStep(t *testing.T) {
	f := analyzeCmd.Flags().Lookup("threshold")
	require.NotNil(t, f)
	assert.Contains(t, f.Usage, "1.0-5.0 in steps of 0.1")
}

func TestAnalyze_JSONWithSelection(t *testing.T) {
	home := setup(t)
	p := writeSheet(t, home, "scores.csv")

	out, _, err := runCmd(t, "analyze", p, "--format", "json", "--classes", "10B", "--subjects", "Toan", "--threshold", "1.5")
	require.NoError(t, err)
	assert.JSONEq(t, `["10B"]`, gjson.Get(out, "classes").Raw)
	assert.JSONEq(t, `["Toan"]`, gjson.Get(out, "subjects").Raw)
	assert.Equal(t, int64(4), gjson.Get(out, "filtered.records.#").Int())
	assert.Equal(t, 1.5, gjson.Get(out, "threshold").Float())
	assert.Equal(t, "HS08", gjson.Get(out, "anomalies.0.student_id").String())
	assert.NotEmpty(t, gjson.Get(out, "run_id").String())
}

func TestAnalyze_WritesOutputs(t *testing.T) {
	home := setup(t)
	p := writeSheet(t, home, "scores.csv")
	exportDir := filepath.Join(home, "exports")
	require.NoError(t, os.MkdirAll(exportDir, 0o755))
	report := filepath.Join(home, "report.md")
	charts := filepath.Join(home, "charts")

	out, _, err := runCmd(t, "analyze", p, "--format", "markdown", "-o", report, "--export", exportDir, "--charts-dir", charts)
	require.NoError(t, err)
	assert.Contains(t, out, "[SCORE SHEET SUMMARY]")
	assert.Contains(t, out, "Wrote report to")

	b, err := os.ReadFile(filepath.Join(exportDir, "Students_Anomalies.csv"))
	require.NoError(t, err)
	assert.Equal(t, "MaHS,Lop,Toan,Van\nHS08,10B,0,\n", string(b))

	b, err = os.ReadFile(report)
	require.NoError(t, err)
	assert.Contains(t, string(b), "[ANOMALOUS STUDENTS]")

	_, err = os.Stat(filepath.Join(charts, "class_summary.png"))
	assert.NoError(t, err)
}

func TestAnalyze_EmptyClassSelectionWarns(t *testing.T) {
	home := setup(t)
	p := writeSheet(t, home, "scores.csv")

	_, errOut, err := runCmd(t, "analyze", p, "--classes=")
	require.NoError(t, err)
	assert.Contains(t, errOut, "No students in the selected classes")
	assert.Contains(t, errOut, "10A, 10B")
}

func TestAnalyze_Errors(t *testing.T) {
	home := setup(t)
	p := writeSheet(t, home, "scores.csv")

	_, _, err := runCmd(t, "analyze", p, "--threshold", "7")
	assert.Error(t, err)
	_, _, err = runCmd(t, "analyze", p, "--format", "yaml")
	assert.Error(t, err)
	_, _, err = runCmd(t, "analyze", p, "--subjects", "Hoa")
	assert.Error(t, err)
	_, _, err = runCmd(t, "analyze", filepath.Join(home, "missing.csv"))
	assert.Error(t, err)
}

func TestAnalyzeBatch_CollisionSuffix(t *testing.T) {
	home := setup(t)
	writeSheet(t, filepath.Join(home, "d1"), "scores.csv")
	writeSheet(t, filepath.Join(home, "d2"), "scores.csv")
	outDir := filepath.Join(home, "out")

	out, _, err := runCmd(t, "analyze-batch", filepath.Join(home, "d*", "scores.csv"), "--out-dir", outDir, "--quiet")
	require.NoError(t, err)
	assert.Contains(t, out, "Analyzed 2 of 2 files, 2 anomalous students")
	assert.NotContains(t, out, "Processing")

	for _, name := range []string{
		"scores.report.md", "scores.anomalies.csv",
		"scores__2.report.md", "scores__2.anomalies.csv",
	} {
		_, err := os.Stat(filepath.Join(outDir, name))
		assert.NoError(t, err, name)
	}
	_, err = os.Stat(filepath.Join(outDir, "scores_charts", "class_summary.png"))
	assert.NoError(t, err, "charts follow the config default")
	_, err = os.Stat(filepath.Join(outDir, "scores__2_charts", "class_summary.png"))
	assert.NoError(t, err)
}

func TestAnalyzeBatch_ProgressAndNoCharts(t *testing.T) {
	home := setup(t)
	p := writeSheet(t, home, "scores.csv")
	outDir := filepath.Join(home, "out")

	out, _, err := runCmd(t, "analyze-batch", p, "--out-dir", outDir, "--charts=false", "--classes", "10A")
	require.NoError(t, err)
	assert.Contains(t, out, "[1/1] Processing scores.csv...")
	assert.Contains(t, out, "0 anomalous of 4 students")

	b, err := os.ReadFile(filepath.Join(outDir, "scores.anomalies.csv"))
	require.NoError(t, err)
	assert.Equal(t, "MaHS,Lop,Toan,Van\n", string(b))
	_, err = os.Stat(filepath.Join(outDir, "scores_charts"))
	assert.True(t, os.IsNotExist(err))
}

func TestAnalyzeBatch_NoMatch(t *testing.T) {
	home := setup(t)
	_, _, err := runCmd(t, "analyze-batch", filepath.Join(home, "*.csv"))
	assert.Error(t, err)
}

func TestConfigSetShow(t *testing.T) {
	home := setup(t)

	_, _, err := runCmd(t, "config", "set", "threshold", "2.5")
	require.NoError(t, err)
	_, _, err = runCmd(t, "config", "set", "delimiter", "tab")
	require.NoError(t, err)
	_, _, err = runCmd(t, "config", "set", "threshold", "8")
	assert.Error(t, err)
	_, _, err = runCmd(t, "config", "set", "nope", "1")
	assert.Error(t, err)

	_, err = os.Stat(filepath.Join(home, ".scoreguard", "config.yaml"))
	require.NoError(t, err)

	out, _, err := runCmd(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "threshold: 2.5")
	assert.Contains(t, out, "delimiter: tab")
	assert.Contains(t, out, "decimal: auto")
}
