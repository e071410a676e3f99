package render

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/KaramelBytes/scoreguard/internal/analysis"
	"github.com/KaramelBytes/scoreguard/internal/utils"
)

// HistogramBins is the number of bins in a subject histogram.
const HistogramBins = 20

// ErrNoData is returned when there is nothing to draw.
var ErrNoData = errors.New("no data to chart")

var (
	normalColor  = chart.ColorBlue
	flaggedColor = chart.ColorRed
	totalColors  = []drawing.Color{chart.ColorAlternateGray, chart.ColorAlternateBlue}
)

// pointStyle renders points only, without connecting lines.
func pointStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeWidth: chart.Disabled,
		DotWidth:    4,
		DotColor:    col,
	}
}

func barStyle(col drawing.Color) chart.Style {
	return chart.Style{FillColor: col, StrokeColor: col, StrokeWidth: 1}
}

// ClassChart draws total and anomalous students per class as paired bars.
// Classes alternate between two colors for the total bar.
func ClassChart(w io.Writer, summary []analysis.ClassSummary) error {
	if len(summary) == 0 {
		return ErrNoData
	}
	maxTotal := 0
	bars := make([]chart.Value, 0, 2*len(summary))
	for i, s := range summary {
		bars = append(bars,
			chart.Value{Label: s.Class, Value: float64(s.Total), Style: barStyle(totalColors[i%len(totalColors)])},
			chart.Value{Label: "anomalous", Value: float64(s.Anomalous), Style: barStyle(flaggedColor)},
		)
		if s.Total > maxTotal {
			maxTotal = s.Total
		}
	}
	bc := chart.BarChart{
		Title:      "Students per class",
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		Width:      barChartWidth(len(bars)),
		Height:     480,
		BarWidth:   40,
		BarSpacing: 12,
		YAxis:      chart.YAxis{Range: &chart.ContinuousRange{Min: 0, Max: float64(maxTotal)}},
		Bars:       bars,
	}
	return bc.Render(chart.PNG, w)
}

// ScatterChart plots each filtered student's score in subject j against its
// row position. Flagged students form a separate red series.
func ScatterChart(w io.Writer, r *analysis.Result, j int) error {
	if j < 0 || j >= len(r.Stats) || r.Filtered == nil || r.Filtered.Len() == 0 {
		return ErrNoData
	}
	st := r.Stats[j]
	var nx, ny, fx, fy []float64
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, s := range r.Filtered.Column(j) {
		v := s.OrZero()
		lo, hi = math.Min(lo, v), math.Max(hi, v)
		if st.Flags[i] {
			fx, fy = append(fx, float64(i+1)), append(fy, v)
		} else {
			nx, ny = append(nx, float64(i+1)), append(ny, v)
		}
	}

	var series []chart.Series
	if len(nx) > 0 {
		series = append(series, chart.ContinuousSeries{Name: "Normal", XValues: nx, YValues: ny, Style: pointStyle(normalColor)})
	}
	if len(fx) > 0 {
		series = append(series, chart.ContinuousSeries{Name: fmt.Sprintf("|z| > %.1f", r.Threshold), XValues: fx, YValues: fy, Style: pointStyle(flaggedColor)})
	}
	ch := chart.Chart{
		Title:      fmt.Sprintf("%s scores", st.Subject),
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 12, Bottom: 16}},
		Width:      900,
		Height:     480,
		XAxis:      chart.XAxis{Name: "Student", Range: &chart.ContinuousRange{Min: 0, Max: float64(r.Filtered.Len() + 1)}},
		YAxis:      chart.YAxis{Name: st.Subject, Range: &chart.ContinuousRange{Min: lo - 1, Max: hi + 1}},
		Series:     series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return ch.Render(chart.PNG, w)
}

// HistogramChart bins subject j into HistogramBins equal-width bins. Bins
// holding at least one flagged student are drawn red.
func HistogramChart(w io.Writer, r *analysis.Result, j int) error {
	if j < 0 || j >= len(r.Stats) || r.Filtered == nil || r.Filtered.Len() == 0 {
		return ErrNoData
	}
	st := r.Stats[j]
	col := r.Filtered.Column(j)
	values := make([]float64, len(col))
	for i, s := range col {
		values[i] = s.OrZero()
	}
	lo, width, counts, flagged := histogram(values, st.Flags, HistogramBins)

	maxCount := 0
	bars := make([]chart.Value, HistogramBins)
	for b := range bars {
		c := normalColor
		if flagged[b] {
			c = flaggedColor
		}
		bars[b] = chart.Value{
			Label: fmt.Sprintf("%.1f", lo+float64(b)*width),
			Value: float64(counts[b]),
			Style: barStyle(c),
		}
		if counts[b] > maxCount {
			maxCount = counts[b]
		}
	}
	bc := chart.BarChart{
		Title:      fmt.Sprintf("%s distribution", st.Subject),
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		Width:      barChartWidth(HistogramBins),
		Height:     480,
		BarWidth:   30,
		BarSpacing: 8,
		YAxis:      chart.YAxis{Range: &chart.ContinuousRange{Min: 0, Max: float64(maxCount)}},
		Bars:       bars,
	}
	return bc.Render(chart.PNG, w)
}

// histogram returns the lower bound, bin width, per-bin counts and per-bin
// flagged marks. A constant column gets a unit-wide range.
func histogram(values []float64, flags []bool, bins int) (lo, width float64, counts []int, flagged []bool) {
	counts = make([]int, bins)
	flagged = make([]bool, bins)
	if len(values) == 0 {
		return 0, 1, counts, flagged
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	if hi == lo {
		hi = lo + 1
	}
	width = (hi - lo) / float64(bins)
	for i, v := range values {
		b := int((v - lo) / width)
		if b >= bins {
			b = bins - 1
		}
		counts[b]++
		if i < len(flags) && flags[i] {
			flagged[b] = true
		}
	}
	return lo, width, counts, flagged
}

func barChartWidth(bars int) int {
	w := bars*60 + 160
	if w < 640 {
		return 640
	}
	return w
}

// WriteCharts renders the class chart plus a scatter and a histogram per
// subject into dir and returns the written paths.
func WriteCharts(dir string, r *analysis.Result) ([]string, error) {
	if err := utils.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("create chart dir: %w", err)
	}
	var written []string
	write := func(name string, draw func(io.Writer) error) error {
		var buf bytes.Buffer
		if err := draw(&buf); err != nil {
			return fmt.Errorf("render %s: %w", name, err)
		}
		p := filepath.Join(dir, name)
		if err := utils.SafeWriteFile(p, buf.Bytes()); err != nil {
			return err
		}
		written = append(written, p)
		return nil
	}

	if err := write("class_summary.png", func(w io.Writer) error { return ClassChart(w, r.Summary) }); err != nil {
		return written, err
	}
	for j, st := range r.Stats {
		stem := fmt.Sprintf("%02d_%s", j+1, utils.SafeBase(st.Subject))
		if err := write(stem+"_scatter.png", func(w io.Writer) error { return ScatterChart(w, r, j) }); err != nil {
			return written, err
		}
		if err := write(stem+"_histogram.png", func(w io.Writer) error { return HistogramChart(w, r, j) }); err != nil {
			return written, err
		}
	}
	return written, nil
}
