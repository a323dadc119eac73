package chart

import (
	"encoding/csv"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"bfx-lending-bot/internal/state"
)

// ErrNoData indicates the rate history is empty.
var ErrNoData = errors.New("no rate history to render")

// aprFactor converts a daily funding rate into annualised percent.
var aprFactor = decimal.NewFromInt(365 * 100)

// Downsample thins the history to at most max points, keeping the
// first and last samples.
func Downsample(points []state.RatePoint, max int) []state.RatePoint {
	if max <= 0 || len(points) <= max {
		return points
	}

	result := make([]state.RatePoint, 0, max)
	step := float64(len(points)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(points) {
			idx = len(points) - 1
		}
		result = append(result, points[idx])
	}
	return result
}

// WriteCSV emits the inferred-rate history as CSV rows.
func WriteCSV(w io.Writer, points []state.RatePoint) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{"ts", "best_ask_rate", "apr_pct"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, p := range points {
		apr := p.Rate.Mul(aprFactor)
		record := []string{
			p.Time.UTC().Format(time.RFC3339),
			p.Rate.String(),
			apr.StringFixed(2),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

// RenderPNG draws the inferred-rate history as a time series chart.
func RenderPNG(w io.Writer, points []state.RatePoint) error {
	if len(points) == 0 {
		return ErrNoData
	}
	// go-chart requires at least two points to derive axis ranges.
	if len(points) == 1 {
		points = append(points, state.RatePoint{
			Time: points[0].Time.Add(time.Second),
			Rate: points[0].Rate,
		})
	}

	x := make([]time.Time, len(points))
	rate := make([]float64, len(points))
	apr := make([]float64, len(points))

	for i, p := range points {
		x[i] = p.Time
		rate[i] = p.Rate.InexactFloat64()
		apr[i] = p.Rate.Mul(aprFactor).InexactFloat64()
	}

	rateFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.6f")
	}
	aprFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Daily rate",
			ValueFormatter: rateFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "APR (%)",
			ValueFormatter: aprFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Best ask rate",
				XValues: x,
				YValues: rate,
			},
			chart.TimeSeries{
				Name:    "APR %",
				XValues: x,
				YValues: apr,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return graph.Render(chart.PNG, w)
}

// WriteCSVFile writes the CSV export to a file, creating parent
// directories as needed.
func WriteCSVFile(path string, points []state.RatePoint) error {
	file, err := createFile(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteCSV(file, points)
}

// RenderPNGFile writes the PNG chart to a file, creating parent
// directories as needed.
func RenderPNGFile(path string, points []state.RatePoint) error {
	file, err := createFile(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return RenderPNG(file, points)
}

func createFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return os.Create(path)
}
