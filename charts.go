package main

import (
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const (
	histogramBins = 50
	rollingWindow = 10
	chartWidth    = 12 * vg.Inch
	chartHeight   = 6 * vg.Inch
)

// writeCharts renders the PNG artifacts: raw response times over time, a
// response-time histogram, and (given more than rollingWindow samples) a
// rolling-average smoothed series.
func writeCharts(snap *Snapshot, dir, base string, log Logger) error {
	if err := timeSeriesChart(snap.Timestamps, snap.ResponseTimes,
		"Response Times During Load Test",
		filepath.Join(dir, base+"_response_times.png")); err != nil {
		return err
	}
	if err := histogramChart(snap.ResponseTimes,
		"Response Time Distribution",
		filepath.Join(dir, base+"_histogram.png")); err != nil {
		return err
	}
	if len(snap.ResponseTimes) > rollingWindow {
		smoothed := rollingAverage(snap.ResponseTimes, rollingWindow)
		if err := timeSeriesChart(snap.Timestamps[rollingWindow-1:], smoothed,
			"Smoothed Response Times (10-point rolling average)",
			filepath.Join(dir, base+"_smoothed.png")); err != nil {
			return err
		}
	}
	log.Info("response time graphs saved in %s\n", dir)
	return nil
}

func newChart(title string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Time"
	p.Y.Label.Text = "Response Time (seconds)"
	p.Add(plotter.NewGrid())
	return p
}

func timeSeriesChart(ts, values []float64, title, path string) error {
	pts := make(plotter.XYs, len(values))
	for i := range values {
		pts[i].X = ts[i]
		pts[i].Y = values[i]
	}
	p := newChart(title)
	p.X.Tick.Marker = plot.TimeTicks{Format: "15:04:05"}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	p.Add(line)
	return p.Save(chartWidth, chartHeight, path)
}

func histogramChart(values []float64, title, path string) error {
	h, err := plotter.NewHist(plotter.Values(values), histogramBins)
	if err != nil {
		return err
	}
	p := newChart(title)
	p.X.Label.Text = "Response Time (seconds)"
	p.Y.Label.Text = "Count"
	p.Add(h)
	return p.Save(chartWidth, chartHeight, path)
}

// rollingAverage returns the trailing mean over the given window; the result
// has len(values)-window+1 entries, each aligned to its window's last sample.
func rollingAverage(values []float64, window int) []float64 {
	out := make([]float64, 0, len(values)-window+1)
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			out = append(out, sum/float64(window))
		}
	}
	return out
}
