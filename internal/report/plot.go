// Package report renders training results: curve plots written as PNG
// files, console tables and CSV summaries.
package report

import (
	"fmt"
	"os"
	"path/filepath"

	"cash-reader/internal/ml"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// File names written by PlotHistory.
const (
	AccuracyPlot = "accuracy.png"
	LossPlot     = "loss.png"
)

const (
	plotWidth  = 6 * vg.Inch
	plotHeight = 4 * vg.Inch
)

type series struct {
	name   string
	values []float64
}

// PlotHistory writes the accuracy and loss curves of a training run into
// dir and returns the paths of the files it wrote.
func PlotHistory(h ml.History, dir string) ([]string, error) {
	if h.Epochs() == 0 {
		return nil, fmt.Errorf("no epochs to plot")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create plot directory: %w", err)
	}

	charts := []struct {
		file   string
		title  string
		ylabel string
		lines  []series
	}{
		{AccuracyPlot, "model accuracy", "accuracy", []series{
			{"train", h.Accuracy},
			{"validation", h.ValAccuracy},
		}},
		{LossPlot, "model loss", "loss", []series{
			{"train", h.Loss},
			{"validation", h.ValLoss},
		}},
	}

	paths := make([]string, 0, len(charts))
	for _, c := range charts {
		p, err := newCurvePlot(c.title, c.ylabel, c.lines)
		if err != nil {
			return paths, err
		}
		path := filepath.Join(dir, c.file)
		if err := p.Save(plotWidth, plotHeight, path); err != nil {
			return paths, fmt.Errorf("failed to save %s: %w", path, err)
		}
		log.Info().Str("path", path).Msg("Training curve written")
		paths = append(paths, path)
	}
	return paths, nil
}

func newCurvePlot(title, ylabel string, lines []series) (*plot.Plot, error) {
	p, err := plot.New()
	if err != nil {
		return nil, fmt.Errorf("plot error: %w", err)
	}
	p.Title.Text = title
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = ylabel
	p.Legend.Top = true
	p.Legend.Left = true
	p.Add(plotter.NewGrid())

	for i, s := range lines {
		// validation series are empty when training ran without a split
		if len(s.values) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(s.values))
		for e, v := range s.values {
			pts[e].X = float64(e + 1)
			pts[e].Y = v
		}
		l, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("%s %s line: %w", title, s.name, err)
		}
		l.Width = vg.Points(2)
		l.Color = plotutil.Color(i)
		p.Add(l)
		p.Legend.Add(s.name, l)
	}
	return p, nil
}
