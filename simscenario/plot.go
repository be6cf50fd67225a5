package simscenario

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Plot renders trace(Cov) and the clone window size across a run's steps.
func Plot(result *Result) (*plot.Plot, error) {
	if result == nil || len(result.TraceCov) == 0 {
		return nil, fmt.Errorf("simscenario: Plot: empty result")
	}

	p := plot.New()
	p.Title.Text = "State covariance trace and clone window size"
	p.X.Label.Text = "step"
	p.Y.Label.Text = "trace(Cov)"

	legend := plot.NewLegend()
	legend.Top = true
	p.Legend = legend

	traceScatter, err := plotter.NewScatter(tracePoints(result.TraceCov))
	if err != nil {
		return nil, fmt.Errorf("simscenario: Plot: trace scatter: %w", err)
	}
	traceScatter.GlyphStyle.Color = color.RGBA{R: 255, B: 128, A: 255}
	traceScatter.Shape = draw.PyramidGlyph{}
	traceScatter.GlyphStyle.Radius = vg.Points(3)

	p.Add(traceScatter)
	p.Legend.Add("trace(Cov)", traceScatter)

	cloneScatter, err := plotter.NewScatter(cloneCountPoints(result.CloneCount))
	if err != nil {
		return nil, fmt.Errorf("simscenario: Plot: clone count scatter: %w", err)
	}
	cloneScatter.GlyphStyle.Color = color.RGBA{G: 255, A: 128}
	cloneScatter.Shape = draw.CrossGlyph{}
	cloneScatter.GlyphStyle.Radius = vg.Points(3)

	p.Add(cloneScatter)
	p.Legend.Add("clone count", cloneScatter)

	return p, nil
}

func tracePoints(trace []float64) plotter.XYs {
	pts := make(plotter.XYs, len(trace))
	for i, v := range trace {
		pts[i].X = float64(i)
		pts[i].Y = v
	}
	return pts
}

func cloneCountPoints(counts []int) plotter.XYs {
	pts := make(plotter.XYs, len(counts))
	for i, v := range counts {
		pts[i].X = float64(i)
		pts[i].Y = float64(v)
	}
	return pts
}
