// Package visualize renders the run's diagnostic charts to PNG with
// gonum/plot: ROC curves, per-variable histograms and the correlation
// heatmap.
package visualize

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/heartrisk/dataset"
	"github.com/YuminosukeSato/heartrisk/metrics"
	"github.com/YuminosukeSato/heartrisk/pkg/errors"
	"github.com/YuminosukeSato/heartrisk/pkg/log"
)

const (
	chartWidth  = 6 * vg.Inch
	chartHeight = 5 * vg.Inch
	histBins    = 20
)

// Curve is one named ROC curve.
type Curve struct {
	Name string
	ROC  *metrics.ROC
}

// ROCCurves writes roc_<model>.png for every curve and roc_all.png with all
// of them overlaid. Every chart carries the chance diagonal. It returns the
// written paths.
func ROCCurves(dir string, curves []Curve) ([]string, error) {
	if len(curves) == 0 {
		return nil, errors.NewValueError("ROCCurves", "no curves to draw")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create chart directory %s", dir)
	}

	paths := make([]string, 0, len(curves)+1)
	for i, c := range curves {
		p := newROCPlot(fmt.Sprintf("%s ROC curve (AUC = %.3f)", c.Name, c.ROC.AUC))
		if err := addCurve(p, c, i); err != nil {
			return nil, err
		}
		path := filepath.Join(dir, "roc_"+slug(c.Name)+".png")
		if err := save(p, path); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}

	all := newROCPlot("ROC curves")
	for i, c := range curves {
		if err := addCurve(all, c, i); err != nil {
			return nil, err
		}
	}
	path := filepath.Join(dir, "roc_all.png")
	if err := save(all, path); err != nil {
		return nil, err
	}
	return append(paths, path), nil
}

func newROCPlot(title string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "False positive rate"
	p.Y.Label.Text = "True positive rate"
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1
	p.Legend.Top = true
	p.Legend.Left = false
	p.Add(plotter.NewGrid())

	chance := plotter.NewFunction(func(x float64) float64 { return x })
	chance.Color = color.RGBA{R: 120, G: 120, B: 120, A: 255}
	chance.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(chance)
	return p
}

func addCurve(p *plot.Plot, c Curve, i int) error {
	if c.ROC == nil || len(c.ROC.FPR) != len(c.ROC.TPR) {
		return errors.NewValueError("ROCCurves", fmt.Sprintf("curve %q has no points", c.Name))
	}
	xys := make(plotter.XYs, len(c.ROC.FPR))
	for k := range xys {
		xys[k].X = c.ROC.FPR[k]
		xys[k].Y = c.ROC.TPR[k]
	}
	line, err := plotter.NewLine(xys)
	if err != nil {
		return errors.Wrapf(err, "roc line for %s", c.Name)
	}
	line.Color = plotutil.Color(i)
	line.Width = vg.Points(1.5)
	p.Add(line)
	p.Legend.Add(fmt.Sprintf("%s (%.3f)", c.Name, c.ROC.AUC), line)
	return nil
}

// Histograms writes hist_<column>.png for each column, ignoring NaN cells.
func Histograms(dir string, t *dataset.Table, columns ...string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create chart directory %s", dir)
	}
	paths := make([]string, 0, len(columns))
	for _, name := range columns {
		vals, err := t.Col(name)
		if err != nil {
			return nil, err
		}
		values := make(plotter.Values, 0, len(vals))
		for _, v := range vals {
			if !math.IsNaN(v) {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			return nil, errors.NewValueError("Histograms", fmt.Sprintf("column %q has no values", name))
		}

		p := plot.New()
		p.Title.Text = name
		p.X.Label.Text = name
		p.Y.Label.Text = "count"
		h, err := plotter.NewHist(values, histBins)
		if err != nil {
			return nil, errors.Wrapf(err, "histogram for %s", name)
		}
		h.FillColor = plotutil.Color(2)
		p.Add(h)

		path := filepath.Join(dir, "hist_"+slug(name)+".png")
		if err := save(p, path); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// corrGrid adapts a correlation matrix to plotter.GridXYZ.
type corrGrid struct {
	m mat.Symmetric
}

func (g corrGrid) Dims() (c, r int)   { n := g.m.SymmetricDim(); return n, n }
func (g corrGrid) Z(c, r int) float64 { return g.m.At(r, c) }
func (g corrGrid) X(c int) float64    { return float64(c) }
func (g corrGrid) Y(r int) float64    { return float64(r) }

// CorrelationHeatmap writes the correlation matrix as an annotated heatmap.
func CorrelationHeatmap(path string, names []string, corr mat.Symmetric) error {
	n := corr.SymmetricDim()
	if n != len(names) {
		return errors.NewDimensionError("CorrelationHeatmap", len(names), n, 0)
	}
	if n == 0 {
		return errors.NewValueError("CorrelationHeatmap", "empty correlation matrix")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create chart directory for %s", path)
	}

	p := plot.New()
	p.Title.Text = "Correlation"
	hm := plotter.NewHeatMap(corrGrid{m: corr}, palette.Heat(32, 1))
	hm.Min, hm.Max = -1, 1
	p.Add(hm)

	labels := plotter.XYLabels{XYs: make(plotter.XYs, 0, n*n), Labels: make([]string, 0, n*n)}
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			labels.XYs = append(labels.XYs, plotter.XY{X: float64(c), Y: float64(r)})
			labels.Labels = append(labels.Labels, fmt.Sprintf("%.2f", corr.At(r, c)))
		}
	}
	annotations, err := plotter.NewLabels(labels)
	if err != nil {
		return errors.Wrap(err, "heatmap labels")
	}
	p.Add(annotations)
	p.NominalX(names...)
	p.NominalY(names...)

	side := vg.Length(n)*0.6*vg.Inch + 2*vg.Inch
	if err := p.Save(side, side, path); err != nil {
		return errors.Wrapf(err, "save %s", path)
	}
	log.GetLoggerWithName("visualize").Debug("chart written", log.PathKey, path)
	return nil
}

func save(p *plot.Plot, path string) error {
	if err := p.Save(chartWidth, chartHeight, path); err != nil {
		return errors.Wrapf(err, "save %s", path)
	}
	log.GetLoggerWithName("visualize").Debug("chart written", log.PathKey, path)
	return nil
}

func slug(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, name)
}
