// Package report renders the evaluation artefacts: the confusion-matrix
// heatmap and the ranked feature-importance table.
package report

import (
	"fmt"
	"image/color"
	"io"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/diabetes-risk/metrics"
	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
)

// HeatmapOptions controls the figure layout.
type HeatmapOptions struct {
	Title  string
	XLabel string
	YLabel string
	Width  vg.Length
	Height vg.Length
}

// DefaultHeatmapOptions は 8x6 インチの "Confusion Matrix" 図
func DefaultHeatmapOptions() HeatmapOptions {
	return HeatmapOptions{
		Title:  "Confusion Matrix",
		XLabel: "Predicted Label",
		YLabel: "True Label",
		Width:  8 * vg.Inch,
		Height: 6 * vg.Inch,
	}
}

// confusionGrid adapts a confusion matrix to plotter.GridXYZ. Grid row r is
// drawn at y=r from the bottom, so the matrix rows are flipped to keep the
// first class at the top as in the printed matrix.
type confusionGrid struct {
	counts [][]int
}

func (g confusionGrid) Dims() (c, r int) { return len(g.counts), len(g.counts) }

func (g confusionGrid) Z(c, r int) float64 {
	return float64(g.counts[len(g.counts)-1-r][c])
}

func (g confusionGrid) X(c int) float64 { return float64(c) }

func (g confusionGrid) Y(r int) float64 { return float64(r) }

// ConfusionHeatmap builds an annotated heatmap of cm. classNames label the
// matrix rows and columns in cm.Labels order.
func ConfusionHeatmap(cm *metrics.ConfusionMatrix, classNames []string, opts HeatmapOptions) (*plot.Plot, error) {
	k := len(cm.Labels)
	if k == 0 {
		return nil, errors.NewValueError("ConfusionHeatmap", "confusion matrix is empty")
	}
	if len(classNames) != k {
		return nil, errors.NewDimensionError("ConfusionHeatmap", k, len(classNames), 0)
	}

	grid := confusionGrid{counts: cm.Counts}
	maxCount := 1
	for _, row := range cm.Counts {
		for _, v := range row {
			maxCount = max(maxCount, v)
		}
	}

	hm := plotter.NewHeatMap(grid, Blues(64))
	hm.Min = 0
	hm.Max = float64(maxCount)

	// セルごとの件数ラベル。濃いセルは白文字にする
	xys := make(plotter.XYs, 0, k*k)
	texts := make([]string, 0, k*k)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			xys = append(xys, plotter.XY{X: float64(j), Y: float64(k - 1 - i)})
			texts = append(texts, fmt.Sprint(cm.Counts[i][j]))
		}
	}
	labels, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: texts})
	if err != nil {
		return nil, errors.Wrap(err, "ConfusionHeatmap: labels")
	}
	idx := 0
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			style := labels.TextStyle[idx]
			style.XAlign = text.XCenter
			style.YAlign = text.YCenter
			if float64(cm.Counts[i][j]) > float64(maxCount)/2 {
				style.Color = color.White
			} else {
				style.Color = color.Black
			}
			labels.TextStyle[idx] = style
			idx++
		}
	}

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = opts.XLabel
	p.Y.Label.Text = opts.YLabel

	xTicks := make([]plot.Tick, k)
	yTicks := make([]plot.Tick, k)
	for i, name := range classNames {
		xTicks[i] = plot.Tick{Value: float64(i), Label: name}
		yTicks[i] = plot.Tick{Value: float64(k - 1 - i), Label: name}
	}
	p.X.Tick.Marker = plot.ConstantTicks(xTicks)
	p.Y.Tick.Marker = plot.ConstantTicks(yTicks)

	p.Add(hm, labels)
	return p, nil
}

// WritePNG renders p as PNG to w.
func WritePNG(p *plot.Plot, opts HeatmapOptions, w io.Writer) error {
	wt, err := p.WriterTo(opts.Width, opts.Height, "png")
	if err != nil {
		return errors.Wrap(err, "render heatmap")
	}
	if _, err := wt.WriteTo(w); err != nil {
		return errors.Wrap(err, "write heatmap")
	}
	return nil
}

// SaveHeatmap renders p to path; the image format follows the extension
// (png, svg, pdf, ...).
func SaveHeatmap(p *plot.Plot, opts HeatmapOptions, path string) error {
	if ext := strings.ToLower(filepath.Ext(path)); ext == "" {
		return errors.NewValueError("SaveHeatmap", fmt.Sprintf("path %q has no image extension", path))
	}
	if err := p.Save(opts.Width, opts.Height, path); err != nil {
		return errors.Wrapf(err, "save heatmap to %s", path)
	}
	return nil
}

// bluesPalette interpolates the sequential "Blues" colour map from near
// white to dark blue.
type bluesPalette struct {
	colors []color.Color
}

func (p bluesPalette) Colors() []color.Color { return p.colors }

// Blues returns an n-step palette matching matplotlib's "Blues" end points.
func Blues(n int) palette.Palette {
	n = max(n, 2)
	from := [3]float64{247, 251, 255}
	to := [3]float64{8, 48, 107}
	colors := make([]color.Color, n)
	for i := range colors {
		t := float64(i) / float64(n-1)
		colors[i] = color.RGBA{
			R: uint8(from[0] + (to[0]-from[0])*t),
			G: uint8(from[1] + (to[1]-from[1])*t),
			B: uint8(from[2] + (to[2]-from[2])*t),
			A: 255,
		}
	}
	return bluesPalette{colors: colors}
}

// RenderConfusionHeatmap draws cm with the default layout and writes it to path.
func RenderConfusionHeatmap(cm *metrics.ConfusionMatrix, classNames []string, path string) error {
	opts := DefaultHeatmapOptions()
	p, err := ConfusionHeatmap(cm, classNames, opts)
	if err != nil {
		return err
	}
	return SaveHeatmap(p, opts, path)
}
