package imageio

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// activationGrid exposes the channel mean of the first batch item of an
// [N, C, H, W] map as a plotter.GridXYZ. Rows are flipped so row 0 of the
// image is drawn at the top.
type activationGrid struct {
	h, w int
	mean []float64
}

func newActivationGrid(shape []int, data []float32) (*activationGrid, error) {
	if len(shape) != 4 {
		return nil, fmt.Errorf("heatmap: expected 4D feature map, got shape %v", shape)
	}
	c, h, w := shape[1], shape[2], shape[3]
	if c == 0 || h == 0 || w == 0 {
		return nil, fmt.Errorf("heatmap: empty feature map %v", shape)
	}
	if len(data) < c*h*w {
		return nil, fmt.Errorf("heatmap: %d values for shape %v", len(data), shape)
	}

	plane := h * w
	mean := make([]float64, plane)
	for ch := range c {
		for i, v := range data[ch*plane : (ch+1)*plane] {
			mean[i] += float64(v)
		}
	}
	for i := range mean {
		mean[i] /= float64(c)
	}
	return &activationGrid{h: h, w: w, mean: mean}, nil
}

func (g *activationGrid) Dims() (c, r int) { return g.w, g.h }

func (g *activationGrid) Z(c, r int) float64 { return g.mean[(g.h-1-r)*g.w+c] }

func (g *activationGrid) X(c int) float64 { return float64(c) }

func (g *activationGrid) Y(r int) float64 { return float64(r) }

// SaveHeatmap renders the channel-mean activation of a feature map as an
// image. The format follows the file extension (.png, .svg, .pdf, ...).
func SaveHeatmap(path, title string, shape []int, data []float32) error {
	g, err := newActivationGrid(shape, data)
	if err != nil {
		return err
	}

	hm := plotter.NewHeatMap(g, palette.Heat(32, 1))
	if hm.Min == hm.Max {
		hm.Max = hm.Min + 1
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"
	p.Add(hm)

	side := 4 * vg.Inch
	height := min(max(side*vg.Length(g.h)/vg.Length(g.w), side/4), side*4)
	if err := p.Save(side, height, path); err != nil {
		return fmt.Errorf("heatmap: %w", err)
	}
	return nil
}
