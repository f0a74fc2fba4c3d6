// Package render turns heatmap fields into documents served over HTTP.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/samirrijal/signalmap/internal/core/domain"
)

const paletteSize = 255

// PNG renders a field as a raster image, one pixel per cell.
type PNG struct {
	floor image.Image
	alpha float64
}

// PNGOption configures a PNG renderer.
type PNGOption func(*PNG) error

// WithFloorImage draws the floor plan under the heatmap. An empty path is a no-op.
func WithFloorImage(path string) PNGOption {
	return func(r *PNG) error {
		if path == "" {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open floor image: %w", err)
		}
		defer f.Close()
		img, _, err := image.Decode(f)
		if err != nil {
			return fmt.Errorf("decode floor image: %w", err)
		}
		r.floor = img
		return nil
	}
}

// WithAlpha sets the heatmap opacity in [0, 1] used when a floor image is present.
func WithAlpha(a float64) PNGOption {
	return func(r *PNG) error {
		if a < 0 || a > 1 {
			return fmt.Errorf("alpha %v outside [0, 1]", a)
		}
		r.alpha = a
		return nil
	}
}

// NewPNG builds a PNG renderer.
func NewPNG(opts ...PNGOption) (*PNG, error) {
	r := &PNG{alpha: 0.65}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *PNG) ContentType() string { return "image/png" }

// Render draws the field at its own width and height in pixels. Points are
// drawn as small markers on top.
func (r *PNG) Render(_ context.Context, field domain.ScalarField, points []domain.HeatPoint) ([]byte, error) {
	if field.Width <= 0 || field.Height <= 0 || len(field.Values) != field.Width*field.Height {
		return nil, fmt.Errorf("render png: %w", domain.ErrInvalidExtent)
	}

	p := plot.New()
	p.HideAxes()
	p.BackgroundColor = color.White

	w, h := float64(field.Width), float64(field.Height)
	p.X.Min, p.X.Max = -0.5, w-0.5
	p.Y.Min, p.Y.Max = -0.5, h-0.5

	alpha := 1.0
	if r.floor != nil {
		p.Add(plotter.NewImage(r.floor, -0.5, -0.5, w-0.5, h-0.5))
		alpha = r.alpha
	}
	pal := coverage(alpha)

	hm := plotter.NewHeatMap(grid{field}, pal)
	hm.Rasterized = true
	hm.Min = 0
	hm.Max = field.Max
	if hm.Max <= hm.Min {
		hm.Max = hm.Min + 1
	}
	hm.Underflow = pal.Colors()[0]
	hm.Overflow = pal.Colors()[len(pal.Colors())-1]
	p.Add(hm)

	if len(points) > 0 {
		xys := make(plotter.XYs, len(points))
		for i, pt := range points {
			xys[i].X = float64(pt.X)
			xys[i].Y = h - 1 - float64(pt.Y)
		}
		sc, err := plotter.NewScatter(xys)
		if err != nil {
			return nil, fmt.Errorf("render png: %w", err)
		}
		sc.GlyphStyle.Radius = vg.Points(2)
		sc.GlyphStyle.Color = color.Black
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(sc)
	}

	c := vgimg.NewWith(vgimg.UseWH(vg.Length(w), vg.Length(h)), vgimg.UseDPI(72))
	p.Draw(draw.New(c))

	var buf bytes.Buffer
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func coverage(alpha float64) palette.Palette {
	cm := moreland.SmoothBlueRed()
	cm.SetMin(0)
	cm.SetMax(1)
	cm.SetAlpha(alpha)
	return cm.Palette(paletteSize)
}

// grid adapts a row-major field (row 0 at the top) to plotter.GridXYZ,
// whose rows grow upward.
type grid struct {
	f domain.ScalarField
}

func (g grid) Dims() (c, r int)   { return g.f.Width, g.f.Height }
func (g grid) Z(c, r int) float64 { return g.f.At(c, g.f.Height-1-r) }
func (g grid) X(c int) float64    { return float64(c) }
func (g grid) Y(r int) float64    { return float64(r) }
