package heatmap

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/samirrijal/signalmap/internal/core/domain"
)

// maxRBFSites bounds the dense system solved by the RBF method; larger
// inputs fall through to the linear method.
const maxRBFSites = 256

// maxRBFWork bounds kernel evaluations (cells × sites) for one RBF field.
// Evaluation is O(cells × sites); above this the linear method takes over.
const maxRBFWork = 64 << 20

var (
	errTooFewSites  = errors.New("too few distinct sites")
	errTooManySites = errors.New("too many sites")
	errTooMuchWork  = errors.New("raster too large for rbf")
	errCollinear    = errors.New("sites are collinear")
)

type interpolator func(ctx context.Context, samples []sample, extent domain.RasterExtent, fill float64) ([]float64, error)

var interpolators = map[string]interpolator{
	MethodRBF:     interpolateRBF,
	MethodLinear:  interpolateLinear,
	MethodNearest: interpolateNearest,
}

// interpolateRBF fits a thin-plate spline with a linear polynomial tail and
// evaluates it inside the convex hull of the samples.
func interpolateRBF(ctx context.Context, samples []sample, extent domain.RasterExtent, fill float64) ([]float64, error) {
	n := len(samples)
	if n < 3 {
		return nil, errTooFewSites
	}
	if n > maxRBFSites {
		return nil, fmt.Errorf("%w: %d > %d", errTooManySites, n, maxRBFSites)
	}
	if work := extent.Cells() * n; work > maxRBFWork {
		return nil, fmt.Errorf("%w: %d evaluations", errTooMuchWork, work)
	}

	hull := convexHull(samples)
	if len(hull) < 3 {
		return nil, errCollinear
	}

	// Work in unit-ish coordinates so the kernel stays well conditioned.
	scale := float64(max(extent.Width, extent.Height))
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, s := range samples {
		xs[i], ys[i] = s.x/scale, s.y/scale
	}

	size := n + 3
	a := mat.NewDense(size, size, nil)
	b := mat.NewVecDense(size, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			a.Set(i, j, thinPlate(math.Hypot(xs[i]-xs[j], ys[i]-ys[j])))
		}
		a.Set(i, n, 1)
		a.Set(i, n+1, xs[i])
		a.Set(i, n+2, ys[i])
		a.Set(n, i, 1)
		a.Set(n+1, i, xs[i])
		a.Set(n+2, i, ys[i])
		b.SetVec(i, samples[i].v)
	}

	var w mat.VecDense
	if err := w.SolveVec(a, b); err != nil {
		return nil, fmt.Errorf("solve: %w", err)
	}

	values := filled(extent, fill)
	for py := 0; py < extent.Height; py++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for px := 0; px < extent.Width; px++ {
			if !insideHull(hull, float64(px), float64(py)) {
				continue
			}
			qx, qy := float64(px)/scale, float64(py)/scale
			v := w.AtVec(n) + w.AtVec(n+1)*qx + w.AtVec(n+2)*qy
			for i := 0; i < n; i++ {
				v += w.AtVec(i) * thinPlate(math.Hypot(qx-xs[i], qy-ys[i]))
			}
			values[py*extent.Width+px] = v
		}
	}
	return values, nil
}

func thinPlate(r float64) float64 {
	if r == 0 {
		return 0
	}
	return r * r * math.Log(r)
}

// interpolateLinear triangulates the samples and interpolates barycentrically
// within each triangle. Cells outside every triangle keep the fill value.
func interpolateLinear(ctx context.Context, samples []sample, extent domain.RasterExtent, fill float64) ([]float64, error) {
	if len(samples) < 3 {
		return nil, errTooFewSites
	}
	tris := triangulate(samples)
	if len(tris) == 0 {
		return nil, errCollinear
	}

	values := filled(extent, fill)
	for _, t := range tris {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a, b, c := samples[t.a], samples[t.b], samples[t.c]
		den := (b.y-c.y)*(a.x-c.x) + (c.x-b.x)*(a.y-c.y)
		if math.Abs(den) < 1e-12 {
			continue
		}

		x0 := clampInt(int(math.Floor(math.Min(a.x, math.Min(b.x, c.x)))), 0, extent.Width-1)
		x1 := clampInt(int(math.Ceil(math.Max(a.x, math.Max(b.x, c.x)))), 0, extent.Width-1)
		y0 := clampInt(int(math.Floor(math.Min(a.y, math.Min(b.y, c.y)))), 0, extent.Height-1)
		y1 := clampInt(int(math.Ceil(math.Max(a.y, math.Max(b.y, c.y)))), 0, extent.Height-1)

		for py := y0; py <= y1; py++ {
			for px := x0; px <= x1; px++ {
				fx, fy := float64(px), float64(py)
				l1 := ((b.y-c.y)*(fx-c.x) + (c.x-b.x)*(fy-c.y)) / den
				l2 := ((c.y-a.y)*(fx-c.x) + (a.x-c.x)*(fy-c.y)) / den
				l3 := 1 - l1 - l2
				if l1 < -1e-9 || l2 < -1e-9 || l3 < -1e-9 {
					continue
				}
				values[py*extent.Width+px] = l1*a.v + l2*b.v + l3*c.v
			}
		}
	}
	return values, nil
}

// interpolateNearest assigns every cell the value of its closest sample.
func interpolateNearest(ctx context.Context, samples []sample, extent domain.RasterExtent, _ float64) ([]float64, error) {
	if len(samples) == 0 {
		return nil, errTooFewSites
	}

	byPos := make(map[[2]float64]float64, len(samples))
	pts := make(kdtree.Points, len(samples))
	for i, s := range samples {
		pts[i] = kdtree.Point{s.x, s.y}
		byPos[[2]float64{s.x, s.y}] = s.v
	}
	tree := kdtree.New(pts, false)

	values := make([]float64, extent.Cells())
	q := make(kdtree.Point, 2)
	for py := 0; py < extent.Height; py++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for px := 0; px < extent.Width; px++ {
			q[0], q[1] = float64(px), float64(py)
			got, _ := tree.Nearest(q)
			p := got.(kdtree.Point)
			values[py*extent.Width+px] = byPos[[2]float64{p[0], p[1]}]
		}
	}
	return values, nil
}

func filled(extent domain.RasterExtent, fill float64) []float64 {
	values := make([]float64, extent.Cells())
	if fill != 0 {
		for i := range values {
			values[i] = fill
		}
	}
	return values
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
