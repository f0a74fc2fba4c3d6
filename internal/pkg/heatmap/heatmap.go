// Package heatmap turns scattered speed-test measurements into a dense
// scalar field over a floor-plan raster.
package heatmap

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/samirrijal/signalmap/internal/core/domain"
	"github.com/samirrijal/signalmap/internal/pkg/geospatial"
)

// Interpolation methods, tried in the order given by Options.Methods.
const (
	MethodRBF     = "rbf"
	MethodLinear  = "linear"
	MethodNearest = "nearest"
)

// Options controls aggregation. The zero value is not useful; start from
// DefaultOptions.
type Options struct {
	MinPoints   int
	ValueCap    float64
	MinMax      float64
	Fill        float64
	SmoothSigma float64
	Orientation domain.Orientation
	Methods     []string
}

// DefaultOptions returns the settings used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		MinPoints:   3,
		ValueCap:    500,
		MinMax:      1,
		Fill:        0,
		Orientation: domain.OrientationNorthLeft,
		Methods:     []string{MethodRBF, MethodLinear, MethodNearest},
	}
}

// sample is a measurement value at a raster position.
type sample struct {
	x, y float64
	v    float64
}

// Points maps every usable record onto the raster and returns the points
// together with the display maximum (largest value, floored at MinMax).
func Points(records []domain.MeasurementRecord, box domain.BoundingBox, extent domain.RasterExtent, opts Options) ([]domain.HeatPoint, float64, error) {
	if err := box.Validate(); err != nil {
		return nil, 0, err
	}
	if err := extent.Validate(); err != nil {
		return nil, 0, err
	}

	points := make([]domain.HeatPoint, 0, len(records))
	for _, r := range records {
		if r.Location == nil || math.IsNaN(r.Download) || math.IsInf(r.Download, 0) {
			continue
		}
		m, err := geospatial.MapToRaster(*r.Location, box, extent, opts.Orientation)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidCoordinateFormat) {
				continue
			}
			return nil, 0, err
		}
		points = append(points, domain.HeatPoint{X: m.X, Y: m.Y, Value: capValue(r.Download, opts.ValueCap)})
	}

	return points, displayMax(points, opts.MinMax), nil
}

// Aggregate interpolates the usable records into a ScalarField sized to extent.
// Fewer than MinPoints usable records yields ErrInsufficientData. A cancelled
// ctx stops interpolation between raster rows.
func Aggregate(ctx context.Context, records []domain.MeasurementRecord, box domain.BoundingBox, extent domain.RasterExtent, opts Options) (domain.ScalarField, error) {
	points, peak, err := Points(records, box, extent, opts)
	if err != nil {
		return domain.ScalarField{}, err
	}
	minPoints := opts.MinPoints
	if minPoints < 1 {
		minPoints = 1
	}
	if len(points) < minPoints {
		return domain.ScalarField{}, fmt.Errorf("%w: %d usable measurements, need %d", domain.ErrInsufficientData, len(points), minPoints)
	}

	samples := mergeSamples(points)
	methods := opts.Methods
	if len(methods) == 0 {
		methods = DefaultOptions().Methods
	}

	var (
		values []float64
		method string
		errs   []error
	)
	for _, m := range methods {
		interp, ok := interpolators[m]
		if !ok {
			errs = append(errs, fmt.Errorf("%s: unknown method", m))
			continue
		}
		v, err := interp(ctx, samples, extent, opts.Fill)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.ScalarField{}, ctxErr
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m, err))
			continue
		}
		values, method = v, m
		break
	}
	if values == nil {
		return domain.ScalarField{}, fmt.Errorf("%w: no interpolation method succeeded: %w", domain.ErrInsufficientData, errors.Join(errs...))
	}

	if opts.SmoothSigma > 0 {
		values = gaussianSmooth(values, extent.Width, extent.Height, opts.SmoothSigma)
	}
	clampValues(values, math.Min(0, opts.Fill), opts.ValueCap)

	return domain.ScalarField{
		Width:  extent.Width,
		Height: extent.Height,
		Values: values,
		Max:    peak,
		Method: method,
		Points: len(points),
	}, nil
}

// mergeSamples averages points that landed on the same pixel so every
// interpolator sees distinct sites.
func mergeSamples(points []domain.HeatPoint) []sample {
	type acc struct {
		sum float64
		n   int
	}
	byPixel := make(map[[2]int]*acc, len(points))
	for _, p := range points {
		k := [2]int{p.X, p.Y}
		a, ok := byPixel[k]
		if !ok {
			a = &acc{}
			byPixel[k] = a
		}
		a.sum += p.Value
		a.n++
	}

	out := make([]sample, 0, len(byPixel))
	for k, a := range byPixel {
		out = append(out, sample{x: float64(k[0]), y: float64(k[1]), v: a.sum / float64(a.n)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].y != out[j].y {
			return out[i].y < out[j].y
		}
		return out[i].x < out[j].x
	})
	return out
}

func capValue(v, limit float64) float64 {
	if v < 0 {
		return 0
	}
	if limit > 0 && v > limit {
		return limit
	}
	return v
}

func displayMax(points []domain.HeatPoint, floor float64) float64 {
	if len(points) == 0 {
		return floor
	}
	vals := make([]float64, len(points))
	for i, p := range points {
		vals[i] = p.Value
	}
	return math.Max(floats.Max(vals), floor)
}

func clampValues(values []float64, lo, hi float64) {
	for i, v := range values {
		switch {
		case math.IsNaN(v) || v < lo:
			values[i] = lo
		case hi > 0 && v > hi:
			values[i] = hi
		}
	}
}
