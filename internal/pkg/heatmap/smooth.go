package heatmap

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// gaussianSmooth blurs a row-major grid with a separable Gaussian kernel.
// Edges are handled by clamping to the nearest cell.
func gaussianSmooth(values []float64, width, height int, sigma float64) []float64 {
	kernel := gaussianKernel(sigma)
	radius := len(kernel) / 2

	tmp := make([]float64, len(values))
	for y := 0; y < height; y++ {
		row := y * width
		for x := 0; x < width; x++ {
			var acc float64
			for k, w := range kernel {
				sx := clampInt(x+k-radius, 0, width-1)
				acc += w * values[row+sx]
			}
			tmp[row+x] = acc
		}
	}

	out := make([]float64, len(values))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var acc float64
			for k, w := range kernel {
				sy := clampInt(y+k-radius, 0, height-1)
				acc += w * tmp[sy*width+x]
			}
			out[y*width+x] = acc
		}
	}
	return out
}

func gaussianKernel(sigma float64) []float64 {
	radius := int(math.Ceil(3 * sigma))
	if radius < 1 {
		radius = 1
	}
	kernel := make([]float64, 2*radius+1)
	for i := range kernel {
		d := float64(i - radius)
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
	}
	floats.Scale(1/floats.Sum(kernel), kernel)
	return kernel
}
