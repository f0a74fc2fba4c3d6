package render

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/signalmap/internal/core/domain"
)

func rampField(w, h int) domain.ScalarField {
	f := domain.ScalarField{Width: w, Height: h, Values: make([]float64, w*h), Max: float64(w), Method: "linear", Points: 3}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			f.Values[y*w+x] = float64(x)
		}
	}
	return f
}

func TestPNGRenderSize(t *testing.T) {
	r, err := NewPNG()
	require.NoError(t, err)
	assert.Equal(t, "image/png", r.ContentType())

	doc, err := r.Render(context.Background(), rampField(60, 40), []domain.HeatPoint{{X: 1, Y: 1, Value: 3}})
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 60, cfg.Width)
	assert.Equal(t, 40, cfg.Height)
}

func TestPNGRenderZeroMax(t *testing.T) {
	r, err := NewPNG()
	require.NoError(t, err)

	f := domain.ScalarField{Width: 4, Height: 4, Values: make([]float64, 16)}
	doc, err := r.Render(context.Background(), f, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, doc)
}

func TestPNGRenderRejectsMalformedField(t *testing.T) {
	r, err := NewPNG()
	require.NoError(t, err)

	_, err = r.Render(context.Background(), domain.ScalarField{Width: 3, Height: 3, Values: []float64{1}}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidExtent)
}

func TestPNGFloorImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "floor.png")
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(0, 0, color.Black)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	r, err := NewPNG(WithFloorImage(path), WithAlpha(0.5))
	require.NoError(t, err)

	doc, err := r.Render(context.Background(), rampField(20, 10), nil)
	require.NoError(t, err)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Width)
}

func TestPNGOptionErrors(t *testing.T) {
	_, err := NewPNG(WithFloorImage(filepath.Join(t.TempDir(), "missing.png")))
	assert.Error(t, err)

	_, err = NewPNG(WithAlpha(1.5))
	assert.Error(t, err)

	r, err := NewPNG(WithFloorImage(""))
	require.NoError(t, err)
	assert.Nil(t, r.floor)
}

func TestHTMLRender(t *testing.T) {
	r := NewHTML("Coverage", 0)
	assert.Equal(t, "text/html; charset=utf-8", r.ContentType())

	doc, err := r.Render(context.Background(), rampField(300, 200), []domain.HeatPoint{{X: 10, Y: 20, Value: 42.5}})
	require.NoError(t, err)

	html := string(doc)
	assert.True(t, strings.Contains(html, "<html"))
	assert.Contains(t, html, "Coverage")
	assert.Contains(t, html, "heatmap")
	assert.Contains(t, html, "scatter")
}

func TestHTMLRenderWithoutPoints(t *testing.T) {
	doc, err := NewHTML("Coverage", 10).Render(context.Background(), rampField(30, 30), nil)
	require.NoError(t, err)
	assert.NotContains(t, string(doc), "\"scatter\"")
}

func TestBlockSize(t *testing.T) {
	assert.Equal(t, 1, blockSize(50, 40, 120))
	assert.Equal(t, 9, blockSize(1003, 800, 120))
	assert.Equal(t, 2, blockSize(100, 240, 120))
}

func TestBlockMean(t *testing.T) {
	f := rampField(5, 5)
	assert.InDelta(t, 0.5, blockMean(f, 0, 0, 2), 1e-9)
	// Trailing block is clipped to the field.
	assert.InDelta(t, 4.0, blockMean(f, 4, 4, 2), 1e-9)
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 1.24, round2(1.2351))
	assert.Equal(t, -1.24, round2(-1.2351))
}
