package http

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/signalmap/internal/core/domain"
	"github.com/samirrijal/signalmap/internal/pkg/geospatial"
)

// PointsResponse matches what client-side heatmap libraries expect.
type PointsResponse struct {
	Max    float64             `json:"max"`
	Data   []domain.HeatPoint  `json:"data"`
	Extent domain.RasterExtent `json:"extent"`
}

// FieldResponse wraps a dense field; Ready is false when there is not yet
// enough data to interpolate.
type FieldResponse struct {
	Ready  bool                `json:"ready"`
	Reason string              `json:"reason,omitempty"`
	Field  *domain.ScalarField `json:"field,omitempty"`
}

// FloorplanResponse describes the configured floor plan.
type FloorplanResponse struct {
	Bounds      domain.BoundingBox  `json:"bounds"`
	Extent      domain.RasterExtent `json:"extent"`
	Orientation domain.Orientation  `json:"orientation"`
	SpanMeters  struct {
		NorthSouth float64 `json:"north_south"`
		EastWest   float64 `json:"east_west"`
	} `json:"span_meters"`
}

// HeatmapPointsHandler returns every mapped measurement and the display max.
func HeatmapPointsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		extent, err := parseExtent(c)
		if err != nil {
			return errFromDomain(c, err)
		}
		resp, err := heatmapPoints(c, deps, extent)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(resp)
	}
}

func heatmapPoints(c *fiber.Ctx, deps *Dependencies, extent domain.RasterExtent) (PointsResponse, error) {
	resolved, err := deps.Heatmap.Floorplan().ResolveExtent(extent)
	if err != nil {
		return PointsResponse{}, err
	}
	points, peak, err := deps.Heatmap.Points(c.UserContext(), resolved)
	if err != nil {
		return PointsResponse{}, err
	}
	if points == nil {
		points = []domain.HeatPoint{}
	}
	return PointsResponse{Max: peak, Data: points, Extent: resolved}, nil
}

// HeatmapFieldHandler returns the interpolated field.
func HeatmapFieldHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		extent, err := parseExtent(c)
		if err != nil {
			return errFromDomain(c, err)
		}
		field, err := deps.Heatmap.Field(c.UserContext(), extent)
		if errors.Is(err, domain.ErrInsufficientData) {
			return c.JSON(FieldResponse{Ready: false, Reason: err.Error()})
		}
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(FieldResponse{Ready: true, Field: &field})
	}
}

// HeatmapRenderHandler renders the field in format. Without enough data it
// answers 204 so image tags can fall back to the bare floor plan.
func HeatmapRenderHandler(deps *Dependencies, format string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		extent, err := parseExtent(c)
		if err != nil {
			return errFromDomain(c, err)
		}
		doc, contentType, err := deps.Heatmap.Render(c.UserContext(), extent, format)
		if errors.Is(err, domain.ErrInsufficientData) {
			return c.SendStatus(fiber.StatusNoContent)
		}
		if err != nil {
			return errFromDomain(c, err)
		}
		c.Set(fiber.HeaderContentType, contentType)
		return c.Send(doc)
	}
}

// HeatmapSnapshotHandler serves the last snapshot stored by the snapshot workflow.
func HeatmapSnapshotHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		img, snap, err := deps.Heatmap.LatestSnapshot(c.UserContext())
		if err != nil {
			return errFromDomain(c, err)
		}
		c.Set(fiber.HeaderContentType, "image/png")
		c.Set("X-Snapshot-Id", snap.ID)
		c.Set(fiber.HeaderLastModified, snap.CreatedAt.UTC().Format(time.RFC1123))
		return c.Send(img)
	}
}

// FloorplanHandler describes the configured floor plan.
func FloorplanHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fp := deps.Heatmap.Floorplan()
		resp := FloorplanResponse{Bounds: fp.Bounds, Extent: fp.Extent, Orientation: fp.Orientation}
		resp.SpanMeters.NorthSouth, resp.SpanMeters.EastWest = geospatial.SpanMeters(fp.Bounds)
		return c.JSON(resp)
	}
}
