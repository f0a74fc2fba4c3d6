package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/signalmap/internal/core/domain"
	"github.com/samirrijal/signalmap/internal/core/ports"
	"github.com/samirrijal/signalmap/internal/pkg/heatmap"
	"github.com/samirrijal/signalmap/internal/pkg/metrics"
	"github.com/samirrijal/signalmap/internal/pkg/telemetry"
)

const (
	generationKey    = "heatmap:generation"
	snapshotImageKey = "heatmap:snapshot:png"
	snapshotMetaKey  = "heatmap:snapshot:meta"
	snapshotTTL      = 7 * 24 * 3600
)

// HeatmapService builds, caches and renders coverage heatmaps.
type HeatmapService struct {
	repo      ports.MeasurementRepository
	cache     ports.CacheService
	renderers map[string]ports.FieldRenderer
	floor     domain.Floorplan
	opts      heatmap.Options
	cacheTTL  int
	now       func() time.Time
}

// NewHeatmapService creates a new HeatmapService. cache may be nil;
// renderers is keyed by format name ("png", "html").
func NewHeatmapService(
	repo ports.MeasurementRepository,
	cache ports.CacheService,
	renderers map[string]ports.FieldRenderer,
	floor domain.Floorplan,
	opts heatmap.Options,
	cacheTTL int,
) *HeatmapService {
	opts.Orientation = floor.Orientation
	if cacheTTL <= 0 {
		cacheTTL = 60
	}
	return &HeatmapService{
		repo:      repo,
		cache:     cache,
		renderers: renderers,
		floor:     floor,
		opts:      opts,
		cacheTTL:  cacheTTL,
		now:       time.Now,
	}
}

// WithClock replaces the time source.
func (s *HeatmapService) WithClock(now func() time.Time) *HeatmapService {
	s.now = now
	return s
}

// Points returns every mapped measurement and the display maximum.
func (s *HeatmapService) Points(ctx context.Context, extent domain.RasterExtent) ([]domain.HeatPoint, float64, error) {
	extent, err := s.floor.ResolveExtent(extent)
	if err != nil {
		return nil, 0, err
	}
	records, err := s.records(ctx)
	if err != nil {
		return nil, 0, err
	}
	return heatmap.Points(records, s.floor.Bounds, extent, s.opts)
}

// Field returns the interpolated field for extent, reading through the cache.
func (s *HeatmapService) Field(ctx context.Context, extent domain.RasterExtent) (domain.ScalarField, error) {
	extent, err := s.floor.ResolveExtent(extent)
	if err != nil {
		return domain.ScalarField{}, err
	}

	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanHeatmapBuild)
	defer span.End()
	span.SetAttributes(
		attribute.Int(telemetry.AttrExtentWidth, extent.Width),
		attribute.Int(telemetry.AttrExtentHeight, extent.Height),
	)

	key := s.fieldKey(ctx, extent)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key); err == nil {
			var field domain.ScalarField
			if err := json.Unmarshal(data, &field); err == nil {
				metrics.CacheHits.WithLabelValues("heatmap_field").Inc()
				span.SetAttributes(attribute.Bool(telemetry.AttrCacheHit, true))
				return field, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("heatmap_field").Inc()
	}
	span.SetAttributes(attribute.Bool(telemetry.AttrCacheHit, false))

	records, err := s.records(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.ScalarField{}, err
	}

	start := time.Now()
	field, err := heatmap.Aggregate(ctx, records, s.floor.Bounds, extent, s.opts)
	if err != nil {
		if !errors.Is(err, domain.ErrInsufficientData) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return domain.ScalarField{}, err
	}
	metrics.HeatmapBuildDuration.Observe(time.Since(start).Seconds())
	metrics.HeatmapBuilds.WithLabelValues(field.Method).Inc()
	span.SetAttributes(
		attribute.String(telemetry.AttrMethod, field.Method),
		attribute.Int(telemetry.AttrPoints, field.Points),
	)

	if s.cache != nil {
		if data, err := json.Marshal(field); err == nil {
			_ = s.cache.Set(ctx, key, data, s.cacheTTL)
		}
	}
	return field, nil
}

// Invalidate retires every cached field by moving to a new generation.
func (s *HeatmapService) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Set(ctx, generationKey, []byte(uuid.NewString()), snapshotTTL)
}

// Render produces the heatmap in the requested format and returns the
// document with its content type.
func (s *HeatmapService) Render(ctx context.Context, extent domain.RasterExtent, format string) ([]byte, string, error) {
	if _, ok := s.renderers[format]; !ok {
		return nil, "", fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, format)
	}
	field, err := s.Field(ctx, extent)
	if err != nil {
		return nil, "", err
	}
	return s.render(ctx, format, field, extent)
}

// Snapshot renders a PNG at the floor plan's default extent and stores it as
// the latest snapshot.
func (s *HeatmapService) Snapshot(ctx context.Context) (domain.HeatmapSnapshot, error) {
	if s.cache == nil {
		return domain.HeatmapSnapshot{}, errors.New("snapshot store unavailable")
	}
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanSnapshot)
	defer span.End()

	field, err := s.Field(ctx, s.floor.Extent)
	if err != nil {
		return domain.HeatmapSnapshot{}, err
	}
	img, _, err := s.render(ctx, "png", field, s.floor.Extent)
	if err != nil {
		return domain.HeatmapSnapshot{}, err
	}

	snap := domain.HeatmapSnapshot{
		ID:        uuid.NewString(),
		Extent:    s.floor.Extent,
		Max:       field.Max,
		Method:    field.Method,
		Points:    field.Points,
		CreatedAt: s.now().UTC(),
	}
	meta, err := json.Marshal(snap)
	if err != nil {
		return domain.HeatmapSnapshot{}, err
	}
	if err := s.cache.Set(ctx, snapshotImageKey, img, snapshotTTL); err != nil {
		return domain.HeatmapSnapshot{}, fmt.Errorf("store snapshot image: %w", err)
	}
	if err := s.cache.Set(ctx, snapshotMetaKey, meta, snapshotTTL); err != nil {
		return domain.HeatmapSnapshot{}, fmt.Errorf("store snapshot metadata: %w", err)
	}
	return snap, nil
}

func (s *HeatmapService) render(ctx context.Context, format string, field domain.ScalarField, extent domain.RasterExtent) ([]byte, string, error) {
	r, ok := s.renderers[format]
	if !ok {
		return nil, "", fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, format)
	}
	points, _, err := s.Points(ctx, extent)
	if err != nil {
		return nil, "", err
	}

	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanHeatmapRender)
	defer span.End()
	span.SetAttributes(attribute.String(telemetry.AttrFormat, format))

	doc, err := r.Render(ctx, field, points)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, "", fmt.Errorf("render %s: %w", format, err)
	}
	return doc, r.ContentType(), nil
}

// LatestSnapshot returns the most recently stored snapshot image.
func (s *HeatmapService) LatestSnapshot(ctx context.Context) ([]byte, domain.HeatmapSnapshot, error) {
	if s.cache == nil {
		return nil, domain.HeatmapSnapshot{}, domain.ErrSnapshotNotFound
	}
	meta, err := s.cache.Get(ctx, snapshotMetaKey)
	if err != nil {
		return nil, domain.HeatmapSnapshot{}, fmt.Errorf("%w: %v", domain.ErrSnapshotNotFound, err)
	}
	var snap domain.HeatmapSnapshot
	if err := json.Unmarshal(meta, &snap); err != nil {
		return nil, domain.HeatmapSnapshot{}, fmt.Errorf("decode snapshot metadata: %w", err)
	}
	img, err := s.cache.Get(ctx, snapshotImageKey)
	if err != nil {
		return nil, domain.HeatmapSnapshot{}, fmt.Errorf("%w: %v", domain.ErrSnapshotNotFound, err)
	}
	return img, snap, nil
}

// Floorplan returns the configured floor plan.
func (s *HeatmapService) Floorplan() domain.Floorplan {
	return s.floor
}

func (s *HeatmapService) records(ctx context.Context) ([]domain.MeasurementRecord, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanRecordsFetch)
	defer span.End()
	records, err := s.repo.ListRecords(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list measurements: %w", err)
	}
	return records, nil
}

func (s *HeatmapService) fieldKey(ctx context.Context, extent domain.RasterExtent) string {
	gen := "0"
	if s.cache != nil {
		if b, err := s.cache.Get(ctx, generationKey); err == nil && len(b) > 0 {
			gen = string(b)
		}
	}
	return fmt.Sprintf("heatmap:field:%s:%dx%d:%s", gen, extent.Width, extent.Height, s.floor.Orientation)
}
