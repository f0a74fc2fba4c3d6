package usecases_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/signalmap/internal/core/domain"
	"github.com/samirrijal/signalmap/internal/core/ports"
	"github.com/samirrijal/signalmap/internal/core/usecases"
	"github.com/samirrijal/signalmap/internal/pkg/heatmap"
)

func at(lat, lon float64) *domain.GeoPoint {
	return &domain.GeoPoint{Lat: lat, Lon: lon}
}

func sampleRecords() []domain.MeasurementRecord {
	return []domain.MeasurementRecord{
		{TestID: 1, Download: 120, Location: at(43.0379, -76.1329)},
		{TestID: 2, Download: 40, Location: at(43.0373, -76.1329)},
		{TestID: 3, Download: 80, Location: at(43.0373, -76.1322)},
		{TestID: 4, Download: 60, Location: at(43.0379, -76.1322)},
		{TestID: 5, Download: 30},
	}
}

func newHeatmapService(repo *mockMeasurementRepo, cache ports.CacheService) *usecases.HeatmapService {
	renderers := map[string]ports.FieldRenderer{
		"png":  &mockRenderer{contentType: "image/png"},
		"html": &mockRenderer{contentType: "text/html; charset=utf-8"},
	}
	floor := testFloor
	floor.Extent = domain.RasterExtent{Width: 40, Height: 30}
	return usecases.NewHeatmapService(repo, cache, renderers, floor, heatmap.DefaultOptions(), 60).
		WithClock(func() time.Time { return fixedNow })
}

func TestHeatmapService_Points(t *testing.T) {
	repo := &mockMeasurementRepo{listRecordsFn: func(ctx context.Context) ([]domain.MeasurementRecord, error) {
		return sampleRecords(), nil
	}}
	svc := newHeatmapService(repo, nil)

	points, peak, err := svc.Points(context.Background(), domain.RasterExtent{})
	require.NoError(t, err)
	assert.Len(t, points, 4)
	assert.Equal(t, 120.0, peak)
}

func TestHeatmapService_FieldReadsThroughCache(t *testing.T) {
	repo := &mockMeasurementRepo{listRecordsFn: func(ctx context.Context) ([]domain.MeasurementRecord, error) {
		return sampleRecords(), nil
	}}
	cache := newMockCache()
	svc := newHeatmapService(repo, cache)
	ctx := context.Background()

	first, err := svc.Field(ctx, domain.RasterExtent{})
	require.NoError(t, err)
	assert.Equal(t, 40, first.Width)
	assert.Equal(t, 1, repo.listCalls)

	second, err := svc.Field(ctx, domain.RasterExtent{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, repo.listCalls, "second call must be served from cache")

	require.NoError(t, svc.Invalidate(ctx))
	_, err = svc.Field(ctx, domain.RasterExtent{})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.listCalls, "invalidation must force a rebuild")
}

func TestHeatmapService_FieldInsufficientData(t *testing.T) {
	repo := &mockMeasurementRepo{listRecordsFn: func(ctx context.Context) ([]domain.MeasurementRecord, error) {
		return sampleRecords()[:2], nil
	}}
	svc := newHeatmapService(repo, newMockCache())

	_, err := svc.Field(context.Background(), domain.RasterExtent{})
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}

func TestHeatmapService_RepoError(t *testing.T) {
	repo := &mockMeasurementRepo{listRecordsFn: func(ctx context.Context) ([]domain.MeasurementRecord, error) {
		return nil, errors.New("connection refused")
	}}
	svc := newHeatmapService(repo, nil)

	_, err := svc.Field(context.Background(), domain.RasterExtent{})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrInsufficientData)
}

func TestHeatmapService_Render(t *testing.T) {
	repo := &mockMeasurementRepo{listRecordsFn: func(ctx context.Context) ([]domain.MeasurementRecord, error) {
		return sampleRecords(), nil
	}}
	svc := newHeatmapService(repo, nil)
	ctx := context.Background()

	doc, ct, err := svc.Render(ctx, domain.RasterExtent{Width: 20, Height: 20}, "png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", ct)
	assert.Equal(t, []byte("rendered"), doc)

	_, _, err = svc.Render(ctx, domain.RasterExtent{}, "svg")
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}

func TestHeatmapService_Snapshot(t *testing.T) {
	repo := &mockMeasurementRepo{listRecordsFn: func(ctx context.Context) ([]domain.MeasurementRecord, error) {
		return sampleRecords(), nil
	}}
	cache := newMockCache()
	svc := newHeatmapService(repo, cache)
	ctx := context.Background()

	_, _, err := svc.LatestSnapshot(ctx)
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, 120.0, snap.Max)
	assert.Equal(t, fixedNow, snap.CreatedAt)

	img, meta, err := svc.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("rendered"), img)
	assert.Equal(t, snap.ID, meta.ID)
}

func TestHeatmapService_SnapshotWithoutCache(t *testing.T) {
	svc := newHeatmapService(&mockMeasurementRepo{}, nil)
	_, err := svc.Snapshot(context.Background())
	assert.Error(t, err)
}
