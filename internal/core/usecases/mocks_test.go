package usecases_test

import (
	"context"
	"errors"
	"sync"

	"github.com/samirrijal/signalmap/internal/core/domain"
)

var testFloor = domain.Floorplan{
	Bounds: domain.BoundingBox{
		MinLat: 43.037278,
		MaxLat: 43.037944,
		MinLon: -76.132944,
		MaxLon: -76.132194,
	},
	Extent:      domain.RasterExtent{Width: 375, Height: 300},
	Orientation: domain.OrientationNorthLeft,
}

// --- Mock MeasurementRepository ---

type mockMeasurementRepo struct {
	saveLocationFn func(ctx context.Context, sample domain.LocationSample) error
	saveSpeedFn    func(ctx context.Context, result domain.SpeedResult) error
	listRecordsFn  func(ctx context.Context) ([]domain.MeasurementRecord, error)
	listCalls      int
}

func (m *mockMeasurementRepo) SaveLocation(ctx context.Context, sample domain.LocationSample) error {
	if m.saveLocationFn != nil {
		return m.saveLocationFn(ctx, sample)
	}
	return nil
}

func (m *mockMeasurementRepo) SaveSpeed(ctx context.Context, result domain.SpeedResult) error {
	if m.saveSpeedFn != nil {
		return m.saveSpeedFn(ctx, result)
	}
	return nil
}

func (m *mockMeasurementRepo) ListRecords(ctx context.Context) ([]domain.MeasurementRecord, error) {
	m.listCalls++
	if m.listRecordsFn != nil {
		return m.listRecordsFn(ctx)
	}
	return nil, nil
}

func (m *mockMeasurementRepo) ImportBatch(ctx context.Context, records []domain.MeasurementRecord) (int, error) {
	return len(records), nil
}

func (m *mockMeasurementRepo) Ping(ctx context.Context) error { return nil }

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu           sync.Mutex
	positions    []*domain.PositionEvent
	measurements []*domain.MeasurementEvent
	err          error
}

func (m *mockPublisher) PublishPosition(ctx context.Context, event *domain.PositionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions = append(m.positions, event)
	return m.err
}

func (m *mockPublisher) PublishMeasurement(ctx context.Context, event *domain.MeasurementEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.measurements = append(m.measurements, event)
	return m.err
}

// --- Mock CacheService ---

var errCacheMiss = errors.New("cache miss")

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, errCacheMiss
	}
	return v, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.sets++
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// --- Mock FieldRenderer ---

type mockRenderer struct {
	contentType string
	renderFn    func(ctx context.Context, field domain.ScalarField, points []domain.HeatPoint) ([]byte, error)
}

func (m *mockRenderer) Render(ctx context.Context, field domain.ScalarField, points []domain.HeatPoint) ([]byte, error) {
	if m.renderFn != nil {
		return m.renderFn(ctx, field, points)
	}
	return []byte("rendered"), nil
}

func (m *mockRenderer) ContentType() string { return m.contentType }

// --- Mock invalidator ---

type mockInvalidator struct {
	calls int
	err   error
}

func (m *mockInvalidator) Invalidate(ctx context.Context) error {
	m.calls++
	return m.err
}
