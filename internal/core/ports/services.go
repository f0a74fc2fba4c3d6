package ports

import (
	"context"

	"github.com/samirrijal/signalmap/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishPosition(ctx context.Context, event *domain.PositionEvent) error
	PublishMeasurement(ctx context.Context, event *domain.MeasurementEvent) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeMeasurements(ctx context.Context, handler func(ctx context.Context, event *domain.MeasurementEvent) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// FieldRenderer turns a scalar field into a viewable document.
type FieldRenderer interface {
	Render(ctx context.Context, field domain.ScalarField, points []domain.HeatPoint) ([]byte, error)
	ContentType() string
}
