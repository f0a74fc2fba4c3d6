package ports

import (
	"context"
	"time"

	"github.com/samirrijal/signalmap/internal/core/domain"
)

// SessionStore holds the latest live position per session.
// Every method is atomic; implementations never expose their lock.
type SessionStore interface {
	Upsert(id string, p domain.GeoPoint, now time.Time) error
	Get(id string) (domain.Session, error)
	ListIDs() []string
	Snapshot() []domain.Session
	// RemoveStale deletes the given ids that are invalid or whose LastSeen is
	// still before cutoff, and returns the ids actually removed.
	RemoveStale(ids []string, cutoff time.Time) []string
	Len() int
}

// TestIdentityRegistry maps sessions to their current test id.
type TestIdentityRegistry interface {
	Issue(sessionID string, now time.Time) (int64, error)
	Lookup(sessionID string) (int64, error)
	// Remove drops the identities of the given sessions and returns how many
	// existed.
	Remove(sessionIDs ...string) int
	// RemoveIssuedBefore deletes identities issued before cutoff unless
	// keep reports their session as still wanted.
	RemoveIssuedBefore(cutoff time.Time, keep func(sessionID string) bool) []string
	Len() int
}

// IDGenerator produces test ids.
type IDGenerator interface {
	Next() (int64, error)
}

// MeasurementRepository persists location samples and speed results keyed by
// test id.
type MeasurementRepository interface {
	SaveLocation(ctx context.Context, sample domain.LocationSample) error
	SaveSpeed(ctx context.Context, result domain.SpeedResult) error
	// ListRecords joins speed results with their location by test id.
	ListRecords(ctx context.Context) ([]domain.MeasurementRecord, error)
	// ImportBatch writes complete records in one round trip.
	ImportBatch(ctx context.Context, records []domain.MeasurementRecord) (int, error)
	Ping(ctx context.Context) error
}
