package http

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/signalmap/internal/core/usecases"
)

// Pinger is a dependency that can report its own reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Sessions     *usecases.SessionService
	Measurements *usecases.MeasurementService
	Heatmap      *usecases.HeatmapService
	NATS         *nats.Conn
	DB           Pinger
	Cache        Pinger

	// Payload backs /backend/garbage; generated on setup when nil.
	Payload []byte
	// LegacySunset is announced on the legacy aliases; zero uses DefaultLegacySunset.
	LegacySunset time.Time
	// RequestLimit is the per-IP request budget per minute; zero disables limiting.
	RequestLimit int
}
