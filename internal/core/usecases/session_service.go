package usecases

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/signalmap/internal/core/domain"
	"github.com/samirrijal/signalmap/internal/core/ports"
	"github.com/samirrijal/signalmap/internal/pkg/geospatial"
	"github.com/samirrijal/signalmap/internal/pkg/metrics"
)

// SessionService handles live position reports.
type SessionService struct {
	sessions  ports.SessionStore
	publisher ports.EventPublisher
	floor     domain.Floorplan
	now       func() time.Time
}

// NewSessionService creates a new SessionService. publisher may be nil.
func NewSessionService(sessions ports.SessionStore, publisher ports.EventPublisher, floor domain.Floorplan) *SessionService {
	return &SessionService{sessions: sessions, publisher: publisher, floor: floor, now: time.Now}
}

// WithClock replaces the time source.
func (s *SessionService) WithClock(now func() time.Time) *SessionService {
	s.now = now
	return s
}

// ReportPosition stores the latest position for a session. lat and lon may
// be JSON numbers or numeric strings.
func (s *SessionService) ReportPosition(ctx context.Context, sessionID string, lat, lon any) (domain.Session, error) {
	if sessionID == "" {
		metrics.PositionReports.WithLabelValues("rejected").Inc()
		return domain.Session{}, domain.ErrMissingSessionID
	}
	p, err := domain.ParseGeoPoint(lat, lon)
	if err != nil {
		metrics.PositionReports.WithLabelValues("rejected").Inc()
		return domain.Session{}, err
	}

	now := s.now()
	if err := s.sessions.Upsert(sessionID, p, now); err != nil {
		metrics.PositionReports.WithLabelValues("rejected").Inc()
		return domain.Session{}, err
	}
	metrics.PositionReports.WithLabelValues("accepted").Inc()
	metrics.ActiveSessions.Set(float64(s.sessions.Len()))

	if s.publisher != nil {
		event := &domain.PositionEvent{
			EventID:   uuid.NewString(),
			SessionID: sessionID,
			Position:  p,
			Time:      now,
		}
		if m, err := geospatial.MapToRaster(p, s.floor.Bounds, s.floor.Extent, s.floor.Orientation); err == nil {
			event.Mapped = &m
		}
		if err := s.publisher.PublishPosition(ctx, event); err != nil {
			slog.WarnContext(ctx, "publish position failed", "session_id", sessionID, "error", err)
		}
	}

	return domain.Session{ID: sessionID, Position: p, LastSeen: now}, nil
}

// LiveLocation maps a session's latest position onto extent. A missing
// session is reported as Found=false rather than an error.
func (s *SessionService) LiveLocation(ctx context.Context, sessionID string, extent domain.RasterExtent) (domain.LiveLocation, error) {
	if sessionID == "" {
		return domain.LiveLocation{}, domain.ErrMissingSessionID
	}
	extent, err := s.floor.ResolveExtent(extent)
	if err != nil {
		return domain.LiveLocation{}, err
	}

	sess, err := s.sessions.Get(sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return domain.LiveLocation{Found: false, Reason: "session not found"}, nil
	}
	if err != nil {
		return domain.LiveLocation{}, err
	}

	m, err := geospatial.MapToRaster(sess.Position, s.floor.Bounds, extent, s.floor.Orientation)
	if err != nil {
		return domain.LiveLocation{}, err
	}
	return domain.LiveLocation{Found: true, X: m.X, Y: m.Y, InBounds: m.InBounds}, nil
}

// Get returns the raw session.
func (s *SessionService) Get(ctx context.Context, sessionID string) (domain.Session, error) {
	if sessionID == "" {
		return domain.Session{}, domain.ErrMissingSessionID
	}
	return s.sessions.Get(sessionID)
}

// List returns every live session ordered by id.
func (s *SessionService) List(ctx context.Context) []domain.Session {
	return s.sessions.Snapshot()
}

// Floorplan returns the configured floor plan.
func (s *SessionService) Floorplan() domain.Floorplan {
	return s.floor
}
