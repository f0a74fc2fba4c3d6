package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/signalmap/internal/core/domain"
	"github.com/samirrijal/signalmap/internal/core/ports"
	"github.com/samirrijal/signalmap/internal/pkg/metrics"
)

type heatmapInvalidator interface {
	Invalidate(ctx context.Context) error
}

// MeasurementService correlates speed-test results with test ids.
type MeasurementService struct {
	tests       ports.TestIdentityRegistry
	repo        ports.MeasurementRepository
	publisher   ports.EventPublisher
	invalidator heatmapInvalidator
	now         func() time.Time
}

// NewMeasurementService creates a new MeasurementService. publisher and
// invalidator may be nil.
func NewMeasurementService(
	tests ports.TestIdentityRegistry,
	repo ports.MeasurementRepository,
	publisher ports.EventPublisher,
	invalidator heatmapInvalidator,
) *MeasurementService {
	return &MeasurementService{
		tests:       tests,
		repo:        repo,
		publisher:   publisher,
		invalidator: invalidator,
		now:         time.Now,
	}
}

// WithClock replaces the time source.
func (s *MeasurementService) WithClock(now func() time.Time) *MeasurementService {
	s.now = now
	return s
}

// IssueTestID starts a new test for the session, replacing any previous id.
func (s *MeasurementService) IssueTestID(ctx context.Context, sessionID string) (int64, error) {
	id, err := s.tests.Issue(sessionID, s.now())
	if err != nil {
		return 0, err
	}
	metrics.TestIDsIssued.Inc()
	return id, nil
}

// SaveLocation persists where a test was taken.
func (s *MeasurementService) SaveLocation(ctx context.Context, testID int64, lat, lon any) error {
	if testID <= 0 {
		metrics.MeasurementsRejected.WithLabelValues("test_id").Inc()
		return fmt.Errorf("%w: %d", domain.ErrInvalidTestID, testID)
	}
	p, err := domain.ParseGeoPoint(lat, lon)
	if err != nil {
		metrics.MeasurementsRejected.WithLabelValues("coordinates").Inc()
		return err
	}

	sample := domain.LocationSample{TestID: testID, Location: p, SavedAt: s.now()}
	if err := s.repo.SaveLocation(ctx, sample); err != nil {
		return fmt.Errorf("save location: %w", err)
	}
	metrics.MeasurementsStored.WithLabelValues("location").Inc()
	s.invalidate(ctx)
	return nil
}

// SubmitMeasurement stores a speed result against the session's current test
// id and returns that id. "Fail" or missing figures are stored as 0; if any
// figure is otherwise unparsable all three are stored as 0.
func (s *MeasurementService) SubmitMeasurement(ctx context.Context, sessionID string, download, upload, ping any) (int64, error) {
	if sessionID == "" {
		return 0, domain.ErrMissingSessionID
	}
	dl, ul, pg := parseSpeeds(ctx, download, upload, ping)

	testID, err := s.tests.Lookup(sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNoActiveTestForSession) {
			metrics.MeasurementsRejected.WithLabelValues("no_test").Inc()
		}
		return 0, err
	}

	now := s.now()
	result := domain.SpeedResult{TestID: testID, Download: dl, Upload: ul, PingMs: pg, SavedAt: now}
	if err := s.repo.SaveSpeed(ctx, result); err != nil {
		return 0, fmt.Errorf("save speed result: %w", err)
	}
	metrics.MeasurementsStored.WithLabelValues("speed").Inc()

	if s.publisher != nil {
		event := &domain.MeasurementEvent{
			EventID:  uuid.NewString(),
			TestID:   testID,
			Download: dl,
			Upload:   ul,
			PingMs:   pg,
			Time:     now,
		}
		if err := s.publisher.PublishMeasurement(ctx, event); err != nil {
			slog.WarnContext(ctx, "publish measurement failed", "test_id", testID, "error", err)
		}
	}
	s.invalidate(ctx)

	return testID, nil
}

// Records returns every stored measurement joined with its location.
func (s *MeasurementService) Records(ctx context.Context) ([]domain.MeasurementRecord, error) {
	return s.repo.ListRecords(ctx)
}

func (s *MeasurementService) invalidate(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx); err != nil {
		slog.WarnContext(ctx, "heatmap cache invalidation failed", "error", err)
	}
}

func parseSpeeds(ctx context.Context, download, upload, ping any) (dl, ul, pg float64) {
	var errs []error
	var err error
	if dl, err = domain.ParseSpeedValue(download); err != nil {
		errs = append(errs, fmt.Errorf("download: %w", err))
	}
	if ul, err = domain.ParseSpeedValue(upload); err != nil {
		errs = append(errs, fmt.Errorf("upload: %w", err))
	}
	if pg, err = domain.ParseSpeedValue(ping); err != nil {
		errs = append(errs, fmt.Errorf("ping: %w", err))
	}
	if len(errs) > 0 {
		slog.WarnContext(ctx, "unparsable speed figures stored as zero", "error", errors.Join(errs...))
		return 0, 0, 0
	}
	return dl, ul, pg
}
