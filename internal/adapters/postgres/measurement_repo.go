package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/signalmap/internal/core/domain"
)

// MeasurementRepo implements ports.MeasurementRepository.
type MeasurementRepo struct {
	db *DB
}

func NewMeasurementRepo(db *DB) *MeasurementRepo {
	return &MeasurementRepo{db: db}
}

func (r *MeasurementRepo) SaveLocation(ctx context.Context, s domain.LocationSample) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO test_locations (test_id, latitude, longitude, saved_at)
		VALUES ($1, $2, $3, $4)
	`, s.TestID, s.Location.Lat, s.Location.Lon, savedAt(s.SavedAt))
	return err
}

func (r *MeasurementRepo) SaveSpeed(ctx context.Context, s domain.SpeedResult) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO speed_results (test_id, download, upload, ping_ms, saved_at)
		VALUES ($1, $2, $3, $4, $5)
	`, s.TestID, s.Download, s.Upload, s.PingMs, savedAt(s.SavedAt))
	return err
}

// ListRecords returns every speed result with the latest location saved
// under the same test id, if any.
func (r *MeasurementRepo) ListRecords(ctx context.Context) ([]domain.MeasurementRecord, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT s.test_id, s.download, s.upload, s.ping_ms, l.latitude, l.longitude
		FROM speed_results s
		LEFT JOIN LATERAL (
			SELECT latitude, longitude
			FROM test_locations
			WHERE test_id = s.test_id
			ORDER BY saved_at DESC, id DESC
			LIMIT 1
		) l ON true
		ORDER BY s.saved_at, s.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.MeasurementRecord
	for rows.Next() {
		var rec domain.MeasurementRecord
		var lat, lon *float64
		if err := rows.Scan(&rec.TestID, &rec.Download, &rec.Upload, &rec.PingMs, &lat, &lon); err != nil {
			return nil, err
		}
		if lat != nil && lon != nil {
			rec.Location = &domain.GeoPoint{Lat: *lat, Lon: *lon}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ImportBatch inserts many records using pgx.Batch.
func (r *MeasurementRepo) ImportBatch(ctx context.Context, records []domain.MeasurementRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	batch := &pgx.Batch{}
	queued := 0
	for _, rec := range records {
		if rec.Location != nil {
			batch.Queue(`
				INSERT INTO test_locations (test_id, latitude, longitude, saved_at)
				VALUES ($1, $2, $3, $4)
			`, rec.TestID, rec.Location.Lat, rec.Location.Lon, now)
			queued++
		}
		batch.Queue(`
			INSERT INTO speed_results (test_id, download, upload, ping_ms, saved_at)
			VALUES ($1, $2, $3, $4, $5)
		`, rec.TestID, rec.Download, rec.Upload, rec.PingMs, now)
		queued++
	}

	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := 0; i < queued; i++ {
		if _, err := br.Exec(); err != nil {
			return 0, fmt.Errorf("batch exec: %w", err)
		}
	}
	return len(records), nil
}

func (r *MeasurementRepo) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func savedAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
