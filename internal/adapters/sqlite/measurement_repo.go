package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/samirrijal/signalmap/internal/core/domain"
)

// MeasurementRepo implements ports.MeasurementRepository on SQLite.
type MeasurementRepo struct {
	db *DB
}

func NewMeasurementRepo(db *DB) *MeasurementRepo {
	return &MeasurementRepo{db: db}
}

func (r *MeasurementRepo) SaveLocation(ctx context.Context, s domain.LocationSample) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO test_locations (test_id, latitude, longitude, saved_at)
		VALUES (?, ?, ?, ?)
	`, s.TestID, s.Location.Lat, s.Location.Lon, millis(s.SavedAt))
	return err
}

func (r *MeasurementRepo) SaveSpeed(ctx context.Context, s domain.SpeedResult) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO speed_results (test_id, download, upload, ping_ms, saved_at)
		VALUES (?, ?, ?, ?, ?)
	`, s.TestID, s.Download, s.Upload, s.PingMs, millis(s.SavedAt))
	return err
}

// ListRecords returns every speed result with the latest location saved
// under the same test id, if any.
func (r *MeasurementRepo) ListRecords(ctx context.Context) ([]domain.MeasurementRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.test_id, s.download, s.upload, s.ping_ms, l.latitude, l.longitude
		FROM speed_results s
		LEFT JOIN test_locations l ON l.id = (
			SELECT id FROM test_locations
			WHERE test_id = s.test_id
			ORDER BY saved_at DESC, id DESC
			LIMIT 1
		)
		ORDER BY s.saved_at, s.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.MeasurementRecord
	for rows.Next() {
		var rec domain.MeasurementRecord
		var lat, lon sql.NullFloat64
		if err := rows.Scan(&rec.TestID, &rec.Download, &rec.Upload, &rec.PingMs, &lat, &lon); err != nil {
			return nil, err
		}
		if lat.Valid && lon.Valid {
			rec.Location = &domain.GeoPoint{Lat: lat.Float64, Lon: lon.Float64}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ImportBatch writes all records in one transaction.
func (r *MeasurementRepo) ImportBatch(ctx context.Context, records []domain.MeasurementRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	locStmt, err := tx.PrepareContext(ctx, `INSERT INTO test_locations (test_id, latitude, longitude, saved_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer locStmt.Close()
	speedStmt, err := tx.PrepareContext(ctx, `INSERT INTO speed_results (test_id, download, upload, ping_ms, saved_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer speedStmt.Close()

	now := millis(time.Time{})
	for _, rec := range records {
		if rec.Location != nil {
			if _, err := locStmt.ExecContext(ctx, rec.TestID, rec.Location.Lat, rec.Location.Lon, now); err != nil {
				return 0, fmt.Errorf("insert location %d: %w", rec.TestID, err)
			}
		}
		if _, err := speedStmt.ExecContext(ctx, rec.TestID, rec.Download, rec.Upload, rec.PingMs, now); err != nil {
			return 0, fmt.Errorf("insert speed %d: %w", rec.TestID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(records), nil
}

func (r *MeasurementRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UnixMilli()
}
