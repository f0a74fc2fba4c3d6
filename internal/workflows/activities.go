package workflows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/samirrijal/signalmap/internal/core/domain"
)

// Snapshotter renders and stores the current heatmap.
type Snapshotter interface {
	Snapshot(ctx context.Context) (domain.HeatmapSnapshot, error)
}

// SnapshotActivities holds the activity implementations for the snapshot workflow.
type SnapshotActivities struct {
	Heatmap Snapshotter
	Logger  *slog.Logger
}

// RenderSnapshot renders the heatmap at the floor plan's default extent and
// stores it. Too few measurements is reported as a skipped run, not a failure.
func (a *SnapshotActivities) RenderSnapshot(ctx context.Context) (SnapshotResult, error) {
	snap, err := a.Heatmap.Snapshot(ctx)
	if errors.Is(err, domain.ErrInsufficientData) {
		a.logger().InfoContext(ctx, "snapshot skipped", "reason", err.Error())
		return SnapshotResult{Skipped: true, Reason: err.Error()}, nil
	}
	if err != nil {
		return SnapshotResult{}, fmt.Errorf("render snapshot: %w", err)
	}
	a.logger().InfoContext(ctx, "snapshot stored",
		"snapshot_id", snap.ID,
		"points", snap.Points,
		"method", snap.Method,
	)
	return SnapshotResult{Snapshot: snap}, nil
}

func (a *SnapshotActivities) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}
