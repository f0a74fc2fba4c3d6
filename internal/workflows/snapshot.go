package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/signalmap/internal/core/domain"
)

// SnapshotInput is the input for the snapshot workflow.
type SnapshotInput struct {
	// Trigger records who started the run ("schedule", "manual").
	Trigger string
}

// SnapshotResult is what one snapshot run produced.
type SnapshotResult struct {
	Snapshot domain.HeatmapSnapshot
	Skipped  bool
	Reason   string
}

// SnapshotWorkflow renders the coverage heatmap and stores it as the latest
// snapshot. Rendering retries with backoff; a map without enough
// measurements completes as skipped.
func SnapshotWorkflow(ctx workflow.Context, input SnapshotInput) (SnapshotResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting snapshot workflow", "trigger", input.Trigger)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	var result SnapshotResult
	if err := workflow.ExecuteActivity(ctx, "RenderSnapshot").Get(ctx, &result); err != nil {
		logger.Error("snapshot failed", "error", err)
		return SnapshotResult{}, err
	}

	if result.Skipped {
		logger.Info("Snapshot skipped", "reason", result.Reason)
	} else {
		logger.Info("Snapshot stored", "id", result.Snapshot.ID, "points", result.Snapshot.Points)
	}
	return result, nil
}
