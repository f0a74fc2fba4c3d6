package main

import (
	"context"
	"errors"
	"log"
	"log/slog"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"

	"github.com/samirrijal/signalmap/internal/adapters/render"
	"github.com/samirrijal/signalmap/internal/adapters/store"
	"github.com/samirrijal/signalmap/internal/adapters/valkey"
	"github.com/samirrijal/signalmap/internal/core/ports"
	"github.com/samirrijal/signalmap/internal/core/usecases"
	"github.com/samirrijal/signalmap/internal/pkg/config"
	"github.com/samirrijal/signalmap/internal/pkg/logging"
	"github.com/samirrijal/signalmap/internal/pkg/telemetry"
	"github.com/samirrijal/signalmap/internal/workflows"
)

const scheduleID = "signalmap-heatmap-snapshot"

func main() {
	cfg, err := config.Load("signalmap-snapshotter")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	floor, err := cfg.Floorplan.Floorplan()
	if err != nil {
		log.Fatalf("floorplan: %v", err)
	}

	db, err := store.Open(ctx, cfg.Database, false)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Snapshots live in Valkey, so the worker is useless without it.
	cache, err := valkey.New(cfg.Valkey.Addr, valkey.KeyPrefix)
	if err != nil {
		log.Fatalf("valkey: %v", err)
	}
	defer cache.Close()

	pngRenderer, err := render.NewPNG(render.WithFloorImage(cfg.Floorplan.Image))
	if err != nil {
		log.Fatalf("png renderer: %v", err)
	}
	heatmapSvc := usecases.NewHeatmapService(db.Repo, cache,
		map[string]ports.FieldRenderer{"png": pngRenderer},
		floor, cfg.Heatmap.Options(floor.Orientation), cfg.Heatmap.CacheTTL)

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    logger,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	if err := ensureSchedule(ctx, c, cfg.Temporal); err != nil {
		log.Fatalf("schedule: %v", err)
	}

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflow(workflows.SnapshotWorkflow)
	w.RegisterActivity(&workflows.SnapshotActivities{
		Heatmap: heatmapSvc,
		Logger:  logger.With("component", "snapshot"),
	})

	slog.Info("snapshot worker started", "task_queue", cfg.Temporal.TaskQueue, "interval", cfg.Temporal.SnapshotInterval)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}

// ensureSchedule creates the recurring snapshot schedule unless it already
// exists. An existing schedule keeps its interval.
func ensureSchedule(ctx context.Context, c client.Client, cfg config.TemporalConfig) error {
	_, err := c.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID: scheduleID,
		Spec: client.ScheduleSpec{
			Intervals: []client.ScheduleIntervalSpec{{Every: cfg.SnapshotInterval}},
		},
		Action: &client.ScheduleWorkflowAction{
			ID:        scheduleID + "-run",
			Workflow:  workflows.SnapshotWorkflow,
			Args:      []interface{}{workflows.SnapshotInput{Trigger: "schedule"}},
			TaskQueue: cfg.TaskQueue,
		},
		TriggerImmediately: true,
	})
	if errors.Is(err, temporal.ErrScheduleAlreadyRunning) {
		slog.Info("snapshot schedule already exists", "schedule_id", scheduleID)
		return nil
	}
	return err
}
