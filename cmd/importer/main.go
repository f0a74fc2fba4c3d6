// Command importer bulk-loads measurement CSV files into the configured
// database so a coverage map can be seeded from earlier surveys.
//
//	importer [-batch 500] [-publish] survey1.csv [survey2.csv ...]
//
// Columns (header names are case-insensitive): test_id (optional),
// latitude|lat, longitude|lon, download|dlStatus, upload|ulStatus,
// ping|pingStatus.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/signalmap/internal/adapters/memory"
	natsadapter "github.com/samirrijal/signalmap/internal/adapters/nats"
	"github.com/samirrijal/signalmap/internal/adapters/store"
	"github.com/samirrijal/signalmap/internal/adapters/valkey"
	"github.com/samirrijal/signalmap/internal/core/domain"
	"github.com/samirrijal/signalmap/internal/core/ports"
	"github.com/samirrijal/signalmap/internal/core/usecases"
	"github.com/samirrijal/signalmap/internal/pkg/config"
	"github.com/samirrijal/signalmap/internal/pkg/logging"
)

func main() {
	batchSize := flag.Int("batch", 500, "records per database round trip")
	publish := flag.Bool("publish", false, "publish a measurement event per imported record")
	flag.Parse()

	if flag.NArg() == 0 {
		log.Fatal("usage: importer [-batch N] [-publish] file.csv [file.csv ...]")
	}

	cfg, err := config.Load("signalmap-importer")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	db, err := store.Open(ctx, cfg.Database, true)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	gen, err := memory.NewGenerator(cfg.Identity.Strategy, time.Now())
	if err != nil {
		log.Fatalf("identity: %v", err)
	}

	var publisher ports.EventPublisher
	if *publish {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			log.Fatalf("nats: %v", err)
		}
		defer pub.Close()
		publisher = pub
	}

	sink := func(ctx context.Context, records []domain.MeasurementRecord) (int, error) {
		n, err := db.Repo.ImportBatch(ctx, records)
		if err != nil {
			return n, err
		}
		if publisher != nil {
			publishAll(ctx, publisher, records)
		}
		return n, nil
	}

	total := 0
	for _, path := range flag.Args() {
		f, err := os.Open(path)
		if err != nil {
			log.Fatalf("open %s: %v", path, err)
		}
		stats, err := importCSV(ctx, f, *batchSize, gen, sink)
		f.Close()
		if err != nil {
			log.Fatalf("import %s: %v", path, err)
		}
		slog.Info("file imported", "file", path, "rows", stats.Rows, "imported", stats.Imported, "skipped", stats.Skipped)
		total += stats.Imported
	}

	invalidateHeatmap(ctx, cfg, db.Repo)
	slog.Info("import complete", "files", flag.NArg(), "records", total)
}

func publishAll(ctx context.Context, publisher ports.EventPublisher, records []domain.MeasurementRecord) {
	now := time.Now()
	for _, r := range records {
		event := &domain.MeasurementEvent{
			EventID:  uuid.NewString(),
			TestID:   r.TestID,
			Download: r.Download,
			Upload:   r.Upload,
			PingMs:   r.PingMs,
			Time:     now,
		}
		if err := publisher.PublishMeasurement(ctx, event); err != nil {
			slog.Warn("publish measurement failed", "test_id", r.TestID, "error", err)
		}
	}
}

// invalidateHeatmap retires cached fields so running API instances pick up
// the imported records.
func invalidateHeatmap(ctx context.Context, cfg *config.Config, repo ports.MeasurementRepository) {
	cache, err := valkey.New(cfg.Valkey.Addr, valkey.KeyPrefix)
	if err != nil {
		slog.Warn("valkey unavailable, cached heatmaps expire on their own", "error", err)
		return
	}
	defer cache.Close()

	floor, err := cfg.Floorplan.Floorplan()
	if err != nil {
		slog.Warn("floorplan", "error", err)
		return
	}
	svc := usecases.NewHeatmapService(repo, cache, nil, floor, cfg.Heatmap.Options(floor.Orientation), cfg.Heatmap.CacheTTL)
	if err := svc.Invalidate(ctx); err != nil {
		slog.Warn("heatmap invalidation failed", "error", err)
	}
}
