package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/signalmap/internal/adapters/http"
	"github.com/samirrijal/signalmap/internal/adapters/memory"
	natsadapter "github.com/samirrijal/signalmap/internal/adapters/nats"
	"github.com/samirrijal/signalmap/internal/adapters/render"
	"github.com/samirrijal/signalmap/internal/adapters/store"
	"github.com/samirrijal/signalmap/internal/adapters/valkey"
	"github.com/samirrijal/signalmap/internal/core/domain"
	"github.com/samirrijal/signalmap/internal/core/ports"
	"github.com/samirrijal/signalmap/internal/core/usecases"
	"github.com/samirrijal/signalmap/internal/pkg/config"
	"github.com/samirrijal/signalmap/internal/pkg/logging"
	"github.com/samirrijal/signalmap/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("signalmap-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
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

	// Database
	db, err := store.Open(ctx, cfg.Database, true)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go db.ReportPoolStats(ctx, 15*time.Second)

	// Cache
	var cache ports.CacheService
	var cachePinger http.Pinger
	if vc, err := valkey.New(cfg.Valkey.Addr, valkey.KeyPrefix); err != nil {
		slog.Warn("valkey unavailable, heatmap cache disabled", "error", err)
	} else {
		defer vc.Close()
		cache, cachePinger = vc, vc
	}

	// NATS
	var publisher ports.EventPublisher
	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable, events disabled", "error", err)
	} else {
		defer pub.Close()
		publisher = pub
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	} else {
		defer natsConn.Close()
	}

	// Renderers
	pngRenderer, err := render.NewPNG(render.WithFloorImage(cfg.Floorplan.Image))
	if err != nil {
		log.Fatalf("png renderer: %v", err)
	}
	renderers := map[string]ports.FieldRenderer{
		"png":  pngRenderer,
		"html": render.NewHTML("Building coverage", render.DefaultMaxCells),
	}

	// In-memory state
	sessions := memory.NewSessionStore()
	gen, err := memory.NewGenerator(cfg.Identity.Strategy, time.Now())
	if err != nil {
		log.Fatalf("identity: %v", err)
	}
	tests := memory.NewTestRegistry(gen)

	// Use cases
	heatmapSvc := usecases.NewHeatmapService(db.Repo, cache, renderers, floor, cfg.Heatmap.Options(floor.Orientation), cfg.Heatmap.CacheTTL)
	sessionSvc := usecases.NewSessionService(sessions, publisher, floor)
	measurementSvc := usecases.NewMeasurementService(tests, db.Repo, publisher, heatmapSvc)

	// Measurements stored by other instances or the importer retire our
	// cached fields too.
	if cache != nil {
		if sub, err := natsadapter.NewSubscriber(cfg.NATS.URL); err != nil {
			slog.Warn("nats subscriber unavailable", "error", err)
		} else {
			defer sub.Close()
			err := sub.SubscribeMeasurements(ctx, func(ctx context.Context, _ *domain.MeasurementEvent) error {
				return heatmapSvc.Invalidate(ctx)
			})
			if err != nil {
				slog.Warn("subscribe measurements failed", "error", err)
			}
		}
	}

	evictor := usecases.NewEvictor(sessions, tests, cfg.Sessions.Timeout, cfg.Sessions.SweepInterval,
		usecases.WithEvictorLogger(logger.With("component", "evictor")),
	)
	go evictor.Run(ctx)

	deps := &http.Dependencies{
		Sessions:     sessionSvc,
		Measurements: measurementSvc,
		Heatmap:      heatmapSvc,
		NATS:         natsConn,
		DB:           db.Repo,
		Cache:        cachePinger,
		RequestLimit: cfg.Server.RateLimit,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimitMB << 20, // upload tests post large bodies
		AppName:      "signalmap",
		// Handlers keep path and query values beyond the request.
		Immutable: true,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Content-Encoding, Accept",
		MaxAge:       3600,
	}))

	if err := http.SetupRoutes(app, deps); err != nil {
		log.Fatalf("routes: %v", err)
	}

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		var err error
		if tlsAvailable(cfg.Server.TLSCert, cfg.Server.TLSKey) {
			slog.Info("API server starting", "addr", addr, "tls", true)
			err = app.ListenTLS(addr, cfg.Server.TLSCert, cfg.Server.TLSKey)
		} else {
			slog.Warn("TLS certificate or key not found, serving plain HTTP; browsers will block geolocation",
				"cert", cfg.Server.TLSCert, "key", cfg.Server.TLSKey)
			slog.Info("API server starting", "addr", addr, "tls", false)
			err = app.Listen(addr)
		}
		if err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())
	cancel()

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

func tlsAvailable(cert, key string) bool {
	if cert == "" || key == "" {
		return false
	}
	for _, p := range []string{cert, key} {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}
