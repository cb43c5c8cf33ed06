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
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/openevac/evacmap/internal/adapters/http"
	"github.com/openevac/evacmap/internal/adapters/mapbox"
	natsadapter "github.com/openevac/evacmap/internal/adapters/nats"
	"github.com/openevac/evacmap/internal/adapters/postgres"
	"github.com/openevac/evacmap/internal/adapters/routing"
	"github.com/openevac/evacmap/internal/adapters/sms"
	"github.com/openevac/evacmap/internal/adapters/valkey"
	"github.com/openevac/evacmap/internal/adapters/zonestore"
	"github.com/openevac/evacmap/internal/core/ports"
	"github.com/openevac/evacmap/internal/core/usecases"
	"github.com/openevac/evacmap/internal/pkg/config"
	"github.com/openevac/evacmap/internal/pkg/logging"
	"github.com/openevac/evacmap/internal/pkg/metrics"
	"github.com/openevac/evacmap/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("evacmap-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database (request journal). The interaction surface works without it;
	// the journal is best-effort and readiness reports the degradation.
	var db *postgres.DB
	var journal ports.RequestJournal
	if d, err := postgres.New(ctx, cfg.Database.DSN()); err != nil {
		slog.Warn("database unavailable, journaling disabled", "error", err)
	} else {
		db = d
		defer db.Close()
		journal = postgres.NewRequestJournal(db)
		go func() {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					metrics.UpdateDBPoolMetrics(db.Pool.Stat())
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	// Cache (geocode results)
	var cache *valkey.Cache
	var cacheSvc ports.CacheService
	if c, err := valkey.New(cfg.Valkey.Addr); err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		cache = c
		defer cache.Close()
		cacheSvc = cache
	}

	// NATS (session event stream)
	var events ports.EventPublisher
	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer pub.Close()
		events = pub
	}

	// Raw NATS connection for the WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	}

	// External service clients
	routeClient := routing.New(cfg.Routing.BaseURL)
	zoneClient := zonestore.New(cfg.Zones.BaseURL)

	var geocoder ports.Geocoder
	if cfg.Mapbox.Token != "" {
		geocoder = mapbox.New(cfg.Mapbox.Token)
	} else {
		slog.Info("mapbox token absent, geocoding disabled")
	}

	var relay ports.SMSRelay
	if cfg.SMS.Configured() {
		relay = sms.New(cfg.SMS.RelayURL, cfg.SMS.APIKey, cfg.SMS.Destination)
	} else {
		slog.Info("sms relay unconfigured, alerts disabled")
	}

	// Use cases
	sessionSvc := usecases.NewSessionService(routeClient, zoneClient, events, journal, usecases.SessionConfig{
		Flow:                   usecases.Flow(cfg.Session.Flow),
		ClickSuppressionMeters: cfg.Session.ClickSuppressionMeters,
		AllowOverlap:           cfg.Session.AllowOverlap,
	})
	notifySvc := usecases.NewNotifyService(relay, sessionSvc, events)
	geocodeSvc := usecases.NewGeocodeService(geocoder, cacheSvc)

	deps := &http.Dependencies{
		Sessions: sessionSvc,
		Notify:   notifySvc,
		Geocode:  geocodeSvc,
		NATS:     natsConn,
		DB:       db,
		Cache:    cache,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "EvacMap API",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
