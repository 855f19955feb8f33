package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BrandonDHaskell/plategate/internal/config"
	"github.com/BrandonDHaskell/plategate/internal/db"
	"github.com/BrandonDHaskell/plategate/internal/httpapi"
	"github.com/BrandonDHaskell/plategate/internal/plategate/plate"
	"github.com/BrandonDHaskell/plategate/internal/plategate/recognizer"
	"github.com/BrandonDHaskell/plategate/internal/plategate/recognizer/platerecognizer"
	"github.com/BrandonDHaskell/plategate/internal/plategate/recognizer/rekognition"
	"github.com/BrandonDHaskell/plategate/internal/plategate/recognizer/stub"
	"github.com/BrandonDHaskell/plategate/internal/plategate/service"
	"github.com/BrandonDHaskell/plategate/internal/plategate/store/sqlite"
	"github.com/BrandonDHaskell/plategate/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		slog.Error("plategate-server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := config.NewLogger(cfg.Env, cfg.LogFormat).With("app", "plategate-server")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// DB
	sqlDB, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer sqlDB.Close()

	seed := db.SeedOptions{
		AdminUsername: cfg.AdminUsername,
		AdminPassword: cfg.AdminPassword,
		SamplePlates:  cfg.SamplePlates,
	}
	created, err := db.SeedAdmin(ctx, sqlDB, seed)
	if err != nil {
		return err
	}
	if created {
		logger.Info("bootstrap admin created", "username", cfg.AdminUsername)
	}
	if cfg.IsDev() {
		if err := db.SeedDev(ctx, sqlDB, seed); err != nil {
			return err
		}
	}

	writer := db.NewWorker(sqlDB)
	defer writer.Close()

	identities := sqlite.NewIdentityStore(sqlDB, writer)
	events := sqlite.NewAccessEventStore(sqlDB, writer)
	alerts := sqlite.NewAlertStore(sqlDB, writer)

	// Plates and recognition
	validator, err := plate.NewValidator(cfg.PlateFormats)
	if err != nil {
		return err
	}
	rec, err := newRecognizer(ctx, cfg, validator)
	if err != nil {
		return err
	}
	logger.Info("recognition backend ready", "backend", cfg.RecognitionBackend, "plate_formats", len(validator.Formats()))

	// Services
	registry := service.NewVehicleRegistry(identities, logger)
	accessSvc := service.NewAccessService(registry, events, rec, validator, service.AccessConfig{
		RecognitionTimeout:  cfg.RecognitionTimeout,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
	}, logger)
	reportSvc := service.NewReportService(events, service.ReportConfig{
		TopHours: cfg.ReportTopHours,
		Location: cfg.ReportLocation(),
	}, logger)

	monitor := service.NewDenialMonitor(events, alerts, service.MonitorConfig{
		Denials:  cfg.AlertDenials,
		Window:   cfg.AlertWindow,
		Interval: cfg.AlertInterval,
	}, logger)
	monitor.Start(ctx)
	defer monitor.Stop()

	telemetry.StartDBStatsCollector(ctx, sqlDB, 30*time.Second)

	// gRPC health
	if cfg.GRPCAddr != "" {
		health, err := startHealthServer(cfg.GRPCAddr, logger)
		if err != nil {
			return err
		}
		defer health.Stop()
	}

	// HTTP
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:   logger,
		Addr:     cfg.HTTPAddr,
		Registry: registry,
		Access:   accessSvc,
		Log:      service.NewAccessLog(events, cfg.MaxPageSize),
		Reports:  reportSvc,
		Alerts:   service.NewAlertService(alerts, logger),
	})

	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr, "env", cfg.Env)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newRecognizer(ctx context.Context, cfg *config.Config, validator *plate.Validator) (recognizer.PlateRecognizer, error) {
	switch cfg.RecognitionBackend {
	case config.BackendPlateRecognizer:
		pc := platerecognizer.DefaultConfig()
		pc.BaseURL = cfg.PlateRecognizerURL
		pc.Token = cfg.PlateRecognizerToken
		pc.Timeout = cfg.RecognitionTimeout
		pc.Regions = cfg.PlateRecognizerRegions
		return platerecognizer.NewClient(pc, validator), nil
	case config.BackendRekognition:
		return rekognition.NewFromConfig(ctx, rekognition.Config{Region: cfg.AWSRegion}, validator)
	default:
		return stub.Recognizer{}, nil
	}
}
