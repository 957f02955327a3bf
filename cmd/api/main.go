package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/dmehra2102/prod-golang-projects/dentalsync/config"
	v1 "github.com/dmehra2102/prod-golang-projects/dentalsync/internal/handler/v1"
	"github.com/dmehra2102/prod-golang-projects/dentalsync/internal/service"
	"github.com/dmehra2102/prod-golang-projects/dentalsync/internal/source"
	"github.com/dmehra2102/prod-golang-projects/dentalsync/internal/store"
	"github.com/dmehra2102/prod-golang-projects/dentalsync/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/dentalsync/pkg/database"
	"github.com/dmehra2102/prod-golang-projects/dentalsync/pkg/logger"
	"github.com/dmehra2102/prod-golang-projects/dentalsync/pkg/metrics"
	"github.com/dmehra2102/prod-golang-projects/dentalsync/pkg/tracer"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log, err := logger.New(cfg.Log, cfg.App)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	tp, err := tracer.Init(cfg.Tracing, cfg.App.Version)
	if err != nil {
		return fmt.Errorf("initialising tracer: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.NewCollector(cfg.App.Name, prometheus.DefaultRegisterer)

	var (
		db       *gorm.DB
		clinic   *store.ClinicRepository
		runsRepo service.SyncRunRepository
		runs     v1.RunLister
	)
	if cfg.Database.Enabled {
		db, err = database.Connect(ctx, cfg.Database, log)
		if err != nil {
			return err
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}
		if err := database.Migrate(db, log); err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}
		clinic = store.NewClinicRepository(db)
		repo := store.NewSyncRunRepository(db)
		runsRepo, runs = repo, repo
	}

	cache := source.NewFile(cfg.Sync.CacheFile, cfg.Sync.CacheMaxRows)
	stages := buildStages(cfg, clinic, cache, log)
	chain := source.NewChain(log, m, cfg.Sync.StageTimeout, stages...)
	log.Info("source chain ready",
		zap.Strings("stages", chain.Stages()),
		zap.String("cache_file", cache.Path()),
	)

	journal := service.NewSyncJournal(runsRepo, m, log)
	defer journal.Shutdown()

	opts := service.SyncOptions{
		Server:   cfg.Clinic.Server,
		Database: cfg.Clinic.Database,
		Cache:    cache,
	}
	if clinic != nil {
		opts.Writer = clinic
	}
	syncSvc := service.NewSyncService(chain, source.NewAdapter(log), journal, opts, m, log)

	users := store.NewUserStore()
	seeded, err := service.SeedUsers(cfg.Auth.Users, cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}
	for _, u := range seeded {
		users.Add(u)
	}
	if len(seeded) == 0 {
		log.Warn("no clinic users configured; status write-back is unreachable")
	}

	jwtManager := auth.NewJWTManager(cfg.JWT)
	router := v1.NewRouter(v1.RouterDeps{
		Config:       cfg,
		Log:          log,
		Metrics:      m,
		JWT:          jwtManager,
		Appointments: v1.NewAppointmentHandler(service.NewAppointmentService(syncSvc, log), syncSvc, log),
		Patients:     v1.NewPatientHandler(service.NewPatientService(syncSvc, log)),
		System:       v1.NewSystemHandler(syncSvc, opts, chain, runs),
		Auth:         v1.NewAuthHandler(service.NewAuthService(users, jwtManager, log)),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return syncSvc.Run(gctx, cfg.Sync.Interval)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// buildStages turns SYNC_SOURCES into stages in the configured order. Remote
// stages sit behind a circuit breaker.
func buildStages(cfg *config.Config, clinic *store.ClinicRepository, cache *source.File, log *zap.Logger) []source.Stage {
	client := &http.Client{Timeout: cfg.Sync.StageTimeout}
	guard := func(st source.Stage) source.Stage {
		return source.NewBreaker(st, cfg.Sync.BreakerFailures, cfg.Sync.BreakerCooldown, log)
	}

	stages := make([]source.Stage, 0, len(cfg.Sync.Sources))
	for _, name := range cfg.Sync.Sources {
		switch name {
		case config.SourceSheetsCSV:
			stages = append(stages, guard(source.NewSheetsCSV(client, cfg.Sheets.DocsBaseURL, cfg.Sheets.SpreadsheetID, cfg.Sheets.SheetName)))
		case config.SourceSheetsJSON:
			stages = append(stages, guard(source.NewSheetsJSON(client, cfg.Sheets.DocsBaseURL, cfg.Sheets.SpreadsheetID, cfg.Sheets.SheetName)))
		case config.SourceSheetsAPI:
			stages = append(stages, guard(source.NewSheetsAPI(client, cfg.Sheets.APIBaseURL, cfg.Sheets.SpreadsheetID, cfg.Sheets.SheetName, cfg.Sheets.APIKey)))
		case config.SourceBackend:
			stages = append(stages, guard(source.NewBackend(client, cfg.Backend.URL)))
		case config.SourceDatabase:
			if clinic != nil {
				stages = append(stages, guard(source.NewDatabase(clinic, cfg.Sync.DatabaseWindow, cfg.Sync.DatabaseLimit)))
			}
		case config.SourceFile:
			stages = append(stages, cache)
		case config.SourceMock:
			stages = append(stages, source.Mock{})
		}
	}
	return stages
}
