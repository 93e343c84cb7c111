// Package main is the INAU server entry point: the reference catalog, the
// build ingestion API and the temporal installation ledger in one process.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"go.uber.org/zap"

	"github.com/elettra-ics/inau/pkg/api"
	"github.com/elettra-ics/inau/pkg/audit"
	"github.com/elettra-ics/inau/pkg/builds"
	"github.com/elettra-ics/inau/pkg/cache"
	"github.com/elettra-ics/inau/pkg/ledger"
	"github.com/elettra-ics/inau/pkg/refstore"
	"github.com/elettra-ics/inau/pkg/segment"
	"github.com/elettra-ics/inau/pkg/storage"
)

func main() {
	var (
		listenAddr   string
		seedPath     string
		databaseType string
		databaseDSN  string
		watchSeed    bool
	)

	flag.StringVar(&listenAddr, "listen", ":8080", "Address to listen on")
	flag.StringVar(&seedPath, "seed", "", "Path to the reference data seed file (optional)")
	flag.StringVar(&databaseType, "db-type", "", "Database type (postgres, mysql or sqlite); overrides DATABASE_TYPE")
	flag.StringVar(&databaseDSN, "db-dsn", "", "Database connection string; overrides DATABASE_DSN")
	flag.BoolVar(&watchSeed, "watch-seed", false, "Reload the seed file when it changes")
	flag.Parse()

	_ = flag.Set("logtostderr", "true")

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	dbCfg := storage.ConfigFromEnv()
	if databaseType != "" {
		dbCfg.Type = databaseType
	}
	if databaseDSN != "" {
		dbCfg.DSN = databaseDSN
	}

	logger.Info("starting inau server", "listen", listenAddr, "db", dbCfg.Type)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	db, err := storage.Connect(dbCfg)
	if err != nil {
		glog.Fatalf("Failed to connect to database: %v", err)
	}

	refs := refstore.NewStore(db)
	lock := storage.NewSchemaLock(db)
	router := segment.NewRouter(db, lock)
	store := segment.NewStore(db)
	buildSvc := builds.NewService(db, router, store, refs)
	led := ledger.New(db, router, store, refs, buildSvc)
	auditStore := audit.NewStore(db)

	// Base-schema migrations run under the shared schema lock so concurrent
	// replicas do not race on DDL. Segment tables are created lazily later.
	err = lock.WithLock(ctx, "bootstrap", func() error {
		if err := refs.AutoMigrate(); err != nil {
			return err
		}
		if err := router.AutoMigrate(); err != nil {
			return err
		}
		if err := buildSvc.AutoMigrate(); err != nil {
			return err
		}
		if err := led.AutoMigrate(); err != nil {
			return err
		}
		return auditStore.AutoMigrate()
	})
	if err != nil {
		glog.Fatalf("Failed to migrate schema: %v", err)
	}

	if seedPath != "" {
		seed, err := refstore.LoadSeed(seedPath)
		if err != nil {
			glog.Fatalf("Failed to load seed file: %v", err)
		}
		if err := refs.ApplySeed(ctx, seed); err != nil {
			glog.Fatalf("Failed to apply seed file: %v", err)
		}
		logger.Info("applied reference seed", "path", seedPath)
		if watchSeed {
			go func() {
				if err := refstore.WatchSeed(ctx, refs, seedPath, logger); err != nil {
					logger.Error("seed watcher stopped", "error", err)
				}
			}()
		}
	}

	retentionCfg := ledger.RetentionConfigFromEnv()
	sweeper := ledger.NewRetentionSweeper(led, retentionCfg, logger)
	go sweeper.Run(ctx)

	zapLogger, err := zap.NewProduction()
	if err != nil {
		glog.Fatalf("Failed to build request logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	apiServer := api.NewServer(refs, buildSvc, led, zapLogger, api.ConfigFromEnv())
	apiServer.EnableCache(cache.NewManager(cache.ConfigFromEnv()))

	auditCfg := audit.ConfigFromEnv()
	apiServer.EnableAudit(auditStore, auditCfg)
	auditWorker := audit.NewRetentionWorker(auditStore, auditCfg.RetentionDays, logger)
	go auditWorker.Run(ctx)

	httpServer := &http.Server{
		Addr:    listenAddr,
		Handler: apiServer.Router(),
	}

	go func() {
		logger.Info("inau server ready", "listen", listenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			glog.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
}
