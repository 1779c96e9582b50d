package main

import (
	"context"
	"fmt"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"beer-scanner-backend/config"
	"beer-scanner-backend/internal/archive"
	"beer-scanner-backend/internal/catalog"
	"beer-scanner-backend/internal/db"
	"beer-scanner-backend/internal/events"
	"beer-scanner-backend/internal/logging"
	"beer-scanner-backend/internal/menu"
	"beer-scanner-backend/internal/metrics"
	"beer-scanner-backend/internal/notification"
	"beer-scanner-backend/internal/parse"
	"beer-scanner-backend/internal/reconcile"
	"beer-scanner-backend/internal/scraper"
	"beer-scanner-backend/internal/stats"
	"beer-scanner-backend/internal/store"
	"beer-scanner-backend/internal/telemetry"
)

// app holds the wired services shared by every command.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	db         *gorm.DB
	store      store.Store
	metrics    *metrics.Metrics
	catalog    *catalog.Catalog
	dispatcher *notification.Dispatcher
	workerPool *notification.WorkerPool
	scraper    *scraper.Service
	webpush    *webpush.Options
	publisher  events.Publisher
	reporter   *telemetry.Reporter
}

func loadApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}
	return newApp(ctx, cfg)
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	gormDB, err := db.Init(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	logger.Info("database initialized", zap.String("driver", cfg.Database.Driver))
	st := store.NewGormStore(gormDB)

	m, err := metrics.New()
	if err != nil {
		return nil, err
	}
	reporter, err := telemetry.New(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sentry: %w", err)
	}

	webpushOptions := &webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}
	var transports notification.MultiTransport
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		transports = append(transports, notification.NewWebPushTransport(st, webpushOptions, logger))
	} else {
		logger.Warn("VAPID keys are not configured, web push is disabled")
	}
	if cfg.Email.URLTemplate != "" {
		transports = append(transports, notification.NewShoutrrrTransport(cfg.Email.URLTemplate, 30*time.Second, logger))
	}
	if len(transports) == 0 {
		logger.Warn("no notification transport is configured, notifications are in-app only")
	}

	var arch *archive.Archive
	if cfg.Archive.Enabled {
		client, err := archive.NewClient(cfg.Archive)
		if err != nil {
			return nil, err
		}
		arch = archive.New(client, cfg.Archive.Bucket)
		if err := arch.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed to prepare menu archive: %w", err)
		}
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.MQTT.Enabled {
		p, err := events.NewMQTTPublisher(cfg.MQTT, logger)
		if err != nil {
			return nil, err
		}
		publisher = p
	}

	cat := catalog.New(st, parse.DefaultVocabulary(), logger)
	dispatcher := notification.NewDispatcher(m, logger)
	workerPool := notification.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.BatchSize, st, transports, m, logger)
	processor := scraper.NewProcessor(scraper.ProcessorDeps{
		Store:      st,
		Parser:     menu.NewModelParser(cfg.Parser, logger),
		Archive:    arch,
		Engine:     reconcile.NewEngine(cat, logger),
		Dispatcher: dispatcher,
		Stats:      stats.NewAggregator(m),
		Metrics:    m,
		Publisher:  publisher,
		Reporter:   reporter,
		Logger:     logger,
	})
	svc := scraper.NewService(cfg.Scraper, st, menu.NewHTTPFetcher(cfg.Scraper, logger), processor, arch, workerPool, logger)

	return &app{
		cfg:        cfg,
		logger:     logger,
		db:         gormDB,
		store:      st,
		metrics:    m,
		catalog:    cat,
		dispatcher: dispatcher,
		workerPool: workerPool,
		scraper:    svc,
		webpush:    webpushOptions,
		publisher:  publisher,
		reporter:   reporter,
	}, nil
}

func (a *app) close() {
	a.publisher.Close()
	a.reporter.Flush(2 * time.Second)
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.logger.Sync()
}
