package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/foliomail/internal/common"
	"github.com/ternarybob/foliomail/internal/dispatch"
	"github.com/ternarybob/foliomail/internal/enrich"
	"github.com/ternarybob/foliomail/internal/handlers"
	"github.com/ternarybob/foliomail/internal/imap"
	"github.com/ternarybob/foliomail/internal/ingest"
	"github.com/ternarybob/foliomail/internal/interfaces"
	"github.com/ternarybob/foliomail/internal/llm"
	"github.com/ternarybob/foliomail/internal/mailer"
	"github.com/ternarybob/foliomail/internal/models"
	"github.com/ternarybob/foliomail/internal/pdf"
	"github.com/ternarybob/foliomail/internal/queue"
	"github.com/ternarybob/foliomail/internal/storage"
	"github.com/ternarybob/foliomail/internal/worker"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Storage
	DB             *storage.BadgerDB
	PortfolioStore *storage.PortfolioStore

	// Queue
	Queue      interfaces.TaskQueue
	WorkerPool interfaces.WorkerPool

	// Pipeline services
	LLMService      interfaces.LLMService
	EnrichClient    *enrich.Client
	BatchScheduler  *enrich.Scheduler
	Renderer        interfaces.Renderer
	Mailer          interfaces.Mailer
	Dispatcher      *dispatch.Dispatcher
	IMAPService     *imap.Service
	Sanitizer       *ingest.Sanitizer
	IngestScheduler *ingest.Scheduler

	// HTTP handlers
	APIHandler       *handlers.APIHandler
	ExtractHandler   *handlers.ExtractHandler
	PortfolioHandler *handlers.PortfolioHandler
	SweepHandler     *handlers.SweepHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	logger.Info().
		Str("llm_provider", string(cfg.LLM.Provider)).
		Str("enrich_mode", cfg.Enrich.Mode).
		Msg("Application initialization complete")

	return app, nil
}

// initStorage opens Badger during startup and seeds configured portfolios
func (a *App) initStorage() error {
	db, err := storage.NewBadgerDB(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return fmt.Errorf("failed to open badger: %w", err)
	}
	a.DB = db

	a.PortfolioStore = storage.NewPortfolioStore(db, a.Logger)

	seeds := make([]models.Portfolio, 0, len(a.Config.Portfolios))
	for _, seed := range a.Config.Portfolios {
		portfolio := models.Portfolio{Email: seed.Email}
		for _, account := range seed.Accounts {
			portfolio.Accounts = append(portfolio.Accounts, models.Account{
				Name:    account.Name,
				Tickers: account.Tickers,
			})
		}
		seeds = append(seeds, portfolio)
	}
	if err := a.PortfolioStore.Seed(context.Background(), seeds); err != nil {
		return fmt.Errorf("failed to seed portfolios: %w", err)
	}

	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	return nil
}

// initServices initializes the pipeline in dependency order: queue,
// LLM, enrichment, rendering, delivery, dispatch, ingestion.
func (a *App) initServices() error {
	queueMgr, err := queue.NewBadgerManager(
		a.DB.Badger(),
		a.Config.Queue.QueueName,
		a.Config.Queue.VisibilityTimeoutDuration(),
		a.Config.Queue.MaxReceive,
		a.Logger,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize queue: %w", err)
	}
	a.Queue = queueMgr
	a.Logger.Debug().Str("queue_name", a.Config.Queue.QueueName).Msg("Queue manager initialized")

	llmService, err := llm.NewLLMService(a.Config, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM service: %w", err)
	}
	a.LLMService = llmService

	if err := a.LLMService.HealthCheck(context.Background()); err != nil {
		// Startup proceeds; enrichment calls will fail into fallbacks until
		// the provider recovers or the key is fixed.
		a.Logger.Warn().Err(err).Msg("LLM health check failed")
	}

	a.EnrichClient = enrich.NewClient(a.LLMService, &a.Config.Enrich, a.Logger)
	a.BatchScheduler = enrich.NewScheduler(a.EnrichClient, &a.Config.Enrich, a.Logger)

	a.Renderer = pdf.NewService(a.Config.Enrich.NewsletterTitle, a.Logger)

	mailerService := mailer.NewService(&a.Config.Mailer, a.Logger)
	if !mailerService.IsConfigured() {
		a.Logger.Warn().Msg("Mailer is not configured, newsletter delivery will fail")
	}
	a.Mailer = mailerService

	newsletterWorker := worker.NewNewsletterWorker(
		a.EnrichClient,
		a.BatchScheduler,
		a.Renderer,
		a.Mailer,
		&a.Config.Enrich,
		a.Logger,
	)

	pool := queue.NewWorkerPool(a.Queue, &a.Config.Queue, a.Logger)
	pool.RegisterHandler(models.TaskTypeNewsletter, newsletterWorker.Handle)
	a.WorkerPool = pool

	a.Dispatcher = dispatch.NewDispatcher(a.Queue, a.PortfolioStore, a.Logger)
	a.Sanitizer = ingest.NewSanitizer(a.Logger)

	a.IMAPService = imap.NewService(&a.Config.IMAP, a.Logger)
	a.IngestScheduler = ingest.NewScheduler(a.IMAPService, a.Sanitizer, a.Dispatcher, &a.Config.Ingest, a.Logger)

	return nil
}

// initHandlers wires the HTTP handlers over the services
func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler()
	a.ExtractHandler = handlers.NewExtractHandler(a.Sanitizer, a.Dispatcher, a.Logger)
	a.PortfolioHandler = handlers.NewPortfolioHandler(a.PortfolioStore, a.Logger)
	a.SweepHandler = handlers.NewSweepHandler(a.IngestScheduler, a.Logger)
}

// Start begins background processing: the worker pool and the ingestion cron.
func (a *App) Start() error {
	if err := a.WorkerPool.Start(); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}
	a.Logger.Debug().Msg("Worker pool started")

	if err := a.IngestScheduler.Start(); err != nil {
		return fmt.Errorf("failed to start ingest scheduler: %w", err)
	}

	return nil
}

// Shutdown stops background processing and closes resources in reverse
// dependency order.
func (a *App) Shutdown() {
	a.IngestScheduler.Stop()

	if err := a.WorkerPool.Stop(); err != nil {
		a.Logger.Warn().Err(err).Msg("Worker pool stop failed")
	}

	if err := a.Queue.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Queue close failed")
	}

	if a.LLMService != nil {
		if err := a.LLMService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("LLM service close failed")
		}
	}

	if err := a.DB.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Badger close failed")
	}

	a.Logger.Info().Msg("Application shutdown complete")
}
