package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"repairTracker/internal/attachments"
	"repairTracker/internal/backup"
	"repairTracker/internal/config"
	"repairTracker/internal/handlers"
	"repairTracker/internal/invoice"
	"repairTracker/internal/logger"
	"repairTracker/internal/models/garage"
	"repairTracker/internal/portal"
	"repairTracker/internal/repository/inmemory"
	"repairTracker/internal/repository/postgres"
	"repairTracker/internal/repository/sqlite"
	"repairTracker/internal/service"
	"repairTracker/internal/worker"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config    *config.Config
	server    *http.Server
	storage   service.Storage
	service   *service.TaskService
	backups   *backup.Manager
	worker    *worker.BackupWorker
	shutdowns []func() // run in reverse order on exit
}

func New(cfg *config.Config) *App {
	return &App{
		config:    cfg,
		shutdowns: make([]func(), 0),
	}
}

// Init builds every component from the config. On error the components
// created so far are already released.
func (a *App) Init(ctx context.Context) error {
	if err := logger.Init(a.config.Logging.Development); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.shutdowns = append(a.shutdowns, func() {
		logger.Info("App: flushing logs")
		logger.Sync()
	})

	if err := a.initStorage(ctx); err != nil {
		a.Close()
		return err
	}
	if err := a.initService(ctx); err != nil {
		a.Close()
		return err
	}
	if err := a.initBackups(ctx); err != nil {
		a.Close()
		return err
	}
	if err := a.initServer(); err != nil {
		a.Close()
		return err
	}
	return nil
}

func (a *App) initStorage(ctx context.Context) error {
	cfg := a.config
	switch cfg.Repository.Type {
	case "postgres":
		if err := postgres.Migrate(cfg.Database.URL); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
		store, err := postgres.New(ctx, cfg.Database.URL, postgres.PoolConfig{
			MaxConns:        cfg.Database.MaxConnections,
			MinConns:        cfg.Database.MinConnections,
			MaxConnIdleTime: cfg.Database.IdleTimeout,
		})
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		a.storage = store
		a.shutdowns = append(a.shutdowns, store.Close)
	case "sqlite":
		store, err := sqlite.New(ctx, cfg.SQLite.Path)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		a.storage = store
		a.shutdowns = append(a.shutdowns, func() {
			if err := store.Close(); err != nil {
				logger.Warn("App: closing sqlite failed", zap.Error(err))
			}
		})
	default:
		logger.Warn("App: using in-memory storage, data is lost on exit")
		a.storage = inmemory.New()
	}
	logger.Info("App: storage ready", zap.String("type", cfg.Repository.Type))
	return nil
}

func (a *App) initService(ctx context.Context) error {
	var opts []service.Option
	if dir := a.config.Invoice.Dir; dir != "" {
		opts = append(opts, service.WithInvoiceExporter(invoice.NewFileExporter(dir)))
	}
	if dir := a.config.Attachments.Dir; dir != "" {
		opts = append(opts, service.WithAttachmentStore(attachments.NewDirStore(dir)))
	}
	a.service = service.NewTaskService(a.storage, a.storage, opts...)

	b := a.config.Billing
	err := a.service.SeedSettings(ctx, garage.Settings{
		DefaultHourlyRate: b.DefaultHourlyRate,
		Currency:          b.Currency,
		BusinessName:      b.BusinessName,
	})
	if err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}
	return nil
}

func (a *App) initBackups(ctx context.Context) error {
	cfg := a.config.Backup
	var sinks []backup.Sink
	if cfg.Dir != "" {
		sinks = append(sinks, backup.NewFileSink(cfg.Dir, cfg.Keep))
	}
	if cfg.S3.Bucket != "" {
		client, err := backup.NewS3Client(ctx, backup.S3Options{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		})
		if err != nil {
			return fmt.Errorf("s3 backup sink: %w", err)
		}
		sinks = append(sinks, backup.NewS3Sink(client, cfg.S3.Bucket, cfg.S3.Prefix))
	}
	if len(sinks) == 0 {
		logger.Info("App: backups disabled, no sink configured")
		return nil
	}
	a.backups = backup.NewManager(a.service, sinks...)
	if cfg.Enabled {
		a.worker = worker.NewBackupWorker(a.backups, &cfg.Interval)
	}
	return nil
}

func (a *App) initServer() error {
	cfg := a.config
	var opts []handlers.Option
	if cfg.Portal.Secret != "" {
		tokens, err := portal.New(cfg.Portal.Secret, cfg.Portal.TokenTTL)
		if err != nil {
			return fmt.Errorf("portal tokens: %w", err)
		}
		opts = append(opts, handlers.WithPortal(tokens))
	}
	if cfg.Attachments.Dir != "" {
		opts = append(opts, handlers.WithAttachments(attachments.NewDirStore(cfg.Attachments.Dir)))
	}
	if a.backups != nil {
		opts = append(opts, handlers.WithBackups(a.backups))
	}

	router := handlers.NewRouter(handlers.NewHandler(a.service, opts...), handlers.RouterConfig{
		RateLimit:      cfg.Server.RateLimit,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})
	a.server = &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return nil
}

// Run serves until ctx is cancelled or the server fails, then shuts the
// server down gracefully and releases every component.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("App: server started", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	if a.worker != nil {
		g.Go(func() error {
			a.worker.Start(gctx)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("App: shutting down server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func (a *App) Close() {
	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		a.shutdowns[i]()
	}
	a.shutdowns = nil
}
