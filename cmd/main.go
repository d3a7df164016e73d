package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"prestadash/internal/config"
	"prestadash/internal/controller"
	"prestadash/internal/events"
	"prestadash/internal/middleware"
	"prestadash/internal/model"
	"prestadash/internal/repository"
	"prestadash/internal/router"
	"prestadash/internal/service"
	"prestadash/internal/task"
	"prestadash/pkg/database"
	"prestadash/pkg/logger"
	"prestadash/pkg/presta"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.Must(cfg.Log.Level, cfg.Log.Encoding)
	defer func() { _ = log.Sync() }()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// 1. database
	db := initDatabase(cfg, log)
	defer func() { _ = database.Close(db) }()

	// 2. dependencies
	deps := initDependencies(cfg, db, log)
	defer func() { _ = deps.Publisher.Close() }()

	// 3. scheduled tasks
	tasks := initTasks(cfg, deps, log)
	defer tasks.Stop()

	// 4. routes
	r := router.SetupRouter(deps.Controllers, router.Options{
		AllowedOrigins:     cfg.CORS.AllowedOrigins,
		ManualSyncCooldown: cfg.Sync.ManualCooldown,
		WebhookLimiter:     middleware.NewKeyRateLimiter(cfg.Webhook.RatePerSecond, cfg.Webhook.Burst),
		SyncLimiter:        middleware.NewSyncRateLimiter(),
	}, log)

	// 5. serve
	startServer(cfg, r, log)
}

// ==================== Dependency container ====================

type Dependencies struct {
	DB          *gorm.DB
	UoW         *repository.SyncUnitOfWork
	Publisher   events.Publisher
	Services    *Services
	Controllers *router.Controllers
}

type Services struct {
	Site         *service.SiteService
	Sync         *service.SyncService
	Stats        *service.StatsService
	PriceHistory *service.PriceHistoryService
	Inventory    *service.InventoryService
}

// ==================== Init ====================

func initDatabase(cfg *config.Config, log *zap.Logger) *gorm.DB {
	db, err := database.Open(cfg.Database.DSN, database.Options{
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        database.GormLogLevel(cfg.Log.Level),
	}, log,
		&model.Site{},
		&model.Product{},
		&model.PriceHistory{},
		&model.StockAlert{},
		&model.SiteStats{},
		&model.ModuleLog{},
	)
	if err != nil {
		log.Fatal("database init failed", zap.Error(err))
	}
	return db
}

func initDependencies(cfg *config.Config, db *gorm.DB, log *zap.Logger) *Dependencies {
	uow := repository.NewSyncUnitOfWork(db)

	client := presta.NewClient(presta.Options{
		Timeout:            cfg.Remote.Timeout,
		InsecureSkipVerify: cfg.Remote.InsecureSkipVerify,
		UserAgent:          cfg.Remote.UserAgent,
	}, log.Named("presta"))

	publisher := events.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)

	svcs := &Services{}
	svcs.Sync = service.NewSyncService(uow, publisher, log)
	svcs.Site = service.NewSiteService(uow, client, svcs.Sync, service.SiteOptions{
		SyncAttributes: cfg.Sync.Attributes,
		StaleLockAfter: cfg.Sync.StaleLockAfter,
	}, log)
	svcs.Stats = service.NewStatsService(uow, client, log)
	svcs.PriceHistory = service.NewPriceHistoryService(uow, client, log)
	svcs.Inventory = service.NewInventoryService(uow, log)

	return &Dependencies{
		DB:          db,
		UoW:         uow,
		Publisher:   publisher,
		Services:    svcs,
		Controllers: initControllers(svcs),
	}
}

func initControllers(svc *Services) *router.Controllers {
	return &router.Controllers{
		Site:    controller.NewSiteController(svc.Site),
		Sync:    controller.NewSyncController(svc.Site, svc.Stats),
		Product: controller.NewProductController(svc.Inventory, svc.PriceHistory),
		Alert:   controller.NewAlertController(svc.Inventory),
		Webhook: controller.NewWebhookController(svc.Site),
	}
}

// ==================== Tasks ====================

func initTasks(cfg *config.Config, deps *Dependencies, log *zap.Logger) *task.TaskManager {
	tm := task.NewTaskManager(&task.TaskManagerDeps{
		Syncer:  deps.Services.Site,
		Sweeper: deps.Services.Site,
	}, &task.TaskManagerConfig{
		SyncCron:        cfg.Sync.Cron,
		SyncConcurrency: cfg.Sync.Concurrency,
		OrphanSweepCron: cfg.Sync.OrphanSweepCron,
	}, log)

	if err := tm.Start(); err != nil {
		log.Fatal("task init failed", zap.Error(err))
	}
	return tm
}

// ==================== Server ====================

func startServer(cfg *config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
		return
	}
	log.Info("server stopped")
}
