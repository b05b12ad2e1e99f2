package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"badge-progress-system/config"
	"badge-progress-system/handlers"
	"badge-progress-system/middleware"
	"badge-progress-system/models"
	"badge-progress-system/services"
	"badge-progress-system/utils"
	"badge-progress-system/workers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := utils.NewLogger(cfg.LogMode)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		logger.Fatal("failed to connect to database", "error", err)
	}

	if err := db.AutoMigrate(
		&models.Member{},
		&models.BadgeDefinition{},
		&models.BadgeModule{},
		&models.BadgeRequirement{},
		&models.MemberRequirementProgress{},
		&models.MemberBadgeProgress{},
		&models.MemberBadgeAward{},
		&models.ActivityLog{},
	); err != nil {
		logger.Fatal("failed to migrate database", "error", err)
	}

	var store services.ObjectFetcher
	if cfg.R2Enabled() {
		r2, err := utils.NewR2Store(ctx, cfg.R2.AccountID, cfg.R2.AccessKeyID, cfg.R2.AccessKeySecret, cfg.R2.Bucket)
		if err != nil {
			logger.Fatal("failed to initialize R2 client", "error", err)
		}
		store = r2
	} else {
		logger.Warn("R2 not configured, catalog import from object storage disabled")
	}

	catalogService := services.NewCatalogService(db, logger, store)
	badgeService := services.NewBadgeService(db, logger)
	progressionService := services.NewProgressionService(db, logger)
	memberService := services.NewMemberService(db)
	rosterService := services.NewRosterService(db, logger, cfg.RosterConcurrency)

	scheduler, err := badgeService.StartCacheRebuildScheduler(ctx, cfg.CacheRebuildInterval)
	if err != nil {
		logger.Fatal("failed to start cache rebuild scheduler", "error", err)
	}

	if cfg.MemberSyncURL != "" {
		workers.NewMemberSyncWorker(db, logger, cfg.MemberSyncURL, cfg.MemberSyncPath, cfg.PortalServiceToken, cfg.MemberSyncInterval).Start(ctx)
	} else {
		logger.Warn("MEMBER_SYNC_URL not set, member sync worker disabled")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 8 * 1024 * 1024,
	})

	// Only gateway requests allowed.
	app.Use(middleware.GatewayAuthMiddleware(cfg.PortalServiceToken, logger))

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	secured := app.Group("/", middleware.UserContextMiddleware())
	handlers.SetupMemberRoutes(secured, memberService, badgeService, progressionService, rosterService)
	handlers.SetupBadgeRoutes(secured, catalogService, badgeService, cfg.R2.CatalogKey)

	go func() {
		if err := app.Listen(cfg.Addr()); err != nil {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	logger.Info("server running",
		"addr", cfg.Addr(), "origins", cfg.AllowedOrigins,
		"cache_rebuild_interval", cfg.CacheRebuildInterval, "r2", cfg.R2Enabled())

	<-ctx.Done()
	logger.Info("shutting down server")

	if err := scheduler.Shutdown(); err != nil {
		logger.Warn("scheduler shutdown failed", "error", err)
	}
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("server shutdown failed", "error", err)
	}
}
