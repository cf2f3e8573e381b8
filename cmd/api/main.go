package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/itops/helpdesk/internal/api/http"
	"github.com/itops/helpdesk/internal/api/http/handlers"
	"github.com/itops/helpdesk/internal/config"
	"github.com/itops/helpdesk/internal/domain"
	"github.com/itops/helpdesk/internal/events"
	"github.com/itops/helpdesk/internal/observability"
	"github.com/itops/helpdesk/internal/persistence"
	"github.com/itops/helpdesk/internal/repository"
	"github.com/itops/helpdesk/internal/service"
	"github.com/itops/helpdesk/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	specialistRepo := repository.NewSpecialistRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	assigner := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo:     ticketRepo,
		SpecialistRepo: specialistRepo,
		Tx:             pg,
		Dispatcher:     dispatcher,
		Metrics:        metrics,
		Logger:         logger,
		Fallback:       domain.Category(cfg.Assignment.FallbackCategory),
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:     ticketRepo,
		SpecialistRepo: specialistRepo,
		MessageRepo:    messageRepo,
		Assigner:       assigner,
		Tx:             pg,
		Dispatcher:     dispatcher,
		Logger:         logger,
	})
	specialistService := service.NewSpecialistService(specialistRepo)
	notificationService := service.NewNotificationService(
		notificationRepo, dispatcher, redis, cfg.Redis.EventChannel, logger)
	notificationService.RegisterHandlers()

	sweeper := worker.NewSweeper(worker.SweeperDependencies{
		TicketRepo:     ticketRepo,
		SpecialistRepo: specialistRepo,
		Assigner:       assigner,
		Tx:             pg,
		Dispatcher:     dispatcher,
		Metrics:        metrics,
		Logger:         logger,
		AgingDeadline:  cfg.Assignment.AgingDeadline(),
	})
	if cfg.Assignment.SweepEnabled && pool != nil {
		if err := sweeper.Start(cfg.Assignment.SweepSchedule); err != nil {
			logger.Fatal("failed to start sweeper", zap.Error(err))
		}
		defer sweeper.Stop()
	}

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:        handlers.NewHealthHandler(pg, redis),
		Tickets:       handlers.NewTicketsHandler(ticketService),
		Staff:         handlers.NewStaffHandler(ticketService),
		Specialists:   handlers.NewSpecialistsHandler(specialistService),
		Notifications: handlers.NewNotificationsHandler(notificationService),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
