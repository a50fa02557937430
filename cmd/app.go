package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/flowdesk/flowdesk/internal/application/config"
	"github.com/flowdesk/flowdesk/internal/application/constant"
	"github.com/flowdesk/flowdesk/internal/application/metric"
	"github.com/flowdesk/flowdesk/internal/infra/adapters/daily"
	"github.com/flowdesk/flowdesk/internal/infra/adapters/memory"
	"github.com/flowdesk/flowdesk/internal/infra/adapters/postgres"
	"github.com/flowdesk/flowdesk/internal/infra/adapters/postgres/repository"
	rediscache "github.com/flowdesk/flowdesk/internal/infra/adapters/redis"
	"github.com/flowdesk/flowdesk/internal/infra/ports/http/handlers"
	"github.com/flowdesk/flowdesk/internal/infra/ports/http/server"
	"github.com/flowdesk/flowdesk/internal/room"
	"github.com/flowdesk/flowdesk/internal/usecase"
)

func runApp() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	slog.SetDefault(
		slog.New(
			slog.NewJSONHandler(
				os.Stdout,
				&slog.HandlerOptions{Level: slog.LevelInfo},
			),
		),
	)

	cfg, err := config.New()
	if err != nil {
		slog.Error("parse config", slog.Any(constant.Error, err))
		os.Exit(1)
	}

	dbConn, err := postgres.NewPostgres(ctx, cfg.Postgres.DSN())
	if err != nil {
		slog.Error("connect to postgres", slog.Any(constant.Error, err))
		os.Exit(1)
	}
	defer dbConn.Close()

	userRepo := repository.NewUserRepo(dbConn)
	messageRepo := repository.NewMessageRepo(dbConn)
	taskRepo := repository.NewTaskRepo(dbConn)

	var sessionRepo repository.SessionRepository

	if cfg.StoreBackend == "memory" {
		slog.Warn("using in-memory session store, sessions are process-lifetime only")
		sessionRepo = memory.NewSessionRepository()
	} else {
		sessionRepo = repository.NewSessionRepo(dbConn)
	}

	var sessionCache rediscache.SessionCache

	if cfg.Redis.Addr != "" {
		redisClient, err := rediscache.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Error("connect to redis", slog.Any(constant.Error, err))
			os.Exit(1)
		}
		defer redisClient.Close()

		sessionCache = rediscache.NewSessionCache(redisClient)
	}

	wsConnRepo := memory.NewWSConnectionRepository()
	rosterRepo := memory.NewRosterRepository()

	dailyClient := daily.NewClient(cfg.Daily)
	roomManager := room.NewManager(ctx, dailyClient)

	userUsecase := usecase.NewUserUsecase([]byte(cfg.JWTSecret), userRepo)
	sessionUsecase := usecase.NewSessionUsecase(sessionRepo, sessionCache)
	realtimeUsecase := usecase.NewRealtimeUsecase(
		sessionUsecase,
		sessionRepo,
		userRepo,
		messageRepo,
		taskRepo,
		rosterRepo,
		wsConnRepo,
		roomManager,
	)

	authHandler := handlers.NewAuthHandler(userUsecase)
	sessionHandler := handlers.NewSessionHandler(sessionUsecase, userUsecase, messageRepo, taskRepo)
	wsHandler := handlers.NewWebSocketHandler(cfg, realtimeUsecase, wsConnRepo)

	echoSrv := server.New(cfg, authHandler, sessionHandler, wsHandler)

	metricsSrv := metric.NewServer()

	// Derived-status metrics are recomputed on a fixed tick; derivation is
	// pure, so the rate is a display concern only.
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sessionUsecase.RefreshStatusMetrics(ctx)
				metric.SetOpenRooms(roomManager.Count())
			}
		}
	}()

	echoSrvCh := make(chan error, 1)
	metricsSrvCh := make(chan error, 1)

	go func() {
		echoSrvCh <- echoSrv.Start(":" + cfg.Port)
	}()

	go func() {
		metricsSrvCh <- metricsSrv.Start(":" + cfg.MetricPort)
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutting down servers due to context cancel")
	case err := <-echoSrvCh:
		slog.Error(
			"HTTP server failed",
			slog.Any(constant.Error, err),
		)
		os.Exit(1)
	case err := <-metricsSrvCh:
		slog.Error(
			"Metrics server failed",
			slog.Any(constant.Error, err),
		)
		os.Exit(1)
	}

	roomManager.CloseAll()

	timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer timeoutCancel()

	if err := echoSrv.Shutdown(timeoutCtx); err != nil {
		slog.Error("Failed to gracefully shutdown HTTP server", slog.Any(constant.Error, err))
	}

	if err := metricsSrv.Shutdown(timeoutCtx); err != nil {
		slog.Error("Failed to gracefully shutdown metric server", slog.Any(constant.Error, err))
	}
}
