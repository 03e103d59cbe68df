package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"gridworks/config"
	"gridworks/internal/cache"
	"gridworks/internal/handler"
	"gridworks/internal/httpserver"
	"gridworks/internal/progress"
	"gridworks/internal/repository"
	"gridworks/internal/review"
	"gridworks/internal/service"
	"gridworks/pkg/db"
	"gridworks/pkg/logger"
	"gridworks/pkg/mq"
	"gridworks/pkg/outbox"
	redisclient "gridworks/pkg/redis"
)

func main() {
	// Load config
	cfg := config.Load()

	log := logger.NewLogger()
	defer log.Sync()

	// Init DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	// Init Redis
	rdb := redisclient.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	// Init RabbitMQ Publisher
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("failed to init publisher", zap.Error(err))
	}
	defer publisher.Close()

	// Init Repositories
	outboxRepo := outbox.NewRepository(dbConn)
	userRepo := repository.NewUserRepo(dbConn)
	submissionRepo := repository.NewSubmissionRepo(dbConn)
	projectRepo := repository.NewProjectRepo(dbConn)
	notificationRepo := repository.NewNotificationRepo(dbConn)

	// Init Services
	txManager := repository.NewTxManager(dbConn, outboxRepo, log)
	reviewSvc := review.NewService(txManager, progress.DefaultPolicy(), log)
	authSvc := service.NewAuthService(userRepo, cfg.JWT.Secret, log)
	progressCache := cache.NewProgressCache(rdb, 5*time.Minute, log)

	// Outbox Dispatcher：审批事务提交后异步发布事件
	dispatcher := outbox.NewDispatcher(outboxRepo, publisher, log).
		WithMaxRetries(cfg.Outbox.MaxRetries).
		WithInterval(time.Duration(cfg.Outbox.IntervalSeconds) * time.Second).
		WithBatchSize(cfg.Outbox.BatchSize)

	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())
	defer cancelDispatcher()
	go dispatcher.Start(dispatcherCtx)

	// Init Handlers
	handlers := httpserver.Handlers{
		Auth:         handler.NewAuthHandler(authSvc, log),
		Submission:   handler.NewSubmissionHandler(reviewSvc, submissionRepo, log),
		Project:      handler.NewProjectHandler(reviewSvc, projectRepo, progressCache, log),
		Notification: handler.NewNotificationHandler(notificationRepo, log),
		Admin:        handler.NewAdminHandler(outboxRepo, log),
	}

	// Router
	router := httpserver.NewRouter(handlers, cfg.JWT.Secret, log, dbConn)

	log.Info("Starting API server", zap.String("port", cfg.Server.Port))
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatal("server start failed", zap.Error(err))
	}
}
