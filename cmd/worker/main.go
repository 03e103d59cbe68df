package main

import (
	"time"

	"go.uber.org/zap"

	"gridworks/config"
	mqcontracts "gridworks/contracts/mq"
	"gridworks/internal/cache"
	"gridworks/internal/mqhandler"
	"gridworks/internal/repository"
	"gridworks/internal/service"
	"gridworks/pkg/db"
	"gridworks/pkg/logger"
	"gridworks/pkg/mq"
	redisclient "gridworks/pkg/redis"
	"gridworks/pkg/util"
)

func main() {
	// Load config
	cfg := config.Load()

	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting worker...")

	// Init Redis
	rdb := redisclient.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	deduper := util.NewDeduperWithLogger(rdb, time.Hour, log)

	// Init DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	// Init RabbitMQ Publisher（DLQ 和 sent/failed 事件发布用）
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("failed to init publisher", zap.Error(err))
	}
	defer publisher.Close()

	// Init Repositories and services
	notificationRepo := repository.NewNotificationRepo(dbConn)
	sender := service.NewNotificationSender(dbConn, notificationRepo, publisher, log)
	progressCache := cache.NewProgressCache(rdb, 5*time.Minute, log)

	// Init Handlers
	notiHandler := mqhandler.NewNotificationCreatedHandler(sender, deduper, log)
	projectHandler := mqhandler.NewProjectUpdatedHandler(progressCache, log)

	// (1) Consumer for notification delivery
	log.Info("Initializing notification consumer", zap.String("queue", "notification.created.q"))
	consumerNoti, err := mq.NewConsumer(cfg.MQ.URL, "notification.created.q", mqcontracts.RoutingKeyNotificationCreated, log)
	if err != nil {
		log.Fatal("failed to init notification consumer", zap.Error(err))
	}
	consumerNoti.SetHandler(notiHandler.Handle)
	go func() {
		log.Info("Starting notification consumer")
		if err := consumerNoti.StartConsuming(); err != nil {
			log.Fatal("notification consumer failed", zap.Error(err))
		}
	}()
	defer consumerNoti.Close()

	// (2) Consumer for project progress cache invalidation
	log.Info("Initializing project-updated consumer", zap.String("queue", "project.updated.q"))
	consumerProject, err := mq.NewConsumer(cfg.MQ.URL, "project.updated.q", mqcontracts.RoutingKeyProjectUpdated, log)
	if err != nil {
		log.Fatal("failed to init project-updated consumer", zap.Error(err))
	}
	consumerProject.SetHandler(projectHandler.Handle)
	go func() {
		log.Info("Starting project-updated consumer")
		if err := consumerProject.StartConsuming(); err != nil {
			log.Fatal("project-updated consumer failed", zap.Error(err))
		}
	}()
	defer consumerProject.Close()

	log.Info("All consumers started, worker is ready to process messages")

	// Keep worker running
	select {}
}
