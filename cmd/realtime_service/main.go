package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"daycare_realtime_service/internal/realtime/app"
	"daycare_realtime_service/internal/realtime/repository"
	"daycare_realtime_service/internal/realtime/router"
	"daycare_realtime_service/pkg/config"
	"daycare_realtime_service/pkg/database"
	"daycare_realtime_service/pkg/logger"
	testtool "daycare_realtime_service/pkg/test_tool"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.RealtimeService, config.EnvConfig.RealtimeServiceLogPath)
	cfg := config.LoadConfig[config.Realtime](config.EnvConfig.RealtimeService, config.EnvConfig.RealtimeServiceYAMLPath)

	testtool.StartPprof()

	// mongo keeps messages, notifications and read receipts
	ctx := context.Background()
	uri := fmt.Sprintf("mongodb://%s:%s@%s:%d", cfg.MongoSQL.User, cfg.MongoSQL.Password, cfg.MongoSQL.Host, cfg.MongoSQL.Port)
	mongo, err := database.NewMongoDB(ctx,
		database.Connection{
			ConnectStr:    uri,
			RetryCount:    cfg.MongoSQL.RetryCount,
			RetryInterval: time.Duration(cfg.MongoSQL.RetryInterval),
		},
		cfg.MongoSQL.Database)
	if err != nil {
		logger.Log.Fatal(
			"Unable to connect to mongoDB database after retries",
			zap.String("address", fmt.Sprintf("[%s]", uri)),
			zap.Error(err),
		)
	}
	defer mongo.Close(ctx)

	// redis pub/sub relays fan-out between service nodes
	masterName, sentinel := config.GetRedisSetting()
	redisClient, err := database.NewRedisClient(masterName, sentinel, cfg.Redis.RedisDB)
	if err != nil {
		logger.Log.Fatal(fmt.Sprintf("connect redis err : %v", err))
	}

	// the account service's user table, read-only, for role fan-out
	directoryDSN := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Directory.Host, cfg.Directory.Port, cfg.Directory.User, cfg.Directory.Password, cfg.Directory.Database)
	directoryDB, err := database.NewDatabaseConnection(database.Connection{
		ConnectStr:    directoryDSN,
		RetryCount:    cfg.Directory.RetryCount,
		RetryInterval: time.Duration(cfg.Directory.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal(fmt.Sprintf("connect user directory err : %v", err))
	}

	// repositories
	msgRepo := repository.NewMongoMessageRepository(mongo.Database)
	notifRepo := repository.NewMongoNotificationRepository(mongo.Database)
	directory := repository.NewUserDirectory(directoryDB)
	pubsub := repository.NewRedisPubSub(redisClient)

	// registry + usecases
	registry := app.NewConnRegistry()
	relay := app.NewEventRelay(pubsub, registry)
	if err := relay.Start(ctx); err != nil {
		logger.Log.Fatal(fmt.Sprintf("start relay err : %v", err))
	}

	messageUC := app.NewSendMessageUseCase(msgRepo, registry, relay)
	notifUC := app.NewNotificationUseCase(notifRepo, directory, registry, relay)

	// admission decisions and announcements arrive over kafka
	if len(cfg.Kafka.Brokers) > 0 {
		reader, err := database.NewKafkaReaderWithRetry(database.KafkaConnection{
			Brokers:       cfg.Kafka.Brokers,
			Topic:         cfg.Kafka.Topic,
			GroupID:       cfg.Kafka.GroupID,
			RetryCount:    5,
			RetryInterval: 2,
		})
		if err != nil {
			logger.Log.Fatal(fmt.Sprintf("connect kafka err : %v", err))
		}
		consumer := app.NewEventConsumer(reader, notifUC)
		defer consumer.Close()
		go consumer.Run(ctx)
	}

	r := fiber.New()
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.RealtimeServiceLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	r.Use(fiber_log.New(fiber_log.Config{
		Output: file,
	}))

	wsHandler := app.NewRealtimeWebsocketHandler(messageUC, registry, cfg.RegisterGrace)
	httpHandler := app.NewRealtimeHTTPHandler(messageUC, notifUC)
	router.RegisterRoutes(r, wsHandler, httpHandler)

	port := ":" + cfg.Port
	log.Printf("Realtime Service listening on %s", port)
	if err := r.Listen(port); err != nil {
		log.Fatalf("Failed to start Fiber: %v", err)
	}
}
