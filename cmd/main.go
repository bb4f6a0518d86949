package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/agencydesk/support-chat-service/internal/api"
	"github.com/agencydesk/support-chat-service/internal/auth"
	"github.com/agencydesk/support-chat-service/internal/config"
	"github.com/agencydesk/support-chat-service/internal/events"
	"github.com/agencydesk/support-chat-service/internal/hub"
	"github.com/agencydesk/support-chat-service/internal/metrics"
	"github.com/agencydesk/support-chat-service/internal/presence"
	"github.com/agencydesk/support-chat-service/internal/repository"
	"github.com/agencydesk/support-chat-service/internal/service"
	"github.com/agencydesk/support-chat-service/internal/users"
	"github.com/agencydesk/support-chat-service/internal/ws"
	"github.com/agencydesk/support-chat-service/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	zlog, err := logger.New(logger.Config{Development: cfg.App.Development()})
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	metrics.Init()

	mc, err := repository.NewMongoClient(cfg.Mongo.URI)
	if err != nil {
		zlog.Fatalw("mongo init", "err", err)
	}
	defer func() { _ = mc.Disconnect(context.Background()) }()
	db := mc.Database(cfg.Mongo.DB)

	repo := repository.NewMongoRepository(db)
	dir := users.NewMongoDirectory(db, cfg.Support.AdminID)

	var presenceStore *presence.Store
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		presenceStore = presence.NewStore(rdb, cfg.Redis.Prefix, 5*time.Minute)
	}

	var pub *events.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		pub = events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, zlog)
		defer func() { _ = pub.Close() }()
	}

	jv, err := auth.NewValidator(cfg.JWT.Alg, cfg.JWT.PublicKeyPath, cfg.JWT.HSSecret)
	if err != nil {
		zlog.Fatalw("jwt init", "err", err)
	}

	h := hub.New()
	svc := service.NewChatService(repo, dir, h, pub, zlog)
	gw := ws.NewGateway(h, presenceStore, zlog)

	app := api.NewServer(svc, jv, gw)

	go func() {
		if err := app.Listen(":" + cfg.App.PortString()); err != nil {
			zlog.Fatalw("server listen", "err", err)
		}
	}()
	zlog.Infow("support-chat-service started", "port", cfg.App.PortString())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = app.ShutdownWithContext(ctx)
	zlog.Infow("support-chat-service stopped")
}
