package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/quiltchat/message-service/internal/api"
	"github.com/quiltchat/message-service/internal/auth"
	"github.com/quiltchat/message-service/internal/cache"
	"github.com/quiltchat/message-service/internal/config"
	"github.com/quiltchat/message-service/internal/events"
	"github.com/quiltchat/message-service/internal/guard"
	"github.com/quiltchat/message-service/internal/kafka"
	"github.com/quiltchat/message-service/internal/logger"
	"github.com/quiltchat/message-service/internal/ratelimit"
	"github.com/quiltchat/message-service/internal/service"
	"github.com/quiltchat/message-service/internal/store/mongodb"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	zl, err := logger.New(cfg.App.Env)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	mc, err := mongodb.Connect(context.Background(), cfg.Mongo.URI)
	if err != nil {
		zl.Fatal("mongo init", zap.Error(err))
	}
	defer func() { _ = mc.Disconnect(context.Background()) }()
	st := mongodb.New(mc.Database(cfg.Mongo.DB))

	var previews *cache.PreviewCache
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		previews = cache.NewPreviewCache(rdb, cfg.Redis.Prefix)
	}

	var pub *events.Publisher
	if cfg.NATS.URL != "" {
		pub, err = events.NewPublisher(cfg.NATS.URL, zl)
		if err != nil {
			zl.Fatal("nats init", zap.Error(err))
		}
		defer pub.Close()
	}

	var prod *kafka.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		prod = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() { _ = prod.Close() }()
	}

	g := guard.New(st, zl)
	limiter := ratelimit.New(st, zl)
	svc := service.New(st, g, limiter, service.Limits{
		MessagesPerMinute:  cfg.Limits.MessagesPerMinute,
		ReactionsPerMinute: cfg.Limits.ReactionsPerMinute,
		EditWindow:         cfg.EditWindow,
	}, zl).WithSideEffects(previews, pub, prod)

	jv, err := auth.New(cfg.JWT.Alg, cfg.JWT.HSSecret, cfg.JWT.PublicKeyPath)
	if err != nil {
		zl.Fatal("jwt init", zap.Error(err))
	}

	app := api.NewServer(svc, jv, zl, api.Options{SurfacePerMinute: cfg.Limits.SurfacePerMinute})

	go func() {
		if err := app.Listen(":" + cfg.App.PortString()); err != nil {
			zl.Fatal("server listen", zap.Error(err))
		}
	}()
	zl.Info("message-service started", zap.String("port", cfg.App.PortString()))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	_ = app.ShutdownWithContext(ctx)
	zl.Info("message-service stopped")
}
