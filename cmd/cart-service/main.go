package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/MiniCooper40/ecommerce-website-sub001/internal/cart/cache"
	"github.com/MiniCooper40/ecommerce-website-sub001/internal/cart/catalogclient"
	"github.com/MiniCooper40/ecommerce-website-sub001/internal/cart/consumer"
	"github.com/MiniCooper40/ecommerce-website-sub001/internal/cart/httpapi"
	"github.com/MiniCooper40/ecommerce-website-sub001/internal/cart/reconcile"
	"github.com/MiniCooper40/ecommerce-website-sub001/internal/cart/repository"
	"github.com/MiniCooper40/ecommerce-website-sub001/internal/cart/service"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	httpPort := getEnv("CART_HTTP_PORT", "8082")
	catalogURL := getEnv("CATALOG_SERVICE_URL", "http://localhost:8081")
	brokers := splitBrokers(getEnv("KAFKA_BROKERS", "localhost:9092"))

	mongoCfg := repository.MongoConfig{
		URI:                    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		Database:               getEnv("MONGO_DB_NAME", "cartdb"),
		ConnectTimeout:         getEnvDuration("MONGO_CONNECT_TIMEOUT", 10*time.Second),
		ServerSelectionTimeout: getEnvDuration("MONGO_SERVER_SELECTION_TIMEOUT", 5*time.Second),
		MaxPoolSize:            getEnvUint("MONGO_MAX_POOL_SIZE", 100),
		MinPoolSize:            getEnvUint("MONGO_MIN_POOL_SIZE", 10),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mongoDB, err := repository.ConnectMongo(ctx, mongoCfg)
	if err != nil {
		logger.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	defer mongoDB.Client().Disconnect(context.Background())

	if err := repository.EnsureIndexes(ctx, mongoDB); err != nil {
		logger.Fatal("failed to ensure cart indexes", zap.Error(err))
	}
	repo := repository.NewMongoRepository(mongoDB)
	logger.Info("connected to MongoDB", zap.String("uri", mongoCfg.URI))

	redisClient := redis.NewClient(&redis.Options{
		Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("redis connection failed", zap.Error(err))
	}
	logger.Info("redis ping succeeded")

	cartCache := cache.NewRedisCache(redisClient)
	productCache := cache.NewRedisProductCache(redisClient)
	catalog := catalogclient.New(catalogURL)
	cartService := service.NewCartService(repo, cartCache, productCache, catalog, logger)

	reconciler := reconcile.NewReconciler(repo, productCache, cartCache, logger)

	reader := consumer.NewReader(brokers...)
	deadLetters := consumer.NewDeadLetterWriter(brokers...)
	cons := consumer.NewConsumer(reader, deadLetters, 30*time.Second, logger)
	consumer.RegisterProductHandlers(cons, reconciler)

	go func() {
		logger.Info("product event consumer started",
			zap.Strings("brokers", brokers),
			zap.String("topic", consumer.Topic),
		)
		cons.Run(ctx)
	}()
	defer cons.Close()

	handler := httpapi.NewCartHandler(cartService, logger)
	server := &http.Server{
		Addr:    ":" + httpPort,
		Handler: otelhttp.NewHandler(handler.Routes(), "cart-service"),
	}

	go func() {
		logger.Info("cart service listening", zap.String("port", httpPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down cart service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
	logger.Info("cart service stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvUint(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseUint(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

func splitBrokers(csv string) []string {
	var brokers []string
	for _, b := range strings.Split(csv, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
