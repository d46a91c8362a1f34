package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MiniCooper40/ecommerce-website-sub001/internal/catalog/httpapi"
	"github.com/MiniCooper40/ecommerce-website-sub001/internal/catalog/publisher"
	"github.com/MiniCooper40/ecommerce-website-sub001/internal/catalog/repository"
	"github.com/MiniCooper40/ecommerce-website-sub001/internal/catalog/service"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	httpPort := getEnv("CATALOG_HTTP_PORT", "8081")
	dbPath := getEnv("DB_PATH", "./internal/catalog/repository/products.db")
	migrationsPath := getEnv("MIGRATIONS_PATH", "./internal/catalog/repository/migrations")
	brokers := splitBrokers(getEnv("KAFKA_BROKERS", "localhost:9092"))

	repo, err := repository.NewRepository(dbPath)
	if err != nil {
		logger.Fatal("failed to open catalog database", zap.Error(err))
	}
	defer repo.Close()

	if err := repo.RunMigrations(migrationsPath); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("migrations completed")

	pub := publisher.NewKafkaPublisher(logger, brokers...)
	defer pub.Close()

	productService := service.NewProductService(repo, pub, logger)
	handler := httpapi.NewProductHandler(productService, logger)

	server := &http.Server{
		Addr:    ":" + httpPort,
		Handler: otelhttp.NewHandler(handler.Routes(), "catalog-service"),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("catalog service listening", zap.String("port", httpPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down catalog service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
	logger.Info("catalog service stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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
