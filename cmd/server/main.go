package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-service/config"
	"storefront-service/internal/api"
	"storefront-service/internal/backend"
	"storefront-service/internal/broker"
	"storefront-service/internal/cache"
	"storefront-service/internal/cart"
	"storefront-service/internal/conflict"
	"storefront-service/internal/location"
	"storefront-service/internal/redisclient"
	"storefront-service/internal/store"
	"storefront-service/internal/util"
	"storefront-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront service")

	tp, err := util.InitTracer("storefront-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicStorefront)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	catalogCache := cache.New(redisClient)

	backendClient := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.RequestTimeout)
	locator := location.NewHTTPLocator(cfg.Backend.GeolocateURL)

	cartManager := cart.NewManager(db, eventPublisher)

	locationManager := location.NewManager(backendClient, locator, redisClient, eventPublisher, redisClient, db)
	locationManager.SetDetectOptions(location.DetectOptions{
		Timeout: cfg.Business.GeolocateTimeout,
		MaxAge:  cfg.Business.PositionMaxAge,
	})

	conflictManager := conflict.NewManager(cartManager, locationManager, eventPublisher)
	conflictManager.SetGracePeriod(cfg.Business.ConflictGracePeriod)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	sweepWorker := worker.NewSweepWorker(catalogCache, cfg.Business.CacheSweepInterval)
	go func() {
		if err := sweepWorker.Start(workerCtx); err != nil && err != context.Canceled {
			log.Printf("Sweep worker error: %v", err)
		}
	}()

	conflictConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicStorefront, cfg.Kafka.ConsumerGroup)
	conflictWorker := worker.NewConflictWorker(conflictConsumer, conflictManager, db, redisClient)
	go func() {
		if err := conflictWorker.Start(workerCtx); err != nil {
			log.Printf("Conflict worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(locationManager, cartManager, conflictManager,
		backendClient, catalogCache, cfg.Business.ProductsCacheTTL)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	sweepWorker.Stop()
	conflictWorker.Stop()

	log.Println("Server exited")
}
