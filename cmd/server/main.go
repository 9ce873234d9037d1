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

	"pos-analytics/config"
	"pos-analytics/internal/api"
	"pos-analytics/internal/broker"
	"pos-analytics/internal/posclient"
	"pos-analytics/internal/redisclient"
	"pos-analytics/internal/service"
	"pos-analytics/internal/util"
	"pos-analytics/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting POS analytics service")

	if cfg.POS.ClientID == "" || cfg.POS.ClientSecret == "" || cfg.POS.RestaurantGUID == "" {
		log.Fatal("POS_CLIENT_ID, POS_CLIENT_SECRET and POS_RESTAURANT_GUID are required")
	}

	tp, err := util.InitTracer("pos-analytics", cfg.Observ.JaegerEndpoint)
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

	session := posclient.NewSessionManager(
		cfg.POS.BaseURL, cfg.POS.ClientID, cfg.POS.ClientSecret, cfg.POS.TokenMargin, nil)
	posClient := posclient.NewClient(
		cfg.POS.BaseURL, cfg.POS.RestaurantGUID, session, nil, cfg.POS.PageSize, cfg.POS.MaxRetries)

	var menuCache service.MenuCache
	if cfg.Redis.Addr != "" {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Printf("Redis unavailable, menu caching disabled: %v", err)
		} else {
			defer redisClient.Close()
			menuCache = redisClient
			log.Println("Redis connected")
		}
	}

	var publisher service.QueryEventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicQuery)
		defer producer.Close()
		publisher = broker.NewEventPublisher(producer)
		log.Println("Kafka producer initialized")
	}

	queryService := service.NewQueryService(
		service.NewPOSAdapter(posClient), menuCache, cfg.Redis.MenuTTL, publisher)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var menuRefresher *worker.MenuRefresher
	if menuCache != nil {
		menuRefresher = worker.NewMenuRefresher(queryService.RefreshMenuLookup, cfg.Redis.MenuTTL/2)
		go func() {
			if err := menuRefresher.Start(workerCtx); err != nil && err != context.Canceled {
				log.Printf("Menu refresher error: %v", err)
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(queryService)
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
	if menuRefresher != nil {
		menuRefresher.Stop()
	}

	log.Println("Server exited")
}
