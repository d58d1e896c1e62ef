package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/forlotto/particl-market/internal/bid"
	"github.com/forlotto/particl-market/internal/cache"
	"github.com/forlotto/particl-market/internal/config"
	"github.com/forlotto/particl-market/internal/consumer"
	"github.com/forlotto/particl-market/internal/handlers"
	"github.com/forlotto/particl-market/internal/logger"
	"github.com/forlotto/particl-market/internal/order"
	"github.com/forlotto/particl-market/internal/store"
	"github.com/forlotto/particl-market/internal/ws"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)
	defer log.Sync()

	log.Info("starting marketd")

	// PostgreSQL
	pg, err := store.NewPostgres(cfg.PostgresURL, log)
	if err != nil {
		log.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}
	defer pg.Close()

	ctx := context.Background()
	if err := pg.InitSchema(ctx); err != nil {
		log.Fatal("failed to initialize schema", zap.Error(err))
	}

	// Redis
	redisCache, err := cache.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)
	if err != nil {
		log.Fatal("failed to connect to Redis", zap.Error(err))
	}
	defer redisCache.Close()

	// NATS
	natsConn, err := nats.Connect(cfg.NatsURL)
	if err != nil {
		log.Fatal("failed to connect to NATS", zap.Error(err))
	}
	defer natsConn.Close()

	// Core components
	marketStore := store.NewCachedStore(pg, redisCache)
	assembler := order.NewAssembler(nil, log)
	canceller := bid.NewCancelHandler(marketStore, marketStore, log)

	// Protocol message intake
	msgConsumer, err := consumer.New(natsConn, canceller, redisCache, log)
	if err != nil {
		log.Fatal("failed to create consumer", zap.Error(err))
	}
	defer msgConsumer.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		if err := msgConsumer.Start(runCtx); err != nil && runCtx.Err() == nil {
			log.Error("consumer stopped", zap.Error(err))
		}
	}()

	// Live broadcast of bid events
	wsManager := ws.NewManager(log)
	go wsManager.Run()

	eventChan := make(chan *cache.Message, 256)
	go func() {
		if err := redisCache.ListenBidEvents(runCtx, eventChan); err != nil && runCtx.Err() == nil {
			log.Error("bid event listener stopped", zap.Error(err))
		}
	}()
	go func() {
		for msg := range eventChan {
			wsManager.Broadcast(msg.ItemHash, msg.Payload)
		}
	}()

	// HTTP surface
	handler := handlers.NewHandler(marketStore, assembler, canceller, log)
	router := handler.SetupRoutes()

	wsHandler := ws.NewHandler(wsManager, log)
	router.HandleFunc("/ws/listings/{hash}", wsHandler.Watch)
	router.HandleFunc("/ws/listings/{hash}/stats", wsHandler.Stats).Methods("GET")

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("listening", zap.String("addr", cfg.ServerAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced to shutdown", zap.Error(err))
	}

	log.Info("stopped gracefully")
}
