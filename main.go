package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/redis/go-redis/v9"

	"homeflow/internal/assistant"
	"homeflow/internal/config"
	"homeflow/internal/daemon"
	"homeflow/internal/device"
	"homeflow/internal/doorlock"
	"homeflow/internal/logger"
	"homeflow/internal/member"
	"homeflow/internal/model"
	"homeflow/internal/orchestrator"
	"homeflow/internal/policy"
	"homeflow/internal/storage"
	"homeflow/internal/telemetry"
	"homeflow/internal/web"
)

func main() {
	if err := run(context.Background()); err != nil {
		panic(err)
	}
}

func run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		fmt.Println("Received signal:", sig)
		cancel()
	}()

	cfg := config.NewConfig()

	// Set up telemetry first: the logger ships records through its OTLP
	// log exporter when telemetry is enabled.
	tel, err := telemetry.New(cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}

	// Set up logger
	logger := logger.New(cfg, tel.LogHandler())

	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shut down telemetry", "error", err)
		}
	}()

	// Set up persistence
	store := storage.New(cfg.Database, logger)
	defer store.Close()

	// Set up the control core
	members := member.NewRegistry(logger, store)
	engine := policy.NewEngine()
	doors := doorlock.New(logger, engine, store, model.Doors())
	devices := device.NewRegistry(model.DefaultDevices())

	var redisClient *redis.Client
	var hub device.Hub
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		hub = device.NewRedisHub(redisClient, model.Doors())
		logger.Info("Using Redis device hub", "addr", cfg.Redis.Addr)
	} else {
		hub = device.NewSimHub(model.Doors(), model.DefaultDevices())
		logger.Info("No Redis configured, using simulated device hub")
	}

	orch := orchestrator.New(logger, engine, devices, doors, hub, tel)
	limiter := assistant.NewRateLimiter(redisClient, cfg.Assistant.RateLimit, cfg.Assistant.RateWindow)
	assistantSvc := assistant.NewService(logger, assistant.NewSimulatedSource(), engine, orch, limiter)

	// Set up session store
	sessionStore := session.New(session.Config{
		Storage:        storage.SessionStorage(cfg.Database, logger),
		KeyLookup:      "cookie:session_id",
		CookiePath:     "/",
		CookieSecure:   cfg.Server.Environment == "production",
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
		Expiration:     24 * time.Hour,
	})

	// Set up Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "homeflow",
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})

	webHandler := web.NewHandler(logger, sessionStore, members, orch, assistantSvc, doors, devices)
	webHandler.RegisterRoutes(app)

	// Background reconciliation keeps local door state converged with the hub.
	manager := daemon.NewManager(logger)
	if cfg.Hub.ReconcileInterval > 0 {
		manager.Add("door-reconcile", daemon.ReconcileDoorsTask(logger, doors, hub, cfg.Hub.ReconcileInterval))
	}
	manager.Start(ctx)
	defer manager.Wait()

	go func() {
		addr := cfg.Server.Host + ":" + cfg.Server.Port
		logger.Info("Starting HTTP server...", "addr", addr)
		if err := app.Listen(addr); err != nil {
			logger.Error("HTTP server stopped", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		logger.Error("Error shutting down", "error", err)
	}
	return nil
}
