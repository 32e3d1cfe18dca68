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

	"coursecast-backend/internal/config"
	"coursecast-backend/internal/database"
	"coursecast-backend/internal/events"
	"coursecast-backend/internal/handlers"
	"coursecast-backend/internal/middleware"
	"coursecast-backend/internal/poller"
	"coursecast-backend/internal/remote"
	"coursecast-backend/internal/repository"
	"coursecast-backend/internal/router"
	"coursecast-backend/internal/scheduler"
	"coursecast-backend/internal/websocket"
	"coursecast-backend/internal/workflow"
)

func main() {
	log.Println("🚀 Starting CourseCast Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, "migrations"); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Step 5: Initialize Remote Content Service Client ────
	contentService := remote.NewClient(cfg.ContentServiceURL, cfg.ContentServiceAPIKey)
	log.Println("✓ Content service client initialized")

	// ──── Initialize Repositories ────
	sessionRepo := repository.NewSessionRepo(pool)

	// ──── Initialize Workflow ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	publisher := events.NewRedisPublisher(redisClients.Cache)

	monitor := scheduler.NewMonitor(
		contentService,
		redisClients.Cache,
		time.Duration(cfg.MonitorCacheTTLSeconds)*time.Second,
	)
	if err := monitor.StartAutoRefresh(cfg.MonitorRefreshSpec); err != nil {
		log.Fatalf("✗ Monitor auto-refresh failed to start: %v", err)
	}
	log.Printf("✓ Scheduled-content monitor started (refresh %s)", cfg.MonitorRefreshSpec)

	pollCfg := poller.Config{
		Delay:         time.Duration(cfg.PollIntervalSeconds) * time.Second,
		MaxAttempts:   cfg.PollMaxAttempts,
		AnimationTick: time.Second,
	}

	orch := workflow.NewOrchestrator(
		contentService,
		publisher,
		sessionRepo,
		monitor,
		pollCfg,
		cfg.InlineUploadLimit,
	)
	log.Println("✓ Workflow orchestrator initialized")

	// ──── Initialize Handlers ────
	workflowHandler := handlers.NewWorkflowHandler(orch)
	monitorHandler := handlers.NewMonitorHandler(monitor)
	sessionHandler := handlers.NewSessionHandler(sessionRepo)

	// ──── Step 6: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, cfg.JWTSecret)
	log.Println("✓ WebSocket hub started")

	// ──── Step 7: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		workflowHandler,
		monitorHandler,
		sessionHandler,
		wsHub,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		monitor.StopAutoRefresh()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ CourseCast Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
