package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"dashbot-backend/internal/config"
	"dashbot-backend/internal/database"
	"dashbot-backend/internal/handlers"
	"dashbot-backend/internal/models"
	"dashbot-backend/internal/provider"
	"dashbot-backend/internal/repository"
	"dashbot-backend/internal/router"
	"dashbot-backend/internal/session"
	"dashbot-backend/internal/websocket"
	"dashbot-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting Dashbot Backend...")

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

	// ──── Initialize Repositories ────
	sessionRepo := repository.NewChatSessionRepo(pool)
	messageRepo := repository.NewChatMessageRepo(pool)
	chatStore := repository.NewChatStore(sessionRepo, messageRepo)

	// ──── Step 5: Initialize Gemini Client ────
	gemini, err := provider.NewGemini(cfg.GeminiAPIKey, cfg.DefaultModel, cfg.GeminiConcurrentReqs)
	if err != nil {
		log.Fatalf("✗ Gemini client initialization failed: %v", err)
	}
	defer gemini.Close()
	log.Println("✓ Gemini client initialized")

	// ──── Step 6: Start Title Worker Pool ────
	workerPool := worker.NewPool(redisClients.Queue, gemini, sessionRepo, cfg.TitleWorkers)
	workerPool.Start()
	log.Printf("✓ Title worker pool started (%d goroutines)", cfg.TitleWorkers)

	// ──── Step 7: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub)
	log.Println("✓ WebSocket hub started")

	// ──── Initialize Chat Engines ────
	engines := session.NewRegistry(func(clientID string) *session.Engine {
		return session.NewEngine(clientID, session.Options{
			Store:    chatStore,
			Provider: gemini,
			Publish: func(msg models.WSMessage) {
				data, err := json.Marshal(msg)
				if err != nil {
					return
				}
				redisClients.Queue.Publish(context.Background(), "chat_updates:"+clientID, string(data))
			},
			OnSessionCreated: func(sess *models.ChatSession, firstMessage string) {
				workerPool.Enqueue(context.Background(), models.TitleJob{
					ID:        uuid.New(),
					SessionID: sess.ID,
					ClientID:  clientID,
					Prompt:    firstMessage,
					CreatedAt: time.Now(),
				})
			},
			DefaultModel:    cfg.DefaultModel,
			DefaultProvider: cfg.DefaultProvider,
			PageSize:        cfg.ChatPageSize,
		})
	})

	// ──── Initialize Handlers ────
	chatHandler := handlers.NewChatHandler(engines)
	sessionHandler := handlers.NewSessionHandler(sessionRepo, messageRepo)

	// ──── Step 8: Start HTTP Server ────
	r := router.New(chatHandler, sessionHandler, wsHub, cfg.FrontendURL)

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
		workerPool.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ Dashbot Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
