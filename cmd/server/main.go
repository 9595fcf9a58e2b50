package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"aiassist/internal/channels"
	"aiassist/internal/config"
	"aiassist/internal/database"
	"aiassist/internal/handlers"
	"aiassist/internal/jobs"
	"aiassist/internal/llm"
	"aiassist/internal/logging"
	"aiassist/internal/middleware"
	"aiassist/internal/rules"
	"aiassist/internal/services"
	"aiassist/internal/tools"
	"aiassist/pkg/auth"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Structured logging: JSON in production, text in dev
	logging.Init()

	log.Println("🚀 Starting AI Assist server...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	log.Printf("📋 Configuration loaded (Port: %s, DB: %s, Model: %s)", cfg.Port, cfg.DatabasePath, cfg.Model)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// SQLite database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("❌ Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Initialize(); err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}

	messageStore := database.NewMessageStore(db)
	cardStore := database.NewCardStore(db)
	todoStore := database.NewTodoStore(db)
	activityStore := database.NewActivityStore(db)
	settingsStore := database.NewSettingsStore(db)

	// Event bus, agent tracker, metrics
	bus := services.NewEventBus()
	tracker := services.NewActiveAgentTracker(cfg.RoutinesMaxConcurrent)
	metrics := services.NewMetrics(prometheus.DefaultRegisterer, tracker)

	// Card queue: hydrate pending cards before any traffic is served
	cardQueue := services.NewCardQueue(cardStore, bus, metrics)
	if err := cardQueue.Load(ctx); err != nil {
		log.Fatalf("❌ Failed to load card queue: %v", err)
	}

	// Rules engine with live reload
	rulesEngine := rules.NewEngine()
	if cfg.RulesPath != "" {
		if err := rulesEngine.LoadFile(cfg.RulesPath); err != nil {
			log.Fatalf("❌ Failed to load rules from %s: %v", cfg.RulesPath, err)
		}
		log.Printf("📜 Loaded %d rules from %s", rulesEngine.Count(), cfg.RulesPath)
		go rulesEngine.Watch(ctx, cfg.RulesPath)
	}

	// LLM provider and agent tools
	provider := llm.NewAnthropicProvider(cfg.AnthropicAPIKey, cfg.Model, cfg.RoutinesMaxTokens)
	registry := tools.NewRegistry()
	log.Printf("🔧 Tool registry initialized with %d tools", registry.Count())

	// Triage pipeline
	processor := services.NewMessageProcessor(rulesEngine, provider, cardQueue, metrics,
		cfg.ConfidenceThreshold, cfg.CardTTL)

	// Todo side
	todoService := services.NewTodoService(todoStore, bus)
	orchestrator := services.NewTodoOrchestrator(cfg, todoService, todoStore, activityStore,
		provider, registry, bus, tracker, metrics)
	if err := orchestrator.Start(ctx); err != nil {
		log.Fatalf("❌ Failed to start orchestrator: %v", err)
	}

	// Channel adapters register here. The server ships none built in; the
	// email channel is fed by an external fetcher writing through ingest.
	channelManager := channels.NewManager()
	if cfg.EmailIMAPHost != "" {
		log.Printf("📧 Email channel enabled (IMAP host: %s)", cfg.EmailIMAPHost)
	}

	// Background jobs
	jobScheduler := jobs.NewJobScheduler()
	jobScheduler.Register("email_processor", jobs.NewEmailProcessorJob(messageStore, settingsStore, processor, cfg.EmailProcessInterval))
	jobScheduler.Register("card_expiry", jobs.NewCardExpiryJob(cardQueue, time.Hour))
	jobScheduler.Register("channel_ingest", jobs.NewChannelIngestJob(channelManager, messageStore, 5*time.Minute))
	jobScheduler.Start()

	// Optional bearer-token auth
	var tokenAuth *auth.TokenAuth
	if cfg.AuthTokenSecret != "" {
		tokenAuth, err = auth.NewTokenAuth(cfg.AuthTokenSecret, 0)
		if err != nil {
			log.Fatalf("❌ Failed to initialize token auth: %v", err)
		}
		log.Println("🔒 Bearer token auth enabled")
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "AI Assist v1.0",
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    4 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(logger.New())

	prom := fiberprometheus.New("aiassist")
	prom.RegisterAt(app, "/metrics")
	app.Use(prom.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:5173,http://localhost:3000"
		log.Println("⚠️  ALLOWED_ORIGINS not set, using development defaults")
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: allowedOrigins != "*",
	}))

	rateLimitConfig := middleware.LoadRateLimitConfig()
	app.Use("/api", middleware.APIRateLimiter(rateLimitConfig))
	app.Use("/api", middleware.BearerAuth(tokenAuth))

	// Handlers
	healthHandler := handlers.NewHealthHandler()
	cardHandler := handlers.NewCardHandler(cardQueue)
	todoHandler := handlers.NewTodoHandler(todoService, activityStore)
	cardsWS := handlers.NewCardsWebSocketHandler(cardQueue, bus, metrics)
	todosWS := handlers.NewTodosWebSocketHandler(todoService, bus, metrics)
	activityWS := handlers.NewActivityWebSocketHandler(activityStore, bus)

	// Routes
	app.Get("/health", healthHandler.Check)

	api := app.Group("/api")
	api.Get("/cards", cardHandler.List)
	api.Post("/cards/:id/approve", cardHandler.Approve)
	api.Post("/cards/:id/dismiss", cardHandler.Dismiss)
	api.Post("/cards/:id/edit", cardHandler.Edit)

	api.Get("/todos", todoHandler.List)
	api.Post("/todos", todoHandler.Create)
	api.Get("/todos/:id", todoHandler.Get)
	api.Get("/todos/:id/activity", todoHandler.Activity)
	api.Put("/todos/:id", todoHandler.Update)
	api.Delete("/todos/:id", todoHandler.Delete)
	api.Post("/todos/:id/complete", todoHandler.Complete)
	api.Post("/todos/:id/snooze", todoHandler.Snooze)

	// WebSocket upgrade guard
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Use("/ws", middleware.WebSocketRateLimiter(rateLimitConfig))
	app.Use("/ws", middleware.BearerAuth(tokenAuth))

	app.Get("/ws/cards", websocket.New(cardsWS.Handle))
	app.Get("/ws/todos", websocket.New(todosWS.Handle))
	app.Get("/ws/todos/:id/activity", websocket.New(activityWS.Handle))

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		// Cancel first so in-flight workers and jobs see the signal,
		// then wait for them to drain
		cancel()
		jobScheduler.Stop()
		orchestrator.Stop()

		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}
