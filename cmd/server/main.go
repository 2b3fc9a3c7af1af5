package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"fortuna/internal/config"
	"fortuna/internal/database"
	"fortuna/internal/gemini"
	"fortuna/internal/handlers"
	"fortuna/internal/jobs"
	"fortuna/internal/logging"
	"fortuna/internal/reading"
	"fortuna/internal/services"
	"fortuna/internal/storage"
	"fortuna/internal/watcher"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting Fortuna Server...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️ No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s, Model: %s)", cfg.Port, cfg.GeminiModel)

	if cfg.MongoURI == "" {
		log.Fatal("❌ MONGODB_URI environment variable is required")
	}

	db, err := database.NewMongoDB(cfg.MongoURI)
	if err != nil {
		log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
	}
	defer db.Close(context.Background())

	if err := db.Initialize(context.Background()); err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}

	photoStore, err := storage.NewPhotoStore(db)
	if err != nil {
		log.Fatalf("❌ Failed to open photo bucket: %v", err)
	}

	readingStore := services.NewReadingStore(db)
	metrics := services.InitMetrics()

	// A missing API key is not fatal for the process: every reading then
	// terminates in the error state before any external call, so failures
	// stay inspectable on the documents themselves.
	var generator reading.Generator
	if cfg.GeminiAPIKey == "" {
		log.Println("❌ GEMINI_API_KEY not set - every reading will terminate in the error state")
	} else {
		client, err := gemini.NewClient(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Printf("⚠️ Failed to create Gemini client: %v", err)
		} else {
			generator = client
			log.Printf("✅ Gemini client initialized (model: %s)", cfg.GeminiModel)
		}
	}

	processor := reading.NewProcessor(readingStore, photoStore, generator,
		cfg.GeminiModel, cfg.PhotoMIMEType, cfg.TempDir)
	processor.SetMetrics(metrics)

	// Optional Redis processing lock
	if cfg.RedisURL != "" {
		redisService, err := services.NewRedisService(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️ Failed to connect to Redis: %v (processing lock disabled)", err)
		} else {
			defer redisService.Close()
			processor.SetLocker(redisService)
			log.Println("✅ Redis processing lock enabled")
		}
	} else {
		log.Println("⚠️ REDIS_URL not set - processing lock disabled")
	}

	// Change stream trigger
	w := watcher.New(db, processor, cfg.MaxConcurrentReadings)
	w.Start(context.Background())

	// Background sweep of stranded staging directories
	scheduler := jobs.NewScheduler()
	scheduler.Register(jobs.NewTempSweepJob(cfg.TempDir, cfg.TempMaxAge, cfg.SweepInterval))
	scheduler.Start()

	// HTTP surface: health, metrics, operational reading endpoints
	app := fiber.New(fiber.Config{
		AppName: "Fortuna",
	})
	app.Use(recover.New())

	prometheus := fiberprometheus.New("fortuna")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	healthHandler := handlers.NewHealthHandler(db)
	readingHandler := handlers.NewReadingHandler(readingStore, processor)

	app.Get("/health", healthHandler.Handle)
	api := app.Group("/api")
	api.Post("/readings", readingHandler.Create)
	api.Get("/readings/:id", readingHandler.Get)
	api.Post("/readings/:id/reprocess", readingHandler.Reprocess)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("❌ Server failed to start: %v", err)
		}
	}()
	log.Printf("🌐 Server listening on port %s", cfg.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down...")
	w.Stop()
	scheduler.Stop()
	if err := app.Shutdown(); err != nil {
		log.Printf("⚠️ Server shutdown error: %v", err)
	}
	log.Println("✅ Server stopped")
}
