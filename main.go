package main

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"

	"financeadvisor/advisor"
	"financeadvisor/backfill"
	"financeadvisor/config"
	"financeadvisor/database"
	"financeadvisor/handlers"
	"financeadvisor/middleware"
	"financeadvisor/routes"
	"financeadvisor/store"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("Error loading .env file, using environment variables")
	}

	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	// Initialize database
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := database.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("❌ Failed to ensure schema: %v", err)
	}
	log.Println("✅ Database ready")

	// Wire stores, pipeline, and the advisor service
	salesStore := store.NewPostgresSalesStore(pool)
	jobStore := store.NewPostgresJobStore(pool)
	orderSource := backfill.NewPostgresOrderSource(pool)

	pipeline := backfill.NewPipeline(salesStore, jobStore, orderSource, backfill.Options{
		MaxFetchRetries:  cfg.MaxFetchRetries,
		RetryBaseDelay:   cfg.RetryBaseDelay,
		DefaultChunkSize: cfg.DefaultChunkSize,
	})

	service := advisor.NewService(salesStore, advisor.Policy{
		AnomalyWindow:     cfg.AnomalyWindow,
		AnomalyThreshold:  cfg.AnomalyThreshold,
		ForecastLookback:  cfg.ForecastLookback,
		ForecastSeasonLen: cfg.ForecastSeasonLen,
		DefaultConfidence: cfg.DefaultConfidence,
		QueryTimeout:      cfg.QueryTimeout,
	})

	app := fiber.New()
	app.Use(cors.New())
	app.Use(middleware.RequestTimeout(30 * time.Second))

	routes.SetupRoutes(app, routes.Handlers{
		Advisor:   handlers.NewAdvisorHandler(service),
		Backfill:  handlers.NewBackfillHandler(pipeline, jobStore),
		Assistant: handlers.NewAssistantHandler(service, cfg.GeminiAPIKey),
	})

	log.Printf("🚀 Finance advisor listening on %s", cfg.ListenAddr)
	log.Fatal(app.Listen(cfg.ListenAddr))
}
