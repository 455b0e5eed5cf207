package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sandesh-khatiwada/Sahara-sub000/internal/config"
	"github.com/sandesh-khatiwada/Sahara-sub000/internal/database"
	"github.com/sandesh-khatiwada/Sahara-sub000/internal/repository"
	"github.com/sandesh-khatiwada/Sahara-sub000/internal/routes"
	"github.com/sandesh-khatiwada/Sahara-sub000/internal/services"
)

func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("Invalid BOOKING_TIMEZONE: %v", err)
	}

	// 2. Connect to Database
	if cfg.DBUrl == "" {
		log.Fatal("DB_URL is required")
	}
	if err := database.ConnectDB(cfg.DBUrl); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.CloseDB()

	redisClient := database.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	// 3. Start the lifecycle sweeper
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper := services.NewSweeper(repository.NewSessionRepository(database.DB), cfg.SweepInterval)
	go sweeper.Run(ctx)

	// 4. Setup Fiber
	app := fiber.New()

	app.Use(cors.New())
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})
	routes.RegisterRoutes(app, cfg, database.DB, redisClient, loc)

	// 5. Start Server
	go func() {
		<-ctx.Done()
		log.Println("Shutting down server")
		_ = app.Shutdown()
	}()

	log.Printf("Server starting on port %s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
