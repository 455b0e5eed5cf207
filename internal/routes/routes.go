package routes

import (
	"time"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sandesh-khatiwada/Sahara-sub000/internal/config"
	"github.com/sandesh-khatiwada/Sahara-sub000/internal/handlers"
	"github.com/sandesh-khatiwada/Sahara-sub000/internal/middleware"
	"github.com/sandesh-khatiwada/Sahara-sub000/internal/repository"
	"github.com/sandesh-khatiwada/Sahara-sub000/internal/services"
	sessionws "github.com/sandesh-khatiwada/Sahara-sub000/internal/websocket"
)

func RegisterRoutes(
	app *fiber.App,
	cfg *config.Config,
	db *pgxpool.Pool,
	redisClient *redis.Client,
	loc *time.Location,
) {
	userRepo := repository.NewUserRepository(db)
	profileRepo := repository.NewCounsellorProfileRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	sessionRepo := repository.NewSessionRepository(db)

	cache := services.NewSlotCache(redisClient)
	var notifier *services.EventPublisher
	if cfg.AmqpURL != "" {
		notifier = services.NewEventPublisher(cfg.AmqpURL)
	}

	availabilityService := services.NewAvailabilityService(db, availabilityRepo, sessionRepo, cache, loc)
	bookingService := services.NewBookingService(db, userRepo, availabilityRepo, loc)
	sessionService := services.NewSessionService(db, sessionRepo, notifier, cache, loc)
	paymentService := services.NewPaymentService(
		sessionRepo,
		profileRepo,
		cfg.PaymentSecretKey,
		cfg.PaymentProductCode,
		cfg.PaymentSuccessURL,
		cfg.PaymentFailureURL,
	)

	authHandler := handlers.NewAuthHandler(db, userRepo, cfg.JWTSecret)
	availabilityHandler := handlers.NewAvailabilityHandler(availabilityService, profileRepo)
	sessionHandler := handlers.NewSessionHandler(bookingService, sessionService)
	paymentHandler := handlers.NewPaymentHandler(paymentService)

	hub := sessionws.NewHub()
	go hub.Run()
	socketHandler := handlers.NewSessionSocketHandler(sessionService, hub, cfg.JWTSecret)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	payments := api.Group("/payments")
	payments.Get("/success", paymentHandler.SuccessCallback)
	payments.Get("/failure", paymentHandler.FailureCallback)

	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	counsellors := authProtected.Group("/counsellors")
	counsellors.Put("/availability", availabilityHandler.SetAvailability)
	counsellors.Put("/rate", availabilityHandler.UpdateRate)
	counsellors.Get("/:id/availability", availabilityHandler.GetTemplate)
	counsellors.Get("/:id/slots", availabilityHandler.FreeSlots)

	sessions := authProtected.Group("/sessions")
	sessions.Post("/book", sessionHandler.BookSession)
	sessions.Get("", sessionHandler.ListSessions)
	sessions.Get("/:id", sessionHandler.GetSession)
	sessions.Post("/:id/accept", sessionHandler.Accept)
	sessions.Post("/:id/reject", sessionHandler.Reject)
	sessions.Post("/:id/feedback", sessionHandler.AttachFeedback)
	sessions.Post("/:id/payment", paymentHandler.Initiate)

	api.Use("/ws/sessions/:id", socketHandler.WebSocketAuth)
	api.Get("/ws/sessions/:id", websocket.New(socketHandler.HandleWebSocket))
}
