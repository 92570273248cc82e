package main

import (
	"context"
	"log"
	"time"

	"registration-service/internal/config"
	"registration-service/internal/handlers"
	"registration-service/internal/metrics"
	"registration-service/internal/models"
	"registration-service/internal/repository"
	"registration-service/internal/services"
	"registration-service/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/minio/minio-go/v7"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

func main() {
	cfg := InitConfig()
	db := ConnectDatabase(cfg)
	MigrateDatabase(db)
	minioClient := InitMinIOClient(cfg)
	collector := metrics.NewCollector()

	// The refset cache is optional: without Redis every advisory check goes
	// straight to Postgres.
	var refset *storage.RefsetCache
	if cfg.RedisHost != "" {
		redisClient, err := storage.NewRedisClient(cfg.RedisHost, cfg.RedisPort)
		if err != nil {
			log.Printf("Redis unavailable, advisory checks will not be cached: %v", err)
		} else {
			refset = storage.NewRefsetCache(redisClient, 30*time.Second)
		}
	}

	registrationRepo := repository.NewRegistrationRepository(db)
	statusRepo := repository.NewWebsiteStatusRepository(db)
	proofStore := storage.NewMinioProofStore(minioClient, cfg)

	sessionManager := services.NewSessionManager(registrationRepo, refset, collector, cfg)
	sessionManager.StartJanitor(context.Background())

	registrationService := services.NewRegistrationService(registrationRepo, proofStore, refset, collector, services.GateConfig{
		FallbackTimeout: cfg.FallbackTimeout,
		FallbackMaxAge:  cfg.FallbackMaxAge,
	})
	adminService := services.NewAdminService(registrationRepo, proofStore, refset)

	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024, // proof images
	})

	// Register Prometheus metrics endpoint
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	registrationHandler := handlers.NewRegistrationHandler(registrationService, sessionManager, statusRepo)
	sessionHandler := handlers.NewSessionHandler(sessionManager)
	adminHandler := handlers.NewAdminHandler(adminService)
	statusHandler := handlers.NewWebsiteStatusHandler(statusRepo)

	api := app.Group("/api")
	api.Post("/registrations", registrationHandler.SubmitRegistration)
	api.Get("/website-status", statusHandler.GetStatus)

	api.Post("/sessions", sessionHandler.CreateSession)
	api.Delete("/sessions/:id", sessionHandler.CloseSession)
	api.Post("/sessions/:id/location", sessionHandler.ReportLocation)
	api.Get("/sessions/:id/advisory", sessionHandler.GetAdvisory)
	api.Get("/sessions/:id/permission", sessionHandler.GetPermission)
	api.Post("/sessions/:id/permission/retry", sessionHandler.RetryPermission)

	admin := api.Group("/admin")
	admin.Get("/registrations", adminHandler.ListRegistrations)
	admin.Get("/registrations/:id", adminHandler.GetRegistration)
	admin.Patch("/registrations/:id/verify", adminHandler.VerifyRegistration)
	admin.Delete("/registrations/:id", adminHandler.DeleteRegistration)
	admin.Get("/stats", adminHandler.GetStats)
	admin.Put("/website-status", statusHandler.UpdateStatus)

	api.Get("/swagger/*", swagger.HandlerDefault)

	// Add Health check endpoint
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	routes := app.GetRoutes()
	log.Println("Registered routes:")
	for _, r := range routes {
		log.Printf("  %s %s\n", r.Method, r.Path)
	}

	// Start the Fiber server
	port := cfg.AppPort
	if port == "" {
		port = "8080"
		log.Printf("Defaulting to port %s", port)
	}
	log.Printf("Server listening on port %s", port)
	log.Fatal(app.Listen(":" + port))
}

func InitConfig() *config.Config {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	return cfg
}

func ConnectDatabase(cfg *config.Config) *gorm.DB {
	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	return db
}

func MigrateDatabase(db *gorm.DB) {
	err := db.AutoMigrate(&models.Registration{}, &models.WebsiteStatus{})
	if err != nil {
		log.Fatalf("Database migration failed: %v", err)
	}
}

func InitMinIOClient(cfg *config.Config) *minio.Client {
	minioClient, err := storage.NewMinioClient(cfg)
	if err != nil {
		log.Fatalf("MinIO client initialization failed: %v", err)
	}
	return minioClient
}
