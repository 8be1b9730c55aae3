package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"

	"mailloom/config"
	"mailloom/events"
	"mailloom/middleware"
	"mailloom/repository"
	"mailloom/routes"
	"mailloom/storage"
	"mailloom/utils"
	"mailloom/worker"
)

func main() {
	// Initialize logger
	logger := log.New(os.Stdout, "MAILLOOM: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Staging area for uploaded CSV files
	files, err := storage.NewLocalStore(config.AppConfig.UploadDir)
	if err != nil {
		logger.Fatalf("Failed to initialize upload storage: %v", err)
	}

	store := repository.NewStore(config.DB)
	broadcaster := events.NewBroadcaster()
	mailer := utils.NewSMTPMailer(
		config.AppConfig.SMTPHost,
		config.AppConfig.SMTPPort,
		config.AppConfig.SMTPUsername,
		config.AppConfig.SMTPPassword,
	)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: 12 * 1024 * 1024,
	})

	// Add CORS middleware
	app.Use(middleware.CORS())

	// Initialize and start background workers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	importWorker := worker.NewImportWorker(store, files, broadcaster,
		log.New(os.Stdout, "IMPORT: ", log.LstdFlags))
	go importWorker.Start(ctx)

	campaignWorker := worker.NewCampaignWorker(store, mailer, broadcaster,
		log.New(os.Stdout, "CAMPAIGN: ", log.LstdFlags),
		config.AppConfig.BaseURL,
		time.Duration(config.AppConfig.SendDelayMs)*time.Millisecond)
	go campaignWorker.Start(ctx)

	// Setup routes
	routes.SetupRoutes(app, routes.Deps{
		DB:             config.DB,
		Store:          store,
		Files:          files,
		Broadcaster:    broadcaster,
		ImportWorker:   importWorker,
		CampaignWorker: campaignWorker,
	})

	// Start server
	logger.Printf("Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
