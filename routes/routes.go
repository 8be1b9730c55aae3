package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	controller "mailloom/controllers"
	"mailloom/events"
	"mailloom/middleware"
	"mailloom/repository"
	"mailloom/storage"
	"mailloom/worker"
)

// Deps carries the shared infrastructure handed down from main
type Deps struct {
	DB             *gorm.DB
	Store          *repository.Store
	Files          storage.Store
	Broadcaster    *events.Broadcaster
	ImportWorker   *worker.ImportWorker
	CampaignWorker *worker.CampaignWorker
}

func SetupRoutes(app *fiber.App, deps Deps) {
	// Initialize controllers with their respective loggers
	listController := controller.NewListController(deps.DB, deps.Store, log.New(os.Stdout, "LIST: ", log.LstdFlags))
	subscriberController := controller.NewSubscriberController(deps.DB, log.New(os.Stdout, "SUBSCRIBER: ", log.LstdFlags))
	campaignController := controller.NewCampaignController(deps.DB, deps.Store, deps.CampaignWorker, log.New(os.Stdout, "CAMPAIGN: ", log.LstdFlags))
	importController := controller.NewImportController(deps.DB, deps.Files, deps.ImportWorker, log.New(os.Stdout, "IMPORT: ", log.LstdFlags))
	trackingLog := logrus.New()
	trackingLog.SetFormatter(&logrus.JSONFormatter{})
	trackingController := controller.NewTrackingController(deps.DB, deps.Store, trackingLog)
	eventsController := controller.NewEventsController(deps.Broadcaster, log.New(os.Stdout, "EVENTS: ", log.LstdFlags))

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// API group with versioning and request logging
	api := app.Group("/api/v1", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// List routes
	list := api.Group("/lists")
	list.Post("/", listController.CreateList)
	list.Get("/", listController.GetLists)
	list.Get("/:id", listController.GetList)
	list.Put("/:id", listController.UpdateList)
	list.Delete("/:id", listController.DeleteList)

	// Subscriber routes nested under their list
	list.Get("/:listId/subscribers", subscriberController.GetSubscribers)
	list.Post("/:listId/subscribers", subscriberController.AddSubscriber)
	list.Put("/:listId/subscribers/:id", subscriberController.UpdateSubscriber)
	list.Delete("/:listId/subscribers/:id", subscriberController.DeleteSubscriber)

	// Campaign routes
	campaign := api.Group("/campaigns")
	campaign.Post("/", campaignController.CreateCampaign)
	campaign.Get("/", campaignController.GetCampaigns)
	campaign.Get("/:id", campaignController.GetCampaign)
	campaign.Put("/:id", campaignController.UpdateCampaign)
	campaign.Delete("/:id", campaignController.DeleteCampaign)
	campaign.Post("/:id/send", campaignController.SendCampaign)
	campaign.Post("/:id/schedule", campaignController.ScheduleCampaign)
	campaign.Post("/:id/unschedule", campaignController.UnscheduleCampaign)
	campaign.Get("/:id/stats", campaignController.GetCampaignStats)

	// Import routes
	imports := api.Group("/imports")
	imports.Post("/", importController.CreateImport)
	imports.Get("/", importController.GetImports)
	imports.Get("/:id", importController.GetImport)

	// WebSocket route for the live event feed
	app.Get("/api/v1/events/ws", websocket.New(func(c *websocket.Conn) {
		eventsController.HandleEventsWS(c)
	}))

	// Public tracking endpoints, rate limited per client
	track := app.Group("/t", middleware.TrackingRateLimiter())
	track.Get("/open/:campaign/:token", trackingController.TrackOpen)
	track.Get("/click/:campaign/:token", trackingController.TrackClick)
	track.Get("/unsubscribe/:campaign/:token", trackingController.Unsubscribe)

	// Public signup form addressed by list shortcode
	app.Post("/s/:shortcode/subscribe", subscriberController.PublicSubscribe)

	// Setup 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})

	log.Println("Routes initialized successfully")
}
