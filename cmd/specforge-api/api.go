// Package main provides the SpecForge API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/specforge/specforge/pkg/backup"
	"github.com/specforge/specforge/pkg/eventbus"
	"github.com/specforge/specforge/pkg/lifecycle"
	"github.com/specforge/specforge/pkg/persistence"
	"github.com/specforge/specforge/pkg/services"
	"github.com/specforge/specforge/pkg/statestore"
	"github.com/specforge/specforge/pkg/web"
	"github.com/specforge/specforge/pkg/workflow"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	backups     *backup.Manager
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	p persistence.Persistence,
	eventBus eventbus.EventBus,
	backups *backup.Manager,
) *API {
	return &API{
		logger:      logger,
		persistence: p,
		eventBus:    eventBus,
		backups:     backups,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	lifecycleManager := lifecycle.NewManager(a.persistence, a.eventBus, a.logger,
		lifecycle.WithRestoreGate(a.backups.Gate()))
	workflowManager := workflow.NewManager(a.persistence, a.backups, a.eventBus, a.logger)
	store := statestore.New(a.persistence, a.logger, statestore.WithRestoreGate(a.backups.Gate()))

	handlers := web.NewAPIHandlers(
		services.NewSpecs(lifecycleManager, a.validate),
		services.NewTasks(a.persistence, store, a.eventBus, a.logger, a.validate),
		services.NewWorkflows(workflowManager, a.validate),
		services.NewBackups(a.backups, a.validate),
		a.persistence,
		a.validate,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("SpecForge API")
	})

	handlers.Register(app)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
