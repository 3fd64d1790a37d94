package web

import (
	"github.com/gofiber/fiber/v3"
)

// Register mounts every engine route on the app.
func (h *APIHandlers) Register(app *fiber.App) {
	s := app.Group("/specs")
	s.Get("/", h.GetSpecs)
	s.Post("/", h.CreateSpec)
	s.Get("/:name", h.GetSpec)
	s.Get("/:name/status", h.GetSpecStatus)
	s.Post("/:name/promote", h.PromoteSpec)
	s.Put("/:name/tasks", h.SetTasks)
	s.Get("/:name/tasks", h.GetTasks)
	s.Post("/:name/tasks/:id/complete", h.CompleteTask)

	w := app.Group("/workflows")
	w.Get("/", h.GetWorkflows)
	w.Post("/", h.StartWorkflow)
	w.Get("/:id", h.GetWorkflow)
	w.Post("/:id/phases/complete", h.CompletePhase)
	w.Post("/:id/pause", h.PauseWorkflow)
	w.Post("/:id/continue", h.ContinueWorkflow)
	w.Post("/:id/reset", h.ResetWorkflow)
	w.Post("/:id/fail", h.FailWorkflow)

	b := app.Group("/backups")
	b.Get("/", h.GetBackups)
	b.Post("/", h.CreateBackup)
	b.Post("/prune", h.PruneBackups)
	b.Post("/:id/restore", h.RestoreBackup)

	app.Get("/health", h.HealthCheck)
}
