package web

import (
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
	"github.com/specforge/specforge/pkg/backup"
	"github.com/specforge/specforge/pkg/persistence"
	"github.com/specforge/specforge/pkg/services"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

// handleServiceError maps service errors onto RFC 7807 responses.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case services.IsValidationError(err):
		return badRequest(c, err.Error())

	case services.IsConflictError(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case persistence.IsSpecNotFound(err):
		return notFound(c, "spec not found")

	case persistence.IsTaskNotFound(err):
		return notFound(c, "task not found")

	case persistence.IsWorkflowNotFound(err):
		return notFound(c, "workflow not found")

	case persistence.IsSnapshotNotFound(err):
		return notFound(c, "snapshot not found")

	case backup.IsStateCorruption(err):
		problem := problems.NewStatusProblem(500).
			WithInstance(c.Path()).
			WithType("state_corruption").
			WithDetail(err.Error())

		return c.Status(fiber.StatusInternalServerError).JSON(problem)

	default:
		// Unexpected errors are not detailed to the client.
		problem := problems.NewStatusProblem(500).
			WithInstance(c.Path()).
			WithType("internal_error").
			WithError(err)

		return c.Status(fiber.StatusInternalServerError).JSON(problem)
	}
}
