package web

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/specforge/specforge/pkg/persistence"
	"github.com/specforge/specforge/pkg/services"
)

// APIHandlers bundles the HTTP handlers over the service layer.
type APIHandlers struct {
	specs       *services.Specs
	tasks       *services.Tasks
	workflows   *services.Workflows
	backups     *services.Backups
	persistence persistence.Persistence
	validator   *validator.Validate
}

func NewAPIHandlers(
	specs *services.Specs,
	tasks *services.Tasks,
	workflows *services.Workflows,
	backups *services.Backups,
	p persistence.Persistence,
	validate *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		specs:       specs,
		tasks:       tasks,
		workflows:   workflows,
		backups:     backups,
		persistence: p,
		validator:   validate,
	}
}

func (h *APIHandlers) GetSpecs(c fiber.Ctx) error {
	specs, err := h.specs.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"specs": specs, "count": len(specs)})
}

func (h *APIHandlers) CreateSpec(c fiber.Ctx) error {
	var req services.CreateSpecRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON body: "+err.Error())
	}

	spec, err := h.specs.Create(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(spec)
}

func (h *APIHandlers) GetSpec(c fiber.Ctx) error {
	spec, err := h.specs.Get(c.Context(), c.Params("name"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(spec)
}

func (h *APIHandlers) GetSpecStatus(c fiber.Ctx) error {
	status, err := h.specs.Status(c.Context(), c.Params("name"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(status)
}

// PromoteSpec advances the spec: with an explicit stage in the body it moves
// there, without one it advances along backlog -> scope -> completed.
func (h *APIHandlers) PromoteSpec(c fiber.Ctx) error {
	var req PromoteSpecRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON body: "+err.Error())
		}
	}

	name := c.Params("name")

	if req.Stage != "" {
		spec, err := h.specs.Transition(c.Context(), name, services.TransitionSpecRequest{
			Stage:  req.Stage,
			Reason: req.Reason,
		})
		if err != nil {
			return handleServiceError(c, err)
		}

		return c.JSON(spec)
	}

	spec, err := h.specs.Promote(c.Context(), name, req.Reason)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(spec)
}

// SetTasks replaces the spec's task document. The body is either raw
// markdown or a JSON object carrying it under "document".
func (h *APIHandlers) SetTasks(c fiber.Ctx) error {
	document := string(c.Body())

	if c.Get(fiber.HeaderContentType) == fiber.MIMEApplicationJSON {
		var req SetTasksRequest
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON body: "+err.Error())
		}

		document = req.Document
	}

	tasks, err := h.tasks.SetDocument(c.Context(), c.Params("name"), document)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"spec_name": c.Params("name"), "tasks": tasks})
}

func (h *APIHandlers) GetTasks(c fiber.Ctx) error {
	if c.Query("format") == "markdown" {
		document, err := h.tasks.Document(c.Context(), c.Params("name"))
		if err != nil {
			return handleServiceError(c, err)
		}

		c.Set(fiber.HeaderContentType, "text/markdown; charset=utf-8")

		return c.SendString(document)
	}

	mode := c.Query("mode", string(services.ModeAll))

	resp, err := h.tasks.Query(c.Context(), services.TaskQueryRequest{
		SpecName: c.Params("name"),
		Mode:     services.TaskQueryMode(mode),
		TaskID:   c.Query("task_id"),
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(resp)
}

func (h *APIHandlers) CompleteTask(c fiber.Ctx) error {
	name := c.Params("name")
	taskID := c.Params("id")

	result, err := h.tasks.Complete(c.Context(), name, taskID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(newCompleteTaskResponse(name, taskID, result))
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.workflows.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"workflows": workflows, "count": len(workflows)})
}

func (h *APIHandlers) StartWorkflow(c fiber.Ctx) error {
	var req services.StartWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON body: "+err.Error())
	}

	state, err := h.workflows.Start(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(state)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	status, err := h.workflows.StatusView(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(status)
}

func (h *APIHandlers) CompletePhase(c fiber.Ctx) error {
	var req services.CompletePhaseRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON body: "+err.Error())
	}

	state, err := h.workflows.CompletePhase(c.Context(), c.Params("id"), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(state)
}

func (h *APIHandlers) PauseWorkflow(c fiber.Ctx) error {
	state, err := h.workflows.Pause(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(state)
}

func (h *APIHandlers) ContinueWorkflow(c fiber.Ctx) error {
	state, err := h.workflows.Continue(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(state)
}

func (h *APIHandlers) ResetWorkflow(c fiber.Ctx) error {
	state, err := h.workflows.Reset(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(state)
}

func (h *APIHandlers) FailWorkflow(c fiber.Ctx) error {
	var req FailWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON body: "+err.Error())
	}

	state, err := h.workflows.Fail(c.Context(), c.Params("id"), services.FailWorkflowRequest{Reason: req.Reason})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(state)
}

func (h *APIHandlers) GetBackups(c fiber.Ctx) error {
	snapshots, err := h.backups.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"snapshots": snapshots, "count": len(snapshots)})
}

func (h *APIHandlers) CreateBackup(c fiber.Ctx) error {
	var req services.CreateBackupRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON body: "+err.Error())
	}

	snapshot, err := h.backups.Create(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(snapshot)
}

func (h *APIHandlers) RestoreBackup(c fiber.Ctx) error {
	snapshotID := c.Params("id")

	preRestore, err := h.backups.Restore(c.Context(), snapshotID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(RestoreResponse{
		RestoredSnapshotID:   snapshotID,
		PreRestoreSnapshotID: preRestore.ID,
	})
}

func (h *APIHandlers) PruneBackups(c fiber.Ctx) error {
	pruned, err := h.backups.Prune(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(PruneResponse{Pruned: pruned})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	message, healthy := services.HealthCheck(c.Context(), h.persistence)
	if !healthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": message})
	}

	return c.JSON(fiber.Map{"status": message})
}
