// Package web provides the HTTP handlers of the flowchart editor API.
package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/dukex/flowdeck/pkg/analyzer"
	"github.com/dukex/flowdeck/pkg/graph"
	"github.com/dukex/flowdeck/pkg/persistence"
	"github.com/dukex/flowdeck/pkg/services"
)

type APIHandlers struct {
	flowcharts *services.Flowchart
	sessions   *services.Manager
	analyzer   analyzer.Analyzer
	validator  *validator.Validate
}

func NewAPIHandlers(
	flowcharts *services.Flowchart,
	sessions *services.Manager,
	pythonAnalyzer analyzer.Analyzer,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		flowcharts: flowcharts,
		sessions:   sessions,
		analyzer:   pythonAnalyzer,
		validator:  validator,
	}
}

// Register mounts every API route on the app.
func (h *APIHandlers) Register(app *fiber.App) {
	api := app.Group("/api")

	f := api.Group("/flowcharts")
	f.Get("/", h.ListFlowcharts)
	f.Post("/", h.CreateFlowchart)
	f.Delete("/:name", h.DeleteFlowchart)
	f.Post("/:name/rename", h.RenameFlowchart)
	f.Get("/:name/history", h.ListExecutions)
	f.Delete("/:name/history", h.ClearHistory)
	f.Get("/:name/backups", h.ListBackups)
	f.Post("/:name/backups/prune", h.PruneBackups)
	f.Post("/:name/backups/:id/restore", h.RestoreBackup)
	f.Delete("/:name/backups/:id", h.DeleteBackup)

	api.Get("/flowchart/:name", h.GetFlowchart)
	api.Post("/flowchart/:name/save", h.SaveFlowchart)

	api.Post("/analyze", h.AnalyzeFunction)

	api.Post("/executions", h.SaveExecution)
	api.Get("/executions/:id", h.GetExecution)
	api.Delete("/executions/:id", h.DeleteExecution)
	api.Post("/executions/:id/restore", h.RestoreExecution)
	api.Delete("/history", h.ClearAllHistory)

	api.Get("/health", h.HealthCheck)
}

func (h *APIHandlers) ListFlowcharts(c fiber.Ctx) error {
	infos, err := h.flowcharts.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"flowcharts": infos})
}

func (h *APIHandlers) CreateFlowchart(c fiber.Ctx) error {
	var req CreateFlowchartRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	doc, err := h.flowcharts.Create(c.Context(), req.Name)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(FlowchartResponse{Name: req.Name, Document: doc})
}

func (h *APIHandlers) DeleteFlowchart(c fiber.Ctx) error {
	name := c.Params("name")
	if name == "" {
		return badRequest(c, "Flowchart name is required")
	}

	h.sessions.Discard(c.Context(), name)

	if err := h.flowcharts.Delete(c.Context(), name); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) RenameFlowchart(c fiber.Ctx) error {
	name := c.Params("name")
	if name == "" {
		return badRequest(c, "Flowchart name is required")
	}

	var req RenameFlowchartRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.flowcharts.Rename(c.Context(), name, req.Name); err != nil {
		return handleServiceError(c, err)
	}

	h.sessions.Adopt(name, req.Name)

	return c.JSON(fiber.Map{"name": req.Name})
}

func (h *APIHandlers) GetFlowchart(c fiber.Ctx) error {
	name := c.Params("name")
	if name == "" {
		return badRequest(c, "Flowchart name is required")
	}

	session, err := h.sessions.Session(c.Context(), name)
	if err != nil {
		return handleServiceError(c, err)
	}

	session.Store.Wait()

	return c.JSON(FlowchartResponse{Name: name, Document: session.Store.Export()})
}

func (h *APIHandlers) SaveFlowchart(c fiber.Ctx) error {
	name := c.Params("name")
	if name == "" {
		return badRequest(c, "Flowchart name is required")
	}

	var req SaveFlowchartRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	session, err := h.sessions.Session(c.Context(), name)
	if err != nil {
		return handleServiceError(c, err)
	}

	if err := session.Store.Import(c.Context(), req.Document, graph.ImportOptions{}); err != nil {
		return badRequest(c, err.Error())
	}

	session.Store.Wait()

	if err := session.Gateway.Save(c.Context(), false, req.Force); err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"status": "saved", "nodes": len(session.Store.Nodes())})
}

func (h *APIHandlers) AnalyzeFunction(c fiber.Ctx) error {
	var req AnalyzeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	analysis, err := h.analyzer.AnalyzeFunction(c.Context(), req.PythonFile)
	if err != nil {
		return badRequest(c, err.Error())
	}

	return c.JSON(analysis)
}

func (h *APIHandlers) SaveExecution(c fiber.Ctx) error {
	var req SaveExecutionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	session, err := h.sessions.Session(c.Context(), req.Flowchart)
	if err != nil {
		return handleServiceError(c, err)
	}

	record := &persistence.ExecutionRecord{
		ID:              uuid.New().String(),
		Flowchart:       req.Flowchart,
		StartedAt:       req.StartedAt,
		FinishedAt:      req.FinishedAt,
		Status:          req.Status,
		Results:         req.Results,
		PersistedValues: req.PersistedValues,
		VariableState:   req.VariableState,
		Snapshot:        req.Snapshot,
	}

	if record.StartedAt.IsZero() {
		record.StartedAt = time.Now().UTC()
	}

	if record.FinishedAt.IsZero() {
		record.FinishedAt = time.Now().UTC()
	}

	if err := session.Gateway.RecordRun(c.Context(), record); err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": record.ID})
}

func (h *APIHandlers) ListExecutions(c fiber.Ctx) error {
	name := c.Params("name")
	if name == "" {
		return badRequest(c, "Flowchart name is required")
	}

	records, err := h.flowcharts.Executions(c.Context(), name)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"executions": records})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	record, err := h.flowcharts.Execution(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(record)
}

func (h *APIHandlers) DeleteExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	if err := h.flowcharts.DeleteExecution(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ClearHistory(c fiber.Ctx) error {
	name := c.Params("name")
	if name == "" {
		return badRequest(c, "Flowchart name is required")
	}

	removed, err := h.flowcharts.ClearHistory(c.Context(), name)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"removed": removed})
}

func (h *APIHandlers) ClearAllHistory(c fiber.Ctx) error {
	removed, err := h.flowcharts.ClearAllHistory(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"removed": removed})
}

// RestoreExecution reloads the graph snapshot of a stored run and seeds the
// session's resume variables from its variable state.
func (h *APIHandlers) RestoreExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	record, err := h.flowcharts.Execution(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	session, err := h.sessions.Session(c.Context(), record.Flowchart)
	if err != nil {
		return handleServiceError(c, err)
	}

	restored, err := session.Gateway.RestoreExecution(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	session.Run.SetRestoredVariables(restored.VariableState)

	return c.JSON(RestoreExecutionResponse{Record: restored})
}

func (h *APIHandlers) ListBackups(c fiber.Ctx) error {
	name := c.Params("name")
	if name == "" {
		return badRequest(c, "Flowchart name is required")
	}

	backups, err := h.flowcharts.Backups(c.Context(), name)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"backups": backups})
}

func (h *APIHandlers) RestoreBackup(c fiber.Ctx) error {
	name := c.Params("name")
	id := c.Params("id")

	if name == "" || id == "" {
		return badRequest(c, "Flowchart name and backup ID are required")
	}

	session, err := h.sessions.Session(c.Context(), name)
	if err != nil {
		return handleServiceError(c, err)
	}

	if err := session.Gateway.RestoreBackup(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(FlowchartResponse{Name: name, Document: session.Store.Export()})
}

func (h *APIHandlers) DeleteBackup(c fiber.Ctx) error {
	name := c.Params("name")
	id := c.Params("id")

	if name == "" || id == "" {
		return badRequest(c, "Flowchart name and backup ID are required")
	}

	if err := h.flowcharts.DeleteBackup(c.Context(), name, id); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) PruneBackups(c fiber.Ctx) error {
	name := c.Params("name")
	if name == "" {
		return badRequest(c, "Flowchart name is required")
	}

	var req PruneBackupsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.flowcharts.PruneBackups(c.Context(), name, req.Keep); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.flowcharts.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Flowdeck API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Flowdeck API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
