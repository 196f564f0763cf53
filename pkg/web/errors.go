package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/dukex/flowdeck/pkg/persistence"
	"github.com/dukex/flowdeck/pkg/services"
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

func conflict(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType("conflict").
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// destructiveConflict is the structured refusal for a save the guard flagged.
// The client renders it as the keep-or-overwrite decision dialog.
func destructiveConflict(c fiber.Ctx, guardErr *persistence.DestructiveChangeError) error {
	return c.Status(fiber.StatusConflict).JSON(fiber.Map{
		"status": "error",
		"code":   "destructive_change",
		"payload": fiber.Map{
			"existing_nodes": guardErr.ExistingNodes,
			"incoming_nodes": guardErr.IncomingNodes,
			"threshold":      guardErr.Threshold,
		},
	})
}

// handleServiceError provides typed error handling for service layer errors.
func handleServiceError(c fiber.Ctx, err error) error {
	var guardErr *persistence.DestructiveChangeError

	switch {
	case errors.As(err, &guardErr):
		return destructiveConflict(c, guardErr)

	case services.IsValidationError(err):
		return badRequest(c, err.Error())

	case persistence.IsFlowchartNotFound(err):
		problem := problems.NewStatusProblem(404).
			WithInstance(c.Path()).
			WithType("flowchart_not_found").
			WithDetail("flowchart not found")

		return c.Status(fiber.StatusNotFound).JSON(problem)

	case persistence.IsFlowchartExists(err):
		return conflict(c, "flowchart already exists")

	case persistence.IsExecutionNotFound(err):
		problem := problems.NewStatusProblem(404).
			WithInstance(c.Path()).
			WithType("execution_not_found").
			WithDetail("execution not found")

		return c.Status(fiber.StatusNotFound).JSON(problem)

	case persistence.IsBackupNotFound(err):
		problem := problems.NewStatusProblem(404).
			WithInstance(c.Path()).
			WithType("backup_not_found").
			WithDetail("backup not found")

		return c.Status(fiber.StatusNotFound).JSON(problem)

	default:
		return internalError(c, err)
	}
}
