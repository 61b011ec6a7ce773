package rest

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"argus/automation-engine/internal/engine"
	"argus/automation-engine/pkg/types"
)

// handleHealth reports liveness.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleQueueExecution accepts a workflow definition and queues it.
func (s *Server) handleQueueExecution(c *fiber.Ctx) error {
	var workflow types.Workflow
	if err := c.BodyParser(&workflow); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_body",
			Message: "request body must be a workflow definition: " + err.Error(),
		})
	}

	execution, err := s.engine.QueueExecution(&workflow)
	if err != nil {
		return s.engineError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(SuccessResponse{
		Success: true,
		Message: "execution queued",
		Data:    execution,
	})
}

// handleListExecutions returns all known executions.
func (s *Server) handleListExecutions(c *fiber.Ctx) error {
	return c.JSON(SuccessResponse{
		Success: true,
		Data:    s.engine.Executions(),
	})
}

// handleGetExecution returns one execution's status.
func (s *Server) handleGetExecution(c *fiber.Ctx) error {
	execution, err := s.engine.Status(c.Params("id"))
	if err != nil {
		return s.engineError(c, err)
	}
	return c.JSON(SuccessResponse{
		Success: true,
		Data:    execution,
	})
}

// handleCancelExecution cancels a queued or running execution.
func (s *Server) handleCancelExecution(c *fiber.Ctx) error {
	if err := s.engine.CancelExecution(c.Params("id")); err != nil {
		return s.engineError(c, err)
	}
	return c.JSON(SuccessResponse{
		Success: true,
		Message: "cancellation requested",
	})
}

// handlePauseExecution pauses a running execution at its next action
// boundary.
func (s *Server) handlePauseExecution(c *fiber.Ctx) error {
	if err := s.engine.Pause(c.Params("id")); err != nil {
		return s.engineError(c, err)
	}
	return c.JSON(SuccessResponse{
		Success: true,
		Message: "pause requested",
	})
}

// handleResumeExecution resumes a paused execution.
func (s *Server) handleResumeExecution(c *fiber.Ctx) error {
	if err := s.engine.Resume(c.Params("id")); err != nil {
		return s.engineError(c, err)
	}
	return c.JSON(SuccessResponse{
		Success: true,
		Message: "resume requested",
	})
}

// handleTriggerEmergencyStop halts all automation.
func (s *Server) handleTriggerEmergencyStop(c *fiber.Ctx) error {
	s.engine.TriggerEmergencyStop()
	return c.JSON(SuccessResponse{
		Success: true,
		Message: "emergency stop triggered",
	})
}

// handleResetEmergencyStop clears the emergency stop flag.
func (s *Server) handleResetEmergencyStop(c *fiber.Ctx) error {
	s.engine.ResetEmergencyStop()
	return c.JSON(SuccessResponse{
		Success: true,
		Message: "emergency stop reset",
	})
}

// handleStats returns the engine-wide status snapshot.
func (s *Server) handleStats(c *fiber.Ctx) error {
	return c.JSON(SuccessResponse{
		Success: true,
		Data:    s.engine.Stats(),
	})
}

// handleSuggestions returns improvement suggestions for a workflow.
func (s *Server) handleSuggestions(c *fiber.Ctx) error {
	workflowID := c.Params("id")
	return c.JSON(SuccessResponse{
		Success: true,
		Data: fiber.Map{
			"workflow_id": workflowID,
			"suggestions": s.engine.Feedback().SuggestImprovements(workflowID),
		},
	})
}

// handleWorkflowStats returns the accumulated feedback stats for a workflow.
func (s *Server) handleWorkflowStats(c *fiber.Ctx) error {
	return c.JSON(SuccessResponse{
		Success: true,
		Data:    s.engine.Feedback().WorkflowStats(c.Params("id")),
	})
}

// engineError maps engine error codes to HTTP status codes.
func (s *Server) engineError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	errTag := "internal_error"

	var execErr *engine.ExecutionError
	if errors.As(err, &execErr) {
		switch execErr.Code {
		case engine.ErrCodeNotFound:
			status = fiber.StatusNotFound
			errTag = "not_found"
		case engine.ErrCodeValidation:
			status = fiber.StatusBadRequest
			errTag = "validation_failed"
		case engine.ErrCodeQueue:
			status = fiber.StatusServiceUnavailable
			errTag = "queue_full"
		case engine.ErrCodeState:
			status = fiber.StatusConflict
			errTag = "invalid_state"
		}
	}

	return c.Status(status).JSON(ErrorResponse{
		Error:   errTag,
		Message: err.Error(),
	})
}
