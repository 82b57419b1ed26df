package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/remodelai/estimate-client/internal/gateway"
	"github.com/remodelai/estimate-client/internal/mapper"
	"github.com/remodelai/estimate-client/internal/session"
)

// SendMessage advances the conversation by one user turn. A request with an
// image attachment runs the analyze-then-chat image flow instead of a plain
// chat turn. Callers serialize these requests; the orchestrator assumes one
// outstanding user action at a time.
func SendMessage(orch *session.Orchestrator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			Message string `json:"message"`
			// ImageData is a base64-encoded attachment, optionally with a
			// data-URL prefix, exactly as the file picker produced it.
			ImageData string `json:"imageData,omitempty"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}

		var (
			result *session.TurnResult
			err    error
		)
		if req.ImageData != "" {
			result, err = orch.SendImage(c.Context(), req.ImageData)
		} else {
			result, err = orch.SendMessage(c.Context(), req.Message)
		}
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(result)
	}
}

// SubmitProjectDetails submits the structured project form and returns the
// resulting estimate.
func SubmitProjectDetails(orch *session.Orchestrator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var details mapper.ProjectDetails
		if err := c.BodyParser(&details); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}

		result, err := orch.SubmitDetails(c.Context(), details)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(result)
	}
}

// ViewReport opens the detailed report view; scripted turns only, no
// backend call.
func ViewReport(orch *session.Orchestrator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		result, err := orch.ViewReport()
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(result)
	}
}

// ExportEstimate streams the PDF for the current backend-issued estimate.
// The body may carry an estimateId; when it does, the id must name the
// current estimate.
func ExportEstimate(orch *session.Orchestrator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			EstimateID string `json:"estimateId"`
		}
		// The body is optional; an absent or empty one exports the
		// current estimate.
		_ = c.BodyParser(&req)

		blob, err := orch.ExportEstimate(c.Context(), req.EstimateID)
		if err != nil {
			return errorResponse(c, err)
		}
		c.Set(fiber.HeaderContentType, "application/pdf")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="estimate.pdf"`)
		return c.Send(blob)
	}
}

// ResetSession starts a new estimate: everything is discarded and the
// greeting replayed.
func ResetSession(orch *session.Orchestrator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		orch.Reset()
		return c.JSON(fiber.Map{
			"phase": orch.Phase(),
			"turns": orch.Turns(),
		})
	}
}

// GetSession returns the transcript and current estimate state.
func GetSession(orch *session.Orchestrator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"sessionId": orch.SessionID(),
			"phase":     orch.Phase(),
			"turns":     orch.Turns(),
			"estimate":  orch.Estimate(),
		})
	}
}

// Health reports the last observed backend status.
func Health(monitor *session.HealthMonitor) fiber.Handler {
	return func(c *fiber.Ctx) error {
		health := monitor.Current()
		code := fiber.StatusOK
		if health.Status == "down" {
			code = fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(health)
	}
}

// errorResponse maps the core error taxonomy onto HTTP statuses for the UI.
func errorResponse(c *fiber.Ctx, err error) error {
	var (
		validationErr *gateway.ValidationError
		authErr       *gateway.AuthError
		rateErr       *gateway.RateLimitError
		remoteErr     *gateway.RemoteError
		malformedErr  *gateway.MalformedResponseError
		networkErr    *gateway.NetworkError
	)

	switch {
	case errors.As(err, &validationErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &authErr):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &rateErr):
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &remoteErr):
		return c.Status(remoteErr.Status).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &malformedErr), errors.As(err, &networkErr):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}
