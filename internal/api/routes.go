package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/remodelai/estimate-client/internal/api/handlers"
	"github.com/remodelai/estimate-client/internal/session"
)

// SetupRoutes wires the UI-facing seams. The presentation layer needs
// nothing beyond these: send a message (with optional image attachment),
// submit project details, export the current estimate, reset, and read back
// the transcript.
func SetupRoutes(app *fiber.App, orch *session.Orchestrator, monitor *session.HealthMonitor) {
	v1 := app.Group("/api/v1")

	v1.Post("/messages", handlers.SendMessage(orch))
	v1.Post("/project-details", handlers.SubmitProjectDetails(orch))
	v1.Post("/report", handlers.ViewReport(orch))
	v1.Post("/export", handlers.ExportEstimate(orch))
	v1.Post("/session/reset", handlers.ResetSession(orch))
	v1.Get("/session", handlers.GetSession(orch))

	app.Get("/healthz", handlers.Health(monitor))
}
