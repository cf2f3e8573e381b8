package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/itops/helpdesk/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health        *handlers.HealthHandler
	Tickets       *handlers.TicketsHandler
	Staff         *handlers.StaffHandler
	Specialists   *handlers.SpecialistsHandler
	Notifications *handlers.NotificationsHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	tickets := app.Group("/tickets")
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/messages", cfg.Tickets.AddMessage)
	tickets.Get("/:id/messages", cfg.Tickets.ListMessages)
	tickets.Post("/:id/accept", cfg.Staff.Accept)
	tickets.Post("/:id/resolve", cfg.Staff.Resolve)
	tickets.Post("/:id/reject", cfg.Staff.Reject)

	staff := app.Group("/staff")
	staff.Get("/tickets", cfg.Staff.Queue)
	staff.Get("/stats", cfg.Staff.Stats)

	specialists := app.Group("/specialists")
	specialists.Get("", cfg.Specialists.List)
	specialists.Get("/:id", cfg.Specialists.Get)
	specialists.Patch("/:id", cfg.Specialists.UpdateAvailability)

	notifications := app.Group("/notifications")
	notifications.Get("", cfg.Notifications.ListUnread)
	notifications.Post("/:id/read", cfg.Notifications.MarkRead)
}
