package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/itops/helpdesk/internal/api/dto"
	"github.com/itops/helpdesk/internal/domain"
	"github.com/itops/helpdesk/internal/service"
	apperrors "github.com/itops/helpdesk/pkg/util"
)

// StaffHandler manages specialist-facing ticket endpoints: the working
// queue, dashboard stats, and the manual transitions.
type StaffHandler struct {
	service *service.TicketService
}

// NewStaffHandler constructs handler.
func NewStaffHandler(ticketService *service.TicketService) *StaffHandler {
	return &StaffHandler{service: ticketService}
}

// Queue GET /staff/tickets.
func (h *StaffHandler) Queue(c *fiber.Ctx) error {
	specialistID, err := actingEmployee(c)
	if err != nil {
		return err
	}
	var statuses []domain.TicketStatus
	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			statuses = append(statuses, domain.TicketStatus(strings.TrimSpace(part)))
		}
	}
	tickets, err := h.service.ListQueueForSpecialist(c.UserContext(), specialistID, statuses,
		queryInt(c, "limit", 20), queryInt(c, "offset", 0))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTickets(tickets)})
}

// Stats GET /staff/stats.
func (h *StaffHandler) Stats(c *fiber.Ctx) error {
	specialistID, err := actingEmployee(c)
	if err != nil {
		return err
	}
	counts, err := h.service.StatsForSpecialist(c.UserContext(), specialistID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"new":         counts.New,
		"in_progress": counts.InProgress,
		"resolved":    counts.Resolved,
	}})
}

// Accept POST /tickets/:id/accept.
func (h *StaffHandler) Accept(c *fiber.Ctx) error {
	specialistID, err := actingEmployee(c)
	if err != nil {
		return err
	}
	ticketID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ticket, err := h.service.AcceptTicket(c.UserContext(), specialistID, ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}

// Resolve POST /tickets/:id/resolve.
func (h *StaffHandler) Resolve(c *fiber.Ctx) error {
	specialistID, err := actingEmployee(c)
	if err != nil {
		return err
	}
	ticketID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ticket, err := h.service.ResolveTicket(c.UserContext(), specialistID, ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}

// Reject POST /tickets/:id/reject.
func (h *StaffHandler) Reject(c *fiber.Ctx) error {
	specialistID, err := actingEmployee(c)
	if err != nil {
		return err
	}
	ticketID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req dto.RejectTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.RejectTicket(c.UserContext(), specialistID, ticketID, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}
