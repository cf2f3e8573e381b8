package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/itops/helpdesk/internal/api/dto"
	"github.com/itops/helpdesk/internal/domain"
	"github.com/itops/helpdesk/internal/service"
	apperrors "github.com/itops/helpdesk/pkg/util"
)

// TicketsHandler manages requester-facing ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	requesterID, err := actingEmployee(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Title == "" || req.Description == "" || req.Category == "" {
		return apperrors.NewValidationError("title, description, category required", nil)
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), requesterID, service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    domain.Category(req.Category),
		Priority:    domain.TicketPriority(req.Priority),
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	requesterID, err := actingEmployee(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.ListTicketsForRequester(c.UserContext(), requesterID,
		queryInt(c, "limit", 20), queryInt(c, "offset", 0))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTickets(tickets)})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	requesterID, err := actingEmployee(c)
	if err != nil {
		return err
	}
	ticketID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ticket, err := h.service.GetTicketForRequester(c.UserContext(), requesterID, ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}

// AddMessage POST /tickets/:id/messages.
func (h *TicketsHandler) AddMessage(c *fiber.Ctx) error {
	senderID, err := actingEmployee(c)
	if err != nil {
		return err
	}
	ticketID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req dto.CreateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	msg, err := h.service.AddMessage(c.UserContext(), senderID, ticketID, req.Body)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.FromMessage(msg)})
}

// ListMessages GET /tickets/:id/messages.
func (h *TicketsHandler) ListMessages(c *fiber.Ctx) error {
	if _, err := actingEmployee(c); err != nil {
		return err
	}
	ticketID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	msgs, err := h.service.ListMessages(c.UserContext(), ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromMessages(msgs)})
}
