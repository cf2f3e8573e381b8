package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/itops/helpdesk/internal/api/dto"
	"github.com/itops/helpdesk/internal/domain"
	"github.com/itops/helpdesk/internal/repository"
	"github.com/itops/helpdesk/internal/service"
	apperrors "github.com/itops/helpdesk/pkg/util"
)

// SpecialistsHandler exposes the specialist directory.
type SpecialistsHandler struct {
	service *service.SpecialistService
}

// NewSpecialistsHandler constructs handler.
func NewSpecialistsHandler(specialistService *service.SpecialistService) *SpecialistsHandler {
	return &SpecialistsHandler{service: specialistService}
}

// List GET /specialists.
func (h *SpecialistsHandler) List(c *fiber.Ctx) error {
	filter := repository.SpecialistFilter{
		Limit:  queryInt(c, "limit", 50),
		Offset: queryInt(c, "offset", 0),
	}
	if raw := c.Query("specialization"); raw != "" {
		cat := domain.Category(raw)
		filter.Specialization = &cat
	}
	if raw := c.Query("availability"); raw != "" {
		avail := domain.Availability(raw)
		filter.Availability = &avail
	}
	specs, err := h.service.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromSpecialists(specs)})
}

// Get GET /specialists/:id.
func (h *SpecialistsHandler) Get(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	spec, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromSpecialist(spec)})
}

// UpdateAvailability PATCH /specialists/:id.
func (h *SpecialistsHandler) UpdateAvailability(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req dto.UpdateAvailabilityRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	spec, err := h.service.SetAvailability(c.UserContext(), id, domain.Availability(req.Availability))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromSpecialist(spec)})
}
