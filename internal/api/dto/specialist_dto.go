package dto

import (
	"time"

	"github.com/itops/helpdesk/internal/domain"
)

// SpecialistResponse is the wire shape of a specialist.
type SpecialistResponse struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Specialization string    `json:"specialization"`
	Availability   string    `json:"availability"`
	Workload       int       `json:"workload"`
	MaxLoad        int       `json:"max_load"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// FromSpecialist maps a specialist.
func FromSpecialist(s *domain.Specialist) SpecialistResponse {
	return SpecialistResponse{
		ID:             s.ID,
		Name:           s.Name,
		Specialization: string(s.Specialization),
		Availability:   string(s.Availability),
		Workload:       s.Workload,
		MaxLoad:        s.MaxLoad,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

// FromSpecialists maps a slice of specialists.
func FromSpecialists(specs []domain.Specialist) []SpecialistResponse {
	result := make([]SpecialistResponse, 0, len(specs))
	for i := range specs {
		result = append(result, FromSpecialist(&specs[i]))
	}
	return result
}

// UpdateAvailabilityRequest toggles a specialist's availability.
type UpdateAvailabilityRequest struct {
	Availability string `json:"availability"`
}

// NotificationResponse is the wire shape of an in-app notification.
type NotificationResponse struct {
	ID        int64     `json:"id"`
	TicketID  int64     `json:"ticket_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// FromNotifications maps a slice of notifications.
func FromNotifications(notifs []domain.Notification) []NotificationResponse {
	result := make([]NotificationResponse, 0, len(notifs))
	for _, n := range notifs {
		result = append(result, NotificationResponse{
			ID:        n.ID,
			TicketID:  n.TicketID,
			Message:   n.Message,
			CreatedAt: n.CreatedAt,
		})
	}
	return result
}
