package events

import (
	"time"

	"github.com/itops/helpdesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketBound         EventType = "ticket_bound"
	EventTicketUnbound       EventType = "ticket_unbound"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventWorkloadChanged     EventType = "workload_changed"
	EventTicketMessageAdded  EventType = "ticket_message_added"
)

// ActorType distinguishes who caused an event.
type ActorType string

const (
	ActorTypeEmployee ActorType = "employee"
	// ActorTypeSystem marks mutations made by the assignment engine
	// itself (inline auto-assign and the reassignment sweep).
	ActorTypeSystem ActorType = "system"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type       ActorType `json:"type"`
	EmployeeID *int64    `json:"employee_id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  int64       `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	RequesterID int64                 `json:"requester_id"`
	Category    domain.Category       `json:"category"`
	Priority    domain.TicketPriority `json:"priority"`
	Title       string                `json:"title"`
}

// TicketBoundPayload payload.
type TicketBoundPayload struct {
	SpecialistID int64 `json:"specialist_id"`
	// Reassigned is true when the binding came from the sweep rather
	// than the initial inline assignment.
	Reassigned bool `json:"reassigned"`
}

// TicketUnboundPayload payload.
type TicketUnboundPayload struct {
	SpecialistID int64 `json:"specialist_id"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus   domain.TicketStatus `json:"old_status"`
	NewStatus   domain.TicketStatus `json:"new_status"`
	RequesterID int64               `json:"requester_id"`
	Comment     string              `json:"comment,omitempty"`
}

// WorkloadChangedPayload payload.
type WorkloadChangedPayload struct {
	SpecialistID int64 `json:"specialist_id"`
	Delta        int   `json:"delta"`
}

// TicketMessageAddedPayload payload.
type TicketMessageAddedPayload struct {
	MessageID   int64  `json:"message_id"`
	SenderID    int64  `json:"sender_id"`
	ReceiverID  *int64 `json:"receiver_id,omitempty"`
	BodyPreview string `json:"body_preview"`
}
