package dto

import (
	"time"

	"github.com/itops/helpdesk/internal/domain"
)

// CreateTicketRequest is the intake payload.
type CreateTicketRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Priority    string `json:"priority"`
}

// TicketResponse is the wire shape of a ticket.
type TicketResponse struct {
	ID             int64      `json:"id"`
	RequesterID    int64      `json:"requester_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Category       string     `json:"category"`
	Priority       string     `json:"priority"`
	Status         string     `json:"status"`
	AssignedTo     *int64     `json:"assigned_to,omitempty"`
	RejectedBy     *int64     `json:"rejected_by,omitempty"`
	RejectedReason *string    `json:"rejected_reason,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// FromTicket maps the domain aggregate to its response shape.
func FromTicket(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:             t.ID,
		RequesterID:    t.RequesterID,
		Title:          t.Title,
		Description:    t.Description,
		Category:       string(t.Category),
		Priority:       string(t.Priority),
		Status:         string(t.Status),
		AssignedTo:     t.AssignedTo,
		RejectedBy:     t.RejectedBy,
		RejectedReason: t.RejectedReason,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

// FromTickets maps a slice of tickets.
func FromTickets(tickets []domain.Ticket) []TicketResponse {
	result := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		result = append(result, FromTicket(&tickets[i]))
	}
	return result
}

// RejectTicketRequest carries the rejection reason.
type RejectTicketRequest struct {
	Reason string `json:"reason"`
}

// CreateMessageRequest is the chat payload.
type CreateMessageRequest struct {
	Body string `json:"body"`
}

// MessageResponse is the wire shape of a chat message.
type MessageResponse struct {
	ID       int64     `json:"id"`
	TicketID int64     `json:"ticket_id"`
	SenderID int64     `json:"sender_id"`
	Body     string    `json:"body"`
	SentAt   time.Time `json:"sent_at"`
}

// FromMessage maps a chat message.
func FromMessage(m *domain.Message) MessageResponse {
	return MessageResponse{
		ID:       m.ID,
		TicketID: m.TicketID,
		SenderID: m.SenderID,
		Body:     m.Body,
		SentAt:   m.SentAt,
	}
}

// FromMessages maps a slice of messages.
func FromMessages(msgs []domain.Message) []MessageResponse {
	result := make([]MessageResponse, 0, len(msgs))
	for i := range msgs {
		result = append(result, FromMessage(&msgs[i]))
	}
	return result
}
