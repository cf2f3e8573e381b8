package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew        TicketStatus = "New"
	TicketStatusInProgress TicketStatus = "In Progress"
	TicketStatusResolved   TicketStatus = "Resolved"
	TicketStatusRejected   TicketStatus = "Rejected"
)

// Terminal reports whether the status ends the ticket lifecycle.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusResolved || s == TicketStatusRejected
}

// TicketPriority enumerates urgency levels chosen by the requester.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "Low"
	TicketPriorityMedium TicketPriority = "Medium"
	TicketPriorityHigh   TicketPriority = "High"
)

// Ticket is the aggregate for help-desk requests. IDs are assigned
// monotonically by the store; CreatedAt is the aging clock for the
// reassignment sweep and is never refreshed after creation.
type Ticket struct {
	ID             int64
	RequesterID    int64
	Title          string
	Description    string
	Category       Category
	Priority       TicketPriority
	Status         TicketStatus
	AssignedTo     *int64
	RejectedBy     *int64
	RejectedReason *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
