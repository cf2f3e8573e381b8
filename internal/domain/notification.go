package domain

import "time"

// Notification is an in-app alert addressed to one employee.
type Notification struct {
	ID         int64
	ReceiverID int64
	TicketID   int64
	Message    string
	Read       bool
	CreatedAt  time.Time
}
