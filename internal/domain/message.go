package domain

import "time"

// Message is a single chat entry on a ticket.
type Message struct {
	ID       int64
	TicketID int64
	SenderID int64
	Body     string
	SentAt   time.Time
}
