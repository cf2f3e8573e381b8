package domain

import "time"

// Availability enumerates whether a specialist may receive new tickets.
type Availability string

const (
	AvailabilityAvailable   Availability = "available"
	AvailabilityUnavailable Availability = "unavailable"
)

// Specialist models an IT staff member eligible to receive tickets.
// Workload counts currently-bound non-terminal tickets and is the
// bounded resource the assignment engine contends over; it never drops
// below zero and auto-assignment never pushes it past MaxLoad.
type Specialist struct {
	ID             int64
	Name           string
	Specialization Category
	Availability   Availability
	Workload       int
	MaxLoad        int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Available reports whether the specialist accepts new assignments.
func (s *Specialist) Available() bool {
	return s.Availability == AvailabilityAvailable
}
