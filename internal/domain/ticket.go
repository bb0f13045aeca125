package domain

import "time"

// TicketPriority enumerates ticket urgency, ordered LOW < MEDIUM < HIGH.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
)

// Valid reports whether p is one of the known priorities.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return true
	}
	return false
}

// Escalate returns the next priority up the scale. HIGH stays HIGH.
func (p TicketPriority) Escalate() TicketPriority {
	switch p {
	case TicketPriorityLow:
		return TicketPriorityMedium
	case TicketPriorityMedium:
		return TicketPriorityHigh
	}
	return p
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID             int64
	Title          string
	Description    string
	AssignedUser   *User
	Priority       TicketPriority
	CreatedAt      time.Time
	PriceDollars   float64
	AccountManager *User
}
