package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketHighPriority EventType = "ticket_high_priority"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketHighPriorityPayload describes a ticket that needs administrator attention.
type TicketHighPriorityPayload struct {
	Title      string `json:"title"`
	AssignedTo string `json:"assigned_to"`
}
