package db

import "time"

// StateTransition is one lifecycle change recorded for audit.
type StateTransition struct {
	ID        int64     `json:"id"`
	FromState string    `json:"from_state"`
	ToState   string    `json:"to_state"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// JournalEntry is one bus event captured in the journal. Payload is
// the event's payload serialized as JSON.
type JournalEntry struct {
	ID        int64     `json:"id"`
	EventType string    `json:"event_type"`
	Source    string    `json:"source"`
	Payload   string    `json:"payload"`
	EventTs   int64     `json:"event_ts"`
	CreatedAt time.Time `json:"created_at"`
}
