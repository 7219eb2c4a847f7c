package sse

import "time"

// Event types written on the "event:" line.
const (
	// EventTypeConnected is sent once when a client subscribes.
	EventTypeConnected = "connected"

	// EventTypeJob carries a JobEvent.
	EventTypeJob = "job"
)

// Event is one frame queued for a client.
type Event struct {
	Type string
	Data []byte
}

// ConnectedEvent is the payload of the first frame on a stream.
type ConnectedEvent struct {
	ClientID string `json:"client_id"`
	Filter   string `json:"filter"`
}

// JobEvent reports a scheduler job state change.
type JobEvent struct {
	ID   string    `json:"id"`
	From string    `json:"from"`
	To   string    `json:"to"`
	At   time.Time `json:"at"`
}
