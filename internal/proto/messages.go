package proto

import "time"

// Event is the envelope published to external subscribers.
type Event struct {
	Name    string    `json:"name"`
	Payload string    `json:"payload"`
	Source  string    `json:"source,omitempty"`
	At      time.Time `json:"at"`
}

// Status describes the current connection slot.
type Status struct {
	Connected   bool      `json:"connected"`
	ServerID    string    `json:"server_id,omitempty"`
	SessionID   string    `json:"session_id,omitempty"`
	Endpoint    string    `json:"endpoint,omitempty"`
	ConnectedAt time.Time `json:"connected_at,omitempty"`
	Relayed     int64     `json:"relayed"`
	RelayActive bool      `json:"relay_active"`
}

// Result is the reply to a connect/disconnect command. Errors are plain strings.
type Result struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}
