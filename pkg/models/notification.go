package models

import "github.com/segmentio/encoding/json"

// Broadcast channel message types. The channel is a thin envelope
// protocol; payloads are typed per message.
const (
	MessageTypeHello        = "hello"
	MessageTypeJoin         = "join"
	MessageTypeLeave        = "leave"
	MessageTypeAck          = "ack"
	MessageTypeStateChanged = "state_changed"
	MessageTypeJobCompleted = "job_completed"
)

// State-changed action tags.
const (
	ActionGamesUpdated = "games_updated"
	ActionGamesDeleted = "games_deleted"
	ActionGameUpdated  = "game_updated"
)

// Envelope is the top-level broadcast frame.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ScopeChange is the payload for join and leave messages.
type ScopeChange struct {
	Platform string `json:"platform"`
}

// StateChanged notifies that shared catalog state changed for a platform.
// The payload is advisory; consumers re-fetch from the authoritative
// source rather than applying Paths speculatively.
type StateChanged struct {
	Platform string   `json:"platform"`
	Action   string   `json:"action"`
	Paths    []string `json:"paths,omitempty"`
}

// JobCompleted notifies that a job left the running state.
type JobCompleted struct {
	JobType  string `json:"job_type"`
	Success  bool   `json:"success"`
	Stopped  bool   `json:"stopped"`
	Platform string `json:"platform"`
}
