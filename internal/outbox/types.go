// Package outbox moves market events from the command transaction to the
// event bus. Events are written in the same transaction as the state change
// they describe and published by a polling worker, so a crash between commit
// and publish loses nothing.
package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is one outbox row.
type Event struct {
	ID        uuid.UUID
	SessionID uuid.UUID
	EventType string
	Payload   json.RawMessage
	CreatedAt time.Time
	SentAt    *time.Time
}

// Envelope is the wire format published to the bus. The gateway consumer
// unmarshals exactly this shape.
type Envelope struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	SessionID string          `json:"sessionId"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}
