// Package gateway is the client surface: HTTP commands, the pull-style state
// read, and the websocket push channel fed from the event bus.
package gateway

import (
	"encoding/json"
	"time"
)

// SessionEvent is the frame pushed to websocket clients. Data carries the
// event-specific payload exactly as the market core emitted it.
type SessionEvent struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}
