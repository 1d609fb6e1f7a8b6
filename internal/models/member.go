package models

import (
	"time"

	"github.com/google/uuid"
)

// MemberStatus tracks one league member's standing inside a session: budget,
// per-role roster fill, and connectivity heartbeat.
type MemberStatus struct {
	SessionID     uuid.UUID    `json:"session_id"`
	MemberID      uuid.UUID    `json:"member_id"`
	Admin         bool         `json:"admin"`
	Active        bool         `json:"active"`
	Budget        int64        `json:"budget"`
	SlotFill      map[Role]int `json:"slot_fill"`
	SlotLimit     map[Role]int `json:"slot_limit"`
	LastHeartbeat *time.Time   `json:"last_heartbeat,omitempty"`
}

// RoleFull reports whether the member's roster slot for the given role is
// already at its limit.
func (m *MemberStatus) RoleFull(role Role) bool {
	limit, ok := m.SlotLimit[role]
	if !ok {
		return false
	}
	return m.SlotFill[role] >= limit
}

// Connected reports whether the member heartbeated within ttl of now.
func (m *MemberStatus) Connected(now time.Time, ttl time.Duration) bool {
	if m.LastHeartbeat == nil {
		return false
	}
	return now.Sub(*m.LastHeartbeat) <= ttl
}
