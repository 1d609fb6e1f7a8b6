package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionPhase defines the lifecycle phase of a market session.
type SessionPhase string

const (
	PhaseSetup         SessionPhase = "SETUP"
	PhaseNominating    SessionPhase = "NOMINATING"
	PhaseReadyCheck    SessionPhase = "READY_CHECK"
	PhaseBidding       SessionPhase = "BIDDING"
	PhaseAckPending    SessionPhase = "ACK_PENDING"
	PhaseRoleComplete  SessionPhase = "ROLE_COMPLETE"
	PhaseSessionClosed SessionPhase = "SESSION_CLOSED"
)

// Role is one of the four player position categories that segment both the
// turn order and roster slot limits.
type Role string

const (
	RoleGoalkeeper Role = "P"
	RoleDefender   Role = "D"
	RoleMidfielder Role = "C"
	RoleForward    Role = "A"
)

// DefaultRoleSequence is the order roles are auctioned in unless the league
// configured otherwise during setup.
func DefaultRoleSequence() []Role {
	return []Role{RoleGoalkeeper, RoleDefender, RoleMidfielder, RoleForward}
}

// ValidRole reports whether r is one of the four position categories.
func ValidRole(r Role) bool {
	switch r {
	case RoleGoalkeeper, RoleDefender, RoleMidfielder, RoleForward:
		return true
	}
	return false
}

// Session represents one First Market auction session for a league.
type Session struct {
	ID             uuid.UUID    `json:"id"`
	LeagueID       uuid.UUID    `json:"league_id"`
	TurnOrder      []uuid.UUID  `json:"turn_order"`
	TurnIndex      int          `json:"turn_index"`
	CurrentRole    Role         `json:"current_role"`
	RoleSequence   []Role       `json:"role_sequence"`
	Phase          SessionPhase `json:"phase"`
	AuctionSeconds int          `json:"auction_seconds"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// CurrentTurnMember returns the member occupying the current turn slot.
func (s *Session) CurrentTurnMember() (uuid.UUID, bool) {
	if len(s.TurnOrder) == 0 || s.TurnIndex < 0 || s.TurnIndex >= len(s.TurnOrder) {
		return uuid.Nil, false
	}
	return s.TurnOrder[s.TurnIndex], true
}

// NextRole returns the role following the session's current role in its
// sequence, or false when the current role is the last one.
func (s *Session) NextRole() (Role, bool) {
	for i, r := range s.RoleSequence {
		if r == s.CurrentRole && i+1 < len(s.RoleSequence) {
			return s.RoleSequence[i+1], true
		}
	}
	return "", false
}
