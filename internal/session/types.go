package session

import (
	"github.com/google/uuid"

	"github.com/pietro1412/fantacontratti/internal/models"
)

// CreateSessionRequest carries everything needed to open a session in SETUP.
type CreateSessionRequest struct {
	ID             uuid.UUID
	LeagueID       uuid.UUID
	RoleSequence   []models.Role
	AuctionSeconds int
}

// AddMemberRequest enrolls a league member into a session.
type AddMemberRequest struct {
	SessionID uuid.UUID
	MemberID  uuid.UUID
	Admin     bool
	Budget    int64
	SlotLimit map[models.Role]int
}

// TurnAdvance is the result of moving the turn cursor.
type TurnAdvance struct {
	TurnIndex int
	MemberID  uuid.UUID
	Skipped   int
	// AllFull is set when every member's current-role slot is full, meaning
	// the role must auto-advance instead.
	AllFull bool
}
