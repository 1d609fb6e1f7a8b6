package models

import (
	"time"

	"github.com/google/uuid"
)

// PendingNomination gates a nomination from becoming a live auction. The
// ready and pending sets always partition the active members minus the
// nominator, who instead carries a distinct confirmation flag.
type PendingNomination struct {
	SessionID          uuid.UUID   `json:"session_id"`
	PlayerID           uuid.UUID   `json:"player_id"`
	NominatorID        uuid.UUID   `json:"nominator_id"`
	BasePrice          int64       `json:"base_price"`
	ReadyMembers       []uuid.UUID `json:"ready_members"`
	PendingMembers     []uuid.UUID `json:"pending_members"`
	NominatorConfirmed bool        `json:"nominator_confirmed"`
	ForcedReady        bool        `json:"forced_ready"`
	CreatedAt          time.Time   `json:"created_at"`
}

// IsReady reports whether the member already reached the ready set.
func (n *PendingNomination) IsReady(member uuid.UUID) bool {
	return containsID(n.ReadyMembers, member)
}

// IsPending reports whether the member is still awaited.
func (n *PendingNomination) IsPending(member uuid.UUID) bool {
	return containsID(n.PendingMembers, member)
}

// AllReady reports whether every non-nominator member is ready or an admin
// has forced the check.
func (n *PendingNomination) AllReady() bool {
	return n.ForcedReady || len(n.PendingMembers) == 0
}

// PendingAcknowledgment gates the next nomination until every active member
// confirmed the previous sale. Only won auctions open this gate; unsold
// auctions return control to nomination directly.
type PendingAcknowledgment struct {
	SessionID    uuid.UUID   `json:"session_id"`
	AuctionID    uuid.UUID   `json:"auction_id"`
	WinnerID     *uuid.UUID  `json:"winner_id,omitempty"`
	Acknowledged []uuid.UUID `json:"acknowledged"`
	CreatedAt    time.Time   `json:"created_at"`
}

// HasAcknowledged reports whether the member already acknowledged.
func (a *PendingAcknowledgment) HasAcknowledged(member uuid.UUID) bool {
	return containsID(a.Acknowledged, member)
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
