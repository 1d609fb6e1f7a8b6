// Package events holds the payload types shared between the market core, the
// outbox, and the gateway.
package events

import (
	"time"
)

// Event type names as persisted in the outbox and published on the bus.
const (
	TypeSessionStarted      = "SessionStarted"
	TypeNominationProposed  = "NominationProposed"
	TypeNominationCancelled = "NominationCancelled"
	TypeMemberReady         = "MemberReady"
	TypeNominationConfirmed = "NominationConfirmed"
	TypeBidPlaced           = "BidPlaced"
	TypeAuctionClosed       = "AuctionClosed"
	TypeAuctionUnsold       = "AuctionUnsold"
	TypeAuctionAcknowledged = "AuctionAcknowledged"
	TypeTurnAdvanced        = "TurnAdvanced"
	TypeRoleAdvanced        = "RoleAdvanced"
	TypeSessionClosed       = "SessionClosed"
)

// SessionStartedPayload is emitted when a session leaves SETUP.
type SessionStartedPayload struct {
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	TurnCount int       `json:"turn_count"`
	StartedAt time.Time `json:"started_at"`
}

// NominationProposedPayload is emitted when a nomination is accepted and the
// ready check begins.
type NominationProposedPayload struct {
	SessionID   string    `json:"session_id"`
	PlayerID    string    `json:"player_id"`
	NominatorID string    `json:"nominator_id"`
	BasePrice   int64     `json:"base_price"`
	ProposedAt  time.Time `json:"proposed_at"`
}

// NominationCancelledPayload is emitted when a pending nomination is torn
// down before confirmation; the player stays available.
type NominationCancelledPayload struct {
	SessionID   string    `json:"session_id"`
	PlayerID    string    `json:"player_id"`
	CancelledBy string    `json:"cancelled_by"`
	CancelledAt time.Time `json:"cancelled_at"`
}

// MemberReadyPayload is emitted each time a member reaches the ready set.
type MemberReadyPayload struct {
	SessionID    string    `json:"session_id"`
	MemberID     string    `json:"member_id"`
	PendingCount int       `json:"pending_count"`
	Forced       bool      `json:"forced"`
	ReadyAt      time.Time `json:"ready_at"`
}

// NominationConfirmedPayload is emitted when the ready check completes and
// the auction opens.
type NominationConfirmedPayload struct {
	SessionID string    `json:"session_id"`
	AuctionID string    `json:"auction_id"`
	PlayerID  string    `json:"player_id"`
	BasePrice int64     `json:"base_price"`
	Deadline  time.Time `json:"deadline"`
}

// BidPlacedPayload is emitted on every accepted bid.
type BidPlacedPayload struct {
	SessionID string    `json:"session_id"`
	AuctionID string    `json:"auction_id"`
	BidderID  string    `json:"bidder_id"`
	Amount    int64     `json:"amount"`
	PlacedAt  time.Time `json:"placed_at"`
}

// AuctionClosedPayload is emitted when a won auction closes.
type AuctionClosedPayload struct {
	SessionID string    `json:"session_id"`
	AuctionID string    `json:"auction_id"`
	PlayerID  string    `json:"player_id"`
	WinnerID  string    `json:"winner_id"`
	Amount    int64     `json:"amount"`
	ClosedAt  time.Time `json:"closed_at"`
}

// AuctionUnsoldPayload is emitted when an auction expires without bids.
type AuctionUnsoldPayload struct {
	SessionID string    `json:"session_id"`
	AuctionID string    `json:"auction_id"`
	PlayerID  string    `json:"player_id"`
	ClosedAt  time.Time `json:"closed_at"`
}

// AuctionAcknowledgedPayload is emitted per member acknowledgment.
type AuctionAcknowledgedPayload struct {
	SessionID      string    `json:"session_id"`
	AuctionID      string    `json:"auction_id"`
	MemberID       string    `json:"member_id"`
	Remaining      int       `json:"remaining"`
	Forced         bool      `json:"forced"`
	AcknowledgedAt time.Time `json:"acknowledged_at"`
}

// TurnAdvancedPayload is emitted whenever the turn cursor moves.
type TurnAdvancedPayload struct {
	SessionID   string `json:"session_id"`
	TurnIndex   int    `json:"turn_index"`
	MemberID    string `json:"member_id"`
	SkippedFull int    `json:"skipped_full,omitempty"`
}

// RoleAdvancedPayload is emitted when the session moves to the next role.
type RoleAdvancedPayload struct {
	SessionID string `json:"session_id"`
	Role      string `json:"role"`
}

// SessionClosedPayload is emitted once when the session terminates.
type SessionClosedPayload struct {
	SessionID string    `json:"session_id"`
	ClosedAt  time.Time `json:"closed_at"`
	Reason    string    `json:"reason"`
}
