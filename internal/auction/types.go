package auction

import (
	"time"

	"github.com/google/uuid"
)

// NextDeadline is the nearest deadline across all open auctions; the sweeper
// sleeps until it.
type NextDeadline struct {
	SessionID uuid.UUID `json:"session_id"`
	AuctionID uuid.UUID `json:"auction_id"`
	Deadline  time.Time `json:"deadline"`
}

// Outcome is the result of closing an auction: either a winner at the final
// price, or unsold when no bids were placed.
type Outcome struct {
	AuctionID uuid.UUID
	PlayerID  uuid.UUID
	WinnerID  *uuid.UUID
	Amount    int64
	ClosedAt  time.Time
}

// Won reports whether the auction produced a winner.
func (o Outcome) Won() bool { return o.WinnerID != nil }
