package models

import (
	"time"

	"github.com/google/uuid"
)

// AuctionStatus defines the status of an auction.
type AuctionStatus string

const (
	AuctionStatusOpen   AuctionStatus = "OPEN"
	AuctionStatusClosed AuctionStatus = "CLOSED"
	AuctionStatusNoBids AuctionStatus = "NO_BIDS"
)

// Auction represents a live or completed auction for a nominated player.
// The deadline is fixed at creation and never extended by later bids.
type Auction struct {
	ID           uuid.UUID     `json:"id"`
	SessionID    uuid.UUID     `json:"session_id"`
	PlayerID     uuid.UUID     `json:"player_id"`
	BasePrice    int64         `json:"base_price"`
	CurrentPrice int64         `json:"current_price"`
	LeaderID     *uuid.UUID    `json:"leader_id,omitempty"`
	Deadline     time.Time     `json:"deadline"`
	Status       AuctionStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	ClosedAt     *time.Time    `json:"closed_at,omitempty"`
}

// Expired reports whether the auction deadline has passed. Expiry is only
// ever evaluated lazily against a caller-supplied now.
func (a *Auction) Expired(now time.Time) bool {
	return !now.Before(a.Deadline)
}

// HasLeader reports whether at least one bid was accepted.
func (a *Auction) HasLeader() bool {
	return a.LeaderID != nil
}

// Bid is an immutable record of one accepted bid.
type Bid struct {
	ID        uuid.UUID `json:"id"`
	AuctionID uuid.UUID `json:"auction_id"`
	BidderID  uuid.UUID `json:"bidder_id"`
	Amount    int64     `json:"amount"`
	PlacedAt  time.Time `json:"placed_at"`
	Cancelled bool      `json:"cancelled"`
}

// Movement is the persisted record of a player changing ownership and budget
// as the result of a completed auction. The winner's acknowledgment note, if
// any, is attached to it.
type Movement struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	AuctionID uuid.UUID `json:"auction_id"`
	MemberID  uuid.UUID `json:"member_id"`
	PlayerID  uuid.UUID `json:"player_id"`
	Amount    int64     `json:"amount"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
