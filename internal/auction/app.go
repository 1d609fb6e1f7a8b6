// Package auction implements the bid ledger and the timer authority. The
// deadline is a stored timestamp with a derived expired predicate; nothing
// in this package ever fires a callback at expiry.
package auction

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/pietro1412/fantacontratti/internal/apperrors"
	"github.com/pietro1412/fantacontratti/internal/models"
)

// AuctionRepository defines what the app layer needs from storage.
type AuctionRepository interface {
	Create(ctx context.Context, a *models.Auction) error
	Get(ctx context.Context, id uuid.UUID) (*models.Auction, error)
	GetOpenBySession(ctx context.Context, sessionID uuid.UUID) (*models.Auction, error)
	CompareAndSetPrice(ctx context.Context, auctionID uuid.UUID, expectedPrice, newPrice int64, leaderID uuid.UUID) (bool, error)
	InsertBid(ctx context.Context, b *models.Bid) error
	ListBids(ctx context.Context, auctionID uuid.UUID) ([]models.Bid, error)
	Close(ctx context.Context, auctionID uuid.UUID, status models.AuctionStatus, closedAt time.Time) error
	NextDeadline(ctx context.Context) (*NextDeadline, error)
	ListDueSessions(ctx context.Context, now time.Time, limit int32) ([]uuid.UUID, error)
}

// App holds the bidding rules.
type App struct {
	repo  AuctionRepository
	clock clockwork.Clock
}

func NewApp(repo AuctionRepository, clock clockwork.Clock) *App {
	return &App{repo: repo, clock: clock}
}

// Open turns a confirmed nomination into a live auction: deadline fixed at
// now + duration, price seeded at the base, no leader.
func (a *App) Open(ctx context.Context, nom *models.PendingNomination, duration time.Duration) (*models.Auction, error) {
	now := a.clock.Now()
	auc := &models.Auction{
		ID:           uuid.New(),
		SessionID:    nom.SessionID,
		PlayerID:     nom.PlayerID,
		BasePrice:    nom.BasePrice,
		CurrentPrice: nom.BasePrice,
		Deadline:     now.Add(duration),
		Status:       models.AuctionStatusOpen,
		CreatedAt:    now,
	}
	if err := a.repo.Create(ctx, auc); err != nil {
		return nil, fmt.Errorf("failed to open auction: %w", err)
	}

	log.Info().
		Str("session_id", auc.SessionID.String()).
		Str("auction_id", auc.ID.String()).
		Str("player_id", auc.PlayerID.String()).
		Int64("base_price", auc.BasePrice).
		Time("deadline", auc.Deadline).
		Msg("auction opened")
	return auc, nil
}

// Expired reports whether the auction's deadline has passed by this app's
// clock. Callers re-check it on every touch; there is no instant callback.
func (a *App) Expired(auc *models.Auction) bool {
	return auc.Expired(a.clock.Now())
}

// PlaceBid validates and records a bid, raising current price and leader
// atomically. The bid must beat the current price, fit the bidder's budget,
// land before the deadline, and not come from the current leader.
func (a *App) PlaceBid(ctx context.Context, auc *models.Auction, bidder *models.MemberStatus, amount int64) (*models.Bid, error) {
	if auc.Status != models.AuctionStatusOpen {
		return nil, apperrors.StateConflict("auction is %s", auc.Status)
	}
	if a.Expired(auc) {
		return nil, apperrors.StateConflict("auction deadline has passed")
	}
	if amount <= 0 {
		return nil, apperrors.Validation("bid amount must be greater than 0")
	}
	if amount <= auc.CurrentPrice {
		return nil, apperrors.StateConflict("bid %d does not beat current price %d", amount, auc.CurrentPrice)
	}
	if amount > bidder.Budget {
		return nil, apperrors.Budget("bid %d exceeds budget %d", amount, bidder.Budget)
	}
	if auc.LeaderID != nil && *auc.LeaderID == bidder.MemberID {
		return nil, apperrors.StateConflict("member %s already leads this auction", bidder.MemberID)
	}

	ok, err := a.repo.CompareAndSetPrice(ctx, auc.ID, auc.CurrentPrice, amount, bidder.MemberID)
	if err != nil {
		return nil, fmt.Errorf("failed to place bid: %w", err)
	}
	if !ok {
		return nil, apperrors.StateConflict("price moved, refetch and retry")
	}

	bid := &models.Bid{
		ID:        uuid.New(),
		AuctionID: auc.ID,
		BidderID:  bidder.MemberID,
		Amount:    amount,
		PlacedAt:  a.clock.Now(),
	}
	if err := a.repo.InsertBid(ctx, bid); err != nil {
		return nil, fmt.Errorf("failed to record bid: %w", err)
	}

	auc.CurrentPrice = amount
	auc.LeaderID = &bid.BidderID

	log.Info().
		Str("auction_id", auc.ID.String()).
		Str("bidder_id", bid.BidderID.String()).
		Int64("amount", amount).
		Msg("bid placed")
	return bid, nil
}

// CloseNow marks the auction closed and returns the outcome branch: a winner
// at the final price, or unsold when the ledger is empty. The caller settles
// budgets and drives the phase transition.
func (a *App) CloseNow(ctx context.Context, auc *models.Auction) (Outcome, error) {
	if auc.Status != models.AuctionStatusOpen {
		return Outcome{}, apperrors.StateConflict("auction is already %s", auc.Status)
	}

	now := a.clock.Now()
	out := Outcome{
		AuctionID: auc.ID,
		PlayerID:  auc.PlayerID,
		ClosedAt:  now,
	}

	status := models.AuctionStatusNoBids
	if auc.HasLeader() {
		status = models.AuctionStatusClosed
		out.WinnerID = auc.LeaderID
		out.Amount = auc.CurrentPrice
	}

	if err := a.repo.Close(ctx, auc.ID, status, now); err != nil {
		return Outcome{}, fmt.Errorf("failed to close auction: %w", err)
	}
	auc.Status = status
	auc.ClosedAt = &now

	evt := log.Info().
		Str("auction_id", auc.ID.String()).
		Str("player_id", auc.PlayerID.String()).
		Str("status", string(status))
	if out.Won() {
		evt = evt.Str("winner_id", out.WinnerID.String()).Int64("amount", out.Amount)
	}
	evt.Msg("auction closed")

	return out, nil
}
