// Package roster manages budgets, role slots and the movement history that
// records every completed sale.
package roster

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/pietro1412/fantacontratti/internal/apperrors"
	"github.com/pietro1412/fantacontratti/internal/models"
)

// RosterRepository defines what the app layer needs from storage.
type RosterRepository interface {
	GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error)
	MarkDrafted(ctx context.Context, playerID, memberID uuid.UUID) error
	DebitAndFillSlot(ctx context.Context, sessionID, memberID uuid.UUID, role models.Role, amount int64) error
	InsertMovement(ctx context.Context, m *models.Movement) error
	SetMovementNote(ctx context.Context, auctionID, memberID uuid.UUID, note string) error
	ListMovements(ctx context.Context, sessionID uuid.UUID) ([]models.Movement, error)
}

// App holds the settlement rules.
type App struct {
	repo RosterRepository
}

func NewApp(repo RosterRepository) *App {
	return &App{repo: repo}
}

// CheckNomination validates that a player can be put up for auction in the
// given role: the player must exist, still be available, and carry the role
// being auctioned.
func (a *App) CheckNomination(ctx context.Context, playerID uuid.UUID, role models.Role) (*models.Player, error) {
	player, err := a.repo.GetPlayer(ctx, playerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("player %s not found", playerID)
		}
		return nil, fmt.Errorf("failed to check nomination: %w", err)
	}
	if !player.Available() {
		return nil, apperrors.StateConflict("player %s is already drafted", playerID)
	}
	if player.Role != role {
		return nil, apperrors.Validation("player %s plays %s, not %s", playerID, player.Role, role)
	}
	return player, nil
}

// Settle applies a won auction: the winner's budget is debited, the role slot
// is filled, the player leaves the available pool and a movement row records
// the sale. The winner must still afford the price and have a free slot; both
// were checked at bid time, the re-checks here guard against drift.
func (a *App) Settle(ctx context.Context, winner *models.MemberStatus, playerID, auctionID uuid.UUID, role models.Role, amount int64, now time.Time) (*models.Movement, error) {
	if amount > winner.Budget {
		return nil, apperrors.Budget("winning amount %d exceeds budget %d", amount, winner.Budget)
	}
	if winner.RoleFull(role) {
		return nil, apperrors.Slot("member %s has no free %s slot", winner.MemberID, role)
	}

	if err := a.repo.DebitAndFillSlot(ctx, winner.SessionID, winner.MemberID, role, amount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.StateConflict("budget for member %s changed during settlement", winner.MemberID)
		}
		return nil, fmt.Errorf("failed to settle budget: %w", err)
	}
	if err := a.repo.MarkDrafted(ctx, playerID, winner.MemberID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.StateConflict("player %s was drafted concurrently", playerID)
		}
		return nil, fmt.Errorf("failed to settle player: %w", err)
	}

	mov := &models.Movement{
		ID:        uuid.New(),
		SessionID: winner.SessionID,
		AuctionID: auctionID,
		MemberID:  winner.MemberID,
		PlayerID:  playerID,
		Amount:    amount,
		CreatedAt: now,
	}
	if err := a.repo.InsertMovement(ctx, mov); err != nil {
		return nil, fmt.Errorf("failed to record movement: %w", err)
	}

	winner.Budget -= amount
	winner.SlotFill[role]++

	log.Info().
		Str("session_id", winner.SessionID.String()).
		Str("member_id", winner.MemberID.String()).
		Str("player_id", playerID.String()).
		Int64("amount", amount).
		Msg("auction settled")
	return mov, nil
}

// AttachNote stores the winner's acknowledgment note on the sale's movement.
func (a *App) AttachNote(ctx context.Context, auctionID, winnerID uuid.UUID, note string) error {
	if err := a.repo.SetMovementNote(ctx, auctionID, winnerID, note); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("no movement for auction %s and member %s", auctionID, winnerID)
		}
		return fmt.Errorf("failed to attach note: %w", err)
	}
	return nil
}

// Movements returns the session's sale history in chronological order.
func (a *App) Movements(ctx context.Context, sessionID uuid.UUID) ([]models.Movement, error) {
	moves, err := a.repo.ListMovements(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load movements: %w", err)
	}
	return moves, nil
}
