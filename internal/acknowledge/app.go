// Package acknowledge implements the post-sale consensus gate: every active
// member must register the previous outcome before the next nomination.
package acknowledge

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pietro1412/fantacontratti/internal/apperrors"
	"github.com/pietro1412/fantacontratti/internal/models"
)

// AckRepository defines what the app layer needs from storage.
type AckRepository interface {
	Create(ctx context.Context, ack *models.PendingAcknowledgment) error
	Get(ctx context.Context, sessionID uuid.UUID) (*models.PendingAcknowledgment, error)
	UpdateAcknowledged(ctx context.Context, ack *models.PendingAcknowledgment) error
	Delete(ctx context.Context, sessionID uuid.UUID) error
}

// App holds the acknowledgment rules.
type App struct {
	repo AckRepository
}

func NewApp(repo AckRepository) *App {
	return &App{repo: repo}
}

// Start opens the acknowledgment gate for a closed, won auction.
func (a *App) Start(ctx context.Context, sessionID, auctionID uuid.UUID, winnerID *uuid.UUID, now time.Time) (*models.PendingAcknowledgment, error) {
	ack := &models.PendingAcknowledgment{
		SessionID:    sessionID,
		AuctionID:    auctionID,
		WinnerID:     winnerID,
		Acknowledged: []uuid.UUID{},
		CreatedAt:    now,
	}
	if err := a.repo.Create(ctx, ack); err != nil {
		return nil, fmt.Errorf("failed to start acknowledgment: %w", err)
	}
	return ack, nil
}

// Acknowledge registers one member's confirmation of the outcome. Repeated
// calls are no-ops. Only the winner may attach a note; the note itself is
// persisted onto the movement by the caller. Returns whether the call
// changed anything and whether the gate is now complete against the given
// active-member set.
func (a *App) Acknowledge(ctx context.Context, ack *models.PendingAcknowledgment, members []models.MemberStatus, memberID uuid.UUID, note string) (changed, complete bool, err error) {
	if note != "" && (ack.WinnerID == nil || *ack.WinnerID != memberID) {
		return false, false, apperrors.Authorization("only the winner may attach a note")
	}
	if !isActiveMember(members, memberID) {
		return false, false, apperrors.NotFound("member %s not active in session", memberID)
	}

	if !ack.HasAcknowledged(memberID) {
		ack.Acknowledged = append(ack.Acknowledged, memberID)
		if err := a.repo.UpdateAcknowledged(ctx, ack); err != nil {
			return false, false, fmt.Errorf("failed to acknowledge: %w", err)
		}
		changed = true
	}

	return changed, a.Complete(ack, members), nil
}

// ForceAll marks every active member acknowledged. Admin liveness override,
// idempotent: the acknowledgment protocol has no timeout of its own.
func (a *App) ForceAll(ctx context.Context, ack *models.PendingAcknowledgment, members []models.MemberStatus) (bool, error) {
	changed := false
	for i := range members {
		if !members[i].Active || ack.HasAcknowledged(members[i].MemberID) {
			continue
		}
		ack.Acknowledged = append(ack.Acknowledged, members[i].MemberID)
		changed = true
	}
	if changed {
		if err := a.repo.UpdateAcknowledged(ctx, ack); err != nil {
			return false, fmt.Errorf("failed to force acknowledgments: %w", err)
		}
		log.Warn().
			Str("session_id", ack.SessionID.String()).
			Str("auction_id", ack.AuctionID.String()).
			Msg("acknowledgments forced by admin")
	}
	return changed, nil
}

// Complete reports whether every active member has acknowledged.
func (a *App) Complete(ack *models.PendingAcknowledgment, members []models.MemberStatus) bool {
	for i := range members {
		if !members[i].Active {
			continue
		}
		if !ack.HasAcknowledged(members[i].MemberID) {
			return false
		}
	}
	return true
}

// Clear removes the pending acknowledgment once the gate is complete.
func (a *App) Clear(ctx context.Context, sessionID uuid.UUID) error {
	if err := a.repo.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to clear pending acknowledgment: %w", err)
	}
	return nil
}

func isActiveMember(members []models.MemberStatus, id uuid.UUID) bool {
	for i := range members {
		if members[i].MemberID == id {
			return members[i].Active
		}
	}
	return false
}
