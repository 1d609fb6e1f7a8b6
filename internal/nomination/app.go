// Package nomination implements the ready-check coordinator: the consensus
// gate between an accepted nomination and a live auction.
package nomination

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pietro1412/fantacontratti/internal/apperrors"
	"github.com/pietro1412/fantacontratti/internal/models"
)

// NominationRepository defines what the app layer needs from storage.
type NominationRepository interface {
	Create(ctx context.Context, nom *models.PendingNomination) error
	Get(ctx context.Context, sessionID uuid.UUID) (*models.PendingNomination, error)
	UpdateSets(ctx context.Context, nom *models.PendingNomination) error
	Delete(ctx context.Context, sessionID uuid.UUID) error
}

// App holds the ready-check rules.
type App struct {
	repo NominationRepository
}

func NewApp(repo NominationRepository) *App {
	return &App{repo: repo}
}

// Propose creates the pending nomination. Every active member except the
// nominator starts pending; the nominator instead carries the distinct
// must-confirm flag.
func (a *App) Propose(ctx context.Context, sess *models.Session, members []models.MemberStatus, nominatorID, playerID uuid.UUID, basePrice int64, now time.Time) (*models.PendingNomination, error) {
	if playerID == uuid.Nil {
		return nil, apperrors.Validation("player_id is required")
	}
	if basePrice <= 0 {
		return nil, apperrors.Validation("base price must be greater than 0")
	}

	nom := &models.PendingNomination{
		SessionID:    sess.ID,
		PlayerID:     playerID,
		NominatorID:  nominatorID,
		BasePrice:    basePrice,
		ReadyMembers: []uuid.UUID{},
		CreatedAt:    now,
	}
	for i := range members {
		if !members[i].Active || members[i].MemberID == nominatorID {
			continue
		}
		nom.PendingMembers = append(nom.PendingMembers, members[i].MemberID)
	}

	if err := a.repo.Create(ctx, nom); err != nil {
		return nil, fmt.Errorf("failed to propose nomination: %w", err)
	}

	log.Info().
		Str("session_id", sess.ID.String()).
		Str("player_id", playerID.String()).
		Str("nominator_id", nominatorID.String()).
		Int64("base_price", basePrice).
		Int("pending", len(nom.PendingMembers)).
		Msg("nomination proposed")
	return nom, nil
}

// MarkReady moves a member from pending to ready. Repeated calls for the
// same member are no-ops; the returned flag reports whether anything moved.
func (a *App) MarkReady(ctx context.Context, nom *models.PendingNomination, memberID uuid.UUID) (bool, error) {
	if memberID == nom.NominatorID {
		return false, apperrors.Validation("the nominator confirms, it does not mark ready")
	}
	if nom.IsReady(memberID) {
		return false, nil
	}
	if !nom.IsPending(memberID) {
		return false, apperrors.NotFound("member %s is not part of this ready check", memberID)
	}

	nom.ReadyMembers = append(nom.ReadyMembers, memberID)
	nom.PendingMembers = removeID(nom.PendingMembers, memberID)

	if err := a.repo.UpdateSets(ctx, nom); err != nil {
		return false, fmt.Errorf("failed to mark ready: %w", err)
	}
	return true, nil
}

// CheckConfirm validates that the nominator may turn the nomination into an
// auction: only the nominator confirms, and only once everyone else is ready
// or an admin forced the check.
func (a *App) CheckConfirm(nom *models.PendingNomination, memberID uuid.UUID) error {
	if memberID != nom.NominatorID {
		return apperrors.Authorization("only the nominator may confirm")
	}
	if !nom.AllReady() {
		return apperrors.StateConflict("%d members are not ready yet", len(nom.PendingMembers))
	}
	return nil
}

// CheckCancel validates that the actor may cancel: the nominator or an
// admin, any time before confirmation.
func (a *App) CheckCancel(nom *models.PendingNomination, memberID uuid.UUID, admin bool) error {
	if memberID != nom.NominatorID && !admin {
		return apperrors.Authorization("only the nominator or an admin may cancel")
	}
	return nil
}

// ForceAllReady is the admin liveness override: the consensus protocol has
// no timeout, so a disconnected member can block confirmation forever
// without it. Idempotent.
func (a *App) ForceAllReady(ctx context.Context, nom *models.PendingNomination) (bool, error) {
	if nom.ForcedReady && len(nom.PendingMembers) == 0 {
		return false, nil
	}

	nom.ReadyMembers = append(nom.ReadyMembers, nom.PendingMembers...)
	nom.PendingMembers = []uuid.UUID{}
	nom.ForcedReady = true

	if err := a.repo.UpdateSets(ctx, nom); err != nil {
		return false, fmt.Errorf("failed to force ready check: %w", err)
	}

	log.Warn().
		Str("session_id", nom.SessionID.String()).
		Str("player_id", nom.PlayerID.String()).
		Msg("ready check forced by admin")
	return true, nil
}

// Clear removes the pending nomination.
func (a *App) Clear(ctx context.Context, sessionID uuid.UUID) error {
	if err := a.repo.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to clear pending nomination: %w", err)
	}
	return nil
}

func removeID(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
