package nomination

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pietro1412/fantacontratti/internal/database"
	"github.com/pietro1412/fantacontratti/internal/models"
)

// Repository persists pending nominations, one at most per session.
type Repository struct {
	db database.DBTX
}

func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *Repository) WithTx(tx pgx.Tx) *Repository {
	return &Repository{db: tx}
}

const nominationColumns = `session_id, player_id, nominator_id, base_price, ready_members, pending_members, nominator_confirmed, forced_ready, created_at`

func (r *Repository) Create(ctx context.Context, nom *models.PendingNomination) error {
	ready, err := json.Marshal(nom.ReadyMembers)
	if err != nil {
		return fmt.Errorf("marshal ready set: %w", err)
	}
	pending, err := json.Marshal(nom.PendingMembers)
	if err != nil {
		return fmt.Errorf("marshal pending set: %w", err)
	}

	if _, err := r.db.Exec(ctx, `
		INSERT INTO pending_nominations (session_id, player_id, nominator_id, base_price, ready_members, pending_members, nominator_confirmed, forced_ready, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, false, $7)`,
		nom.SessionID, nom.PlayerID, nom.NominatorID, nom.BasePrice, ready, pending, nom.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to create pending nomination: %w", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, sessionID uuid.UUID) (*models.PendingNomination, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+nominationColumns+` FROM pending_nominations WHERE session_id = $1`,
		sessionID,
	)

	var (
		nom     models.PendingNomination
		ready   []byte
		pending []byte
	)
	if err := row.Scan(
		&nom.SessionID, &nom.PlayerID, &nom.NominatorID, &nom.BasePrice,
		&ready, &pending, &nom.NominatorConfirmed, &nom.ForcedReady, &nom.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get pending nomination: %w", err)
	}
	if err := json.Unmarshal(ready, &nom.ReadyMembers); err != nil {
		return nil, fmt.Errorf("unmarshal ready set: %w", err)
	}
	if err := json.Unmarshal(pending, &nom.PendingMembers); err != nil {
		return nil, fmt.Errorf("unmarshal pending set: %w", err)
	}
	return &nom, nil
}

// UpdateSets rewrites the ready/pending partition and the forced flag.
func (r *Repository) UpdateSets(ctx context.Context, nom *models.PendingNomination) error {
	ready, err := json.Marshal(nom.ReadyMembers)
	if err != nil {
		return fmt.Errorf("marshal ready set: %w", err)
	}
	pending, err := json.Marshal(nom.PendingMembers)
	if err != nil {
		return fmt.Errorf("marshal pending set: %w", err)
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE pending_nominations
		SET ready_members = $2, pending_members = $3, forced_ready = $4
		WHERE session_id = $1`,
		nom.SessionID, ready, pending, nom.ForcedReady,
	)
	if err != nil {
		return fmt.Errorf("failed to update nomination sets: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Delete removes the pending nomination, either on confirmation (the auction
// replaces it) or on cancel (the session returns to NOMINATING).
func (r *Repository) Delete(ctx context.Context, sessionID uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `
		DELETE FROM pending_nominations WHERE session_id = $1`,
		sessionID,
	); err != nil {
		return fmt.Errorf("failed to delete pending nomination: %w", err)
	}
	return nil
}
