package acknowledge

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

// Repository persists pending acknowledgments, one at most per session.
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

func (r *Repository) Create(ctx context.Context, ack *models.PendingAcknowledgment) error {
	acked, err := json.Marshal(ack.Acknowledged)
	if err != nil {
		return fmt.Errorf("marshal acknowledged set: %w", err)
	}

	if _, err := r.db.Exec(ctx, `
		INSERT INTO pending_acknowledgments (session_id, auction_id, winner_id, acknowledged, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		ack.SessionID, ack.AuctionID, ack.WinnerID, acked, ack.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to create pending acknowledgment: %w", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, sessionID uuid.UUID) (*models.PendingAcknowledgment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT session_id, auction_id, winner_id, acknowledged, created_at
		FROM pending_acknowledgments WHERE session_id = $1`,
		sessionID,
	)

	var (
		ack   models.PendingAcknowledgment
		acked []byte
	)
	if err := row.Scan(&ack.SessionID, &ack.AuctionID, &ack.WinnerID, &acked, &ack.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get pending acknowledgment: %w", err)
	}
	if err := json.Unmarshal(acked, &ack.Acknowledged); err != nil {
		return nil, fmt.Errorf("unmarshal acknowledged set: %w", err)
	}
	return &ack, nil
}

func (r *Repository) UpdateAcknowledged(ctx context.Context, ack *models.PendingAcknowledgment) error {
	acked, err := json.Marshal(ack.Acknowledged)
	if err != nil {
		return fmt.Errorf("marshal acknowledged set: %w", err)
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE pending_acknowledgments SET acknowledged = $2 WHERE session_id = $1`,
		ack.SessionID, acked,
	)
	if err != nil {
		return fmt.Errorf("failed to update acknowledgment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, sessionID uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `
		DELETE FROM pending_acknowledgments WHERE session_id = $1`,
		sessionID,
	); err != nil {
		return fmt.Errorf("failed to delete pending acknowledgment: %w", err)
	}
	return nil
}
