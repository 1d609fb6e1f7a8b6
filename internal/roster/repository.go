package roster

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pietro1412/fantacontratti/internal/database"
	"github.com/pietro1412/fantacontratti/internal/models"
)

// Repository is the budget-and-roster-slot store plus the movement history
// and player availability the market core consumes.
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

func (r *Repository) GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, role, team, drafted_by FROM players WHERE id = $1`,
		id,
	)

	var p models.Player
	if err := row.Scan(&p.ID, &p.Name, &p.Role, &p.Team, &p.DraftedBy); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return &p, nil
}

// MarkDrafted assigns the player to a member. The drafted_by IS NULL guard
// keeps a player from ever being sold twice.
func (r *Repository) MarkDrafted(ctx context.Context, playerID, memberID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE players SET drafted_by = $2
		WHERE id = $1 AND drafted_by IS NULL`,
		playerID, memberID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark player drafted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// DebitAndFillSlot atomically debits the member's budget and increments the
// role's slot-fill count. The budget guard makes overdrafts impossible even
// if a validation upstream was stale.
func (r *Repository) DebitAndFillSlot(ctx context.Context, sessionID, memberID uuid.UUID, role models.Role, amount int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE session_members
		SET budget = budget - $4,
		    slot_fill = jsonb_set(slot_fill, ARRAY[$3::text], to_jsonb(COALESCE((slot_fill->>$3)::int, 0) + 1))
		WHERE session_id = $1 AND member_id = $2 AND budget >= $4`,
		sessionID, memberID, string(role), amount,
	)
	if err != nil {
		return fmt.Errorf("failed to debit and fill slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *Repository) InsertMovement(ctx context.Context, m *models.Movement) error {
	if _, err := r.db.Exec(ctx, `
		INSERT INTO movements (id, session_id, auction_id, member_id, player_id, amount, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.SessionID, m.AuctionID, m.MemberID, m.PlayerID, m.Amount, m.Note, m.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert movement: %w", err)
	}
	return nil
}

// SetMovementNote attaches the winner's acknowledgment note to the movement
// written at auction close.
func (r *Repository) SetMovementNote(ctx context.Context, auctionID, memberID uuid.UUID, note string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE movements SET note = $3
		WHERE auction_id = $1 AND member_id = $2`,
		auctionID, memberID, note,
	)
	if err != nil {
		return fmt.Errorf("failed to set movement note: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *Repository) ListMovements(ctx context.Context, sessionID uuid.UUID) ([]models.Movement, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, session_id, auction_id, member_id, player_id, amount, note, created_at
		FROM movements WHERE session_id = $1 ORDER BY created_at`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list movements: %w", err)
	}
	defer rows.Close()

	var moves []models.Movement
	for rows.Next() {
		var m models.Movement
		if err := rows.Scan(&m.ID, &m.SessionID, &m.AuctionID, &m.MemberID, &m.PlayerID, &m.Amount, &m.Note, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		moves = append(moves, m)
	}
	return moves, rows.Err()
}
