package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pietro1412/fantacontratti/internal/database"
	"github.com/pietro1412/fantacontratti/internal/models"
)

// Repository persists sessions and member statuses.
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

const sessionColumns = `id, league_id, turn_order, turn_index, current_role, role_sequence, phase, auction_seconds, created_at, updated_at`

func (r *Repository) CreateSession(ctx context.Context, req CreateSessionRequest) (*models.Session, error) {
	turnOrder, err := json.Marshal([]uuid.UUID{})
	if err != nil {
		return nil, fmt.Errorf("marshal turn order: %w", err)
	}
	roleSeq, err := json.Marshal(req.RoleSequence)
	if err != nil {
		return nil, fmt.Errorf("marshal role sequence: %w", err)
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO sessions (id, league_id, turn_order, turn_index, current_role, role_sequence, phase, auction_seconds)
		VALUES ($1, $2, $3, 0, $4, $5, $6, $7)
		RETURNING `+sessionColumns,
		req.ID, req.LeagueID, turnOrder, req.RoleSequence[0], roleSeq, models.PhaseSetup, req.AuctionSeconds,
	)

	sess, err := scanSession(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return sess, nil
}

func (r *Repository) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	row := r.db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return sess, nil
}

// GetSessionForUpdate loads the session row under FOR UPDATE. This row lock
// is the per-session serialization boundary: every command takes it first,
// so two nominations, confirmations, or closes can never race.
func (r *Repository) GetSessionForUpdate(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	row := r.db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1 FOR UPDATE`, id)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to lock session: %w", err)
	}
	return sess, nil
}

// UpdateSessionState writes phase, turn index, and current role in one shot.
func (r *Repository) UpdateSessionState(ctx context.Context, id uuid.UUID, phase models.SessionPhase, turnIndex int, role models.Role) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE sessions SET phase = $2, turn_index = $3, current_role = $4, updated_at = now()
		WHERE id = $1`,
		id, phase, turnIndex, role,
	)
	if err != nil {
		return fmt.Errorf("failed to update session state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *Repository) SetTurnOrder(ctx context.Context, id uuid.UUID, order []uuid.UUID) error {
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal turn order: %w", err)
	}
	if _, err := r.db.Exec(ctx, `
		UPDATE sessions SET turn_order = $2, updated_at = now() WHERE id = $1`,
		id, data,
	); err != nil {
		return fmt.Errorf("failed to set turn order: %w", err)
	}
	return nil
}

func (r *Repository) AddMember(ctx context.Context, req AddMemberRequest) (*models.MemberStatus, error) {
	slotLimit, err := json.Marshal(req.SlotLimit)
	if err != nil {
		return nil, fmt.Errorf("marshal slot limits: %w", err)
	}
	slotFill, err := json.Marshal(map[models.Role]int{})
	if err != nil {
		return nil, fmt.Errorf("marshal slot fill: %w", err)
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO session_members (session_id, member_id, admin, active, budget, slot_fill, slot_limit)
		VALUES ($1, $2, $3, true, $4, $5, $6)
		RETURNING `+memberColumns,
		req.SessionID, req.MemberID, req.Admin, req.Budget, slotFill, slotLimit,
	)
	member, err := scanMember(row)
	if err != nil {
		return nil, fmt.Errorf("failed to add member: %w", err)
	}
	return member, nil
}

const memberColumns = `session_id, member_id, admin, active, budget, slot_fill, slot_limit, last_heartbeat`

func (r *Repository) GetMember(ctx context.Context, sessionID, memberID uuid.UUID) (*models.MemberStatus, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+memberColumns+` FROM session_members
		WHERE session_id = $1 AND member_id = $2`,
		sessionID, memberID,
	)
	member, err := scanMember(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return member, nil
}

// ListActiveMembers returns the active members of a session ordered by
// member id for deterministic iteration.
func (r *Repository) ListActiveMembers(ctx context.Context, sessionID uuid.UUID) ([]models.MemberStatus, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+memberColumns+` FROM session_members
		WHERE session_id = $1 AND active
		ORDER BY member_id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []models.MemberStatus
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func (r *Repository) Heartbeat(ctx context.Context, sessionID, memberID uuid.UUID, at time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE session_members SET last_heartbeat = $3
		WHERE session_id = $1 AND member_id = $2`,
		sessionID, memberID, at,
	)
	if err != nil {
		return fmt.Errorf("failed to record heartbeat: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var (
		sess         models.Session
		turnOrder    []byte
		roleSequence []byte
	)
	if err := row.Scan(
		&sess.ID, &sess.LeagueID, &turnOrder, &sess.TurnIndex, &sess.CurrentRole,
		&roleSequence, &sess.Phase, &sess.AuctionSeconds, &sess.CreatedAt, &sess.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(turnOrder, &sess.TurnOrder); err != nil {
		return nil, fmt.Errorf("unmarshal turn order: %w", err)
	}
	if err := json.Unmarshal(roleSequence, &sess.RoleSequence); err != nil {
		return nil, fmt.Errorf("unmarshal role sequence: %w", err)
	}
	return &sess, nil
}

func scanMember(row rowScanner) (*models.MemberStatus, error) {
	var (
		m         models.MemberStatus
		slotFill  []byte
		slotLimit []byte
	)
	if err := row.Scan(
		&m.SessionID, &m.MemberID, &m.Admin, &m.Active, &m.Budget,
		&slotFill, &slotLimit, &m.LastHeartbeat,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(slotFill, &m.SlotFill); err != nil {
		return nil, fmt.Errorf("unmarshal slot fill: %w", err)
	}
	if err := json.Unmarshal(slotLimit, &m.SlotLimit); err != nil {
		return nil, fmt.Errorf("unmarshal slot limits: %w", err)
	}
	return &m, nil
}
