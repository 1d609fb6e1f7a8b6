package session

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

// SessionRepository defines what the session app layer needs from storage.
type SessionRepository interface {
	CreateSession(ctx context.Context, req CreateSessionRequest) (*models.Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
	UpdateSessionState(ctx context.Context, id uuid.UUID, phase models.SessionPhase, turnIndex int, role models.Role) error
	SetTurnOrder(ctx context.Context, id uuid.UUID, order []uuid.UUID) error
	AddMember(ctx context.Context, req AddMemberRequest) (*models.MemberStatus, error)
	GetMember(ctx context.Context, sessionID, memberID uuid.UUID) (*models.MemberStatus, error)
	ListActiveMembers(ctx context.Context, sessionID uuid.UUID) ([]models.MemberStatus, error)
	Heartbeat(ctx context.Context, sessionID, memberID uuid.UUID, at time.Time) error
}

// App owns the nomination coordinator's turn-order and role-progression
// rules plus session setup.
type App struct {
	repo SessionRepository
}

func NewApp(repo SessionRepository) *App {
	return &App{repo: repo}
}

// CreateSession opens a new session in SETUP.
func (a *App) CreateSession(ctx context.Context, req CreateSessionRequest) (*models.Session, error) {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.LeagueID == uuid.Nil {
		return nil, apperrors.Validation("league_id is required")
	}
	if len(req.RoleSequence) == 0 {
		req.RoleSequence = models.DefaultRoleSequence()
	}
	for _, r := range req.RoleSequence {
		if !models.ValidRole(r) {
			return nil, apperrors.Validation("invalid role %q in role sequence", r)
		}
	}
	if req.AuctionSeconds <= 0 {
		return nil, apperrors.Validation("auction_seconds must be greater than 0")
	}

	sess, err := a.repo.CreateSession(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	log.Info().
		Str("session_id", sess.ID.String()).
		Str("league_id", sess.LeagueID.String()).
		Msg("session created")
	return sess, nil
}

// AddMember enrolls a member during SETUP.
func (a *App) AddMember(ctx context.Context, sess *models.Session, req AddMemberRequest) (*models.MemberStatus, error) {
	if sess.Phase != models.PhaseSetup {
		return nil, apperrors.StateConflict("members can only be added during SETUP, session is %s", sess.Phase)
	}
	if req.MemberID == uuid.Nil {
		return nil, apperrors.Validation("member_id is required")
	}
	if req.Budget < 0 {
		return nil, apperrors.Validation("budget cannot be negative")
	}
	if len(req.SlotLimit) == 0 {
		return nil, apperrors.Validation("slot limits are required")
	}
	req.SessionID = sess.ID

	member, err := a.repo.AddMember(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to add member: %w", err)
	}
	return member, nil
}

// SetTurnOrder fixes the turn list once, during SETUP. The list must cover
// every active member; a member outside the turn order could otherwise keep
// the role incomplete while the turn scan has nobody left to hand the turn
// to, and the session would have no way forward.
func (a *App) SetTurnOrder(ctx context.Context, sess *models.Session, order []uuid.UUID) error {
	if sess.Phase != models.PhaseSetup {
		return apperrors.StateConflict("turn order can only be set during SETUP, session is %s", sess.Phase)
	}
	if len(sess.TurnOrder) > 0 {
		return apperrors.StateConflict("turn order is already set")
	}
	if len(order) == 0 {
		return apperrors.Validation("turn order cannot be empty")
	}

	seen := make(map[uuid.UUID]bool, len(order))
	for _, id := range order {
		if seen[id] {
			return apperrors.Validation("member %s appears twice in turn order", id)
		}
		seen[id] = true
		if _, err := a.repo.GetMember(ctx, sess.ID, id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NotFound("member %s is not enrolled in this session", id)
			}
			return fmt.Errorf("failed to verify member: %w", err)
		}
	}

	members, err := a.repo.ListActiveMembers(ctx, sess.ID)
	if err != nil {
		return fmt.Errorf("failed to list members: %w", err)
	}
	if missing := MissingFromTurnOrder(order, members); len(missing) > 0 {
		return apperrors.Validation("turn order is missing active member %s", missing[0])
	}

	if err := a.repo.SetTurnOrder(ctx, sess.ID, order); err != nil {
		return fmt.Errorf("failed to set turn order: %w", err)
	}
	sess.TurnOrder = order
	return nil
}

// MissingFromTurnOrder lists active members without a turn slot.
func MissingFromTurnOrder(order []uuid.UUID, members []models.MemberStatus) []uuid.UUID {
	listed := make(map[uuid.UUID]bool, len(order))
	for _, id := range order {
		listed[id] = true
	}
	var missing []uuid.UUID
	for i := range members {
		if members[i].Active && !listed[members[i].MemberID] {
			missing = append(missing, members[i].MemberID)
		}
	}
	return missing
}

// Heartbeat records member liveness; it never gates a command.
func (a *App) Heartbeat(ctx context.Context, sessionID, memberID uuid.UUID, at time.Time) error {
	if err := a.repo.Heartbeat(ctx, sessionID, memberID, at); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("member %s not in session", memberID)
		}
		return fmt.Errorf("failed to record heartbeat: %w", err)
	}
	return nil
}

// CheckNominator verifies the member occupies the current turn slot and has
// room left in the current role.
func (a *App) CheckNominator(sess *models.Session, members []models.MemberStatus, memberID uuid.UUID) error {
	turnHolder, ok := sess.CurrentTurnMember()
	if !ok {
		return apperrors.StateConflict("session has no usable turn slot")
	}
	if turnHolder != memberID {
		return apperrors.Authorization("it is not member %s's turn", memberID)
	}
	member := findMember(members, memberID)
	if member == nil {
		return apperrors.NotFound("member %s not in session", memberID)
	}
	if member.RoleFull(sess.CurrentRole) {
		return apperrors.Slot("member %s has no free %s slot", memberID, sess.CurrentRole)
	}
	return nil
}

// AdvanceTurn moves the turn cursor forward modulo the turn list, skipping
// members whose current-role slot is already full or who are inactive. When
// every member is full the caller must auto-advance the role instead; the
// bounded scan prevents an infinite loop in that case.
func (a *App) AdvanceTurn(sess *models.Session, members []models.MemberStatus) TurnAdvance {
	n := len(sess.TurnOrder)
	if n == 0 {
		return TurnAdvance{AllFull: true}
	}

	skipped := 0
	for step := 1; step <= n; step++ {
		idx := (sess.TurnIndex + step) % n
		member := findMember(members, sess.TurnOrder[idx])
		if member == nil || !member.Active || member.RoleFull(sess.CurrentRole) {
			skipped++
			continue
		}
		return TurnAdvance{TurnIndex: idx, MemberID: member.MemberID, Skipped: skipped}
	}
	return TurnAdvance{AllFull: true, Skipped: skipped}
}

// RoleComplete reports whether every active member's current-role slot is
// full, which is the condition for auto-advancing the role.
func (a *App) RoleComplete(sess *models.Session, members []models.MemberStatus) bool {
	for i := range members {
		if !members[i].Active {
			continue
		}
		if !members[i].RoleFull(sess.CurrentRole) {
			return false
		}
	}
	return true
}

func findMember(members []models.MemberStatus, id uuid.UUID) *models.MemberStatus {
	for i := range members {
		if members[i].MemberID == id {
			return &members[i]
		}
	}
	return nil
}
