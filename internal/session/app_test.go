package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pietro1412/fantacontratti/internal/apperrors"
	"github.com/pietro1412/fantacontratti/internal/models"
)

type fakeRepo struct {
	sessions map[uuid.UUID]*models.Session
	members  map[uuid.UUID]map[uuid.UUID]*models.MemberStatus
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		sessions: make(map[uuid.UUID]*models.Session),
		members:  make(map[uuid.UUID]map[uuid.UUID]*models.MemberStatus),
	}
}

func (f *fakeRepo) CreateSession(ctx context.Context, req CreateSessionRequest) (*models.Session, error) {
	sess := &models.Session{
		ID:             req.ID,
		LeagueID:       req.LeagueID,
		TurnOrder:      []uuid.UUID{},
		CurrentRole:    req.RoleSequence[0],
		RoleSequence:   req.RoleSequence,
		Phase:          models.PhaseSetup,
		AuctionSeconds: req.AuctionSeconds,
	}
	f.sessions[sess.ID] = sess
	return sess, nil
}

func (f *fakeRepo) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	sess, ok := f.sessions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return sess, nil
}

func (f *fakeRepo) UpdateSessionState(ctx context.Context, id uuid.UUID, phase models.SessionPhase, turnIndex int, role models.Role) error {
	sess, ok := f.sessions[id]
	if !ok {
		return pgx.ErrNoRows
	}
	sess.Phase = phase
	sess.TurnIndex = turnIndex
	sess.CurrentRole = role
	return nil
}

func (f *fakeRepo) SetTurnOrder(ctx context.Context, id uuid.UUID, order []uuid.UUID) error {
	sess, ok := f.sessions[id]
	if !ok {
		return pgx.ErrNoRows
	}
	sess.TurnOrder = order
	return nil
}

func (f *fakeRepo) AddMember(ctx context.Context, req AddMemberRequest) (*models.MemberStatus, error) {
	if f.members[req.SessionID] == nil {
		f.members[req.SessionID] = make(map[uuid.UUID]*models.MemberStatus)
	}
	m := &models.MemberStatus{
		SessionID: req.SessionID,
		MemberID:  req.MemberID,
		Admin:     req.Admin,
		Active:    true,
		Budget:    req.Budget,
		SlotFill:  map[models.Role]int{},
		SlotLimit: req.SlotLimit,
	}
	f.members[req.SessionID][req.MemberID] = m
	return m, nil
}

func (f *fakeRepo) GetMember(ctx context.Context, sessionID, memberID uuid.UUID) (*models.MemberStatus, error) {
	m, ok := f.members[sessionID][memberID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return m, nil
}

func (f *fakeRepo) ListActiveMembers(ctx context.Context, sessionID uuid.UUID) ([]models.MemberStatus, error) {
	var out []models.MemberStatus
	for _, m := range f.members[sessionID] {
		if m.Active {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeRepo) Heartbeat(ctx context.Context, sessionID, memberID uuid.UUID, at time.Time) error {
	m, ok := f.members[sessionID][memberID]
	if !ok {
		return pgx.ErrNoRows
	}
	m.LastHeartbeat = &at
	return nil
}

func member(id uuid.UUID, fill, limit int, active bool) models.MemberStatus {
	return models.MemberStatus{
		MemberID:  id,
		Active:    active,
		Budget:    500,
		SlotFill:  map[models.Role]int{models.RoleGoalkeeper: fill},
		SlotLimit: map[models.Role]int{models.RoleGoalkeeper: limit},
	}
}

func TestAdvanceTurn(t *testing.T) {
	m1, m2, m3 := uuid.New(), uuid.New(), uuid.New()
	app := NewApp(newFakeRepo())

	tests := []struct {
		name      string
		turnIndex int
		members   []models.MemberStatus
		wantIndex int
		wantID    uuid.UUID
		wantSkip  int
		wantFull  bool
	}{
		{
			name:      "moves to next member",
			turnIndex: 0,
			members:   []models.MemberStatus{member(m1, 0, 3, true), member(m2, 0, 3, true), member(m3, 0, 3, true)},
			wantIndex: 1,
			wantID:    m2,
		},
		{
			name:      "wraps modulo turn list",
			turnIndex: 2,
			members:   []models.MemberStatus{member(m1, 0, 3, true), member(m2, 0, 3, true), member(m3, 0, 3, true)},
			wantIndex: 0,
			wantID:    m1,
		},
		{
			name:      "skips member with full slot",
			turnIndex: 0,
			members:   []models.MemberStatus{member(m1, 0, 3, true), member(m2, 3, 3, true), member(m3, 0, 3, true)},
			wantIndex: 2,
			wantID:    m3,
			wantSkip:  1,
		},
		{
			name:      "skips inactive member",
			turnIndex: 0,
			members:   []models.MemberStatus{member(m1, 0, 3, true), member(m2, 0, 3, false), member(m3, 0, 3, true)},
			wantIndex: 2,
			wantID:    m3,
			wantSkip:  1,
		},
		{
			name:      "all full reports instead of looping",
			turnIndex: 0,
			members:   []models.MemberStatus{member(m1, 3, 3, true), member(m2, 3, 3, true), member(m3, 3, 3, true)},
			wantFull:  true,
			wantSkip:  3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := &models.Session{
				TurnOrder:   []uuid.UUID{m1, m2, m3},
				TurnIndex:   tt.turnIndex,
				CurrentRole: models.RoleGoalkeeper,
			}
			adv := app.AdvanceTurn(sess, tt.members)
			if adv.AllFull != tt.wantFull {
				t.Fatalf("AllFull = %v, want %v", adv.AllFull, tt.wantFull)
			}
			if adv.Skipped != tt.wantSkip {
				t.Errorf("Skipped = %d, want %d", adv.Skipped, tt.wantSkip)
			}
			if tt.wantFull {
				return
			}
			if adv.TurnIndex != tt.wantIndex {
				t.Errorf("TurnIndex = %d, want %d", adv.TurnIndex, tt.wantIndex)
			}
			if adv.MemberID != tt.wantID {
				t.Errorf("MemberID = %s, want %s", adv.MemberID, tt.wantID)
			}
		})
	}
}

func TestRoleComplete(t *testing.T) {
	m1, m2 := uuid.New(), uuid.New()
	app := NewApp(newFakeRepo())
	sess := &models.Session{CurrentRole: models.RoleGoalkeeper}

	tests := []struct {
		name    string
		members []models.MemberStatus
		want    bool
	}{
		{"all full", []models.MemberStatus{member(m1, 3, 3, true), member(m2, 3, 3, true)}, true},
		{"one open", []models.MemberStatus{member(m1, 3, 3, true), member(m2, 2, 3, true)}, false},
		{"inactive ignored", []models.MemberStatus{member(m1, 3, 3, true), member(m2, 0, 3, false)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := app.RoleComplete(sess, tt.members); got != tt.want {
				t.Errorf("RoleComplete = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckNominator(t *testing.T) {
	m1, m2 := uuid.New(), uuid.New()
	app := NewApp(newFakeRepo())
	sess := &models.Session{
		TurnOrder:   []uuid.UUID{m1, m2},
		TurnIndex:   0,
		CurrentRole: models.RoleGoalkeeper,
	}

	members := []models.MemberStatus{member(m1, 0, 3, true), member(m2, 0, 3, true)}
	if err := app.CheckNominator(sess, members, m1); err != nil {
		t.Fatalf("CheckNominator(turn holder) = %v", err)
	}

	if err := app.CheckNominator(sess, members, m2); !apperrors.IsKind(err, apperrors.KindAuthorization) {
		t.Errorf("out of turn: got %v, want authorization error", err)
	}

	full := []models.MemberStatus{member(m1, 3, 3, true), member(m2, 0, 3, true)}
	if err := app.CheckNominator(sess, full, m1); !apperrors.IsKind(err, apperrors.KindSlot) {
		t.Errorf("full slot: got %v, want slot error", err)
	}
}

func TestSetTurnOrder(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	app := NewApp(repo)

	sess, err := app.CreateSession(ctx, CreateSessionRequest{
		ID:             uuid.New(),
		LeagueID:       uuid.New(),
		AuctionSeconds: 60,
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	m1, m2 := uuid.New(), uuid.New()
	for _, id := range []uuid.UUID{m1, m2} {
		if _, err := app.AddMember(ctx, sess, AddMemberRequest{
			MemberID:  id,
			Budget:    500,
			SlotLimit: map[models.Role]int{models.RoleGoalkeeper: 3},
		}); err != nil {
			t.Fatalf("AddMember: %v", err)
		}
	}

	if err := app.SetTurnOrder(ctx, sess, []uuid.UUID{m1, m1}); !apperrors.IsKind(err, apperrors.KindValidation) {
		t.Errorf("duplicate member: got %v, want validation error", err)
	}
	if err := app.SetTurnOrder(ctx, sess, []uuid.UUID{m1, uuid.New()}); !apperrors.IsKind(err, apperrors.KindNotFound) {
		t.Errorf("unknown member: got %v, want not found error", err)
	}
	if err := app.SetTurnOrder(ctx, sess, []uuid.UUID{m1}); !apperrors.IsKind(err, apperrors.KindValidation) {
		t.Errorf("order missing an active member: got %v, want validation error", err)
	}
	if err := app.SetTurnOrder(ctx, sess, []uuid.UUID{m2, m1}); err != nil {
		t.Fatalf("SetTurnOrder: %v", err)
	}
	if err := app.SetTurnOrder(ctx, sess, []uuid.UUID{m1, m2}); !apperrors.IsKind(err, apperrors.KindStateConflict) {
		t.Errorf("second set: got %v, want state conflict", err)
	}

	sess.Phase = models.PhaseNominating
	sess.TurnOrder = nil
	if err := app.SetTurnOrder(ctx, sess, []uuid.UUID{m1, m2}); !apperrors.IsKind(err, apperrors.KindStateConflict) {
		t.Errorf("outside SETUP: got %v, want state conflict", err)
	}
}

func TestAddMemberOutsideSetup(t *testing.T) {
	app := NewApp(newFakeRepo())
	sess := &models.Session{ID: uuid.New(), Phase: models.PhaseNominating}

	_, err := app.AddMember(context.Background(), sess, AddMemberRequest{
		MemberID:  uuid.New(),
		Budget:    500,
		SlotLimit: map[models.Role]int{models.RoleGoalkeeper: 3},
	})
	if !apperrors.IsKind(err, apperrors.KindStateConflict) {
		t.Errorf("got %v, want state conflict", err)
	}
}

func TestHeartbeatUnknownMember(t *testing.T) {
	app := NewApp(newFakeRepo())
	err := app.Heartbeat(context.Background(), uuid.New(), uuid.New(), time.Now())
	if !apperrors.IsKind(err, apperrors.KindNotFound) {
		t.Errorf("got %v, want not found", err)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		t.Errorf("raw storage error leaked: %v", err)
	}
}
