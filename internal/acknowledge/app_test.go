package acknowledge

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pietro1412/fantacontratti/internal/apperrors"
	"github.com/pietro1412/fantacontratti/internal/models"
)

type fakeRepo struct {
	acks map[uuid.UUID]*models.PendingAcknowledgment
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{acks: make(map[uuid.UUID]*models.PendingAcknowledgment)}
}

func (f *fakeRepo) Create(ctx context.Context, ack *models.PendingAcknowledgment) error {
	f.acks[ack.SessionID] = ack
	return nil
}

func (f *fakeRepo) Get(ctx context.Context, sessionID uuid.UUID) (*models.PendingAcknowledgment, error) {
	ack, ok := f.acks[sessionID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return ack, nil
}

func (f *fakeRepo) UpdateAcknowledged(ctx context.Context, ack *models.PendingAcknowledgment) error {
	if _, ok := f.acks[ack.SessionID]; !ok {
		return pgx.ErrNoRows
	}
	f.acks[ack.SessionID] = ack
	return nil
}

func (f *fakeRepo) Delete(ctx context.Context, sessionID uuid.UUID) error {
	delete(f.acks, sessionID)
	return nil
}

func activeMember(id uuid.UUID) models.MemberStatus {
	return models.MemberStatus{MemberID: id, Active: true}
}

func start(t *testing.T, app *App, winner uuid.UUID) *models.PendingAcknowledgment {
	t.Helper()
	ack, err := app.Start(context.Background(), uuid.New(), uuid.New(), &winner, time.Now())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return ack
}

func TestAcknowledge(t *testing.T) {
	app := NewApp(newFakeRepo())
	winner, m2, m3 := uuid.New(), uuid.New(), uuid.New()
	members := []models.MemberStatus{activeMember(winner), activeMember(m2), activeMember(m3)}
	ack := start(t, app, winner)
	ctx := context.Background()

	changed, complete, err := app.Acknowledge(ctx, ack, members, m2, "")
	if err != nil || !changed || complete {
		t.Fatalf("Acknowledge = (%v, %v, %v), want (true, false, nil)", changed, complete, err)
	}

	// Repeat is a no-op.
	changed, _, err = app.Acknowledge(ctx, ack, members, m2, "")
	if err != nil || changed {
		t.Fatalf("repeat = (%v, %v), want (false, nil)", changed, err)
	}

	// The winner counts too; the gate only clears when everyone acked.
	if _, complete, err = app.Acknowledge(ctx, ack, members, m3, ""); err != nil || complete {
		t.Fatalf("after m3: complete = %v, err = %v", complete, err)
	}
	if _, complete, err = app.Acknowledge(ctx, ack, members, winner, "great pick"); err != nil || !complete {
		t.Fatalf("after winner: complete = %v, err = %v", complete, err)
	}
}

func TestAcknowledgeNoteRules(t *testing.T) {
	app := NewApp(newFakeRepo())
	winner, m2 := uuid.New(), uuid.New()
	members := []models.MemberStatus{activeMember(winner), activeMember(m2)}
	ack := start(t, app, winner)

	_, _, err := app.Acknowledge(context.Background(), ack, members, m2, "not my note to leave")
	if !apperrors.IsKind(err, apperrors.KindAuthorization) {
		t.Errorf("non-winner note: got %v, want authorization error", err)
	}
}

func TestAcknowledgeUnknownMember(t *testing.T) {
	app := NewApp(newFakeRepo())
	winner := uuid.New()
	members := []models.MemberStatus{activeMember(winner)}
	ack := start(t, app, winner)

	_, _, err := app.Acknowledge(context.Background(), ack, members, uuid.New(), "")
	if !apperrors.IsKind(err, apperrors.KindNotFound) {
		t.Errorf("got %v, want not found", err)
	}
}

func TestForceAll(t *testing.T) {
	app := NewApp(newFakeRepo())
	winner, m2, m3 := uuid.New(), uuid.New(), uuid.New()
	members := []models.MemberStatus{activeMember(winner), activeMember(m2), activeMember(m3)}
	ack := start(t, app, winner)
	ctx := context.Background()

	if _, _, err := app.Acknowledge(ctx, ack, members, m2, ""); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}

	changed, err := app.ForceAll(ctx, ack, members)
	if err != nil || !changed {
		t.Fatalf("ForceAll = (%v, %v), want (true, nil)", changed, err)
	}
	if !app.Complete(ack, members) {
		t.Error("gate not complete after force")
	}

	changed, err = app.ForceAll(ctx, ack, members)
	if err != nil || changed {
		t.Errorf("repeat force = (%v, %v), want (false, nil)", changed, err)
	}
}

func TestCompleteIgnoresInactive(t *testing.T) {
	app := NewApp(newFakeRepo())
	winner := uuid.New()
	inactive := models.MemberStatus{MemberID: uuid.New(), Active: false}
	members := []models.MemberStatus{activeMember(winner), inactive}
	ack := start(t, app, winner)

	if _, complete, err := app.Acknowledge(context.Background(), ack, members, winner, ""); err != nil || !complete {
		t.Errorf("complete = %v, err = %v; inactive member should not block", complete, err)
	}
}
