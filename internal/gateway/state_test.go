package gateway

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/pietro1412/fantacontratti/internal/config"
	"github.com/pietro1412/fantacontratti/internal/market"
	"github.com/pietro1412/fantacontratti/internal/models"
)

func testService(clock clockwork.Clock) *Service {
	return NewService(nil, nil, clock, config.Default().Market)
}

func TestStateResponse(t *testing.T) {
	clock := clockwork.NewFakeClock()
	svc := testService(clock)
	now := clock.Now()

	m1, m2, m3 := uuid.New(), uuid.New(), uuid.New()
	recent := now.Add(-10 * time.Second)
	stale := now.Add(-5 * time.Minute)
	snap := &market.Snapshot{
		Session: &models.Session{ID: uuid.New()},
		Members: []models.MemberStatus{
			{MemberID: m1, Active: true, LastHeartbeat: &recent},
			{MemberID: m2, Active: true, LastHeartbeat: &stale},
			{MemberID: m3, Active: true},
		},
		Auction: &models.Auction{Deadline: now.Add(42*time.Second + 500*time.Millisecond)},
	}

	resp := svc.stateResponse(snap)
	if !resp.ServerTime.Equal(now) {
		t.Errorf("ServerTime = %v, want %v", resp.ServerTime, now)
	}
	if resp.RemainingSec != 42 {
		t.Errorf("RemainingSec = %d, want 42", resp.RemainingSec)
	}
	want := map[uuid.UUID]bool{m1: true, m2: false, m3: false}
	if diff := cmp.Diff(want, resp.Connected); diff != "" {
		t.Errorf("connected members mismatch (-want +got):\n%s", diff)
	}
}

func TestStateResponseClampsPassedDeadline(t *testing.T) {
	clock := clockwork.NewFakeClock()
	svc := testService(clock)

	snap := &market.Snapshot{
		Session: &models.Session{ID: uuid.New()},
		Auction: &models.Auction{Deadline: clock.Now().Add(-3 * time.Second)},
	}
	if resp := svc.stateResponse(snap); resp.RemainingSec != 0 {
		t.Errorf("RemainingSec = %d, want 0", resp.RemainingSec)
	}
}

func TestAuctionSecondsDefault(t *testing.T) {
	svc := testService(clockwork.NewFakeClock())

	if got := svc.auctionSeconds(0); got != config.Default().Market.AuctionSeconds {
		t.Errorf("auctionSeconds(0) = %d, want configured default %d", got, config.Default().Market.AuctionSeconds)
	}
	if got := svc.auctionSeconds(90); got != 90 {
		t.Errorf("auctionSeconds(90) = %d, want 90", got)
	}
}
