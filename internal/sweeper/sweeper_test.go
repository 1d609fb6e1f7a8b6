package sweeper

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonboulle/clockwork"

	"github.com/pietro1412/fantacontratti/internal/auction"
)

type fakeDueLister struct {
	mu       sync.Mutex
	ids      []uuid.UUID
	deadline *time.Time
}

func (f *fakeDueLister) set(ids ...uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = ids
}

func (f *fakeDueLister) ListDueSessions(ctx context.Context, now time.Time, limit int32) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID(nil), f.ids...), nil
}

func (f *fakeDueLister) NextDeadline(ctx context.Context) (*auction.NextDeadline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deadline == nil {
		return nil, pgx.ErrNoRows
	}
	return &auction.NextDeadline{SessionID: uuid.New(), AuctionID: uuid.New(), Deadline: *f.deadline}, nil
}

type fakeCloser struct {
	closed chan uuid.UUID
	// gate, when set, blocks CloseExpired until a token is sent.
	gate chan struct{}
}

func (f *fakeCloser) CloseExpired(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	f.closed <- sessionID
	return true, nil
}

func testConfig() Config {
	return Config{Interval: time.Second, Workers: 2, BatchSize: 10}
}

func TestSweepClosesDueSession(t *testing.T) {
	clock := clockwork.NewFakeClock()
	id := uuid.New()
	due := &fakeDueLister{ids: []uuid.UUID{id}}
	closer := &fakeCloser{closed: make(chan uuid.UUID, 10)}
	s := New(due, closer, clock, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// The first sweep runs on startup, before any tick.
	select {
	case got := <-closer.closed:
		if got != id {
			t.Errorf("closed %s, want %s", got, id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("due session never swept")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestTickerDrivesLaterSweeps(t *testing.T) {
	clock := clockwork.NewFakeClock()
	due := &fakeDueLister{}
	closer := &fakeCloser{closed: make(chan uuid.UUID, 10)}
	s := New(due, closer, clock, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("waiting for ticker: %v", err)
	}
	id := uuid.New()
	due.set(id)
	clock.Advance(time.Second)

	select {
	case got := <-closer.closed:
		if got != id {
			t.Errorf("closed %s, want %s", got, id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("session not swept after tick")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestWakesEarlyForNearestDeadline(t *testing.T) {
	clock := clockwork.NewFakeClock()
	deadline := clock.Now().Add(10 * time.Second)
	due := &fakeDueLister{deadline: &deadline}
	closer := &fakeCloser{closed: make(chan uuid.UUID, 10)}
	cfg := testConfig()
	cfg.Interval = time.Minute
	s := New(due, closer, clock, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("waiting for timer: %v", err)
	}
	id := uuid.New()
	due.set(id)
	// Well before the one minute interval, the deadline alone wakes the sweep.
	clock.Advance(10 * time.Second)

	select {
	case got := <-closer.closed:
		if got != id {
			t.Errorf("closed %s, want %s", got, id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not wake at the auction deadline")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestInFlightSessionIsNotRequeued(t *testing.T) {
	clock := clockwork.NewFakeClock()
	id := uuid.New()
	due := &fakeDueLister{ids: []uuid.UUID{id}}
	closer := &fakeCloser{closed: make(chan uuid.UUID, 10), gate: make(chan struct{})}
	s := New(due, closer, clock, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("waiting for ticker: %v", err)
	}
	// Several sweeps pass while the worker is still holding the session.
	for i := 0; i < 3; i++ {
		clock.Advance(time.Second)
		if err := clock.BlockUntilContext(ctx, 1); err != nil {
			t.Fatalf("waiting for next sweep timer: %v", err)
		}
	}
	closer.gate <- struct{}{}

	select {
	case <-closer.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("blocked close never finished")
	}
	select {
	case got := <-closer.closed:
		t.Errorf("session %s closed twice", got)
	default:
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}
