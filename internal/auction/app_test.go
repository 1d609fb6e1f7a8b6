package auction

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonboulle/clockwork"

	"github.com/pietro1412/fantacontratti/internal/apperrors"
	"github.com/pietro1412/fantacontratti/internal/models"
)

type fakeRepo struct {
	auctions map[uuid.UUID]*models.Auction
	bids     map[uuid.UUID][]models.Bid
	// casFail forces one stale-price conflict regardless of the stored price.
	casFail bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		auctions: make(map[uuid.UUID]*models.Auction),
		bids:     make(map[uuid.UUID][]models.Bid),
	}
}

func (f *fakeRepo) Create(ctx context.Context, a *models.Auction) error {
	stored := *a
	f.auctions[a.ID] = &stored
	return nil
}

func (f *fakeRepo) Get(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	a, ok := f.auctions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return a, nil
}

func (f *fakeRepo) GetOpenBySession(ctx context.Context, sessionID uuid.UUID) (*models.Auction, error) {
	for _, a := range f.auctions {
		if a.SessionID == sessionID && a.Status == models.AuctionStatusOpen {
			return a, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeRepo) CompareAndSetPrice(ctx context.Context, auctionID uuid.UUID, expectedPrice, newPrice int64, leaderID uuid.UUID) (bool, error) {
	if f.casFail {
		f.casFail = false
		return false, nil
	}
	a, ok := f.auctions[auctionID]
	if !ok || a.Status != models.AuctionStatusOpen || a.CurrentPrice != expectedPrice {
		return false, nil
	}
	a.CurrentPrice = newPrice
	a.LeaderID = &leaderID
	return true, nil
}

func (f *fakeRepo) InsertBid(ctx context.Context, b *models.Bid) error {
	f.bids[b.AuctionID] = append(f.bids[b.AuctionID], *b)
	return nil
}

func (f *fakeRepo) ListBids(ctx context.Context, auctionID uuid.UUID) ([]models.Bid, error) {
	return f.bids[auctionID], nil
}

func (f *fakeRepo) Close(ctx context.Context, auctionID uuid.UUID, status models.AuctionStatus, closedAt time.Time) error {
	a, ok := f.auctions[auctionID]
	if !ok || a.Status != models.AuctionStatusOpen {
		return pgx.ErrNoRows
	}
	a.Status = status
	a.ClosedAt = &closedAt
	return nil
}

func (f *fakeRepo) NextDeadline(ctx context.Context) (*NextDeadline, error) {
	var nd *NextDeadline
	for _, a := range f.auctions {
		if a.Status != models.AuctionStatusOpen {
			continue
		}
		if nd == nil || a.Deadline.Before(nd.Deadline) {
			nd = &NextDeadline{SessionID: a.SessionID, AuctionID: a.ID, Deadline: a.Deadline}
		}
	}
	if nd == nil {
		return nil, pgx.ErrNoRows
	}
	return nd, nil
}

func (f *fakeRepo) ListDueSessions(ctx context.Context, now time.Time, limit int32) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, a := range f.auctions {
		if a.Status == models.AuctionStatusOpen && !now.Before(a.Deadline) {
			ids = append(ids, a.SessionID)
		}
	}
	return ids, nil
}

func bidder(id uuid.UUID, budget int64) *models.MemberStatus {
	return &models.MemberStatus{MemberID: id, Active: true, Budget: budget}
}

func openAuction(t *testing.T, app *App, duration time.Duration) *models.Auction {
	t.Helper()
	auc, err := app.Open(context.Background(), &models.PendingNomination{
		SessionID: uuid.New(),
		PlayerID:  uuid.New(),
		BasePrice: 10,
	}, duration)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return auc
}

func TestOpenSeedsPriceAndDeadline(t *testing.T) {
	clock := clockwork.NewFakeClock()
	app := NewApp(newFakeRepo(), clock)

	auc := openAuction(t, app, time.Minute)
	if auc.CurrentPrice != auc.BasePrice {
		t.Errorf("current price = %d, want base %d", auc.CurrentPrice, auc.BasePrice)
	}
	if auc.HasLeader() {
		t.Error("new auction has a leader")
	}
	if want := clock.Now().Add(time.Minute); !auc.Deadline.Equal(want) {
		t.Errorf("deadline = %v, want %v", auc.Deadline, want)
	}
	if app.Expired(auc) {
		t.Error("new auction already expired")
	}
}

func TestPlaceBidRules(t *testing.T) {
	m1, m2 := uuid.New(), uuid.New()

	tests := []struct {
		name     string
		amount   int64
		budget   int64
		setup    func(app *App, auc *models.Auction)
		wantKind apperrors.Kind
	}{
		{
			name:   "accepts a beating bid",
			amount: 11,
			budget: 100,
		},
		{
			name:     "rejects bid equal to current price",
			amount:   10,
			budget:   100,
			wantKind: apperrors.KindStateConflict,
		},
		{
			name:     "rejects bid below current price",
			amount:   5,
			budget:   100,
			wantKind: apperrors.KindStateConflict,
		},
		{
			name:     "rejects zero bid",
			amount:   0,
			budget:   100,
			wantKind: apperrors.KindValidation,
		},
		{
			name:     "rejects bid beyond budget",
			amount:   101,
			budget:   100,
			wantKind: apperrors.KindBudget,
		},
		{
			name:   "rejects leader outbidding itself",
			amount: 20,
			budget: 100,
			setup: func(app *App, auc *models.Auction) {
				if _, err := app.PlaceBid(context.Background(), auc, bidder(m2, 100), 15); err != nil {
					t.Fatalf("setup bid: %v", err)
				}
			},
			wantKind: apperrors.KindStateConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := clockwork.NewFakeClock()
			app := NewApp(newFakeRepo(), clock)
			auc := openAuction(t, app, time.Minute)
			if tt.setup != nil {
				tt.setup(app, auc)
			}

			who := m1
			if tt.name == "rejects leader outbidding itself" {
				who = m2
			}
			bid, err := app.PlaceBid(context.Background(), auc, bidder(who, tt.budget), tt.amount)
			if tt.wantKind != "" {
				if !apperrors.IsKind(err, tt.wantKind) {
					t.Fatalf("got %v, want kind %s", err, tt.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("PlaceBid: %v", err)
			}
			if auc.CurrentPrice != tt.amount {
				t.Errorf("current price = %d, want %d", auc.CurrentPrice, tt.amount)
			}
			if auc.LeaderID == nil || *auc.LeaderID != bid.BidderID {
				t.Error("leader not updated to bidder")
			}
		})
	}
}

func TestPlaceBidAfterDeadline(t *testing.T) {
	clock := clockwork.NewFakeClock()
	app := NewApp(newFakeRepo(), clock)
	auc := openAuction(t, app, time.Minute)

	clock.Advance(time.Minute)
	if !app.Expired(auc) {
		t.Fatal("auction not expired at deadline")
	}

	_, err := app.PlaceBid(context.Background(), auc, bidder(uuid.New(), 100), 20)
	if !apperrors.IsKind(err, apperrors.KindStateConflict) {
		t.Errorf("got %v, want state conflict", err)
	}
}

func TestPlaceBidStalePrice(t *testing.T) {
	clock := clockwork.NewFakeClock()
	repo := newFakeRepo()
	app := NewApp(repo, clock)
	auc := openAuction(t, app, time.Minute)

	repo.casFail = true
	_, err := app.PlaceBid(context.Background(), auc, bidder(uuid.New(), 100), 20)
	if !apperrors.IsKind(err, apperrors.KindStateConflict) {
		t.Fatalf("got %v, want state conflict", err)
	}
	// The in-memory auction must not have moved on a rejected bid.
	if auc.CurrentPrice != auc.BasePrice || auc.HasLeader() {
		t.Error("auction mutated despite stale-price rejection")
	}
}

func TestCloseNow(t *testing.T) {
	t.Run("with leader settles winner at final price", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		app := NewApp(newFakeRepo(), clock)
		auc := openAuction(t, app, time.Minute)

		winner := uuid.New()
		if _, err := app.PlaceBid(context.Background(), auc, bidder(winner, 100), 25); err != nil {
			t.Fatalf("PlaceBid: %v", err)
		}

		out, err := app.CloseNow(context.Background(), auc)
		if err != nil {
			t.Fatalf("CloseNow: %v", err)
		}
		if !out.Won() {
			t.Fatal("outcome not won despite leader")
		}
		if *out.WinnerID != winner || out.Amount != 25 {
			t.Errorf("outcome = (%s, %d), want (%s, 25)", out.WinnerID, out.Amount, winner)
		}
		if auc.Status != models.AuctionStatusClosed {
			t.Errorf("status = %s, want CLOSED", auc.Status)
		}
	})

	t.Run("without bids goes unsold", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		app := NewApp(newFakeRepo(), clock)
		auc := openAuction(t, app, time.Minute)

		out, err := app.CloseNow(context.Background(), auc)
		if err != nil {
			t.Fatalf("CloseNow: %v", err)
		}
		if out.Won() {
			t.Fatal("outcome won without bids")
		}
		if auc.Status != models.AuctionStatusNoBids {
			t.Errorf("status = %s, want NO_BIDS", auc.Status)
		}
	})

	t.Run("second close conflicts", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		app := NewApp(newFakeRepo(), clock)
		auc := openAuction(t, app, time.Minute)

		if _, err := app.CloseNow(context.Background(), auc); err != nil {
			t.Fatalf("first close: %v", err)
		}
		if _, err := app.CloseNow(context.Background(), auc); !apperrors.IsKind(err, apperrors.KindStateConflict) {
			t.Errorf("got %v, want state conflict", err)
		}
	})
}
