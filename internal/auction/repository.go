package auction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pietro1412/fantacontratti/internal/database"
	"github.com/pietro1412/fantacontratti/internal/models"
)

// Repository persists auctions and their immutable bid ledger.
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

const auctionColumns = `id, session_id, player_id, base_price, current_price, leader_id, deadline, status, created_at, closed_at`

func (r *Repository) Create(ctx context.Context, a *models.Auction) error {
	if _, err := r.db.Exec(ctx, `
		INSERT INTO auctions (id, session_id, player_id, base_price, current_price, leader_id, deadline, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.SessionID, a.PlayerID, a.BasePrice, a.CurrentPrice, a.LeaderID, a.Deadline, a.Status, a.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to create auction: %w", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	row := r.db.QueryRow(ctx, `SELECT `+auctionColumns+` FROM auctions WHERE id = $1`, id)
	a, err := scanAuction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	return a, nil
}

// GetOpenBySession returns the session's open auction, pgx.ErrNoRows when
// there is none. The one-open-auction-per-session invariant is enforced by a
// partial unique index on (session_id) WHERE status = 'OPEN'.
func (r *Repository) GetOpenBySession(ctx context.Context, sessionID uuid.UUID) (*models.Auction, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+auctionColumns+` FROM auctions
		WHERE session_id = $1 AND status = $2`,
		sessionID, models.AuctionStatusOpen,
	)
	a, err := scanAuction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get open auction: %w", err)
	}
	return a, nil
}

// CompareAndSetPrice raises the current price and leader only if the price
// the bidder saw is still current. A false return is the stale-price
// conflict: a concurrent bid won this price point first.
func (r *Repository) CompareAndSetPrice(ctx context.Context, auctionID uuid.UUID, expectedPrice, newPrice int64, leaderID uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE auctions SET current_price = $3, leader_id = $4
		WHERE id = $1 AND current_price = $2 AND status = $5`,
		auctionID, expectedPrice, newPrice, leaderID, models.AuctionStatusOpen,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update auction price: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) InsertBid(ctx context.Context, b *models.Bid) error {
	if _, err := r.db.Exec(ctx, `
		INSERT INTO bids (id, auction_id, bidder_id, amount, placed_at, cancelled)
		VALUES ($1, $2, $3, $4, $5, false)`,
		b.ID, b.AuctionID, b.BidderID, b.Amount, b.PlacedAt,
	); err != nil {
		return fmt.Errorf("failed to insert bid: %w", err)
	}
	return nil
}

func (r *Repository) ListBids(ctx context.Context, auctionID uuid.UUID) ([]models.Bid, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, auction_id, bidder_id, amount, placed_at, cancelled
		FROM bids WHERE auction_id = $1 ORDER BY placed_at`,
		auctionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}
	defer rows.Close()

	var bids []models.Bid
	for rows.Next() {
		var b models.Bid
		if err := rows.Scan(&b.ID, &b.AuctionID, &b.BidderID, &b.Amount, &b.PlacedAt, &b.Cancelled); err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		bids = append(bids, b)
	}
	return bids, rows.Err()
}

// Close marks the auction CLOSED or NO_BIDS.
func (r *Repository) Close(ctx context.Context, auctionID uuid.UUID, status models.AuctionStatus, closedAt time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE auctions SET status = $2, closed_at = $3
		WHERE id = $1 AND status = $4`,
		auctionID, status, closedAt, models.AuctionStatusOpen,
	)
	if err != nil {
		return fmt.Errorf("failed to close auction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// NextDeadline returns the nearest deadline among open auctions, pgx.ErrNoRows
// when none are open.
func (r *Repository) NextDeadline(ctx context.Context) (*NextDeadline, error) {
	row := r.db.QueryRow(ctx, `
		SELECT session_id, id, deadline FROM auctions
		WHERE status = $1
		ORDER BY deadline ASC
		LIMIT 1`,
		models.AuctionStatusOpen,
	)

	var nd NextDeadline
	if err := row.Scan(&nd.SessionID, &nd.AuctionID, &nd.Deadline); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to fetch next deadline: %w", err)
	}
	return &nd, nil
}

// ListDueSessions returns sessions whose open auction deadline has passed.
func (r *Repository) ListDueSessions(ctx context.Context, now time.Time, limit int32) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
		SELECT session_id FROM auctions
		WHERE status = $1 AND deadline <= $2
		ORDER BY deadline ASC
		LIMIT $3`,
		models.AuctionStatusOpen, now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list due sessions: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanAuction(row pgx.Row) (*models.Auction, error) {
	var a models.Auction
	if err := row.Scan(
		&a.ID, &a.SessionID, &a.PlayerID, &a.BasePrice, &a.CurrentPrice,
		&a.LeaderID, &a.Deadline, &a.Status, &a.CreatedAt, &a.ClosedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}
