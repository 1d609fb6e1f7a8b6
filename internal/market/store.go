package market

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pietro1412/fantacontratti/internal/acknowledge"
	"github.com/pietro1412/fantacontratti/internal/auction"
	"github.com/pietro1412/fantacontratti/internal/database"
	"github.com/pietro1412/fantacontratti/internal/models"
	"github.com/pietro1412/fantacontratti/internal/nomination"
	"github.com/pietro1412/fantacontratti/internal/outbox"
	"github.com/pietro1412/fantacontratti/internal/roster"
	"github.com/pietro1412/fantacontratti/internal/session"
)

// OutboxStore records events in the same transaction as the state change
// they describe.
type OutboxStore interface {
	Insert(ctx context.Context, sessionID uuid.UUID, eventType string, payload any, at time.Time) error
}

// Stores bundles one transaction's view of every repository the controller
// drives.
type Stores struct {
	Sessions    session.SessionRepository
	Nominations nomination.NominationRepository
	Auctions    auction.AuctionRepository
	Acks        acknowledge.AckRepository
	Rosters     roster.RosterRepository
	Outbox      OutboxStore
}

// DB runs controller functions transactionally. InSessionTx locks the
// session row before handing control to fn; that row lock serializes every
// command against the same session, so phase checks read settled state.
type DB interface {
	InSessionTx(ctx context.Context, sessionID uuid.UUID, fn func(ctx context.Context, s Stores, sess *models.Session) error) error
	InTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}

// PgxDB is the production DB backed by a pgx pool.
type PgxDB struct {
	pool *pgxpool.Pool
}

func NewPgxDB(pool *pgxpool.Pool) *PgxDB {
	return &PgxDB{pool: pool}
}

func (d *PgxDB) InSessionTx(ctx context.Context, sessionID uuid.UUID, fn func(ctx context.Context, s Stores, sess *models.Session) error) error {
	return database.WithTx(ctx, d.pool, func(tx pgx.Tx) error {
		sessions := session.NewRepository(tx)
		sess, err := sessions.GetSessionForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		return fn(ctx, stores(tx, sessions), sess)
	})
}

func (d *PgxDB) InTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error {
	return database.WithTx(ctx, d.pool, func(tx pgx.Tx) error {
		return fn(ctx, stores(tx, session.NewRepository(tx)))
	})
}

func stores(tx pgx.Tx, sessions *session.Repository) Stores {
	return Stores{
		Sessions:    sessions,
		Nominations: nomination.NewRepository(tx),
		Auctions:    auction.NewRepository(tx),
		Acks:        acknowledge.NewRepository(tx),
		Rosters:     roster.NewRepository(tx),
		Outbox:      outbox.NewRepository(tx),
	}
}
