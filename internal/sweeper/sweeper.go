// Package sweeper reconciles expired auctions in the background. Expiry is
// lazy: the deadline is a stored timestamp that commands re-check on touch,
// and the sweeper is what closes auctions nobody is touching. Its interval
// only bounds how stale an idle session can get.
package sweeper

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/pietro1412/fantacontratti/internal/auction"
)

// Closer closes a session's expired auction if there is one.
type Closer interface {
	CloseExpired(ctx context.Context, sessionID uuid.UUID) (bool, error)
}

// DueLister lists sessions whose open auction deadline has passed and the
// nearest deadline still ahead, so sweeps can wake early for it.
type DueLister interface {
	ListDueSessions(ctx context.Context, now time.Time, limit int32) ([]uuid.UUID, error)
	NextDeadline(ctx context.Context) (*auction.NextDeadline, error)
}

// Config holds the sweep knobs.
type Config struct {
	Interval  time.Duration
	Workers   int
	BatchSize int32
}

func DefaultConfig() Config {
	return Config{
		Interval:  5 * time.Second,
		Workers:   4,
		BatchSize: 100,
	}
}

// Sweeper polls for due sessions and fans the closes out to a worker pool.
// The in-flight set keeps one session from being enqueued twice while a
// worker is still on it.
type Sweeper struct {
	due    DueLister
	closer Closer
	clock  clockwork.Clock
	config Config

	workCh chan uuid.UUID

	inFlightMu sync.Mutex
	inFlight   map[uuid.UUID]bool
}

func New(due DueLister, closer Closer, clock clockwork.Clock, cfg Config) *Sweeper {
	return &Sweeper{
		due:      due,
		closer:   closer,
		clock:    clock,
		config:   cfg,
		workCh:   make(chan uuid.UUID, cfg.BatchSize),
		inFlight: make(map[uuid.UUID]bool),
	}
}

// Run sweeps until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	log.Info().
		Dur("interval", s.config.Interval).
		Int("workers", s.config.Workers).
		Msg("sweeper started")

	var wg sync.WaitGroup
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go s.worker(workerCtx, &wg, i)
	}

	for {
		s.sweep(ctx)

		timer := s.clock.NewTimer(s.nextWait(ctx))
		select {
		case <-ctx.Done():
			timer.Stop()
			cancelWorkers()
			close(s.workCh)
			wg.Wait()
			log.Info().Msg("sweeper stopped")
			return nil
		case <-timer.Chan():
		}
	}
}

// minWait floors the sleep so a due session still being worked on cannot
// spin the loop.
const minWait = 100 * time.Millisecond

// nextWait sleeps until the nearest open deadline when that lands before the
// next scheduled sweep; otherwise the configured interval stands.
func (s *Sweeper) nextWait(ctx context.Context) time.Duration {
	wait := s.config.Interval
	nd, err := s.due.NextDeadline(ctx)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			log.Error().Err(err).Msg("failed to query next auction deadline")
		}
		return wait
	}
	if d := nd.Deadline.Sub(s.clock.Now()); d < wait {
		wait = d
	}
	if wait < minWait {
		wait = minWait
	}
	return wait
}

// sweep enqueues every due session not already being handled.
func (s *Sweeper) sweep(ctx context.Context) {
	ids, err := s.due.ListDueSessions(ctx, s.clock.Now(), s.config.BatchSize)
	if err != nil {
		log.Error().Err(err).Msg("failed to list due sessions")
		return
	}

	for _, id := range ids {
		if !s.markInFlight(id) {
			continue
		}
		select {
		case s.workCh <- id:
		default:
			s.clearInFlight(id)
			log.Warn().Str("session_id", id.String()).Msg("sweep channel full, session deferred to next sweep")
		}
	}
}

func (s *Sweeper) worker(ctx context.Context, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-s.workCh:
			if !ok {
				return
			}

			closed, err := s.closer.CloseExpired(ctx, id)
			s.clearInFlight(id)
			if err != nil {
				log.Error().
					Err(err).
					Str("session_id", id.String()).
					Int("worker_id", workerID).
					Msg("failed to close expired auction")
				continue
			}
			if closed {
				log.Info().
					Str("session_id", id.String()).
					Int("worker_id", workerID).
					Msg("expired auction closed by sweep")
			}
		}
	}
}

func (s *Sweeper) markInFlight(id uuid.UUID) bool {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	if s.inFlight[id] {
		return false
	}
	s.inFlight[id] = true
	return true
}

func (s *Sweeper) clearInFlight(id uuid.UUID) {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	delete(s.inFlight, id)
}
