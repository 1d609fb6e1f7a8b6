package market

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pietro1412/fantacontratti/internal/apperrors"
	"github.com/pietro1412/fantacontratti/internal/models"
)

// Snapshot is the pull-style current-state read: everything a disconnected
// client needs to resynchronize in one response.
type Snapshot struct {
	Session        *models.Session               `json:"session"`
	Members        []models.MemberStatus         `json:"members"`
	Auction        *models.Auction               `json:"auction,omitempty"`
	Bids           []models.Bid                  `json:"bids,omitempty"`
	Nomination     *models.PendingNomination     `json:"nomination,omitempty"`
	Acknowledgment *models.PendingAcknowledgment `json:"acknowledgment,omitempty"`
	Movements      []models.Movement             `json:"movements,omitempty"`
}

// Snapshot loads the session's full state in one read transaction.
func (c *Controller) Snapshot(ctx context.Context, sessionID uuid.UUID) (*Snapshot, error) {
	var snap Snapshot
	err := c.db.InTx(ctx, func(ctx context.Context, s Stores) error {
		sess, err := s.Sessions.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		snap.Session = sess

		if snap.Members, err = s.Sessions.ListActiveMembers(ctx, sessionID); err != nil {
			return err
		}

		auc, err := s.Auctions.GetOpenBySession(ctx, sessionID)
		switch {
		case err == nil:
			snap.Auction = auc
			if snap.Bids, err = s.Auctions.ListBids(ctx, auc.ID); err != nil {
				return err
			}
		case !errors.Is(err, pgx.ErrNoRows):
			return err
		}

		nom, err := s.Nominations.Get(ctx, sessionID)
		switch {
		case err == nil:
			snap.Nomination = nom
		case !errors.Is(err, pgx.ErrNoRows):
			return err
		}

		ack, err := s.Acks.Get(ctx, sessionID)
		switch {
		case err == nil:
			snap.Acknowledgment = ack
		case !errors.Is(err, pgx.ErrNoRows):
			return err
		}

		snap.Movements, err = s.Rosters.ListMovements(ctx, sessionID)
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("session %s not found", sessionID)
		}
		return nil, err
	}
	return &snap, nil
}
