// Package market is the phase controller: it composes the session, nomination,
// auction, acknowledgment and roster apps into whole commands, each executed
// inside one transaction that holds the session row lock.
package market

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonboulle/clockwork"

	"github.com/pietro1412/fantacontratti/internal/acknowledge"
	"github.com/pietro1412/fantacontratti/internal/apperrors"
	"github.com/pietro1412/fantacontratti/internal/auction"
	"github.com/pietro1412/fantacontratti/internal/events"
	"github.com/pietro1412/fantacontratti/internal/models"
	"github.com/pietro1412/fantacontratti/internal/nomination"
	"github.com/pietro1412/fantacontratti/internal/roster"
	"github.com/pietro1412/fantacontratti/internal/session"
)

// Controller drives every market command.
type Controller struct {
	db    DB
	clock clockwork.Clock
}

func NewController(db DB, clock clockwork.Clock) *Controller {
	return &Controller{db: db, clock: clock}
}

// CreateSession opens a new session in SETUP.
func (c *Controller) CreateSession(ctx context.Context, req session.CreateSessionRequest) (*models.Session, error) {
	var sess *models.Session
	err := c.db.InTx(ctx, func(ctx context.Context, s Stores) error {
		var err error
		sess, err = session.NewApp(s.Sessions).CreateSession(ctx, req)
		return err
	})
	return sess, err
}

// AddMember enrolls a member while the session is still in SETUP.
func (c *Controller) AddMember(ctx context.Context, sessionID uuid.UUID, req session.AddMemberRequest) (*models.MemberStatus, error) {
	var member *models.MemberStatus
	err := c.inSession(ctx, sessionID, func(ctx context.Context, s Stores, sess *models.Session) error {
		var err error
		member, err = session.NewApp(s.Sessions).AddMember(ctx, sess, req)
		return err
	})
	return member, err
}

// SetTurnOrder fixes the nomination order. Admin only, once, during SETUP.
func (c *Controller) SetTurnOrder(ctx context.Context, sessionID, actorID uuid.UUID, order []uuid.UUID) error {
	return c.inSession(ctx, sessionID, func(ctx context.Context, s Stores, sess *models.Session) error {
		if err := c.requireAdmin(ctx, s, sessionID, actorID); err != nil {
			return err
		}
		return session.NewApp(s.Sessions).SetTurnOrder(ctx, sess, order)
	})
}

// StartSession moves the session from SETUP to NOMINATING. The first slot of
// the turn order nominates first for the first role in the sequence.
func (c *Controller) StartSession(ctx context.Context, sessionID, actorID uuid.UUID) error {
	return c.inSession(ctx, sessionID, func(ctx context.Context, s Stores, sess *models.Session) error {
		if err := c.requireAdmin(ctx, s, sessionID, actorID); err != nil {
			return err
		}
		if sess.Phase != models.PhaseSetup {
			return apperrors.StateConflict("session already started, phase is %s", sess.Phase)
		}
		if len(sess.TurnOrder) == 0 {
			return apperrors.StateConflict("turn order must be set before starting")
		}
		// Members may have been enrolled after the order was fixed; an
		// active member without a turn slot would strand the turn scan
		// once every listed member's slot is full.
		members, err := s.Sessions.ListActiveMembers(ctx, sessionID)
		if err != nil {
			return err
		}
		if missing := session.MissingFromTurnOrder(sess.TurnOrder, members); len(missing) > 0 {
			return apperrors.StateConflict("turn order does not cover active member %s", missing[0])
		}

		sess.Phase = models.PhaseNominating
		sess.TurnIndex = 0
		sess.CurrentRole = sess.RoleSequence[0]
		if err := s.Sessions.UpdateSessionState(ctx, sess.ID, sess.Phase, sess.TurnIndex, sess.CurrentRole); err != nil {
			return err
		}

		return c.emit(ctx, s, sess.ID, events.TypeSessionStarted, events.SessionStartedPayload{
			SessionID: sess.ID.String(),
			Role:      string(sess.CurrentRole),
			TurnCount: len(sess.TurnOrder),
			StartedAt: c.clock.Now(),
		})
	})
}

// Nominate accepts a nomination from the member holding the current turn and
// opens the ready check.
func (c *Controller) Nominate(ctx context.Context, sessionID, memberID, playerID uuid.UUID, basePrice int64) (*models.PendingNomination, error) {
	var nom *models.PendingNomination
	err := c.inSession(ctx, sessionID, func(ctx context.Context, s Stores, sess *models.Session) error {
		if sess.Phase != models.PhaseNominating {
			return apperrors.StateConflict("nominations are not open, phase is %s", sess.Phase)
		}

		members, err := s.Sessions.ListActiveMembers(ctx, sessionID)
		if err != nil {
			return err
		}
		sessApp := session.NewApp(s.Sessions)
		if err := sessApp.CheckNominator(sess, members, memberID); err != nil {
			return err
		}
		nominator, err := s.Sessions.GetMember(ctx, sessionID, memberID)
		if err != nil {
			return err
		}
		if basePrice > nominator.Budget {
			return apperrors.Budget("base price %d exceeds budget %d", basePrice, nominator.Budget)
		}
		if _, err := roster.NewApp(s.Rosters).CheckNomination(ctx, playerID, sess.CurrentRole); err != nil {
			return err
		}

		now := c.clock.Now()
		nom, err = nomination.NewApp(s.Nominations).Propose(ctx, sess, members, memberID, playerID, basePrice, now)
		if err != nil {
			return err
		}

		sess.Phase = models.PhaseReadyCheck
		if err := s.Sessions.UpdateSessionState(ctx, sess.ID, sess.Phase, sess.TurnIndex, sess.CurrentRole); err != nil {
			return err
		}

		return c.emit(ctx, s, sess.ID, events.TypeNominationProposed, events.NominationProposedPayload{
			SessionID:   sess.ID.String(),
			PlayerID:    playerID.String(),
			NominatorID: memberID.String(),
			BasePrice:   basePrice,
			ProposedAt:  now,
		})
	})
	return nom, err
}

// MarkReady records a member's readiness for the pending nomination.
func (c *Controller) MarkReady(ctx context.Context, sessionID, memberID uuid.UUID) error {
	return c.inSession(ctx, sessionID, func(ctx context.Context, s Stores, sess *models.Session) error {
		if sess.Phase != models.PhaseReadyCheck {
			return apperrors.StateConflict("no ready check in progress, phase is %s", sess.Phase)
		}
		nom, err := c.getNomination(ctx, s, sessionID)
		if err != nil {
			return err
		}

		changed, err := nomination.NewApp(s.Nominations).MarkReady(ctx, nom, memberID)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}

		return c.emit(ctx, s, sess.ID, events.TypeMemberReady, events.MemberReadyPayload{
			SessionID:    sess.ID.String(),
			MemberID:     memberID.String(),
			PendingCount: len(nom.PendingMembers),
			ReadyAt:      c.clock.Now(),
		})
	})
}

// ConfirmNomination lets the nominator turn a fully-ready nomination into a
// live auction.
func (c *Controller) ConfirmNomination(ctx context.Context, sessionID, memberID uuid.UUID) (*models.Auction, error) {
	var auc *models.Auction
	err := c.inSession(ctx, sessionID, func(ctx context.Context, s Stores, sess *models.Session) error {
		if sess.Phase != models.PhaseReadyCheck {
			return apperrors.StateConflict("no ready check in progress, phase is %s", sess.Phase)
		}
		nom, err := c.getNomination(ctx, s, sessionID)
		if err != nil {
			return err
		}
		nomApp := nomination.NewApp(s.Nominations)
		if err := nomApp.CheckConfirm(nom, memberID); err != nil {
			return err
		}

		auc, err = auction.NewApp(s.Auctions, c.clock).Open(ctx, nom, c.auctionDuration(sess))
		if err != nil {
			return err
		}
		if err := nomApp.Clear(ctx, sessionID); err != nil {
			return err
		}

		sess.Phase = models.PhaseBidding
		if err := s.Sessions.UpdateSessionState(ctx, sess.ID, sess.Phase, sess.TurnIndex, sess.CurrentRole); err != nil {
			return err
		}

		return c.emit(ctx, s, sess.ID, events.TypeNominationConfirmed, events.NominationConfirmedPayload{
			SessionID: sess.ID.String(),
			AuctionID: auc.ID.String(),
			PlayerID:  auc.PlayerID.String(),
			BasePrice: auc.BasePrice,
			Deadline:  auc.Deadline,
		})
	})
	return auc, err
}

// CancelNomination tears the pending nomination down before confirmation.
// The nominator keeps the turn; the player stays available.
func (c *Controller) CancelNomination(ctx context.Context, sessionID, memberID uuid.UUID) error {
	return c.inSession(ctx, sessionID, func(ctx context.Context, s Stores, sess *models.Session) error {
		if sess.Phase != models.PhaseReadyCheck {
			return apperrors.StateConflict("no ready check in progress, phase is %s", sess.Phase)
		}
		nom, err := c.getNomination(ctx, s, sessionID)
		if err != nil {
			return err
		}
		actor, err := s.Sessions.GetMember(ctx, sessionID, memberID)
		if err != nil {
			return err
		}
		nomApp := nomination.NewApp(s.Nominations)
		if err := nomApp.CheckCancel(nom, memberID, actor.Admin); err != nil {
			return err
		}
		if err := nomApp.Clear(ctx, sessionID); err != nil {
			return err
		}

		sess.Phase = models.PhaseNominating
		if err := s.Sessions.UpdateSessionState(ctx, sess.ID, sess.Phase, sess.TurnIndex, sess.CurrentRole); err != nil {
			return err
		}

		return c.emit(ctx, s, sess.ID, events.TypeNominationCancelled, events.NominationCancelledPayload{
			SessionID:   sess.ID.String(),
			PlayerID:    nom.PlayerID.String(),
			CancelledBy: memberID.String(),
			CancelledAt: c.clock.Now(),
		})
	})
}

// ForceAllReady is the admin override for a stalled ready check.
func (c *Controller) ForceAllReady(ctx context.Context, sessionID, actorID uuid.UUID) error {
	return c.inSession(ctx, sessionID, func(ctx context.Context, s Stores, sess *models.Session) error {
		if sess.Phase != models.PhaseReadyCheck {
			return apperrors.StateConflict("no ready check in progress, phase is %s", sess.Phase)
		}
		if err := c.requireAdmin(ctx, s, sessionID, actorID); err != nil {
			return err
		}
		nom, err := c.getNomination(ctx, s, sessionID)
		if err != nil {
			return err
		}

		changed, err := nomination.NewApp(s.Nominations).ForceAllReady(ctx, nom)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}

		return c.emit(ctx, s, sess.ID, events.TypeMemberReady, events.MemberReadyPayload{
			SessionID:    sess.ID.String(),
			MemberID:     actorID.String(),
			PendingCount: 0,
			Forced:       true,
			ReadyAt:      c.clock.Now(),
		})
	})
}

// PlaceBid records a bid on the open auction. Touching an expired auction
// closes it instead; there is no timer callback racing this path.
func (c *Controller) PlaceBid(ctx context.Context, sessionID, memberID uuid.UUID, amount int64) (*models.Bid, error) {
	var bid *models.Bid
	// The close of an expired auction must commit even though the bid is
	// rejected, so it cannot be reported as an error from inside the
	// transaction.
	expired := false
	err := c.inSession(ctx, sessionID, func(ctx context.Context, s Stores, sess *models.Session) error {
		if sess.Phase != models.PhaseBidding {
			return apperrors.StateConflict("no auction in progress, phase is %s", sess.Phase)
		}
		auc, err := c.getOpenAuction(ctx, s, sessionID)
		if err != nil {
			return err
		}

		aucApp := auction.NewApp(s.Auctions, c.clock)
		if aucApp.Expired(auc) {
			expired = true
			return c.closeAndSettle(ctx, s, sess, auc)
		}

		bidder, err := s.Sessions.GetMember(ctx, sessionID, memberID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NotFound("member %s not in session", memberID)
			}
			return err
		}
		if !bidder.Active {
			return apperrors.Authorization("member %s is not active", memberID)
		}

		bid, err = aucApp.PlaceBid(ctx, auc, bidder, amount)
		if err != nil {
			return err
		}

		return c.emit(ctx, s, sess.ID, events.TypeBidPlaced, events.BidPlacedPayload{
			SessionID: sess.ID.String(),
			AuctionID: auc.ID.String(),
			BidderID:  bid.BidderID.String(),
			Amount:    bid.Amount,
			PlacedAt:  bid.PlacedAt,
		})
	})
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, apperrors.StateConflict("auction deadline has passed")
	}
	return bid, nil
}

// CloseAuction closes the open auction before its deadline. Admin only.
func (c *Controller) CloseAuction(ctx context.Context, sessionID, actorID uuid.UUID) (auction.Outcome, error) {
	var out auction.Outcome
	err := c.inSession(ctx, sessionID, func(ctx context.Context, s Stores, sess *models.Session) error {
		if sess.Phase != models.PhaseBidding {
			return apperrors.StateConflict("no auction in progress, phase is %s", sess.Phase)
		}
		if err := c.requireAdmin(ctx, s, sessionID, actorID); err != nil {
			return err
		}
		auc, err := c.getOpenAuction(ctx, s, sessionID)
		if err != nil {
			return err
		}
		out, err = c.closeAndSettleOut(ctx, s, sess, auc)
		return err
	})
	return out, err
}

// CloseExpired closes the session's open auction if its deadline has passed.
// It reports whether anything was closed; the sweeper and resync reads call
// it without knowing.
func (c *Controller) CloseExpired(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	closed := false
	err := c.inSession(ctx, sessionID, func(ctx context.Context, s Stores, sess *models.Session) error {
		if sess.Phase != models.PhaseBidding {
			return nil
		}
		auc, err := s.Auctions.GetOpenBySession(ctx, sessionID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return err
		}
		if !auction.NewApp(s.Auctions, c.clock).Expired(auc) {
			return nil
		}
		if err := c.closeAndSettle(ctx, s, sess, auc); err != nil {
			return err
		}
		closed = true
		return nil
	})
	return closed, err
}

// AcknowledgeAuction records one member's confirmation of the last sale. When
// the last active member acknowledges, the gate clears and the turn advances.
func (c *Controller) AcknowledgeAuction(ctx context.Context, sessionID, memberID uuid.UUID, note string) error {
	return c.inSession(ctx, sessionID, func(ctx context.Context, s Stores, sess *models.Session) error {
		if sess.Phase != models.PhaseAckPending {
			return apperrors.StateConflict("no acknowledgment pending, phase is %s", sess.Phase)
		}
		ack, err := c.getAcknowledgment(ctx, s, sessionID)
		if err != nil {
			return err
		}
		members, err := s.Sessions.ListActiveMembers(ctx, sessionID)
		if err != nil {
			return err
		}

		changed, complete, err := acknowledge.NewApp(s.Acks).Acknowledge(ctx, ack, members, memberID, note)
		if err != nil {
			return err
		}
		if note != "" {
			if err := roster.NewApp(s.Rosters).AttachNote(ctx, ack.AuctionID, memberID, note); err != nil {
				return err
			}
		}
		if changed {
			remaining := 0
			for i := range members {
				if members[i].Active && !ack.HasAcknowledged(members[i].MemberID) {
					remaining++
				}
			}
			if err := c.emit(ctx, s, sess.ID, events.TypeAuctionAcknowledged, events.AuctionAcknowledgedPayload{
				SessionID:      sess.ID.String(),
				AuctionID:      ack.AuctionID.String(),
				MemberID:       memberID.String(),
				Remaining:      remaining,
				AcknowledgedAt: c.clock.Now(),
			}); err != nil {
				return err
			}
		}
		if !complete {
			return nil
		}
		return c.finishAcknowledgment(ctx, s, sess, members)
	})
}

// ForceAcknowledgeAll is the admin override for a stalled acknowledgment gate.
func (c *Controller) ForceAcknowledgeAll(ctx context.Context, sessionID, actorID uuid.UUID) error {
	return c.inSession(ctx, sessionID, func(ctx context.Context, s Stores, sess *models.Session) error {
		if sess.Phase != models.PhaseAckPending {
			return apperrors.StateConflict("no acknowledgment pending, phase is %s", sess.Phase)
		}
		if err := c.requireAdmin(ctx, s, sessionID, actorID); err != nil {
			return err
		}
		ack, err := c.getAcknowledgment(ctx, s, sessionID)
		if err != nil {
			return err
		}
		members, err := s.Sessions.ListActiveMembers(ctx, sessionID)
		if err != nil {
			return err
		}

		ackApp := acknowledge.NewApp(s.Acks)
		changed, err := ackApp.ForceAll(ctx, ack, members)
		if err != nil {
			return err
		}
		if changed {
			if err := c.emit(ctx, s, sess.ID, events.TypeAuctionAcknowledged, events.AuctionAcknowledgedPayload{
				SessionID:      sess.ID.String(),
				AuctionID:      ack.AuctionID.String(),
				MemberID:       actorID.String(),
				Remaining:      0,
				Forced:         true,
				AcknowledgedAt: c.clock.Now(),
			}); err != nil {
				return err
			}
		}
		if !ackApp.Complete(ack, members) {
			return nil
		}
		return c.finishAcknowledgment(ctx, s, sess, members)
	})
}

// AdvanceTurn moves the turn cursor manually. Admin only, between auctions.
// When every member's slot for the current role is full the role advances
// instead of stalling.
func (c *Controller) AdvanceTurn(ctx context.Context, sessionID, actorID uuid.UUID) error {
	return c.inSession(ctx, sessionID, func(ctx context.Context, s Stores, sess *models.Session) error {
		if sess.Phase != models.PhaseNominating {
			return apperrors.StateConflict("turn can only advance while nominating, phase is %s", sess.Phase)
		}
		if err := c.requireAdmin(ctx, s, sessionID, actorID); err != nil {
			return err
		}
		members, err := s.Sessions.ListActiveMembers(ctx, sessionID)
		if err != nil {
			return err
		}
		return c.advance(ctx, s, sess, members)
	})
}

// AdvanceRole moves the session to the next role in sequence and resets the
// turn index. Admin only, between auctions.
func (c *Controller) AdvanceRole(ctx context.Context, sessionID, actorID uuid.UUID) error {
	return c.inSession(ctx, sessionID, func(ctx context.Context, s Stores, sess *models.Session) error {
		if sess.Phase != models.PhaseNominating {
			return apperrors.StateConflict("role can only advance while nominating, phase is %s", sess.Phase)
		}
		if err := c.requireAdmin(ctx, s, sessionID, actorID); err != nil {
			return err
		}
		next, ok := sess.NextRole()
		if !ok {
			return apperrors.StateConflict("%s is the last role in the sequence", sess.CurrentRole)
		}

		sess.CurrentRole = next
		sess.TurnIndex = 0
		if err := s.Sessions.UpdateSessionState(ctx, sess.ID, sess.Phase, sess.TurnIndex, sess.CurrentRole); err != nil {
			return err
		}
		return c.emit(ctx, s, sess.ID, events.TypeRoleAdvanced, events.RoleAdvancedPayload{
			SessionID: sess.ID.String(),
			Role:      string(next),
		})
	})
}

// CloseSession ends the session explicitly. Admin only, not while an auction
// or acknowledgment is in flight.
func (c *Controller) CloseSession(ctx context.Context, sessionID, actorID uuid.UUID) error {
	return c.inSession(ctx, sessionID, func(ctx context.Context, s Stores, sess *models.Session) error {
		switch sess.Phase {
		case models.PhaseSessionClosed:
			return apperrors.StateConflict("session is already closed")
		case models.PhaseBidding:
			return apperrors.StateConflict("close the open auction first")
		case models.PhaseAckPending:
			return apperrors.StateConflict("acknowledgments are still pending")
		}
		if err := c.requireAdmin(ctx, s, sessionID, actorID); err != nil {
			return err
		}
		if sess.Phase == models.PhaseReadyCheck {
			if err := nomination.NewApp(s.Nominations).Clear(ctx, sessionID); err != nil {
				return err
			}
		}
		return c.closeSession(ctx, s, sess, "closed by admin")
	})
}

// Heartbeat records member liveness outside the session lock.
func (c *Controller) Heartbeat(ctx context.Context, sessionID, memberID uuid.UUID) error {
	return c.db.InTx(ctx, func(ctx context.Context, s Stores) error {
		return session.NewApp(s.Sessions).Heartbeat(ctx, sessionID, memberID, c.clock.Now())
	})
}

// closeAndSettle closes the auction and routes its outcome.
func (c *Controller) closeAndSettle(ctx context.Context, s Stores, sess *models.Session, auc *models.Auction) error {
	_, err := c.closeAndSettleOut(ctx, s, sess, auc)
	return err
}

// closeAndSettleOut is the single close path for expiry and admin close. A
// won auction settles the sale and opens the acknowledgment gate; an unsold
// one hands the turn straight back to nomination.
func (c *Controller) closeAndSettleOut(ctx context.Context, s Stores, sess *models.Session, auc *models.Auction) (auction.Outcome, error) {
	out, err := auction.NewApp(s.Auctions, c.clock).CloseNow(ctx, auc)
	if err != nil {
		return auction.Outcome{}, err
	}

	if !out.Won() {
		if err := c.emit(ctx, s, sess.ID, events.TypeAuctionUnsold, events.AuctionUnsoldPayload{
			SessionID: sess.ID.String(),
			AuctionID: out.AuctionID.String(),
			PlayerID:  out.PlayerID.String(),
			ClosedAt:  out.ClosedAt,
		}); err != nil {
			return auction.Outcome{}, err
		}
		members, err := s.Sessions.ListActiveMembers(ctx, sess.ID)
		if err != nil {
			return auction.Outcome{}, err
		}
		if err := c.advance(ctx, s, sess, members); err != nil {
			return auction.Outcome{}, err
		}
		return out, nil
	}

	winner, err := s.Sessions.GetMember(ctx, sess.ID, *out.WinnerID)
	if err != nil {
		return auction.Outcome{}, err
	}
	if _, err := roster.NewApp(s.Rosters).Settle(ctx, winner, out.PlayerID, out.AuctionID, sess.CurrentRole, out.Amount, out.ClosedAt); err != nil {
		return auction.Outcome{}, err
	}
	if err := c.emit(ctx, s, sess.ID, events.TypeAuctionClosed, events.AuctionClosedPayload{
		SessionID: sess.ID.String(),
		AuctionID: out.AuctionID.String(),
		PlayerID:  out.PlayerID.String(),
		WinnerID:  out.WinnerID.String(),
		Amount:    out.Amount,
		ClosedAt:  out.ClosedAt,
	}); err != nil {
		return auction.Outcome{}, err
	}

	if _, err := acknowledge.NewApp(s.Acks).Start(ctx, sess.ID, out.AuctionID, out.WinnerID, out.ClosedAt); err != nil {
		return auction.Outcome{}, err
	}
	sess.Phase = models.PhaseAckPending
	if err := s.Sessions.UpdateSessionState(ctx, sess.ID, sess.Phase, sess.TurnIndex, sess.CurrentRole); err != nil {
		return auction.Outcome{}, err
	}
	return out, nil
}

// finishAcknowledgment clears the gate and hands control back to nomination.
func (c *Controller) finishAcknowledgment(ctx context.Context, s Stores, sess *models.Session, members []models.MemberStatus) error {
	if err := acknowledge.NewApp(s.Acks).Clear(ctx, sess.ID); err != nil {
		return err
	}
	return c.advance(ctx, s, sess, members)
}

// advance runs the turn-advance logic: move the cursor past full or inactive
// members, auto-advancing the role when everyone's slot for the current role
// is full, and closing the session when the last role completes.
func (c *Controller) advance(ctx context.Context, s Stores, sess *models.Session, members []models.MemberStatus) error {
	sessApp := session.NewApp(s.Sessions)
	for i := 0; i <= len(sess.RoleSequence); i++ {
		if sessApp.RoleComplete(sess, members) {
			next, ok := sess.NextRole()
			if !ok {
				return c.closeSession(ctx, s, sess, "all rosters complete")
			}
			sess.CurrentRole = next
			// The scan below starts from the top of the turn order.
			sess.TurnIndex = -1
			if err := c.emit(ctx, s, sess.ID, events.TypeRoleAdvanced, events.RoleAdvancedPayload{
				SessionID: sess.ID.String(),
				Role:      string(next),
			}); err != nil {
				return err
			}
			continue
		}

		adv := sessApp.AdvanceTurn(sess, members)
		if adv.AllFull {
			return apperrors.StateConflict("no member in the turn order has a free %s slot", sess.CurrentRole)
		}
		sess.TurnIndex = adv.TurnIndex
		sess.Phase = models.PhaseNominating
		if err := s.Sessions.UpdateSessionState(ctx, sess.ID, sess.Phase, sess.TurnIndex, sess.CurrentRole); err != nil {
			return err
		}
		return c.emit(ctx, s, sess.ID, events.TypeTurnAdvanced, events.TurnAdvancedPayload{
			SessionID:   sess.ID.String(),
			TurnIndex:   adv.TurnIndex,
			MemberID:    adv.MemberID.String(),
			SkippedFull: adv.Skipped,
		})
	}
	return apperrors.StateConflict("unable to advance session %s", sess.ID)
}

func (c *Controller) closeSession(ctx context.Context, s Stores, sess *models.Session, reason string) error {
	sess.Phase = models.PhaseSessionClosed
	if err := s.Sessions.UpdateSessionState(ctx, sess.ID, sess.Phase, sess.TurnIndex, sess.CurrentRole); err != nil {
		return err
	}
	return c.emit(ctx, s, sess.ID, events.TypeSessionClosed, events.SessionClosedPayload{
		SessionID: sess.ID.String(),
		ClosedAt:  c.clock.Now(),
		Reason:    reason,
	})
}

func (c *Controller) auctionDuration(sess *models.Session) time.Duration {
	return time.Duration(sess.AuctionSeconds) * time.Second
}

func (c *Controller) emit(ctx context.Context, s Stores, sessionID uuid.UUID, eventType string, payload any) error {
	return s.Outbox.Insert(ctx, sessionID, eventType, payload, c.clock.Now())
}

func (c *Controller) requireAdmin(ctx context.Context, s Stores, sessionID, actorID uuid.UUID) error {
	actor, err := s.Sessions.GetMember(ctx, sessionID, actorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("member %s not in session", actorID)
		}
		return err
	}
	if !actor.Admin {
		return apperrors.Authorization("member %s is not an admin", actorID)
	}
	return nil
}

func (c *Controller) getNomination(ctx context.Context, s Stores, sessionID uuid.UUID) (*models.PendingNomination, error) {
	nom, err := s.Nominations.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("no pending nomination for session %s", sessionID)
		}
		return nil, err
	}
	return nom, nil
}

func (c *Controller) getAcknowledgment(ctx context.Context, s Stores, sessionID uuid.UUID) (*models.PendingAcknowledgment, error) {
	ack, err := s.Acks.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("no pending acknowledgment for session %s", sessionID)
		}
		return nil, err
	}
	return ack, nil
}

func (c *Controller) getOpenAuction(ctx context.Context, s Stores, sessionID uuid.UUID) (*models.Auction, error) {
	auc, err := s.Auctions.GetOpenBySession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.StateConflict("no open auction for session %s", sessionID)
		}
		return nil, err
	}
	return auc, nil
}

func (c *Controller) inSession(ctx context.Context, sessionID uuid.UUID, fn func(ctx context.Context, s Stores, sess *models.Session) error) error {
	err := c.db.InSessionTx(ctx, sessionID, fn)
	if err != nil && errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NotFound("session %s not found", sessionID)
	}
	return err
}
