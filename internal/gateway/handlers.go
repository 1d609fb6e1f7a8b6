package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/pietro1412/fantacontratti/internal/apperrors"
	"github.com/pietro1412/fantacontratti/internal/config"
	"github.com/pietro1412/fantacontratti/internal/market"
	"github.com/pietro1412/fantacontratti/internal/models"
	"github.com/pietro1412/fantacontratti/internal/session"
)

// Service wires the market controller to HTTP.
type Service struct {
	controller        *market.Controller
	connectionManager *ConnectionManager
	clock             clockwork.Clock
	market            config.MarketConfig
}

func NewService(controller *market.Controller, cm *ConnectionManager, clock clockwork.Clock, market config.MarketConfig) *Service {
	return &Service{controller: controller, connectionManager: cm, clock: clock, market: market}
}

type createSessionRequest struct {
	LeagueID       uuid.UUID     `json:"league_id"`
	RoleSequence   []models.Role `json:"role_sequence,omitempty"`
	AuctionSeconds int           `json:"auction_seconds"`
}

type addMemberRequest struct {
	MemberID  uuid.UUID           `json:"member_id"`
	Admin     bool                `json:"admin"`
	Budget    int64               `json:"budget"`
	SlotLimit map[models.Role]int `json:"slot_limit"`
}

type turnOrderRequest struct {
	MemberID uuid.UUID   `json:"member_id"`
	Order    []uuid.UUID `json:"order"`
}

type memberRequest struct {
	MemberID uuid.UUID `json:"member_id"`
}

type nominateRequest struct {
	MemberID  uuid.UUID `json:"member_id"`
	PlayerID  uuid.UUID `json:"player_id"`
	BasePrice int64     `json:"base_price"`
}

type bidRequest struct {
	MemberID uuid.UUID `json:"member_id"`
	Amount   int64     `json:"amount"`
}

type acknowledgeRequest struct {
	MemberID uuid.UUID `json:"member_id"`
	Note     string    `json:"note,omitempty"`
}

func (s *Service) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !decode(w, r, &req) {
		return
	}
	sess, err := s.controller.CreateSession(r.Context(), session.CreateSessionRequest{
		LeagueID:       req.LeagueID,
		RoleSequence:   req.RoleSequence,
		AuctionSeconds: s.auctionSeconds(req.AuctionSeconds),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Service) handleAddMember(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionParam(w, r)
	if !ok {
		return
	}
	var req addMemberRequest
	if !decode(w, r, &req) {
		return
	}
	member, err := s.controller.AddMember(r.Context(), sessionID, session.AddMemberRequest{
		MemberID:  req.MemberID,
		Admin:     req.Admin,
		Budget:    req.Budget,
		SlotLimit: req.SlotLimit,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

func (s *Service) handleSetTurnOrder(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionParam(w, r)
	if !ok {
		return
	}
	var req turnOrderRequest
	if !decode(w, r, &req) {
		return
	}
	s.command(w, s.controller.SetTurnOrder(r.Context(), sessionID, req.MemberID, req.Order))
}

func (s *Service) handleStartSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionParam(w, r)
	if !ok {
		return
	}
	var req memberRequest
	if !decode(w, r, &req) {
		return
	}
	s.command(w, s.controller.StartSession(r.Context(), sessionID, req.MemberID))
}

func (s *Service) handleNominate(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionParam(w, r)
	if !ok {
		return
	}
	var req nominateRequest
	if !decode(w, r, &req) {
		return
	}
	nom, err := s.controller.Nominate(r.Context(), sessionID, req.MemberID, req.PlayerID, req.BasePrice)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, nom)
}

func (s *Service) handleMarkReady(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionParam(w, r)
	if !ok {
		return
	}
	var req memberRequest
	if !decode(w, r, &req) {
		return
	}
	s.command(w, s.controller.MarkReady(r.Context(), sessionID, req.MemberID))
}

func (s *Service) handleConfirmNomination(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionParam(w, r)
	if !ok {
		return
	}
	var req memberRequest
	if !decode(w, r, &req) {
		return
	}
	auc, err := s.controller.ConfirmNomination(r.Context(), sessionID, req.MemberID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, auc)
}

func (s *Service) handleCancelNomination(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionParam(w, r)
	if !ok {
		return
	}
	var req memberRequest
	if !decode(w, r, &req) {
		return
	}
	s.command(w, s.controller.CancelNomination(r.Context(), sessionID, req.MemberID))
}

func (s *Service) handleForceAllReady(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionParam(w, r)
	if !ok {
		return
	}
	var req memberRequest
	if !decode(w, r, &req) {
		return
	}
	s.command(w, s.controller.ForceAllReady(r.Context(), sessionID, req.MemberID))
}

func (s *Service) handlePlaceBid(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionParam(w, r)
	if !ok {
		return
	}
	var req bidRequest
	if !decode(w, r, &req) {
		return
	}
	bid, err := s.controller.PlaceBid(r.Context(), sessionID, req.MemberID, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bid)
}

func (s *Service) handleCloseAuction(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionParam(w, r)
	if !ok {
		return
	}
	var req memberRequest
	if !decode(w, r, &req) {
		return
	}
	out, err := s.controller.CloseAuction(r.Context(), sessionID, req.MemberID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Service) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionParam(w, r)
	if !ok {
		return
	}
	var req acknowledgeRequest
	if !decode(w, r, &req) {
		return
	}
	s.command(w, s.controller.AcknowledgeAuction(r.Context(), sessionID, req.MemberID, req.Note))
}

func (s *Service) handleForceAcknowledgeAll(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionParam(w, r)
	if !ok {
		return
	}
	var req memberRequest
	if !decode(w, r, &req) {
		return
	}
	s.command(w, s.controller.ForceAcknowledgeAll(r.Context(), sessionID, req.MemberID))
}

func (s *Service) handleAdvanceTurn(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionParam(w, r)
	if !ok {
		return
	}
	var req memberRequest
	if !decode(w, r, &req) {
		return
	}
	s.command(w, s.controller.AdvanceTurn(r.Context(), sessionID, req.MemberID))
}

func (s *Service) handleAdvanceRole(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionParam(w, r)
	if !ok {
		return
	}
	var req memberRequest
	if !decode(w, r, &req) {
		return
	}
	s.command(w, s.controller.AdvanceRole(r.Context(), sessionID, req.MemberID))
}

func (s *Service) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionParam(w, r)
	if !ok {
		return
	}
	var req memberRequest
	if !decode(w, r, &req) {
		return
	}
	s.command(w, s.controller.CloseSession(r.Context(), sessionID, req.MemberID))
}

func (s *Service) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionParam(w, r)
	if !ok {
		return
	}
	var req memberRequest
	if !decode(w, r, &req) {
		return
	}
	s.command(w, s.controller.Heartbeat(r.Context(), sessionID, req.MemberID))
}

// handleState is the resync read. Touching the session settles any expired
// auction first, so the snapshot never shows a deadline in the past as open.
func (s *Service) handleState(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionParam(w, r)
	if !ok {
		return
	}
	if _, err := s.controller.CloseExpired(r.Context(), sessionID); err != nil {
		writeError(w, err)
		return
	}
	snap, err := s.controller.Snapshot(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.stateResponse(snap))
}

// handleWebSocket upgrades to the push channel for one session.
func (s *Service) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionParam(w, r)
	if !ok {
		return
	}
	memberID := r.URL.Query().Get("member_id")
	if memberID == "" {
		writeError(w, apperrors.Validation("member_id query parameter is required"))
		return
	}
	if err := s.connectionManager.UpgradeConnection(w, r, memberID, sessionID); err != nil {
		log.Error().Err(err).Str("session_id", sessionID.String()).Msg("websocket upgrade failed")
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"connections": s.connectionManager.ConnectionStats(),
	})
}

// auctionSeconds falls back to the configured default when the request
// leaves the auction duration unset.
func (s *Service) auctionSeconds(requested int) int {
	if requested == 0 {
		return s.market.AuctionSeconds
	}
	return requested
}

func (s *Service) command(w http.ResponseWriter, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func sessionParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, apperrors.Validation("invalid session id"))
		return uuid.Nil, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, apperrors.Validation("invalid request body: %v", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

type errorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// writeError maps the failure taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	kind := apperrors.KindOf(err)
	switch kind {
	case apperrors.KindValidation:
		status = http.StatusBadRequest
	case apperrors.KindAuthorization:
		status = http.StatusForbidden
	case apperrors.KindStateConflict:
		status = http.StatusConflict
	case apperrors.KindNotFound:
		status = http.StatusNotFound
	case apperrors.KindBudget, apperrors.KindSlot:
		status = http.StatusUnprocessableEntity
	}

	var appErr *apperrors.Error
	message := "internal error"
	if errors.As(err, &appErr) {
		message = appErr.Msg
	} else {
		log.Error().Err(err).Msg("unclassified error")
	}

	writeJSON(w, status, errorResponse{Kind: string(kind), Message: message})
}
