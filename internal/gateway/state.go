package gateway

import (
	"time"

	"github.com/google/uuid"

	"github.com/pietro1412/fantacontratti/internal/market"
)

// StateResponse wraps the snapshot with the server clock, the derived
// remaining auction time, and each member's heartbeat-derived connectivity.
// Clients recompute their countdown from server_time and remaining_sec; the
// stored deadline is the only timer there is.
type StateResponse struct {
	*market.Snapshot
	ServerTime   time.Time          `json:"server_time"`
	RemainingSec int                `json:"remaining_sec"`
	Connected    map[uuid.UUID]bool `json:"connected"`
}

func (s *Service) stateResponse(snap *market.Snapshot) StateResponse {
	now := s.clock.Now()
	resp := StateResponse{Snapshot: snap, ServerTime: now}
	if snap.Auction != nil {
		remaining := int(snap.Auction.Deadline.Sub(now).Seconds())
		if remaining < 0 {
			remaining = 0
		}
		resp.RemainingSec = remaining
	}
	resp.Connected = make(map[uuid.UUID]bool, len(snap.Members))
	for i := range snap.Members {
		m := &snap.Members[i]
		resp.Connected[m.MemberID] = m.Connected(now, s.market.HeartbeatTTL)
	}
	return resp
}
