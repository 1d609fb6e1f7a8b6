package gateway

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestConnection(sessionID uuid.UUID, memberID string, buffer int) *Connection {
	return &Connection{
		ID:        uuid.New().String(),
		MemberID:  memberID,
		SessionID: sessionID,
		Send:      make(chan []byte, buffer),
	}
}

func testEvent(sessionID uuid.UUID) *SessionEvent {
	return &SessionEvent{
		ID:        uuid.New().String(),
		SessionID: sessionID.String(),
		Type:      "bid_placed",
		Timestamp: time.Now(),
	}
}

func TestHandleBroadcastDelivers(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	sessionID := uuid.New()
	c1 := newTestConnection(sessionID, "member-a", 1)
	c2 := newTestConnection(sessionID, "member-b", 1)
	cm.registerConnection(c1)
	cm.registerConnection(c2)

	cm.handleBroadcast(broadcastMessage{SessionID: sessionID, Event: testEvent(sessionID)})
	for _, c := range []*Connection{c1, c2} {
		select {
		case <-c.Send:
		default:
			t.Errorf("connection %s for %s received nothing", c.ID, c.MemberID)
		}
	}

	// Member-targeted messages skip everyone else.
	cm.handleBroadcast(broadcastMessage{SessionID: sessionID, Event: testEvent(sessionID), MemberID: "member-b"})
	select {
	case <-c1.Send:
		t.Error("member-a received a message targeted at member-b")
	default:
	}
	select {
	case <-c2.Send:
	default:
		t.Error("member-b did not receive its targeted message")
	}
}

func TestHandleBroadcastDuringUnregister(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	sessionID := uuid.New()

	// Buffers are sized above the broadcast count so no connection ever
	// takes the slow-client drop path.
	conns := make([]*Connection, 50)
	for i := range conns {
		conns[i] = newTestConnection(sessionID, "member-a", 512)
		cm.registerConnection(conns[i])
	}

	// Broadcasts racing connection teardown must not reach a closed send
	// channel: a send on one panics.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		event := testEvent(sessionID)
		for i := 0; i < 500; i++ {
			cm.handleBroadcast(broadcastMessage{SessionID: sessionID, Event: event})
		}
	}()
	go func() {
		defer wg.Done()
		for _, c := range conns {
			cm.unregisterConnection(c)
		}
	}()
	wg.Wait()

	stats := cm.ConnectionStats()
	if got := stats["total_connections"].(int); got != 0 {
		t.Errorf("total_connections = %d, want 0", got)
	}
}
