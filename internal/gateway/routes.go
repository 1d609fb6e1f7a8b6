package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

// Routes builds the gateway's HTTP surface.
func (s *Service) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/state", s.handleState)
			r.Get("/ws", s.handleWebSocket)
			r.Post("/heartbeat", s.handleHeartbeat)

			r.Post("/members", s.handleAddMember)
			r.Post("/turn-order", s.handleSetTurnOrder)
			r.Post("/start", s.handleStartSession)
			r.Post("/close", s.handleCloseSession)

			r.Post("/nominations", s.handleNominate)
			r.Post("/nominations/ready", s.handleMarkReady)
			r.Post("/nominations/confirm", s.handleConfirmNomination)
			r.Post("/nominations/cancel", s.handleCancelNomination)
			r.Post("/nominations/force-ready", s.handleForceAllReady)

			r.Post("/bids", s.handlePlaceBid)
			r.Post("/auction/close", s.handleCloseAuction)
			r.Post("/acknowledgments", s.handleAcknowledge)
			r.Post("/acknowledgments/force", s.handleForceAcknowledgeAll)

			r.Post("/turn/advance", s.handleAdvanceTurn)
			r.Post("/role/advance", s.handleAdvanceRole)
		})
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
	})
	return c.Handler(r)
}
