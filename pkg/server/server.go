// Package server exposes the session state to browser consumers: a JSON
// snapshot endpoint, a websocket event stream and thin command endpoints
// that translate onto syncer operations.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/HederaPayBot/hbarpay/pkg/auth"
	"github.com/HederaPayBot/hbarpay/pkg/gateway"
	"github.com/HederaPayBot/hbarpay/pkg/logging"
	"github.com/HederaPayBot/hbarpay/pkg/models"
	"github.com/HederaPayBot/hbarpay/pkg/syncer"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Server struct {
	syncer  *syncer.Syncer
	tracker *auth.Tracker
	clients map[*websocket.Conn]bool
	mu      sync.Mutex
	mux     *http.ServeMux
	log     zerolog.Logger
}

func NewServer(s *syncer.Syncer, tracker *auth.Tracker) *Server {
	srv := &Server{
		syncer:  s,
		tracker: tracker,
		clients: make(map[*websocket.Conn]bool),
		mux:     http.NewServeMux(),
		log:     logging.NewLogger("server"),
	}
	srv.routes()
	return srv
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /ws", s.handleWS)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	s.mux.HandleFunc("POST /api/payments", s.handlePayment)
	s.mux.HandleFunc("POST /api/command", s.handleCommand)
	s.mux.HandleFunc("POST /api/login", s.handleLogin)
	s.mux.HandleFunc("POST /api/logout", s.handleLogout)
}

func (s *Server) Start(port int) error {
	go s.listenToSyncer()

	s.log.Info().Int("port", port).Msg("consumer API listening")
	return http.ListenAndServe(fmt.Sprintf(":%d", port), s.mux)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var vErr *syncer.ValidationError
	if errors.As(err, &vErr) {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": vErr.Error()})
		return
	}
	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) {
		s.writeJSON(w, http.StatusBadGateway, map[string]any{"success": false, "message": apiErr.Message})
		return
	}
	s.writeJSON(w, http.StatusServiceUnavailable, map[string]any{"success": false, "message": "payment service unreachable"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"snapshot":         s.syncer.Snapshot(),
		"formattedBalance": s.syncer.FormattedHbarBalance(),
		"estimatedUsd":     s.syncer.EstimatedHbarUSD(),
		"accountUrl":       s.syncer.HashscanAccountURL(),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Category string `json:"category"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	ctx := r.Context()
	switch models.Category(req.Category) {
	case models.CategoryProfile:
		s.syncer.RefreshProfile(ctx)
	case models.CategoryBalance:
		s.syncer.RefreshHbarBalance(ctx)
	case models.CategoryTokens:
		s.syncer.RefreshTokenBalances(ctx)
	case models.CategoryTransactions:
		s.syncer.RefreshTransactions(ctx)
	default:
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "unknown category"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handlePayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Recipient string `json:"recipient"`
		Amount    string `json:"amount"`
		AssetType string `json:"assetType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "invalid request body"})
		return
	}

	result, err := s.syncer.CreatePayment(r.Context(), req.Recipient, req.Amount, req.AssetType)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "transactionId": result.TransactionID, "message": result.Message})
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "invalid request body"})
		return
	}

	reply, err := s.syncer.SendCommand(r.Context(), req.Text)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "response": reply.Response, "action": reply.Action, "data": reply.Data})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Handle string `json:"handle"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Handle == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "handle required"})
		return
	}
	s.tracker.SetAuthenticated(req.Handle)
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.tracker.SetLoggedOut()
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
	}()

	// Send initial state
	initialData := map[string]any{
		"type": "initial",
		"data": s.syncer.Snapshot(),
	}
	_ = conn.WriteJSON(initialData)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (s *Server) listenToSyncer() {
	sub := s.syncer.Subscribe()
	defer s.syncer.Unsubscribe(sub)

	for event := range sub {
		s.broadcast(event)
	}
}

func (s *Server) broadcast(event syncer.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := map[string]any{
		"type": string(event.Type),
		"data": s.syncer.Snapshot(),
	}
	for client := range s.clients {
		if err := client.WriteJSON(msg); err != nil {
			_ = client.Close()
			delete(s.clients, client)
		}
	}
}
