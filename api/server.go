package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/playdate-app/playdate-server/game/service"
	"github.com/playdate-app/playdate-server/game/session"
	"github.com/playdate-app/playdate-server/identity"
	"github.com/playdate-app/playdate-server/transport/websocket"
)

// Version is reported by the index endpoint.
const Version = "1.0.0"

// Server is the REST surface that mirrors a subset of the realtime protocol
// for non-realtime clients. It reads and writes through the same session
// store as the websocket path, via the shared service and engine.
type Server struct {
	service service.GameService
	engine  *websocket.Engine
	router  *mux.Router
}

// NewServer creates a new API server.
func NewServer(gameService service.GameService, engine *websocket.Engine) *Server {
	s := &Server{
		service: gameService,
		engine:  engine,
		router:  mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Session management ("active" must be registered before {id})
	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions/active", s.handleListActiveSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}/join", s.handleJoinSession).Methods("POST")
	api.HandleFunc("/sessions/{id}/leave", s.handleLeaveSession).Methods("POST")
	api.HandleFunc("/sessions/{id}/state", s.handleUpdateState).Methods("PUT")

	// Challenges
	api.HandleFunc("/challenges", s.handleSendChallenge).Methods("POST")
	api.HandleFunc("/challenges/pending", s.handlePendingChallenges).Methods("GET")
	api.HandleFunc("/challenges/{id}/respond", s.handleRespondToChallenge).Methods("POST")

	// WebSocket
	s.router.HandleFunc("/ws", s.engine.ServeWS)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/", s.handleIndex).Methods("GET")
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps service errors onto the HTTP status taxonomy.
// Internal failures are logged by the layers that produced them; the client
// only ever sees a generic message for those.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, identity.ErrUnknownPlayer):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrSessionFull),
		errors.Is(err, session.ErrSessionOver),
		errors.Is(err, service.ErrChallengePending),
		errors.Is(err, service.ErrAlreadyResponded),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrSelfChallenge):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrNotMember), errors.Is(err, service.ErrNotChallenged):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrMissingField), errors.Is(err, service.ErrInvalidStatus):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// Session Handlers

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GameType   string `json:"gameType"`
		PlayerID   string `json:"playerId"`
		PlayerName string `json:"playerName,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	snap, err := s.service.CreateSession(r.Context(), req.GameType, req.PlayerID, req.PlayerName)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Game session created successfully",
		"session": snap,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	snap, err := s.service.GetSession(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"session": snap})
}

func (s *Server) handleJoinSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req struct {
		PlayerID   string `json:"playerId"`
		PlayerName string `json:"playerName,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID == "" {
		respondError(w, http.StatusBadRequest, "playerId is required")
		return
	}

	snap, err := s.service.JoinSession(r.Context(), sessionID, req.PlayerID, req.PlayerName)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Joined game session successfully",
		"session": snap,
	})
}

func (s *Server) handleLeaveSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req struct {
		PlayerID string `json:"playerId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID == "" {
		respondError(w, http.StatusBadRequest, "playerId is required")
		return
	}

	// The engine's leave path keeps room, registry and membership in
	// lockstep and notifies remaining players.
	if err := s.engine.RemovePlayer(sessionID, req.PlayerID); err != nil {
		if errors.Is(err, session.ErrNotMember) {
			// Leaving a session you are not in is a no-op, matching the
			// realtime protocol's idempotent treatment of repeat leaves.
			respondJSON(w, http.StatusOK, map[string]string{"message": "Left game session successfully"})
			return
		}
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Left game session successfully"})
}

func (s *Server) handleUpdateState(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req struct {
		PlayerID string          `json:"playerId"`
		GameData json.RawMessage `json:"gameData"`
		Status   session.Status  `json:"status,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.PlayerID == "" || len(req.GameData) == 0 {
		respondError(w, http.StatusBadRequest, "playerId and gameData are required")
		return
	}

	snap, err := s.service.UpdateState(r.Context(), sessionID, req.PlayerID, req.GameData, req.Status)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	// Realtime clients in the room hear about non-realtime writes too.
	s.engine.NotifyStateChanged(snap)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Game state updated successfully",
		"session": snap,
	})
}

func (s *Server) handleListActiveSessions(w http.ResponseWriter, r *http.Request) {
	summaries := s.service.ListOpenSessions(r.Context())
	respondJSON(w, http.StatusOK, map[string]interface{}{"sessions": summaries})
}

// Challenge Handlers

func (s *Server) handleSendChallenge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChallengerID string `json:"challengerId"`
		ChallengedID string `json:"challengedUserId"`
		GameType     string `json:"gameType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ChallengerID == "" || req.ChallengedID == "" || req.GameType == "" {
		respondError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	challenge, err := s.service.SendChallenge(r.Context(), req.ChallengerID, req.ChallengedID, req.GameType)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message":        "Challenge sent successfully",
		"sessionId":      challenge.SessionID,
		"challengedUser": challenge.Challenged,
	})
}

func (s *Server) handleRespondToChallenge(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req struct {
		PlayerID string `json:"playerId"`
		Response string `json:"response"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Response != "accept" && req.Response != "decline" {
		respondError(w, http.StatusBadRequest, "Invalid response. Must be 'accept' or 'decline'")
		return
	}

	snap, err := s.service.RespondToChallenge(r.Context(), sessionID, req.PlayerID, req.Response == "accept")
	if err != nil {
		respondServiceError(w, err)
		return
	}

	if snap == nil {
		respondJSON(w, http.StatusOK, map[string]string{"message": "Challenge declined"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "Challenge accepted",
		"sessionId": snap.ID,
		"gameType":  snap.GameType,
	})
}

func (s *Server) handlePendingChallenges(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("playerId")
	if playerID == "" {
		respondError(w, http.StatusBadRequest, "playerId is required")
		return
	}

	list, err := s.service.PendingChallenges(r.Context(), playerID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, list)
}

// Misc Handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Welcome to PlayDate API!",
		"version": Version,
		"status":  "running",
	})
}
