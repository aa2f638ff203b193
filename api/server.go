package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/wricardo/escape-room-game/game/engine"
	"github.com/wricardo/escape-room-game/game/service"
	"github.com/wricardo/escape-room-game/game/session"
	"github.com/wricardo/escape-room-game/observability"
	"github.com/wricardo/escape-room-game/transport/websocket"
)

// ActorHeader carries the acting player id.
const ActorHeader = "X-Player-ID"

// Server represents the REST API server
type Server struct {
	service service.GameService
	hub     *websocket.Hub
	mcp     http.Handler
	router  *mux.Router
	logger  *zap.Logger
	started time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithMCPHandler mounts an MCP JSON-RPC handler at /mcp.
func WithMCPHandler(h http.Handler) Option {
	return func(s *Server) { s.mcp = h }
}

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server
func NewServer(gameService service.GameService, hub *websocket.Hub, opts ...Option) *Server {
	s := &Server{
		service: gameService,
		hub:     hub,
		router:  mux.NewRouter(),
		logger:  zap.NewNop(),
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.Use(s.requestLogger)

	api := s.router.PathPrefix("/api").Subrouter()

	// Lobby
	api.HandleFunc("/auth/join", s.handleJoin).Methods("POST")
	api.HandleFunc("/auth/select-character", s.handleSelectCharacter).Methods("POST")
	api.HandleFunc("/auth/toggle-ready", s.handleToggleReady).Methods("POST")

	// Teams
	api.HandleFunc("/teams", s.handleListTeams).Methods("GET")
	api.HandleFunc("/teams/select-team", s.handleSelectTeam).Methods("POST")
	api.HandleFunc("/teams/gm/rename-team", s.handleRenameTeam).Methods("POST")
	api.HandleFunc("/teams/gm/move-player", s.handleMovePlayer).Methods("POST")

	// Game flow
	api.HandleFunc("/game/state", s.handleGameState).Methods("GET")
	api.HandleFunc("/game/start", s.handleStartGame).Methods("POST")
	api.HandleFunc("/game/action", s.handleAction).Methods("POST")
	api.HandleFunc("/game/next-turn", s.handleNextTurn).Methods("POST")

	// Rooms (fixed paths must be before the {id} pattern)
	api.HandleFunc("/rooms", s.handleListRooms).Methods("GET")
	api.HandleFunc("/rooms/current", s.handleCurrentRoom).Methods("GET")
	api.HandleFunc("/rooms/current/completion", s.handleCurrentCompletion).Methods("GET")
	api.HandleFunc("/rooms/current/stats", s.handleCurrentStats).Methods("GET")
	api.HandleFunc("/rooms/current/technique", s.handleTechnique).Methods("GET")
	api.HandleFunc("/rooms/gm/next-room", s.handleNextRoom).Methods("POST")
	api.HandleFunc("/rooms/gm/previous-room", s.handlePreviousRoom).Methods("POST")
	api.HandleFunc("/rooms/gm/reset-room", s.handleResetRoom).Methods("POST")
	api.HandleFunc("/rooms/gm/reset-current-room", s.handleResetCurrentRoom).Methods("POST")
	api.HandleFunc("/rooms/{id}", s.handleGetRoom).Methods("GET")
	api.HandleFunc("/rooms/{id}/completion", s.handleRoomCompletion).Methods("GET")

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", observability.Handler()).Methods("GET")

	if s.hub != nil {
		s.router.HandleFunc("/ws", s.hub.ServeWS)
	}
	if s.mcp != nil {
		s.router.Handle("/mcp", s.mcp).Methods("POST")
	}

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusNotFound, ErrorResponse{Error: "route not found", Code: engine.KindNotFound})
	})
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// statusRecorder captures the response status for logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// hijacked websocket connections cannot be wrapped
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		// route templates keep label cardinality bounded
		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		observability.RecordHTTPRequest(r.Method, route, rec.status, elapsed)

		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", elapsed),
			zap.String("actor", r.Header.Get(ActorHeader)),
		)
	})
}

// decode reads an optional JSON body into v. An empty body is not an error.
func decode(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: malformed JSON body: %v", engine.ErrInvalidArgument, err)
	}
	return nil
}

// actorID resolves the acting player: header first, then body, then query.
func actorID(r *http.Request, fromBody string) string {
	if id := strings.TrimSpace(r.Header.Get(ActorHeader)); id != "" {
		return id
	}
	if fromBody != "" {
		return fromBody
	}
	return r.URL.Query().Get("player_id")
}

// withPreconditions maps an If-Match header onto an expected-version check.
func withPreconditions(r *http.Request) (*http.Request, error) {
	header := strings.Trim(strings.TrimSpace(r.Header.Get("If-Match")), `"`)
	if header == "" {
		return r, nil
	}
	v, err := strconv.ParseUint(header, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: If-Match must be a state version", engine.ErrInvalidArgument)
	}
	return r.WithContext(session.WithExpectedVersion(r.Context(), v)), nil
}

// command runs the common prelude of every mutating handler.
func (s *Server) command(w http.ResponseWriter, r *http.Request, body interface{}) (*http.Request, bool) {
	if body != nil {
		if err := decode(r, body); err != nil {
			respondError(w, err)
			return nil, false
		}
	}
	r, err := withPreconditions(r)
	if err != nil {
		respondError(w, err)
		return nil, false
	}
	return r, true
}

// setVersion exposes the committed version for a later If-Match.
func (s *Server) setVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("ETag", strconv.FormatUint(s.service.Snapshot(r.Context()).Version, 10))
}

// Lobby Handlers

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string      `json:"name"`
		Role engine.Role `json:"role"`
	}
	r, ok := s.command(w, r, &req)
	if !ok {
		return
	}

	player, err := s.service.Join(r.Context(), req.Name, req.Role)
	if err != nil {
		respondError(w, err)
		return
	}
	s.setVersion(w, r)
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"player":     player,
		"game_state": s.service.Snapshot(r.Context()),
	})
}

func (s *Server) handleSelectCharacter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID       string `json:"player_id"`
		Character      string `json:"character"`
		CharacterClass string `json:"character_class"`
	}
	r, ok := s.command(w, r, &req)
	if !ok {
		return
	}

	player, err := s.service.SelectCharacter(r.Context(), actorID(r, req.PlayerID), req.Character, req.CharacterClass)
	if err != nil {
		respondError(w, err)
		return
	}
	s.setVersion(w, r)
	respondJSON(w, http.StatusOK, map[string]interface{}{"player": player})
}

func (s *Server) handleToggleReady(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string `json:"player_id"`
	}
	r, ok := s.command(w, r, &req)
	if !ok {
		return
	}

	player, err := s.service.ToggleReady(r.Context(), actorID(r, req.PlayerID))
	if err != nil {
		respondError(w, err)
		return
	}
	s.setVersion(w, r)
	respondJSON(w, http.StatusOK, map[string]interface{}{"player": player})
}

// Team Handlers

func (s *Server) handleListTeams(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"teams": s.service.Teams(r.Context())})
}

func (s *Server) handleSelectTeam(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string `json:"player_id"`
		TeamID   string `json:"team_id"`
	}
	r, ok := s.command(w, r, &req)
	if !ok {
		return
	}

	actor := actorID(r, req.PlayerID)
	player, err := s.service.AssignTeam(r.Context(), actor, actor, req.TeamID)
	if err != nil {
		respondError(w, err)
		return
	}
	s.setVersion(w, r)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"player":     player,
		"game_state": s.service.Snapshot(r.Context()),
	})
}

func (s *Server) handleRenameTeam(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string `json:"player_id"`
		TeamID   string `json:"team_id"`
		NewName  string `json:"new_name"`
	}
	r, ok := s.command(w, r, &req)
	if !ok {
		return
	}

	team, err := s.service.RenameTeam(r.Context(), actorID(r, req.PlayerID), req.TeamID, req.NewName)
	if err != nil {
		respondError(w, err)
		return
	}
	s.setVersion(w, r)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"team":    team,
		"teams":   s.service.Teams(r.Context()),
	})
}

func (s *Server) handleMovePlayer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID       string `json:"player_id"`
		TargetPlayerID string `json:"target_player_id"`
		NewTeamID      string `json:"new_team_id"`
	}
	r, ok := s.command(w, r, &req)
	if !ok {
		return
	}
	if req.TargetPlayerID == "" {
		respondError(w, fmt.Errorf("%w: target_player_id is required", engine.ErrInvalidArgument))
		return
	}

	player, err := s.service.AssignTeam(r.Context(), actorID(r, req.PlayerID), req.TargetPlayerID, req.NewTeamID)
	if err != nil {
		respondError(w, err)
		return
	}
	s.setVersion(w, r)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"player":     player,
		"game_state": s.service.Snapshot(r.Context()),
	})
}

// Game Handlers

func (s *Server) handleGameState(w http.ResponseWriter, r *http.Request) {
	st := s.service.Snapshot(r.Context())
	w.Header().Set("ETag", strconv.FormatUint(st.Version, 10))
	respondJSON(w, http.StatusOK, st)
}

func (s *Server) handleStartGame(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string `json:"player_id"`
	}
	r, ok := s.command(w, r, &req)
	if !ok {
		return
	}

	st, err := s.service.StartGame(r.Context(), actorID(r, req.PlayerID))
	if err != nil {
		respondError(w, err)
		return
	}
	room, _ := s.service.CurrentRoom(r.Context(), actorID(r, req.PlayerID))
	w.Header().Set("ETag", strconv.FormatUint(st.Version, 10))
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"current_room": room,
		"game_state":   st,
	})
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string `json:"player_id"`
		TeamID   string `json:"team_id"`
		ActionID string `json:"action_id"`
	}
	r, ok := s.command(w, r, &req)
	if !ok {
		return
	}

	// a GM may name the acting character in the body while authenticating
	// through the header
	actor := actorID(r, req.PlayerID)
	playerID := req.PlayerID
	if playerID == "" {
		playerID = actor
	}

	res, err := s.service.PerformAction(r.Context(), actor, engine.ActionRequest{
		TeamID:   req.TeamID,
		PlayerID: playerID,
		ActionID: req.ActionID,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	s.setVersion(w, r)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"result":     res,
		"game_state": s.service.Snapshot(r.Context()),
	})
}

func (s *Server) handleNextTurn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string `json:"player_id"`
	}
	r, ok := s.command(w, r, &req)
	if !ok {
		return
	}

	turn, err := s.service.NextTurn(r.Context(), actorID(r, req.PlayerID))
	if err != nil {
		respondError(w, err)
		return
	}
	s.setVersion(w, r)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"turn":       turn,
		"game_state": s.service.Snapshot(r.Context()),
	})
}

// Room Handlers

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"rooms": s.service.Rooms(r.Context(), actorID(r, "")),
	})
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := s.service.Room(r.Context(), actorID(r, ""), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"room": room})
}

func (s *Server) handleCurrentRoom(w http.ResponseWriter, r *http.Request) {
	room, err := s.service.CurrentRoom(r.Context(), actorID(r, ""))
	if err != nil {
		respondError(w, err)
		return
	}
	st := s.service.Snapshot(r.Context())
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"room": room,
		"game_state": map[string]interface{}{
			"status":       st.Game.Phase,
			"current_turn": st.Game.CurrentTurnIndex,
			"turn_order":   st.Game.TurnOrder,
		},
	})
}

func (s *Server) handleCurrentCompletion(w http.ResponseWriter, r *http.Request) {
	s.respondCompletion(w, r, "")
}

func (s *Server) handleRoomCompletion(w http.ResponseWriter, r *http.Request) {
	s.respondCompletion(w, r, mux.Vars(r)["id"])
}

func (s *Server) respondCompletion(w http.ResponseWriter, r *http.Request, roomID string) {
	c, err := s.service.RoomCompletion(r.Context(), roomID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (s *Server) handleCurrentStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.RoomStats(r.Context(), "")
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleTechnique(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.Technique(r.Context(), actorID(r, ""))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (s *Server) roomCommand(w http.ResponseWriter, r *http.Request, move func(*http.Request, string) (*service.Transition, error)) {
	var req struct {
		PlayerID string `json:"player_id"`
	}
	r, ok := s.command(w, r, &req)
	if !ok {
		return
	}

	tr, err := move(r, actorID(r, req.PlayerID))
	if err != nil {
		respondError(w, err)
		return
	}
	s.setVersion(w, r)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"transition": tr,
		"game_state": s.service.Snapshot(r.Context()),
	})
}

func (s *Server) handleNextRoom(w http.ResponseWriter, r *http.Request) {
	s.roomCommand(w, r, func(r *http.Request, actor string) (*service.Transition, error) {
		return s.service.AdvanceRoom(r.Context(), actor)
	})
}

func (s *Server) handlePreviousRoom(w http.ResponseWriter, r *http.Request) {
	s.roomCommand(w, r, func(r *http.Request, actor string) (*service.Transition, error) {
		return s.service.RetreatRoom(r.Context(), actor)
	})
}

func (s *Server) handleResetRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string `json:"player_id"`
		RoomID   string `json:"room_id"`
	}
	r, ok := s.command(w, r, &req)
	if !ok {
		return
	}
	s.resetRoom(w, r, actorID(r, req.PlayerID), req.RoomID)
}

func (s *Server) handleResetCurrentRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string `json:"player_id"`
	}
	r, ok := s.command(w, r, &req)
	if !ok {
		return
	}
	s.resetRoom(w, r, actorID(r, req.PlayerID), "")
}

func (s *Server) resetRoom(w http.ResponseWriter, r *http.Request, actor, roomID string) {
	room, err := s.service.ResetRoom(r.Context(), actor, roomID)
	if err != nil {
		respondError(w, err)
		return
	}
	s.setVersion(w, r)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"message":    "Room progress reset",
		"room":       room,
		"game_state": s.service.Snapshot(r.Context()),
	})
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	clients := 0
	if s.hub != nil {
		clients = s.hub.ClientCount()
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Seconds(),
		"version":   s.service.Snapshot(r.Context()).Version,
		"clients":   clients,
	})
}
