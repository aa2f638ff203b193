package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/wricardo/escape-room-game/game/catalog"
	"github.com/wricardo/escape-room-game/game/engine"
	"github.com/wricardo/escape-room-game/game/service"
	"github.com/wricardo/escape-room-game/game/session"
	"github.com/wricardo/escape-room-game/transport/websocket"
)

// Test helpers
func setupTestServer(t *testing.T) (*Server, *session.Store) {
	t.Helper()
	cat, err := catalog.New([]catalog.Room{
		{
			ID:        "crypt",
			Type:      catalog.Unique,
			Name:      "Crypt",
			GMNotes:   "the lever is behind the skull",
			Technique: "misdirection",
			Actions: []catalog.Action{
				{ID: "pull-lever", Stat: "strength"},
				{ID: "decode", Stat: "intelligence"},
			},
		},
		{
			ID:                "bridge",
			Type:              catalog.Common,
			Name:              "Bridge",
			RequiredSuccesses: 1,
			Actions:           []catalog.Action{{ID: "balance", Stat: "strength"}},
		},
	})
	if err != nil {
		t.Fatalf("Failed to build catalog: %v", err)
	}
	eng, err := engine.NewEngine(cat, engine.Options{Roller: engine.FixedRoller(0)})
	if err != nil {
		t.Fatalf("Failed to build engine: %v", err)
	}

	logger := zaptest.NewLogger(t)
	store := session.NewStore(eng, session.WithLogger(logger))
	hub := websocket.NewHub(store.Snapshot, logger)
	return NewServer(service.NewGameService(store), hub, WithLogger(logger)), store
}

func makeRequest(method, path, actor string, body interface{}) *http.Request {
	var bodyBytes []byte
	if body != nil {
		bodyBytes, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewBuffer(bodyBytes))
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set(ActorHeader, actor)
	}
	return req
}

func do(server *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)
	return w
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), target); err != nil {
		t.Fatalf("Failed to parse response %s: %v", w.Body.String(), err)
	}
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, status int) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("Expected status %d, got %d: %s", status, w.Code, w.Body.String())
	}
}

func join(t *testing.T, server *Server, name string, role engine.Role) string {
	t.Helper()
	w := do(server, makeRequest("POST", "/api/auth/join", "", map[string]interface{}{"name": name, "role": role}))
	expectStatus(t, w, http.StatusCreated)

	var resp struct {
		Player engine.Player `json:"player"`
	}
	parseResponse(t, w, &resp)
	return resp.Player.ID
}

// lobby joins a GM and two players, seats them and readies everyone.
func lobby(t *testing.T, server *Server) (gm, alice, bob string) {
	t.Helper()
	gm = join(t, server, "Grace", engine.RoleGM)
	alice = join(t, server, "Alice", engine.RolePlayer)
	bob = join(t, server, "Bob", "")

	for id, team := range map[string]string{alice: "team1", bob: "team2"} {
		w := do(server, makeRequest("POST", "/api/auth/select-character", id,
			map[string]string{"character": "Brakka", "character_class": "warrior"}))
		expectStatus(t, w, http.StatusOK)
		w = do(server, makeRequest("POST", "/api/teams/select-team", id, map[string]string{"team_id": team}))
		expectStatus(t, w, http.StatusOK)
	}
	for _, id := range []string{gm, alice, bob} {
		expectStatus(t, do(server, makeRequest("POST", "/api/auth/toggle-ready", id, nil)), http.StatusOK)
	}
	return gm, alice, bob
}

func TestJoin(t *testing.T) {
	tests := []struct {
		name           string
		body           interface{}
		expectedStatus int
		expectedRole   engine.Role
	}{
		{
			name:           "Join as game master",
			body:           map[string]string{"name": "Grace", "role": "gm"},
			expectedStatus: http.StatusCreated,
			expectedRole:   engine.RoleGM,
		},
		{
			name:           "Role defaults to player",
			body:           map[string]string{"name": "Alice"},
			expectedStatus: http.StatusCreated,
			expectedRole:   engine.RolePlayer,
		},
		{
			name:           "Missing name",
			body:           map[string]string{"role": "player"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Unknown role",
			body:           map[string]string{"name": "Mallory", "role": "admin"},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := setupTestServer(t)
			w := do(server, makeRequest("POST", "/api/auth/join", "", tt.body))

			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if tt.expectedStatus != http.StatusCreated {
				return
			}

			var resp struct {
				Player    engine.Player `json:"player"`
				GameState engine.State  `json:"game_state"`
			}
			parseResponse(t, w, &resp)
			if resp.Player.ID == "" {
				t.Error("Expected a generated player id")
			}
			if resp.Player.Role != tt.expectedRole {
				t.Errorf("Expected role %s, got %s", tt.expectedRole, resp.Player.Role)
			}
			if _, ok := resp.GameState.Players[resp.Player.ID]; !ok {
				t.Error("Expected the new player in the returned game state")
			}
			if w.Header().Get("ETag") != "1" {
				t.Errorf("Expected ETag 1, got %q", w.Header().Get("ETag"))
			}
		})
	}
}

func TestGameFlow(t *testing.T) {
	server, store := setupTestServer(t)
	gm, alice, bob := lobby(t, server)

	w := do(server, makeRequest("POST", "/api/game/start", alice, nil))
	expectStatus(t, w, http.StatusForbidden)
	var errResp ErrorResponse
	parseResponse(t, w, &errResp)
	if errResp.Code != engine.KindForbidden {
		t.Errorf("Expected code %s, got %s", engine.KindForbidden, errResp.Code)
	}

	w = do(server, makeRequest("POST", "/api/game/start", gm, nil))
	expectStatus(t, w, http.StatusOK)
	if got := store.Snapshot().Game.Phase; got != engine.PhaseInProgress {
		t.Fatalf("Expected phase %s, got %s", engine.PhaseInProgress, got)
	}

	// strength 8 with a zero roll is a perfect success
	w = do(server, makeRequest("POST", "/api/game/action", alice, map[string]string{"action_id": "pull-lever"}))
	expectStatus(t, w, http.StatusOK)
	var actionResp struct {
		Success bool                `json:"success"`
		Result  engine.ActionResult `json:"result"`
	}
	parseResponse(t, w, &actionResp)
	if actionResp.Result.TeamID != "team1" || actionResp.Result.Outcome.Result != engine.ResultPerfect {
		t.Errorf("Unexpected result: %+v", actionResp.Result)
	}

	// the GM may act on behalf of a player
	w = do(server, makeRequest("POST", "/api/game/action", gm,
		map[string]string{"player_id": bob, "team_id": "team2", "action_id": "decode"}))
	expectStatus(t, w, http.StatusOK)
	parseResponse(t, w, &actionResp)
	if actionResp.Result.Outcome.Result != engine.ResultFailure {
		t.Errorf("Expected failure for intelligence 2, got %s", actionResp.Result.Outcome.Result)
	}

	// a failure consumes the action for everyone
	w = do(server, makeRequest("POST", "/api/game/action", alice, map[string]string{"action_id": "decode"}))
	expectStatus(t, w, http.StatusBadRequest)

	w = do(server, makeRequest("POST", "/api/game/action", alice,
		map[string]string{"team_id": "team2", "action_id": "pull-lever"}))
	expectStatus(t, w, http.StatusForbidden)

	w = do(server, makeRequest("GET", "/api/rooms/current/completion", alice, nil))
	expectStatus(t, w, http.StatusOK)
	var completion engine.Completion
	parseResponse(t, w, &completion)
	if !completion.CompletionStatus["team1"].Completed {
		t.Error("Expected team1 to have completed the crypt")
	}
	if completion.CompletionStatus["team2"].Completed {
		t.Error("Expected team2 to still be working on the crypt")
	}

	w = do(server, makeRequest("POST", "/api/game/next-turn", gm, nil))
	expectStatus(t, w, http.StatusOK)
	var turnResp struct {
		Turn service.TurnInfo `json:"turn"`
	}
	parseResponse(t, w, &turnResp)
	if turnResp.Turn.CurrentTurnIndex != 1 {
		t.Errorf("Expected turn index 1, got %d", turnResp.Turn.CurrentTurnIndex)
	}

	w = do(server, makeRequest("POST", "/api/rooms/gm/next-room", gm, nil))
	expectStatus(t, w, http.StatusOK)
	if got := store.Snapshot().CurrentRoomID(); got != "bridge" {
		t.Fatalf("Expected to be in the bridge, got %s", got)
	}

	w = do(server, makeRequest("POST", "/api/rooms/gm/next-room", gm, nil))
	expectStatus(t, w, http.StatusOK)
	var transition struct {
		Transition service.Transition `json:"transition"`
	}
	parseResponse(t, w, &transition)
	if !transition.Transition.Finished || transition.Transition.Status != engine.PhaseFinished {
		t.Errorf("Expected the game to finish after the last room, got %+v", transition.Transition)
	}

	w = do(server, makeRequest("POST", "/api/game/action", alice, map[string]string{"action_id": "balance"}))
	expectStatus(t, w, http.StatusBadRequest)
	parseResponse(t, w, &errResp)
	if errResp.Code != engine.KindInvalidPhase {
		t.Errorf("Expected code %s, got %s", engine.KindInvalidPhase, errResp.Code)
	}
}

func TestGMCommandsRequireGM(t *testing.T) {
	server, _ := setupTestServer(t)
	gm, alice, bob := lobby(t, server)
	expectStatus(t, do(server, makeRequest("POST", "/api/game/start", gm, nil)), http.StatusOK)

	tests := []struct {
		name string
		path string
		body interface{}
	}{
		{"Rename team", "/api/teams/gm/rename-team", map[string]string{"team_id": "team1", "new_name": "Owls"}},
		{"Move player", "/api/teams/gm/move-player", map[string]string{"target_player_id": bob, "new_team_id": "team1"}},
		{"Next turn", "/api/game/next-turn", nil},
		{"Next room", "/api/rooms/gm/next-room", nil},
		{"Previous room", "/api/rooms/gm/previous-room", nil},
		{"Reset room", "/api/rooms/gm/reset-room", map[string]string{"room_id": "crypt"}},
		{"Reset current room", "/api/rooms/gm/reset-current-room", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, do(server, makeRequest("POST", tt.path, alice, tt.body)), http.StatusForbidden)
			expectStatus(t, do(server, makeRequest("POST", tt.path, "", tt.body)), http.StatusForbidden)
		})
	}

	expectStatus(t, do(server, makeRequest("GET", "/api/rooms/current/technique", alice, nil)), http.StatusForbidden)
	w := do(server, makeRequest("GET", "/api/rooms/current/technique", gm, nil))
	expectStatus(t, w, http.StatusOK)
	var info service.TechniqueInfo
	parseResponse(t, w, &info)
	if info.Technique != "misdirection" {
		t.Errorf("Expected technique misdirection, got %q", info.Technique)
	}
}

func TestIfMatch(t *testing.T) {
	server, store := setupTestServer(t)
	gm := join(t, server, "Grace", engine.RoleGM)
	version := strconv.FormatUint(store.Version(), 10)

	req := makeRequest("POST", "/api/teams/gm/rename-team", gm, map[string]string{"team_id": "team1", "new_name": "Owls"})
	req.Header.Set("If-Match", `"`+version+`"`)
	w := do(server, req)
	expectStatus(t, w, http.StatusOK)
	if w.Header().Get("ETag") != strconv.FormatUint(store.Version(), 10) {
		t.Errorf("Expected ETag %d, got %s", store.Version(), w.Header().Get("ETag"))
	}

	// the same precondition is now stale
	req = makeRequest("POST", "/api/teams/gm/rename-team", gm, map[string]string{"team_id": "team1", "new_name": "Hawks"})
	req.Header.Set("If-Match", version)
	expectStatus(t, do(server, req), http.StatusConflict)
	if name := store.Snapshot().Teams["team1"].Name; name != "Owls" {
		t.Errorf("Expected rejected rename to leave Owls, got %s", name)
	}

	req = makeRequest("POST", "/api/teams/gm/rename-team", gm, map[string]string{"team_id": "team1", "new_name": "Hawks"})
	req.Header.Set("If-Match", "latest")
	expectStatus(t, do(server, req), http.StatusBadRequest)
}

func TestRoomViews(t *testing.T) {
	server, _ := setupTestServer(t)
	gm := join(t, server, "Grace", engine.RoleGM)
	alice := join(t, server, "Alice", engine.RolePlayer)

	var resp struct {
		Rooms []service.RoomView `json:"rooms"`
	}
	w := do(server, makeRequest("GET", "/api/rooms", alice, nil))
	expectStatus(t, w, http.StatusOK)
	parseResponse(t, w, &resp)
	if len(resp.Rooms) != 2 {
		t.Fatalf("Expected 2 rooms, got %d", len(resp.Rooms))
	}
	for _, r := range resp.Rooms {
		if r.GMNotes != "" || r.Technique != "" {
			t.Errorf("Room %s leaked GM fields to a player", r.ID)
		}
	}

	w = do(server, makeRequest("GET", "/api/rooms/crypt", gm, nil))
	expectStatus(t, w, http.StatusOK)
	var one struct {
		Room service.RoomView `json:"room"`
	}
	parseResponse(t, w, &one)
	if one.Room.GMNotes != "the lever is behind the skull" {
		t.Errorf("Expected GM notes for the GM, got %q", one.Room.GMNotes)
	}
	if !one.Room.Available["pull-lever"] {
		t.Error("Expected pull-lever to be available")
	}

	w = do(server, makeRequest("GET", "/api/rooms/nowhere", gm, nil))
	expectStatus(t, w, http.StatusNotFound)

	// no current room in the lobby
	expectStatus(t, do(server, makeRequest("GET", "/api/rooms/current", gm, nil)), http.StatusBadRequest)
}

func TestTeams(t *testing.T) {
	server, _ := setupTestServer(t)
	alice := join(t, server, "Alice", "")

	expectStatus(t, do(server, makeRequest("POST", "/api/teams/select-team", alice,
		map[string]string{"team_id": "team9"})), http.StatusNotFound)

	// actor taken from the body when no header is present
	expectStatus(t, do(server, makeRequest("POST", "/api/teams/select-team", "",
		map[string]string{"player_id": alice, "team_id": "team3"})), http.StatusOK)

	w := do(server, makeRequest("GET", "/api/teams", "", nil))
	expectStatus(t, w, http.StatusOK)
	var resp struct {
		Teams []service.TeamInfo `json:"teams"`
	}
	parseResponse(t, w, &resp)
	if len(resp.Teams) != 3 {
		t.Fatalf("Expected 3 teams, got %d", len(resp.Teams))
	}
	if len(resp.Teams[2].Members) != 1 || resp.Teams[2].Members[0].ID != alice {
		t.Errorf("Expected alice in team3, got %+v", resp.Teams[2].Members)
	}
}

func TestMalformedBody(t *testing.T) {
	server, _ := setupTestServer(t)
	req := httptest.NewRequest("POST", "/api/auth/join", bytes.NewBufferString("{not json"))
	w := do(server, req)
	expectStatus(t, w, http.StatusBadRequest)

	var resp ErrorResponse
	parseResponse(t, w, &resp)
	if resp.Code != engine.KindInvalidArgument {
		t.Errorf("Expected code %s, got %s", engine.KindInvalidArgument, resp.Code)
	}
}

func TestHealth(t *testing.T) {
	server, _ := setupTestServer(t)
	w := do(server, makeRequest("GET", "/health", "", nil))
	expectStatus(t, w, http.StatusOK)

	var resp map[string]interface{}
	parseResponse(t, w, &resp)
	if resp["status"] != "OK" {
		t.Errorf("Expected status OK, got %v", resp["status"])
	}
	for _, key := range []string{"timestamp", "uptime", "version", "clients"} {
		if _, ok := resp[key]; !ok {
			t.Errorf("Expected %s in health response", key)
		}
	}
}

func TestMetrics(t *testing.T) {
	server, _ := setupTestServer(t)
	expectStatus(t, do(server, makeRequest("GET", "/api/game/state", "", nil)), http.StatusOK)

	w := do(server, makeRequest("GET", "/metrics", "", nil))
	expectStatus(t, w, http.StatusOK)
	want := `escape_room_http_requests_total{method="GET",route="/api/game/state",status="200"}`
	if !strings.Contains(w.Body.String(), want) {
		t.Errorf("Expected %s in metrics output", want)
	}
}

func TestUnknownRoute(t *testing.T) {
	server, _ := setupTestServer(t)
	w := do(server, makeRequest("GET", "/api/nope", "", nil))
	expectStatus(t, w, http.StatusNotFound)
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %q", ct)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind   engine.Kind
		status int
	}{
		{engine.KindNotFound, http.StatusNotFound},
		{engine.KindInvalidPhase, http.StatusBadRequest},
		{engine.KindInvalidState, http.StatusBadRequest},
		{engine.KindInvalidArgument, http.StatusBadRequest},
		{engine.KindForbidden, http.StatusForbidden},
		{engine.KindConflict, http.StatusConflict},
		{engine.KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := StatusFor(tt.kind); got != tt.status {
			t.Errorf("StatusFor(%s) = %d, want %d", tt.kind, got, tt.status)
		}
	}
}
