package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/wricardo/escape-room-game/game/engine"
	"github.com/wricardo/escape-room-game/game/service"
)

// actorHeader matches api.ActorHeader.
const actorHeader = "X-Player-ID"

// Client is a thin MCP server that proxies every tool to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
	logger     *zap.Logger
}

// APIError is a non-2xx reply from the REST API.
type APIError struct {
	Status  int
	Code    engine.Kind
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API error: %d", e.Status)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// NewClient creates a new MCP client that calls the REST API at baseURL
func NewClient(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}

	c.initMCPServer()
	return c
}

func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Escape Room Game",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Escape Room Game - MCP Interface

This is a thin client that proxies all requests to the REST API server.

GAME FLOW:
Join with join_game and keep the returned player id. Pick a character and
class, join a team and mark yourself ready. The game master starts the game,
then teams attempt the actions of the current room. Each attempt rolls your
stat: failures lock the action for every team.

Pass your player id as player_id on every command. Tools marked [gm] need a
game master id.`),
	)

	c.registerTools()
}

func actorParam() mcp.ToolOption {
	return mcp.WithString("player_id", mcp.Required(), mcp.Description("Id of the acting player"))
}

func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.NewTool("game_state",
		mcp.WithDescription("Get the current session state: phase, room, teams and players"),
	), c.handleGameState)

	// Lobby
	c.mcpServer.AddTool(mcp.NewTool("join_game",
		mcp.WithDescription("Join the session and receive a player id"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Display name")),
		mcp.WithString("role", mcp.Enum(string(engine.RolePlayer), string(engine.RoleGM)),
			mcp.Description("Role, defaults to player")),
	), c.handleJoin)

	c.mcpServer.AddTool(mcp.NewTool("select_character",
		mcp.WithDescription("Choose a character name and class. The class sets your stats"),
		actorParam(),
		mcp.WithString("character", mcp.Required(), mcp.Description("Character name")),
		mcp.WithString("character_class", mcp.Required(), mcp.Enum("warrior", "rogue", "mage", "cleric"),
			mcp.Description("Character class")),
	), c.handleSelectCharacter)

	c.mcpServer.AddTool(mcp.NewTool("toggle_ready",
		mcp.WithDescription("Flip your ready flag"),
		actorParam(),
	), c.handleToggleReady)

	c.mcpServer.AddTool(mcp.NewTool("select_team",
		mcp.WithDescription("Join a team"),
		actorParam(),
		mcp.WithString("team_id", mcp.Required(), mcp.Description("Team to join, e.g. team1")),
	), c.handleSelectTeam)

	c.mcpServer.AddTool(mcp.NewTool("rename_team",
		mcp.WithDescription("Rename a team [gm]"),
		actorParam(),
		mcp.WithString("team_id", mcp.Required(), mcp.Description("Team to rename")),
		mcp.WithString("new_name", mcp.Required(), mcp.Description("New team name")),
	), c.handleRenameTeam)

	// Game flow
	c.mcpServer.AddTool(mcp.NewTool("start_game",
		mcp.WithDescription("Start the game once everyone is ready [gm]"),
		actorParam(),
	), c.handleStartGame)

	c.mcpServer.AddTool(mcp.NewTool("perform_action",
		mcp.WithDescription("Attempt an action of the current room with your team"),
		actorParam(),
		mcp.WithString("action_id", mcp.Required(), mcp.Description("Action to attempt")),
		mcp.WithString("team_id", mcp.Description("Team, defaults to your own")),
		mcp.WithString("as_player", mcp.Description("Player to act for [gm]")),
		mcp.WithString("intent", mcp.Description("Why you chose this action")),
	), c.handlePerformAction)

	c.mcpServer.AddTool(mcp.NewTool("next_turn",
		mcp.WithDescription("Pass the turn to the next team [gm]"),
		actorParam(),
	), c.handleNextTurn)

	// Rooms
	c.mcpServer.AddTool(mcp.NewTool("list_rooms",
		mcp.WithDescription("List rooms in order with action availability"),
		mcp.WithString("player_id", mcp.Description("Viewer id; game masters also see GM notes")),
	), c.handleListRooms)

	c.mcpServer.AddTool(mcp.NewTool("room_completion",
		mcp.WithDescription("Show per-team completion of a room"),
		mcp.WithString("room_id", mcp.Description("Room id, defaults to the current room")),
	), c.handleRoomCompletion)

	c.mcpServer.AddTool(mcp.NewTool("next_room",
		mcp.WithDescription("Advance to the next room, finishing the game after the last one [gm]"),
		actorParam(),
	), c.handleNextRoom)

	c.mcpServer.AddTool(mcp.NewTool("previous_room",
		mcp.WithDescription("Go back one room without resetting it [gm]"),
		actorParam(),
	), c.handlePreviousRoom)

	c.mcpServer.AddTool(mcp.NewTool("reset_room",
		mcp.WithDescription("Restore every action of a room and clear team progress [gm]"),
		actorParam(),
		mcp.WithString("room_id", mcp.Description("Room id, defaults to the current room")),
	), c.handleResetRoom)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// ServeHTTP answers one JSON-RPC message per POST.
func (c *Client) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	response := c.mcpServer.HandleMessage(r.Context(), body)
	if response == nil {
		// notifications have no reply
		w.WriteHeader(http.StatusAccepted)
		return
	}

	data, err := json.Marshal(response)
	if err != nil {
		c.logger.Error("failed to marshal MCP response", zap.Error(err))
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// Ping reports whether the REST API answers its health check.
func (c *Client) Ping(ctx context.Context) error {
	return c.apiCall(ctx, "GET", "/health", "", nil, nil)
}

func (c *Client) apiCall(ctx context.Context, method, path, actor string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if actor != "" {
		req.Header.Set(actorHeader, actor)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		var errResp struct {
			Error string      `json:"error"`
			Code  engine.Kind `json:"code"`
		}
		if json.NewDecoder(resp.Body).Decode(&errResp) == nil {
			apiErr.Message = errResp.Error
			apiErr.Code = errResp.Code
		}
		return apiErr
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

// call runs an API request and renders either the formatted reply or the error.
func (c *Client) call(ctx context.Context, tool, method, path, actor string, body, result interface{}, render func() string) (*mcp.CallToolResult, error) {
	if err := c.apiCall(ctx, method, path, actor, body, result); err != nil {
		c.logger.Debug("MCP tool failed", zap.String("tool", tool), zap.Error(err))
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(render()), nil
}

// Tool handlers

func (c *Client) handleGameState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var st engine.State
	return c.call(ctx, "game_state", "GET", "/api/game/state", "", nil, &st, func() string {
		return formatState(&st)
	})
}

func (c *Client) handleJoin(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	body := map[string]string{
		"name": request.GetString("name", ""),
		"role": request.GetString("role", ""),
	}
	var resp struct {
		Player engine.Player `json:"player"`
	}
	return c.call(ctx, "join_game", "POST", "/api/auth/join", "", body, &resp, func() string {
		return fmt.Sprintf("Joined as %s (%s)\nPlayer ID: %s\nUse this id as player_id on every command.",
			resp.Player.Name, resp.Player.Role, resp.Player.ID)
	})
}

func (c *Client) handleSelectCharacter(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	body := map[string]string{
		"character":       request.GetString("character", ""),
		"character_class": request.GetString("character_class", ""),
	}
	var resp struct {
		Player engine.Player `json:"player"`
	}
	return c.call(ctx, "select_character", "POST", "/api/auth/select-character", request.GetString("player_id", ""), body, &resp, func() string {
		return fmt.Sprintf("%s is now %s the %s\nStats: %s",
			resp.Player.Name, resp.Player.Character, resp.Player.Class, formatStats(resp.Player.Stats))
	})
}

func (c *Client) handleToggleReady(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var resp struct {
		Player engine.Player `json:"player"`
	}
	return c.call(ctx, "toggle_ready", "POST", "/api/auth/toggle-ready", request.GetString("player_id", ""), struct{}{}, &resp, func() string {
		if resp.Player.Ready {
			return fmt.Sprintf("%s is ready", resp.Player.Name)
		}
		return fmt.Sprintf("%s is not ready", resp.Player.Name)
	})
}

func (c *Client) handleSelectTeam(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	body := map[string]string{"team_id": request.GetString("team_id", "")}
	var resp struct {
		Player engine.Player `json:"player"`
	}
	return c.call(ctx, "select_team", "POST", "/api/teams/select-team", request.GetString("player_id", ""), body, &resp, func() string {
		return fmt.Sprintf("%s joined %s", resp.Player.Name, resp.Player.Team)
	})
}

func (c *Client) handleRenameTeam(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	body := map[string]string{
		"team_id":  request.GetString("team_id", ""),
		"new_name": request.GetString("new_name", ""),
	}
	var resp struct {
		Team service.TeamInfo `json:"team"`
	}
	return c.call(ctx, "rename_team", "POST", "/api/teams/gm/rename-team", request.GetString("player_id", ""), body, &resp, func() string {
		return fmt.Sprintf("Team %s is now called %s", resp.Team.ID, resp.Team.Name)
	})
}

func (c *Client) handleStartGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var resp struct {
		GameState engine.State `json:"game_state"`
	}
	return c.call(ctx, "start_game", "POST", "/api/game/start", request.GetString("player_id", ""), struct{}{}, &resp, func() string {
		return "Game started!\n\n" + formatState(&resp.GameState)
	})
}

func (c *Client) handlePerformAction(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// intent is only there to make the caller explain itself
	body := map[string]string{
		"action_id": request.GetString("action_id", ""),
		"team_id":   request.GetString("team_id", ""),
		"player_id": request.GetString("as_player", ""),
	}
	var resp struct {
		Result engine.ActionResult `json:"result"`
	}
	return c.call(ctx, "perform_action", "POST", "/api/game/action", request.GetString("player_id", ""), body, &resp, func() string {
		return formatActionResult(&resp.Result)
	})
}

func (c *Client) handleNextTurn(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var resp struct {
		Turn service.TurnInfo `json:"turn"`
	}
	return c.call(ctx, "next_turn", "POST", "/api/game/next-turn", request.GetString("player_id", ""), struct{}{}, &resp, func() string {
		return fmt.Sprintf("It is now %s's turn (%s)", resp.Turn.TeamName, resp.Turn.TeamID)
	})
}

func (c *Client) handleListRooms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var resp struct {
		Rooms []service.RoomView `json:"rooms"`
	}
	return c.call(ctx, "list_rooms", "GET", "/api/rooms", request.GetString("player_id", ""), nil, &resp, func() string {
		return formatRooms(resp.Rooms)
	})
}

func (c *Client) handleRoomCompletion(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := "/api/rooms/current/completion"
	if id := request.GetString("room_id", ""); id != "" {
		path = "/api/rooms/" + url.PathEscape(id) + "/completion"
	}
	var completion engine.Completion
	return c.call(ctx, "room_completion", "GET", path, "", nil, &completion, func() string {
		return formatCompletion(&completion)
	})
}

func (c *Client) handleNextRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.roomMove(ctx, "next_room", "/api/rooms/gm/next-room", request)
}

func (c *Client) handlePreviousRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.roomMove(ctx, "previous_room", "/api/rooms/gm/previous-room", request)
}

func (c *Client) roomMove(ctx context.Context, tool, path string, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var resp struct {
		Transition service.Transition `json:"transition"`
	}
	return c.call(ctx, tool, "POST", path, request.GetString("player_id", ""), struct{}{}, &resp, func() string {
		return resp.Transition.Message
	})
}

func (c *Client) handleResetRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	body := map[string]string{"room_id": request.GetString("room_id", "")}
	var resp struct {
		Message string           `json:"message"`
		Room    service.RoomView `json:"room"`
	}
	return c.call(ctx, "reset_room", "POST", "/api/rooms/gm/reset-room", request.GetString("player_id", ""), body, &resp, func() string {
		return fmt.Sprintf("%s: %s", resp.Message, resp.Room.Name)
	})
}

// Formatting

func formatStats(stats map[string]int) string {
	if len(stats) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %d", k, stats[k]))
	}
	return strings.Join(parts, ", ")
}

func formatState(st *engine.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Status: %s (version %d)\n", st.Game.Phase, st.Version)
	if id := st.CurrentRoomID(); id != "" {
		fmt.Fprintf(&b, "Current room: %s\n", id)
	}
	if team := st.ActiveTeam(); team != "" {
		fmt.Fprintf(&b, "Active team: %s\n", team)
	}

	b.WriteString("\nTeams:\n")
	for _, id := range st.TeamOrder {
		t, ok := st.Teams[id]
		if !ok {
			continue
		}
		names := make([]string, 0, len(t.Members))
		for _, m := range t.Members {
			if p, ok := st.Players[m]; ok {
				names = append(names, p.Name)
			}
		}
		members := "empty"
		if len(names) > 0 {
			members = strings.Join(names, ", ")
		}
		fmt.Fprintf(&b, "- %s (%s): %s\n", t.Name, t.ID, members)
	}

	ids := make([]string, 0, len(st.Players))
	for id := range st.Players {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	b.WriteString("\nPlayers:\n")
	for _, id := range ids {
		p := st.Players[id]
		ready := "not ready"
		if p.Ready {
			ready = "ready"
		}
		fmt.Fprintf(&b, "- %s [%s] %s, %s", p.Name, p.Role, id, ready)
		if p.Class != "" {
			fmt.Fprintf(&b, ", %s", p.Class)
		}
		if p.Team != "" {
			fmt.Fprintf(&b, ", %s", p.Team)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatActionResult(res *engine.ActionResult) string {
	return fmt.Sprintf("%s: %s\nTeam %s, room %s\n%s %d + roll %.2f = %.2f",
		res.ActionID, res.Outcome.Description,
		res.TeamID, res.RoomID,
		res.Stat, res.StatVal, res.Roll, res.Total)
}

func formatRooms(rooms []service.RoomView) string {
	var b strings.Builder
	for _, r := range rooms {
		marker := " "
		if r.Current {
			marker = "*"
		}
		fmt.Fprintf(&b, "%s %d. %s (%s, %s)\n", marker, r.Position+1, r.Name, r.ID, r.Type)
		if r.Description != "" {
			fmt.Fprintf(&b, "    %s\n", r.Description)
		}
		if r.GMNotes != "" {
			fmt.Fprintf(&b, "    GM notes: %s\n", r.GMNotes)
		}
		for _, a := range r.Actions {
			state := "available"
			if !r.Available[a.ID] {
				state = "locked"
			}
			fmt.Fprintf(&b, "    - %s [%s] %s\n", a.ID, a.Stat, state)
		}
	}
	return b.String()
}

func formatCompletion(c *engine.Completion) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Room %s (%s)\n", c.RoomID, c.Type)
	if c.RequiredSuccesses > 0 {
		fmt.Fprintf(&b, "Pooled successes: %d/%d\n", c.PooledSuccesses, c.RequiredSuccesses)
	}

	teams := make([]string, 0, len(c.CompletionStatus))
	for id := range c.CompletionStatus {
		teams = append(teams, id)
	}
	sort.Strings(teams)
	for _, id := range teams {
		status := "in progress"
		if c.CompletionStatus[id].Completed {
			status = "completed"
		}
		fmt.Fprintf(&b, "- %s: %s (%d actions recorded)\n", id, status, len(c.CompletionStatus[id].Progress))
	}

	if c.RoomFullyCompleted {
		b.WriteString("Room fully completed\n")
	}
	return b.String()
}
