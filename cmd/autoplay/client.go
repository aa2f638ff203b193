package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/wricardo/escape-room-game/game/engine"
	"github.com/wricardo/escape-room-game/game/service"
)

// Client drives the REST API as one or more players.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// do sends one request as actor and decodes the reply into out.
func (c *Client) do(ctx context.Context, method, path, actor string, body, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set("X-Player-ID", actor)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return fmt.Errorf("%s %s failed: %s - %s", method, path, resp.Status, errResp.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parse %s response: %w", path, err)
	}
	return nil
}

func (c *Client) Join(ctx context.Context, name string, role engine.Role) (*engine.Player, error) {
	var resp struct {
		Player engine.Player `json:"player"`
	}
	err := c.do(ctx, "POST", "/api/auth/join", "", map[string]string{"name": name, "role": string(role)}, &resp)
	return &resp.Player, err
}

func (c *Client) SelectCharacter(ctx context.Context, playerID, character, class string) error {
	return c.do(ctx, "POST", "/api/auth/select-character", playerID,
		map[string]string{"character": character, "character_class": class}, nil)
}

func (c *Client) SelectTeam(ctx context.Context, playerID, teamID string) error {
	return c.do(ctx, "POST", "/api/teams/select-team", playerID, map[string]string{"team_id": teamID}, nil)
}

func (c *Client) ToggleReady(ctx context.Context, playerID string) error {
	return c.do(ctx, "POST", "/api/auth/toggle-ready", playerID, nil, nil)
}

func (c *Client) Teams(ctx context.Context) ([]service.TeamInfo, error) {
	var resp struct {
		Teams []service.TeamInfo `json:"teams"`
	}
	err := c.do(ctx, "GET", "/api/teams", "", nil, &resp)
	return resp.Teams, err
}

func (c *Client) StartGame(ctx context.Context, gmID string) error {
	return c.do(ctx, "POST", "/api/game/start", gmID, nil, nil)
}

func (c *Client) State(ctx context.Context) (*engine.State, error) {
	var st engine.State
	err := c.do(ctx, "GET", "/api/game/state", "", nil, &st)
	return &st, err
}

func (c *Client) CurrentRoom(ctx context.Context, actor string) (*service.RoomView, error) {
	var resp struct {
		Room service.RoomView `json:"room"`
	}
	err := c.do(ctx, "GET", "/api/rooms/current", actor, nil, &resp)
	return &resp.Room, err
}

func (c *Client) Completion(ctx context.Context) (*engine.Completion, error) {
	var completion engine.Completion
	err := c.do(ctx, "GET", "/api/rooms/current/completion", "", nil, &completion)
	return &completion, err
}

func (c *Client) PerformAction(ctx context.Context, playerID, actionID string) (*engine.ActionResult, error) {
	var resp struct {
		Result engine.ActionResult `json:"result"`
	}
	err := c.do(ctx, "POST", "/api/game/action", playerID, map[string]string{"action_id": actionID}, &resp)
	return &resp.Result, err
}

func (c *Client) NextTurn(ctx context.Context, gmID string) error {
	return c.do(ctx, "POST", "/api/game/next-turn", gmID, nil, nil)
}

func (c *Client) NextRoom(ctx context.Context, gmID string) (*service.Transition, error) {
	var resp struct {
		Transition service.Transition `json:"transition"`
	}
	err := c.do(ctx, "POST", "/api/rooms/gm/next-room", gmID, nil, &resp)
	return &resp.Transition, err
}
