package service

import (
	"github.com/wricardo/escape-room-game/game/catalog"
	"github.com/wricardo/escape-room-game/game/engine"
)

// RoomView is a catalog room plus its runtime availability. GM-only fields are
// empty unless the viewer is a game master.
type RoomView struct {
	catalog.Room
	Position  int             `json:"position"`
	Current   bool            `json:"current"`
	Available map[string]bool `json:"available"`
}

// TechniqueInfo carries the GM-only notes of a room.
type TechniqueInfo struct {
	RoomID    string `json:"room_id"`
	Name      string `json:"name"`
	Technique string `json:"technique"`
	GMNotes   string `json:"gm_notes"`
}

// TeamInfo is a team with its members resolved to players.
type TeamInfo struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	Members []*engine.Player `json:"members"`
	Active  bool             `json:"active"`
}

// TurnInfo reports the team whose turn it is after rotation.
type TurnInfo struct {
	TeamID           string `json:"team_id"`
	TeamName         string `json:"team_name"`
	CurrentTurnIndex int    `json:"current_turn"`
}

// Transition is the outcome of a GM room move.
type Transition struct {
	Status   engine.Phase `json:"status"`
	Room     *RoomView    `json:"room,omitempty"`
	Finished bool         `json:"finished"`
	Message  string       `json:"message"`
}
