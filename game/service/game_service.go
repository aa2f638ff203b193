package service

import (
	"context"

	"github.com/wricardo/escape-room-game/game/catalog"
	"github.com/wricardo/escape-room-game/game/engine"
)

// GameService defines every command and query of the escape room session.
// Methods that take an actorID check the acting player's role.
type GameService interface {
	// Lobby
	Join(ctx context.Context, name string, role engine.Role) (*engine.Player, error)
	SelectCharacter(ctx context.Context, playerID, character, class string) (*engine.Player, error)
	ToggleReady(ctx context.Context, playerID string) (*engine.Player, error)

	// Teams
	Teams(ctx context.Context) []*TeamInfo
	AssignTeam(ctx context.Context, actorID, playerID, teamID string) (*engine.Player, error)
	RenameTeam(ctx context.Context, actorID, teamID, name string) (*TeamInfo, error)

	// Game flow
	StartGame(ctx context.Context, actorID string) (*engine.State, error)
	PerformAction(ctx context.Context, actorID string, req engine.ActionRequest) (*engine.ActionResult, error)
	NextTurn(ctx context.Context, actorID string) (*TurnInfo, error)
	Snapshot(ctx context.Context) *engine.State

	// Rooms
	Rooms(ctx context.Context, actorID string) []*RoomView
	Room(ctx context.Context, actorID, roomID string) (*RoomView, error)
	CurrentRoom(ctx context.Context, actorID string) (*RoomView, error)
	Technique(ctx context.Context, actorID string) (*TechniqueInfo, error)
	RoomCompletion(ctx context.Context, roomID string) (*engine.Completion, error)
	RoomStats(ctx context.Context, roomID string) (*engine.Stats, error)
	AdvanceRoom(ctx context.Context, actorID string) (*Transition, error)
	RetreatRoom(ctx context.Context, actorID string) (*Transition, error)
	ResetRoom(ctx context.Context, actorID, roomID string) (*RoomView, error)
}

// StateStore is the serialized state owner the service drives. It is
// implemented by *session.Store.
type StateStore interface {
	Engine() *engine.Engine
	Snapshot() *engine.State

	Join(ctx context.Context, name string, role engine.Role) (*engine.Player, error)
	SelectCharacter(ctx context.Context, playerID, character, class string) (*engine.Player, error)
	ToggleReady(ctx context.Context, playerID string) (*engine.Player, error)
	AssignTeam(ctx context.Context, playerID, teamID string) (*engine.Player, error)
	RenameTeam(ctx context.Context, teamID, name string) (*engine.Team, error)
	StartGame(ctx context.Context) (*engine.State, error)
	PerformAction(ctx context.Context, req engine.ActionRequest) (*engine.ActionResult, error)
	NextTurn(ctx context.Context) (string, error)
	AdvanceRoom(ctx context.Context) (*catalog.Room, error)
	RetreatRoom(ctx context.Context) (*catalog.Room, error)
	ResetRoom(ctx context.Context, roomID string) (*catalog.Room, error)
}
