package engine

import (
	"fmt"

	"github.com/wricardo/escape-room-game/game/catalog"
)

// Engine bundles the catalog, team setup and resolver so callers apply every
// rule against one configuration. Methods mutate the *State they are given and
// never retain it.
type Engine struct {
	catalog  *catalog.Catalog
	teams    []TeamSpec
	resolver *Resolver
}

// Options configures an Engine.
type Options struct {
	Teams  []TeamSpec
	Roller Roller
	Policy ProgressPolicy
}

// NewEngine creates an engine over cat. Missing options take defaults: three
// teams, an unseeded random roller and PolicyLastWins.
func NewEngine(cat *catalog.Catalog, opts Options) (*Engine, error) {
	if cat == nil {
		return nil, fmt.Errorf("%w: catalog cannot be nil", ErrInvalidArgument)
	}
	if len(opts.Teams) == 0 {
		opts.Teams = DefaultTeams()
	}
	seen := make(map[string]bool, len(opts.Teams))
	for _, t := range opts.Teams {
		if t.ID == "" || seen[t.ID] {
			return nil, fmt.Errorf("%w: team ids must be unique and non-empty", ErrInvalidArgument)
		}
		seen[t.ID] = true
	}
	if opts.Roller == nil {
		opts.Roller = NewRandRoller(0)
	}
	policy, err := ParseProgressPolicy(string(opts.Policy))
	if err != nil {
		return nil, err
	}

	return &Engine{
		catalog: cat,
		teams:   opts.Teams,
		resolver: &Resolver{
			Catalog: cat,
			Roller:  opts.Roller,
			Policy:  policy,
		},
	}, nil
}

// Catalog returns the room catalog.
func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

// Policy returns the active progress policy.
func (e *Engine) Policy() ProgressPolicy { return e.resolver.Policy }

// NewState returns the initial lobby state.
func (e *Engine) NewState() *State {
	return NewState(e.catalog, e.teams)
}

// Resolve performs one action attempt.
func (e *Engine) Resolve(s *State, req ActionRequest) (*ActionResult, error) {
	return e.resolver.Resolve(s, req)
}

// StartGame enters the first room.
func (e *Engine) StartGame(s *State) error {
	return StartGame(s, e.catalog)
}

// AdvanceRoom moves forward or finishes the game.
func (e *Engine) AdvanceRoom(s *State) (*catalog.Room, error) {
	return AdvanceRoom(s, e.catalog)
}

// RetreatRoom moves backward.
func (e *Engine) RetreatRoom(s *State) (*catalog.Room, error) {
	return RetreatRoom(s, e.catalog)
}

// ResetRoom resets roomID.
func (e *Engine) ResetRoom(s *State, roomID string) (*catalog.Room, error) {
	return ResetRoomByID(s, e.catalog, roomID)
}

// Room looks up a catalog room, mapping misses onto ErrNotFound.
func (e *Engine) Room(roomID string) (*catalog.Room, error) {
	room, err := e.catalog.Get(roomID)
	if err != nil {
		return nil, fmt.Errorf("%w: room %s", ErrNotFound, roomID)
	}
	return room, nil
}

// Completion builds the completion report for roomID.
func (e *Engine) Completion(s *State, roomID string) (*Completion, error) {
	room, err := e.Room(roomID)
	if err != nil {
		return nil, err
	}
	return RoomCompletion(s, room), nil
}

// CurrentRoom returns the current catalog room.
func (e *Engine) CurrentRoom(s *State) (*catalog.Room, error) {
	return s.currentRoom(e.catalog)
}
