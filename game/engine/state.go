package engine

import (
	"fmt"
	"maps"
	"slices"

	"github.com/wricardo/escape-room-game/game/catalog"
)

// NewState builds the lobby state for a catalog and a fixed team set.
func NewState(cat *catalog.Catalog, teams []TeamSpec) *State {
	s := &State{
		Players:   make(map[string]*Player),
		Teams:     make(map[string]*Team, len(teams)),
		TeamOrder: make([]string, 0, len(teams)),
		Rooms:     make(map[string]*RoomState, cat.Len()),
		Game: Game{
			Phase:     PhaseLobby,
			TurnOrder: []string{},
		},
	}

	for _, t := range teams {
		s.Teams[t.ID] = &Team{
			ID:       t.ID,
			Name:     t.Name,
			Members:  []string{},
			Progress: make(map[string]Ledger),
		}
		s.TeamOrder = append(s.TeamOrder, t.ID)
	}

	for _, r := range cat.Rooms() {
		rs := &RoomState{Available: make(map[string]bool, len(r.Actions))}
		for _, a := range r.Actions {
			rs.Available[a.ID] = true
		}
		s.Rooms[r.ID] = rs
	}

	return s
}

// Clone returns a deep copy that shares no mutable memory with s.
func (s *State) Clone() *State {
	c := &State{
		Version:   s.Version,
		Players:   make(map[string]*Player, len(s.Players)),
		Teams:     make(map[string]*Team, len(s.Teams)),
		TeamOrder: slices.Clone(s.TeamOrder),
		Rooms:     make(map[string]*RoomState, len(s.Rooms)),
		Game: Game{
			Phase:            s.Game.Phase,
			TurnOrder:        slices.Clone(s.Game.TurnOrder),
			CurrentTurnIndex: s.Game.CurrentTurnIndex,
		},
	}
	if s.Game.CurrentRoomID != nil {
		id := *s.Game.CurrentRoomID
		c.Game.CurrentRoomID = &id
	}

	for id, p := range s.Players {
		cp := *p
		cp.Stats = maps.Clone(p.Stats)
		c.Players[id] = &cp
	}

	for id, t := range s.Teams {
		ct := &Team{
			ID:       t.ID,
			Name:     t.Name,
			Members:  slices.Clone(t.Members),
			Progress: make(map[string]Ledger, len(t.Progress)),
		}
		for room, l := range t.Progress {
			ct.Progress[room] = maps.Clone(l)
		}
		c.Teams[id] = ct
	}

	for id, r := range s.Rooms {
		c.Rooms[id] = &RoomState{Available: maps.Clone(r.Available)}
	}

	return c
}

// Player returns the player with id.
func (s *State) Player(id string) (*Player, error) {
	p, ok := s.Players[id]
	if !ok {
		return nil, fmt.Errorf("%w: player %s", ErrNotFound, id)
	}
	return p, nil
}

// Team returns the team with id.
func (s *State) Team(id string) (*Team, error) {
	t, ok := s.Teams[id]
	if !ok {
		return nil, fmt.Errorf("%w: team %s", ErrNotFound, id)
	}
	return t, nil
}

// OrderedTeams returns teams in creation order.
func (s *State) OrderedTeams() []*Team {
	out := make([]*Team, 0, len(s.TeamOrder))
	for _, id := range s.TeamOrder {
		if t, ok := s.Teams[id]; ok {
			out = append(out, t)
		}
	}
	return out
}

// CurrentRoomID returns the current room id or "" when there is none.
func (s *State) CurrentRoomID() string {
	if s.Game.CurrentRoomID == nil {
		return ""
	}
	return *s.Game.CurrentRoomID
}

// ActiveTeam returns the team whose turn it is, or "" before the game starts.
func (s *State) ActiveTeam() string {
	if len(s.Game.TurnOrder) == 0 {
		return ""
	}
	return s.Game.TurnOrder[s.Game.CurrentTurnIndex]
}

// Available reports whether an action in a room can still be attempted.
func (s *State) Available(roomID, actionID string) bool {
	rs, ok := s.Rooms[roomID]
	if !ok {
		return false
	}
	return rs.Available[actionID]
}

func (s *State) setCurrentRoom(id string) {
	if id == "" {
		s.Game.CurrentRoomID = nil
		return
	}
	s.Game.CurrentRoomID = &id
}

func (s *State) currentRoom(cat *catalog.Catalog) (*catalog.Room, error) {
	id := s.CurrentRoomID()
	if id == "" {
		return nil, fmt.Errorf("%w: no current room", ErrInvalidState)
	}
	room, err := cat.Get(id)
	if err != nil {
		return nil, fmt.Errorf("%w: current room %s", ErrNotFound, id)
	}
	return room, nil
}
