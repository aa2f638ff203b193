package engine

import (
	"errors"
	"fmt"

	"github.com/wricardo/escape-room-game/game/catalog"
)

// nonFailures counts entries that are not failures.
func nonFailures(l Ledger) int {
	n := 0
	for _, o := range l {
		if o.Result != ResultFailure {
			n++
		}
	}
	return n
}

// IsUniqueComplete reports whether every action of a unique room is either
// consumed or recorded in the team's ledger.
func IsUniqueComplete(room *catalog.Room, rs *RoomState, ledger Ledger) bool {
	for _, a := range room.Actions {
		_, recorded := ledger[a.ID]
		available := rs == nil || rs.Available[a.ID]
		if available && !recorded {
			return false
		}
	}
	return true
}

// PooledSuccesses counts non-failure outcomes for roomID across every team.
func PooledSuccesses(s *State, roomID string) int {
	n := 0
	for _, t := range s.Teams {
		n += nonFailures(t.Progress[roomID])
	}
	return n
}

// IsComplete evaluates a room's completion for one team. For common rooms the
// answer is global and does not depend on teamID.
func IsComplete(s *State, room *catalog.Room, teamID string) bool {
	if room.Type == catalog.Common {
		return PooledSuccesses(s, room.ID) >= room.RequiredSuccesses
	}
	var ledger Ledger
	if t, ok := s.Teams[teamID]; ok {
		ledger = t.Progress[room.ID]
	}
	return IsUniqueComplete(room, s.Rooms[room.ID], ledger)
}

// TeamCompletion is one team's row in a completion report.
type TeamCompletion struct {
	// Completed is informational only for common rooms.
	Completed bool   `json:"completed"`
	Progress  Ledger `json:"progress"`
}

// Completion is the full completion report for a room.
type Completion struct {
	RoomID             string                    `json:"room_id"`
	Type               catalog.RoomType          `json:"type"`
	CompletionStatus   map[string]TeamCompletion `json:"completion_status"`
	RoomFullyCompleted bool                      `json:"room_fully_completed"`
	RequiredSuccesses  int                       `json:"required_successes,omitempty"`
	PooledSuccesses    int                       `json:"pooled_successes"`
}

// RoomCompletion builds the completion report for room.
func RoomCompletion(s *State, room *catalog.Room) *Completion {
	c := &Completion{
		RoomID:            room.ID,
		Type:              room.Type,
		CompletionStatus:  make(map[string]TeamCompletion, len(s.Teams)),
		RequiredSuccesses: room.RequiredSuccesses,
		PooledSuccesses:   PooledSuccesses(s, room.ID),
	}

	allTeams := true
	for _, t := range s.OrderedTeams() {
		ledger := t.Progress[room.ID]
		var done bool
		if room.Type == catalog.Common {
			done = nonFailures(ledger) >= room.RequiredSuccesses
		} else {
			done = IsUniqueComplete(room, s.Rooms[room.ID], ledger)
		}
		if ledger == nil {
			ledger = Ledger{}
		}
		c.CompletionStatus[t.ID] = TeamCompletion{Completed: done, Progress: ledger}
		allTeams = allTeams && done
	}

	if room.Type == catalog.Common {
		c.RoomFullyCompleted = c.PooledSuccesses >= room.RequiredSuccesses
	} else {
		c.RoomFullyCompleted = allTeams
	}
	return c
}

// TeamStats summarizes one team's ledger for a room.
type TeamStats struct {
	TeamName             string  `json:"team_name"`
	SuccessfulActions    int     `json:"successful_actions"`
	FailedActions        int     `json:"failed_actions"`
	TotalActions         int     `json:"total_actions"`
	CompletionPercentage float64 `json:"completion_percentage"`
}

// Stats is the per-team statistics report for a room.
type Stats struct {
	RoomID       string               `json:"room_id"`
	TeamProgress map[string]TeamStats `json:"team_progress"`
}

// RoomStats builds the statistics report for roomID.
func RoomStats(s *State, roomID string) *Stats {
	st := &Stats{RoomID: roomID, TeamProgress: make(map[string]TeamStats, len(s.Teams))}
	for _, t := range s.OrderedTeams() {
		ledger := t.Progress[roomID]
		ok := nonFailures(ledger)
		ts := TeamStats{
			TeamName:          t.Name,
			SuccessfulActions: ok,
			FailedActions:     len(ledger) - ok,
			TotalActions:      len(ledger),
		}
		if len(ledger) > 0 {
			ts.CompletionPercentage = float64(ok) / float64(len(ledger)) * 100
		}
		st.TeamProgress[t.ID] = ts
	}
	return st
}

// ResetRoom restores availability of every action in room and clears every
// team's ledger for it.
func ResetRoom(s *State, room *catalog.Room) {
	rs, ok := s.Rooms[room.ID]
	if !ok {
		rs = &RoomState{}
		s.Rooms[room.ID] = rs
	}
	rs.Available = make(map[string]bool, len(room.Actions))
	for _, a := range room.Actions {
		rs.Available[a.ID] = true
	}
	for _, t := range s.Teams {
		delete(t.Progress, room.ID)
	}
}

// StartGame moves the lobby into the first room.
func StartGame(s *State, cat *catalog.Catalog) error {
	if s.Game.Phase != PhaseLobby {
		return fmt.Errorf("%w: game is %s", ErrInvalidPhase, s.Game.Phase)
	}
	for _, p := range s.Players {
		if !p.Ready {
			return fmt.Errorf("%w: not all players are ready (%s)", ErrInvalidState, p.Name)
		}
	}

	first := cat.First()
	s.Game.Phase = PhaseInProgress
	s.setCurrentRoom(first.ID)
	s.Game.TurnOrder = append([]string(nil), s.TeamOrder...)
	s.Game.CurrentTurnIndex = 0
	return nil
}

// NextTurn rotates to the next team and returns its id.
func NextTurn(s *State) (string, error) {
	if s.Game.Phase != PhaseInProgress {
		return "", fmt.Errorf("%w: game is %s", ErrInvalidPhase, s.Game.Phase)
	}
	if len(s.Game.TurnOrder) == 0 {
		return "", fmt.Errorf("%w: turn order is empty", ErrInvalidState)
	}
	s.Game.CurrentTurnIndex = (s.Game.CurrentTurnIndex + 1) % len(s.Game.TurnOrder)
	return s.Game.TurnOrder[s.Game.CurrentTurnIndex], nil
}

// AdvanceRoom moves to the next room, resetting it, or finishes the game from
// the last room. It returns the new current room, nil when finished.
func AdvanceRoom(s *State, cat *catalog.Catalog) (*catalog.Room, error) {
	current, err := s.currentRoom(cat)
	if err != nil {
		return nil, err
	}

	if cat.IsLast(current.ID) {
		s.Game.Phase = PhaseFinished
		s.setCurrentRoom("")
		return nil, nil
	}

	next, err := cat.Next(current.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	s.setCurrentRoom(next.ID)
	ResetRoom(s, next)
	s.Game.CurrentTurnIndex = 0
	return next, nil
}

// RetreatRoom moves back one room without touching availability or progress.
func RetreatRoom(s *State, cat *catalog.Catalog) (*catalog.Room, error) {
	current, err := s.currentRoom(cat)
	if err != nil {
		return nil, err
	}
	prev, err := cat.Prev(current.ID)
	if err != nil {
		if errors.Is(err, catalog.ErrNoNeighbor) {
			return nil, fmt.Errorf("%w: no previous room available", ErrInvalidState)
		}
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	s.setCurrentRoom(prev.ID)
	s.Game.CurrentTurnIndex = 0
	return prev, nil
}

// ResetRoomByID resets roomID; resetting the current room also rewinds the turn.
func ResetRoomByID(s *State, cat *catalog.Catalog, roomID string) (*catalog.Room, error) {
	room, err := cat.Get(roomID)
	if err != nil {
		return nil, fmt.Errorf("%w: room %s", ErrNotFound, roomID)
	}
	ResetRoom(s, room)
	if s.CurrentRoomID() == room.ID {
		s.Game.CurrentTurnIndex = 0
	}
	return room, nil
}
