package service

import (
	"context"
	"fmt"

	"github.com/wricardo/escape-room-game/game/catalog"
	"github.com/wricardo/escape-room-game/game/engine"
	"github.com/wricardo/escape-room-game/game/session"
)

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	store StateStore
}

// NewGameService creates a new game service over store
func NewGameService(store StateStore) GameService {
	return &gameServiceImpl{store: store}
}

// actor resolves the acting player in s. Unknown actors are forbidden rather
// than not found so a caller cannot probe for player ids.
func actor(s *engine.State, actorID string) (*engine.Player, error) {
	if actorID == "" {
		return nil, fmt.Errorf("%w: acting player id is required", engine.ErrForbidden)
	}
	p, ok := s.Players[actorID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown acting player %s", engine.ErrForbidden, actorID)
	}
	return p, nil
}

func requireGM(actorID string) session.Precondition {
	return func(s *engine.State) error {
		p, err := actor(s, actorID)
		if err != nil {
			return err
		}
		if p.Role != engine.RoleGM {
			return fmt.Errorf("%w: %s is not a game master", engine.ErrForbidden, p.Name)
		}
		return nil
	}
}

func (s *gameServiceImpl) isGM(st *engine.State, actorID string) bool {
	p, ok := st.Players[actorID]
	return ok && p.Role == engine.RoleGM
}

// Join registers a player
func (s *gameServiceImpl) Join(ctx context.Context, name string, role engine.Role) (*engine.Player, error) {
	if role == "" {
		role = engine.RolePlayer
	}
	return s.store.Join(ctx, name, role)
}

// SelectCharacter picks a character and class
func (s *gameServiceImpl) SelectCharacter(ctx context.Context, playerID, character, class string) (*engine.Player, error) {
	return s.store.SelectCharacter(ctx, playerID, character, class)
}

// ToggleReady flips the ready flag
func (s *gameServiceImpl) ToggleReady(ctx context.Context, playerID string) (*engine.Player, error) {
	return s.store.ToggleReady(ctx, playerID)
}

// Teams lists teams in creation order with resolved members
func (s *gameServiceImpl) Teams(ctx context.Context) []*TeamInfo {
	st := s.store.Snapshot()
	active := st.ActiveTeam()

	out := make([]*TeamInfo, 0, len(st.TeamOrder))
	for _, t := range st.OrderedTeams() {
		out = append(out, teamInfo(st, t, active))
	}
	return out
}

func teamInfo(st *engine.State, t *engine.Team, active string) *TeamInfo {
	info := &TeamInfo{
		ID:      t.ID,
		Name:    t.Name,
		Members: make([]*engine.Player, 0, len(t.Members)),
		Active:  t.ID == active,
	}
	for _, id := range t.Members {
		if p, ok := st.Players[id]; ok {
			cp := *p
			info.Members = append(info.Members, &cp)
		}
	}
	return info
}

// AssignTeam moves playerID into teamID. Players may only move themselves.
func (s *gameServiceImpl) AssignTeam(ctx context.Context, actorID, playerID, teamID string) (*engine.Player, error) {
	if playerID == "" {
		playerID = actorID
	}
	ctx = session.WithPrecondition(ctx, func(st *engine.State) error {
		p, err := actor(st, actorID)
		if err != nil {
			return err
		}
		if p.Role != engine.RoleGM && playerID != actorID {
			return fmt.Errorf("%w: only a game master can move other players", engine.ErrForbidden)
		}
		return nil
	})
	return s.store.AssignTeam(ctx, playerID, teamID)
}

// RenameTeam changes a team name [gm]
func (s *gameServiceImpl) RenameTeam(ctx context.Context, actorID, teamID, name string) (*TeamInfo, error) {
	t, err := s.store.RenameTeam(session.WithPrecondition(ctx, requireGM(actorID)), teamID, name)
	if err != nil {
		return nil, err
	}
	st := s.store.Snapshot()
	return teamInfo(st, t, st.ActiveTeam()), nil
}

// StartGame leaves the lobby [gm]
func (s *gameServiceImpl) StartGame(ctx context.Context, actorID string) (*engine.State, error) {
	return s.store.StartGame(session.WithPrecondition(ctx, requireGM(actorID)))
}

// PerformAction resolves an action. Empty team and player ids default to the
// actor and the actor's team. Non-GM actors may only act as themselves for
// their own team.
func (s *gameServiceImpl) PerformAction(ctx context.Context, actorID string, req engine.ActionRequest) (*engine.ActionResult, error) {
	if req.ActionID == "" {
		return nil, fmt.Errorf("%w: action_id is required", engine.ErrInvalidArgument)
	}

	// defaults are resolved against the snapshot; the precondition below
	// re-checks membership under the writer lock
	st := s.store.Snapshot()
	if req.PlayerID == "" {
		req.PlayerID = actorID
	}
	if req.TeamID == "" {
		if p, ok := st.Players[req.PlayerID]; ok {
			req.TeamID = p.Team
		}
	}
	if req.TeamID == "" {
		return nil, fmt.Errorf("%w: team_id is required", engine.ErrInvalidArgument)
	}

	ctx = session.WithPrecondition(ctx, func(st *engine.State) error {
		p, err := actor(st, actorID)
		if err != nil {
			return err
		}
		if p.Role == engine.RoleGM {
			return nil
		}
		if req.PlayerID != actorID {
			return fmt.Errorf("%w: players can only act as themselves", engine.ErrForbidden)
		}
		if p.Team != req.TeamID {
			return fmt.Errorf("%w: %s is not a member of team %s", engine.ErrForbidden, p.Name, req.TeamID)
		}
		return nil
	})
	return s.store.PerformAction(ctx, req)
}

// NextTurn rotates the active team [gm]
func (s *gameServiceImpl) NextTurn(ctx context.Context, actorID string) (*TurnInfo, error) {
	teamID, err := s.store.NextTurn(session.WithPrecondition(ctx, requireGM(actorID)))
	if err != nil {
		return nil, err
	}
	st := s.store.Snapshot()
	info := &TurnInfo{TeamID: teamID, CurrentTurnIndex: st.Game.CurrentTurnIndex}
	if t, ok := st.Teams[teamID]; ok {
		info.TeamName = t.Name
	}
	return info, nil
}

// Snapshot returns the latest committed state
func (s *gameServiceImpl) Snapshot(ctx context.Context) *engine.State {
	return s.store.Snapshot()
}

func (s *gameServiceImpl) view(st *engine.State, room catalog.Room, gm bool) *RoomView {
	if !gm {
		room = room.PublicView()
	}
	v := &RoomView{
		Room:      room,
		Current:   st.CurrentRoomID() == room.ID,
		Available: map[string]bool{},
	}
	if pos, ok := s.store.Engine().Catalog().Position(room.ID); ok {
		v.Position = pos
	}
	if rs, ok := st.Rooms[room.ID]; ok {
		for id, avail := range rs.Available {
			v.Available[id] = avail
		}
	}
	return v
}

// Rooms lists the catalog in order
func (s *gameServiceImpl) Rooms(ctx context.Context, actorID string) []*RoomView {
	st := s.store.Snapshot()
	gm := s.isGM(st, actorID)

	rooms := s.store.Engine().Catalog().Rooms()
	out := make([]*RoomView, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, s.view(st, r, gm))
	}
	return out
}

// Room returns one room
func (s *gameServiceImpl) Room(ctx context.Context, actorID, roomID string) (*RoomView, error) {
	room, err := s.store.Engine().Room(roomID)
	if err != nil {
		return nil, err
	}
	st := s.store.Snapshot()
	return s.view(st, *room, s.isGM(st, actorID)), nil
}

// CurrentRoom returns the room the session is in
func (s *gameServiceImpl) CurrentRoom(ctx context.Context, actorID string) (*RoomView, error) {
	st := s.store.Snapshot()
	room, err := s.store.Engine().CurrentRoom(st)
	if err != nil {
		return nil, err
	}
	return s.view(st, *room, s.isGM(st, actorID)), nil
}

// Technique returns the GM notes of the current room [gm]
func (s *gameServiceImpl) Technique(ctx context.Context, actorID string) (*TechniqueInfo, error) {
	st := s.store.Snapshot()
	if err := requireGM(actorID)(st); err != nil {
		return nil, err
	}
	room, err := s.store.Engine().CurrentRoom(st)
	if err != nil {
		return nil, err
	}
	return &TechniqueInfo{
		RoomID:    room.ID,
		Name:      room.Name,
		Technique: room.Technique,
		GMNotes:   room.GMNotes,
	}, nil
}

func (s *gameServiceImpl) resolveRoomID(st *engine.State, roomID string) (string, error) {
	if roomID != "" {
		return roomID, nil
	}
	if id := st.CurrentRoomID(); id != "" {
		return id, nil
	}
	return "", fmt.Errorf("%w: no current room", engine.ErrInvalidState)
}

// RoomCompletion reports completion for roomID, or the current room when empty
func (s *gameServiceImpl) RoomCompletion(ctx context.Context, roomID string) (*engine.Completion, error) {
	st := s.store.Snapshot()
	id, err := s.resolveRoomID(st, roomID)
	if err != nil {
		return nil, err
	}
	return s.store.Engine().Completion(st, id)
}

// RoomStats reports per-team statistics for roomID, or the current room when empty
func (s *gameServiceImpl) RoomStats(ctx context.Context, roomID string) (*engine.Stats, error) {
	st := s.store.Snapshot()
	id, err := s.resolveRoomID(st, roomID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Engine().Room(id); err != nil {
		return nil, err
	}
	return engine.RoomStats(st, id), nil
}

func (s *gameServiceImpl) transition(room *catalog.Room, verb string) *Transition {
	st := s.store.Snapshot()
	t := &Transition{Status: st.Game.Phase}
	if room == nil {
		t.Finished = true
		t.Message = "Game finished, all rooms completed"
		return t
	}
	t.Room = s.view(st, *room, true)
	t.Message = fmt.Sprintf("%s %s", verb, room.Name)
	return t
}

// AdvanceRoom moves to the next room or finishes the game [gm]
func (s *gameServiceImpl) AdvanceRoom(ctx context.Context, actorID string) (*Transition, error) {
	room, err := s.store.AdvanceRoom(session.WithPrecondition(ctx, requireGM(actorID)))
	if err != nil {
		return nil, err
	}
	return s.transition(room, "Advanced to"), nil
}

// RetreatRoom moves back one room [gm]
func (s *gameServiceImpl) RetreatRoom(ctx context.Context, actorID string) (*Transition, error) {
	room, err := s.store.RetreatRoom(session.WithPrecondition(ctx, requireGM(actorID)))
	if err != nil {
		return nil, err
	}
	return s.transition(room, "Returned to"), nil
}

// ResetRoom resets roomID, or the current room when empty [gm]
func (s *gameServiceImpl) ResetRoom(ctx context.Context, actorID, roomID string) (*RoomView, error) {
	room, err := s.store.ResetRoom(session.WithPrecondition(ctx, requireGM(actorID)), roomID)
	if err != nil {
		return nil, err
	}
	return s.view(s.store.Snapshot(), *room, true), nil
}
