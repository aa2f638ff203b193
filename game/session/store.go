package session

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wricardo/escape-room-game/game/catalog"
	"github.com/wricardo/escape-room-game/game/engine"
)

// Publisher receives committed snapshots and discrete events. It is called
// while the store still holds its writer lock, so implementations must not
// block and must not call back into the store.
type Publisher interface {
	PublishActionResult(res *engine.ActionResult, version uint64)
	PublishSnapshot(s *engine.State)
}

type nopPublisher struct{}

func (nopPublisher) PublishActionResult(*engine.ActionResult, uint64) {}
func (nopPublisher) PublishSnapshot(*engine.State)                    {}

type expectedVersionKey struct{}

// WithExpectedVersion returns a context that makes the next mutation fail with
// engine.ErrConflict unless the current state version equals v.
func WithExpectedVersion(ctx context.Context, v uint64) context.Context {
	return context.WithValue(ctx, expectedVersionKey{}, v)
}

func expectedVersion(ctx context.Context) (uint64, bool) {
	v, ok := ctx.Value(expectedVersionKey{}).(uint64)
	return v, ok
}

// Precondition inspects the committed state before a mutation applies. A
// non-nil error aborts the mutation.
type Precondition func(*engine.State) error

type preconditionKey struct{}

// WithPrecondition attaches a check that the next mutation evaluates under the
// writer lock, atomically with the change itself. Checks added to the same
// context run in the order they were attached.
func WithPrecondition(ctx context.Context, p Precondition) context.Context {
	prev, _ := ctx.Value(preconditionKey{}).([]Precondition)
	return context.WithValue(ctx, preconditionKey{}, append(slices.Clip(prev), p))
}

func checkPreconditions(ctx context.Context, s *engine.State) error {
	checks, _ := ctx.Value(preconditionKey{}).([]Precondition)
	for _, check := range checks {
		if err := check(s); err != nil {
			return err
		}
	}
	return nil
}

// Store is the single owner of the session state. Mutations are serialized by
// mu and applied to a clone; reads load the published snapshot without locking.
type Store struct {
	engine    *engine.Engine
	publisher Publisher
	logger    *zap.Logger
	newID     func() string

	mu    sync.Mutex
	state atomic.Pointer[engine.State]
}

// Option configures a Store.
type Option func(*Store)

// WithPublisher sets the snapshot and event sink.
func WithPublisher(p Publisher) Option {
	return func(s *Store) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithIDGenerator overrides player id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewStore creates a store holding the engine's initial lobby state.
func NewStore(eng *engine.Engine, opts ...Option) *Store {
	s := &Store{
		engine:    eng,
		publisher: nopPublisher{},
		logger:    zap.NewNop(),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state.Store(eng.NewState())
	return s
}

// SetPublisher replaces the publisher. Used when the gateway is built after
// the store.
func (s *Store) SetPublisher(p Publisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p == nil {
		p = nopPublisher{}
	}
	s.publisher = p
}

// Engine returns the rules the store applies.
func (s *Store) Engine() *engine.Engine { return s.engine }

// Snapshot returns the latest committed state. Callers must not modify it.
func (s *Store) Snapshot() *engine.State {
	return s.state.Load()
}

// Version returns the latest committed version.
func (s *Store) Version() uint64 {
	return s.state.Load().Version
}

// mutate runs fn against a private copy of the state and publishes the copy
// only when fn succeeds.
func (s *Store) mutate(ctx context.Context, op string, fn func(*engine.State) (*engine.ActionResult, error)) (*engine.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.state.Load()
	if want, ok := expectedVersion(ctx); ok && want != cur.Version {
		return nil, fmt.Errorf("%w: state is at version %d, expected %d", engine.ErrConflict, cur.Version, want)
	}
	if err := checkPreconditions(ctx, cur); err != nil {
		s.logger.Debug("mutation precondition failed", zap.String("op", op), zap.Error(err))
		return nil, err
	}

	next := cur.Clone()
	res, err := fn(next)
	if err != nil {
		s.logger.Debug("mutation rejected", zap.String("op", op), zap.Error(err))
		return nil, err
	}

	next.Version = cur.Version + 1
	s.state.Store(next)
	s.logger.Debug("mutation committed", zap.String("op", op), zap.Uint64("version", next.Version))

	if res != nil {
		s.publisher.PublishActionResult(res, next.Version)
	}
	s.publisher.PublishSnapshot(next)
	return next, nil
}

// Join registers a new player under a freshly generated id.
func (s *Store) Join(ctx context.Context, name string, role engine.Role) (*engine.Player, error) {
	var p *engine.Player
	_, err := s.mutate(ctx, "join", func(st *engine.State) (*engine.ActionResult, error) {
		var err error
		p, err = engine.Join(st, s.newID(), name, role)
		return nil, err
	})
	if err != nil {
		return nil, err
	}
	return copyPlayer(p), nil
}

// SelectCharacter sets a player's character and class.
func (s *Store) SelectCharacter(ctx context.Context, playerID, character, class string) (*engine.Player, error) {
	var p *engine.Player
	_, err := s.mutate(ctx, "select-character", func(st *engine.State) (*engine.ActionResult, error) {
		var err error
		p, err = engine.SelectCharacter(st, playerID, character, class)
		return nil, err
	})
	if err != nil {
		return nil, err
	}
	return copyPlayer(p), nil
}

// ToggleReady flips a player's ready flag.
func (s *Store) ToggleReady(ctx context.Context, playerID string) (*engine.Player, error) {
	var p *engine.Player
	_, err := s.mutate(ctx, "toggle-ready", func(st *engine.State) (*engine.ActionResult, error) {
		var err error
		p, err = engine.ToggleReady(st, playerID)
		return nil, err
	})
	if err != nil {
		return nil, err
	}
	return copyPlayer(p), nil
}

// AssignTeam moves a player into a team.
func (s *Store) AssignTeam(ctx context.Context, playerID, teamID string) (*engine.Player, error) {
	var p *engine.Player
	_, err := s.mutate(ctx, "assign-team", func(st *engine.State) (*engine.ActionResult, error) {
		var err error
		p, err = engine.AssignTeam(st, playerID, teamID)
		return nil, err
	})
	if err != nil {
		return nil, err
	}
	return copyPlayer(p), nil
}

// RenameTeam changes a team's display name.
func (s *Store) RenameTeam(ctx context.Context, teamID, name string) (*engine.Team, error) {
	var t *engine.Team
	_, err := s.mutate(ctx, "rename-team", func(st *engine.State) (*engine.ActionResult, error) {
		var err error
		t, err = engine.RenameTeam(st, teamID, name)
		return nil, err
	})
	if err != nil {
		return nil, err
	}
	cp := *t
	cp.Members = slices.Clone(t.Members)
	cp.Progress = make(map[string]engine.Ledger, len(t.Progress))
	for room, l := range t.Progress {
		cp.Progress[room] = maps.Clone(l)
	}
	return &cp, nil
}

// StartGame leaves the lobby.
func (s *Store) StartGame(ctx context.Context) (*engine.State, error) {
	return s.mutate(ctx, "start-game", func(st *engine.State) (*engine.ActionResult, error) {
		return nil, s.engine.StartGame(st)
	})
}

// PerformAction resolves one action attempt for a team.
func (s *Store) PerformAction(ctx context.Context, req engine.ActionRequest) (*engine.ActionResult, error) {
	var res *engine.ActionResult
	_, err := s.mutate(ctx, "perform-action", func(st *engine.State) (*engine.ActionResult, error) {
		var err error
		res, err = s.engine.Resolve(st, req)
		return res, err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// NextTurn rotates the active team and returns its id.
func (s *Store) NextTurn(ctx context.Context) (string, error) {
	var team string
	_, err := s.mutate(ctx, "next-turn", func(st *engine.State) (*engine.ActionResult, error) {
		var err error
		team, err = engine.NextTurn(st)
		return nil, err
	})
	if err != nil {
		return "", err
	}
	return team, nil
}

// AdvanceRoom moves to the next room. The returned room is nil once the game
// has finished.
func (s *Store) AdvanceRoom(ctx context.Context) (*catalog.Room, error) {
	var room *catalog.Room
	_, err := s.mutate(ctx, "advance-room", func(st *engine.State) (*engine.ActionResult, error) {
		var err error
		room, err = s.engine.AdvanceRoom(st)
		return nil, err
	})
	if err != nil {
		return nil, err
	}
	return room, nil
}

// RetreatRoom moves back one room.
func (s *Store) RetreatRoom(ctx context.Context) (*catalog.Room, error) {
	var room *catalog.Room
	_, err := s.mutate(ctx, "retreat-room", func(st *engine.State) (*engine.ActionResult, error) {
		var err error
		room, err = s.engine.RetreatRoom(st)
		return nil, err
	})
	if err != nil {
		return nil, err
	}
	return room, nil
}

// ResetRoom resets a room. An empty roomID targets the current room.
func (s *Store) ResetRoom(ctx context.Context, roomID string) (*catalog.Room, error) {
	var room *catalog.Room
	_, err := s.mutate(ctx, "reset-room", func(st *engine.State) (*engine.ActionResult, error) {
		id := roomID
		if id == "" {
			id = st.CurrentRoomID()
			if id == "" {
				return nil, fmt.Errorf("%w: no current room", engine.ErrInvalidState)
			}
		}
		var err error
		room, err = s.engine.ResetRoom(st, id)
		return nil, err
	})
	if err != nil {
		return nil, err
	}
	return room, nil
}

// copyPlayer detaches a returned player from the published snapshot.
func copyPlayer(p *engine.Player) *engine.Player {
	cp := *p
	cp.Stats = maps.Clone(p.Stats)
	return &cp
}
