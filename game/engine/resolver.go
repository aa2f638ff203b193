package engine

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/wricardo/escape-room-game/game/catalog"
)

const (
	// MaxStat is the fixed scale the classification thresholds are relative to.
	MaxStat = 10.0
	// RollRange is the exclusive upper bound of a roll.
	RollRange = 10.0
)

// Roller produces uniform rolls in [0, RollRange).
type Roller interface {
	Roll() float64
}

// RollerFunc adapts a function to Roller.
type RollerFunc func() float64

func (f RollerFunc) Roll() float64 { return f() }

// FixedRoller always returns the same roll.
type FixedRoller float64

func (r FixedRoller) Roll() float64 { return float64(r) }

// randRoller is safe for concurrent use.
type randRoller struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRandRoller returns a seeded roller. A zero seed draws a random one.
func NewRandRoller(seed uint64) Roller {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &randRoller{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (r *randRoller) Roll() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.r.Float64() * RollRange
}

// Classify maps a total onto failure/success/perfect. Boundaries belong to the
// upper bucket.
func Classify(total float64) Result {
	switch {
	case total < MaxStat/2:
		return ResultFailure
	case total < MaxStat*0.75:
		return ResultSuccess
	default:
		return ResultPerfect
	}
}

// Describe returns the display text for a result.
func Describe(r Result) string {
	switch r {
	case ResultFailure:
		return "Failure, the action is blocked"
	case ResultSuccess:
		return "Partial success, half the penalty"
	default:
		return "Perfect success"
	}
}

// ProgressPolicy decides whether an existing ledger entry may be replaced.
type ProgressPolicy string

const (
	// PolicyLastWins lets every new resolution overwrite the previous entry.
	PolicyLastWins ProgressPolicy = "last-wins"
	// PolicyFirstSuccessFinal freezes an entry once it records a non-failure.
	PolicyFirstSuccessFinal ProgressPolicy = "first-success-final"
)

// ParseProgressPolicy validates a policy name. Empty selects PolicyLastWins.
func ParseProgressPolicy(name string) (ProgressPolicy, error) {
	switch ProgressPolicy(name) {
	case "", PolicyLastWins:
		return PolicyLastWins, nil
	case PolicyFirstSuccessFinal:
		return PolicyFirstSuccessFinal, nil
	default:
		return "", fmt.Errorf("%w: unknown progress policy %q", ErrInvalidArgument, name)
	}
}

// ActionRequest identifies one attempt.
type ActionRequest struct {
	TeamID   string
	PlayerID string
	ActionID string
}

// Resolver resolves actions against a state.
type Resolver struct {
	Catalog *catalog.Catalog
	Roller  Roller
	Policy  ProgressPolicy
}

// Resolve checks preconditions, rolls, and records the outcome on s.
func (r *Resolver) Resolve(s *State, req ActionRequest) (*ActionResult, error) {
	if s.Game.Phase != PhaseInProgress {
		return nil, fmt.Errorf("%w: game is %s", ErrInvalidPhase, s.Game.Phase)
	}
	room, err := s.currentRoom(r.Catalog)
	if err != nil {
		return nil, err
	}
	team, err := s.Team(req.TeamID)
	if err != nil {
		return nil, err
	}
	player, err := s.Player(req.PlayerID)
	if err != nil {
		return nil, err
	}
	action, ok := room.Action(req.ActionID)
	if !ok {
		return nil, fmt.Errorf("%w: action %s in room %s", ErrNotFound, req.ActionID, room.ID)
	}
	if !s.Available(room.ID, action.ID) {
		return nil, fmt.Errorf("%w: action %s is not available", ErrInvalidState, action.ID)
	}
	statVal, ok := player.Stats[action.Stat]
	if !ok {
		return nil, fmt.Errorf("%w: player %s has no stat %s", ErrNotFound, player.ID, action.Stat)
	}

	ledger := team.Progress[room.ID]
	if r.Policy == PolicyFirstSuccessFinal {
		if prev, ok := ledger[action.ID]; ok && prev.Result != ResultFailure {
			return nil, fmt.Errorf("%w: action %s already resolved for team %s", ErrInvalidState, action.ID, team.ID)
		}
	}

	roll := r.Roller.Roll()
	total := float64(statVal) + roll
	result := Classify(total)
	outcome := ActionOutcome{
		Result:      result,
		Description: Describe(result),
		PlayerID:    player.ID,
		Total:       total,
	}

	if ledger == nil {
		ledger = make(Ledger)
		team.Progress[room.ID] = ledger
	}
	ledger[action.ID] = outcome

	if result == ResultFailure {
		s.Rooms[room.ID].Available[action.ID] = false
	}

	return &ActionResult{
		TeamID:   team.ID,
		RoomID:   room.ID,
		ActionID: action.ID,
		Stat:     action.Stat,
		StatVal:  statVal,
		Roll:     roll,
		Total:    total,
		Outcome:  outcome,
	}, nil
}
