package engine

// Phase is the session-wide lifecycle stage.
type Phase string

const (
	PhaseLobby      Phase = "lobby"
	PhaseInProgress Phase = "in_progress"
	PhaseFinished   Phase = "finished"
)

// Role distinguishes regular players from the game master.
type Role string

const (
	RolePlayer Role = "player"
	RoleGM     Role = "gm"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RolePlayer || r == RoleGM
}

// Result classifies a resolved action.
type Result string

const (
	ResultFailure Result = "failure"
	ResultSuccess Result = "success"
	ResultPerfect Result = "perfect"
)

// Player is a joined participant
type Player struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Role      Role           `json:"role"`
	Character string         `json:"character,omitempty"`
	Class     string         `json:"class,omitempty"`
	Stats     map[string]int `json:"stats,omitempty"`
	Ready     bool           `json:"ready"`
	Team      string         `json:"team,omitempty"`
}

// ActionOutcome is one entry of a team's progress ledger
type ActionOutcome struct {
	Result      Result  `json:"result"`
	Description string  `json:"description"`
	PlayerID    string  `json:"player_id"`
	Total       float64 `json:"total"`
}

// Ledger maps action ids to the latest recorded outcome within one room.
type Ledger map[string]ActionOutcome

// Team groups players. Progress holds one ledger per room id.
type Team struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Members  []string          `json:"members"`
	Progress map[string]Ledger `json:"progress"`
}

// Ledger returns the team's ledger for roomID, or nil if nothing is recorded.
func (t *Team) Ledger(roomID string) Ledger {
	return t.Progress[roomID]
}

// RoomState is the mutable runtime part of a catalog room.
type RoomState struct {
	// Available maps action id to availability. Consumed actions are false.
	Available map[string]bool `json:"available"`
}

// Game holds the phase and turn bookkeeping.
type Game struct {
	Phase            Phase    `json:"status"`
	CurrentRoomID    *string  `json:"current_room"`
	TurnOrder        []string `json:"turn_order"`
	CurrentTurnIndex int      `json:"current_turn"`
}

// State is the complete session state. Values published by the store are
// treated as immutable; mutations always operate on a Clone.
type State struct {
	Version   uint64                `json:"version"`
	Players   map[string]*Player    `json:"players"`
	Teams     map[string]*Team      `json:"teams"`
	TeamOrder []string              `json:"team_order"`
	Rooms     map[string]*RoomState `json:"rooms"`
	Game      Game                  `json:"game"`
}

// ActionResult is returned by action resolution and broadcast as a discrete event.
type ActionResult struct {
	TeamID   string        `json:"team_id"`
	RoomID   string        `json:"room_id"`
	ActionID string        `json:"action_id"`
	Stat     string        `json:"stat"`
	StatVal  int           `json:"stat_value"`
	Roll     float64       `json:"roll"`
	Total    float64       `json:"total"`
	Outcome  ActionOutcome `json:"outcome"`
}

// TeamSpec seeds a team at session init.
type TeamSpec struct {
	ID   string
	Name string
}

// DefaultTeams returns the standard three-team setup.
func DefaultTeams() []TeamSpec {
	return []TeamSpec{
		{ID: "team1", Name: "Team A"},
		{ID: "team2", Name: "Team B"},
		{ID: "team3", Name: "Team C"},
	}
}
