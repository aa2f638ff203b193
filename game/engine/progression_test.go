package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordOutcome(s *State, teamID, roomID, actionID string, r Result) {
	t := s.Teams[teamID]
	if t.Progress[roomID] == nil {
		t.Progress[roomID] = Ledger{}
	}
	t.Progress[roomID][actionID] = ActionOutcome{Result: r, Description: Describe(r)}
}

func TestIsComplete_UniqueRoom(t *testing.T) {
	eng := createTestEngine(t, FixedRoller(0))
	s := startedState(t, eng)
	vault, err := eng.Room("vault")
	require.NoError(t, err)

	// one consumed through a recorded failure, one consumed by another team, one untouched
	recordOutcome(s, "team1", "vault", "read-cipher", ResultFailure)
	s.Rooms["vault"].Available["read-cipher"] = false
	s.Rooms["vault"].Available["pick-lock"] = false

	assert.False(t, IsComplete(s, vault, "team1"))

	recordOutcome(s, "team1", "vault", "lift-bars", ResultSuccess)
	assert.True(t, IsComplete(s, vault, "team1"))
	assert.False(t, IsComplete(s, vault, "team2"), "completion of a unique room is per team")
}

func TestIsComplete_CommonRoomIsPooled(t *testing.T) {
	eng := createTestEngine(t, FixedRoller(0))

	cases := []struct {
		name string
		dist map[string]int
		want bool
	}{
		{name: "all from one team", dist: map[string]int{"team1": 5}, want: true},
		{name: "spread across teams", dist: map[string]int{"team1": 2, "team2": 2, "team3": 1}, want: true},
		{name: "one short", dist: map[string]int{"team1": 2, "team2": 2}, want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := startedState(t, eng)
			hall, err := eng.Room("hall")
			require.NoError(t, err)

			actions := []string{"h1", "h2", "h3", "h4", "h5", "h6"}
			for team, n := range tc.dist {
				for i := 0; i < n; i++ {
					recordOutcome(s, team, "hall", actions[i], ResultSuccess)
				}
			}
			// failures never count toward the pool
			recordOutcome(s, "team3", "hall", "h6", ResultFailure)

			for _, team := range s.TeamOrder {
				assert.Equal(t, tc.want, IsComplete(s, hall, team))
			}
			assert.Equal(t, tc.want, RoomCompletion(s, hall).RoomFullyCompleted)
		})
	}
}

func TestRoomCompletion_PerTeamFlagIsInformationalForCommonRooms(t *testing.T) {
	eng := createTestEngine(t, FixedRoller(0))
	s := startedState(t, eng)
	hall, err := eng.Room("hall")
	require.NoError(t, err)

	for _, a := range []string{"h1", "h2", "h3"} {
		recordOutcome(s, "team1", "hall", a, ResultSuccess)
	}
	for _, a := range []string{"h1", "h2"} {
		recordOutcome(s, "team2", "hall", a, ResultPerfect)
	}

	c := RoomCompletion(s, hall)
	assert.True(t, c.RoomFullyCompleted)
	assert.Equal(t, 5, c.PooledSuccesses)
	assert.False(t, c.CompletionStatus["team1"].Completed)
	assert.False(t, c.CompletionStatus["team2"].Completed)
}

func TestAdvanceRoom_FromLastRoomFinishesGame(t *testing.T) {
	eng := createTestEngine(t, FixedRoller(9))
	s := startedState(t, eng)

	for _, want := range []string{"hall", "exit"} {
		room, err := eng.AdvanceRoom(s)
		require.NoError(t, err)
		require.Equal(t, want, room.ID)
	}

	room, err := eng.AdvanceRoom(s)
	require.NoError(t, err)
	assert.Nil(t, room)
	assert.Equal(t, PhaseFinished, s.Game.Phase)
	assert.Nil(t, s.Game.CurrentRoomID)

	_, err = eng.Resolve(s, ActionRequest{TeamID: "team1", PlayerID: "p1", ActionID: "open-door"})
	assert.ErrorIs(t, err, ErrInvalidPhase)

	_, err = eng.AdvanceRoom(s)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestAdvanceAndRetreat_Asymmetry(t *testing.T) {
	eng := createTestEngine(t, FixedRoller(0))
	s := startedState(t, eng)

	// fail read-cipher in the vault, then move on
	_, err := eng.Resolve(s, ActionRequest{TeamID: "team1", PlayerID: "p1", ActionID: "read-cipher"})
	require.NoError(t, err)
	s.Game.CurrentTurnIndex = 2

	_, err = eng.AdvanceRoom(s)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Game.CurrentTurnIndex)

	_, err = eng.Resolve(s, ActionRequest{TeamID: "team1", PlayerID: "p1", ActionID: "h1"})
	require.NoError(t, err)

	prev, err := eng.RetreatRoom(s)
	require.NoError(t, err)
	assert.Equal(t, "vault", prev.ID)
	assert.False(t, s.Available("vault", "read-cipher"), "retreat must not restore availability")
	assert.Contains(t, s.Teams["team1"].Ledger("vault"), "read-cipher", "retreat must preserve progress")
	assert.Equal(t, PhaseInProgress, s.Game.Phase)

	_, err = eng.AdvanceRoom(s)
	require.NoError(t, err)
	assert.Empty(t, s.Teams["team1"].Ledger("hall"), "advance resets the room it enters")

	_, err = eng.RetreatRoom(s)
	require.NoError(t, err)
	_, err = eng.RetreatRoom(s)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestResetRoom_RestoresAvailabilityAndClearsProgress(t *testing.T) {
	eng := createTestEngine(t, FixedRoller(0))
	s := startedState(t, eng)
	vault, err := eng.Room("vault")
	require.NoError(t, err)

	for _, a := range []string{"lift-bars", "pick-lock", "read-cipher"} {
		_, err := eng.Resolve(s, ActionRequest{TeamID: "team1", PlayerID: "p1", ActionID: a})
		require.NoError(t, err)
	}
	require.True(t, IsComplete(s, vault, "team1"))
	s.Game.CurrentTurnIndex = 1

	_, err = eng.ResetRoom(s, "vault")
	require.NoError(t, err)

	for _, a := range vault.Actions {
		assert.True(t, s.Available("vault", a.ID))
	}
	for _, team := range s.Teams {
		assert.Empty(t, team.Ledger("vault"))
	}
	assert.False(t, IsComplete(s, vault, "team1"))
	assert.Equal(t, 0, s.Game.CurrentTurnIndex)

	_, err = eng.ResetRoom(s, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStartGame(t *testing.T) {
	eng := createTestEngine(t, FixedRoller(0))
	s := eng.NewState()

	_, err := Join(s, "a", "Alice", RolePlayer)
	require.NoError(t, err)
	_, err = Join(s, "b", "Bob", RoleGM)
	require.NoError(t, err)
	_, err = ToggleReady(s, "a")
	require.NoError(t, err)

	err = eng.StartGame(s)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, PhaseLobby, s.Game.Phase)

	_, err = ToggleReady(s, "b")
	require.NoError(t, err)
	require.NoError(t, eng.StartGame(s))

	assert.Equal(t, PhaseInProgress, s.Game.Phase)
	assert.Equal(t, "vault", s.CurrentRoomID())
	assert.Equal(t, []string{"team1", "team2", "team3"}, s.Game.TurnOrder)
	assert.Equal(t, 0, s.Game.CurrentTurnIndex)

	assert.ErrorIs(t, eng.StartGame(s), ErrInvalidPhase)
}

func TestNextTurn(t *testing.T) {
	eng := createTestEngine(t, FixedRoller(0))

	_, err := NextTurn(eng.NewState())
	assert.ErrorIs(t, err, ErrInvalidPhase)

	s := startedState(t, eng)
	var got []string
	for range 4 {
		team, err := NextTurn(s)
		require.NoError(t, err)
		got = append(got, team)
	}
	assert.Equal(t, []string{"team2", "team3", "team1", "team2"}, got)
	assert.Equal(t, "team2", s.ActiveTeam())
}

func TestRoomStats(t *testing.T) {
	eng := createTestEngine(t, FixedRoller(0))
	s := startedState(t, eng)

	recordOutcome(s, "team1", "vault", "lift-bars", ResultSuccess)
	recordOutcome(s, "team1", "vault", "pick-lock", ResultPerfect)
	recordOutcome(s, "team1", "vault", "read-cipher", ResultFailure)

	st := RoomStats(s, "vault")
	t1 := st.TeamProgress["team1"]
	assert.Equal(t, 2, t1.SuccessfulActions)
	assert.Equal(t, 1, t1.FailedActions)
	assert.Equal(t, 3, t1.TotalActions)
	assert.InDelta(t, 66.66, t1.CompletionPercentage, 0.01)
	assert.Zero(t, st.TeamProgress["team2"].CompletionPercentage)
}
