package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wricardo/escape-room-game/game/catalog"
)

func createTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]catalog.Room{
		{
			ID:   "vault",
			Type: catalog.Unique,
			Name: "Vault",
			Actions: []catalog.Action{
				{ID: "lift-bars", Stat: "strength"},
				{ID: "pick-lock", Stat: "dexterity"},
				{ID: "read-cipher", Stat: "intelligence"},
			},
		},
		{
			ID:                "hall",
			Type:              catalog.Common,
			Name:              "Great Hall",
			RequiredSuccesses: 5,
			Actions: []catalog.Action{
				{ID: "h1", Stat: "strength"},
				{ID: "h2", Stat: "strength"},
				{ID: "h3", Stat: "strength"},
				{ID: "h4", Stat: "strength"},
				{ID: "h5", Stat: "strength"},
				{ID: "h6", Stat: "strength"},
			},
		},
		{
			ID:   "exit",
			Type: catalog.Unique,
			Name: "Exit",
			Actions: []catalog.Action{
				{ID: "open-door", Stat: "strength"},
			},
		},
	})
	require.NoError(t, err)
	return cat
}

func createTestEngine(t *testing.T, roller Roller) *Engine {
	t.Helper()
	eng, err := NewEngine(createTestCatalog(t), Options{Roller: roller})
	require.NoError(t, err)
	return eng
}

// startedState returns an in-progress state with one warrior per team.
func startedState(t *testing.T, eng *Engine) *State {
	t.Helper()
	s := eng.NewState()
	for i, teamID := range s.TeamOrder {
		id := fmt.Sprintf("p%d", i+1)
		_, err := Join(s, id, id, RolePlayer)
		require.NoError(t, err)
		_, err = SelectCharacter(s, id, id, "warrior")
		require.NoError(t, err)
		_, err = AssignTeam(s, id, teamID)
		require.NoError(t, err)
		_, err = ToggleReady(s, id)
		require.NoError(t, err)
	}
	require.NoError(t, eng.StartGame(s))
	return s
}
