package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRooms() []Room {
	return []Room{
		{ID: "a", Type: Unique, Name: "A", Actions: []Action{{ID: "x", Stat: "strength"}}},
		{ID: "b", Type: Common, Name: "B", RequiredSuccesses: 2, Actions: []Action{{ID: "y", Stat: "dexterity"}}},
		{ID: "c", Type: Unique, Name: "C"},
	}
}

func TestNew_PreservesOrder(t *testing.T) {
	c, err := New(sampleRooms())
	require.NoError(t, err)

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, "a", c.First().ID)
	assert.True(t, c.IsLast("c"))
	assert.False(t, c.IsLast("b"))
	assert.False(t, c.IsLast("missing"))

	pos, ok := c.Position("b")
	assert.True(t, ok)
	assert.Equal(t, 1, pos)
}

func TestNew_CopiesInput(t *testing.T) {
	rooms := sampleRooms()
	c, err := New(rooms)
	require.NoError(t, err)

	rooms[0].Actions[0].Stat = "luck"
	rooms[0].Name = "changed"

	r, err := c.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "strength", r.Actions[0].Stat)
	assert.Equal(t, "A", r.Name)
}

func TestNeighbors(t *testing.T) {
	c, err := New(sampleRooms())
	require.NoError(t, err)

	next, err := c.Next("a")
	require.NoError(t, err)
	assert.Equal(t, "b", next.ID)

	prev, err := c.Prev("c")
	require.NoError(t, err)
	assert.Equal(t, "b", prev.ID)

	_, err = c.Next("c")
	assert.ErrorIs(t, err, ErrNoNeighbor)
	_, err = c.Prev("a")
	assert.ErrorIs(t, err, ErrNoNeighbor)
	_, err = c.Next("nope")
	assert.ErrorIs(t, err, ErrRoomNotFound)
	_, err = c.Get("nope")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]Room) []Room
	}{
		{"empty catalog", func([]Room) []Room { return nil }},
		{"missing id", func(r []Room) []Room { r[0].ID = ""; return r }},
		{"duplicate id", func(r []Room) []Room { r[1].ID = "a"; return r }},
		{"unknown type", func(r []Room) []Room { r[0].Type = "shared"; return r }},
		{"common without required successes", func(r []Room) []Room { r[1].RequiredSuccesses = 0; return r }},
		{"action without id", func(r []Room) []Room { r[0].Actions[0].ID = ""; return r }},
		{"action without stat", func(r []Room) []Room { r[0].Actions[0].Stat = ""; return r }},
		{"duplicate action", func(r []Room) []Room {
			r[0].Actions = append(r[0].Actions, Action{ID: "x", Stat: "dexterity"})
			return r
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.mutate(sampleRooms()))
			assert.True(t, errors.Is(err, ErrInvalidConfig), "expected ErrInvalidConfig, got %v", err)
		})
	}

	assert.NoError(t, Validate(sampleRooms()))
}

func TestRoomHelpers(t *testing.T) {
	r := Room{
		ID:        "a",
		GMNotes:   "secret",
		Technique: "pace it",
		Actions:   []Action{{ID: "x", Stat: "strength"}},
	}

	a, ok := r.Action("x")
	assert.True(t, ok)
	assert.Equal(t, "strength", a.Stat)
	_, ok = r.Action("z")
	assert.False(t, ok)

	pub := r.PublicView()
	assert.Empty(t, pub.GMNotes)
	assert.Empty(t, pub.Technique)
	assert.Equal(t, "secret", r.GMNotes, "PublicView must not modify the receiver")
}

func TestMinimal(t *testing.T) {
	c := Minimal()
	require.Equal(t, 1, c.Len())
	assert.Equal(t, "room1", c.First().ID)
	assert.Equal(t, Unique, c.First().Type)
	assert.Empty(t, c.First().Actions)
}
