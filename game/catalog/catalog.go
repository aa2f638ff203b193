package catalog

import (
	"errors"
	"fmt"
	"slices"
)

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrInvalidConfig = errors.New("invalid catalog")
	ErrNoNeighbor    = errors.New("no neighboring room")
)

// Catalog is the ordered, immutable sequence of rooms loaded at startup.
// It is safe for concurrent use because nothing mutates it after New.
type Catalog struct {
	rooms []Room
	index map[string]int
}

// New validates rooms and builds a catalog preserving their order.
func New(rooms []Room) (*Catalog, error) {
	if err := Validate(rooms); err != nil {
		return nil, err
	}

	c := &Catalog{
		rooms: make([]Room, len(rooms)),
		index: make(map[string]int, len(rooms)),
	}
	for i, r := range rooms {
		r.Actions = slices.Clone(r.Actions)
		c.rooms[i] = r
		c.index[r.ID] = i
	}
	return c, nil
}

// Validate checks catalog structure without building it.
func Validate(rooms []Room) error {
	if len(rooms) == 0 {
		return fmt.Errorf("%w: at least one room is required", ErrInvalidConfig)
	}

	seen := make(map[string]bool, len(rooms))
	for i, r := range rooms {
		if r.ID == "" {
			return fmt.Errorf("%w: room %d has no id", ErrInvalidConfig, i+1)
		}
		if seen[r.ID] {
			return fmt.Errorf("%w: duplicate room id %q", ErrInvalidConfig, r.ID)
		}
		seen[r.ID] = true

		switch r.Type {
		case Unique:
		case Common:
			if r.RequiredSuccesses < 1 {
				return fmt.Errorf("%w: common room %q needs required_successes >= 1", ErrInvalidConfig, r.ID)
			}
		default:
			return fmt.Errorf("%w: room %q has unknown type %q", ErrInvalidConfig, r.ID, r.Type)
		}

		actionIDs := make(map[string]bool, len(r.Actions))
		for j, a := range r.Actions {
			if a.ID == "" {
				return fmt.Errorf("%w: room %q action %d has no id", ErrInvalidConfig, r.ID, j+1)
			}
			if actionIDs[a.ID] {
				return fmt.Errorf("%w: room %q has duplicate action id %q", ErrInvalidConfig, r.ID, a.ID)
			}
			if a.Stat == "" {
				return fmt.Errorf("%w: room %q action %q has no stat", ErrInvalidConfig, r.ID, a.ID)
			}
			actionIDs[a.ID] = true
		}
	}
	return nil
}

// Len returns the number of rooms.
func (c *Catalog) Len() int { return len(c.rooms) }

// Rooms returns a copy of all rooms in catalog order.
func (c *Catalog) Rooms() []Room {
	return slices.Clone(c.rooms)
}

// Get returns the room with the given id.
func (c *Catalog) Get(id string) (*Room, error) {
	i, ok := c.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	return &c.rooms[i], nil
}

// Position returns the zero-based catalog position of a room.
func (c *Catalog) Position(id string) (int, bool) {
	i, ok := c.index[id]
	return i, ok
}

// First returns the opening room.
func (c *Catalog) First() *Room {
	return &c.rooms[0]
}

// IsLast reports whether id is the final room.
func (c *Catalog) IsLast(id string) bool {
	i, ok := c.index[id]
	return ok && i == len(c.rooms)-1
}

// Next returns the room after id.
func (c *Catalog) Next(id string) (*Room, error) {
	i, ok := c.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	if i+1 >= len(c.rooms) {
		return nil, fmt.Errorf("%w: %s is the last room", ErrNoNeighbor, id)
	}
	return &c.rooms[i+1], nil
}

// Prev returns the room before id.
func (c *Catalog) Prev(id string) (*Room, error) {
	i, ok := c.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	if i == 0 {
		return nil, fmt.Errorf("%w: %s is the first room", ErrNoNeighbor, id)
	}
	return &c.rooms[i-1], nil
}

// Minimal returns the built-in single-room catalog used when loading fails.
func Minimal() *Catalog {
	c, err := New([]Room{{
		ID:          "room1",
		Type:        Unique,
		Name:        "Test Room",
		Description: "Basic room for testing",
		Actions:     []Action{},
	}})
	if err != nil {
		panic(err)
	}
	return c
}
