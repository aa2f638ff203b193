package engine

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ClassStats is the fixed class to stats table.
var ClassStats = map[string]map[string]int{
	"warrior": {"strength": 8, "dexterity": 4, "intelligence": 2},
	"rogue":   {"strength": 4, "dexterity": 8, "intelligence": 4},
	"mage":    {"strength": 2, "dexterity": 4, "intelligence": 8},
	"cleric":  {"strength": 5, "dexterity": 4, "intelligence": 6},
}

// DefaultClass is used for unknown classes.
const DefaultClass = "warrior"

// StatsForClass returns a fresh copy of the stats for class, falling back to
// DefaultClass.
func StatsForClass(class string) map[string]int {
	stats, ok := ClassStats[strings.ToLower(class)]
	if !ok {
		stats = ClassStats[DefaultClass]
	}
	return maps.Clone(stats)
}

// Join adds a player with the given pre-generated id.
func Join(s *State, id, name string, role Role) (*Player, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidArgument)
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidArgument, role)
	}
	if _, exists := s.Players[id]; exists {
		return nil, fmt.Errorf("%w: player id %s already taken", ErrConflict, id)
	}

	p := &Player{
		ID:    id,
		Name:  name,
		Role:  role,
		Stats: map[string]int{},
	}
	s.Players[id] = p
	return p, nil
}

// SelectCharacter sets character and class and derives stats.
func SelectCharacter(s *State, playerID, character, class string) (*Player, error) {
	p, err := s.Player(playerID)
	if err != nil {
		return nil, err
	}
	p.Character = character
	p.Class = class
	p.Stats = StatsForClass(class)
	return p, nil
}

// ToggleReady flips the ready flag.
func ToggleReady(s *State, playerID string) (*Player, error) {
	p, err := s.Player(playerID)
	if err != nil {
		return nil, err
	}
	p.Ready = !p.Ready
	return p, nil
}

// AssignTeam moves a player into teamID, removing them from any other team.
func AssignTeam(s *State, playerID, teamID string) (*Player, error) {
	p, err := s.Player(playerID)
	if err != nil {
		return nil, err
	}
	target, err := s.Team(teamID)
	if err != nil {
		return nil, err
	}
	if p.Team == teamID && slices.Contains(target.Members, playerID) {
		return p, nil
	}

	for _, t := range s.Teams {
		t.Members = slices.DeleteFunc(t.Members, func(id string) bool { return id == playerID })
	}
	target.Members = append(target.Members, playerID)
	p.Team = teamID
	return p, nil
}

// RenameTeam changes a team's display name.
func RenameTeam(s *State, teamID, name string) (*Team, error) {
	t, err := s.Team(teamID)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidArgument)
	}
	t.Name = name
	return t, nil
}
