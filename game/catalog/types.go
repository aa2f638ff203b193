package catalog

// RoomType selects the completion policy of a room.
type RoomType string

const (
	// Unique rooms are completed independently by each team.
	Unique RoomType = "unique"
	// Common rooms are completed by a pooled success count across all teams.
	Common RoomType = "common"
)

// Action is a stat-checked task defined in a room
type Action struct {
	ID   string `json:"id" yaml:"id"`
	Stat string `json:"stat" yaml:"stat"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// Room is an immutable catalog entry.
type Room struct {
	ID                string   `json:"id" yaml:"id"`
	Type              RoomType `json:"type" yaml:"type"`
	Name              string   `json:"name" yaml:"name"`
	Description       string   `json:"description" yaml:"description"`
	GMNotes           string   `json:"gm_notes,omitempty" yaml:"gm_notes,omitempty"`
	Technique         string   `json:"technique,omitempty" yaml:"technique,omitempty"`
	RequiredSuccesses int      `json:"required_successes,omitempty" yaml:"required_successes,omitempty"`
	Actions           []Action `json:"actions" yaml:"actions"`
}

// Action looks up an action by id.
func (r *Room) Action(id string) (Action, bool) {
	for _, a := range r.Actions {
		if a.ID == id {
			return a, true
		}
	}
	return Action{}, false
}

// PublicView returns a copy of the room with GM-only fields stripped.
func (r Room) PublicView() Room {
	r.GMNotes = ""
	r.Technique = ""
	return r
}
