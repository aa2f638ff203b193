package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func writeCatalog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rooms.json")
	data := `{"rooms": [
		{"id": "cell", "type": "unique", "name": "Cell", "actions": [{"id": "pick", "stat": "dexterity"}]},
		{"id": "yard", "type": "common", "name": "Yard", "required_successes": 2, "actions": [{"id": "climb", "stat": "strength"}]}
	]}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("Failed to write catalog: %v", err)
	}
	return path
}

func TestConstants(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
	if AppName != "Escape Room Game Server" {
		t.Errorf("Unexpected app name %s", AppName)
	}
}

func TestTeamSpecs(t *testing.T) {
	tests := []struct {
		name      string
		n         int
		loaded    bool
		wantIDs   []string
		wantNames []string
	}{
		{"Default three teams", 3, true, []string{"team1", "team2", "team3"}, []string{"Team A", "Team B", "Team C"}},
		{"At least one team", 0, true, []string{"team1"}, []string{"Team A"}},
		{"Fallback catalog plays with one team", 5, false, []string{"team1"}, []string{"Team A"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			specs := teamSpecs(tt.n, tt.loaded)
			if len(specs) != len(tt.wantIDs) {
				t.Fatalf("Expected %d teams, got %d", len(tt.wantIDs), len(specs))
			}
			for i, s := range specs {
				if s.ID != tt.wantIDs[i] || s.Name != tt.wantNames[i] {
					t.Errorf("Team %d: expected %s/%s, got %s/%s", i, tt.wantIDs[i], tt.wantNames[i], s.ID, s.Name)
				}
			}
		})
	}

	if got := len(teamSpecs(100, true)); got != maxTeams {
		t.Errorf("Expected team count capped at %d, got %d", maxTeams, got)
	}
}

func TestInitializeServices(t *testing.T) {
	cfg := config{catalogPath: writeCatalog(t), teams: 2, seed: 7}

	store, svc, err := initializeServices(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}
	if svc == nil {
		t.Fatal("Expected game service to be initialized")
	}

	st := store.Snapshot()
	if len(st.TeamOrder) != 2 {
		t.Errorf("Expected 2 teams, got %d", len(st.TeamOrder))
	}
	if _, ok := st.Rooms["yard"]; !ok {
		t.Error("Expected the loaded catalog to be used")
	}
}

func TestInitializeServices_MissingCatalog(t *testing.T) {
	cfg := config{catalogPath: "/non/existent/rooms.json", teams: 3}

	store, _, err := initializeServices(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("Expected fallback catalog, got error: %v", err)
	}

	st := store.Snapshot()
	if _, ok := st.Rooms["room1"]; !ok {
		t.Error("Expected the built-in room1")
	}
	if len(st.TeamOrder) != 1 || st.TeamOrder[0] != "team1" {
		t.Errorf("Expected only team1, got %v", st.TeamOrder)
	}
}

func TestInitializeServices_InvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		cfg  config
	}{
		{"Unknown progress policy", config{policy: "best-of-three", teams: 3}},
		{"Negative seed", config{seed: -1, teams: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.catalogPath = writeCatalog(t)
			if _, _, err := initializeServices(tt.cfg, zap.NewNop()); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

func TestNewHandler(t *testing.T) {
	store, svc, err := initializeServices(config{catalogPath: writeCatalog(t), teams: 3}, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := newHandler(ctx, store, svc, "http://localhost:0", zap.NewNop())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("Expected health 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/mcp", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected /mcp to be mounted for POST only, got %d", w.Code)
	}
}

func TestNewCommand(t *testing.T) {
	cmd := newCommand()

	if cmd.Action == nil {
		t.Error("Expected a default action")
	}
	names := map[string]bool{}
	for _, sub := range cmd.Commands {
		names[sub.Name] = true
	}
	for _, want := range []string{"server", "stdio-mcp"} {
		if !names[want] {
			t.Errorf("Expected subcommand %s", want)
		}
	}

	defaults := map[string]bool{}
	for _, f := range cmd.Flags {
		for _, n := range f.Names() {
			defaults[n] = true
		}
	}
	for _, want := range []string{"host", "port", "catalog", "teams", "progress-policy", "seed", "debug", "ngrok"} {
		if !defaults[want] {
			t.Errorf("Expected flag --%s", want)
		}
	}
}
