// Command catalogcheck validates room catalog files and prints quick,
// human-readable heuristics about them. For each file it reports the room
// sequence, the stats each room tests, and warnings for rooms that can never
// be completed or that complete without any play.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/escape-room-game/game/catalog"
	"github.com/wricardo/escape-room-game/game/engine"
)

// Report summarizes one catalog file.
type Report struct {
	File     string
	Rooms    []RoomSummary
	Warnings []string
	Err      error
}

// RoomSummary is one line of the room sequence.
type RoomSummary struct {
	Position int
	ID       string
	Type     catalog.RoomType
	Actions  int
	Stats    []string
	Required int
}

func main() {
	cmd := &cli.Command{
		Name:      "catalogcheck",
		Usage:     "Validate escape room catalogs",
		ArgsUsage: "<catalog file>...",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "teams", Value: 3, Usage: "Team count used for reachability checks", Sources: cli.EnvVars("TEAM_COUNT")},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			files := cmd.Args().Slice()
			if len(files) == 0 {
				files = []string{"data/rooms.json"}
			}
			return run(os.Stdout, files, cmd.Int("teams"))
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run prints a report per file and fails if any file is invalid.
func run(w io.Writer, files []string, teams int) error {
	invalid := 0
	for _, f := range files {
		r := analyzeCatalog(f, teams)
		printReport(w, r)
		if r.Err != nil {
			invalid++
		}
	}
	if invalid > 0 {
		return fmt.Errorf("%d of %d catalogs invalid", invalid, len(files))
	}
	return nil
}

// knownStat reports whether some class carries stat.
func knownStat(stat string) bool {
	for _, stats := range engine.ClassStats {
		if _, ok := stats[stat]; ok {
			return true
		}
	}
	return false
}

func analyzeCatalog(path string, teams int) Report {
	r := Report{File: path}
	cat, err := catalog.Load(path)
	if err != nil {
		r.Err = err
		return r
	}

	for i, room := range cat.Rooms() {
		s := RoomSummary{
			Position: i + 1,
			ID:       room.ID,
			Type:     room.Type,
			Actions:  len(room.Actions),
			Required: room.RequiredSuccesses,
		}
		for _, a := range room.Actions {
			if !slices.Contains(s.Stats, a.Stat) {
				s.Stats = append(s.Stats, a.Stat)
			}
			if !knownStat(a.Stat) {
				r.Warnings = append(r.Warnings, fmt.Sprintf("room %s action %s tests unknown stat %q", room.ID, a.ID, a.Stat))
			}
		}
		slices.Sort(s.Stats)
		r.Rooms = append(r.Rooms, s)

		switch {
		case len(room.Actions) == 0:
			r.Warnings = append(r.Warnings, fmt.Sprintf("room %s has no actions", room.ID))
		case room.Type == catalog.Common && room.RequiredSuccesses > len(room.Actions)*teams:
			// each team records at most one outcome per action
			r.Warnings = append(r.Warnings, fmt.Sprintf("room %s needs %d successes but %d teams can record at most %d",
				room.ID, room.RequiredSuccesses, teams, len(room.Actions)*teams))
		}
	}
	return r
}

func printReport(w io.Writer, r Report) {
	fmt.Fprintf(w, "\n=== Checking %s ===\n", r.File)
	if r.Err != nil {
		fmt.Fprintf(w, "❌ INVALID: %v\n", r.Err)
		return
	}

	fmt.Fprintf(w, "Rooms: %d\n", len(r.Rooms))
	for _, s := range r.Rooms {
		line := fmt.Sprintf("  %d. %s (%s) %d actions", s.Position, s.ID, s.Type, s.Actions)
		if s.Type == catalog.Common {
			line += fmt.Sprintf(", %d successes required", s.Required)
		}
		if len(s.Stats) > 0 {
			line += " [" + strings.Join(s.Stats, ", ") + "]"
		}
		fmt.Fprintln(w, line)
	}

	if len(r.Warnings) == 0 {
		fmt.Fprintln(w, "✅ Catalog is valid")
		return
	}
	fmt.Fprintf(w, "⚠️  %d warnings:\n", len(r.Warnings))
	for _, warning := range r.Warnings {
		fmt.Fprintf(w, "   %s\n", warning)
	}
}
