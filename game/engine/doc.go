// Package engine provides the core rules of the escape room session.
//
// The engine package implements:
//   - Player and team registry operations with exclusive team membership
//   - Stat-based action resolution with an injectable random source
//   - Room completion under the unique (per team) and common (pooled) policies
//   - Turn rotation and room/phase advancement
//
// Core Types:
//
// State is the complete session state: players, teams with their per-room
// progress ledgers, per-room action availability and the game phase. Engine
// binds the rules to a room catalog and a team setup. All rule functions
// mutate the *State they receive; callers that need atomicity work on a Clone
// and publish it only on success (see package session).
//
// Usage:
//
//	eng, err := engine.NewEngine(cat, engine.Options{Roller: engine.FixedRoller(5)})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	s := eng.NewState()
//	p, _ := engine.Join(s, "p1", "Alice", engine.RolePlayer)
//	engine.ToggleReady(s, p.ID)
//	if err := eng.StartGame(s); err != nil {
//		log.Fatal(err)
//	}
//
// Classification:
//
// A roll in [0, 10) is added to the player's stat. Totals below 5 fail and
// consume the action for every team, totals from 5 up to 7.5 succeed, and
// totals of 7.5 or more are perfect.
package engine
