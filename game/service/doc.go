// Package service provides the command layer of the escape room session.
//
// The service package implements:
//   - Role checks for game master commands
//   - Team membership rules for action attempts
//   - Room views that hide GM notes from regular players
//   - Completion and statistics queries against the latest snapshot
//
// Core Interfaces:
//
// GameService is the surface every transport (REST, WebSocket, MCP) drives.
// StateStore is the serialized state owner underneath it, implemented by
// session.Store.
//
// Authorization:
//
// Commands that carry an actor id evaluate their role check as a
// session.Precondition, so the check and the mutation see the same state.
// Unknown actors are rejected with engine.ErrForbidden.
//
// Usage:
//
//	store := session.NewStore(eng)
//	svc := service.NewGameService(store)
//
//	gm, _ := svc.Join(ctx, "Bob", engine.RoleGM)
//	if _, err := svc.StartGame(ctx, gm.ID); err != nil {
//		log.Fatal(err)
//	}
package service
