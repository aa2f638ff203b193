// Package session owns the authoritative escape room session state.
//
// The session package implements:
//   - A single-writer store with lock-free snapshot reads
//   - Copy-on-write mutations that publish only on success
//   - Optimistic version preconditions for callers that need them
//   - Ordered hand-off of committed snapshots to a Publisher
//
// Core Types:
//
// Store wraps an engine.Engine and exposes one named method per mutation.
// Every mutation clones the current state, applies the engine rule to the
// clone and, when the rule succeeds, bumps the version and swaps the clone in
// atomically. A failed rule leaves the published state untouched.
//
// Concurrency:
//
// Mutations serialize on one mutex. Snapshot loads an atomic pointer and never
// blocks on writers. Returned snapshots are shared and must be treated as
// read-only. The Publisher runs under the writer lock so broadcast order
// matches commit order.
//
// Usage:
//
//	store := session.NewStore(eng, session.WithLogger(logger))
//
//	p, err := store.Join(ctx, "Alice", engine.RolePlayer)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Fail with engine.ErrConflict if someone else committed first
//	ctx = session.WithExpectedVersion(ctx, store.Version())
//	_, err = store.ToggleReady(ctx, p.ID)
package session
