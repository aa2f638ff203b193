// Package websocket provides the real-time broadcast channel of the escape
// room session.
//
// The websocket package implements:
//   - One shared broadcast group for every connected client
//   - Full state snapshots after each committed mutation
//   - Discrete action results ahead of the snapshot they produced
//   - On-demand snapshots for clients that ask for one
//
// Architecture:
//
// A central Hub owns the client set and runs a single event loop. Each
// connection has a read pump and a write pump goroutine. The Hub implements
// session.Publisher: the store hands it snapshots under its writer lock, the
// Hub queues them without blocking and fans them out from the event loop, so
// clients see events in commit order.
//
// Message Protocol:
//
// Outgoing frames share one envelope:
//
//	{"event": "state-snapshot", "version": 12, "data": {...}}
//	{"event": "action-result", "version": 12, "data": {...}}
//
// Incoming frames select a request type:
//
//	{"type": "join-game"}
//	{"type": "get-snapshot"}
//
// Both answer the requesting client with the latest snapshot.
//
// Delivery:
//
// Delivery is at most once. A full hub queue drops the broadcast with a
// warning. A client whose send buffer is full is disconnected.
//
// Usage:
//
//	hub := websocket.NewHub(store.Snapshot, logger)
//	go hub.Run(ctx)
//	store.SetPublisher(hub)
//
//	router.HandleFunc("/ws", hub.ServeWS)
package websocket
