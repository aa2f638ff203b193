// Package api provides the HTTP REST API of the escape room session.
//
// The api package implements:
//   - Lobby, team, game flow and room endpoints over service.GameService
//   - Actor resolution from the X-Player-ID header, body or query
//   - Optimistic concurrency through If-Match and ETag state versions
//   - Error kind to HTTP status mapping
//   - Request logging with zap and Prometheus request metrics
//
// Endpoints:
//
// Lobby:
//   - POST /api/auth/join - Join with a name and role
//   - POST /api/auth/select-character - Pick character and class
//   - POST /api/auth/toggle-ready - Flip the ready flag
//
// Teams:
//   - GET /api/teams - List teams with members
//   - POST /api/teams/select-team - Join a team
//   - POST /api/teams/gm/rename-team - Rename a team [gm]
//   - POST /api/teams/gm/move-player - Move another player [gm]
//
// Game:
//   - GET /api/game/state - Full state snapshot
//   - POST /api/game/start - Leave the lobby [gm]
//   - POST /api/game/action - Attempt an action
//   - POST /api/game/next-turn - Rotate the active team [gm]
//
// Rooms:
//   - GET /api/rooms, /api/rooms/{id}, /api/rooms/current
//   - GET /api/rooms/current/completion, /api/rooms/{id}/completion
//   - GET /api/rooms/current/stats
//   - GET /api/rooms/current/technique [gm]
//   - POST /api/rooms/gm/next-room, /api/rooms/gm/previous-room [gm]
//   - POST /api/rooms/gm/reset-room, /api/rooms/gm/reset-current-room [gm]
//
// Other:
//   - GET /health, GET /metrics, GET /ws, POST /mcp
//
// Errors:
//
// Every failure replies with {"error": "...", "code": "<kind>"}. Not found
// maps to 404, invalid phase, state or argument to 400, forbidden to 403 and
// conflict to 409.
//
// Usage:
//
//	server := api.NewServer(svc, hub, api.WithLogger(logger), api.WithMCPHandler(mcpHandler))
//	http.ListenAndServe(":3000", server)
package api
