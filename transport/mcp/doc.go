// Package mcp exposes the escape room session to AI agents over the Model
// Context Protocol.
//
// The Client is a thin proxy: every tool call becomes one REST request against
// the api package, carrying the acting player in the X-Player-ID header. Error
// replies surface as tool errors with the API's error kind.
//
// MCP Tools:
//   - game_state: Phase, current room, teams and players
//   - join_game, select_character, toggle_ready, select_team: Lobby
//   - rename_team, start_game, next_turn: Game master commands
//   - perform_action: Attempt an action of the current room
//   - list_rooms, room_completion: Room views
//   - next_room, previous_room, reset_room: Game master room control
//
// Transport Modes:
//   - Stdio: server.ServeStdio(client.GetMCPServer())
//   - HTTP: the Client is an http.Handler answering one JSON-RPC message per POST
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:3000", logger)
//	router.Handle("/mcp", client)
package mcp
