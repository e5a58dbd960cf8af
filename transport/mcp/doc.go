// Package mcp exposes pathboard to AI agents over the Model Context Protocol.
//
// Client is a thin proxy: every tool call becomes a request to the REST API
// in package api, and the JSON answer is turned into readable text with the
// board drawn as rows of '.', '#', 'A', 'B' and '*'.
//
// MCP Tools:
//   - create_session, list_sessions, get_session
//   - board_state, regenerate_board, resize_board, toggle_cell, reset_board
//   - place_point, set_points, describe_cell
//   - find_path, search_history
//   - list_presets, board_instructions
//
// API failures are returned as tool errors (IsError set) rather than Go
// errors, so the agent sees the server's message.
//
// Transport Modes:
//   - Stdio: server.ServeStdio(client.GetMCPServer())
//   - HTTP: single JSON-RPC messages POSTed to /mcp and answered with
//     client.GetMCPServer().HandleMessage
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
