// Package service provides the business logic layer of the pathfinding board
// server.
//
// The service package implements:
//   - Multi-session board management
//   - Board editing (terrain, resize, regenerate) and point placement
//   - Path searches, single and batched, with search history
//   - Preset listing, loading and saving
//
// Core Interfaces:
//
// BoardService is the main service interface used by the HTTP API and the MCP
// tools. SessionManager stores sessions and ConfigManager serves presets.
//
// Architecture:
//
// The service layer sits between the transports (HTTP, WebSocket, MCP) and
// the board engine. A single mutex serializes board mutations across
// sessions; returned board states are copies, so callers may serialize them
// without holding any lock. Batch searches take a snapshot under a read lock
// and search outside it.
//
// Every search is counted in Prometheus (pathboard_searches_total,
// pathboard_search_expanded_nodes, pathboard_search_duration_seconds) and
// mutating operations run inside OpenTelemetry spans named BoardService.<Op>.
// Spans go to the global tracer provider unless WithTracerProvider names one.
//
// Usage:
//
//	sessionMgr := session.NewManager()
//	configMgr, _ := config.NewManager("presets")
//	svc := service.NewBoardService(sessionMgr, configMgr, slog.Default())
//
//	info, err := svc.CreateSession(ctx, "maze")
//	if err != nil {
//		log.Fatal(err)
//	}
//	svc.PlacePoint(ctx, info.ID, 0, 0)
//	svc.PlacePoint(ctx, info.ID, 7, 3)
//	result, err := svc.FindPath(ctx, info.ID)
package service
