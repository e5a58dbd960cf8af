// Package api provides the HTTP REST API for pathboard.
//
// The api package implements:
//   - Session endpoints backed by service.BoardService
//   - Board editing and point placement
//   - Single and batch A* searches plus paginated search history
//   - Preset listing, lookup and upload
//   - WebSocket upgrade for live board updates
//   - Prometheus request metrics on /metrics
//
// Endpoints:
//
// Sessions:
//   - POST   /api/sessions                   Create a session ({"config_id": "maze"})
//   - GET    /api/sessions                   List sessions (?sort=created|accessed&order=asc|desc&limit=N)
//   - GET    /api/sessions/{id}              Session info with board state
//   - DELETE /api/sessions/{id}              Delete a session
//
// Board:
//   - GET    /api/sessions/{id}/board        Current board state
//   - POST   /api/sessions/{id}/regenerate   Random terrain ({"seed": 42}, optional)
//   - POST   /api/sessions/{id}/resize       {"width": 16, "height": 12}
//   - POST   /api/sessions/{id}/cells/toggle {"x": 3, "y": 4, "solid": true}; solid is optional
//   - GET    /api/sessions/{id}/cells/{x}/{y} Describe one cell
//   - POST   /api/sessions/{id}/points       Place the next point ({"x": 0, "y": 0})
//   - PUT    /api/sessions/{id}/points       Set both points ({"a": {...}, "b": {...}})
//   - DELETE /api/sessions/{id}/points       Clear both points
//   - POST   /api/sessions/{id}/reset        Restore the preset terrain
//
// Search:
//   - POST   /api/sessions/{id}/path         Search between point A and point B
//   - POST   /api/sessions/{id}/paths        Batch search ({"queries": [{"start": {...}, "goal": {...}}]})
//   - GET    /api/sessions/{id}/history      ?page=1&limit=20&order=desc
//
// Presets:
//   - GET    /api/configs                    List presets
//   - GET    /api/configs/{name}             Load one preset
//   - POST   /api/configs                    Save a preset
//
// Errors are returned as JSON with the HTTP status chosen by statusFor:
//
//	{
//	  "error": "point A: cell is solid: (3,1)",
//	  "code": 409
//	}
//
// Unknown sessions and presets map to 404, malformed or out-of-range input
// to 400, board conflicts (solid endpoints, missing points) to 409 and a
// full in-memory session store to 503.
//
// Usage:
//
//	server := api.NewServer(boardService, hub, logger)
//	http.ListenAndServe(":8080", server)
package api
