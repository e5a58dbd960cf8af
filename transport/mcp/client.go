package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/mcp-training/pathboard/game/board"
	"github.com/wricardo/mcp-training/pathboard/game/grid"
	"github.com/wricardo/mcp-training/pathboard/game/service"
)

const instructions = `Pathboard - MCP Interface

This is a thin client that proxies all requests to the REST API server.

A board is a grid of open (.) and solid (#) cells. Place point A and point B
on open cells, then run find_path to get the cheapest route between them.
Moves go in eight directions: straight steps cost 10, diagonal steps cost 14.
Diagonal steps may slip between two solid cells.

AVAILABLE TOOLS:
- create_session: Create a board session from a preset
- list_sessions / get_session: Inspect sessions
- board_state: Render the board (A, B, * for the path)
- regenerate_board / resize_board / toggle_cell / reset_board: Edit the terrain
- place_point / set_points: Choose the search endpoints
- find_path: Run A* between point A and point B
- search_history: Past searches on a board
- describe_cell: Details about one cell
- list_presets: Available board presets
- board_instructions: Full rules and legend`

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Pathboard",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(instructions),
	)

	c.registerTools()
}

func sessionProp() map[string]any {
	return map[string]any{
		"type":        "string",
		"description": "Session ID",
	}
}

func coordProps(desc string) (map[string]any, map[string]any) {
	return map[string]any{
			"type":        "integer",
			"description": "X coordinate (column) " + desc + " (0-based)",
		}, map[string]any{
			"type":        "integer",
			"description": "Y coordinate (row) " + desc + " (0-based)",
		}
}

func sessionOnly() mcp.ToolInputSchema {
	return mcp.ToolInputSchema{
		Type:       "object",
		Properties: map[string]any{"session_id": sessionProp()},
		Required:   []string{"session_id"},
	}
}

func noArgs() mcp.ToolInputSchema {
	return mcp.ToolInputSchema{Type: "object", Properties: map[string]any{}}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new board session, optionally from a named preset",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"config_id": map[string]any{
					"type":        "string",
					"description": "Preset ID from list_presets (optional)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active board sessions",
		InputSchema: noArgs(),
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: sessionOnly(),
	}, c.handleGetSession)

	// Board operations
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "board_state",
		Description: "Get the current board with points and the last path drawn in",
		InputSchema: sessionOnly(),
	}, c.handleBoardState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "regenerate_board",
		Description: "Replace the terrain with random cells. Clears both points.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session_id": sessionProp(),
				"seed": map[string]any{
					"type":        "integer",
					"description": "Random seed for a reproducible board (optional)",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleRegenerate)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "resize_board",
		Description: fmt.Sprintf("Resize the board. Both sides must be between %d and %d.", board.MinBoardSize, board.MaxBoardSize),
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session_id": sessionProp(),
				"width":      map[string]any{"type": "integer", "description": "New width"},
				"height":     map[string]any{"type": "integer", "description": "New height"},
			},
			Required: []string{"session_id", "width", "height"},
		},
	}, c.handleResize)

	x, y := coordProps("of the cell")
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "toggle_cell",
		Description: "Flip a cell between open and solid, or set it with the optional solid flag",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session_id": sessionProp(),
				"x":          x,
				"y":          y,
				"solid": map[string]any{
					"type":        "boolean",
					"description": "Set the cell to this value instead of flipping it (optional)",
				},
			},
			Required: []string{"session_id", "x", "y"},
		},
	}, c.handleToggleCell)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "describe_cell",
		Description: "Get detailed information about one cell: terrain, whether it is a point, and its position on the last path",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session_id": sessionProp(),
				"x":          x,
				"y":          y,
			},
			Required: []string{"session_id", "x", "y"},
		},
	}, c.handleDescribeCell)

	px, py := coordProps("of the point")
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "place_point",
		Description: "Place the next search point. The first click places A, the second B, and further clicks alternate.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session_id": sessionProp(),
				"x":          px,
				"y":          py,
			},
			Required: []string{"session_id", "x", "y"},
		},
	}, c.handlePlacePoint)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "set_points",
		Description: "Set point A and point B in one call",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session_id": sessionProp(),
				"ax":         map[string]any{"type": "integer", "description": "X of point A"},
				"ay":         map[string]any{"type": "integer", "description": "Y of point A"},
				"bx":         map[string]any{"type": "integer", "description": "X of point B"},
				"by":         map[string]any{"type": "integer", "description": "Y of point B"},
			},
			Required: []string{"session_id", "ax", "ay", "bx", "by"},
		},
	}, c.handleSetPoints)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "find_path",
		Description: "Search for the cheapest path from point A to point B",
		InputSchema: sessionOnly(),
	}, c.handleFindPath)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reset_board",
		Description: "Restore the preset terrain and clear the points. Search history is kept.",
		InputSchema: sessionOnly(),
	}, c.handleReset)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "search_history",
		Description: "Get the search history of a session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session_id": sessionProp(),
				"page": map[string]any{
					"type":        "integer",
					"description": "Page number",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Items per page",
				},
				"order": map[string]any{
					"type":        "string",
					"enum":        []string{"asc", "desc"},
					"description": "Oldest or newest first (default desc)",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleSearchHistory)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_presets",
		Description: "List available board presets",
		InputSchema: noArgs(),
	}, c.handleListPresets)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "board_instructions",
		Description: "Get the rules, legend and cost model of the board",
		InputSchema: noArgs(),
	}, c.handleBoardInstructions)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body any, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&errResp) == nil && errResp.Error != "" {
			return fmt.Errorf("%s", errResp.Error)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func sessionPath(sessionID, suffix string) string {
	return "/api/sessions/" + url.PathEscape(sessionID) + suffix
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	body := map[string]string{}
	if configID := request.GetString("config_id", ""); configID != "" {
		body["config_id"] = configID
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created session: %s\nPreset: %s\n\n", session.ID, session.ConfigName)
	result += formatBoardState(session.BoardState)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}

	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		result += fmt.Sprintf("- %s (Preset: %s, Created: %s)\n",
			s.ID, s.ConfigName, s.CreatedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := request.GetString("session_id", "")

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, ""), nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleBoardState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := request.GetString("session_id", "")

	var state board.BoardState
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "/board"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatBoardState(&state)), nil
}

func (c *Client) handleRegenerate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := request.GetString("session_id", "")
	body := map[string]int64{}
	if seed := request.GetInt("seed", 0); seed != 0 {
		body["seed"] = int64(seed)
	}

	var state board.BoardState
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/regenerate"), body, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Board regenerated with seed %d\n\n", state.Seed)
	return mcp.NewToolResultText(result + formatBoardState(&state)), nil
}

func (c *Client) handleResize(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := request.GetString("session_id", "")
	body := map[string]int{
		"width":  request.GetInt("width", 0),
		"height": request.GetInt("height", 0),
	}

	var state board.BoardState
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/resize"), body, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatBoardState(&state)), nil
}

func (c *Client) handleToggleCell(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := request.GetString("session_id", "")
	body := map[string]any{
		"x": request.GetInt("x", -1),
		"y": request.GetInt("y", -1),
	}
	if solid, ok := request.GetArguments()["solid"].(bool); ok {
		body["solid"] = solid
	}

	var state board.BoardState
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/cells/toggle"), body, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatBoardState(&state)), nil
}

func (c *Client) handlePlacePoint(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := request.GetString("session_id", "")
	body := map[string]int{
		"x": request.GetInt("x", -1),
		"y": request.GetInt("y", -1),
	}

	var result service.PointResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/points"), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := fmt.Sprintf("Placed point %s at %s\n%s\n\n", strings.ToUpper(string(result.Label)), result.Position, result.Message)
	return mcp.NewToolResultText(text + formatBoardState(result.BoardState)), nil
}

func (c *Client) handleSetPoints(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := request.GetString("session_id", "")
	body := map[string]any{
		"a": map[string]int{"x": request.GetInt("ax", -1), "y": request.GetInt("ay", -1)},
		"b": map[string]int{"x": request.GetInt("bx", -1), "y": request.GetInt("by", -1)},
	}

	var state board.BoardState
	if err := c.apiCall(ctx, "PUT", sessionPath(sessionID, "/points"), body, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatBoardState(&state)), nil
}

func (c *Client) handleFindPath(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := request.GetString("session_id", "")

	var result service.PathResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/path"), nil, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatPathResult(&result)), nil
}

func (c *Client) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := request.GetString("session_id", "")

	var response struct {
		Message string            `json:"message"`
		State   *board.BoardState `json:"state"`
	}
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/reset"), nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(response.Message + "\n\n" + formatBoardState(response.State)), nil
}

func (c *Client) handleSearchHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := request.GetString("session_id", "")

	params := url.Values{}
	if page := request.GetInt("page", 0); page > 0 {
		params.Set("page", fmt.Sprint(page))
	}
	if limit := request.GetInt("limit", 0); limit > 0 {
		params.Set("limit", fmt.Sprint(limit))
	}
	if order := request.GetString("order", ""); order != "" {
		params.Set("order", order)
	}
	path := sessionPath(sessionID, "/history")
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var history service.HistoryResponse
	if err := c.apiCall(ctx, "GET", path, nil, &history); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatHistory(&history)), nil
}

func (c *Client) handleDescribeCell(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := request.GetString("session_id", "")
	x := request.GetInt("x", -1)
	y := request.GetInt("y", -1)
	if x < 0 || y < 0 {
		return mcp.NewToolResultError(fmt.Sprintf("Coordinates (%d, %d) must be zero or greater", x, y)), nil
	}

	var info board.CellInfo
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, fmt.Sprintf("/cells/%d/%d", x, y)), nil, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatCellInfo(&info)), nil
}

func (c *Client) handleListPresets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var configs []service.ConfigInfo
	if err := c.apiCall(ctx, "GET", "/api/configs", nil, &configs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Available Presets (%d):\n\n", len(configs))
	for _, cfg := range configs {
		kind := "random"
		if cfg.HasLayout {
			kind = "layout"
		}
		result += fmt.Sprintf("- %s: %s (%dx%d, %s)\n  %s\n", cfg.ConfigID, cfg.Name, cfg.Width, cfg.Height, kind, cfg.Description)
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleBoardInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := `Pathboard - Complete Instructions

BOARD LEGEND:
  .  open cell
  #  solid cell (cannot be entered)
  A  point A (search start)
  B  point B (search goal)
  *  cell on the last path found

COORDINATES:
  x is the column, y is the row, both 0-based from the top-left corner.

COST MODEL:
  Straight step (up, down, left, right): 10
  Diagonal step: 14
  The heuristic is the Manhattan distance times 10, so reported paths are
  good but not always the cheapest possible.

PLACING POINTS:
  place_point alternates: A, then B, then A again.
  set_points places both at once.
  Points cannot sit on solid cells unless the preset allows it.

SEARCHING:
  find_path needs both points. The path is listed from B back to A.
  Editing the terrain clears the last path but keeps the points.
  regenerate_board clears the points as well.

BOARD SIZE: ` + fmt.Sprintf("%d to %d cells per side.", board.MinBoardSize, board.MaxBoardSize)

	return mcp.NewToolResultText(text), nil
}

// Formatting helpers

func formatSessionInfo(session *service.SessionInfo) string {
	result := fmt.Sprintf("Session: %s\nPreset: %s\nCreated: %s\nLast accessed: %s\n\n",
		session.ID, session.ConfigName,
		session.CreatedAt.Format(time.RFC3339), session.LastAccessedAt.Format(time.RFC3339))
	return result + formatBoardState(session.BoardState)
}

func formatBoardState(state *board.BoardState) string {
	if state == nil || state.Grid == nil {
		return "No board state\n"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Board %dx%d (generation %d", state.Grid.Width, state.Grid.Height, state.Generation)
	if state.Seed != 0 {
		fmt.Fprintf(&sb, ", seed %d", state.Seed)
	}
	sb.WriteString(")\n")

	fmt.Fprintf(&sb, "Point A: %s  Point B: %s  Next: %s\n",
		formatPoint(state.PointA), formatPoint(state.PointB), strings.ToUpper(string(state.NextPoint)))

	if state.Found != nil {
		if *state.Found {
			fmt.Fprintf(&sb, "Last search: found, %d cells, cost %d\n", len(state.Path), state.PathCost)
		} else {
			sb.WriteString("Last search: no path\n")
		}
	}
	if state.Message != "" {
		sb.WriteString(state.Message + "\n")
	}

	rows := state.Rendered
	if len(rows) == 0 {
		rows = board.RenderState(state)
	}
	sb.WriteString("\n")
	for _, row := range rows {
		sb.WriteString(row + "\n")
	}
	return sb.String()
}

func formatPoint(p *grid.Position) string {
	if p == nil {
		return "unset"
	}
	return p.String()
}

func formatPathResult(result *service.PathResult) string {
	var sb strings.Builder
	if result.Found {
		fmt.Fprintf(&sb, "✓ Path found: %d cells, cost %d, %d nodes expanded\n", result.Length, result.Cost, result.Expanded)
		parts := make([]string, len(result.Path))
		for i, p := range result.Path {
			parts[i] = p.String()
		}
		sb.WriteString("Path (B to A): " + strings.Join(parts, " ") + "\n")
	} else {
		fmt.Fprintf(&sb, "✗ No path: %d nodes expanded\n", result.Expanded)
	}
	if result.Message != "" {
		sb.WriteString(result.Message + "\n")
	}
	if result.BoardState != nil {
		sb.WriteString("\n" + formatBoardState(result.BoardState))
	}
	return sb.String()
}

func formatCellInfo(info *board.CellInfo) string {
	terrain := "open"
	if info.Solid {
		terrain = "solid"
	}
	result := fmt.Sprintf("Cell (%d,%d): %s\nOpen neighbours: %d\n", info.X, info.Y, terrain, info.OpenNeighbours)
	if info.IsPointA {
		result += "This is point A\n"
	}
	if info.IsPointB {
		result += "This is point B\n"
	}
	if info.OnPath {
		result += fmt.Sprintf("On the last path at index %d (0 is point B)\n", info.PathIndex)
	}
	return result
}

func formatHistory(history *service.HistoryResponse) string {
	result := fmt.Sprintf("Search History (page %d of %d, %d searches total, %d retained):\n\n",
		history.Page, history.TotalPages, history.TotalSearches, history.Retained)
	if len(history.Searches) == 0 {
		return result + "No searches yet\n"
	}
	for _, rec := range history.Searches {
		outcome := "no path"
		if rec.Found {
			outcome = fmt.Sprintf("%d cells, cost %d", rec.Length, rec.Cost)
		}
		result += fmt.Sprintf("#%d %s -> %s: %s (%d expanded)\n", rec.Number, rec.Start, rec.Goal, outcome, rec.Expanded)
	}
	if history.HasNext {
		result += "\nMore searches on the next page\n"
	}
	return result
}
