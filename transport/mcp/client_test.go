package mcp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/wricardo/mcp-training/pathboard/game/board"
	"github.com/wricardo/mcp-training/pathboard/game/grid"
	"github.com/wricardo/mcp-training/pathboard/game/service"
)

func toolRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatal("Expected result, got nil")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatal("Expected text content in result")
	}
	return text.Text
}

func testBoardState(t *testing.T) *board.BoardState {
	t.Helper()
	g, err := grid.FromRows([]string{"....", ".##.", "...."})
	if err != nil {
		t.Fatalf("Failed to build grid: %v", err)
	}
	return &board.BoardState{
		Grid:       g,
		PointA:     &grid.Position{X: 0, Y: 0},
		NextPoint:  board.PointB,
		Generation: 2,
		Seed:       99,
		Message:    "Point A placed",
	}
}

func TestNewClient(t *testing.T) {
	baseURL := "http://localhost:8080"
	client := NewClient(baseURL + "/")

	if client == nil {
		t.Fatal("Expected client to be created")
	}
	if client.baseURL != baseURL {
		t.Errorf("Expected baseURL %s, got %s", baseURL, client.baseURL)
	}
	if client.httpClient == nil {
		t.Error("Expected HTTP client to be initialized")
	}
	if client.GetMCPServer() == nil {
		t.Error("Expected MCP server to be initialized")
	}
}

func TestClient_apiCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": "test-session"})
	}))
	defer server.Close()

	client := NewClient(server.URL)

	var response map[string]any
	if err := client.apiCall(context.Background(), "GET", "/api/sessions/test-session", nil, &response); err != nil {
		t.Fatalf("apiCall failed: %v", err)
	}
	if response["id"] != "test-session" {
		t.Errorf("Expected id test-session, got %v", response["id"])
	}
}

func TestClient_apiCall_Error(t *testing.T) {
	client := NewClient("http://invalid-url-that-does-not-exist:9999")

	if err := client.apiCall(context.Background(), "GET", "/api", nil, nil); err == nil {
		t.Error("Expected error for invalid URL")
	}
}

func TestClient_apiCall_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
	}))
	defer server.Close()

	client := NewClient(server.URL)

	err := client.apiCall(context.Background(), "GET", "/api", nil, nil)
	if err == nil {
		t.Fatal("Expected error for HTTP 500 response")
	}
	if !strings.Contains(err.Error(), "API error: 500") {
		t.Errorf("Expected 'API error: 500' in error message, got: %v", err)
	}
}

func TestClient_apiCall_ErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]any{"error": "cell is solid: (1,1)", "code": 409})
	}))
	defer server.Close()

	client := NewClient(server.URL)

	err := client.apiCall(context.Background(), "POST", "/api/sessions/s/points", map[string]int{"x": 1, "y": 1}, nil)
	if err == nil || err.Error() != "cell is solid: (1,1)" {
		t.Errorf("Expected API error message, got: %v", err)
	}
}

func TestClient_createSession(t *testing.T) {
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/api/sessions" {
			t.Errorf("Expected POST /api/sessions, got %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)

		resp := service.SessionInfo{
			ID:         "test-session-123",
			ConfigName: "maze",
			BoardState: testBoardState(t),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient(server.URL)

	result, err := client.handleCreateSession(context.Background(), toolRequest("create_session", map[string]any{"config_id": "maze"}))
	if err != nil {
		t.Fatalf("createSession failed: %v", err)
	}

	text := resultText(t, result)
	if !strings.Contains(text, "test-session-123") {
		t.Errorf("Expected session ID in result, got: %s", text)
	}
	if gotBody["config_id"] != "maze" {
		t.Errorf("Expected config_id maze in request body, got %v", gotBody)
	}
}

func TestClient_handlePlacePoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/sessions/s1/points" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		var body map[string]int
		json.NewDecoder(r.Body).Decode(&body)
		if body["x"] != 3 || body["y"] != 2 {
			t.Errorf("Expected x=3 y=2, got %v", body)
		}
		json.NewEncoder(w).Encode(service.PointResult{
			Label:      board.PointB,
			Position:   grid.Position{X: 3, Y: 2},
			BoardState: testBoardState(t),
			Message:    "Point B placed",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)

	// JSON numbers arrive as float64
	result, err := client.handlePlacePoint(context.Background(), toolRequest("place_point", map[string]any{
		"session_id": "s1", "x": float64(3), "y": float64(2),
	}))
	if err != nil {
		t.Fatalf("handlePlacePoint failed: %v", err)
	}

	text := resultText(t, result)
	if !strings.Contains(text, "Placed point B at (3,2)") {
		t.Errorf("Unexpected result: %s", text)
	}
}

func TestClient_handleFindPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/api/sessions/s1/path" {
			t.Errorf("Expected POST /api/sessions/s1/path, got %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(service.PathResult{
			Found:    true,
			Path:     []grid.Position{{X: 2, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 0}},
			Cost:     20,
			Length:   3,
			Expanded: 4,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)

	result, err := client.handleFindPath(context.Background(), toolRequest("find_path", map[string]any{"session_id": "s1"}))
	if err != nil {
		t.Fatalf("handleFindPath failed: %v", err)
	}

	text := resultText(t, result)
	for _, want := range []string{"Path found: 3 cells, cost 20", "(2,0) (1,0) (0,0)"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in result, got: %s", want, text)
		}
	}
}

func TestClient_handleFindPath_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]any{"error": "both points must be placed", "code": 409})
	}))
	defer server.Close()

	client := NewClient(server.URL)

	result, err := client.handleFindPath(context.Background(), toolRequest("find_path", map[string]any{"session_id": "s1"}))
	if err != nil {
		t.Fatalf("Tool errors must be reported in the result, got: %v", err)
	}
	if !result.IsError {
		t.Error("Expected an error result")
	}
}

func TestClient_handleSearchHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("page") != "2" || q.Get("order") != "asc" || q.Has("limit") {
			t.Errorf("Unexpected query %s", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(service.HistoryResponse{
			Searches: []board.SearchRecord{
				{Number: 3, Start: grid.Position{X: 0, Y: 0}, Goal: grid.Position{X: 2, Y: 2}, Found: true, Cost: 28, Length: 3},
				{Number: 4, Start: grid.Position{X: 0, Y: 0}, Goal: grid.Position{X: 1, Y: 1}},
			},
			TotalSearches: 4,
			Retained:      4,
			Page:          2,
			TotalPages:    2,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)

	result, err := client.handleSearchHistory(context.Background(), toolRequest("search_history", map[string]any{
		"session_id": "s1", "page": float64(2), "order": "asc",
	}))
	if err != nil {
		t.Fatalf("handleSearchHistory failed: %v", err)
	}

	text := resultText(t, result)
	for _, want := range []string{"page 2 of 2", "#3 (0,0) -> (2,2): 3 cells, cost 28", "#4 (0,0) -> (1,1): no path"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in result, got: %s", want, text)
		}
	}
}

func TestClient_handleToggleCell_SolidFlag(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &gotBody)
		json.NewEncoder(w).Encode(testBoardState(t))
	}))
	defer server.Close()

	client := NewClient(server.URL)

	_, err := client.handleToggleCell(context.Background(), toolRequest("toggle_cell", map[string]any{
		"session_id": "s1", "x": float64(1), "y": float64(1), "solid": false,
	}))
	if err != nil {
		t.Fatalf("handleToggleCell failed: %v", err)
	}
	if solid, ok := gotBody["solid"].(bool); !ok || solid {
		t.Errorf("Expected solid=false in request body, got %v", gotBody)
	}
}

func TestClient_handleDescribeCell_Negative(t *testing.T) {
	client := NewClient("http://localhost:8080")

	result, err := client.handleDescribeCell(context.Background(), toolRequest("describe_cell", map[string]any{
		"session_id": "s1", "x": float64(-1), "y": float64(0),
	}))
	if err != nil {
		t.Fatalf("handleDescribeCell failed: %v", err)
	}
	if !result.IsError {
		t.Error("Negative coordinates should be rejected before calling the API")
	}
}

func TestFormatBoardState(t *testing.T) {
	state := testBoardState(t)
	found := true
	state.Found = &found
	state.Path = []grid.Cell{{X: 3, Y: 0}, {X: 2, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 0}}
	state.PathCost = 30

	result := formatBoardState(state)

	expected := []string{
		"Board 4x3 (generation 2, seed 99)",
		"Point A: (0,0)  Point B: unset  Next: B",
		"Last search: found, 4 cells, cost 30",
		"Point A placed",
		"A***\n.##.\n....",
	}
	for _, field := range expected {
		if !strings.Contains(result, field) {
			t.Errorf("Expected '%s' in formatted output, got: %s", field, result)
		}
	}
}

func TestFormatBoardState_Nil(t *testing.T) {
	if got := formatBoardState(nil); got != "No board state\n" {
		t.Errorf("Unexpected output for nil state: %q", got)
	}
}

func TestFormatCellInfo(t *testing.T) {
	result := formatCellInfo(&board.CellInfo{X: 2, Y: 0, OnPath: true, PathIndex: 1, OpenNeighbours: 3, IsPointB: true})

	for _, want := range []string{"Cell (2,0): open", "Open neighbours: 3", "This is point B", "index 1"} {
		if !strings.Contains(result, want) {
			t.Errorf("Expected %q in result, got: %s", want, result)
		}
	}
}

func TestClient_handleBoardInstructions(t *testing.T) {
	client := NewClient("http://localhost:8080")

	result, err := client.handleBoardInstructions(context.Background(), toolRequest("board_instructions", map[string]any{}))
	if err != nil {
		t.Fatalf("handleBoardInstructions failed: %v", err)
	}

	text := resultText(t, result)
	for _, content := range []string{
		"Pathboard - Complete Instructions",
		"BOARD LEGEND:",
		"COST MODEL:",
		"Diagonal step: 14",
		"BOARD SIZE: 2 to 42 cells per side.",
	} {
		if !strings.Contains(text, content) {
			t.Errorf("Expected '%s' in instructions, got: %s", content, text)
		}
	}
}
