// Command bruteforcer cross-checks a running server's path searches. It
// creates a session from a preset, sends batches of open-cell pairs to the
// batch search endpoint and compares every answer with an exhaustive
// Dijkstra search over the same board. Each returned path is also checked
// for legal steps, open cells, correct endpoints and cost.
//
// It exits with a non-zero status when any answer disagrees.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/wricardo/mcp-training/pathboard/game/board"
	"github.com/wricardo/mcp-training/pathboard/game/grid"
	"github.com/wricardo/mcp-training/pathboard/game/pathfinding"
	"github.com/wricardo/mcp-training/pathboard/game/service"
)

type Client struct {
	baseURL   string
	sessionID string
	client    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("%s %s failed: %s", method, path, resp.Status)
	}

	if result != nil {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("parse %s response: %w", path, err)
		}
	}
	return nil
}

func (c *Client) sessionPath(suffix string) string {
	return "/api/sessions/" + url.PathEscape(c.sessionID) + suffix
}

func (c *Client) CreateSession(ctx context.Context, configID string) (*service.SessionInfo, error) {
	var req any
	if configID != "" {
		req = map[string]string{"config_id": configID}
	}
	var info service.SessionInfo
	if err := c.do(ctx, http.MethodPost, "/api/sessions", req, &info); err != nil {
		return nil, err
	}
	c.sessionID = info.ID
	return &info, nil
}

func (c *Client) Regenerate(ctx context.Context, seed int64) (*board.BoardState, error) {
	var state board.BoardState
	if err := c.do(ctx, http.MethodPost, c.sessionPath("/regenerate"), map[string]int64{"seed": seed}, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (c *Client) Board(ctx context.Context) (*board.BoardState, error) {
	var state board.BoardState
	if err := c.do(ctx, http.MethodGet, c.sessionPath("/board"), nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (c *Client) FindPaths(ctx context.Context, queries []service.PathQuery) (*service.BatchPathResult, error) {
	var result service.BatchPathResult
	body := map[string][]service.PathQuery{"queries": queries}
	if err := c.do(ctx, http.MethodPost, c.sessionPath("/paths"), body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) DeleteSession(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, c.sessionPath(""), nil, nil)
}

// Mismatch describes one server answer the oracle disagrees with.
type Mismatch struct {
	Query  service.PathQuery
	Reason string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s -> %s: %s", m.Query.Start, m.Query.Goal, m.Reason)
}

// Summary is the outcome of one run.
type Summary struct {
	SessionID  string
	Generation int
	Pairs      int
	Found      int
	Expanded   int
	Mismatches []Mismatch
}

type runOptions struct {
	configID    string
	seed        int64
	maxPairs    int
	concurrency int
	keep        bool
}

// openCells lists the open cells of g in row order.
func openCells(g *grid.Grid) []grid.Position {
	var cells []grid.Position
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			if !g.CellAt(x, y).Solid {
				cells = append(cells, grid.Position{X: x, Y: y})
			}
		}
	}
	return cells
}

// pairs returns every unordered pair of distinct cells, or a sample of
// limit ordered pairs drawn with rng when there are more than limit.
func pairs(cells []grid.Position, limit int, rng *rand.Rand) []service.PathQuery {
	total := len(cells) * (len(cells) - 1) / 2
	if total <= limit {
		out := make([]service.PathQuery, 0, total)
		for i := range cells {
			for j := i + 1; j < len(cells); j++ {
				out = append(out, service.PathQuery{Start: cells[i], Goal: cells[j]})
			}
		}
		return out
	}

	out := make([]service.PathQuery, 0, limit)
	for len(out) < limit {
		a, b := rng.IntN(len(cells)), rng.IntN(len(cells))
		if a == b {
			continue
		}
		out = append(out, service.PathQuery{Start: cells[a], Goal: cells[b]})
	}
	return out
}

// batches splits queries into chunks the server accepts.
func batches(queries []service.PathQuery) [][]service.PathQuery {
	var out [][]service.PathQuery
	for len(queries) > 0 {
		n := min(len(queries), service.MaxBatchQueries)
		out = append(out, queries[:n])
		queries = queries[n:]
	}
	return out
}

// checkAnswer compares one server answer with the oracle's distances from
// the query's start cell.
func checkAnswer(g *grid.Grid, dist distances, q service.PathQuery, r service.PathQueryResult) []string {
	var problems []string
	want, reachable := dist.to(q.Goal)

	if r.Found != reachable {
		return []string{fmt.Sprintf("found=%v, oracle says reachable=%v", r.Found, reachable)}
	}
	if !r.Found {
		if len(r.Path) != 0 {
			problems = append(problems, "path returned for an unreachable goal")
		}
		return problems
	}

	if r.Cost != want {
		problems = append(problems, fmt.Sprintf("cost %d, oracle %d", r.Cost, want))
	}
	if len(r.Path) == 0 {
		return append(problems, "empty path")
	}
	if r.Path[0] != q.Goal || r.Path[len(r.Path)-1] != q.Start {
		problems = append(problems, fmt.Sprintf("path runs %s -> %s, want goal first", r.Path[0], r.Path[len(r.Path)-1]))
	}

	cells := make([]grid.Cell, len(r.Path))
	for i, p := range r.Path {
		if !g.InBounds(p.X, p.Y) {
			return append(problems, fmt.Sprintf("step %d %s is off the board", i, p))
		}
		cells[i] = g.CellAt(p.X, p.Y)
		if cells[i].Solid {
			problems = append(problems, fmt.Sprintf("step %d %s is solid", i, p))
		}
		if i > 0 {
			dx, dy := p.X-r.Path[i-1].X, p.Y-r.Path[i-1].Y
			if dx < -1 || dx > 1 || dy < -1 || dy > 1 || (dx == 0 && dy == 0) {
				problems = append(problems, fmt.Sprintf("step %d %s -> %s is not a king move", i, r.Path[i-1], p))
			}
		}
	}
	if c := pathfinding.PathCost(cells); c != r.Cost {
		problems = append(problems, fmt.Sprintf("reported cost %d, path costs %d", r.Cost, c))
	}
	return problems
}

func run(ctx context.Context, client *Client, opts runOptions, logger *slog.Logger) (*Summary, error) {
	info, err := client.CreateSession(ctx, opts.configID)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	logger.Info("session created", "session_id", info.ID, "config", info.ConfigName)
	if !opts.keep {
		defer func() {
			if err := client.DeleteSession(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("failed to delete session", "session_id", info.ID, "error", err)
			}
		}()
	}

	state := info.BoardState
	if opts.seed != 0 {
		if state, err = client.Regenerate(ctx, opts.seed); err != nil {
			return nil, fmt.Errorf("regenerate: %w", err)
		}
	}
	if state == nil || state.Grid == nil {
		if state, err = client.Board(ctx); err != nil {
			return nil, fmt.Errorf("get board: %w", err)
		}
	}
	g := state.Grid
	logger.Info("board loaded", "width", g.Width, "height", g.Height, "solid", g.SolidCount(), "generation", state.Generation)

	rng := rand.New(rand.NewPCG(uint64(opts.seed), uint64(opts.seed)>>1|1))
	queries := pairs(openCells(g), opts.maxPairs, rng)
	chunks := batches(queries)

	answers := make([]*service.BatchPathResult, len(chunks))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(max(opts.concurrency, 1))
	for i, chunk := range chunks {
		eg.Go(func() error {
			res, err := client.FindPaths(egCtx, chunk)
			if err != nil {
				return fmt.Errorf("batch %d: %w", i, err)
			}
			if len(res.Results) != len(chunk) {
				return fmt.Errorf("batch %d: %d answers for %d queries", i, len(res.Results), len(chunk))
			}
			answers[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	summary := &Summary{SessionID: info.ID, Generation: state.Generation, Pairs: len(queries)}
	oracle := make(map[grid.Position]distances)
	for i, chunk := range chunks {
		if answers[i].Generation != state.Generation {
			return nil, fmt.Errorf("board changed during the run: generation %d, expected %d", answers[i].Generation, state.Generation)
		}
		for j, q := range chunk {
			dist, ok := oracle[q.Start]
			if !ok {
				dist = dijkstra(g, q.Start)
				oracle[q.Start] = dist
			}
			r := answers[i].Results[j]
			if r.Found {
				summary.Found++
			}
			summary.Expanded += r.Expanded
			for _, p := range checkAnswer(g, dist, q, r) {
				summary.Mismatches = append(summary.Mismatches, Mismatch{Query: q, Reason: p})
			}
		}
	}
	return summary, nil
}

func printSummary(w io.Writer, s *Summary) {
	fmt.Fprintf(w, "Session %s, board generation %d\n", s.SessionID, s.Generation)
	fmt.Fprintf(w, "Checked %d pairs: %d connected, %d unreachable\n", s.Pairs, s.Found, s.Pairs-s.Found)
	if s.Pairs > 0 {
		fmt.Fprintf(w, "Average expansion: %.1f nodes\n", float64(s.Expanded)/float64(s.Pairs))
	}
	if len(s.Mismatches) == 0 {
		fmt.Fprintln(w, "✅ Every answer matches the exhaustive search")
		return
	}
	fmt.Fprintf(w, "❌ %d mismatches\n", len(s.Mismatches))
	for _, m := range s.Mismatches {
		fmt.Fprintln(w, "  "+m.String())
	}
}

func main() {
	cmd := &cli.Command{
		Name:  "bruteforcer",
		Usage: "Compare a server's path searches with an exhaustive search",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:8080", Usage: "Server URL"},
			&cli.StringFlag{Name: "config", Usage: "Preset to create the session from (server default when empty)"},
			&cli.Int64Flag{Name: "seed", Usage: "Regenerate the board with this seed before checking"},
			&cli.IntFlag{Name: "max-pairs", Value: 2000, Usage: "Sample this many pairs when the board has more"},
			&cli.IntFlag{Name: "concurrency", Value: 4, Usage: "Batch requests in flight"},
			&cli.BoolFlag{Name: "keep", Usage: "Keep the session instead of deleting it"},
			&cli.BoolFlag{Name: "v", Usage: "Verbose output"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			level := slog.LevelWarn
			if cmd.Bool("v") {
				level = slog.LevelInfo
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			logger.Info("connecting to server", "url", cmd.String("url"))
			summary, err := run(ctx, NewClient(cmd.String("url")), runOptions{
				configID:    cmd.String("config"),
				seed:        cmd.Int64("seed"),
				maxPairs:    cmd.Int("max-pairs"),
				concurrency: cmd.Int("concurrency"),
				keep:        cmd.Bool("keep"),
			}, logger)
			if err != nil {
				return err
			}

			printSummary(os.Stdout, summary)
			if len(summary.Mismatches) > 0 {
				return cli.Exit("", 1)
			}
			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "bruteforcer: %v\n", err)
		os.Exit(1)
	}
}
