// Command analyze prints quick, human-readable heuristics about the board
// presets in a directory. For each preset it builds the initial board and
// reports its size, solid ratio, the number of connected open regions and
// whether the top-left and bottom-right open cells are connected.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/mcp-training/pathboard/game/board"
	"github.com/wricardo/mcp-training/pathboard/game/config"
	"github.com/wricardo/mcp-training/pathboard/game/pathfinding"
)

// Report summarizes one preset.
type Report struct {
	ConfigID   string
	Name       string
	Width      int
	Height     int
	HasLayout  bool
	SolidRatio float64
	Regions    int

	// Corners holds the first and last open cells in row order.
	Corners   [2]string
	Connected bool
	Cost      int
	Expanded  int
	Err       error
}

func main() {
	cmd := &cli.Command{
		Name:  "analyze",
		Usage: "Report board statistics for every preset in a directory",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "presets-dir", Value: "presets", Usage: "Directory containing board presets", Sources: cli.EnvVars("PRESETS_DIR")},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			reports, err := analyzeDir(cmd.String("presets-dir"))
			if err != nil {
				return err
			}
			for _, r := range reports {
				printReport(os.Stdout, r)
			}
			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "analyze: %v\n", err)
		os.Exit(1)
	}
}

// analyzeDir analyzes every preset the config manager can list in dir.
func analyzeDir(dir string) ([]Report, error) {
	manager, err := config.NewManager(dir)
	if err != nil {
		return nil, err
	}

	infos, err := manager.ListConfigs()
	if err != nil {
		return nil, err
	}

	reports := make([]Report, 0, len(infos))
	for _, info := range infos {
		cfg, err := manager.LoadConfig(info.Filename)
		if err != nil {
			reports = append(reports, Report{ConfigID: info.ConfigID, Err: err})
			continue
		}
		r := analyzePreset(cfg)
		r.ConfigID = info.ConfigID
		reports = append(reports, r)
	}
	return reports, nil
}

func analyzePreset(cfg *board.BoardConfig) Report {
	r := Report{
		Name:      cfg.Name,
		Width:     cfg.Width,
		Height:    cfg.Height,
		HasLayout: len(cfg.Layout) > 0,
	}
	if err := board.ValidateBoardConfig(cfg); err != nil {
		r.Err = err
		return r
	}

	g := board.InitBoardStateFromConfig(cfg).Grid
	r.SolidRatio = board.SolidRatio(g)
	r.Regions = board.CountRegions(g)

	first, ok := board.FirstOpenCell(g)
	if !ok {
		return r
	}
	last, _ := board.LastOpenCell(g)
	r.Corners = [2]string{first.String(), last.String()}

	res := pathfinding.Search(g, g.CellAt(first.X, first.Y), g.CellAt(last.X, last.Y))
	r.Connected = res.Found
	r.Cost = res.Cost
	r.Expanded = res.Expanded
	return r
}

func printReport(w io.Writer, r Report) {
	fmt.Fprintf(w, "\n=== Analyzing %s ===\n", r.ConfigID)
	if r.Err != nil {
		fmt.Fprintf(w, "Error: %v\n", r.Err)
		return
	}

	source := "random"
	if r.HasLayout {
		source = "layout"
	}
	fmt.Fprintf(w, "Name: %s\n", r.Name)
	fmt.Fprintf(w, "Size: %d x %d (%s)\n", r.Width, r.Height, source)
	fmt.Fprintf(w, "Solid ratio: %.2f\n", r.SolidRatio)
	fmt.Fprintf(w, "Open regions: %d\n", r.Regions)

	switch {
	case r.Corners[0] == "":
		fmt.Fprintf(w, "⚠️  WARNING: board has no open cells\n")
	case r.Connected:
		fmt.Fprintf(w, "✅ %s and %s are connected (cost %d, %d expanded)\n", r.Corners[0], r.Corners[1], r.Cost, r.Expanded)
	default:
		fmt.Fprintf(w, "⚠️  WARNING: no path between %s and %s (%d expanded)\n", r.Corners[0], r.Corners[1], r.Expanded)
	}
}
