package board

import (
	"fmt"
	"strings"

	"github.com/wricardo/mcp-training/pathboard/game/grid"
)

// DefaultMessages are used for any message a preset leaves empty.
var DefaultMessages = Messages{
	Welcome:       "Place point A and point B, then find a path.",
	PointPlaced:   "Point %s placed at (%d,%d)",
	PathFound:     "Path found: %d cells, cost %d",
	NoPath:        "No path between the points",
	PointsMissing: "Place both points before searching",
	Regenerated:   "Board regenerated",
}

// DefaultBoardConfig returns the built-in preset: an open 20x20 board whose
// Regenerate produces roughly half solid cells.
func DefaultBoardConfig() *BoardConfig {
	layout := make([]string, DefaultBoardHeight)
	for i := range layout {
		layout[i] = strings.Repeat(string(grid.OpenChar), DefaultBoardWidth)
	}
	return &BoardConfig{
		Name:        "default",
		Description: "Open 20x20 board",
		Width:       DefaultBoardWidth,
		Height:      DefaultBoardHeight,
		Layout:      layout,
		SolidRatio:  DefaultSolidRatio,
		Messages:    DefaultMessages,
	}
}

// ValidateBoardConfig checks a preset for correctness.
func ValidateBoardConfig(config *BoardConfig) error {
	if config == nil {
		return fmt.Errorf("config validation: config is nil")
	}
	if config.Name == "" {
		return fmt.Errorf("config validation: name is required")
	}

	if config.Width < MinBoardSize || config.Width > MaxBoardSize {
		return fmt.Errorf("config validation: width must be between %d and %d, got %d", MinBoardSize, MaxBoardSize, config.Width)
	}
	if config.Height < MinBoardSize || config.Height > MaxBoardSize {
		return fmt.Errorf("config validation: height must be between %d and %d, got %d", MinBoardSize, MaxBoardSize, config.Height)
	}

	if config.SolidRatio < 0 || config.SolidRatio > MaxSolidRatio {
		return fmt.Errorf("config validation: solid_ratio must be between 0 and %.1f, got %g", MaxSolidRatio, config.SolidRatio)
	}

	if len(config.Layout) > 0 {
		if len(config.Layout) != config.Height {
			return fmt.Errorf("config validation: layout must have %d rows to match height, got %d", config.Height, len(config.Layout))
		}
		for i, row := range config.Layout {
			if len(row) != config.Width {
				return fmt.Errorf("config validation: row %d must have %d characters to match width, got %d", i+1, config.Width, len(row))
			}
			for j, char := range row {
				if char != grid.OpenChar && char != grid.SolidChar {
					return fmt.Errorf("config validation: invalid character '%c' at row %d, col %d", char, i+1, j+1)
				}
			}
		}
	}

	for name, msg := range map[string]string{
		"point_placed": config.Messages.PointPlaced,
		"path_found":   config.Messages.PathFound,
	} {
		if msg != "" && !strings.Contains(msg, "%") {
			return fmt.Errorf("config validation: messages.%s must contain format verbs", name)
		}
	}

	return nil
}

// messages returns the preset messages with defaults filled in.
func (c *BoardConfig) messages() Messages {
	m := c.Messages
	if m.Welcome == "" {
		m.Welcome = DefaultMessages.Welcome
	}
	if m.PointPlaced == "" {
		m.PointPlaced = DefaultMessages.PointPlaced
	}
	if m.PathFound == "" {
		m.PathFound = DefaultMessages.PathFound
	}
	if m.NoPath == "" {
		m.NoPath = DefaultMessages.NoPath
	}
	if m.PointsMissing == "" {
		m.PointsMissing = DefaultMessages.PointsMissing
	}
	if m.Regenerated == "" {
		m.Regenerated = DefaultMessages.Regenerated
	}
	return m
}

// InitBoardStateFromConfig builds the initial board of a preset. Presets
// with a layout use it verbatim; the others get random terrain from Seed.
func InitBoardStateFromConfig(config *BoardConfig) *BoardState {
	if config == nil {
		config = DefaultBoardConfig()
	}

	state := &BoardState{
		NextPoint:     PointA,
		Message:       config.messages().Welcome,
		ConfigName:    config.Name,
		SearchHistory: []SearchRecord{},
	}

	if len(config.Layout) > 0 {
		g, err := grid.FromRows(config.Layout)
		if err == nil {
			state.Grid = g
			return state
		}
	}

	seed := config.Seed
	if seed == 0 {
		seed = newSeed()
	}
	state.Grid = generateGrid(config.Width, config.Height, config.SolidRatio, seed)
	state.Seed = seed
	return state
}
