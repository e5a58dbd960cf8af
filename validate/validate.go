// Command validate checks every board preset file in a presets directory.
// Unlike the server, which skips presets it cannot load, it reports why a
// file is rejected. It checks:
//   - JSON or YAML syntax
//   - Dimensions, solid ratio, layout characters and message verbs
//   - That a layout leaves at least one open cell
//   - That no two files share a preset ID (classic.json and classic.yaml)
//
// It exits with a non-zero status if any preset is invalid.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/wricardo/mcp-training/pathboard/game/board"
	"github.com/wricardo/mcp-training/pathboard/game/grid"
)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

func (r *ValidationResult) fail(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) info(format string, args ...any) {
	r.Errors = append(r.Errors, "✓ "+fmt.Sprintf(format, args...))
}

// validateConfig loads and validates a single preset file.
func validateConfig(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	var cfg board.BoardConfig
	switch filepath.Ext(filePath) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			result.fail("Invalid YAML: %v", err)
			return result
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			result.fail("Invalid JSON: %v", err)
			return result
		}
	}

	if err := board.ValidateBoardConfig(&cfg); err != nil {
		result.fail("%s", strings.TrimPrefix(err.Error(), "config validation: "))
		return result
	}

	if len(cfg.Layout) == 0 {
		result.info("Name: %s", cfg.Name)
		result.info("Grid: %dx%d, random terrain at solid ratio %.2f", cfg.Width, cfg.Height, cfg.SolidRatio)
		if cfg.Seed != 0 {
			result.info("Seed: %d", cfg.Seed)
		}
		return result
	}

	g, err := grid.FromRows(cfg.Layout)
	if err != nil {
		result.fail("Invalid layout: %v", err)
		return result
	}
	if g.SolidCount() == g.Width*g.Height && !cfg.AllowSolidEndpoints {
		result.fail("Layout has no open cell to place a point on")
		return result
	}

	result.info("Name: %s", cfg.Name)
	result.info("Grid: %dx%d, %d solid cells", g.Width, g.Height, g.SolidCount())
	if regions := board.CountRegions(g); regions > 1 {
		result.info("Open regions: %d (some point pairs have no path)", regions)
	} else {
		result.info("Open regions: %d", regions)
	}
	return result
}

// presetFiles lists the preset files of dir in name order.
func presetFiles(dir string) ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.json", "*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

// duplicateIDs returns the preset IDs claimed by more than one file.
func duplicateIDs(files []string) map[string][]string {
	byID := make(map[string][]string)
	for _, f := range files {
		base := filepath.Base(f)
		id := strings.TrimSuffix(base, filepath.Ext(base))
		byID[id] = append(byID[id], base)
	}
	for id, names := range byID {
		if len(names) < 2 {
			delete(byID, id)
		}
	}
	return byID
}

// validateDir validates every preset in dir, prints a report to w and
// reports whether all of them are valid.
func validateDir(dir string, w io.Writer) (bool, error) {
	files, err := presetFiles(dir)
	if err != nil {
		return false, fmt.Errorf("error finding preset files: %w", err)
	}
	if len(files) == 0 {
		return false, fmt.Errorf("no preset files in %s", dir)
	}

	allValid := true
	for _, file := range files {
		result := validateConfig(file)

		fmt.Fprintf(w, "\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Fprintln(w, "✅ VALID")
			for _, info := range result.Errors {
				fmt.Fprintln(w, "  "+info)
			}
		} else {
			fmt.Fprintln(w, "❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Fprintln(w, "  ❌ "+err)
				}
			}
		}
	}

	dups := duplicateIDs(files)
	ids := make([]string, 0, len(dups))
	for id := range dups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		allValid = false
		fmt.Fprintf(w, "\n❌ Preset ID %q is defined by %s\n", id, strings.Join(dups[id], ", "))
	}

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Fprintln(w, "✅ All presets are valid!")
	} else {
		fmt.Fprintln(w, "❌ Some presets have errors")
	}
	return allValid, nil
}

func main() {
	cmd := &cli.Command{
		Name:  "validate",
		Usage: "Validate the board presets in a directory",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "presets-dir", Value: "presets", Usage: "Directory containing board presets", Sources: cli.EnvVars("PRESETS_DIR")},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ok, err := validateDir(cmd.String("presets-dir"), os.Stdout)
			if err != nil {
				return err
			}
			if !ok {
				return cli.Exit("", 1)
			}
			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "validate: %v\n", err)
		os.Exit(1)
	}
}
