// Package config manages board presets for the pathfinding board server.
//
// The config package handles:
//   - Loading presets from JSON or YAML files
//   - Preset validation through board.ValidateBoardConfig
//   - Default preset selection
//   - Preset discovery and listing
//
// Preset Format:
//
// Presets live in the presets directory as name.json, name.yaml or
// name.yml. Each preset defines the board size, an optional fixed layout
// ('#' solid, '.' open), the solid ratio used when the board is generated
// at random, and optional user-facing messages.
//
//	name: maze
//	description: Hand drawn maze
//	width: 8
//	height: 4
//	solid_ratio: 0.3
//	layout:
//	  - "........"
//	  - ".######."
//	  - "......#."
//	  - "######.."
//
// Usage:
//
//	manager, err := config.NewManager("presets")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	preset, err := manager.LoadConfig("maze")
//	defaultPreset := manager.GetDefault()
//	presets, err := manager.ListConfigs()
//
// The default preset is "classic" when present, otherwise the first valid
// preset in the directory, otherwise the built-in open 20x20 board.
package config
