package ansi

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Palette holds the 16 terminal colors: 8 standard followed by 8 bright.
type Palette [16]Color

// paletteNames maps YAML theme keys to palette slots.
var paletteNames = [16]string{
	"black", "red", "green", "yellow", "blue", "magenta", "cyan", "white",
	"bright_black", "bright_red", "bright_green", "bright_yellow",
	"bright_blue", "bright_magenta", "bright_cyan", "bright_white",
}

// DefaultPalette returns the built-in color scheme.
func DefaultPalette() Palette {
	return Palette{
		"#000000", "#cd3131", "#0dbc79", "#e5e510",
		"#2472c8", "#bc3fbc", "#11a8cd", "#e5e5e5",
		"#666666", "#f14c4c", "#23d18b", "#f5f543",
		"#3b8eea", "#d670d6", "#29b8db", "#ffffff",
	}
}

// LoadPalette reads a YAML theme file mapping color names to hex values and
// overlays it on the default palette. Unknown keys are rejected so typos in a
// theme file surface instead of silently keeping the default color. An empty
// path returns the default palette.
func LoadPalette(path string) (Palette, error) {
	palette := DefaultPalette()
	if path == "" {
		return palette, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return palette, fmt.Errorf("failed to read palette file: %w", err)
	}

	var theme map[string]string
	if err := yaml.Unmarshal(data, &theme); err != nil {
		return palette, fmt.Errorf("failed to parse palette file: %w", err)
	}

	for key, value := range theme {
		slot := -1
		for i, name := range paletteNames {
			if name == key {
				slot = i
				break
			}
		}
		if slot < 0 {
			return DefaultPalette(), fmt.Errorf("unknown palette color %q", key)
		}
		palette[slot] = Color(value)
	}
	return palette, nil
}
