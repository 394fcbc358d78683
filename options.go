package mpv

import (
	"fmt"
	"os"
	"slices"

	"github.com/pelletier/go-toml/v2"
)

// Options is a set of engine options keyed by option name.
type Options map[string]Value

// ParseOptions reads options from a flat TOML document:
//
//	vo = "gpu"
//	volume = 50
//	fullscreen = true
//	speed = 1.25
//
// Booleans become Flag, integers Int64, floats Double and strings String.
// Tables, arrays and dates are rejected.
func ParseOptions(data []byte) (Options, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse options: %w", err)
	}
	opts := make(Options, len(raw))
	for name, v := range raw {
		switch v := v.(type) {
		case bool:
			opts[name] = Flag(v)
		case int64:
			opts[name] = Int64(v)
		case float64:
			opts[name] = Double(v)
		case string:
			opts[name] = String(v)
		default:
			return nil, fmt.Errorf("parse options: %q: unsupported %T value: %w", name, v, ErrUnsupportedFormat)
		}
	}
	return opts, nil
}

// LoadOptions reads and parses a TOML options file.
func LoadOptions(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseOptions(data)
}

// Names returns the option names in sorted order.
func (o Options) Names() []string {
	names := make([]string, 0, len(o))
	for name := range o {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ApplyOptions sets every option on h in name order and stops at the first
// failure.
func (h *Handle) ApplyOptions(opts Options) error {
	for _, name := range opts.Names() {
		if err := h.SetOption(name, opts[name]); err != nil {
			return err
		}
	}
	return nil
}
