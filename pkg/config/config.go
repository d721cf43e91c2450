// Package config holds the run configuration: resynchronization policy,
// external images, and the addresses Forth mode needs. Values come from
// an optional YAML file; command-line flags override them.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/willibrandon/tlmtrace/pkg/symbols"
)

// Address is an address-valued setting: a decimal number, a 0x-hex
// number, or the name of a label resolved through the label map.
type Address string

// ResolveError reports an address that could not be resolved from any
// source. It is raised before any trace processing begins.
type ResolveError struct {
	Field string
	Value string
}

func (e *ResolveError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("config: %s is required but not set", e.Field)
	}
	return fmt.Sprintf("config: cannot resolve %s %q: not a number and no matching label", e.Field, e.Value)
}

// Resolve turns the setting into an address, consulting the label map
// for non-numeric values. tbl may be nil when no label map is loaded.
func (a Address) Resolve(field string, tbl *symbols.Table) (uint32, error) {
	s := strings.TrimSpace(string(a))
	if s == "" {
		return 0, &ResolveError{Field: field}
	}
	if v, err := strconv.ParseUint(s, 0, 32); err == nil {
		return uint32(v), nil
	}
	if tbl != nil {
		if addr, ok := tbl.Resolve(s); ok {
			return addr, nil
		}
	}
	return 0, &ResolveError{Field: field, Value: s}
}

// IsSet reports whether the setting has a value.
func (a Address) IsSet() bool { return strings.TrimSpace(string(a)) != "" }

// Forth configures dictionary resolution and the word tracer.
type Forth struct {
	// Latest is the dictionary root: the link field of the newest word.
	Latest Address `yaml:"latest"`
	// StackBase is the cell holding the data-stack base address,
	// required for underflow detection.
	StackBase Address `yaml:"stack_base"`
	// Drop and Exit name the underflow-checked primitive and the
	// return-to-caller word within the walked dictionary.
	Drop string `yaml:"drop"`
	Exit string `yaml:"exit"`
	// Cells is how many data-stack cells each trace line shows.
	Cells int `yaml:"cells"`
	// MaxEntries bounds the dictionary walk.
	MaxEntries int `yaml:"max_entries"`
}

// Stop configures the control-flow stop policies.
type Stop struct {
	SPThreshold Address `yaml:"sp_threshold"`
	Window      int     `yaml:"window"`
}

// Config is the full run configuration.
type Config struct {
	Resync bool   `yaml:"resync"`
	ROM    string `yaml:"rom"`
	Labels string `yaml:"labels"`
	Forth  Forth  `yaml:"forth"`
	Stop   Stop   `yaml:"stop"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Forth: Forth{
			Drop:       "DROP",
			Exit:       "EXIT",
			Cells:      4,
			MaxEntries: 4096,
		},
		Stop: Stop{
			SPThreshold: "0x8000",
			Window:      8,
		},
	}
}

// Load reads a YAML configuration file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
