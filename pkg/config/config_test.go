package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/willibrandon/tlmtrace/pkg/symbols"
)

func TestAddressResolve(t *testing.T) {
	tbl := symbols.NewTable([]symbols.Label{{Addr: 0x8150, Name: "FORTH_LINK"}})

	tests := []struct {
		value Address
		want  uint32
		ok    bool
	}{
		{"0x8000", 0x8000, true},
		{"32768", 32768, true},
		{"FORTH_LINK", 0x8150, true},
		{" FORTH_LINK ", 0x8150, true},
		{"NOPE", 0, false},
		{"", 0, false},
	}
	for _, tc := range tests {
		got, err := tc.value.Resolve("latest", tbl)
		if tc.ok && (err != nil || got != tc.want) {
			t.Errorf("Resolve(%q) = %#x, %v; want %#x", tc.value, got, err, tc.want)
		}
		if !tc.ok {
			var re *ResolveError
			if !errors.As(err, &re) {
				t.Errorf("Resolve(%q): expected ResolveError, got %v", tc.value, err)
			}
		}
	}

	// Without a label table only numeric values resolve.
	if _, err := Address("FORTH_LINK").Resolve("latest", nil); err == nil {
		t.Errorf("expected failure without a label table")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tlmtrace.yaml")
	content := `
resync: true
labels: calc.labels.json
forth:
  latest: FORTH_LINK
  stack_base: "0x9F00"
  cells: 6
stop:
  window: 12
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Resync || cfg.Labels != "calc.labels.json" {
		t.Errorf("top level = %+v", cfg)
	}
	if cfg.Forth.Latest != "FORTH_LINK" || cfg.Forth.StackBase != "0x9F00" || cfg.Forth.Cells != 6 {
		t.Errorf("forth = %+v", cfg.Forth)
	}
	// Untouched fields keep their defaults.
	if cfg.Forth.Drop != "DROP" || cfg.Forth.Exit != "EXIT" {
		t.Errorf("expected default word names, got %+v", cfg.Forth)
	}
	if cfg.Stop.Window != 12 || cfg.Stop.SPThreshold != "0x8000" {
		t.Errorf("stop = %+v", cfg.Stop)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("expected error for missing file")
	}
}
