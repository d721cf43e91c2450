package symbols

import (
	"os"
	"path/filepath"
	"testing"
)

func testTable() *Table {
	return NewTable([]Label{
		{Addr: 0x9D95, Name: "prog_start"},
		{Addr: 0x0038, Name: "int_vector"},
		{Addr: 0x8000, Name: "ram_base"},
	})
}

func TestLookup(t *testing.T) {
	tbl := testTable()

	tests := []struct {
		addr   uint32
		name   string
		base   uint32
		offset uint32
		ok     bool
	}{
		{0x9D95, "prog_start", 0x9D95, 0, true}, // exact hit
		{0x9DA0, "prog_start", 0x9D95, 0xB, true},
		{0x8001, "ram_base", 0x8000, 1, true},
		{0x0038, "int_vector", 0x0038, 0, true},
		{0xFFFF, "prog_start", 0x9D95, 0x626A, true},
		{0x0010, "", 0, 0, false}, // below every label
	}
	for _, tc := range tests {
		r, ok := tbl.Lookup(tc.addr)
		if ok != tc.ok {
			t.Errorf("Lookup(%#x) ok = %v, want %v", tc.addr, ok, tc.ok)
			continue
		}
		if !ok {
			continue
		}
		if r.Name != tc.name || r.Base != tc.base || r.Offset(tc.addr) != tc.offset {
			t.Errorf("Lookup(%#x) = %+v (offset %#x), want %s+%#x",
				tc.addr, r, r.Offset(tc.addr), tc.name, tc.offset)
		}
	}

	// Cached lookups must agree with fresh ones.
	for _, tc := range tests {
		r, ok := tbl.Lookup(tc.addr)
		if ok != tc.ok || (ok && r.Name != tc.name) {
			t.Errorf("cached Lookup(%#x) diverged: %+v, %v", tc.addr, r, ok)
		}
	}
}

func TestResolve(t *testing.T) {
	tbl := testTable()
	if addr, ok := tbl.Resolve("ram_base"); !ok || addr != 0x8000 {
		t.Errorf("Resolve(ram_base) = %#x, %v; want 0x8000, true", addr, ok)
	}
	if _, ok := tbl.Resolve("missing"); ok {
		t.Errorf("Resolve(missing) should fail")
	}
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.json")
	content := `{"labels":[{"addr":32768,"name":"ram_base"},{"addr":56,"name":"int_vector"}]}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	tbl, err := LoadJSON(path)
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if tbl.Len() != 2 {
		t.Fatalf("expected 2 labels, got %d", tbl.Len())
	}
	if r, ok := tbl.Lookup(0x8000); !ok || r.Name != "ram_base" {
		t.Errorf("Lookup(0x8000) = %+v, %v", r, ok)
	}

	if _, err := LoadJSON(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Errorf("expected error for missing file")
	}
}
