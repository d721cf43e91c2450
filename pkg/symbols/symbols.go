// Package symbols resolves trace addresses to names from an external
// address→name label map. It only annotates output; no control-flow
// decision ever depends on it.
package symbols

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	lru "github.com/hashicorp/golang-lru"
)

// Label is one named address.
type Label struct {
	Addr uint32 `json:"addr"`
	Name string `json:"name"`
}

// Result is a resolved label: the nearest named symbol at or below the
// queried address.
type Result struct {
	Name string
	Base uint32
}

// Offset returns the distance from the label base to addr.
func (r Result) Offset(addr uint32) uint32 { return addr - r.Base }

// Table is a sorted label table with greatest-lower-bound lookup.
// Lookups are cached; the cache is a pure read-side optimization.
type Table struct {
	labels []Label
	byName map[string]uint32
	cache  *lru.Cache
}

const cacheSize = 256

// NewTable builds a table from labels in any order. Duplicate addresses
// keep the last label given.
func NewTable(labels []Label) *Table {
	sorted := make([]Label, len(labels))
	copy(sorted, labels)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Addr < sorted[j].Addr })

	byName := make(map[string]uint32, len(sorted))
	for _, l := range sorted {
		byName[l.Name] = l.Addr
	}

	cache, _ := lru.New(cacheSize)
	return &Table{labels: sorted, byName: byName, cache: cache}
}

// LoadJSON reads a label map file of the form
// {"labels":[{"addr":N,"name":"S"},...]}.
func LoadJSON(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw struct {
		Labels []Label `json:"labels"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("symbols: parse %s: %w", path, err)
	}
	return NewTable(raw.Labels), nil
}

// Lookup returns the nearest-preceding named symbol for addr. ok is
// false when addr precedes every label.
func (t *Table) Lookup(addr uint32) (Result, bool) {
	if v, hit := t.cache.Get(addr); hit {
		r := v.(Result)
		return r, r.Name != ""
	}

	i := sort.Search(len(t.labels), func(i int) bool { return t.labels[i].Addr > addr })
	var r Result
	if i > 0 {
		l := t.labels[i-1]
		r = Result{Name: l.Name, Base: l.Addr}
	}
	t.cache.Add(addr, r)
	return r, r.Name != ""
}

// Resolve returns the address of an exactly named label.
func (t *Table) Resolve(name string) (uint32, bool) {
	addr, ok := t.byName[name]
	return addr, ok
}

// Len returns the number of labels.
func (t *Table) Len() int { return len(t.labels) }
