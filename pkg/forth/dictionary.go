// Package forth resolves and traces programs built on an
// indirect-threaded Forth dictionary inside a reconstructed memory
// image. The walker recovers word names and code-field addresses from
// the linked dictionary; the tracer replays the instruction stream
// against them.
package forth

// Memory is the read access the walker and tracer need. A fully
// reconstructed *memory.Image satisfies it.
type Memory interface {
	Byte(addr uint32) (byte, bool)
	Word(addr uint32) (uint16, bool)
}

// Word is one dictionary entry.
type Word struct {
	CFA   uint16 // code-field address, what invocations jump to
	Name  string
	Colon bool // interpreted via the shared DOCOL entry, not native code
}

// Dictionary holds the walked entries in walk order (newest first).
type Dictionary struct {
	words    []Word
	byCFA    map[uint16]int
	byName   map[string]int
	docol    uint16
	hasDocol bool
}

// DefaultMaxEntries is the walk ceiling guarding against corrupted
// dictionaries.
const DefaultMaxEntries = 4096

const nameLenMask = 0x3F // low 6 bits of the length/flags byte

// direct CALL opcode; a code field starting with it may be a colon
// word's jump into the interpreter.
const opCall = 0xCD

// Walk traverses the linked dictionary rooted at latest. Each node is
// (link: 2 bytes LE, length/flags: 1 byte, name bytes, pad, code
// field). Traversal stops at a null link, a revisited address, an
// unreadable node or after maxEntries entries; corrupted or cyclic
// dictionaries therefore terminate, yielding whatever was recovered.
func Walk(mem Memory, latest uint16, maxEntries int) *Dictionary {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	d := &Dictionary{
		byCFA:  make(map[uint16]int),
		byName: make(map[string]int),
	}

	// Call targets per word, for DOCOL inference below.
	targets := make(map[int]uint16)

	visited := make(map[uint16]bool)
	node := latest
	for node != 0 && !visited[node] && len(d.words) < maxEntries {
		visited[node] = true

		link, ok := mem.Word(uint32(node))
		if !ok {
			break
		}
		lenFlags, ok := mem.Byte(uint32(node) + 2)
		if !ok {
			break
		}
		nameLen := uint16(lenFlags & nameLenMask)

		name := make([]byte, 0, nameLen)
		for i := uint16(0); i < nameLen; i++ {
			b, ok := mem.Byte(uint32(node) + 3 + uint32(i))
			if !ok || b < 0x20 || b > 0x7E {
				b = '?'
			}
			name = append(name, b)
		}
		cfa := node + 3 + nameLen + 1

		idx := len(d.words)
		d.words = append(d.words, Word{CFA: cfa, Name: string(name)})
		d.byCFA[cfa] = idx
		if _, dup := d.byName[string(name)]; !dup {
			d.byName[string(name)] = idx
		}

		if op, ok := mem.Byte(uint32(cfa)); ok && op == opCall {
			if target, ok := mem.Word(uint32(cfa) + 1); ok {
				targets[idx] = target
			}
		}

		node = link
	}

	d.inferDocol(targets)
	return d
}

// inferDocol picks the most-called code-field target as the shared
// interpreter entry point and classifies the words that call it as
// colon words. Ties break toward the target seen first in walk order,
// so the result is deterministic for a given dictionary.
func (d *Dictionary) inferDocol(targets map[int]uint16) {
	counts := make(map[uint16]int)
	var order []uint16
	for idx := range d.words {
		target, ok := targets[idx]
		if !ok {
			continue
		}
		if counts[target] == 0 {
			order = append(order, target)
		}
		counts[target]++
	}

	best := -1
	for _, target := range order {
		if counts[target] > best {
			best = counts[target]
			d.docol = target
			d.hasDocol = true
		}
	}
	if !d.hasDocol {
		return
	}
	for idx := range d.words {
		if target, ok := targets[idx]; ok && target == d.docol {
			d.words[idx].Colon = true
		}
	}
}

// Words returns all entries in walk order.
func (d *Dictionary) Words() []Word {
	out := make([]Word, len(d.words))
	copy(out, d.words)
	return out
}

// Find returns the word whose code field is at cfa.
func (d *Dictionary) Find(cfa uint16) (Word, bool) {
	idx, ok := d.byCFA[cfa]
	if !ok {
		return Word{}, false
	}
	return d.words[idx], true
}

// FindByName returns the newest word with the given name.
func (d *Dictionary) FindByName(name string) (Word, bool) {
	idx, ok := d.byName[name]
	if !ok {
		return Word{}, false
	}
	return d.words[idx], true
}

// Docol returns the inferred shared interpreter entry point.
func (d *Dictionary) Docol() (uint16, bool) { return d.docol, d.hasDocol }

// Len returns the number of walked entries.
func (d *Dictionary) Len() int { return len(d.words) }
