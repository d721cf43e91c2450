package forth

import (
	"github.com/willibrandon/tlmtrace/pkg/trace"
)

// Cell is one reconstructed data-stack cell. Known is false when the
// backing memory was unavailable; such cells render as unknown but
// never abort the trace.
type Cell struct {
	Value uint16
	Known bool
}

// WordEvent is emitted each time execution enters a known code field.
// Cells[0] is the register-held top of stack; the rest are memory words
// walking upward from SP.
type WordEvent struct {
	Index int
	Clock uint32
	Name  string
	CFA   uint16
	SP    uint16
	Cells []Cell
	Depth int // shadow call-stack depth at entry
}

// Underflow is the terminal diagnostic produced when the checked
// primitive runs with the stack pointer at or past the stack base.
type Underflow struct {
	Index     int
	SP        uint16 // pre-entry stack pointer
	Base      uint16 // value of the configured stack-base cell
	Empty     bool   // SP == base; otherwise the pointer is past the base
	CallStack []string
	LastWord  string
}

// TracerConfig configures the replay.
type TracerConfig struct {
	// CheckCFA is the primitive guarded against data-stack underflow
	// (typically DROP). Zero disables the check.
	CheckCFA uint16

	// StackBase is the address of the memory cell holding the data
	// stack base, read fresh on every check.
	StackBase uint16

	// ReturnCFA is the word that returns control to the calling colon
	// word (typically EXIT); entering it pops the shadow call stack.
	ReturnCFA uint16

	// Cells is how many data-stack cells each word event reconstructs.
	// Zero means DefaultCells.
	Cells int
}

// DefaultCells is the number of reconstructed stack cells when
// TracerConfig.Cells is zero.
const DefaultCells = 4

// Tracer replays instruction records against a resolved dictionary.
// It requires a second pass: memory must have been freshly re-seeded
// from the snapshot, since dictionary resolution consumed the first.
type Tracer struct {
	dict *Dictionary
	mem  Memory
	cfg  TracerConfig
	sink func(WordEvent)

	shadow    []string
	prev      *trace.Instruction
	index     int
	last      string
	underflow *Underflow
}

// NewTracer creates a tracer. The sink, if non-nil, observes one
// WordEvent per entered word.
func NewTracer(dict *Dictionary, mem Memory, cfg TracerConfig, sink func(WordEvent)) *Tracer {
	if cfg.Cells <= 0 {
		cfg.Cells = DefaultCells
	}
	return &Tracer{dict: dict, mem: mem, cfg: cfg, sink: sink}
}

// Underflow returns the terminal diagnostic, or nil if none fired.
func (t *Tracer) Underflow() *Underflow { return t.underflow }

// CallStack returns a copy of the shadow colon-word call stack.
func (t *Tracer) CallStack() []string {
	out := make([]string, len(t.shadow))
	copy(out, t.shadow)
	return out
}

// Step processes one instruction record. It returns true when the
// underflow diagnostic fired; that is terminal, not recoverable.
func (t *Tracer) Step(ins *trace.Instruction) bool {
	idx := t.index
	t.index++

	w, known := t.dict.Find(uint16(ins.PC))
	if !known {
		t.prev = ins
		return false
	}

	// Underflow check uses the stack pointer recorded before this
	// instruction, which is the previous record's post-execution SP.
	if t.cfg.CheckCFA != 0 && w.CFA == t.cfg.CheckCFA && t.prev != nil {
		if base, ok := t.mem.Word(uint32(t.cfg.StackBase)); ok && t.prev.SP >= base {
			t.underflow = &Underflow{
				Index:     idx,
				SP:        t.prev.SP,
				Base:      base,
				Empty:     t.prev.SP == base,
				CallStack: t.CallStack(),
				LastWord:  t.last,
			}
			return true
		}
	}

	if t.sink != nil {
		t.sink(WordEvent{
			Index: idx,
			Clock: ins.Clock,
			Name:  w.Name,
			CFA:   w.CFA,
			SP:    ins.SP,
			Cells: t.cells(ins),
			Depth: len(t.shadow),
		})
	}

	if w.Colon {
		t.shadow = append(t.shadow, w.Name)
	} else if w.CFA == t.cfg.ReturnCFA && len(t.shadow) > 0 {
		t.shadow = t.shadow[:len(t.shadow)-1]
	}

	t.last = w.Name
	t.prev = ins
	return false
}

// cells reconstructs the top stack cells: HL holds the top of stack,
// the remaining cells sit at SP, SP+2, ...
func (t *Tracer) cells(ins *trace.Instruction) []Cell {
	out := make([]Cell, 0, t.cfg.Cells)
	out = append(out, Cell{Value: ins.HL, Known: true})
	for i := 1; i < t.cfg.Cells; i++ {
		addr := uint32(ins.SP + uint16(2*(i-1)))
		v, ok := t.mem.Word(addr)
		if !ok {
			out = append(out, Cell{})
			continue
		}
		out = append(out, Cell{Value: v, Known: true})
	}
	return out
}
