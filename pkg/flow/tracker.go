package flow

import (
	"fmt"

	"github.com/willibrandon/tlmtrace/pkg/trace"
)

// EventKind identifies one inferred flow event.
type EventKind int

const (
	EventCall EventKind = iota
	EventReturn
	EventReturnUnderflow
	EventJump
	EventAsync
)

func (k EventKind) String() string {
	switch k {
	case EventCall:
		return "call"
	case EventReturn:
		return "return"
	case EventReturnUnderflow:
		return "return-underflow"
	case EventJump:
		return "jump"
	case EventAsync:
		return "async"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is one inferred control-flow fact.
type Event struct {
	Kind  EventKind
	Index int    // instruction index within the trace
	Clock uint32 // clock of the instruction that produced the event

	From     uint32 // pc of the transfer (async: where execution would have continued)
	To       uint32 // destination actually reached
	Expected uint32 // call/async: pushed return address; return: popped expected address
	Depth    int    // call-stack depth after the event was applied

	Taken    bool         // false only for untaken conditionals reported on request
	Mismatch bool         // return whose destination differs from the expected address
	Transfer TransferKind // classified opcode kind (meaningless for async)
}

// StopReason says why the tracker halted early.
type StopReason int

const (
	StopNone StopReason = iota
	StopReturnUnderflow
	StopSPThreshold
)

// Config controls tracker policy.
type Config struct {
	// IncludeUntaken reports conditional transfers that did not branch.
	// Untaken calls never touch the call stack.
	IncludeUntaken bool

	// StopOnUnderflow halts processing when a return pops an empty
	// call stack. The underflow event is emitted either way.
	StopOnUnderflow bool

	// StopBelowSP halts processing when the post-execution stack
	// pointer drops below SPThreshold.
	StopBelowSP bool
	SPThreshold uint16

	// Window is the number of recent flow events retained for
	// diagnostics. Zero means DefaultWindow.
	Window int
}

// DefaultWindow is the diagnostic window size used when Config.Window
// is zero.
const DefaultWindow = 16

// Tracker consumes instruction records in trace order and infers the
// call/return structure. One tracker serves one pass; state is not
// reusable across traces.
type Tracker struct {
	cfg    Config
	sink   func(Event)
	stack  []uint32
	window []Event
	prev   *trace.Instruction
	index  int
	stop   StopReason
}

// New creates a tracker. The sink, if non-nil, observes every event as
// it is inferred, including those that trigger a stop.
func New(cfg Config, sink func(Event)) *Tracker {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	return &Tracker{
		cfg:    cfg,
		sink:   sink,
		window: make([]Event, 0, cfg.Window),
	}
}

// Depth returns the current inferred call-stack depth.
func (t *Tracker) Depth() int { return len(t.stack) }

// Stop returns why processing halted, or StopNone.
func (t *Tracker) Stop() StopReason { return t.stop }

// Window returns the retained recent events, oldest first. The slice is
// a copy and safe to hold.
func (t *Tracker) Window() []Event {
	out := make([]Event, len(t.window))
	copy(out, t.window)
	return out
}

func (t *Tracker) emit(e Event) {
	if len(t.window) == t.cfg.Window {
		copy(t.window, t.window[1:])
		t.window = t.window[:len(t.window)-1]
	}
	t.window = append(t.window, e)
	if t.sink != nil {
		t.sink(e)
	}
}

// Step processes one instruction record. It returns true when a stop
// policy fired; the diagnostic window still holds the triggering event.
func (t *Tracker) Step(ins *trace.Instruction) bool {
	idx := t.index
	t.index++

	// Asynchronous transfer heuristic: execution did not continue where
	// the previous instruction left it, and the stack pointer dropped by
	// exactly one 16-bit cell. A taken branch already lands PCAfter on
	// its destination, so any disagreement here is unexplained by the
	// opcode; with the stack push it looks like an accepted interrupt.
	// The heuristic can misfire on a PUSH-class instruction followed by
	// a gap in the record stream.
	if t.prev != nil && uint16(ins.PC) != t.prev.PCAfter && t.prev.SP-ins.SP == 2 {
		t.stack = append(t.stack, uint32(t.prev.PCAfter))
		t.emit(Event{
			Kind:     EventAsync,
			Index:    idx,
			Clock:    ins.Clock,
			From:     uint32(t.prev.PCAfter),
			To:       ins.PC & 0xFFFF,
			Expected: uint32(t.prev.PCAfter),
			Depth:    len(t.stack),
			Taken:    true,
		})
	}
	t.prev = ins

	if tr, ok := Classify(ins.Opcode); ok {
		t.transfer(idx, ins, tr)
		if t.stop != StopNone {
			return true
		}
	}

	if t.cfg.StopBelowSP && ins.SP < t.cfg.SPThreshold {
		t.stop = StopSPThreshold
		return true
	}
	return false
}

func (t *Tracker) transfer(idx int, ins *trace.Instruction, tr Transfer) {
	pc := ins.PC & 0xFFFF
	seqNext := uint16(ins.PC) + tr.Length
	taken := ins.PCAfter != seqNext
	dest := uint32(ins.PCAfter)

	switch tr.Kind {
	case TransferCall, TransferRestart:
		if !taken {
			if t.cfg.IncludeUntaken {
				t.emit(Event{Kind: EventCall, Index: idx, Clock: ins.Clock,
					From: pc, To: dest, Depth: len(t.stack), Transfer: tr.Kind})
			}
			return
		}
		t.stack = append(t.stack, uint32(seqNext))
		t.emit(Event{Kind: EventCall, Index: idx, Clock: ins.Clock,
			From: pc, To: dest, Expected: uint32(seqNext),
			Depth: len(t.stack), Taken: true, Transfer: tr.Kind})

	case TransferReturn:
		if !taken {
			if t.cfg.IncludeUntaken {
				t.emit(Event{Kind: EventReturn, Index: idx, Clock: ins.Clock,
					From: pc, To: dest, Depth: len(t.stack), Transfer: tr.Kind})
			}
			return
		}
		if len(t.stack) == 0 {
			t.emit(Event{Kind: EventReturnUnderflow, Index: idx, Clock: ins.Clock,
				From: pc, To: dest, Taken: true, Transfer: tr.Kind})
			if t.cfg.StopOnUnderflow {
				t.stop = StopReturnUnderflow
			}
			return
		}
		expected := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
		t.emit(Event{Kind: EventReturn, Index: idx, Clock: ins.Clock,
			From: pc, To: dest, Expected: expected, Depth: len(t.stack),
			Taken: true, Mismatch: expected != dest, Transfer: tr.Kind})

	default:
		// Jumps never touch the call stack.
		if taken || t.cfg.IncludeUntaken {
			t.emit(Event{Kind: EventJump, Index: idx, Clock: ins.Clock,
				From: pc, To: dest, Depth: len(t.stack),
				Taken: taken, Transfer: tr.Kind})
		}
	}
}
