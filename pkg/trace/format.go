// Package trace decodes and encodes TilEm execution trace files.
//
// A trace file starts with a fixed header ("TLMT" magic, format version,
// the writable address range the emulator captured, and an initial memory
// snapshot of that range), followed by a flat stream of tagged records:
// one per executed instruction, one per memory write, one per key event.
package trace

import (
	"encoding/binary"
	"fmt"
)

// Magic identifies a TilEm trace file.
var Magic = [4]byte{'T', 'L', 'M', 'T'}

// Kind is the one-byte tag preceding every record in the stream.
type Kind uint8

const (
	KindInstruction Kind = 1
	KindMemWrite    Kind = 2
	KindKeyEvent    Kind = 3
)

// String returns the string representation of the record kind.
func (k Kind) String() string {
	switch k {
	case KindInstruction:
		return "Instruction"
	case KindMemWrite:
		return "MemWrite"
	case KindKeyEvent:
		return "KeyEvent"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Fixed sizes of the on-disk layouts, excluding the tag byte.
const (
	HeaderSize      = 4 + 2 + 2 + 4 + 4 + 4
	InstructionSize = 4 + 4 + 4 + 15*2 + 5
	MemWriteSize    = 4 + 1
	KeyEventSize    = 1 + 1 + 4 + 2
)

// Header is the fixed trace file header. The initial snapshot of
// InitSize bytes follows it immediately and represents memory contents
// over [RangeStart, RangeEnd] at trace start.
type Header struct {
	Version    uint16
	Flags      uint16
	RangeStart uint32
	RangeEnd   uint32
	InitSize   uint32
}

// Record is one tagged entry in the trace stream. The concrete types are
// *Instruction, *MemWrite and *KeyEvent.
type Record interface {
	Kind() Kind
}

// Instruction is the full CPU state captured after one instruction
// executed. PCAfter may differ from PC plus the instruction length when
// a branch was taken. Clock is monotonically non-decreasing across
// Instruction and KeyEvent records.
type Instruction struct {
	PC     uint32
	Opcode uint32 // up to 4 fetched bytes, first byte in the low byte
	Clock  uint32

	AF, BC, DE, HL     uint16
	IX, IY             uint16
	SP                 uint16
	PCAfter            uint16
	IR                 uint16
	WZ, WZ2            uint16
	AF2, BC2, DE2, HL2 uint16

	IFF1, IFF2 uint8
	IM         uint8
	R7         uint8
	Halted     uint8
}

func (*Instruction) Kind() Kind { return KindInstruction }

// MemWrite records a single byte stored by the emulated program.
// Writes are applied in file order; they carry no clock.
type MemWrite struct {
	Addr  uint32
	Value uint8
}

func (*MemWrite) Kind() Kind { return KindMemWrite }

// KeyEvent records a key press (Action != 0) or release (Action == 0).
type KeyEvent struct {
	Action uint8
	Key    uint8
	Clock  uint32
	PC     uint16
}

func (*KeyEvent) Kind() Kind { return KindKeyEvent }

// Pressed reports whether the event is a key press.
func (k *KeyEvent) Pressed() bool { return k.Action != 0 }

// FormatError reports a malformed trace file: short header, short
// snapshot, a truncated record payload, or an unrecognized tag in
// strict mode. Offset is the file offset of the offending byte.
type FormatError struct {
	Offset int64
	Tag    Kind
	Msg    string
}

func (e *FormatError) Error() string {
	if e.Tag != 0 {
		return fmt.Sprintf("trace: %s (tag %d at offset %d)", e.Msg, uint8(e.Tag), e.Offset)
	}
	return fmt.Sprintf("trace: %s (at offset %d)", e.Msg, e.Offset)
}

func decodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, &FormatError{Offset: 0, Msg: "short header"}
	}
	if buf[0] != Magic[0] || buf[1] != Magic[1] || buf[2] != Magic[2] || buf[3] != Magic[3] {
		return Header{}, &FormatError{Offset: 0, Msg: fmt.Sprintf("bad magic %q", buf[:4])}
	}
	return Header{
		Version:    binary.LittleEndian.Uint16(buf[4:]),
		Flags:      binary.LittleEndian.Uint16(buf[6:]),
		RangeStart: binary.LittleEndian.Uint32(buf[8:]),
		RangeEnd:   binary.LittleEndian.Uint32(buf[12:]),
		InitSize:   binary.LittleEndian.Uint32(buf[16:]),
	}, nil
}

func appendHeader(buf []byte, h Header) []byte {
	buf = append(buf, Magic[:]...)
	buf = binary.LittleEndian.AppendUint16(buf, h.Version)
	buf = binary.LittleEndian.AppendUint16(buf, h.Flags)
	buf = binary.LittleEndian.AppendUint32(buf, h.RangeStart)
	buf = binary.LittleEndian.AppendUint32(buf, h.RangeEnd)
	buf = binary.LittleEndian.AppendUint32(buf, h.InitSize)
	return buf
}

func decodeInstruction(buf []byte) *Instruction {
	ins := &Instruction{
		PC:     binary.LittleEndian.Uint32(buf[0:]),
		Opcode: binary.LittleEndian.Uint32(buf[4:]),
		Clock:  binary.LittleEndian.Uint32(buf[8:]),
	}
	regs := []*uint16{
		&ins.AF, &ins.BC, &ins.DE, &ins.HL,
		&ins.IX, &ins.IY, &ins.SP, &ins.PCAfter,
		&ins.IR, &ins.WZ, &ins.WZ2,
		&ins.AF2, &ins.BC2, &ins.DE2, &ins.HL2,
	}
	off := 12
	for _, r := range regs {
		*r = binary.LittleEndian.Uint16(buf[off:])
		off += 2
	}
	ins.IFF1 = buf[off]
	ins.IFF2 = buf[off+1]
	ins.IM = buf[off+2]
	ins.R7 = buf[off+3]
	ins.Halted = buf[off+4]
	return ins
}

func appendInstruction(buf []byte, ins *Instruction) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, ins.PC)
	buf = binary.LittleEndian.AppendUint32(buf, ins.Opcode)
	buf = binary.LittleEndian.AppendUint32(buf, ins.Clock)
	for _, r := range []uint16{
		ins.AF, ins.BC, ins.DE, ins.HL,
		ins.IX, ins.IY, ins.SP, ins.PCAfter,
		ins.IR, ins.WZ, ins.WZ2,
		ins.AF2, ins.BC2, ins.DE2, ins.HL2,
	} {
		buf = binary.LittleEndian.AppendUint16(buf, r)
	}
	return append(buf, ins.IFF1, ins.IFF2, ins.IM, ins.R7, ins.Halted)
}

func decodeMemWrite(buf []byte) *MemWrite {
	return &MemWrite{
		Addr:  binary.LittleEndian.Uint32(buf[0:]),
		Value: buf[4],
	}
}

func appendMemWrite(buf []byte, w *MemWrite) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, w.Addr)
	return append(buf, w.Value)
}

func decodeKeyEvent(buf []byte) *KeyEvent {
	return &KeyEvent{
		Action: buf[0],
		Key:    buf[1],
		Clock:  binary.LittleEndian.Uint32(buf[2:]),
		PC:     binary.LittleEndian.Uint16(buf[6:]),
	}
}

func appendKeyEvent(buf []byte, k *KeyEvent) []byte {
	buf = append(buf, k.Action, k.Key)
	buf = binary.LittleEndian.AppendUint32(buf, k.Clock)
	return binary.LittleEndian.AppendUint16(buf, k.PC)
}

func payloadSize(k Kind) (int, bool) {
	switch k {
	case KindInstruction:
		return InstructionSize, true
	case KindMemWrite:
		return MemWriteSize, true
	case KindKeyEvent:
		return KeyEventSize, true
	default:
		return 0, false
	}
}
