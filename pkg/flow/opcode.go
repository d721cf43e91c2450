// Package flow reconstructs call/return structure from a trace's
// instruction records. Nothing is executed; every inference comes from
// the recorded opcode bytes and the post-execution register state.
package flow

import "fmt"

// TransferKind classifies a control-transfer opcode.
type TransferKind int

const (
	TransferCall TransferKind = iota
	TransferReturn
	TransferJump         // absolute, 16-bit operand
	TransferJumpRelative // signed 8-bit displacement
	TransferJumpIndirect // through HL/IX/IY
	TransferDecJump      // DJNZ
	TransferRestart      // RST n
)

func (k TransferKind) String() string {
	switch k {
	case TransferCall:
		return "call"
	case TransferReturn:
		return "return"
	case TransferJump:
		return "jump"
	case TransferJumpRelative:
		return "jump-rel"
	case TransferJumpIndirect:
		return "jump-ind"
	case TransferDecJump:
		return "dec-jump"
	case TransferRestart:
		return "restart"
	default:
		return fmt.Sprintf("transfer(%d)", int(k))
	}
}

// Transfer describes one recognized control-transfer opcode: its kind,
// its encoded length in bytes, and whether it is conditional.
type Transfer struct {
	Kind        TransferKind
	Length      uint16
	Conditional bool
}

// base holds the unprefixed opcode table. Only control transfers appear;
// everything else classifies as "not a transfer".
var base [256]*Transfer

func init() {
	set := func(k TransferKind, length uint16, cond bool, ops ...byte) {
		for _, op := range ops {
			base[op] = &Transfer{Kind: k, Length: length, Conditional: cond}
		}
	}

	set(TransferCall, 3, false, 0xCD)
	set(TransferCall, 3, true, 0xC4, 0xCC, 0xD4, 0xDC, 0xE4, 0xEC, 0xF4, 0xFC)

	set(TransferReturn, 1, false, 0xC9)
	set(TransferReturn, 1, true, 0xC0, 0xC8, 0xD0, 0xD8, 0xE0, 0xE8, 0xF0, 0xF8)

	set(TransferJump, 3, false, 0xC3)
	set(TransferJump, 3, true, 0xC2, 0xCA, 0xD2, 0xDA, 0xE2, 0xEA, 0xF2, 0xFA)

	set(TransferJumpRelative, 2, false, 0x18)
	set(TransferJumpRelative, 2, true, 0x20, 0x28, 0x30, 0x38)

	set(TransferJumpIndirect, 1, false, 0xE9)
	set(TransferDecJump, 2, true, 0x10)

	set(TransferRestart, 1, false, 0xC7, 0xCF, 0xD7, 0xDF, 0xE7, 0xEF, 0xF7, 0xFF)
}

// Classify decodes the packed opcode word (first fetched byte in the low
// byte) and reports whether it is a control transfer. DD/FD index
// prefixes add one byte to the decoded length; CB-prefixed bit
// operations never branch; of the ED page only the RETN/RETI family is
// a transfer.
func Classify(opcode uint32) (Transfer, bool) {
	b0 := byte(opcode)
	switch b0 {
	case 0xCB:
		return Transfer{}, false
	case 0xDD, 0xFD:
		b1 := byte(opcode >> 8)
		if b1 == 0xCB {
			return Transfer{}, false
		}
		t := base[b1]
		if t == nil {
			return Transfer{}, false
		}
		out := *t
		out.Length++
		return out, true
	case 0xED:
		// 01xxx101: RETN, RETI and their undocumented clones.
		if b1 := byte(opcode >> 8); b1&0xC7 == 0x45 {
			return Transfer{Kind: TransferReturn, Length: 2}, true
		}
		return Transfer{}, false
	}
	t := base[b0]
	if t == nil {
		return Transfer{}, false
	}
	return *t, true
}
