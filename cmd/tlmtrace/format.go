package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/willibrandon/tlmtrace/pkg/flow"
	"github.com/willibrandon/tlmtrace/pkg/forth"
	"github.com/willibrandon/tlmtrace/pkg/symbols"
	"github.com/willibrandon/tlmtrace/pkg/trace"
)

var (
	callColor      = color.New(color.FgGreen)
	returnColor    = color.New(color.FgCyan)
	asyncColor     = color.New(color.FgMagenta)
	warnColor      = color.New(color.FgYellow)
	underflowColor = color.New(color.FgRed, color.Bold)
)

// annotate renders addr as "name+0xoff" when the label map knows it.
func annotate(tbl *symbols.Table, addr uint32) string {
	if tbl == nil {
		return ""
	}
	r, ok := tbl.Lookup(addr)
	if !ok {
		return ""
	}
	if off := r.Offset(addr); off != 0 {
		return fmt.Sprintf(" %s+0x%x", r.Name, off)
	}
	return " " + r.Name
}

func formatInstr(ins *trace.Instruction, tbl *symbols.Table) string {
	return fmt.Sprintf(
		"PC=0x%04x OP=0x%08x CLK=%d "+
			"AF=0x%04x BC=0x%04x DE=0x%04x HL=0x%04x "+
			"IX=0x%04x IY=0x%04x SP=0x%04x PC'=0x%04x "+
			"IR=0x%04x WZ=0x%04x WZ2=0x%04x "+
			"AF2=0x%04x BC2=0x%04x DE2=0x%04x HL2=0x%04x "+
			"IFF1=%d IFF2=%d IM=%d R7=%d HALT=%d%s",
		ins.PC, ins.Opcode, ins.Clock,
		ins.AF, ins.BC, ins.DE, ins.HL,
		ins.IX, ins.IY, ins.SP, ins.PCAfter,
		ins.IR, ins.WZ, ins.WZ2,
		ins.AF2, ins.BC2, ins.DE2, ins.HL2,
		ins.IFF1, ins.IFF2, ins.IM, ins.R7, ins.Halted,
		annotate(tbl, ins.PC&0xFFFF))
}

func formatFlowEvent(e flow.Event, tbl *symbols.Table) string {
	var b strings.Builder

	kind := e.Kind.String()
	switch e.Kind {
	case flow.EventCall:
		kind = callColor.Sprint(kind)
	case flow.EventReturn:
		kind = returnColor.Sprint(kind)
	case flow.EventAsync:
		kind = asyncColor.Sprint(kind)
	case flow.EventReturnUnderflow:
		kind = underflowColor.Sprint(kind)
	}

	fmt.Fprintf(&b, "%8d %-16s 0x%04x -> 0x%04x%s",
		e.Index, kind, e.From, e.To, annotate(tbl, e.To))

	switch e.Kind {
	case flow.EventCall, flow.EventAsync:
		fmt.Fprintf(&b, " ret=0x%04x", e.Expected)
	case flow.EventReturn:
		fmt.Fprintf(&b, " exp=0x%04x", e.Expected)
	}
	fmt.Fprintf(&b, " depth=%d", e.Depth)

	if !e.Taken {
		fmt.Fprintf(&b, " %s", warnColor.Sprint("untaken"))
	}
	if e.Mismatch {
		fmt.Fprintf(&b, " %s", warnColor.Sprint("MISMATCH"))
	}
	return b.String()
}

func formatWordEvent(e forth.WordEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%8d %s%-12s SP=0x%04x ", e.Index, strings.Repeat("  ", e.Depth), e.Name, e.SP)
	for i, c := range e.Cells {
		if i > 0 {
			b.WriteByte(' ')
		}
		if c.Known {
			fmt.Fprintf(&b, "0x%04x", c.Value)
		} else {
			b.WriteString("??????")
		}
	}
	return b.String()
}

func formatUnderflow(u *forth.Underflow) string {
	kind := "data-stack underflow"
	if u.Empty {
		kind = "data-stack empty"
	}
	stack := "(none)"
	if len(u.CallStack) > 0 {
		stack = strings.Join(u.CallStack, " > ")
	}
	return underflowColor.Sprintf("%s at instruction %d:", kind, u.Index) +
		fmt.Sprintf(" SP=0x%04x base=0x%04x last=%s\n  call stack: %s",
			u.SP, u.Base, u.LastWord, stack)
}
