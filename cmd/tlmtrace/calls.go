package main

import (
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/willibrandon/tlmtrace/pkg/config"
	"github.com/willibrandon/tlmtrace/pkg/flow"
	"github.com/willibrandon/tlmtrace/pkg/trace"
)

var callsCommand = &cli.Command{
	Name:      "calls",
	Usage:     "print the inferred call/return/jump structure",
	ArgsUsage: "TRACE",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "include-untaken", Usage: "also report untaken conditional transfers"},
		&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "suppress the event stream, report only stops"},
		&cli.BoolFlag{Name: "stop-on-underflow", Usage: "halt on return-stack underflow and dump context"},
		&cli.BoolFlag{Name: "stop-below-sp", Usage: "halt when SP drops below the threshold"},
		&cli.StringFlag{Name: "sp-threshold", Usage: "SP threshold `ADDR` (number or label)"},
		&cli.IntFlag{Name: "window", Usage: "diagnostic window size in events"},
	},
	Action: func(c *cli.Context) error {
		s, err := newSession(c)
		if err != nil {
			return err
		}
		r, err := s.reader()
		if err != nil {
			return err
		}

		stop := s.cfg.Stop
		if v := c.String("sp-threshold"); v != "" {
			stop.SPThreshold = config.Address(v)
		}
		if v := c.Int("window"); v > 0 {
			stop.Window = v
		}

		cfg := flow.Config{
			IncludeUntaken:  c.Bool("include-untaken"),
			StopOnUnderflow: c.Bool("stop-on-underflow"),
			StopBelowSP:     c.Bool("stop-below-sp"),
			Window:          stop.Window,
		}
		if cfg.StopBelowSP {
			threshold, err := stop.SPThreshold.Resolve("stop.sp_threshold", s.labels)
			if err != nil {
				return err
			}
			cfg.SPThreshold = uint16(threshold)
		}

		quiet := c.Bool("quiet")
		var sink func(flow.Event)
		if !quiet {
			sink = func(e flow.Event) {
				fmt.Println(formatFlowEvent(e, s.labels))
			}
		}
		tracker := flow.New(cfg, sink)

		for {
			rec, err := r.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
			ins, ok := rec.(*trace.Instruction)
			if !ok {
				continue
			}
			if tracker.Step(ins) {
				dumpStop(tracker, ins, s)
				return nil
			}
		}

		fmt.Printf("end of trace: depth=%d", tracker.Depth())
		if n := r.Skipped(); n > 0 {
			fmt.Printf(" (resync skipped %d bytes)", n)
		}
		fmt.Println()
		return nil
	},
}

// dumpStop reports why the tracker halted and flushes the diagnostic
// window for context.
func dumpStop(tracker *flow.Tracker, ins *trace.Instruction, s *session) {
	switch tracker.Stop() {
	case flow.StopReturnUnderflow:
		fmt.Println(underflowColor.Sprint("return-stack underflow, stopping:"))
	case flow.StopSPThreshold:
		fmt.Println(underflowColor.Sprintf("SP below threshold (SP=0x%04x), stopping:", ins.SP))
	}
	for _, e := range tracker.Window() {
		fmt.Println("  " + formatFlowEvent(e, s.labels))
	}
	fmt.Println("  " + formatInstr(ins, s.labels))
}
