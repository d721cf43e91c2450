package main

import (
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/willibrandon/tlmtrace/pkg/config"
	"github.com/willibrandon/tlmtrace/pkg/forth"
	"github.com/willibrandon/tlmtrace/pkg/memory"
	"github.com/willibrandon/tlmtrace/pkg/trace"
)

var forthCommand = &cli.Command{
	Name:      "forth",
	Usage:     "trace Forth word execution against the resolved dictionary",
	ArgsUsage: "TRACE",
	Flags:     forthFlags,
	Subcommands: []*cli.Command{
		{
			Name:      "words",
			Usage:     "list the walked dictionary",
			ArgsUsage: "TRACE",
			Flags:     forthFlags,
			Action:    forthWordsAction,
		},
	},
	Action: forthTraceAction,
}

var forthFlags = []cli.Flag{
	&cli.StringFlag{Name: "latest", Usage: "dictionary root `ADDR` (number or label)"},
	&cli.StringFlag{Name: "stack-base", Usage: "data-stack base cell `ADDR` (number or label)"},
	&cli.StringFlag{Name: "drop", Usage: "underflow-checked primitive `WORD`"},
	&cli.StringFlag{Name: "exit", Usage: "return-to-caller `WORD`"},
	&cli.IntFlag{Name: "cells", Usage: "stack cells shown per trace line"},
	&cli.BoolFlag{Name: "no-check", Usage: "disable data-stack underflow detection"},
}

func forthConfig(c *cli.Context, s *session) config.Forth {
	fc := s.cfg.Forth
	if v := c.String("latest"); v != "" {
		fc.Latest = config.Address(v)
	}
	if v := c.String("stack-base"); v != "" {
		fc.StackBase = config.Address(v)
	}
	if v := c.String("drop"); v != "" {
		fc.Drop = v
	}
	if v := c.String("exit"); v != "" {
		fc.Exit = v
	}
	if v := c.Int("cells"); v > 0 {
		fc.Cells = v
	}
	return fc
}

// resolveDictionary runs the first pass: reconstruct memory over the
// whole trace, then walk the linked dictionary. It returns the image
// and the reader whose snapshot re-seeds the image for pass two.
func resolveDictionary(s *session, fc config.Forth) (*forth.Dictionary, *memory.Image, *trace.Reader, error) {
	latest, err := fc.Latest.Resolve("forth.latest", s.labels)
	if err != nil {
		return nil, nil, nil, err
	}

	r, err := s.reader()
	if err != nil {
		return nil, nil, nil, err
	}
	img, err := s.image(r)
	if err != nil {
		return nil, nil, nil, err
	}
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, nil, err
		}
		if w, ok := rec.(*trace.MemWrite); ok {
			img.Write(w.Addr, w.Value)
		}
	}

	dict := forth.Walk(img, uint16(latest), fc.MaxEntries)
	if dict.Len() == 0 {
		return nil, nil, nil, fmt.Errorf("no dictionary entries found at root 0x%04x", latest)
	}
	return dict, img, r, nil
}

func forthWordsAction(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	fc := forthConfig(c, s)

	dict, _, _, err := resolveDictionary(s, fc)
	if err != nil {
		return err
	}

	if docol, ok := dict.Docol(); ok {
		fmt.Printf("inferred DOCOL: 0x%04x\n", docol)
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"CFA", "Name", "Kind"})
	for _, w := range dict.Words() {
		kind := "primitive"
		if w.Colon {
			kind = "colon"
		}
		table.Append([]string{fmt.Sprintf("0x%04x", w.CFA), w.Name, kind})
	}
	table.Render()
	return nil
}

func forthTraceAction(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	fc := forthConfig(c, s)

	dict, img, r1, err := resolveDictionary(s, fc)
	if err != nil {
		return err
	}

	tcfg := forth.TracerConfig{Cells: fc.Cells}
	if w, ok := dict.FindByName(fc.Exit); ok {
		tcfg.ReturnCFA = w.CFA
	}
	if !c.Bool("no-check") {
		base, err := fc.StackBase.Resolve("forth.stack_base", s.labels)
		if err != nil {
			return err
		}
		w, ok := dict.FindByName(fc.Drop)
		if !ok {
			return fmt.Errorf("underflow-checked word %q not in dictionary", fc.Drop)
		}
		tcfg.StackBase = uint16(base)
		tcfg.CheckCFA = w.CFA
	}

	// Second pass: re-seed memory from the snapshot and replay the
	// stream, keeping memory in step with the instructions this time.
	if err := img.Reset(r1.Snapshot()); err != nil {
		return err
	}
	r2, err := s.reader()
	if err != nil {
		return err
	}

	tracer := forth.NewTracer(dict, img, tcfg, func(e forth.WordEvent) {
		fmt.Println(formatWordEvent(e))
	})

	for {
		rec, err := r2.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		switch rec := rec.(type) {
		case *trace.MemWrite:
			img.Write(rec.Addr, rec.Value)
		case *trace.Instruction:
			if tracer.Step(rec) {
				fmt.Println(formatUnderflow(tracer.Underflow()))
				return nil
			}
		}
	}
	return nil
}
