package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/willibrandon/tlmtrace/pkg/trace"
)

var printCommand = &cli.Command{
	Name:      "print",
	Usage:     "print the first N instruction records",
	ArgsUsage: "TRACE",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "count", Aliases: []string{"n"}, Value: 10, Usage: "instructions to print (0 = all)"},
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

		count := c.Int("count")
		printed := 0
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
			fmt.Println(formatInstr(ins, s.labels))
			printed++
			if count > 0 && printed >= count {
				break
			}
		}
		return nil
	},
}

var keysCommand = &cli.Command{
	Name:      "keys",
	Usage:     "print key press/release events",
	ArgsUsage: "TRACE",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "stop-after", Usage: "stop after `N` key presses"},
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

		stopAfter := c.Int("stop-after")
		instrCount := 0
		presses := 0
		for {
			rec, err := r.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
			switch rec := rec.(type) {
			case *trace.Instruction:
				instrCount++
			case *trace.KeyEvent:
				state := "up"
				if rec.Pressed() {
					state = "down"
				}
				fmt.Printf("%8d KEY %s code=%d PC=0x%04x CLK=%d%s\n",
					instrCount, state, rec.Key, rec.PC, rec.Clock,
					annotate(s.labels, uint32(rec.PC)))
				if rec.Pressed() {
					presses++
					if stopAfter > 0 && presses >= stopAfter {
						fmt.Printf("stop-after-keys reached at %d presses (instr %d)\n", presses, instrCount)
						return nil
					}
				}
			}
		}
		return nil
	},
}

var dumpRAMCommand = &cli.Command{
	Name:      "dump-ram",
	Usage:     "write the reconstructed RAM image to a file",
	ArgsUsage: "TRACE",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "out", Required: true, Usage: "output `FILE`"},
		&cli.IntFlag{Name: "at", Value: -1, Usage: "instruction `INDEX` to dump at (default: end of trace)"},
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
		img, err := s.image(r)
		if err != nil {
			return err
		}

		out := c.String("out")
		at := c.Int("at")
		instrCount := 0
		for {
			rec, err := r.Next()
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
				if at >= 0 && instrCount == at {
					if err := os.WriteFile(out, img.Bytes(), 0644); err != nil {
						return err
					}
					fmt.Printf("wrote RAM dump at instruction %d -> %s\n", instrCount, out)
					return nil
				}
				instrCount++
			}
		}
		if at >= 0 {
			return errors.New("dump index beyond end of trace")
		}
		if err := os.WriteFile(out, img.Bytes(), 0644); err != nil {
			return err
		}
		fmt.Printf("wrote RAM dump at end -> %s\n", out)
		return nil
	},
}
