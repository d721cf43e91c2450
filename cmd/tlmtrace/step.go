package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
	"github.com/urfave/cli/v2"

	"github.com/willibrandon/tlmtrace/pkg/trace"
)

var stepCommand = &cli.Command{
	Name:      "step",
	Usage:     "step through instruction records interactively",
	ArgsUsage: "TRACE",
	Action: func(c *cli.Context) error {
		if !isatty.IsTerminal(os.Stdin.Fd()) {
			return errors.New("step requires an interactive terminal")
		}

		s, err := newSession(c)
		if err != nil {
			return err
		}
		r, err := s.reader()
		if err != nil {
			return err
		}

		line := liner.NewLiner()
		defer line.Close()
		line.SetCtrlCAborts(true)

		index := 0
		for {
			rec, err := r.Next()
			if err == io.EOF {
				fmt.Println("end of trace")
				return nil
			}
			if err != nil {
				return err
			}
			ins, ok := rec.(*trace.Instruction)
			if !ok {
				continue
			}

			fmt.Printf("%8d %s\n", index, formatInstr(ins, s.labels))
			index++

			input, err := line.Prompt("step> ")
			if err == liner.ErrPromptAborted || err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			switch strings.ToLower(strings.TrimSpace(input)) {
			case "q", "quit", "exit":
				return nil
			}
		}
	},
}
