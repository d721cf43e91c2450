// tlmtrace decodes TilEm execution traces: raw instruction listings,
// reconstructed RAM images, inferred call/return structure, and Forth
// word traces.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"

	"github.com/willibrandon/tlmtrace/pkg/version"
)

func main() {
	color.NoColor = !isatty.IsTerminal(os.Stdout.Fd())

	app := &cli.App{
		Name:    "tlmtrace",
		Usage:   "decode and analyze TilEm execution traces",
		Version: version.GetVersionInfo(),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "YAML run configuration `FILE`"},
			&cli.StringFlag{Name: "labels", Usage: "label map JSON `FILE` for symbol annotation"},
			&cli.StringFlag{Name: "rom", Usage: "read-only overlay image `FILE` (addressed from zero)"},
			&cli.BoolFlag{Name: "resync", Usage: "skip unrecognized tag bytes instead of aborting"},
		},
		Commands: []*cli.Command{
			infoCommand,
			printCommand,
			keysCommand,
			dumpRAMCommand,
			callsCommand,
			forthCommand,
			stepCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.SetFlags(0)
		log.Fatalf("tlmtrace: %v", err)
	}
}

var infoCommand = &cli.Command{
	Name:      "info",
	Usage:     "print the trace header summary",
	ArgsUsage: "TRACE",
	Action: func(c *cli.Context) error {
		s, err := newSession(c)
		if err != nil {
			return err
		}
		r, err := s.reader()
		if err != nil {
			return err
		}
		h := r.Header()
		fmt.Printf("version=%d range=0x%04x-0x%04x init_size=%d flags=0x%04x\n",
			h.Version, h.RangeStart, h.RangeEnd, h.InitSize, h.Flags)
		return nil
	},
}
