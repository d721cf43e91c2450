package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/willibrandon/tlmtrace/pkg/config"
	"github.com/willibrandon/tlmtrace/pkg/memory"
	"github.com/willibrandon/tlmtrace/pkg/symbols"
	"github.com/willibrandon/tlmtrace/pkg/trace"
)

// session bundles everything a command needs: the run configuration,
// the fully loaded (and decompressed) trace bytes, and the optional
// label map and ROM overlay. Holding the raw bytes in memory is what
// lets Forth mode re-read the stream for its second pass.
type session struct {
	cfg    config.Config
	data   []byte
	labels *symbols.Table
	rom    []byte
}

func newSession(c *cli.Context) (*session, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	if c.Bool("resync") {
		cfg.Resync = true
	}
	if v := c.String("labels"); v != "" {
		cfg.Labels = v
	}
	if v := c.String("rom"); v != "" {
		cfg.ROM = v
	}

	path := c.Args().First()
	if path == "" {
		return nil, errors.New("trace file argument required")
	}
	data, err := trace.Load(path)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, data: data}
	if cfg.Labels != "" {
		if s.labels, err = symbols.LoadJSON(cfg.Labels); err != nil {
			return nil, err
		}
	}
	if cfg.ROM != "" {
		if s.rom, err = os.ReadFile(cfg.ROM); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// reader starts a fresh pass over the trace bytes.
func (s *session) reader() (*trace.Reader, error) {
	return trace.NewReaderWithOptions(bytes.NewReader(s.data), trace.ReaderOptions{Resync: s.cfg.Resync})
}

// image builds a memory image seeded from the reader's snapshot, with
// the ROM overlay attached when configured.
func (s *session) image(r *trace.Reader) (*memory.Image, error) {
	h := r.Header()
	img, err := memory.NewImage(h.RangeStart, h.RangeEnd, r.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("seed memory image: %w", err)
	}
	if s.rom != nil {
		img.SetOverlay(s.rom)
	}
	return img, nil
}
