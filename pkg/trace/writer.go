package trace

import (
	"fmt"
	"io"
)

// Writer encodes a trace stream byte-identical to the emulator's own
// writer. It exists for building fixture traces and for round-trip
// verification of the codec; live capture is the emulator's job.
type Writer struct {
	w   io.Writer
	buf []byte
}

// NewWriter creates a writer on top of w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteHeader writes the fixed header followed by the initial snapshot.
// The snapshot length must equal h.InitSize.
func (w *Writer) WriteHeader(h Header, snapshot []byte) error {
	if uint32(len(snapshot)) != h.InitSize {
		return fmt.Errorf("trace: snapshot length %d does not match init_size %d", len(snapshot), h.InitSize)
	}
	w.buf = appendHeader(w.buf[:0], h)
	w.buf = append(w.buf, snapshot...)
	_, err := w.w.Write(w.buf)
	return err
}

// WriteRecord writes one tagged record.
func (w *Writer) WriteRecord(rec Record) error {
	w.buf = append(w.buf[:0], byte(rec.Kind()))
	switch r := rec.(type) {
	case *Instruction:
		w.buf = appendInstruction(w.buf, r)
	case *MemWrite:
		w.buf = appendMemWrite(w.buf, r)
	case *KeyEvent:
		w.buf = appendKeyEvent(w.buf, r)
	default:
		return fmt.Errorf("trace: unknown record type %T", rec)
	}
	_, err := w.w.Write(w.buf)
	return err
}
