package trace

import (
	"bufio"
	"io"
)

// ReaderOptions contains options for creating a trace reader.
type ReaderOptions struct {
	// Resync makes the reader treat unrecognized tag bytes as noise,
	// scanning forward one byte at a time until a known tag is found.
	// Traces captured from a wrapping ring buffer can carry a partial
	// record at the wrap boundary; resync skips over it instead of
	// aborting. Truncated payloads of recognized tags remain fatal.
	Resync bool
}

// Reader decodes a trace byte stream into a lazy, forward-only sequence
// of records. The header and the initial snapshot are read eagerly at
// construction; records are decoded one at a time by Next.
type Reader struct {
	br       *bufio.Reader
	header   Header
	snapshot []byte
	resync   bool
	off      int64
	skipped  int64
}

// NewReader creates a strict reader: any unrecognized tag byte is a
// FormatError.
func NewReader(r io.Reader) (*Reader, error) {
	return NewReaderWithOptions(r, ReaderOptions{})
}

// NewReaderWithOptions creates a reader with the given options. It
// decodes the header and reads the full initial snapshot before
// returning; a short header, bad magic or short snapshot is a
// FormatError.
func NewReaderWithOptions(r io.Reader, options ReaderOptions) (*Reader, error) {
	tr := &Reader{
		br:     bufio.NewReader(r),
		resync: options.Resync,
	}

	buf := make([]byte, HeaderSize)
	n, err := io.ReadFull(tr.br, buf)
	tr.off += int64(n)
	if err != nil {
		return nil, &FormatError{Offset: tr.off, Msg: "short header"}
	}
	tr.header, err = decodeHeader(buf)
	if err != nil {
		return nil, err
	}

	tr.snapshot = make([]byte, tr.header.InitSize)
	n, err = io.ReadFull(tr.br, tr.snapshot)
	tr.off += int64(n)
	if err != nil {
		return nil, &FormatError{Offset: tr.off, Msg: "short initial snapshot"}
	}
	return tr, nil
}

// Header returns the decoded file header.
func (r *Reader) Header() Header { return r.header }

// Snapshot returns the initial memory snapshot. The returned slice is
// owned by the reader; callers that mutate memory state must copy it.
func (r *Reader) Snapshot() []byte { return r.snapshot }

// Skipped returns the number of noise bytes consumed by resynchronization.
func (r *Reader) Skipped() int64 { return r.skipped }

// Offset returns the current byte offset into the stream.
func (r *Reader) Offset() int64 { return r.off }

// Next decodes the next record. It returns io.EOF once the stream is
// cleanly exhausted; a stream ending inside a record payload is a
// FormatError. In resync mode unrecognized tags are skipped silently.
func (r *Reader) Next() (Record, error) {
	for {
		tag, err := r.br.ReadByte()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, err
		}
		tagOff := r.off
		r.off++

		kind := Kind(tag)
		size, ok := payloadSize(kind)
		if !ok {
			if r.resync {
				r.skipped++
				continue
			}
			return nil, &FormatError{Offset: tagOff, Tag: kind, Msg: "unrecognized record tag"}
		}

		buf := make([]byte, size)
		n, err := io.ReadFull(r.br, buf)
		r.off += int64(n)
		if err != nil {
			return nil, &FormatError{Offset: tagOff, Tag: kind, Msg: "short record payload"}
		}

		switch kind {
		case KindInstruction:
			return decodeInstruction(buf), nil
		case KindMemWrite:
			return decodeMemWrite(buf), nil
		default:
			return decodeKeyEvent(buf), nil
		}
	}
}
