package trace

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func sampleInstruction() *Instruction {
	return &Instruction{
		PC:     0x9D95,
		Opcode: 0xCD,
		Clock:  1234,
		AF:     0x4400, BC: 0x0001, DE: 0x8000, HL: 0x1234,
		IX: 0x8478, IY: 0x89F0, SP: 0xFFDE, PCAfter: 0x0050,
		IR: 0x1A07, WZ: 0x0050, WZ2: 0xFFFF,
		AF2: 0x0044, BC2: 0x0100, DE2: 0x0080, HL2: 0x4321,
		IFF1: 1, IFF2: 1, IM: 1, R7: 0x80, Halted: 0,
	}
}

func encodeTrace(t *testing.T, h Header, snapshot []byte, recs ...Record) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteHeader(h, snapshot); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	for _, rec := range recs {
		if err := w.WriteRecord(rec); err != nil {
			t.Fatalf("WriteRecord: %v", err)
		}
	}
	return buf.Bytes()
}

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{Version: 1, Flags: 0x0002, RangeStart: 0x8000, RangeEnd: 0xFFFF, InitSize: 4}
	snapshot := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	data := encodeTrace(t, h, snapshot)

	r, err := NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if r.Header() != h {
		t.Errorf("header mismatch: got %+v, want %+v", r.Header(), h)
	}
	if !bytes.Equal(r.Snapshot(), snapshot) {
		t.Errorf("snapshot mismatch: got %x, want %x", r.Snapshot(), snapshot)
	}

	// Re-encoding the decoded fields must reproduce the original bytes.
	again := encodeTrace(t, r.Header(), r.Snapshot())
	if !bytes.Equal(again, data) {
		t.Errorf("re-encoded header differs from original bytes")
	}
}

func TestRecordRoundTrip(t *testing.T) {
	recs := []Record{
		sampleInstruction(),
		&MemWrite{Addr: 0x8001, Value: 0x42},
		&KeyEvent{Action: 1, Key: 9, Clock: 5678, PC: 0x9D95},
	}
	h := Header{Version: 1, RangeStart: 0x8000, RangeEnd: 0x8002, InitSize: 3}
	data := encodeTrace(t, h, []byte{0, 0, 0}, recs...)

	r, err := NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	var got []Record
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		got = append(got, rec)
	}
	if len(got) != len(recs) {
		t.Fatalf("expected %d records, got %d", len(recs), len(got))
	}

	ins := got[0].(*Instruction)
	if *ins != *recs[0].(*Instruction) {
		t.Errorf("instruction mismatch: got %+v, want %+v", ins, recs[0])
	}
	mw := got[1].(*MemWrite)
	if mw.Addr != 0x8001 || mw.Value != 0x42 {
		t.Errorf("mem write mismatch: got %+v", mw)
	}
	ke := got[2].(*KeyEvent)
	if ke.Action != 1 || ke.Key != 9 || ke.Clock != 5678 || ke.PC != 0x9D95 {
		t.Errorf("key event mismatch: got %+v", ke)
	}
	if !ke.Pressed() {
		t.Errorf("expected key event to be a press")
	}

	// Byte-level round trip.
	again := encodeTrace(t, h, []byte{0, 0, 0}, got...)
	if !bytes.Equal(again, data) {
		t.Errorf("re-encoded records differ from original bytes")
	}
}

func TestShortHeader(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte{'T', 'L', 'M'}))
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FormatError, got %v", err)
	}
}

func TestBadMagic(t *testing.T) {
	data := encodeTrace(t, Header{InitSize: 0}, nil)
	data[0] = 'X'
	_, err := NewReader(bytes.NewReader(data))
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FormatError, got %v", err)
	}
}

func TestShortSnapshot(t *testing.T) {
	data := encodeTrace(t, Header{InitSize: 8}, make([]byte, 8))
	_, err := NewReader(bytes.NewReader(data[:len(data)-3]))
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FormatError, got %v", err)
	}
}

func TestShortPayload(t *testing.T) {
	data := encodeTrace(t, Header{InitSize: 0}, nil, sampleInstruction())
	for _, resync := range []bool{false, true} {
		r, err := NewReaderWithOptions(bytes.NewReader(data[:len(data)-1]), ReaderOptions{Resync: resync})
		if err != nil {
			t.Fatalf("NewReader: %v", err)
		}
		_, err = r.Next()
		var fe *FormatError
		if !errors.As(err, &fe) {
			t.Fatalf("resync=%v: expected FormatError for truncated payload, got %v", resync, err)
		}
	}
}

func TestUnknownTagStrict(t *testing.T) {
	data := encodeTrace(t, Header{InitSize: 0}, nil, &MemWrite{Addr: 1, Value: 2})
	// Inject a garbage tag between header and record.
	data = append(append(append([]byte{}, data[:HeaderSize]...), 0xFF), data[HeaderSize:]...)

	r, err := NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	_, err = r.Next()
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FormatError for tag 0xFF, got %v", err)
	}
	if fe.Tag != Kind(0xFF) {
		t.Errorf("expected offending tag 0xFF in error, got %d", fe.Tag)
	}
}

func TestUnknownTagResync(t *testing.T) {
	data := encodeTrace(t, Header{InitSize: 0}, nil, &MemWrite{Addr: 1, Value: 2})
	data = append(append(append([]byte{}, data[:HeaderSize]...), 0xFF, 0x7E, 0x00), data[HeaderSize:]...)

	r, err := NewReaderWithOptions(bytes.NewReader(data), ReaderOptions{Resync: true})
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	rec, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	mw, ok := rec.(*MemWrite)
	if !ok || mw.Addr != 1 || mw.Value != 2 {
		t.Errorf("expected the valid record after the noise, got %+v", rec)
	}
	if r.Skipped() != 3 {
		t.Errorf("expected 3 skipped bytes, got %d", r.Skipped())
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestLoadCompressed(t *testing.T) {
	data := encodeTrace(t, Header{Version: 1, InitSize: 2}, []byte{1, 2}, &MemWrite{Addr: 3, Value: 4})

	dir := t.TempDir()
	plain := filepath.Join(dir, "plain.trace")
	packed := filepath.Join(dir, "packed.trace")
	if err := os.WriteFile(plain, data, 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(packed, Compress(data), 0644); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{plain, packed} {
		got, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%s): %v", path, err)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("Load(%s): bytes differ from original", path)
		}
	}
}
