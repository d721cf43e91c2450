// Package memory reconstructs the traced machine's RAM from the initial
// header snapshot plus the ordered stream of memory-write records.
package memory

import "fmt"

// Image is a byte-addressable memory image over the writable range
// [start, end] (inclusive), optionally backed by a read-only overlay for
// addresses the range does not cover. Its state is a pure function of
// the snapshot and the ordered writes applied to it, which is what makes
// re-seeding for a second replay pass safe.
type Image struct {
	start, end uint32
	data       []byte
	overlay    []byte // read-only, addressed from zero
}

// NewImage creates an image over [start, end] seeded from the snapshot.
// The snapshot must cover the range exactly.
func NewImage(start, end uint32, snapshot []byte) (*Image, error) {
	if end < start {
		return nil, fmt.Errorf("memory: invalid range 0x%x-0x%x", start, end)
	}
	size := uint64(end-start) + 1
	if uint64(len(snapshot)) != size {
		return nil, fmt.Errorf("memory: snapshot length %d does not cover range 0x%x-0x%x", len(snapshot), start, end)
	}
	m := &Image{start: start, end: end, data: make([]byte, size)}
	copy(m.data, snapshot)
	return m, nil
}

// SetOverlay supplies a read-only image (typically a ROM dump) addressed
// from zero, consulted for reads the writable range does not cover.
func (m *Image) SetOverlay(rom []byte) { m.overlay = rom }

// Reset re-seeds the image from a snapshot, discarding all applied
// writes. Used before the second pass of a two-pass replay.
func (m *Image) Reset(snapshot []byte) error {
	if len(snapshot) != len(m.data) {
		return fmt.Errorf("memory: snapshot length %d does not match image size %d", len(snapshot), len(m.data))
	}
	copy(m.data, snapshot)
	return nil
}

// Write stores one byte. Writes outside the writable range are silently
// ignored; they are addresses the emulator traced but this image does
// not model, such as memory-mapped I/O.
func (m *Image) Write(addr uint32, value byte) {
	if addr < m.start || addr > m.end {
		return
	}
	m.data[addr-m.start] = value
}

// Byte reads one byte. The second result is false when the address is
// neither in the writable range nor covered by the overlay.
func (m *Image) Byte(addr uint32) (byte, bool) {
	if addr >= m.start && addr <= m.end {
		return m.data[addr-m.start], true
	}
	if m.overlay != nil && uint64(addr) < uint64(len(m.overlay)) {
		return m.overlay[addr], true
	}
	return 0, false
}

// Word reads a 16-bit little-endian value from two consecutive bytes.
// It is unavailable if either byte is unavailable.
func (m *Image) Word(addr uint32) (uint16, bool) {
	lo, ok := m.Byte(addr)
	if !ok {
		return 0, false
	}
	hi, ok := m.Byte(addr + 1)
	if !ok {
		return 0, false
	}
	return uint16(lo) | uint16(hi)<<8, true
}

// Range returns the writable range bounds.
func (m *Image) Range() (start, end uint32) { return m.start, m.end }

// Bytes returns the reconstructed writable range as a flat buffer, for
// dumping. The caller must not retain it across further writes.
func (m *Image) Bytes() []byte { return m.data }
