package trace

import (
	"bytes"
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"
)

// zstd frame magic, little-endian 0xFD2FB528.
var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// decoder is reusable and safe for concurrent use.
var zstdDecoder, _ = zstd.NewReader(nil)

// Load reads a whole trace file into memory, transparently decompressing
// it when it is zstd-framed. The returned buffer is the seekable,
// re-readable source that two-pass analysis needs; wrap it in a
// bytes.Reader per pass.
func Load(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if bytes.HasPrefix(data, zstdMagic) {
		data, err = zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("trace: decompress %s: %w", path, err)
		}
	}
	return data, nil
}

// Compress zstd-compresses an encoded trace, for storing fixture traces
// the same way long captures are stored.
func Compress(data []byte) []byte {
	enc, _ := zstd.NewWriter(nil)
	defer enc.Close()
	return enc.EncodeAll(data, make([]byte, 0, len(data)/2))
}
