// Package fingerprint computes the content checksum used for change detection.
//
// The checksum is a table-driven CRC32 over the reflected polynomial
// 0xEDB88320. It is deterministic and unkeyed; it detects changed content,
// it does not protect against tampering.
package fingerprint

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/pithecene-io/bundlesync/iox"
)

// Polynomial is the reflected CRC32 polynomial.
const Polynomial uint32 = 0xEDB88320

// ChunkSize is the read buffer size used by the streaming variants.
const ChunkSize = 4096

// table is built once at package init and only read afterwards.
var table = makeTable(Polynomial)

func makeTable(poly uint32) *[256]uint32 {
	var t [256]uint32
	for i := range uint32(256) {
		crc := i
		for range 8 {
			if crc&1 == 1 {
				crc = (crc >> 1) ^ poly
			} else {
				crc >>= 1
			}
		}
		t[i] = crc
	}
	return &t
}

func update(crc uint32, p []byte) uint32 {
	for _, b := range p {
		crc = (crc >> 8) ^ table[byte(crc)^b]
	}
	return crc
}

// Sum returns the fingerprint of data.
func Sum(data []byte) uint32 {
	return ^update(0xFFFFFFFF, data)
}

// SumReader returns the fingerprint of everything read from r.
// Input is consumed in ChunkSize pieces, so memory use does not grow with
// the input. The result equals Sum over the same bytes.
func SumReader(r io.Reader) (uint32, error) {
	h := New()
	buf := make([]byte, ChunkSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return 0, err
	}
	return h.Sum32(), nil
}

// SumFile returns the fingerprint and size of the file at path.
func SumFile(path string) (uint32, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("opening %s for fingerprint: %w", path, err)
	}
	defer iox.DiscardClose(f)

	h := New()
	n, err := io.CopyBuffer(h, f, make([]byte, ChunkSize))
	if err != nil {
		return 0, 0, fmt.Errorf("fingerprinting %s: %w", path, err)
	}
	return h.Sum32(), n, nil
}

// Format renders a fingerprint in the decimal text form stored in manifests.
func Format(sum uint32) string {
	return strconv.FormatUint(uint64(sum), 10)
}

// Parse reads the decimal text form back into a fingerprint.
func Parse(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parsing fingerprint %q: %w", s, err)
	}
	return uint32(v), nil
}

// String is Format(Sum(data)).
func String(data []byte) string {
	return Format(Sum(data))
}
