package fingerprint

import (
	"encoding/binary"
	"hash"
)

// Hasher is a streaming fingerprint accumulator. It implements hash.Hash32
// so it can sit behind io.Copy or io.MultiWriter.
type Hasher struct {
	crc uint32
}

// New returns a Hasher ready for writing.
func New() *Hasher {
	return &Hasher{crc: 0xFFFFFFFF}
}

// Write never returns an error.
func (h *Hasher) Write(p []byte) (int, error) {
	h.crc = update(h.crc, p)
	return len(p), nil
}

// Sum32 returns the fingerprint of the bytes written so far.
func (h *Hasher) Sum32() uint32 { return ^h.crc }

// Sum appends the big-endian fingerprint to b.
func (h *Hasher) Sum(b []byte) []byte {
	return binary.BigEndian.AppendUint32(b, h.Sum32())
}

// Reset restores the initial accumulator.
func (h *Hasher) Reset() { h.crc = 0xFFFFFFFF }

// Size returns 4.
func (h *Hasher) Size() int { return 4 }

// BlockSize returns 1.
func (h *Hasher) BlockSize() int { return 1 }

var _ hash.Hash32 = (*Hasher)(nil)
