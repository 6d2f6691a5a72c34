// Package rngsrc wires the card's RNG collaborator to a pooled ChaCha20 CSPRNG instead of a bare
// crypto/rand.Read call, the way the retrieved example pack's nanoid
// family sources its randomness.
package rngsrc

import (
	"encoding/binary"
	"io"

	"github.com/sixafter/prng-chacha"
)

// ChaCha is a collab.RNG backed by prng-chacha's pooled io.Reader.
type ChaCha struct {
	reader io.Reader
}

// New returns a ChaCha RNG reading from the package-level pooled reader.
func New() *ChaCha {
	return &ChaCha{reader: prng.Reader}
}

// NewFromReader lets tests substitute a deterministic source.
func NewFromReader(r io.Reader) *ChaCha {
	return &ChaCha{reader: r}
}

func (c *ChaCha) Bytes16() [16]byte {
	var b [16]byte
	if _, err := io.ReadFull(c.reader, b[:]); err != nil {
		panic(err)
	}
	return b
}

func (c *ChaCha) Uint32() uint32 {
	var b [4]byte
	if _, err := io.ReadFull(c.reader, b[:]); err != nil {
		panic(err)
	}
	return binary.LittleEndian.Uint32(b[:])
}
