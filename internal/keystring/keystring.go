// Package keystring implements the password-derived keystrings (C3): one
// per PIN role, each a length byte plus the SHA-1 digest of the passphrase.
package keystring

import (
	"github.com/gnuk-go/cardengine/internal/collab"
)

// Role identifies which PIN a keystring belongs to.
type Role int

const (
	RolePW1 Role = iota // user PIN
	RoleRC              // reset code
	RolePW3             // admin PIN
)

// Size is the on-the-wire length of a keystring: 1 length byte + 20 SHA-1
// bytes.
const Size = 21

// Keystring is the 21-byte record.
type Keystring struct {
	Length byte // original passphrase length, 0-127
	Hash   [20]byte
}

// Derive computes the keystring for a passphrase.
func Derive(hasher collab.Hasher, passphrase []byte) Keystring {
	return Keystring{Length: byte(len(passphrase)), Hash: hasher.Sum20(passphrase)}
}

// Bytes renders the 21-byte wire form.
func (k Keystring) Bytes() [Size]byte {
	var out [Size]byte
	out[0] = k.Length
	copy(out[1:], k.Hash[:])
	return out
}

// FromBytes parses a 21-byte keystring record.
func FromBytes(b [Size]byte) Keystring {
	var k Keystring
	k.Length = b[0]
	copy(k.Hash[:], b[1:])
	return k
}

// Key returns the 16-byte AES key derived from this keystring: the first
// 16 bytes of the SHA-1 digest, matching the original firmware's use of
// the keystring directly as an AES-128 key material source.
func (k Keystring) Key() [16]byte {
	var out [16]byte
	copy(out[:], k.Hash[:16])
	return out
}
