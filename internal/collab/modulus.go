package collab

import (
	"crypto/sha256"
	"errors"
	"math/big"
)

// ErrInvalidKeyData is returned when the private-key payload handed to the
// modulus collaborator is the wrong size.
var ErrInvalidKeyData = errors.New("collab: key data must be 128 bytes")

// StubModulusCalculator stands in for modulus_calc: "RSA
// keygen / modulus computation" is named explicitly as an out-of-scope
// collaborator, delegated to a real bignum/RSA library in production
// firmware. There is no such library anywhere in the retrieved pack, so
// this default derives a stable 256-byte value from the key material with
// math/big rather than pulling in an RSA implementation the spec places
// outside the core's boundary. It keeps GET PUBLIC KEY/compact round-trips
// exercisable; it does not produce a cryptographically valid RSA modulus.
type StubModulusCalculator struct{}

func (StubModulusCalculator) Modulus(keyData []byte) ([256]byte, error) {
	if len(keyData) != 128 {
		return [256]byte{}, ErrInvalidKeyData
	}

	pSeed := sha256.Sum256(append([]byte("cardengine-modulus-p"), keyData[:64]...))
	qSeed := sha256.Sum256(append([]byte("cardengine-modulus-q"), keyData[64:]...))

	p := new(big.Int).SetBytes(pSeed[:])
	p.SetBit(p, 0, 1) // force odd, like an RSA prime factor
	q := new(big.Int).SetBytes(qSeed[:])
	q.SetBit(q, 0, 1)

	n := new(big.Int).Mul(p, q)
	n.Lsh(n, 8*(256-64)) // spread the 64-byte product across the full 2048-bit field

	var out [256]byte
	n.FillBytes(out[:])
	return out, nil
}
