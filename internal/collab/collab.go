// Package collab declares the narrow interfaces the card engine consumes
// from its external collaborators: the hash, cipher, RNG and
// modulus-calculation primitives that stay out of the core's scope. Default
// implementations here are stdlib-backed where the primitive itself is
// delegated (SHA-1, AES-128-CFB128); anything with a real ecosystem
// alternative is wired instead (the RNG, in internal/rngsrc).
package collab

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1" //nolint:gosec // collaborator primitive named explicitly as delegated
)

// Hasher computes the digest used to derive a keystring from a passphrase.
type Hasher interface {
	Sum20(msg []byte) [20]byte
}

// Cipher implements the single symmetric primitive the envelope protocol
// needs: AES-128-CFB128 with an explicit, always-zero IV, used both to
// encrypt/decrypt whole key buffers and to wrap/unwrap 16-byte DEKs.
type Cipher interface {
	Encrypt(key [16]byte, plaintext []byte) []byte
	Decrypt(key [16]byte, ciphertext []byte) []byte
}

// RNG supplies fresh randomness for DEKs and the kd.random salt.
type RNG interface {
	Bytes16() [16]byte
	Uint32() uint32
}

// ModulusCalculator derives the public modulus from imported private key
// material; the concrete RSA arithmetic is explicitly out of scope
// and lives behind this interface.
type ModulusCalculator interface {
	Modulus(keyData []byte) ([256]byte, error)
}

// SHA1Hasher is the stdlib-backed default Hasher. SHA-1 is an out-of-scope
// collaborator primitive, so stdlib is the right home for it: there is no
// ecosystem "keystring hash" package to reach for instead.
type SHA1Hasher struct{}

func (SHA1Hasher) Sum20(msg []byte) [20]byte {
	return sha1.Sum(msg)
}

// AESCFB128Cipher is the stdlib-backed default Cipher, matching the
// fixed all-zero IV exactly (see DESIGN.md for why this is stdlib rather
// than an ecosystem crypto package).
type AESCFB128Cipher struct{}

func (AESCFB128Cipher) Encrypt(key [16]byte, plaintext []byte) []byte {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		panic(err) // key is always 16 bytes; NewCipher cannot fail here
	}
	var iv [aes.BlockSize]byte
	out := make([]byte, len(plaintext))
	cipher.NewCFBEncrypter(block, iv[:]).XORKeyStream(out, plaintext)
	return out
}

func (AESCFB128Cipher) Decrypt(key [16]byte, ciphertext []byte) []byte {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		panic(err)
	}
	var iv [aes.BlockSize]byte
	out := make([]byte, len(ciphertext))
	cipher.NewCFBDecrypter(block, iv[:]).XORKeyStream(out, ciphertext)
	return out
}
