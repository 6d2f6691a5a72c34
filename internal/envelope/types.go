// Package envelope implements the private-key sealing protocol (C4): each
// key is encrypted under a random DEK, itself wrapped separately for the
// user PIN, reset code, and admin PIN unlock paths.
package envelope

import (
	"encoding/binary"

	"github.com/gnuk-go/cardengine/internal/nvram"
)

// Role identifies one of the three card key roles.
type Role int

const (
	RoleSigning Role = iota
	RoleDecryption
	RoleAuthentication
)

// WhoIndex is a role-copy index into a PrivateKeyRecord's DEK array: 0 =
// PW1 (user), 1 = RC (reset code), 2 = PW3 (admin).
type WhoIndex int

const (
	WhoUser  WhoIndex = 0
	WhoReset WhoIndex = 1
	WhoAdmin WhoIndex = 2
)

// KeyContentLen is the size of the raw private-key payload sealed inside
// kd.
const KeyContentLen = 128

// AdditionalDataSize is the size of the check+random+magic trailer that
// rides alongside the key content but is stored in the DO record's
// CRMEncrypted field rather than the key-slot arena.
const AdditionalDataSize = 4 + 4 + 8

// Magic is the fixed constant kd.magic must equal after a successful
// decrypt; this is the wrong-keystring detector.
var Magic = [8]byte{'G', 'n', 'u', 'k', 'M', 'a', 'g', 'c'}

// WorkingKey ("kd") is the plaintext working buffer, alive only for the
// duration of one seal/unseal/crypto operation.
type WorkingKey struct {
	Data   [KeyContentLen]byte
	Check  uint32
	Random uint32
	Magic  [8]byte
}

// Zero overwrites the working key with zero bytes; callers must invoke
// this after use.
func (k *WorkingKey) Zero() {
	*k = WorkingKey{}
}

// packedLen is the contiguous byte length of the encrypted kd buffer
// (data + check + random + magic), split on write into the key-slot
// arena's 128-byte region and the DO record's 16-byte CRMEncrypted field.
const packedLen = KeyContentLen + AdditionalDataSize

// Pack renders kd as one contiguous buffer in the same layout the
// original firmware encrypts in place, least-significant byte first for
// the two u32 fields.
func (k *WorkingKey) Pack() [packedLen]byte {
	var buf [packedLen]byte
	copy(buf[:KeyContentLen], k.Data[:])
	binary.LittleEndian.PutUint32(buf[KeyContentLen:], k.Check)
	binary.LittleEndian.PutUint32(buf[KeyContentLen+4:], k.Random)
	copy(buf[KeyContentLen+8:], k.Magic[:])
	return buf
}

// UnpackWorkingKey parses a contiguous kd buffer back into its fields.
func UnpackWorkingKey(buf [packedLen]byte) WorkingKey {
	var k WorkingKey
	copy(k.Data[:], buf[:KeyContentLen])
	k.Check = binary.LittleEndian.Uint32(buf[KeyContentLen:])
	k.Random = binary.LittleEndian.Uint32(buf[KeyContentLen+4:])
	copy(k.Magic[:], buf[KeyContentLen+8:])
	return k
}

// sum32LE computes the check value: the sum of the key content read as
// little-endian u32 words.
func sum32LE(data []byte) uint32 {
	var sum uint32
	for i := 0; i+4 <= len(data); i += 4 {
		sum += binary.LittleEndian.Uint32(data[i : i+4])
	}
	return sum
}

// recordPayloadLen is the on-the-wire length of a PrivateKeyRecord DO
// payload: a 4-byte key-slot pointer + 16-byte CRM trailer + three 16-byte
// DEK copies.
const recordPayloadLen = 4 + 16 + 16*3

// DeleteMarkerMaxLen is the length at or below which a Key Import payload
// is treated as a deletion request rather than new key material.
const DeleteMarkerMaxLen = 22

// PrivateKeyRecord is the per-role DO payload.
type PrivateKeyRecord struct {
	KeySlot      nvram.KeySlotRef
	CRMEncrypted [16]byte
	DEK          [3][16]byte // indexed by WhoIndex
}

// Encode renders the record as a DO payload.
func (r PrivateKeyRecord) Encode() []byte {
	buf := make([]byte, recordPayloadLen)
	binary.BigEndian.PutUint32(buf[0:4], uint32(r.KeySlot))
	copy(buf[4:20], r.CRMEncrypted[:])
	for i := 0; i < 3; i++ {
		copy(buf[20+i*16:20+(i+1)*16], r.DEK[i][:])
	}
	return buf
}

// DecodePrivateKeyRecord parses a DO payload back into a record.
func DecodePrivateKeyRecord(buf []byte) (PrivateKeyRecord, bool) {
	if len(buf) != recordPayloadLen {
		return PrivateKeyRecord{}, false
	}
	var r PrivateKeyRecord
	r.KeySlot = nvram.KeySlotRef(binary.BigEndian.Uint32(buf[0:4]))
	copy(r.CRMEncrypted[:], buf[4:20])
	for i := 0; i < 3; i++ {
		copy(r.DEK[i][:], buf[20+i*16:20+(i+1)*16])
	}
	return r, true
}
