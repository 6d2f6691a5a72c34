package nvram

import (
	"errors"
	"fmt"
)

// Each key slot holds 128 bytes of encrypted private-key material
// followed by 256 bytes of plaintext modulus.
const (
	KeySlotEncryptedLen = 128
	KeySlotModulusLen   = 256
	KeySlotPayloadLen   = KeySlotEncryptedLen + KeySlotModulusLen
	keySlotStateLen     = 2 // aligned to an even boundary like DO cells
	keySlotStride       = keySlotStateLen + KeySlotPayloadLen
)

// Slot state byte values, reached only by clearing bits (never set):
// erased (free) -> live -> released. A released slot is only reclaimed by
// Compact, matching "slot layout is never rewritten without compaction".
const (
	slotFree     = 0xff
	slotLive     = 0xfe
	slotReleased = 0xfc
)

// ErrArenaFull is returned by Alloc when no free slot remains.
var ErrArenaFull = errors.New("nvram: key-slot arena full")

// KeySlotRef addresses a slot by its absolute byte offset in the medium.
type KeySlotRef uint32

// KeySlotArena manages fixed-size key-material slots in a region of the
// medium separate from the DO pool.
type KeySlotArena struct {
	medium Medium
	base   uint32
	count  uint32
}

// OpenKeySlotArena describes an arena of count slots starting at base.
func OpenKeySlotArena(medium Medium, base uint32, count uint32) (*KeySlotArena, error) {
	if uint64(base)+uint64(count)*uint64(keySlotStride) > uint64(medium.Size()) {
		return nil, fmt.Errorf("nvram: key-slot arena does not fit in medium")
	}
	return &KeySlotArena{medium: medium, base: base, count: count}, nil
}

func (a *KeySlotArena) offset(i uint32) uint32 { return a.base + i*keySlotStride }

// Alloc finds the first free slot, marks it live, and returns its ref.
func (a *KeySlotArena) Alloc() (KeySlotRef, error) {
	for i := uint32(0); i < a.count; i++ {
		off := a.offset(i)
		var state [keySlotStateLen]byte
		if err := a.medium.ReadAt(off, state[:]); err != nil {
			return 0, err
		}
		if state[0] == slotFree {
			if err := a.medium.Program(off, []byte{slotLive, slotLive}); err != nil {
				return 0, err
			}
			return KeySlotRef(off), nil
		}
	}
	return 0, ErrArenaFull
}

// Release marks a previously allocated slot as released; its payload
// region is not reclaimed until the next compaction.
func (a *KeySlotArena) Release(ref KeySlotRef) error {
	return a.medium.Program(uint32(ref), []byte{slotReleased, slotReleased})
}

// Write programs the encrypted key material and plaintext modulus into an
// allocated slot.
func (a *KeySlotArena) Write(ref KeySlotRef, encrypted [KeySlotEncryptedLen]byte, modulus [KeySlotModulusLen]byte) error {
	buf := make([]byte, KeySlotPayloadLen)
	copy(buf, encrypted[:])
	copy(buf[KeySlotEncryptedLen:], modulus[:])
	return a.medium.Program(uint32(ref)+keySlotStateLen, buf)
}

// ReadEncrypted returns the 128-byte encrypted key content of a slot.
func (a *KeySlotArena) ReadEncrypted(ref KeySlotRef) ([KeySlotEncryptedLen]byte, error) {
	var out [KeySlotEncryptedLen]byte
	err := a.medium.ReadAt(uint32(ref)+keySlotStateLen, out[:])
	return out, err
}

// ReadModulus returns the 256-byte plaintext modulus of a slot.
func (a *KeySlotArena) ReadModulus(ref KeySlotRef) ([KeySlotModulusLen]byte, error) {
	var out [KeySlotModulusLen]byte
	err := a.medium.ReadAt(uint32(ref)+keySlotStateLen+KeySlotEncryptedLen, out[:])
	return out, err
}

// FreeSlots counts slots in the free state, used for card telemetry.
func (a *KeySlotArena) FreeSlots() (int, error) {
	free := 0
	for i := uint32(0); i < a.count; i++ {
		var state [keySlotStateLen]byte
		if err := a.medium.ReadAt(a.offset(i), state[:]); err != nil {
			return 0, err
		}
		if state[0] == slotFree {
			free++
		}
	}
	return free, nil
}

// Compact erases the whole arena and rewrites only the slots named by
// live, preserving their content but assigning them fresh refs at the same
// relative order. It returns a map from old ref to new ref.
func (a *KeySlotArena) Compact(live []KeySlotRef) (map[KeySlotRef]KeySlotRef, error) {
	type saved struct {
		enc [KeySlotEncryptedLen]byte
		mod [KeySlotModulusLen]byte
	}
	keep := make([]saved, len(live))
	for i, ref := range live {
		enc, err := a.ReadEncrypted(ref)
		if err != nil {
			return nil, err
		}
		mod, err := a.ReadModulus(ref)
		if err != nil {
			return nil, err
		}
		keep[i] = saved{enc, mod}
	}

	if err := a.medium.Erase(a.base, a.count*keySlotStride); err != nil {
		return nil, err
	}

	remap := make(map[KeySlotRef]KeySlotRef, len(live))
	for i, ref := range live {
		newRef, err := a.Alloc()
		if err != nil {
			return nil, err
		}
		if err := a.Write(newRef, keep[i].enc, keep[i].mod); err != nil {
			return nil, err
		}
		remap[ref] = newRef
	}
	return remap, nil
}
