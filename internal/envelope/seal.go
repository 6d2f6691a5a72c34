package envelope

import (
	"errors"

	"github.com/gnuk-go/cardengine/internal/collab"
	"github.com/gnuk-go/cardengine/internal/keystring"
	"github.com/gnuk-go/cardengine/internal/nvram"
)

// ErrNoKey is returned by Unseal when the role has no private key at all.
var ErrNoKey = errors.New("envelope: no private key for role")

// ErrWrongKeystring is returned by Unseal when decryption under the
// supplied keystring does not recover the magic constant.
var ErrWrongKeystring = errors.New("envelope: keystring does not unlock this key")

// Manager seals and unseals private keys against the NV pool and key-slot
// arena, using the collaborator primitives named below.
type Manager struct {
	Pool    *nvram.Pool
	Arena   *nvram.KeySlotArena
	Cipher  collab.Cipher
	RNG     collab.RNG
	Modulus collab.ModulusCalculator
	Hasher  collab.Hasher
}

// InitialPW1 is the hard-coded factory PW1 passphrase used to wrap the
// user DEK copy when no PW1 keystring has been established yet.
const InitialPW1 = "123456"

// SealResult carries the freshly appended record cell and its record, plus
// the modulus so the caller can answer a subsequent GET PUBLIC KEY without
// a second read.
type SealResult struct {
	Ref       nvram.Ref
	Record    PrivateKeyRecord
	Modulus   [256]byte
	WasNewKey bool // false when this call replaced an existing key
}

// Seal implements the seal protocol: replacing an existing key
// (existing != nil) recovers the shared DEK through the admin copy, seals
// the new key material under it and resets PW1/RC material (the user copy
// is wrapped under the factory InitialPW1 keystring, the RC copy is
// zeroed); creating a fresh key (existing == nil) mints a new random DEK
// and wraps it for all three roles (the user copy under pw1KS, or the
// factory InitialPW1 keystring when pw1KS is nil; the RC copy is zero if
// no reset code keystring exists yet).
func (m *Manager) Seal(nr byte, existing *PrivateKeyRecord, existingRef nvram.Ref, keyData []byte, pw1KS, rcKS *keystring.Keystring, adminKS keystring.Keystring) (SealResult, error) {
	modulus, err := m.Modulus.Modulus(keyData)
	if err != nil {
		return SealResult{}, err
	}

	slotRef, err := m.Arena.Alloc()
	if err != nil {
		return SealResult{}, err
	}

	var kd WorkingKey
	copy(kd.Data[:], keyData)
	kd.Check = sum32LE(keyData)
	kd.Random = m.RNG.Uint32()
	kd.Magic = Magic

	var dek [16]byte
	var newRec PrivateKeyRecord
	wasNew := existing == nil

	if existing != nil {
		adminDEK := m.Cipher.Decrypt(adminKS.Key(), existing.DEK[WhoAdmin][:])
		copy(dek[:], adminDEK)
		newRec.DEK[WhoUser] = [16]byte{}
		copy(newRec.DEK[WhoUser][:], dek[:])
		newRec.DEK[WhoReset] = [16]byte{} // zeroed: RC material reset
		pw1KS, rcKS = nil, nil           // keystrings no longer carried forward
	} else {
		dek = m.RNG.Bytes16()
	}

	packed := kd.Pack()
	encrypted := m.Cipher.Encrypt(dek, packed[:])

	var slotEnc [KeyContentLen]byte
	copy(slotEnc[:], encrypted[:KeyContentLen])
	if err := m.Arena.Write(slotRef, slotEnc, modulus); err != nil {
		return SealResult{}, err
	}
	copy(newRec.CRMEncrypted[:], encrypted[KeyContentLen:])
	newRec.KeySlot = slotRef

	if pw1KS != nil {
		newRec.DEK[WhoUser] = m.cipherWrap(*pw1KS, dek)
	} else {
		initial := keystring.Derive(m.Hasher, []byte(InitialPW1))
		newRec.DEK[WhoUser] = m.cipherWrap(initial, dek)
	}
	if rcKS != nil {
		newRec.DEK[WhoReset] = m.cipherWrap(*rcKS, dek)
	} else {
		newRec.DEK[WhoReset] = [16]byte{}
	}
	newRec.DEK[WhoAdmin] = m.cipherWrap(adminKS, dek)

	ref, err := m.Pool.Append(nr, newRec.Encode())
	if err != nil {
		return SealResult{}, err
	}

	if existing != nil {
		if err := m.Pool.Release(existingRef); err != nil {
			return SealResult{}, err
		}
		if err := m.Arena.Release(existing.KeySlot); err != nil {
			return SealResult{}, err
		}
	}

	return SealResult{Ref: ref, Record: newRec, Modulus: modulus, WasNewKey: wasNew}, nil
}

func (m *Manager) cipherWrap(ks keystring.Keystring, dek [16]byte) [16]byte {
	enc := m.Cipher.Encrypt(ks.Key(), dek[:])
	var out [16]byte
	copy(out[:], enc)
	return out
}

// Unseal recovers the plaintext working key for a role, verifying the
// supplied keystring via the magic check.
func (m *Manager) Unseal(rec PrivateKeyRecord, who WhoIndex, ks keystring.Keystring) (WorkingKey, error) {
	dekEnc := rec.DEK[who]
	dekBytes := m.Cipher.Decrypt(ks.Key(), dekEnc[:])
	var dek [16]byte
	copy(dek[:], dekBytes)

	slotEnc, err := m.Arena.ReadEncrypted(rec.KeySlot)
	if err != nil {
		return WorkingKey{}, err
	}

	var cipherBuf [packedLen]byte
	copy(cipherBuf[:KeyContentLen], slotEnc[:])
	copy(cipherBuf[KeyContentLen:], rec.CRMEncrypted[:])

	plain := m.Cipher.Decrypt(dek, cipherBuf[:])
	var plainBuf [packedLen]byte
	copy(plainBuf[:], plain)
	kd := UnpackWorkingKey(plainBuf)

	if kd.Magic != Magic {
		kd.Zero()
		return WorkingKey{}, ErrWrongKeystring
	}
	return kd, nil
}

// ChangeKeystringDEK rewraps the DEK copy at oldWho (decrypted with
// oldKS) and stores the result at newWho (encrypted with newKS), leaving
// every other DEK copy untouched. This is gpg_do_chks_prvkey, used both
// for PIN changes in place (oldWho == newWho) and for moving a DEK
// between unlock paths (e.g. installing a reset code from the admin
// PIN).
func (m *Manager) ChangeKeystringDEK(rec PrivateKeyRecord, oldWho WhoIndex, oldKS keystring.Keystring, newWho WhoIndex, newKS keystring.Keystring) PrivateKeyRecord {
	dekBytes := m.Cipher.Decrypt(oldKS.Key(), rec.DEK[oldWho][:])
	var dek [16]byte
	copy(dek[:], dekBytes)
	rec.DEK[newWho] = m.cipherWrap(newKS, dek)
	return rec
}

// Delete releases a role's key slot and DO cell.
func (m *Manager) Delete(rec PrivateKeyRecord, ref nvram.Ref) error {
	if err := m.Arena.Release(rec.KeySlot); err != nil {
		return err
	}
	return m.Pool.Release(ref)
}
