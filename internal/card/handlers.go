package card

import (
	"github.com/gnuk-go/cardengine/internal/catalog"
	"github.com/gnuk-go/cardengine/internal/counters"
	"github.com/gnuk-go/cardengine/internal/envelope"
	"github.com/gnuk-go/cardengine/internal/keystring"
	"github.com/gnuk-go/cardengine/internal/nvram"
)

// dscRead is the PROC_READ handler for the DSC tag: a raw 3-byte
// big-endian counter value, not wrapped in its own TLV.
func (c *Card) dscRead(tag catalog.Tag) ([]byte, error) {
	b := c.DSC.Bytes24()
	return b[:], nil
}

// pwStatusRead is rw_pw_status in read mode.
func (c *Card) pwStatusRead(tag catalog.Tag) ([]byte, error) {
	lifetime := byte(0)
	if c.pw1Lifetime {
		lifetime = 1
	}
	retries := func(count int) byte {
		r := counters.PasswordErrorsMax - count
		if r < 0 {
			r = 0
		}
		return byte(r)
	}
	return []byte{
		lifetime,
		127, 127, 127,
		retries(c.PW1Err.Value()), retries(c.RCErr.Value()), retries(c.PW3Err.Value()),
	}, nil
}

// pwStatusWrite is rw_pw_status in write mode.
func (c *Card) pwStatusWrite(tag catalog.Tag, payload []byte) error {
	if len(payload) == 0 {
		return ErrMalformedPayload
	}
	if payload[0] == 0 {
		if c.pw1LifetimeRef != 0 {
			if err := c.Pool.Release(c.pw1LifetimeRef); err != nil {
				return err
			}
			c.pw1LifetimeRef = 0
		}
		c.pw1Lifetime = false
		return nil
	}
	if !c.pw1Lifetime {
		ref, err := c.Pool.AppendRawCell(nvram.EncodeBoolPW1Lifetime())
		if err != nil {
			return err
		}
		c.pw1LifetimeRef = ref
	}
	c.pw1Lifetime = true
	return nil
}

// procResettingCode installs a fresh reset-code keystring, rewrapping
// every existing private key's admin-encrypted DEK into the reset slot.
func (c *Card) procResettingCode(tag catalog.Tag, data []byte) error {
	newKS := keystring.Derive(c.Envelope.Hasher, data)

	adminKS, ok := c.KS.Get(keystring.RolePW3)
	if !ok {
		return ErrNoAdminKeystring
	}

	hadKeys, err := c.changeKeystringForAllRoles(envelope.WhoAdmin, adminKS, envelope.WhoReset, newKS)
	if err != nil {
		return err
	}

	if !hadKeys {
		if err := c.KS.Store(keystring.RoleRC, newKS); err != nil {
			return err
		}
	} else {
		if err := c.KS.Truncate(keystring.RoleRC, newKS.Length); err != nil {
			return err
		}
	}
	return c.RCErr.Clear()
}

// changeKeystringForAllRoles rewraps the DEK copy at oldWho into newWho
// for every private-key role currently holding a key; this is
// change_keystring. hadKeys is false only when no role
// has a private key yet.
func (c *Card) changeKeystringForAllRoles(oldWho envelope.WhoIndex, oldKS keystring.Keystring, newWho envelope.WhoIndex, newKS keystring.Keystring) (bool, error) {
	if len(c.prvKeyRecords) == 0 {
		return false, nil
	}
	for role, rec := range c.prvKeyRecords {
		if _, err := c.Envelope.Unseal(rec, oldWho, oldKS); err != nil {
			if err == envelope.ErrWrongKeystring {
				return true, ErrWrongAdminKeystring
			}
			return true, err
		}
		newRec := c.Envelope.ChangeKeystringDEK(rec, oldWho, oldKS, newWho, newKS)
		newRef, err := c.Pool.Append(roleNR[role], newRec.Encode())
		if err != nil {
			return true, err
		}
		if err := c.Pool.Release(c.prvKeyRefs[role]); err != nil {
			return true, err
		}
		c.prvKeyRefs[role] = newRef
		c.prvKeyRecords[role] = newRec
	}
	return true, nil
}

// procKeyImport decodes an Extended Header List private-key template and
// either deletes or (re)seals the named role's key.
func (c *Card) procKeyImport(tag catalog.Tag, data []byte) error {
	if len(data) < 5 {
		return ErrMalformedPayload
	}
	var role envelope.Role
	switch data[4] {
	case 0xb6:
		role = envelope.RoleSigning
	case 0xb8:
		role = envelope.RoleDecryption
	case 0xa4:
		role = envelope.RoleAuthentication
	default:
		return ErrMalformedPayload
	}

	existingRef, hasExisting := c.prvKeyRefs[role]
	var existingRec *envelope.PrivateKeyRecord
	if hasExisting {
		rec := c.prvKeyRecords[role]
		existingRec = &rec
	}

	if len(data) <= envelope.DeleteMarkerMaxLen {
		if !hasExisting {
			return nil
		}
		if err := c.Envelope.Delete(*existingRec, existingRef); err != nil {
			return err
		}
		delete(c.prvKeyRefs, role)
		delete(c.prvKeyRecords, role)
		c.numPrvKeys--
		if c.numPrvKeys == 0 {
			if err := c.KS.Erase(keystring.RolePW1); err != nil {
				return err
			}
			if err := c.KS.Erase(keystring.RoleRC); err != nil {
				return err
			}
		}
		return nil
	}

	const headerLen = 26
	if len(data) < headerLen {
		return ErrMalformedPayload
	}
	keyData := data[headerLen:]

	adminKS, ok := c.KS.Get(keystring.RolePW3)
	if !ok {
		return ErrNoAdminKeystring
	}

	var pw1KSPtr, rcKSPtr *keystring.Keystring
	if !hasExisting {
		if ks, ok := c.KS.Get(keystring.RolePW1); ok {
			pw1KSPtr = &ks
		}
		if ks, ok := c.KS.Get(keystring.RoleRC); ok {
			rcKSPtr = &ks
		}
	}

	res, err := c.Envelope.Seal(roleNR[role], existingRec, existingRef, keyData, pw1KSPtr, rcKSPtr, adminKS)
	if err != nil {
		return err
	}

	c.prvKeyRefs[role] = res.Ref
	c.prvKeyRecords[role] = res.Record
	c.Session.ResetPSOCDS()

	if res.WasNewKey {
		c.numPrvKeys++
		if c.numPrvKeys == 3 {
			if ks, ok := c.KS.Get(keystring.RolePW1); ok {
				if err := c.KS.Truncate(keystring.RolePW1, ks.Length); err != nil {
					return err
				}
			}
			if ks, ok := c.KS.Get(keystring.RoleRC); ok {
				if err := c.KS.Truncate(keystring.RoleRC, ks.Length); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
