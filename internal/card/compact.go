package card

import (
	"github.com/gnuk-go/cardengine/internal/keystring"
	"github.com/gnuk-go/cardengine/internal/nvram"
)

// Compact is gpg_data_copy: rewrite the live state into a
// freshly erased bank in canonical order (DSC, PW1-lifetime, non-zero
// PIN-error counters, then every live DO cell), remapping the key-slot
// arena alongside it, then rescan the result to rebuild every volatile
// index against the new offsets.
func (c *Card) Compact() error {
	liveSlots := make([]nvram.KeySlotRef, 0, len(c.prvKeyRecords))
	for _, rec := range c.prvKeyRecords {
		liveSlots = append(liveSlots, rec.KeySlot)
	}
	slotRemap, err := c.Arena.Compact(liveSlots)
	if err != nil {
		return err
	}

	staging, err := c.Pool.BeginCompaction()
	if err != nil {
		return err
	}

	if c.DSC.Value()>>10 != 0 {
		if _, err := staging.AppendRawCell(nvram.EncodeDSCUpper(uint16(c.DSC.Value() >> 10))); err != nil {
			return err
		}
	}
	if _, err := staging.AppendRawCell(nvram.EncodeDSCLower(uint16(c.DSC.Value() & 0x3ff))); err != nil {
		return err
	}

	if c.pw1Lifetime {
		if _, err := staging.AppendRawCell(nvram.EncodeBoolPW1Lifetime()); err != nil {
			return err
		}
	}

	for _, pw := range []*struct {
		slot  nvram.PWErrSlot
		count int
	}{
		{nvram.PWErrPW1, c.PW1Err.Value()},
		{nvram.PWErrRC, c.RCErr.Value()},
		{nvram.PWErrPW3, c.PW3Err.Value()},
	} {
		if pw.count == 0 {
			continue
		}
		cell, err := nvram.EncodeCounter123(pw.slot, pw.count)
		if err != nil {
			return err
		}
		if _, err := staging.AppendRawCell(cell); err != nil {
			return err
		}
	}

	for tag, ref := range c.varRefs {
		_, payload, err := c.Pool.ReadCell(ref)
		if err != nil {
			return err
		}
		if _, err := staging.Append(tagNR[tag], payload); err != nil {
			return err
		}
	}

	for _, role := range []keystring.Role{keystring.RolePW1, keystring.RoleRC, keystring.RolePW3} {
		ref, ok := c.KS.Ref(role)
		if !ok {
			continue
		}
		_, payload, err := c.Pool.ReadCell(ref)
		if err != nil {
			return err
		}
		if _, err := staging.Append(keystringNR[role], payload); err != nil {
			return err
		}
	}

	for role, rec := range c.prvKeyRecords {
		if newSlot, ok := slotRemap[rec.KeySlot]; ok {
			rec.KeySlot = newSlot
		}
		if _, err := staging.Append(roleNR[role], rec.Encode()); err != nil {
			return err
		}
	}

	if err := staging.Commit(); err != nil {
		return err
	}
	return c.Scan()
}
