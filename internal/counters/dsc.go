// Package counters implements the crash-safe counter encodings (C2): the
// 24-bit digital-signature counter and the three PIN-error counters, built
// on top of the nvram cell log.
package counters

import (
	"github.com/gnuk-go/cardengine/internal/nvram"
)

// DSC tracks the 24-bit digital-signature counter, split in the log into a
// 14-bit upper part and a 10-bit lower part.
type DSC struct {
	pool *nvram.Pool

	upperRef nvram.Ref
	lowerRef nvram.Ref
	h14      uint16
	l10      uint16
}

// NewDSC returns a DSC with no backing cells yet (value 0); call Observe
// for every DSC-kind cell found during a pool scan, then Finalize once.
func NewDSC(pool *nvram.Pool) *DSC {
	return &DSC{pool: pool}
}

// Observe folds in one DSC-kind cell seen during a scan, in physical
// (append) order. Only DSC-kind headers should be passed.
func (d *DSC) Observe(ref nvram.Ref, h nvram.Header) {
	switch h.Kind {
	case nvram.KindDSCUpper:
		d.upperRef, d.h14 = ref, h.DSCBits
	case nvram.KindDSCLower:
		d.lowerRef, d.l10 = ref, h.DSCBits
	}
}

// Finalize applies the torn-write rule: if the most recent lower cell
// physically precedes the most recent upper cell, the lower part is lost
// and treated as 0 (a safe over-count, never an under-count).
func (d *DSC) Finalize() {
	if d.lowerRef != 0 && d.upperRef != 0 && d.lowerRef < d.upperRef {
		d.l10 = 0
	}
	if d.lowerRef == 0 {
		d.l10 = 0
	}
	if d.upperRef == 0 {
		d.h14 = 0
	}
}

// Value returns the reconstructed 24-bit counter.
func (d *DSC) Value() uint32 {
	return (uint32(d.h14) << 10) | uint32(d.l10)
}

// Increment advances the counter by one (mod 2^24), called after every
// PSO:CDS. When the low 10 bits wrap, the new upper cell is written first
// and only then the new lower(=0) cell — the crash between them is exactly
// what Finalize's torn-write rule recovers from safely.
func (d *DSC) Increment() error {
	next := (d.Value() + 1) & 0x00ffffff
	h14 := uint16(next >> 10)
	l10 := uint16(next & 0x3ff)

	if l10 == 0 {
		ref, err := d.pool.AppendRawCell(nvram.EncodeDSCUpper(h14))
		if err != nil {
			return err
		}
		if d.upperRef != 0 {
			if err := d.pool.Release(d.upperRef); err != nil {
				return err
			}
		}
		d.upperRef, d.h14 = ref, h14
	}

	ref, err := d.pool.AppendRawCell(nvram.EncodeDSCLower(l10))
	if err != nil {
		return err
	}
	if d.lowerRef != 0 {
		if err := d.pool.Release(d.lowerRef); err != nil {
			return err
		}
	}
	d.lowerRef, d.l10 = ref, l10
	return nil
}

// Bytes24 renders the counter as the 3-byte big-endian value GET DATA
// returns for the DS_COUNT tag.
func (d *DSC) Bytes24() [3]byte {
	v := d.Value()
	return [3]byte{byte(v >> 16), byte(v >> 8), byte(v)}
}
