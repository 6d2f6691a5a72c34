package card

import (
	"github.com/gnuk-go/cardengine/internal/catalog"
	"github.com/gnuk-go/cardengine/internal/counters"
	"github.com/gnuk-go/cardengine/internal/envelope"
	"github.com/gnuk-go/cardengine/internal/keystring"
	"github.com/gnuk-go/cardengine/internal/nvram"
)

// Scan walks the pool from its start and rebuilds every volatile index:
// the DO-pointer table, the private-key records, the keystring cache, the
// PW1-lifetime flag, the PIN-error counters, and the DSC (C6). It is safe
// to call on an empty pool (a fresh card) or to re-run after a reopen.
func (c *Card) Scan() error {
	c.DSC = counters.NewDSC(c.Pool)
	c.PW1Err = counters.NewPWErr(c.Pool, nvram.PWErrPW1)
	c.RCErr = counters.NewPWErr(c.Pool, nvram.PWErrRC)
	c.PW3Err = counters.NewPWErr(c.Pool, nvram.PWErrPW3)
	c.KS = keystring.NewManager(c.Pool, keystringNR)
	c.varRefs = make(map[catalog.Tag]nvram.Ref)
	c.prvKeyRefs = make(map[envelope.Role]nvram.Ref)
	c.prvKeyRecords = make(map[envelope.Role]envelope.PrivateKeyRecord)
	c.pw1Lifetime = false
	c.pw1LifetimeRef = 0
	c.numPrvKeys = 0
	c.dataObjectBytes = 0

	err := c.Pool.Scan(func(ref nvram.Ref, h nvram.Header, payload []byte) error {
		switch h.Kind {
		case nvram.KindDSCUpper, nvram.KindDSCLower:
			c.DSC.Observe(ref, h)
		case nvram.KindBoolPW1Lifetime:
			c.pw1LifetimeRef = ref
			c.pw1Lifetime = true
		case nvram.KindCounter123:
			c.pwErrFor(h.PWErrWhich).Observe(ref, h, payload)
		case nvram.KindDO:
			c.observeDO(ref, h.DONumber, payload)
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.DSC.Finalize()
	return nil
}

func (c *Card) observeDO(ref nvram.Ref, nr byte, payload []byte) {
	c.dataObjectBytes += len(payload)

	if c.KS.ObserveCell(nr, ref, payload) {
		return
	}
	if role, ok := nrRole[nr]; ok {
		if rec, ok := envelope.DecodePrivateKeyRecord(payload); ok {
			c.prvKeyRefs[role] = ref
			c.prvKeyRecords[role] = rec
			c.numPrvKeys++
		}
		return
	}
	if tag, ok := nrTag[nr]; ok {
		c.varRefs[tag] = ref
	}
}
