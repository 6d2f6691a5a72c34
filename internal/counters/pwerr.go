package counters

import (
	"github.com/gnuk-go/cardengine/internal/nvram"
)

// PasswordErrorsMax is the number of consecutive wrong attempts that locks
// a PIN.
const PasswordErrorsMax = 3

// PWErr tracks one PIN's error counter (user/reset-code/admin), encoded as
// a unary bit-clearing cell: each increment clears one more bit of the
// two-byte trailer, in place, without a new append.
type PWErr struct {
	pool  *nvram.Pool
	which nvram.PWErrSlot

	ref   nvram.Ref
	count int
}

// NewPWErr returns a counter with no backing cell (value 0).
func NewPWErr(pool *nvram.Pool, which nvram.PWErrSlot) *PWErr {
	return &PWErr{pool: pool, which: which}
}

// Observe folds in a Counter123 cell seen during a scan whose PWErrWhich
// matches this counter's slot.
func (c *PWErr) Observe(ref nvram.Ref, h nvram.Header, payload []byte) {
	if h.Kind != nvram.KindCounter123 || h.PWErrWhich != c.which {
		return
	}
	c.ref = ref
	c.count = nvram.Counter123Value(payload[0], payload[1])
}

// Value returns the current error count.
func (c *PWErr) Value() int { return c.count }

// Locked reports whether this PIN is locked (count >= PasswordErrorsMax).
func (c *PWErr) Locked() bool { return c.count >= PasswordErrorsMax }

// Increment issues one bit-clearing write. If no cell exists yet, a fresh
// one is appended at count 1. Once a cell has absorbed
// nvram.MaxCounter123Increments clears, further increments are a no-op
// (saturated) until Clear starts a new cell.
func (c *PWErr) Increment() error {
	if c.ref == 0 {
		cell, err := nvram.EncodeCounter123(c.which, 1)
		if err != nil {
			return err
		}
		ref, err := c.pool.AppendRawCell(cell)
		if err != nil {
			return err
		}
		c.ref, c.count = ref, 1
		return nil
	}
	if c.count >= nvram.MaxCounter123Increments {
		return nil
	}
	cell, err := nvram.EncodeCounter123(c.which, c.count+1)
	if err != nil {
		return err
	}
	// In-place: clear further bits of the same cell's trailing bytes.
	if err := c.pool.ProgramAt(uint32(c.ref)+2, cell[2:]); err != nil {
		return err
	}
	c.count++
	return nil
}

// Clear releases the cell, returning the counter to 0.
func (c *PWErr) Clear() error {
	if c.ref == 0 {
		return nil
	}
	if err := c.pool.Release(c.ref); err != nil {
		return err
	}
	c.ref, c.count = 0, 0
	return nil
}
