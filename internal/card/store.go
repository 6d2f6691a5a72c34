package card

import "github.com/gnuk-go/cardengine/internal/catalog"

// ReadVar implements catalog.Store: C5's read port into C1.
func (c *Card) ReadVar(tag catalog.Tag) ([]byte, bool) {
	ref, ok := c.varRefs[tag]
	if !ok {
		return nil, false
	}
	_, payload, err := c.Pool.ReadCell(ref)
	if err != nil {
		return nil, false
	}
	return payload, true
}

// WriteVar implements catalog.Store: release the old cell (if any), and
// either leave the tag unset (payload == nil, a delete) or append the new
// one and update the volatile pointer.
func (c *Card) WriteVar(tag catalog.Tag, payload []byte) error {
	if old, ok := c.varRefs[tag]; ok {
		if err := c.Pool.Release(old); err != nil {
			return err
		}
		delete(c.varRefs, tag)
	}
	if payload == nil {
		return nil
	}
	ref, err := c.Pool.Append(tagNR[tag], payload)
	if err != nil {
		return err
	}
	c.varRefs[tag] = ref
	return nil
}
