package card

import (
	"errors"

	"github.com/gnuk-go/cardengine/internal/catalog"
	"github.com/gnuk-go/cardengine/internal/envelope"
)

// StatusWord is an ISO 7816-4 SW1SW2 pair; C7's façade maps every
// catalog/envelope/pool error onto one of these.
type StatusWord uint16

const (
	SWSuccess               StatusWord = 0x9000
	SWRecordNotFound        StatusWord = 0x6a88
	SWSecurityNotSatisfied  StatusWord = 0x6982
	SWMemoryFailure         StatusWord = 0x6581
	SWWrongLength           StatusWord = 0x6700
)

// tagPublicKey, tagPublicKeyModulus and tagPublicKeyExponent frame GET PUBLIC KEY's response:
// outer 7F49, inner 81 (modulus) and 82 (exponent).
const (
	tagPublicKey         catalog.Tag = 0x7f49
	tagPublicKeyModulus  catalog.Tag = 0x81
	tagPublicKeyExponent catalog.Tag = 0x82
)

var rsaExponent = []byte{0x01, 0x00, 0x01}

// GetData is the GET DATA entry point.
func (c *Card) GetData(tag catalog.Tag) ([]byte, StatusWord) {
	value, err := c.Catalog.Get(tag)
	switch {
	case err == nil:
		return value, SWSuccess
	case errors.Is(err, catalog.ErrNotFound):
		return nil, SWRecordNotFound
	case errors.Is(err, catalog.ErrAccessDenied):
		return nil, SWSecurityNotSatisfied
	default:
		return nil, SWMemoryFailure
	}
}

// PutData is the PUT DATA entry point.
func (c *Card) PutData(tag catalog.Tag, payload []byte) StatusWord {
	err := c.Catalog.Put(tag, payload)
	switch {
	case err == nil:
		return SWSuccess
	case errors.Is(err, catalog.ErrNotFound):
		return SWRecordNotFound
	case errors.Is(err, catalog.ErrAccessDenied):
		return SWSecurityNotSatisfied
	case errors.Is(err, catalog.ErrPayloadTooLarge):
		return SWWrongLength
	case errors.Is(err, ErrWrongAdminKeystring), errors.Is(err, envelope.ErrWrongKeystring):
		return SWSecurityNotSatisfied
	case errors.Is(err, ErrMalformedPayload):
		return SWWrongLength
	default:
		return SWMemoryFailure
	}
}

// GetPublicKey is the GET PUBLIC KEY entry point: the
// modulus is read straight from the key slot, never from the encrypted
// private-key payload.
func (c *Card) GetPublicKey(role envelope.Role) ([]byte, StatusWord) {
	rec, ok := c.prvKeyRecords[role]
	if !ok {
		return nil, SWRecordNotFound
	}
	modulus, err := c.Arena.ReadModulus(rec.KeySlot)
	if err != nil {
		return nil, SWMemoryFailure
	}

	modTLV, err := catalog.EncodeTLV(tagPublicKeyModulus, modulus[:])
	if err != nil {
		return nil, SWMemoryFailure
	}
	expTLV, err := catalog.EncodeTLV(tagPublicKeyExponent, rsaExponent)
	if err != nil {
		return nil, SWMemoryFailure
	}
	outer, err := catalog.EncodeTLV(tagPublicKey, append(modTLV, expTLV...))
	if err != nil {
		return nil, SWMemoryFailure
	}
	return outer, SWSuccess
}

// IncrementDSC advances the digital-signature counter by one; called
// after a successful PSO:CDS (compute digital signature) operation.
func (c *Card) IncrementDSC() error {
	return c.DSC.Increment()
}
