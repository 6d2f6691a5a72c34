package card

import (
	"errors"

	"github.com/gnuk-go/cardengine/internal/catalog"
	"github.com/gnuk-go/cardengine/internal/collab"
	"github.com/gnuk-go/cardengine/internal/counters"
	"github.com/gnuk-go/cardengine/internal/envelope"
	"github.com/gnuk-go/cardengine/internal/keystring"
	"github.com/gnuk-go/cardengine/internal/nvram"
)

var (
	ErrMalformedPayload   = errors.New("card: malformed procedural payload")
	ErrNoAdminKeystring   = errors.New("card: no admin keystring provisioned yet")
	ErrWrongAdminKeystring = errors.New("card: admin keystring does not unlock the existing private key")
)

// Collaborators bundles the out-of-scope primitives the envelope manager
// needs: hashing, the symmetric cipher, randomness, and
// RSA modulus derivation.
type Collaborators struct {
	Hasher  collab.Hasher
	Cipher  collab.Cipher
	RNG     collab.RNG
	Modulus collab.ModulusCalculator
}

// Card owns the whole DO engine for one card image: the NV pool and
// key-slot arena (C1), the counters (C2), the keystring manager (C3), the
// envelope manager (C4), and the catalog dispatcher (C5) it wires its own
// volatile indices and procedural handlers into (C6/C7).
type Card struct {
	Pool    *nvram.Pool
	Arena   *nvram.KeySlotArena
	Session *Session

	DSC    *counters.DSC
	PW1Err *counters.PWErr
	RCErr  *counters.PWErr
	PW3Err *counters.PWErr

	KS       *keystring.Manager
	Envelope *envelope.Manager
	Catalog  *catalog.Dispatcher

	varRefs        map[catalog.Tag]nvram.Ref
	pw1LifetimeRef nvram.Ref
	pw1Lifetime    bool

	prvKeyRefs    map[envelope.Role]nvram.Ref
	prvKeyRecords map[envelope.Role]envelope.PrivateKeyRecord
	numPrvKeys    int

	dataObjectBytes int
}

// NewCard wires a fresh or pre-existing pool/arena into a Card, running an
// initial Scan (C6) to rebuild every volatile index from whatever is
// already on the medium.
func NewCard(pool *nvram.Pool, arena *nvram.KeySlotArena, cfg catalog.Config, session *Session, coll Collaborators) (*Card, error) {
	c := &Card{
		Pool:    pool,
		Arena:   arena,
		Session: session,

		Envelope: &envelope.Manager{
			Pool:    pool,
			Arena:   arena,
			Cipher:  coll.Cipher,
			RNG:     coll.RNG,
			Modulus: coll.Modulus,
			Hasher:  coll.Hasher,
		},
	}

	// Scan rebuilds DSC/PWErr/KS/varRefs/prvKeyRefs from whatever is
	// already on the medium (empty, for a fresh card).
	if err := c.Scan(); err != nil {
		return nil, err
	}

	handlers := catalog.Handlers{
		DSC:           c.dscRead,
		PWStatusRead:  c.pwStatusRead,
		PWStatusWrite: c.pwStatusWrite,
		ResettingCode: c.procResettingCode,
		KeyImport:     c.procKeyImport,
	}
	c.Catalog = catalog.NewDispatcher(catalog.BuildTable(cfg, handlers), session, c)
	return c, nil
}

// NumPrvKeys reports how many of the three roles currently hold a key
// (0..3), the "num_prv_keys" telemetry value.
func (c *Card) NumPrvKeys() int { return c.numPrvKeys }

// DataObjectsNumberOfBytes sums every live DO payload length, the "free
// bytes" telemetry value. It walks the active bank on each call, so writes
// made since the last Scan are counted; if the walk fails it returns the
// value computed by the last Scan.
func (c *Card) DataObjectsNumberOfBytes() int {
	n := 0
	err := c.Pool.Scan(func(ref nvram.Ref, h nvram.Header, payload []byte) error {
		if h.Kind == nvram.KindDO {
			n += len(payload)
		}
		return nil
	})
	if err != nil {
		return c.dataObjectBytes
	}
	return n
}

// FreeBytes reports the pool's remaining room in its active bank, and
// FreeKeySlots the key-slot arena's remaining capacity; both feed the
// operator-facing telemetry on top of the in-memory counters.
func (c *Card) FreeBytes() uint32 { return c.Pool.FreeBytes() }

func (c *Card) FreeKeySlots() (int, error) { return c.Arena.FreeSlots() }

// PrivateKeyRecord exposes role's stored record (key-slot pointer, CRM
// trailer, DEK copies) for callers outside this package that need to read
// the key slot directly, such as a GET PUBLIC KEY CLI helper.
func (c *Card) PrivateKeyRecord(role envelope.Role) (envelope.PrivateKeyRecord, bool) {
	rec, ok := c.prvKeyRecords[role]
	return rec, ok
}

// PasswdLocked reports whether a PIN has reached PasswordErrorsMax.
func (c *Card) PasswdLocked(which nvram.PWErrSlot) bool {
	return c.pwErrFor(which).Locked()
}

func (c *Card) pwErrFor(which nvram.PWErrSlot) *counters.PWErr {
	switch which {
	case nvram.PWErrRC:
		return c.RCErr
	case nvram.PWErrPW3:
		return c.PW3Err
	default:
		return c.PW1Err
	}
}

// LoadPrivateKey unseals role's working key under the supplied keystring,
// identified by who (PW1/RC/PW3 index).
func (c *Card) LoadPrivateKey(role envelope.Role, who envelope.WhoIndex, ks keystring.Keystring) (envelope.WorkingKey, error) {
	rec, ok := c.prvKeyRecords[role]
	if !ok {
		return envelope.WorkingKey{}, envelope.ErrNoKey
	}
	return c.Envelope.Unseal(rec, who, ks)
}
