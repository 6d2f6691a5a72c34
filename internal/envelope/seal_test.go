package envelope

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/gnuk-go/cardengine/internal/collab"
	"github.com/gnuk-go/cardengine/internal/keystring"
	"github.com/gnuk-go/cardengine/internal/nvram"
)

// sequentialRNG hands out deterministic, distinct fixtures so tests can
// assert on exact bytes without needing a real CSPRNG.
type sequentialRNG struct {
	n byte
}

func (r *sequentialRNG) Bytes16() [16]byte {
	r.n++
	var b [16]byte
	for i := range b {
		b[i] = r.n
	}
	return b
}

func (r *sequentialRNG) Uint32() uint32 {
	r.n++
	return uint32(r.n) * 0x01010101
}

type fixedModulus struct{}

func (fixedModulus) Modulus(keyData []byte) ([256]byte, error) {
	var m [256]byte
	copy(m[:], keyData)
	return m, nil
}

func newManager(t *testing.T) (*Manager, *nvram.Pool) {
	t.Helper()
	fs := afero.NewMemMapFs()
	medium, err := nvram.OpenFileMedium(fs, "/card.img", 1<<16)
	require.NoError(t, err)
	pool, err := nvram.Open(medium)
	require.NoError(t, err)
	arena, err := nvram.OpenKeySlotArena(medium, 1<<15, 8)
	require.NoError(t, err)

	return &Manager{
		Pool:    pool,
		Arena:   arena,
		Cipher:  collab.AESCFB128Cipher{},
		RNG:     &sequentialRNG{},
		Modulus: fixedModulus{},
		Hasher:  collab.SHA1Hasher{},
	}, pool
}

func ks(t *testing.T, m *Manager, passphrase string) keystring.Keystring {
	t.Helper()
	return keystring.Derive(m.Hasher, []byte(passphrase))
}

func keyData(fill byte) []byte {
	data := make([]byte, KeyContentLen)
	for i := range data {
		data[i] = fill
	}
	return data
}

func TestSealUnsealRoundTripAllThreeRoles(t *testing.T) {
	m, _ := newManager(t)
	admin := ks(t, m, "adminpin")
	pw1 := ks(t, m, "123456")

	res, err := m.Seal(0x01, nil, 0, keyData(0x11), &pw1, nil, admin)
	require.NoError(t, err)
	require.True(t, res.WasNewKey)

	kdUser, err := m.Unseal(res.Record, WhoUser, pw1)
	require.NoError(t, err)
	require.Equal(t, keyData(0x11), kdUser.Data[:])
	require.Equal(t, Magic, kdUser.Magic)

	kdAdmin, err := m.Unseal(res.Record, WhoAdmin, admin)
	require.NoError(t, err)
	require.Equal(t, kdUser.Data, kdAdmin.Data)

	// RC was never provisioned: decrypting the zeroed DEK copy with any
	// keystring must not accidentally recover the magic constant.
	_, err = m.Unseal(res.Record, WhoReset, admin)
	require.ErrorIs(t, err, ErrWrongKeystring)
}

func TestUnsealWrongKeystringFailsMagicCheck(t *testing.T) {
	m, _ := newManager(t)
	admin := ks(t, m, "adminpin")
	pw1 := ks(t, m, "123456")
	wrong := ks(t, m, "wrongpin")

	res, err := m.Seal(0x01, nil, 0, keyData(0x22), &pw1, nil, admin)
	require.NoError(t, err)

	_, err = m.Unseal(res.Record, WhoUser, wrong)
	require.ErrorIs(t, err, ErrWrongKeystring)
}

func TestSealReplaceRewrapsSharedDEKAndResetsPW1RC(t *testing.T) {
	m, _ := newManager(t)
	admin := ks(t, m, "adminpin")
	pw1 := ks(t, m, "userpin")
	initial := ks(t, m, InitialPW1)
	rc := ks(t, m, "resetcode")

	first, err := m.Seal(0x01, nil, 0, keyData(0x33), &pw1, &rc, admin)
	require.NoError(t, err)

	second, err := m.Seal(0x01, &first.Record, first.Ref, keyData(0x44), nil, nil, admin)
	require.NoError(t, err)
	require.False(t, second.WasNewKey)

	// Admin can still unlock, recovering the same shared DEK used for user.
	kdAdmin, err := m.Unseal(second.Record, WhoAdmin, admin)
	require.NoError(t, err)
	require.Equal(t, keyData(0x44), kdAdmin.Data[:])

	kdUser, err := m.Unseal(second.Record, WhoUser, initial)
	require.NoError(t, err)
	require.Equal(t, kdAdmin.Data, kdUser.Data)

	// The old PW1/RC keystrings no longer unlock anything: the reset path
	// is zeroed and the user copy is now wrapped under the factory PW1.
	_, err = m.Unseal(second.Record, WhoUser, pw1)
	require.ErrorIs(t, err, ErrWrongKeystring)
	_, err = m.Unseal(second.Record, WhoReset, rc)
	require.ErrorIs(t, err, ErrWrongKeystring)
}

// TestChangeKeystringMovesDEKBetweenRolesButNotOthers directly implements
// scenario 6: chks_prvkey(sig, admin, A, reset, R) installs a
// reset code without disturbing the user role's own keystring.
func TestChangeKeystringMovesDEKBetweenRolesButNotOthers(t *testing.T) {
	m, _ := newManager(t)
	admin := ks(t, m, "A")
	pw1 := ks(t, m, "userpin")
	reset := ks(t, m, "R")

	res, err := m.Seal(0x01, nil, 0, keyData(0x55), &pw1, nil, admin)
	require.NoError(t, err)

	moved := m.ChangeKeystringDEK(res.Record, WhoAdmin, admin, WhoReset, reset)

	_, err = m.Unseal(moved, WhoUser, admin)
	require.ErrorIs(t, err, ErrWrongKeystring)

	kdReset, err := m.Unseal(moved, WhoReset, reset)
	require.NoError(t, err)
	require.Equal(t, keyData(0x55), kdReset.Data[:])
}

func TestDeleteReleasesSlotAndCell(t *testing.T) {
	m, pool := newManager(t)
	admin := ks(t, m, "adminpin")
	pw1 := ks(t, m, "123456")

	res, err := m.Seal(0x01, nil, 0, keyData(0x66), &pw1, nil, admin)
	require.NoError(t, err)

	require.NoError(t, m.Delete(res.Record, res.Ref))

	var kinds []nvram.Kind
	require.NoError(t, pool.Scan(func(ref nvram.Ref, h nvram.Header, payload []byte) error {
		kinds = append(kinds, h.Kind)
		return nil
	}))
	require.Equal(t, []nvram.Kind{nvram.KindReleased}, kinds)

	free, err := m.Arena.FreeSlots()
	require.NoError(t, err)
	require.Equal(t, 7, free)
}
