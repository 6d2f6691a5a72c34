package card

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/gnuk-go/cardengine/internal/catalog"
	"github.com/gnuk-go/cardengine/internal/collab"
	"github.com/gnuk-go/cardengine/internal/envelope"
	"github.com/gnuk-go/cardengine/internal/keystring"
	"github.com/gnuk-go/cardengine/internal/nvram"
	"github.com/gnuk-go/cardengine/internal/rngsrc"
)

func newTestCard(t *testing.T) *Card {
	t.Helper()
	fs := afero.NewMemMapFs()

	poolMedium, err := nvram.OpenFileMedium(fs, "/pool.img", 2+2*4096)
	require.NoError(t, err)
	pool, err := nvram.Open(poolMedium)
	require.NoError(t, err)

	keyMedium, err := nvram.OpenFileMedium(fs, "/keys.img", 4*(2+nvram.KeySlotEncryptedLen+nvram.KeySlotModulusLen))
	require.NoError(t, err)
	arena, err := nvram.OpenKeySlotArena(keyMedium, 0, 4)
	require.NoError(t, err)

	cfg := catalog.Config{Manufacturer: 0xabcd, Serial: [4]byte{1, 2, 3, 4}, MaxCmdBytes: 1024, MaxResBytes: 2048}
	session := &Session{AdminOK: true}
	coll := Collaborators{
		Hasher:  collab.SHA1Hasher{},
		Cipher:  collab.AESCFB128Cipher{},
		RNG:     rngsrc.New(),
		Modulus: collab.StubModulusCalculator{},
	}

	c, err := NewCard(pool, arena, cfg, session, coll)
	require.NoError(t, err)
	return c
}

// keyImportPayload builds a minimal Extended Header List private-key
// template for roleByte ("\xb6"/"\xb8"/"\xa4" for sig/dec/aut):
// procKeyImport only inspects data[4] (the role tag) and the 26-byte
// header length before handing the remaining bytes to the modulus
// collaborator as 128-byte key material.
func keyImportPayload(roleByte byte, fill byte) []byte {
	data := make([]byte, 26+128)
	data[4] = roleByte
	for i := 26; i < len(data); i++ {
		data[i] = fill
	}
	return data
}

// TestFacadeGetDataMatchesLoginDataByteVector directly exercises the GET
// DATA round trip: put(tag, x); get(tag) == tag || len(x) || x. The
// status word is returned separately by GetData, not appended to body.
func TestFacadeGetDataMatchesLoginDataByteVector(t *testing.T) {
	c := newTestCard(t)

	sw := c.PutData(catalog.TagLoginData, []byte("alice@example.test"))
	require.Equal(t, SWSuccess, sw)

	body, sw := c.GetData(catalog.TagLoginData)
	require.Equal(t, SWSuccess, sw)
	require.Equal(t,
		[]byte{0x5e, 0x12, 0x61, 0x6c, 0x69, 0x63, 0x65, 0x40, 0x65, 0x78, 0x61, 0x6d, 0x70, 0x6c, 0x65, 0x2e, 0x74, 0x65, 0x73, 0x74},
		body)
}

// TestFacadePWStatusByteVectors matches the literal PW_STATUS bytes both
// before and after the lifetime bit is set.
func TestFacadePWStatusByteVectors(t *testing.T) {
	c := newTestCard(t)

	body, sw := c.GetData(catalog.TagPWStatus)
	require.Equal(t, SWSuccess, sw)
	require.Equal(t, []byte{0xc4, 0x07, 0x00, 0x7f, 0x7f, 0x7f, 0x03, 0x03, 0x03}, body)

	require.Equal(t, SWSuccess, c.PutData(catalog.TagPWStatus, []byte{0x01}))
	body, sw = c.GetData(catalog.TagPWStatus)
	require.Equal(t, SWSuccess, sw)
	require.Equal(t, []byte{0xc4, 0x07, 0x01, 0x7f, 0x7f, 0x7f, 0x03, 0x03, 0x03}, body)
}

// TestFacadeAppDataWrapsEveryChildInOrder exercises scenario
// 5: GET DATA on APPLICATION_DATA returns one outer 6E TLV wrapping
// every child tag, each separately framed, in the flattened order
// cmp_app_data uses.
func TestFacadeAppDataWrapsEveryChildInOrder(t *testing.T) {
	c := newTestCard(t)

	body, sw := c.GetData(catalog.TagApplicationData)
	require.Equal(t, SWSuccess, sw)
	require.NotEmpty(t, body)
	require.Equal(t, byte(0x6e), body[0])

	wantChildTags := []byte{0x4f, 0x5f, 0xc0, 0xc1, 0xc2, 0xc3, 0xc4, 0xc5, 0xc6, 0xcd}
	var gotChildTags []byte
	for i := 2; i < len(body); {
		tag := body[i]
		gotChildTags = append(gotChildTags, tag)
		i++
		if tag == 0x5f { // two-byte tag (Historical Bytes, 0x5F52)
			i++
		}
		length := int(body[i])
		i++
		i += length
	}
	require.Equal(t, wantChildTags, gotChildTags)
}

// TestScanAfterCompactPreservesState is "scan after compact"
// idempotence property: compact(); scan() must leave every live DO,
// private key, and telemetry counter exactly as it was before compaction.
func TestScanAfterCompactPreservesState(t *testing.T) {
	c := newTestCard(t)

	adminKS := keystring.Derive(c.Envelope.Hasher, []byte("12345678"))
	require.NoError(t, c.KS.Store(keystring.RolePW3, adminKS))

	require.Equal(t, SWSuccess, c.PutData(catalog.TagLoginData, []byte("alice@example.test")))
	require.Equal(t, SWSuccess, c.PutData(catalog.TagURL, []byte("https://example.test")))
	require.Equal(t, SWSuccess, c.PutData(catalog.TagKeyImport, keyImportPayload(0xb6, 0x11)))

	preLoginData, sw := c.GetData(catalog.TagLoginData)
	require.Equal(t, SWSuccess, sw)
	prePubKey, sw := c.GetPublicKey(envelope.RoleSigning)
	require.Equal(t, SWSuccess, sw)
	preNumPrvKeys := c.NumPrvKeys()
	preDataObjectBytes := c.DataObjectsNumberOfBytes()

	require.NoError(t, c.Compact())

	postLoginData, sw := c.GetData(catalog.TagLoginData)
	require.Equal(t, SWSuccess, sw)
	require.Equal(t, preLoginData, postLoginData)

	postURL, sw := c.GetData(catalog.TagURL)
	require.Equal(t, SWSuccess, sw)
	wantURL, err := catalog.EncodeTLV(catalog.TagURL, []byte("https://example.test"))
	require.NoError(t, err)
	require.Equal(t, wantURL, postURL)

	postPubKey, sw := c.GetPublicKey(envelope.RoleSigning)
	require.Equal(t, SWSuccess, sw)
	require.Equal(t, prePubKey, postPubKey)

	require.Equal(t, preNumPrvKeys, c.NumPrvKeys())
	require.Equal(t, preDataObjectBytes, c.DataObjectsNumberOfBytes())
}

// TestGetPublicKeyUnknownRoleIsNotFound confirms the façade's status-word
// mapping for a role with no stored key yet.
func TestGetPublicKeyUnknownRoleIsNotFound(t *testing.T) {
	c := newTestCard(t)
	_, sw := c.GetPublicKey(envelope.RoleDecryption)
	require.Equal(t, SWRecordNotFound, sw)
}

// TestPutDataDeniedWithoutAdmin confirms an ADMIN_AUTHORIZED write_ac
// entry (LOGIN_DATA) rejects the write when the session has not verified PW3.
func TestPutDataDeniedWithoutAdmin(t *testing.T) {
	c := newTestCard(t)
	c.Session.AdminOK = false
	sw := c.PutData(catalog.TagLoginData, []byte("x"))
	require.Equal(t, SWSecurityNotSatisfied, sw)
}
