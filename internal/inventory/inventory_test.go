package inventory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("sqlite", "file::memory:?cache=shared")
	require.NoError(t, err)
	return s
}

func TestUpsertAndListCards(t *testing.T) {
	s := openTestStore(t)

	card, err := s.UpsertCard("AABBCCDD", "/var/lib/cardengine/aabbccdd.img", 0xabcd)
	require.NoError(t, err)
	require.NotZero(t, card.ID)

	again, err := s.UpsertCard("AABBCCDD", "/var/lib/cardengine/aabbccdd.img", 0xabcd)
	require.NoError(t, err)
	require.Equal(t, card.ID, again.ID, "upsert by serial must not duplicate the row")

	cards, err := s.ListCards()
	require.NoError(t, err)
	require.Len(t, cards, 1)
}

func TestRecordScanAndAudit(t *testing.T) {
	s := openTestStore(t)
	card, err := s.UpsertCard("11223344", "/tmp/card.img", 1)
	require.NoError(t, err)

	require.NoError(t, s.RecordScan("11223344", 4096, 2, 512))
	got, err := s.CardBySerial("11223344")
	require.NoError(t, err)
	require.EqualValues(t, 4096, got.LastFreeBytes)
	require.Equal(t, 2, got.LastNumPrvKeys)
	require.Equal(t, 512, got.LastDataObjectBytes)

	require.NoError(t, s.AppendAudit(card.ID, 0x005e, "put", 0x9000))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("oracle", "whatever")
	require.Error(t, err)
}
