package api_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/gnuk-go/cardengine/api"
	"github.com/gnuk-go/cardengine/api/handlers"
	"github.com/gnuk-go/cardengine/internal/card"
	"github.com/gnuk-go/cardengine/internal/catalog"
	"github.com/gnuk-go/cardengine/internal/collab"
	"github.com/gnuk-go/cardengine/internal/nvram"
	"github.com/gnuk-go/cardengine/internal/rngsrc"
)

func newTestCard(t *testing.T) *card.Card {
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
	session := &card.Session{AdminOK: true}
	coll := card.Collaborators{
		Hasher:  collab.SHA1Hasher{},
		Cipher:  collab.AESCFB128Cipher{},
		RNG:     rngsrc.New(),
		Modulus: collab.StubModulusCalculator{},
	}

	c, err := card.NewCard(pool, arena, cfg, session, coll)
	require.NoError(t, err)
	return c
}

func TestGetDataRoundTrip(t *testing.T) {
	c := newTestCard(t)
	srv := &handlers.CardServer{Card: c}
	router := api.NewRouter(srv, 1000, 1000)

	ts := httptest.NewServer(router)
	defer ts.Close()

	req, err := http.NewRequest(http.MethodPut, ts.URL+"/api/v1/card/data/5e", strings.NewReader("alice@example.test"))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/api/v1/card/data/5e")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetDataUnknownTagIsNotFound(t *testing.T) {
	c := newTestCard(t)
	srv := &handlers.CardServer{Card: c}
	router := api.NewRouter(srv, 1000, 1000)

	ts := httptest.NewServer(router)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/card/data/ffff")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRateLimitReturns429(t *testing.T) {
	c := newTestCard(t)
	srv := &handlers.CardServer{Card: c}
	router := api.NewRouter(srv, 0.000001, 1)

	ts := httptest.NewServer(router)
	defer ts.Close()

	first, err := http.Get(ts.URL + "/api/v1/card/data/4f")
	require.NoError(t, err)
	first.Body.Close()

	second, err := http.Get(ts.URL + "/api/v1/card/data/4f")
	require.NoError(t, err)
	defer second.Body.Close()
	require.Equal(t, http.StatusTooManyRequests, second.StatusCode)
}
