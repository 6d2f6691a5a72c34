package counters

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gnuk-go/cardengine/internal/nvram"
)

func TestPWErrIncrementLockReset(t *testing.T) {
	pool := newPool(t)
	pw := NewPWErr(pool, nvram.PWErrPW1)

	require.Equal(t, 0, pw.Value())
	require.False(t, pw.Locked())

	for k := 1; k <= 3; k++ {
		require.NoError(t, pw.Increment())
		require.Equal(t, k, pw.Value())
		require.Equal(t, k >= PasswordErrorsMax, pw.Locked())
	}

	require.NoError(t, pw.Clear())
	require.Equal(t, 0, pw.Value())
	require.False(t, pw.Locked())
}

func TestPWErrInPlaceUpdateDoesNotAppendNewCells(t *testing.T) {
	pool := newPool(t)
	pw := NewPWErr(pool, nvram.PWErrRC)

	require.NoError(t, pw.Increment())
	firstFree := pool.FreeBytes()
	for i := 0; i < 10; i++ {
		require.NoError(t, pw.Increment())
	}
	require.Equal(t, firstFree, pool.FreeBytes(), "in-place bit clears must not consume pool space")
}

func TestPWErrSaturatesAtSixteen(t *testing.T) {
	pool := newPool(t)
	pw := NewPWErr(pool, nvram.PWErrPW3)
	for i := 0; i < 20; i++ {
		require.NoError(t, pw.Increment())
	}
	require.Equal(t, nvram.MaxCounter123Increments, pw.Value())
}

func TestPWErrScanObserve(t *testing.T) {
	pool := newPool(t)
	pw := NewPWErr(pool, nvram.PWErrPW1)
	require.NoError(t, pw.Increment())
	require.NoError(t, pw.Increment())

	rescan := NewPWErr(pool, nvram.PWErrPW1)
	other := NewPWErr(pool, nvram.PWErrRC)
	require.NoError(t, pool.Scan(func(ref nvram.Ref, h nvram.Header, payload []byte) error {
		rescan.Observe(ref, h, payload)
		other.Observe(ref, h, payload)
		return nil
	}))
	require.Equal(t, 2, rescan.Value())
	require.Equal(t, 0, other.Value())
}
