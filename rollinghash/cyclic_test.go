package rollinghash_test

import (
	"math/rand"
	"testing"

	"github.com/dwarfs-go/dwarfs/rollinghash"
	"github.com/stretchr/testify/require"
)

func TestIncrementalMatchesDirectSum(t *testing.T) {
	const window = 16
	data := make([]byte, 256)
	rnd := rand.New(rand.NewSource(1))
	rnd.Read(data)

	h := rollinghash.New(window)
	h.Prime(data[:window])
	require.Equal(t, rollinghash.Sum(data[:window]), h.Hash())

	for pos := window; pos < len(data); pos++ {
		byteOut := data[pos-window]
		byteIn := data[pos]
		got := h.Update(byteOut, byteIn)
		want := rollinghash.Sum(data[pos-window+1 : pos+1])
		require.Equal(t, want, got, "mismatch at position %d", pos)
	}
}

func TestIdenticalWindowsHashIdentically(t *testing.T) {
	const window = 8
	a := []byte("abcdefgh")
	b := []byte("abcdefgh")
	require.Equal(t, rollinghash.Sum(a), rollinghash.Sum(b))

	c := []byte("abcdefgx")
	require.NotEqual(t, rollinghash.Sum(a), rollinghash.Sum(c))
}
