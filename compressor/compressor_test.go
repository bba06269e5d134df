package compressor_test

import (
	"errors"
	"testing"

	"github.com/dwarfs-go/dwarfs/compressor"
	"github.com/dwarfs-go/dwarfs/dwarfserr"
	"github.com/stretchr/testify/require"
)

func TestNullRoundTrip(t *testing.T) {
	c, err := compressor.New("null")
	require.NoError(t, err)
	require.Equal(t, "null", c.Name())

	src := []byte("hello dwarfs")
	compressed, err := c.Compress(src)
	require.NoError(t, err)
	out, err := c.Decompress(compressed, len(src))
	require.NoError(t, err)
	require.Equal(t, src, out)
}

func TestLZ4RoundTrip(t *testing.T) {
	c, err := compressor.New("lz4:level=4")
	require.NoError(t, err)

	src := bytesRepeat("the quick brown fox jumps over the lazy dog ", 200)
	compressed, err := c.Compress(src)
	require.NoError(t, err)
	require.Less(t, len(compressed), len(src))

	out, err := c.Decompress(compressed, len(src))
	require.NoError(t, err)
	require.Equal(t, src, out)
}

func TestZstdRoundTrip(t *testing.T) {
	c, err := compressor.New("zstd:level=19")
	require.NoError(t, err)

	src := bytesRepeat("dwarfs segmenter test payload ", 500)
	compressed, err := c.Compress(src)
	require.NoError(t, err)

	out, err := c.Decompress(compressed, len(src))
	require.NoError(t, err)
	require.Equal(t, src, out)
}

func TestLZMARoundTrip(t *testing.T) {
	c, err := compressor.New("lzma:level=6")
	require.NoError(t, err)

	src := bytesRepeat("lzma payload for recompress testing ", 300)
	compressed, err := c.Compress(src)
	require.NoError(t, err)

	out, err := c.Decompress(compressed, len(src))
	require.NoError(t, err)
	require.Equal(t, src, out)
}

func TestUnknownAlgorithm(t *testing.T) {
	_, err := compressor.New("brotli")
	require.Error(t, err)
	require.True(t, errors.Is(err, dwarfserr.ErrUnknownAlgorithm))
}

func TestBadParameter(t *testing.T) {
	_, err := compressor.New("")
	require.Error(t, err)
	require.True(t, errors.Is(err, dwarfserr.ErrBadParameter))

	_, err = compressor.New("lz4:level=not-a-number")
	require.Error(t, err)
	require.True(t, errors.Is(err, dwarfserr.ErrBadParameter))
}

func bytesRepeat(s string, n int) []byte {
	out := make([]byte, 0, len(s)*n)
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return out
}
