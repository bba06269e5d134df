package segmenter_test

import (
	"math/rand"
	"testing"

	"github.com/dwarfs-go/dwarfs/block"
	"github.com/dwarfs-go/dwarfs/segmenter"
	"github.com/stretchr/testify/require"
)

func reconstruct(blocks map[uint32][]byte, chunks []segmenter.Chunk) []byte {
	var out []byte
	for _, c := range chunks {
		out = append(out, blocks[c.BlockID][c.Offset:c.Offset+c.Length]...)
	}
	return out
}

func newManagerCollectingBlocks(t *testing.T, blockSizeBits int, windowBits []int) (*segmenter.Manager, map[uint32][]byte) {
	t.Helper()
	blocks := map[uint32][]byte{}
	mgr, err := segmenter.New(segmenter.Config{
		BlockSizeBits: blockSizeBits,
		WindowBits:    windowBits,
	}, func(b *block.Block) error {
		buf := make([]byte, b.Len())
		copy(buf, b.Bytes())
		blocks[b.ID] = buf
		return nil
	})
	require.NoError(t, err)
	return mgr, blocks
}

func TestReconstructsExactBytesNoSegmentation(t *testing.T) {
	mgr, blocks := newManagerCollectingBlocks(t, 16, nil)

	data := make([]byte, 10000)
	rand.New(rand.NewSource(42)).Read(data)

	chunks, err := mgr.Append(data)
	require.NoError(t, err)
	require.NoError(t, mgr.Flush())

	require.Equal(t, data, reconstruct(blocks, chunks))
}

func TestIdenticalFilesDeduplicate(t *testing.T) {
	mgr, blocks := newManagerCollectingBlocks(t, 20, []int{11, 13})

	data := make([]byte, 64*1024)
	rand.New(rand.NewSource(7)).Read(data)

	chunksX, err := mgr.Append(data)
	require.NoError(t, err)
	chunksY, err := mgr.Append(data)
	require.NoError(t, err)
	require.NoError(t, mgr.Flush())

	require.Equal(t, data, reconstruct(blocks, chunksX))
	require.Equal(t, data, reconstruct(blocks, chunksY))

	totalBlockBytes := 0
	for _, b := range blocks {
		totalBlockBytes += len(b)
	}
	// Second file should be almost entirely back-references into the
	// first, so total stored bytes should be far less than 2x the input.
	require.Less(t, totalBlockBytes, len(data)+len(data)/4)
}

func TestRepeatedBufferWithinFileDeduplicates(t *testing.T) {
	mgr, blocks := newManagerCollectingBlocks(t, 20, []int{11})

	chunk4k := make([]byte, 4096)
	rand.New(rand.NewSource(3)).Read(chunk4k)

	var data []byte
	for i := 0; i < 10; i++ {
		data = append(data, chunk4k...)
	}

	chunks, err := mgr.Append(data)
	require.NoError(t, err)
	require.NoError(t, mgr.Flush())

	require.Equal(t, data, reconstruct(blocks, chunks))

	totalBlockBytes := 0
	for _, b := range blocks {
		totalBlockBytes += len(b)
	}
	require.Less(t, totalBlockBytes, len(chunk4k)*3)
}

func TestSealsAtBlockCapacity(t *testing.T) {
	mgr, blocks := newManagerCollectingBlocks(t, 12, nil) // 4096-byte blocks

	data := make([]byte, 10000)
	rand.New(rand.NewSource(9)).Read(data)

	chunks, err := mgr.Append(data)
	require.NoError(t, err)
	require.NoError(t, mgr.Flush())

	require.Equal(t, data, reconstruct(blocks, chunks))
	require.GreaterOrEqual(t, len(blocks), 3) // 10000/4096 rounds up to at least 3 blocks

	for id, b := range blocks {
		require.LessOrEqual(t, len(b), 1<<12, "block %d exceeds its cap", id)
	}
}

func TestRejectsOutOfRangeBlockSizeBits(t *testing.T) {
	_, err := segmenter.New(segmenter.Config{BlockSizeBits: 4}, nil)
	require.Error(t, err)
}
