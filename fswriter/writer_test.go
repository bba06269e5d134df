package fswriter_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dwarfs-go/dwarfs/block"
	"github.com/dwarfs-go/dwarfs/fswriter"
	"github.com/dwarfs-go/dwarfs/image"
)

func createTempImage(t *testing.T) (*os.File, error) {
	t.Helper()
	return os.Create(filepath.Join(t.TempDir(), "test.dwarfs"))
}

func TestWriterPreservesBlockOrderUnderConcurrency(t *testing.T) {
	var out bytes.Buffer

	w, err := fswriter.New(context.Background(), &out, fswriter.Config{
		DataSpec:     "null",
		SchemaSpec:   "null",
		MetadataSpec: "null",
		NumWorkers:   8,
	})
	require.NoError(t, err)

	const numBlocks = 20
	blocks := make([]*block.Block, numBlocks)
	for i := 0; i < numBlocks; i++ {
		b, err := block.New(uint32(i), 16)
		require.NoError(t, err)
		// Later blocks get more bytes, so if compression completed
		// out of order a same-size sentinel wouldn't catch it; a
		// varying payload per block will.
		b.Append(bytes.Repeat([]byte{byte(i)}, i+1))
		b.Seal()
		blocks[i] = b
	}

	// Submit in reverse to exercise the reorder buffer: the highest block
	// ids (the largest payloads) reach the workers first, and the output
	// must still come out in block id order whatever the timing.
	for i := numBlocks - 1; i >= 0; i-- {
		w.SubmitBlock(blocks[i])
	}

	require.NoError(t, w.Wait())
	require.NoError(t, w.WriteMetadataSchema([]byte("schema")))
	require.NoError(t, w.WriteMetadata([]byte("metadata")))
	require.NoError(t, w.Close())

	path := writeToFile(t, out.Bytes())
	r, err := image.Open(path)
	require.NoError(t, err)
	defer r.Close()

	blockSections := r.BlocksInOrder()
	require.Len(t, blockSections, numBlocks)
	for i, sec := range blockSections {
		require.Equal(t, bytes.Repeat([]byte{byte(i)}, i+1), sec.Payload)
	}

	schema, ok := r.MetadataSchema()
	require.True(t, ok)
	require.Equal(t, []byte("schema"), schema.Payload)

	meta, ok := r.Metadata()
	require.True(t, ok)
	require.Equal(t, []byte("metadata"), meta.Payload)
}

func writeToFile(t *testing.T, data []byte) string {
	t.Helper()
	f, err := createTempImage(t)
	require.NoError(t, err)
	_, err = f.Write(data)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return f.Name()
}
