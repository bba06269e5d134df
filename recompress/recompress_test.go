package recompress_test

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
	"github.com/dwarfs-go/dwarfs/recompress"
)

func buildSampleImage(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "src.dwarfs")
	f, err := os.Create(path)
	require.NoError(t, err)

	w, err := fswriter.New(context.Background(), f, fswriter.Config{
		DataSpec:     "null",
		SchemaSpec:   "null",
		MetadataSpec: "null",
		NumWorkers:   2,
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		b, err := block.New(uint32(i), 16)
		require.NoError(t, err)
		b.Append(bytes.Repeat([]byte{byte('A' + i)}, 10))
		b.Seal()
		w.SubmitBlock(b)
	}
	require.NoError(t, w.Wait())
	require.NoError(t, w.WriteMetadataSchema([]byte("schema-bytes")))
	require.NoError(t, w.WriteMetadata([]byte("metadata-bytes")))
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	return path
}

func TestRecompressIsContentPreserving(t *testing.T) {
	srcPath := buildSampleImage(t)

	srcReader, err := image.Open(srcPath)
	require.NoError(t, err)
	var wantBlocks [][]byte
	for _, s := range srcReader.BlocksInOrder() {
		wantBlocks = append(wantBlocks, append([]byte(nil), s.Payload...))
	}
	wantSchema, _ := srcReader.MetadataSchema()
	wantMeta, _ := srcReader.Metadata()
	wantSchemaBytes := append([]byte(nil), wantSchema.Payload...)
	wantMetaBytes := append([]byte(nil), wantMeta.Payload...)
	require.NoError(t, srcReader.Close())

	dstPath := filepath.Join(t.TempDir(), "dst.dwarfs")
	dst, err := os.Create(dstPath)
	require.NoError(t, err)
	require.NoError(t, recompress.Run(context.Background(), srcPath, dst, recompress.Options{
		DataSpec:     "null",
		SchemaSpec:   "null",
		MetadataSpec: "null",
		NumWorkers:   2,
	}))
	require.NoError(t, dst.Close())

	dstReader, err := image.Open(dstPath)
	require.NoError(t, err)
	defer dstReader.Close()

	gotBlocks := dstReader.BlocksInOrder()
	require.Len(t, gotBlocks, len(wantBlocks))
	for i, b := range gotBlocks {
		require.Equal(t, wantBlocks[i], b.Payload)
	}

	gotSchema, ok := dstReader.MetadataSchema()
	require.True(t, ok)
	require.Equal(t, wantSchemaBytes, gotSchema.Payload)

	gotMeta, ok := dstReader.Metadata()
	require.True(t, ok)
	require.Equal(t, wantMetaBytes, gotMeta.Payload)
}

func TestRecompressPreservesSectionCountForEmptyImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.dwarfs")
	f, err := os.Create(path)
	require.NoError(t, err)

	w, err := fswriter.New(context.Background(), f, fswriter.Config{
		DataSpec:     "null",
		SchemaSpec:   "null",
		MetadataSpec: "null",
		NumWorkers:   1,
	})
	require.NoError(t, err)
	require.NoError(t, w.Wait())
	require.NoError(t, w.WriteMetadataSchema([]byte("s")))
	require.NoError(t, w.WriteMetadata([]byte("m")))
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	dstPath := filepath.Join(dir, "empty-out.dwarfs")
	dst, err := os.Create(dstPath)
	require.NoError(t, err)
	require.NoError(t, recompress.Run(context.Background(), path, dst, recompress.Options{NumWorkers: 1}))
	require.NoError(t, dst.Close())

	r, err := image.Open(dstPath)
	require.NoError(t, err)
	defer r.Close()
	require.Len(t, r.BlocksInOrder(), 0)
}
