package image_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/dwarfs-go/dwarfs/image"
	"github.com/stretchr/testify/require"
)

func writeSampleImage(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	_, err := image.WriteMagic(&buf)
	require.NoError(t, err)

	s1 := image.NewSection(image.KindBlock, "null", 5, []byte("hello"))
	s2 := image.NewSection(image.KindBlock, "null", 3, []byte("abc"))
	s3 := image.NewSection(image.KindMetadataSchema, "null", 2, []byte("ms"))
	s4 := image.NewSection(image.KindMetadata, "null", 4, []byte("meta"))

	bodyStart := buf.Len()
	for _, s := range []image.Section{s1, s2, s3, s4} {
		_, err := image.WriteSection(&buf, s)
		require.NoError(t, err)
	}
	body := buf.Bytes()[bodyStart:]

	_, err = image.WriteTrailer(&buf, 4, body)
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "test.dwarfs")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestOpenReadsAllSectionsInOrder(t *testing.T) {
	path := writeSampleImage(t)
	r, err := image.Open(path)
	require.NoError(t, err)
	defer r.Close()

	require.Len(t, r.Sections, 4)
	require.Equal(t, image.KindBlock, r.Sections[0].Kind)
	require.Equal(t, []byte("hello"), r.Sections[0].Payload)
	require.Equal(t, []byte("abc"), r.Sections[1].Payload)

	schema, ok := r.MetadataSchema()
	require.True(t, ok)
	require.Equal(t, []byte("ms"), schema.Payload)

	meta, ok := r.Metadata()
	require.True(t, ok)
	require.Equal(t, []byte("meta"), meta.Payload)

	require.Len(t, r.BlocksInOrder(), 2)
}

func TestOpenRejectsCorruptedPayload(t *testing.T) {
	path := writeSampleImage(t)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	// Flip a byte inside the first section's payload (magic=4 bytes,
	// header=kind(1)+algoLen(1)+"null"(4)+sizes(8)+mac(32)=46 bytes, so
	// "hello" starts at offset 50). That breaks both the section's MAC and
	// the trailer's whole-image MAC; Open checks the trailer first and
	// fails there.
	data[51] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = image.Open(path)
	require.Error(t, err)
}

func TestReadSectionRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	s := image.NewSection(image.KindBlock, "null", 7, []byte("payload"))
	_, err := image.WriteSection(&buf, s)
	require.NoError(t, err)

	got, err := image.ReadSection(&buf)
	require.NoError(t, err)
	require.Equal(t, s.Payload, got.Payload)
	require.Equal(t, s.MAC, got.MAC)
}
