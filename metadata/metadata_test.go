package metadata_test

import (
	"bytes"
	"testing"

	"github.com/dwarfs-go/dwarfs/fsentry"
	"github.com/dwarfs-go/dwarfs/metadata"
	"github.com/stretchr/testify/require"
)

const (
	sIFDIR = 0o040000
	sIFREG = 0o100000
	sIFLNK = 0o120000
)

func buildSampleTree() []fsentry.Entry {
	tr := fsentry.NewTree(fsentry.Stat{Mode: sIFDIR | 0o755})
	root := tr.Root()
	sub := tr.AddDirectory(root, "sub", fsentry.Stat{Mode: sIFDIR | 0o755})
	tr.AddFile(root, "zeta.txt", fsentry.Stat{Mode: sIFREG | 0o644}, []fsentry.Chunk{{BlockID: 0, Offset: 0, Length: 10}})
	tr.AddFile(sub, "b.txt", fsentry.Stat{Mode: sIFREG | 0o644}, []fsentry.Chunk{{BlockID: 0, Offset: 10, Length: 5}, {BlockID: 1, Offset: 0, Length: 3}})
	tr.AddSymlink(sub, "a.link", fsentry.Stat{Mode: sIFLNK | 0o777}, "b.txt")
	return tr.Finalize()
}

func TestBuildAndFindPath(t *testing.T) {
	entries := buildSampleTree()
	m := metadata.Build(entries, 20)
	r := metadata.NewReader(m, metadata.OpenOptions{})

	inode, ok := r.Find("sub/b.txt")
	require.True(t, ok)

	st, err := r.Getattr(inode)
	require.NoError(t, err)
	require.EqualValues(t, 8, st.Size) // 5 + 3 chunk bytes
}

func TestFindMissingPath(t *testing.T) {
	entries := buildSampleTree()
	m := metadata.Build(entries, 20)
	r := metadata.NewReader(m, metadata.OpenOptions{})

	_, ok := r.Find("sub/missing")
	require.False(t, ok)
}

func TestGetattrMasksWriteBits(t *testing.T) {
	entries := buildSampleTree()
	m := metadata.Build(entries, 20)
	r := metadata.NewReader(m, metadata.OpenOptions{})

	inode, ok := r.Find("sub/a.link")
	require.True(t, ok)
	st, err := r.Getattr(inode)
	require.NoError(t, err)
	require.EqualValues(t, 0, st.Mode&0o222)
	require.EqualValues(t, len("b.txt"), st.Size)
}

func TestWalkVisitsEveryEntryOnce(t *testing.T) {
	entries := buildSampleTree()
	m := metadata.Build(entries, 20)
	r := metadata.NewReader(m, metadata.OpenOptions{})

	visited := map[uint32]bool{}
	require.NoError(t, r.Walk(func(inode uint32, name string) error {
		visited[inode] = true
		return nil
	}))
	require.Len(t, visited, len(entries))
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	entries := buildSampleTree()
	m := metadata.Build(entries, 20)

	data, err := m.Serialize()
	require.NoError(t, err)

	m2, err := metadata.Deserialize(data)
	require.NoError(t, err)
	require.Equal(t, m.Names, m2.Names)
	require.Equal(t, m.Entries, m2.Entries)
	require.Equal(t, m.ChunkIndex, m2.ChunkIndex)
	require.Equal(t, m.Chunks, m2.Chunks)
	require.Equal(t, m.Links, m2.Links)

	r2 := metadata.NewReader(m2, metadata.OpenOptions{})
	inode, ok := r2.Find("zeta.txt")
	require.True(t, ok)
	st, err := r2.Getattr(inode)
	require.NoError(t, err)
	require.EqualValues(t, 10, st.Size)
}

func TestModeStringFormat(t *testing.T) {
	s := metadata.ModeString(0o755, true, false)
	require.Len(t, s, 13)
	require.Equal(t, "---drwxr-xr-x", s)
}

func TestDumpWritesOneLinePerEntryAndInvokesChunkCallback(t *testing.T) {
	entries := buildSampleTree()
	m := metadata.Build(entries, 20)
	r := metadata.NewReader(m, metadata.OpenOptions{})

	var buf bytes.Buffer
	chunkCount := 0
	require.NoError(t, r.Dump(&buf, func(inode uint32, c metadata.ChunkRecord) {
		chunkCount++
	}))
	require.Equal(t, 3, chunkCount) // zeta.txt (1) + sub/b.txt (2)
	require.Contains(t, buf.String(), "zeta.txt")
}
