package scanstore_test

import (
	"testing"
	"time"

	"github.com/dwarfs-go/dwarfs/fsentry"
	"github.com/dwarfs-go/dwarfs/scanstore"
	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	s, err := scanstore.Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	entry := fsentry.Entry{
		Name: "file.txt",
		Kind: fsentry.KindRegular,
		Stat: fsentry.Stat{Mode: 0o644, UID: 1000, GID: 1000, ModTime: time.Unix(1000, 0)},
		Chunks: []fsentry.Chunk{{BlockID: 1, Offset: 0, Length: 10}},
	}
	require.NoError(t, s.Put(5, entry))

	got, ok, err := s.Get(5)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "file.txt", got.Name)
	require.Equal(t, fsentry.KindRegular, got.Kind)
	require.Equal(t, entry.Chunks, got.Chunks)
}

func TestGetMissingReturnsNotOk(t *testing.T) {
	s, err := scanstore.Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	_, ok, err := s.Get(99)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAllIteratesInAscendingHandleOrder(t *testing.T) {
	s, err := scanstore.Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put(3, fsentry.Entry{Name: "c"}))
	require.NoError(t, s.Put(1, fsentry.Entry{Name: "a"}))
	require.NoError(t, s.Put(2, fsentry.Entry{Name: "b"}))

	var order []int
	for h, e := range s.All() {
		order = append(order, h)
		_ = e
	}
	require.Equal(t, []int{1, 2, 3}, order)
}
