package scriptplugin

import (
	"testing"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/stretchr/testify/require"

	"github.com/dwarfs-go/dwarfs/scanner"
)

type fakeFilterer struct {
	lastMeta scanner.EntryMeta
}

func (f *fakeFilterer) Filter(meta scanner.EntryMeta) (bool, error) {
	f.lastMeta = meta
	return meta.Size > 0, nil
}

func (f *fakeFilterer) OrderKey(meta scanner.EntryMeta) (uint64, error) {
	return uint64(meta.Size), nil
}

func TestRPCServerRoundTripsEntryMeta(t *testing.T) {
	impl := &fakeFilterer{}
	srv := &filterRPCServer{Impl: impl}

	payload, err := msgpack.Marshal(wireMeta{Path: "a/b.txt", Size: 42, Mode: 0o644})
	require.NoError(t, err)

	var keep bool
	require.NoError(t, srv.Filter(payload, &keep))
	require.True(t, keep)
	require.Equal(t, "a/b.txt", impl.lastMeta.Path)
	require.EqualValues(t, 42, impl.lastMeta.Size)

	var key uint64
	require.NoError(t, srv.OrderKey(payload, &key))
	require.EqualValues(t, 42, key)
}

func TestRPCServerRejectsMalformedPayload(t *testing.T) {
	srv := &filterRPCServer{Impl: &fakeFilterer{}}
	var keep bool
	err := srv.Filter([]byte{0xff, 0xff, 0xff}, &keep)
	require.Error(t, err)
}
