package config_test

import (
	"errors"
	"testing"

	"github.com/dwarfs-go/dwarfs/config"
	"github.com/dwarfs-go/dwarfs/dwarfserr"
	"github.com/stretchr/testify/require"
)

func TestLevelDefaultsTable(t *testing.T) {
	cases := []struct {
		level       int
		blockBits   int
		windowSizes string
	}{
		{0, 20, "-"},
		{3, 20, "13"},
		{6, 23, "15,11"},
		{7, 24, "17,15,13,11"},
		{9, 24, "17,15,13,11"},
	}
	for _, c := range cases {
		got, err := config.LevelDefaults(c.level)
		require.NoError(t, err)
		require.Equal(t, c.blockBits, got.BlockSizeBits)
		require.Equal(t, c.windowSizes, got.WindowSizes)
	}
}

func TestLevelDefaultsOutOfRange(t *testing.T) {
	_, err := config.LevelDefaults(10)
	require.Error(t, err)
	require.True(t, errors.Is(err, dwarfserr.ErrBadParameter))

	_, err = config.LevelDefaults(-1)
	require.Error(t, err)
}

func TestAllLevelsMetadataCompressionTurnsOnLate(t *testing.T) {
	all := config.AllLevels()
	for i := 0; i < 8; i++ {
		require.Equal(t, "null", all[i].MetadataCompression)
	}
	require.NotEqual(t, "null", all[8].MetadataCompression)
	require.NotEqual(t, "null", all[9].MetadataCompression)
}
