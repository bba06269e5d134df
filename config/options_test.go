package config_test

import (
	"testing"

	"github.com/dwarfs-go/dwarfs/config"
	"github.com/stretchr/testify/require"
)

func TestParseFileOrder(t *testing.T) {
	o, err := config.ParseFileOrder("path")
	require.NoError(t, err)
	require.Equal(t, config.OrderPath, o)
	require.Equal(t, "path", o.String())

	o, err = config.ParseFileOrder("")
	require.NoError(t, err)
	require.Equal(t, config.OrderSimilarity, o)

	_, err = config.ParseFileOrder("bogus")
	require.Error(t, err)
}

func TestParseMemoryLimit(t *testing.T) {
	n, err := config.ParseMemoryLimit("")
	require.NoError(t, err)
	require.EqualValues(t, config.DefaultMemoryLimit, n)

	n, err = config.ParseMemoryLimit("512M")
	require.NoError(t, err)
	require.Greater(t, n, uint64(0))
}

func TestParseWindowSizes(t *testing.T) {
	sizes, err := config.ParseWindowSizes("17,15,13,11")
	require.NoError(t, err)
	require.Equal(t, []int{17, 15, 13, 11}, sizes)

	sizes, err = config.ParseWindowSizes("-")
	require.NoError(t, err)
	require.Nil(t, sizes)

	sizes, err = config.ParseWindowSizes("")
	require.NoError(t, err)
	require.Nil(t, sizes)

	_, err = config.ParseWindowSizes("17,bogus")
	require.Error(t, err)
}
