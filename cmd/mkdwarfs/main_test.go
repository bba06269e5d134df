package main

import (
	"flag"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/dwarfs-go/dwarfs/config"
	"github.com/dwarfs-go/dwarfs/metadata"
)

func contextWithFlags(t *testing.T, set func(*flag.FlagSet)) *cli.Context {
	t.Helper()
	app := &cli.App{}
	fs := flag.NewFlagSet("test", flag.PanicOnError)
	fs.String("input", "/tmp/in", "")
	fs.String("output", "/tmp/out.dwarfs", "")
	fs.Int("compress-level", config.DefaultLevel, "")
	fs.Int("block-size-bits", 0, "")
	fs.Int("num-workers", 0, "")
	fs.Int("max-scanner-workers", 0, "")
	fs.String("memory-limit", "1g", "")
	fs.String("compression", "", "")
	fs.String("schema-compression", "", "")
	fs.String("metadata-compression", "", "")
	fs.String("blockhash-window-sizes", "", "")
	fs.Int("window-increment-shift", 1, "")
	fs.String("order", "similarity", "")
	fs.String("script", "", "")
	fs.String("set-owner", "", "")
	fs.String("set-group", "", "")
	fs.String("set-time", "", "")
	fs.Bool("recompress", false, "")
	fs.String("log-level", "info", "")
	fs.Bool("no-progress", false, "")
	if set != nil {
		set(fs)
	}
	return cli.NewContext(app, fs, nil)
}

func TestOptionsFromFlagsAppliesLevelDefaults(t *testing.T) {
	ctx := contextWithFlags(t, nil)
	opts, err := optionsFromFlags(ctx)
	require.NoError(t, err)

	defaults, err := config.LevelDefaults(config.DefaultLevel)
	require.NoError(t, err)
	require.Equal(t, defaults.BlockSizeBits, opts.BlockSizeBits)
	require.Equal(t, defaults.DataCompression, opts.DataCompression)
	require.Equal(t, config.OrderSimilarity, opts.Order)
	require.Nil(t, opts.SetOwner)
}

func TestOptionsFromFlagsOverridesLevelDefaults(t *testing.T) {
	ctx := contextWithFlags(t, func(fs *flag.FlagSet) {
		fs.Set("block-size-bits", "16")
		fs.Set("compression", "lz4")
		fs.Set("blockhash-window-sizes", "13,11")
	})
	opts, err := optionsFromFlags(ctx)
	require.NoError(t, err)
	require.Equal(t, 16, opts.BlockSizeBits)
	require.Equal(t, "lz4", opts.DataCompression)
	require.Equal(t, []int{13, 11}, opts.WindowSizes)
}

func TestOptionsFromFlagsRequiresScriptWhenOrderIsScript(t *testing.T) {
	ctx := contextWithFlags(t, func(fs *flag.FlagSet) {
		fs.Set("order", "script")
	})
	_, err := optionsFromFlags(ctx)
	require.Error(t, err)
}

func TestOptionsFromFlagsParsesOwnerGroupAndTime(t *testing.T) {
	ctx := contextWithFlags(t, func(fs *flag.FlagSet) {
		fs.Set("set-owner", "1000")
		fs.Set("set-group", "1000")
		fs.Set("set-time", "0")
	})
	opts, err := optionsFromFlags(ctx)
	require.NoError(t, err)
	require.NotNil(t, opts.SetOwner)
	require.EqualValues(t, 1000, *opts.SetOwner)
	require.NotNil(t, opts.SetGroup)
	require.NotNil(t, opts.SetTime)
	require.True(t, opts.SetTime.IsZero() == false || opts.SetTime.Unix() == 0)
}

func TestOptionsFromFlagsRejectsBadCompressLevel(t *testing.T) {
	ctx := contextWithFlags(t, func(fs *flag.FlagSet) {
		fs.Set("compress-level", "42")
	})
	_, err := optionsFromFlags(ctx)
	require.Error(t, err)
}

func TestExitCodeForNonFatalVsFatal(t *testing.T) {
	require.Equal(t, 1, exitCodeFor(errNonFatalOccurred))
	require.Equal(t, 2, exitCodeFor(cli.Exit("boom", 1)))
}

func TestSchemaRoundTripsOwnerGroupAndTimeOverrides(t *testing.T) {
	m := &metadata.Metadata{BlockSizeBits: 16}
	owner := uint32(1000)
	group := uint32(1000)
	when := time.Unix(1700000000, 0)
	opts := config.BuilderOptions{SetOwner: &owner, SetGroup: &group, SetTime: &when}

	schema := buildSchema(m, opts)
	decoded, err := openOptionsFromSchema(schema)
	require.NoError(t, err)
	require.EqualValues(t, owner, decoded.UID)
	require.EqualValues(t, group, decoded.GID)
	require.True(t, decoded.ModTime.Equal(when))
}

func TestSchemaLeavesDefaultsZeroWhenOverridesUnset(t *testing.T) {
	m := &metadata.Metadata{BlockSizeBits: 16}
	schema := buildSchema(m, config.BuilderOptions{})

	decoded, err := openOptionsFromSchema(schema)
	require.NoError(t, err)
	require.Zero(t, decoded.UID)
	require.Zero(t, decoded.GID)
	require.True(t, decoded.ModTime.IsZero())
}

func TestOpenOptionsFromSchemaRejectsBadMagic(t *testing.T) {
	_, err := openOptionsFromSchema([]byte("not a schema at all"))
	require.Error(t, err)
}
