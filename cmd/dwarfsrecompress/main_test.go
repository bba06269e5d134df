package main

import (
	"flag"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func contextWithFlags(t *testing.T, set func(*flag.FlagSet)) *cli.Context {
	t.Helper()
	app := &cli.App{}
	fs := flag.NewFlagSet("test", flag.PanicOnError)
	fs.String("input", "/tmp/in.dwarfs", "")
	fs.String("output", "/tmp/out.dwarfs", "")
	fs.String("compression", "", "")
	fs.String("schema-compression", "", "")
	fs.String("metadata-compression", "", "")
	fs.Int("num-workers", 0, "")
	fs.String("log-level", "info", "")
	fs.Bool("no-progress", false, "")
	if set != nil {
		set(fs)
	}
	return cli.NewContext(app, fs, nil)
}

func TestOptionsFromFlagsDefaultsWorkersToNumCPU(t *testing.T) {
	ctx := contextWithFlags(t, nil)
	opts := optionsFromFlags(ctx)
	require.Equal(t, runtime.NumCPU(), opts.numWorkers)
	require.Equal(t, "/tmp/in.dwarfs", opts.input)
	require.Empty(t, opts.dataCompression)
}

func TestOptionsFromFlagsHonorsExplicitWorkerCount(t *testing.T) {
	ctx := contextWithFlags(t, func(fs *flag.FlagSet) {
		fs.Set("num-workers", "3")
		fs.Set("compression", "zstd:level=19")
	})
	opts := optionsFromFlags(ctx)
	require.Equal(t, 3, opts.numWorkers)
	require.Equal(t, "zstd:level=19", opts.dataCompression)
}
