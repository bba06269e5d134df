// Command dwarfsrecompress rewrites the compressed sections of an existing
// DwarFS image with new algorithms, without touching the uncompressed
// content, per spec.md §4.8. It is mkdwarfs's --recompress path split into
// its own binary: a recompress-only install shouldn't need the full builder
// flag set.
package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/dwarfs-go/dwarfs/appctx"
	"github.com/dwarfs-go/dwarfs/logging"
	"github.com/dwarfs-go/dwarfs/progress"
	"github.com/dwarfs-go/dwarfs/recompress"
)

func main() {
	app := &cli.App{
		Name:  "dwarfsrecompress",
		Usage: "recompress the sections of a DwarFS image with new algorithms",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Required: true, Usage: "path to the source image"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Required: true, Usage: "path to the recompressed image"},
			&cli.StringFlag{Name: "compression", Usage: "new block compressor spec (keeps original if unset)"},
			&cli.StringFlag{Name: "schema-compression", Usage: "new schema compressor spec (keeps original if unset)"},
			&cli.StringFlag{Name: "metadata-compression", Usage: "new metadata compressor spec (keeps original if unset)"},
			&cli.IntFlag{Name: "num-workers", Usage: "recompression worker count (default: number of CPUs)"},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "trace, debug, info, warn, error"},
			&cli.BoolFlag{Name: "no-progress", Usage: "disable the periodic progress line on stderr"},
		},
		Action: runAction,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "dwarfsrecompress:", err)
		os.Exit(1)
	}
}

func runAction(c *cli.Context) error {
	opts := optionsFromFlags(c)

	logger := logging.New(os.Stderr, logging.ParseLevel(opts.logLevel))
	prog := progress.New(nil)
	bc := appctx.New(logger, prog)
	defer bc.Close()

	var ticker *progress.Ticker
	if !opts.noProgress {
		ticker = progress.StartTicker(prog, 200*time.Millisecond, func(s progress.Snapshot) {
			logger.Stderr("%s", s.String())
		})
		defer ticker.Stop()
	}

	out, err := os.Create(opts.output)
	if err != nil {
		return fmt.Errorf("dwarfsrecompress: create %q: %w", opts.output, err)
	}
	defer out.Close()

	return recompress.Run(bc.Context, opts.input, out, recompress.Options{
		DataSpec:     opts.dataCompression,
		SchemaSpec:   opts.schemaCompression,
		MetadataSpec: opts.metadataCompression,
		NumWorkers:   opts.numWorkers,
		Logger:       logger,
	})
}

type recompressOptions struct {
	input  string
	output string

	dataCompression     string
	schemaCompression   string
	metadataCompression string

	numWorkers int

	logLevel   string
	noProgress bool
}

func optionsFromFlags(c *cli.Context) recompressOptions {
	numWorkers := c.Int("num-workers")
	if numWorkers == 0 {
		numWorkers = runtime.NumCPU()
	}
	return recompressOptions{
		input:               c.String("input"),
		output:              c.String("output"),
		dataCompression:     c.String("compression"),
		schemaCompression:   c.String("schema-compression"),
		metadataCompression: c.String("metadata-compression"),
		numWorkers:          numWorkers,
		logLevel:            c.String("log-level"),
		noProgress:          c.Bool("no-progress"),
	}
}
