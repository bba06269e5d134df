// Command mkdwarfs builds a DwarFS image from a source directory tree, per
// spec.md §6's CLI surface.
//
// Grounded on nydusify's cmd/nydusify.go: a single urfave/cli/v2 app, flags
// declared as a literal []cli.Flag slice, an Action closure that validates
// cross-flag constraints and then drives the real work through a plain
// function (here, runBuild or runRecompress).
package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/dwarfs-go/dwarfs/appctx"
	"github.com/dwarfs-go/dwarfs/block"
	"github.com/dwarfs-go/dwarfs/config"
	"github.com/dwarfs-go/dwarfs/dwarfserr"
	"github.com/dwarfs-go/dwarfs/fswriter"
	"github.com/dwarfs-go/dwarfs/logging"
	"github.com/dwarfs-go/dwarfs/metadata"
	"github.com/dwarfs-go/dwarfs/progress"
	"github.com/dwarfs-go/dwarfs/recompress"
	"github.com/dwarfs-go/dwarfs/scanner"
	"github.com/dwarfs-go/dwarfs/scriptplugin"
	"github.com/dwarfs-go/dwarfs/segmenter"
)

func main() {
	app := &cli.App{
		Name:                 "mkdwarfs",
		Usage:                "build a DwarFS image from a source directory tree",
		EnableBashCompletion: true,
		CustomAppHelpTemplate: cli.AppHelpTemplate + "\n" + levelTableHelp(),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Required: true, Usage: "source directory to build an image from"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Required: true, Usage: "path to write the image to"},
			&cli.IntFlag{Name: "compress-level", Aliases: []string{"l"}, Value: config.DefaultLevel, Usage: "compression level 0-9, selects defaults for the flags below"},
			&cli.IntFlag{Name: "block-size-bits", Usage: "override the level's block size (2^N bytes), 12-28"},
			&cli.IntFlag{Name: "num-workers", Usage: "compression worker count (default: hardware concurrency)"},
			&cli.IntFlag{Name: "max-scanner-workers", Usage: "accepted but not used: similarity keys are computed on a single goroutine"},
			&cli.StringFlag{Name: "memory-limit", Value: "1g", Usage: "k/m/g suffix; parsed, but no build stage bounds resident block memory by it"},
			&cli.StringFlag{Name: "compression", Usage: "override the level's BLOCK section compressor spec"},
			&cli.StringFlag{Name: "schema-compression", Usage: "override the level's METADATA_SCHEMA section compressor spec"},
			&cli.StringFlag{Name: "metadata-compression", Usage: "override the level's METADATA section compressor spec"},
			&cli.StringFlag{Name: "blockhash-window-sizes", Usage: "override the level's comma-separated window exponents, or \"-\" to disable segmentation"},
			&cli.IntFlag{Name: "window-increment-shift", Value: 1, Usage: "accepted but not used: the segmenter probes its hash tables at every byte"},
			&cli.StringFlag{Name: "order", Value: "similarity", Usage: "file_order mode: none, path, script, similarity"},
			&cli.StringFlag{Name: "script", Usage: "filter plug-in path, required when order=script"},
			&cli.StringFlag{Name: "set-owner", Usage: "override every entry's uid"},
			&cli.StringFlag{Name: "set-group", Usage: "override every entry's gid"},
			&cli.StringFlag{Name: "set-time", Usage: "override every entry's mtime, unix seconds or \"now\""},
			&cli.BoolFlag{Name: "recompress", Usage: "recompress an existing image at --input instead of building from a directory"},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "error, warn, info, debug, trace"},
			&cli.BoolFlag{Name: "no-progress", Usage: "suppress the periodic progress line"},
		},
		Action: runAction,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "mkdwarfs:", err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a returned error to spec.md §6's exit code contract:
// 1 for a run that completed but logged non-fatal per-file errors, and a
// plain non-zero (2) for every other failure, since those are fatal and
// unwind before a partial image is even usable.
func exitCodeFor(err error) int {
	if err == errNonFatalOccurred {
		return 1
	}
	return 2
}

// errNonFatalOccurred signals "the build finished but progress.errors was
// non-zero", distinguishing that case from a fatal failure for main's exit
// code without overloading a normal error's meaning.
var errNonFatalOccurred = fmt.Errorf("mkdwarfs: completed with non-fatal per-file errors")

func levelTableHelp() string {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "COMPRESSION LEVEL DEFAULTS:")
	fmt.Fprintln(&buf, "   level  block-size-bits  window-sizes        compression           schema       metadata")
	for i, lc := range config.AllLevels() {
		fmt.Fprintf(&buf, "   %-6d %-16d %-20s %-21s %-12s %s\n",
			i, lc.BlockSizeBits, lc.WindowSizes, lc.DataCompression, lc.SchemaCompression, lc.MetadataCompression)
	}
	return buf.String()
}

func runAction(c *cli.Context) error {
	opts, err := optionsFromFlags(c)
	if err != nil {
		return err
	}

	logger := logging.New(os.Stderr, logging.ParseLevel(opts.LogLevel))
	prog := progress.New(nil)
	bc := appctx.New(logger, prog)
	defer bc.Close()

	var ticker *progress.Ticker
	if !opts.NoProgress {
		ticker = progress.StartTicker(prog, 200*time.Millisecond, func(s progress.Snapshot) {
			logger.Stderr("%s", s.String())
		})
		defer ticker.Stop()
	}

	if opts.Recompress {
		return runRecompress(bc, opts)
	}
	if err := runBuild(bc, opts); err != nil {
		return err
	}
	if prog.Snapshot().Errors > 0 {
		return errNonFatalOccurred
	}
	return nil
}

func optionsFromFlags(c *cli.Context) (config.BuilderOptions, error) {
	level := c.Int("compress-level")
	defaults, err := config.LevelDefaults(level)
	if err != nil {
		return config.BuilderOptions{}, err
	}

	order, err := config.ParseFileOrder(c.String("order"))
	if err != nil {
		return config.BuilderOptions{}, err
	}

	memLimit, err := config.ParseMemoryLimit(c.String("memory-limit"))
	if err != nil {
		return config.BuilderOptions{}, err
	}

	windowSpec := defaults.WindowSizes
	if c.IsSet("blockhash-window-sizes") {
		windowSpec = c.String("blockhash-window-sizes")
	}
	windowSizes, err := config.ParseWindowSizes(windowSpec)
	if err != nil {
		return config.BuilderOptions{}, err
	}

	blockSizeBits := defaults.BlockSizeBits
	if c.IsSet("block-size-bits") {
		blockSizeBits = c.Int("block-size-bits")
	}

	numWorkers := c.Int("num-workers")
	if numWorkers == 0 {
		numWorkers = runtime.NumCPU()
	}
	maxScannerWorkers := c.Int("max-scanner-workers")
	if maxScannerWorkers == 0 {
		maxScannerWorkers = runtime.NumCPU()
	}

	opts := config.BuilderOptions{
		Input:                c.String("input"),
		Output:               c.String("output"),
		BlockSizeBits:        blockSizeBits,
		WindowSizes:          windowSizes,
		DataCompression:      firstNonEmpty(c.String("compression"), defaults.DataCompression),
		SchemaCompression:    firstNonEmpty(c.String("schema-compression"), defaults.SchemaCompression),
		MetadataCompression:  firstNonEmpty(c.String("metadata-compression"), defaults.MetadataCompression),
		NumWorkers:           numWorkers,
		MaxScannerWorkers:    maxScannerWorkers,
		MemoryLimit:          memLimit,
		Order:                order,
		ScriptPath:           c.String("script"),
		Recompress:           c.Bool("recompress"),
		LogLevel:             c.String("log-level"),
		NoProgress:           c.Bool("no-progress"),
	}

	if order == config.OrderScript && opts.ScriptPath == "" {
		return config.BuilderOptions{}, fmt.Errorf("mkdwarfs: --script is required when --order=script: %w", dwarfserr.ErrBadParameter)
	}

	if owner := c.String("set-owner"); owner != "" {
		v, err := parseUint32(owner)
		if err != nil {
			return config.BuilderOptions{}, fmt.Errorf("mkdwarfs: --set-owner: %w", err)
		}
		opts.SetOwner = &v
	}
	if group := c.String("set-group"); group != "" {
		v, err := parseUint32(group)
		if err != nil {
			return config.BuilderOptions{}, fmt.Errorf("mkdwarfs: --set-group: %w", err)
		}
		opts.SetGroup = &v
	}
	if ts := c.String("set-time"); ts != "" {
		t, err := parseSetTime(ts)
		if err != nil {
			return config.BuilderOptions{}, err
		}
		opts.SetTime = &t
	}

	return opts, nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func parseUint32(s string) (uint32, error) {
	var v uint32
	_, err := fmt.Sscanf(s, "%d", &v)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", s, dwarfserr.ErrBadParameter)
	}
	return v, nil
}

func parseSetTime(s string) (time.Time, error) {
	if s == "now" {
		return time.Now(), nil
	}
	var secs int64
	if _, err := fmt.Sscanf(s, "%d", &secs); err != nil {
		return time.Time{}, fmt.Errorf("mkdwarfs: --set-time %q: %w", s, dwarfserr.ErrBadParameter)
	}
	return time.Unix(secs, 0), nil
}

// runRecompress implements the --recompress flag: --input names an
// existing image, and runBuild's scan/segment pipeline is skipped
// entirely in favor of the Recompress path from spec.md §4.8.
func runRecompress(bc *appctx.BuildContext, opts config.BuilderOptions) error {
	out, err := os.Create(opts.Output)
	if err != nil {
		return fmt.Errorf("mkdwarfs: create %q: %w", opts.Output, err)
	}
	defer out.Close()

	return recompress.Run(bc.Context, opts.Input, out, recompress.Options{
		DataSpec:     opts.DataCompression,
		SchemaSpec:   opts.SchemaCompression,
		MetadataSpec: opts.MetadataCompression,
		NumWorkers:   opts.NumWorkers,
		Logger:       bc.Logger,
	})
}

// runBuild drives the full scan -> segment -> compress -> metadata
// pipeline described in spec.md §2's data flow diagram.
func runBuild(bc *appctx.BuildContext, opts config.BuilderOptions) error {
	out, err := os.Create(opts.Output)
	if err != nil {
		return fmt.Errorf("mkdwarfs: create %q: %w", opts.Output, err)
	}
	defer out.Close()

	w, err := fswriter.New(bc.Context, out, fswriter.Config{
		DataSpec:     opts.DataCompression,
		SchemaSpec:   opts.SchemaCompression,
		MetadataSpec: opts.MetadataCompression,
		NumWorkers:   opts.NumWorkers,
		Logger:       bc.Logger,
	})
	if err != nil {
		return err
	}

	seg, err := segmenter.New(segmenter.Config{
		BlockSizeBits: opts.BlockSizeBits,
		WindowBits:    opts.WindowSizes,
		Logger:        bc.Logger,
	}, func(blk *block.Block) error {
		w.SubmitBlock(blk)
		if bc.Progress != nil {
			bc.Progress.IncBlocksWritten()
			bc.Progress.AddBytesRead(uint64(blk.Len()))
		}
		return nil
	})
	if err != nil {
		return err
	}

	scanCfg := scanner.Config{
		Root:     opts.Input,
		Order:    scanner.FileOrder(opts.Order),
		Logger:   bc.Logger,
		Progress: bc.Progress,
	}
	if opts.Order == config.OrderScript {
		filter, closeFilter, err := scriptplugin.Client(opts.ScriptPath)
		if err != nil {
			return err
		}
		defer closeFilter()
		scanCfg.Script = filter
	}

	entries, err := scanner.Scan(scanCfg, seg)
	if err != nil {
		return err
	}
	if err := seg.Flush(); err != nil {
		return err
	}
	if err := w.Wait(); err != nil {
		return err
	}

	m := metadata.Build(entries, opts.BlockSizeBits)
	schema := buildSchema(m, opts)
	body, err := m.Serialize()
	if err != nil {
		return err
	}

	if err := w.WriteMetadataSchema(schema); err != nil {
		return err
	}
	if err := w.WriteMetadata(body); err != nil {
		return err
	}
	return w.Close()
}

// schemaMagic and schemaVersion tag the METADATA_SCHEMA section: a small,
// fixed-size descriptor a reader can decode without first inflating the
// (potentially large) METADATA section, to check format compatibility and
// preallocate.
var schemaMagic = [4]byte{'D', 'W', 'S', 'C'}

const schemaVersion = 1

// schemaFlag* bits mark which image-wide attribute defaults were pinned
// at build time by --set-owner/--set-group/--set-time. metadata.Reader's
// Getattr has no per-inode uid/gid/mtime fields to read (spec.md §4.7:
// "uid/gid/times come from image-wide defaults supplied at open time"),
// so the schema section is the only place these flags can take effect —
// they're persisted here and decoded back into metadata.OpenOptions by
// openOptionsFromSchema at open time.
const (
	schemaFlagOwner uint8 = 1 << iota
	schemaFlagGroup
	schemaFlagTime
)

func buildSchema(m *metadata.Metadata, opts config.BuilderOptions) []byte {
	var buf bytes.Buffer
	buf.Write(schemaMagic[:])
	binary.Write(&buf, binary.LittleEndian, uint8(schemaVersion))
	binary.Write(&buf, binary.LittleEndian, uint32(m.BlockSizeBits))
	binary.Write(&buf, binary.LittleEndian, uint32(m.InodeCount()))

	var flags uint8
	var uid, gid uint32
	var mtime int64
	if opts.SetOwner != nil {
		flags |= schemaFlagOwner
		uid = *opts.SetOwner
	}
	if opts.SetGroup != nil {
		flags |= schemaFlagGroup
		gid = *opts.SetGroup
	}
	if opts.SetTime != nil {
		flags |= schemaFlagTime
		mtime = opts.SetTime.Unix()
	}
	binary.Write(&buf, binary.LittleEndian, flags)
	binary.Write(&buf, binary.LittleEndian, uid)
	binary.Write(&buf, binary.LittleEndian, gid)
	binary.Write(&buf, binary.LittleEndian, mtime)
	return buf.Bytes()
}

// openOptionsFromSchema decodes the image-wide uid/gid/mtime defaults
// buildSchema wrote into a metadata.OpenOptions, ready to hand to
// metadata.NewReader. A flag left unset leaves the corresponding field
// zero, same as metadata.OpenOptions' own default.
func openOptionsFromSchema(schema []byte) (metadata.OpenOptions, error) {
	r := bytes.NewReader(schema)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil || magic != schemaMagic {
		return metadata.OpenOptions{}, fmt.Errorf("mkdwarfs: bad schema magic: %w", dwarfserr.ErrCorruptImage)
	}

	var version uint8
	var blockSizeBits, inodeCount uint32
	var flags uint8
	var uid, gid uint32
	var mtime int64
	fields := []any{&version, &blockSizeBits, &inodeCount, &flags, &uid, &gid, &mtime}
	for _, f := range fields {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return metadata.OpenOptions{}, fmt.Errorf("mkdwarfs: decode schema: %w", dwarfserr.ErrCorruptImage)
		}
	}

	var opts metadata.OpenOptions
	if flags&schemaFlagOwner != 0 {
		opts.UID = uid
	}
	if flags&schemaFlagGroup != 0 {
		opts.GID = gid
	}
	if flags&schemaFlagTime != 0 {
		opts.ModTime = time.Unix(mtime, 0)
	}
	return opts, nil
}
