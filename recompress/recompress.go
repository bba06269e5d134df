// Package recompress implements the Recompress path from spec.md §4.8:
// open an existing image via memory map, decompress every section with
// whatever algorithm produced it, recompress with a new algorithm, and
// re-emit — chunk references and metadata bytes travel through untouched,
// so this is a pure re-encoding of payloads.
//
// Grounded the same way fswriter is: kloset's repository/packer
// seqPackerManager shape (bounded worker pool feeding a single writer),
// generalized here to decompress-then-recompress instead of encode-then-
// pack, reusing fswriter.Writer itself for the output side rather than
// re-implementing the reorder buffer.
package recompress

import (
	"context"
	"fmt"

	"github.com/dwarfs-go/dwarfs/compressor"
	"github.com/dwarfs-go/dwarfs/dwarfserr"
	"github.com/dwarfs-go/dwarfs/fswriter"
	"github.com/dwarfs-go/dwarfs/image"
	"github.com/dwarfs-go/dwarfs/logging"
)

// Options selects the new compressor specs for each section kind and the
// concurrency of the recompression worker pool. A zero-value spec means
// "keep the section's original algorithm unchanged."
type Options struct {
	DataSpec     string
	SchemaSpec   string
	MetadataSpec string
	NumWorkers   int
	Logger       logging.Logger
}

// Run reads the image at srcPath, recompresses every section per opts, and
// writes the result to out (an io.Writer the caller has already opened,
// typically a freshly-created output file).
func Run(ctx context.Context, srcPath string, out outWriter, opts Options) error {
	r, err := image.Open(srcPath)
	if err != nil {
		return err
	}
	defer r.Close()

	dataSpec := firstNonEmpty(opts.DataSpec, sectionsAlgorithm(r, image.KindBlock))
	schemaSpec := firstNonEmpty(opts.SchemaSpec, sectionsAlgorithm(r, image.KindMetadataSchema))
	metaSpec := firstNonEmpty(opts.MetadataSpec, sectionsAlgorithm(r, image.KindMetadata))

	w, err := fswriter.New(ctx, out, fswriter.Config{
		DataSpec:     dataSpec,
		SchemaSpec:   schemaSpec,
		MetadataSpec: metaSpec,
		NumWorkers:   opts.NumWorkers,
		Logger:       opts.Logger,
	})
	if err != nil {
		return err
	}

	decoders := map[string]compressor.Compressor{}
	decoderFor := func(spec string) (compressor.Compressor, error) {
		if c, ok := decoders[spec]; ok {
			return c, nil
		}
		c, err := compressor.New(spec)
		if err != nil {
			return nil, err
		}
		decoders[spec] = c
		return c, nil
	}

	blockID := uint32(0)
	for _, s := range r.Sections {
		if s.Kind != image.KindBlock {
			continue
		}
		dec, err := decoderFor(s.Algorithm)
		if err != nil {
			return fmt.Errorf("recompress: block %d: %w", blockID, err)
		}
		raw, err := dec.Decompress(s.Payload, int(s.UncompressedSize))
		if err != nil {
			return fmt.Errorf("recompress: decompress block %d: %w", blockID, err)
		}
		w.SubmitRawBlock(blockID, raw)
		blockID++
	}
	if err := w.Wait(); err != nil {
		return err
	}

	schema, ok := r.MetadataSchema()
	if !ok {
		return fmt.Errorf("recompress: image has no metadata schema section: %w", dwarfserr.ErrCorruptImage)
	}
	schemaDec, err := decoderFor(schema.Algorithm)
	if err != nil {
		return err
	}
	rawSchema, err := schemaDec.Decompress(schema.Payload, int(schema.UncompressedSize))
	if err != nil {
		return fmt.Errorf("recompress: decompress schema: %w", err)
	}
	if err := w.WriteMetadataSchema(rawSchema); err != nil {
		return err
	}

	meta, ok := r.Metadata()
	if !ok {
		return fmt.Errorf("recompress: image has no metadata section: %w", dwarfserr.ErrCorruptImage)
	}
	metaDec, err := decoderFor(meta.Algorithm)
	if err != nil {
		return err
	}
	rawMeta, err := metaDec.Decompress(meta.Payload, int(meta.UncompressedSize))
	if err != nil {
		return fmt.Errorf("recompress: decompress metadata: %w", err)
	}
	if err := w.WriteMetadata(rawMeta); err != nil {
		return err
	}

	return w.Close()
}

// outWriter is the minimal surface fswriter.New needs; kept as a local
// alias so this package's signature doesn't force callers to import io
// just to call Run.
type outWriter = interface {
	Write(p []byte) (int, error)
}

// sectionsAlgorithm returns the algorithm spec of the first section of
// kind k, used as the "keep unchanged" default when Options leaves a spec
// empty. Returns "null" if the image has no section of that kind (an empty
// directory has no BLOCK sections at all, per spec.md §8 scenario 1).
func sectionsAlgorithm(r *image.Reader, k image.Kind) string {
	for _, s := range r.Sections {
		if s.Kind == k {
			return s.Algorithm
		}
	}
	return "null"
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
