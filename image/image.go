// Package image implements the on-disk image format from spec.md §3: an
// ordered sequence of self-delimiting sections (kind, compressed_length,
// compressed_payload), followed by a trailer.
//
// Grounded on kloset's packfile_mem.go: a fixed-size trailing footer
// (NewInMemoryFooterFromBytes/FOOTER_SIZE) read by seeking from the end,
// and a MAC (objects.MAC, here github.com/zeebo/blake3) carried alongside
// each framed record for integrity. dwarfs-go's sections are framed
// per-record rather than packfile's single-blob-plus-separate-index,
// since spec.md explicitly rules out a trailing index ("sections are
// self-delimiting") — but the trailer's whole-image MAC still borrows
// packfile's "MAC travels in the footer" idea.
package image

import "fmt"

// Kind identifies what a Section carries. Values are pinned to spec.md's
// wire format (BLOCK=1, SCHEMA=2, META=3), not the zero-indexed default.
type Kind uint8

const (
	KindBlock Kind = iota + 1
	KindMetadataSchema
	KindMetadata
)

func (k Kind) String() string {
	switch k {
	case KindBlock:
		return "BLOCK"
	case KindMetadataSchema:
		return "METADATA_SCHEMA"
	case KindMetadata:
		return "METADATA"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// magic identifies a dwarfs-go image file, written once at offset 0.
var magic = [4]byte{'D', 'W', 'F', 'S'}

const formatVersion = 1

// trailerMagic marks the fixed-size trailer appended after the last
// section, per spec.md §2's "...followed by a trailer."
var trailerMagic = [4]byte{'D', 'W', 'T', 'R'}

// macSize is the width of a github.com/zeebo/blake3 digest used as each
// section's integrity checksum (spec.md's Domain Stack wiring: "per-block
// integrity checksum embedded by the Filesystem Writer, verified by the
// reader and by Recompress").
const macSize = 32

// fixedHeaderSize is the fixed-width prefix of every section, before the
// variable-length algorithm name: kind (1) + algorithm name length (1) +
// uncompressed length (4) + compressed length (4) + MAC (32). The
// algorithm name travels with each section (rather than living in a
// single image-wide field) because spec.md §4.1 allows the data, schema
// and metadata compressors to differ, and Recompress (§4.8) must be able
// to decompress each section with whatever algorithm produced it without
// consulting any other state.
const fixedHeaderSize = 1 + 1 + 4 + 4 + macSize

// trailerSize is the fixed width of the trailer: magic (4) + version (1) +
// section count (4) + whole-image MAC (32).
const trailerSize = 4 + 1 + 4 + macSize

// Section is one framed record of the image.
type Section struct {
	Kind             Kind
	Algorithm        string // compressor spec, e.g. "zstd:level=19", that produced Payload
	UncompressedSize uint32
	Payload          []byte // compressed bytes
	MAC              [macSize]byte
}
