package image

import (
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/dwarfs-go/dwarfs/dwarfserr"
)

var errCorrupt = dwarfserr.ErrCorruptImage

func blake3Sum(b []byte) [macSize]byte { return blake3.Sum256(b) }

// SectionInfo locates one section within the mapped image body, avoiding a
// copy until a caller actually wants its bytes.
type SectionInfo struct {
	Kind             Kind
	Algorithm        string
	UncompressedSize uint32
	Payload          []byte // sub-slice of the mapped file; do not retain past Close
	MAC              [macSize]byte
}

// Reader holds an image open via memory map and iterates its sections.
// It performs no decompression itself — that is the compressor package's
// job, composed by callers (metadata.Reader, the recompress path).
type Reader struct {
	mapped   *mappedFile
	Trailer  Trailer
	Sections []SectionInfo
}

// Open memory-maps path, verifies the leading magic and trailing trailer
// MAC, and eagerly walks every section header (cheap: no decompression, no
// extra copies beyond the header scan) so Sections is ready to use.
func Open(path string) (*Reader, error) {
	m, err := openMapped(path)
	if err != nil {
		return nil, err
	}

	data := m.Bytes()
	if err := CheckMagic(data); err != nil {
		m.Close()
		return nil, err
	}

	trailer, err := ReadTrailer(data)
	if err != nil {
		m.Close()
		return nil, err
	}

	body := data[len(magic) : len(data)-trailerSize]
	if got := blake3Sum(body); got != trailer.MAC {
		m.Close()
		return nil, fmt.Errorf("image: trailer MAC mismatch: %w", errCorrupt)
	}

	sections, err := scanSections(body, int(trailer.SectionCount))
	if err != nil {
		m.Close()
		return nil, err
	}

	return &Reader{mapped: m, Trailer: trailer, Sections: sections}, nil
}

// Close releases the underlying memory map.
func (r *Reader) Close() error { return r.mapped.Close() }

// scanSections walks body (the image with magic and trailer stripped),
// re-deriving each section's header fields without copying payload bytes.
func scanSections(body []byte, expected int) ([]SectionInfo, error) {
	var out []SectionInfo
	pos := 0
	for pos < len(body) {
		if pos+2 > len(body) {
			return nil, fmt.Errorf("image: truncated section header: %w", errCorrupt)
		}
		kind := Kind(body[pos])
		algoLen := int(body[pos+1])
		algoStart := pos + 2
		algoEnd := algoStart + algoLen
		if algoEnd+4+4+macSize > len(body) {
			return nil, fmt.Errorf("image: truncated section header: %w", errCorrupt)
		}
		algorithm := string(body[algoStart:algoEnd])

		fixedStart := algoEnd
		uncompressedSize := le32(body[fixedStart : fixedStart+4])
		compLen := int(le32(body[fixedStart+4 : fixedStart+8]))
		var mac [macSize]byte
		copy(mac[:], body[fixedStart+8:fixedStart+8+macSize])

		payloadStart := fixedStart + 8 + macSize
		payloadEnd := payloadStart + compLen
		if payloadEnd > len(body) {
			return nil, fmt.Errorf("image: truncated section payload: %w", errCorrupt)
		}
		payload := body[payloadStart:payloadEnd]
		if blake3Sum(payload) != mac {
			return nil, fmt.Errorf("image: section MAC mismatch: %w", errCorrupt)
		}

		out = append(out, SectionInfo{Kind: kind, Algorithm: algorithm, UncompressedSize: uncompressedSize, Payload: payload, MAC: mac})
		pos = payloadEnd
	}
	if expected != 0 && len(out) != expected {
		return nil, fmt.Errorf("image: trailer announced %d sections, found %d: %w", expected, len(out), errCorrupt)
	}
	return out, nil
}

// BlocksInOrder returns every KindBlock section in file order.
func (r *Reader) BlocksInOrder() []SectionInfo {
	var blocks []SectionInfo
	for _, s := range r.Sections {
		if s.Kind == KindBlock {
			blocks = append(blocks, s)
		}
	}
	return blocks
}

// MetadataSchema returns the single METADATA_SCHEMA section, if present.
func (r *Reader) MetadataSchema() (SectionInfo, bool) {
	return findKind(r.Sections, KindMetadataSchema)
}

// Metadata returns the single METADATA section, if present.
func (r *Reader) Metadata() (SectionInfo, bool) {
	return findKind(r.Sections, KindMetadata)
}

func findKind(sections []SectionInfo, k Kind) (SectionInfo, bool) {
	for _, s := range sections {
		if s.Kind == k {
			return s, true
		}
	}
	return SectionInfo{}, false
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
