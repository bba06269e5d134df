package image

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/zeebo/blake3"

	"github.com/dwarfs-go/dwarfs/dwarfserr"
)

// NewSection builds a Section from an already-compressed payload, computing
// its blake3 MAC. algorithm is the compressor spec (e.g. "zstd:level=19")
// that produced compressed, carried in the frame so a later reader or
// Recompress can decompress it without any other context.
func NewSection(kind Kind, algorithm string, uncompressedSize uint32, compressed []byte) Section {
	return Section{
		Kind:             kind,
		Algorithm:        algorithm,
		UncompressedSize: uncompressedSize,
		Payload:          compressed,
		MAC:              blake3.Sum256(compressed),
	}
}

// WriteMagic writes the 4-byte image magic, once, at the start of the
// output stream.
func WriteMagic(w io.Writer) (int64, error) {
	n, err := w.Write(magic[:])
	return int64(n), err
}

// WriteSection frames s as (kind, algo_len, algo, uncompressed_len,
// compressed_len, mac, payload) and writes it to w, returning the number
// of bytes written.
func WriteSection(w io.Writer, s Section) (int64, error) {
	if len(s.Algorithm) > 255 {
		return 0, fmt.Errorf("image: algorithm spec %q too long: %w", s.Algorithm, dwarfserr.ErrBadParameter)
	}

	var hdr bytes.Buffer
	hdr.WriteByte(byte(s.Kind))
	hdr.WriteByte(byte(len(s.Algorithm)))
	hdr.WriteString(s.Algorithm)
	binary.Write(&hdr, binary.LittleEndian, s.UncompressedSize)
	binary.Write(&hdr, binary.LittleEndian, uint32(len(s.Payload)))
	hdr.Write(s.MAC[:])

	n1, err := w.Write(hdr.Bytes())
	if err != nil {
		return int64(n1), err
	}
	n2, err := w.Write(s.Payload)
	return int64(n1 + n2), err
}

// ReadSection reads one framed section from r.
func ReadSection(r io.Reader) (Section, error) {
	head := make([]byte, 2)
	if _, err := io.ReadFull(r, head); err != nil {
		if err == io.ErrUnexpectedEOF {
			return Section{}, fmt.Errorf("image: truncated section header: %w", dwarfserr.ErrCorruptImage)
		}
		return Section{}, err
	}
	s := Section{Kind: Kind(head[0])}

	algo := make([]byte, head[1])
	if _, err := io.ReadFull(r, algo); err != nil {
		return Section{}, fmt.Errorf("image: truncated section algorithm: %w", dwarfserr.ErrCorruptImage)
	}
	s.Algorithm = string(algo)

	rest := make([]byte, 4+4+macSize)
	if _, err := io.ReadFull(r, rest); err != nil {
		return Section{}, fmt.Errorf("image: truncated section header: %w", dwarfserr.ErrCorruptImage)
	}
	s.UncompressedSize = binary.LittleEndian.Uint32(rest[0:4])
	compLen := binary.LittleEndian.Uint32(rest[4:8])
	copy(s.MAC[:], rest[8:8+macSize])

	s.Payload = make([]byte, compLen)
	if _, err := io.ReadFull(r, s.Payload); err != nil {
		return Section{}, fmt.Errorf("image: truncated section payload: %w", dwarfserr.ErrCorruptImage)
	}

	if blake3.Sum256(s.Payload) != s.MAC {
		return Section{}, fmt.Errorf("image: section MAC mismatch: %w", dwarfserr.ErrCorruptImage)
	}
	return s, nil
}

// WriteTrailer appends the fixed-size trailer spec.md §2 describes after
// the last section: magic, format version, section count, and a blake3 MAC
// of everything written before it (sectionBytes).
func WriteTrailer(w io.Writer, sectionCount uint32, sectionBytes []byte) (int64, error) {
	mac := blake3.Sum256(sectionBytes)
	return WriteTrailerWithMAC(w, sectionCount, mac)
}

// WriteTrailerWithMAC writes the trailer using an already-computed MAC,
// for callers (fswriter.Writer) that stream the body through an
// incremental hasher instead of holding it in memory.
func WriteTrailerWithMAC(w io.Writer, sectionCount uint32, mac [macSize]byte) (int64, error) {
	var buf bytes.Buffer
	buf.Write(trailerMagic[:])
	buf.WriteByte(byte(formatVersion))
	binary.Write(&buf, binary.LittleEndian, sectionCount)
	buf.Write(mac[:])
	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// Trailer is the decoded form of WriteTrailer's output.
type Trailer struct {
	Version      uint8
	SectionCount uint32
	MAC          [macSize]byte
}

// ReadTrailer decodes the trailerSize bytes at the end of data.
func ReadTrailer(data []byte) (Trailer, error) {
	if len(data) < trailerSize {
		return Trailer{}, fmt.Errorf("image: file too short for trailer: %w", dwarfserr.ErrCorruptImage)
	}
	tail := data[len(data)-trailerSize:]

	var gotMagic [4]byte
	copy(gotMagic[:], tail[0:4])
	if gotMagic != trailerMagic {
		return Trailer{}, fmt.Errorf("image: bad trailer magic: %w", dwarfserr.ErrCorruptImage)
	}

	t := Trailer{Version: tail[4]}
	t.SectionCount = binary.LittleEndian.Uint32(tail[5:9])
	copy(t.MAC[:], tail[9:9+macSize])

	if t.Version != formatVersion {
		return Trailer{}, fmt.Errorf("image: unsupported format version %d: %w", t.Version, dwarfserr.ErrCorruptImage)
	}
	return t, nil
}

// TrailerSize exposes trailerSize for callers computing section-body
// boundaries (data without the trailer, before verifying Trailer.MAC).
func TrailerSize() int { return trailerSize }

// MagicSize exposes the width of the leading image magic.
func MagicSize() int { return len(magic) }

// CheckMagic verifies data begins with the image magic.
func CheckMagic(data []byte) error {
	if len(data) < len(magic) || !bytes.Equal(data[:len(magic)], magic[:]) {
		return fmt.Errorf("image: bad magic: %w", dwarfserr.ErrCorruptImage)
	}
	return nil
}
