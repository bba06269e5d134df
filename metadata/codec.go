package metadata

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/dwarfs-go/dwarfs/dwarfserr"
)

var magic = [4]byte{'D', 'W', 'F', 'M'}

const formatVersion = 1

// Serialize encodes m into the frozen byte layout spec.md §3 describes,
// field by field (header scalars, then names, modes, entries, entry_index,
// directories, chunks, chunk_index, links, link_index), mirroring packfile_mem.go's
// per-field binary.Read/binary.Write framing rather than a single
// struct-wide encoding (the payload mixes fixed-size records with
// variable-length name/link strings, which Go's binary package cannot
// encode in one call).
func (m *Metadata) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(magic[:])
	binary.Write(&buf, binary.LittleEndian, uint8(formatVersion))
	binary.Write(&buf, binary.LittleEndian, uint32(m.BlockSizeBits))
	binary.Write(&buf, binary.LittleEndian, m.ChunkIndexOffset)
	binary.Write(&buf, binary.LittleEndian, m.LinkIndexOffset)

	n := uint32(len(m.Entries))
	binary.Write(&buf, binary.LittleEndian, n)

	binary.Write(&buf, binary.LittleEndian, uint32(len(m.Names)))
	for _, name := range m.Names {
		binary.Write(&buf, binary.LittleEndian, uint32(len(name)))
		buf.WriteString(name)
	}

	binary.Write(&buf, binary.LittleEndian, uint32(len(m.Modes)))
	for _, mode := range m.Modes {
		binary.Write(&buf, binary.LittleEndian, mode)
	}

	for _, e := range m.Entries {
		binary.Write(&buf, binary.LittleEndian, e.NameIndex)
		binary.Write(&buf, binary.LittleEndian, e.ModeIndex)
		binary.Write(&buf, binary.LittleEndian, e.Inode)
	}
	for _, idx := range m.EntryIndex {
		binary.Write(&buf, binary.LittleEndian, idx)
	}
	for _, d := range m.Directories {
		binary.Write(&buf, binary.LittleEndian, d.FirstEntryIndex)
		binary.Write(&buf, binary.LittleEndian, d.EntryCount)
	}

	binary.Write(&buf, binary.LittleEndian, uint32(len(m.Chunks)))
	for _, c := range m.Chunks {
		binary.Write(&buf, binary.LittleEndian, c.BlockID)
		binary.Write(&buf, binary.LittleEndian, c.Offset)
		binary.Write(&buf, binary.LittleEndian, c.Size)
	}
	for _, idx := range m.ChunkIndex {
		binary.Write(&buf, binary.LittleEndian, idx)
	}

	binary.Write(&buf, binary.LittleEndian, uint32(len(m.Links)))
	for _, link := range m.Links {
		binary.Write(&buf, binary.LittleEndian, uint32(len(link)))
		buf.WriteString(link)
	}
	for _, idx := range m.LinkIndex {
		binary.Write(&buf, binary.LittleEndian, idx)
	}

	return buf.Bytes(), nil
}

// Deserialize decodes a byte slice previously produced by Serialize.
func Deserialize(data []byte) (*Metadata, error) {
	r := bytes.NewReader(data)

	var gotMagic [4]byte
	if _, err := r.Read(gotMagic[:]); err != nil || gotMagic != magic {
		return nil, fmt.Errorf("metadata: bad magic: %w", dwarfserr.ErrCorruptImage)
	}
	var version uint8
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, err
	}
	if version != formatVersion {
		return nil, fmt.Errorf("metadata: unsupported format version %d: %w", version, dwarfserr.ErrCorruptImage)
	}

	m := &Metadata{}
	var blockSizeBits uint32
	if err := binary.Read(r, binary.LittleEndian, &blockSizeBits); err != nil {
		return nil, err
	}
	m.BlockSizeBits = int(blockSizeBits)
	if err := binary.Read(r, binary.LittleEndian, &m.ChunkIndexOffset); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &m.LinkIndexOffset); err != nil {
		return nil, err
	}

	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}

	var nameCount uint32
	if err := binary.Read(r, binary.LittleEndian, &nameCount); err != nil {
		return nil, err
	}
	m.Names = make([]string, nameCount)
	for i := range m.Names {
		var l uint32
		if err := binary.Read(r, binary.LittleEndian, &l); err != nil {
			return nil, err
		}
		buf := make([]byte, l)
		if _, err := r.Read(buf); err != nil {
			return nil, err
		}
		m.Names[i] = string(buf)
	}

	var modeCount uint32
	if err := binary.Read(r, binary.LittleEndian, &modeCount); err != nil {
		return nil, err
	}
	m.Modes = make([]uint32, modeCount)
	for i := range m.Modes {
		if err := binary.Read(r, binary.LittleEndian, &m.Modes[i]); err != nil {
			return nil, err
		}
	}

	m.Entries = make([]EntryRecord, n)
	for i := range m.Entries {
		if err := binary.Read(r, binary.LittleEndian, &m.Entries[i].NameIndex); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &m.Entries[i].ModeIndex); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &m.Entries[i].Inode); err != nil {
			return nil, err
		}
	}

	m.EntryIndex = make([]uint32, n)
	for i := range m.EntryIndex {
		if err := binary.Read(r, binary.LittleEndian, &m.EntryIndex[i]); err != nil {
			return nil, err
		}
	}

	m.Directories = make([]DirectoryRecord, n)
	for i := range m.Directories {
		if err := binary.Read(r, binary.LittleEndian, &m.Directories[i].FirstEntryIndex); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &m.Directories[i].EntryCount); err != nil {
			return nil, err
		}
	}

	var chunkCount uint32
	if err := binary.Read(r, binary.LittleEndian, &chunkCount); err != nil {
		return nil, err
	}
	m.Chunks = make([]ChunkRecord, chunkCount)
	for i := range m.Chunks {
		if err := binary.Read(r, binary.LittleEndian, &m.Chunks[i].BlockID); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &m.Chunks[i].Offset); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &m.Chunks[i].Size); err != nil {
			return nil, err
		}
	}

	m.ChunkIndex = make([]uint32, n+1)
	for i := range m.ChunkIndex {
		if err := binary.Read(r, binary.LittleEndian, &m.ChunkIndex[i]); err != nil {
			return nil, err
		}
	}

	var linkCount uint32
	if err := binary.Read(r, binary.LittleEndian, &linkCount); err != nil {
		return nil, err
	}
	m.Links = make([]string, linkCount)
	for i := range m.Links {
		var l uint32
		if err := binary.Read(r, binary.LittleEndian, &l); err != nil {
			return nil, err
		}
		buf := make([]byte, l)
		if _, err := r.Read(buf); err != nil {
			return nil, err
		}
		m.Links[i] = string(buf)
	}

	m.LinkIndex = make([]uint32, n+1)
	for i := range m.LinkIndex {
		if err := binary.Read(r, binary.LittleEndian, &m.LinkIndex[i]); err != nil {
			return nil, err
		}
	}

	return m, nil
}
