// Package config holds the builder's compile-time defaults: the
// compression-level table mkdwarfs.cpp bakes into its levels[10] array, and
// the per-source scanner options shaped after kloset's BuilderOptions.
package config

import (
	"fmt"

	"github.com/dwarfs-go/dwarfs/dwarfserr"
)

// LevelConfig is one row of the --compress-level table: the block size and
// the three section compressors a level selects when the corresponding flag
// is not given explicitly on the command line.
type LevelConfig struct {
	BlockSizeBits       int    `json:"block_size_bits"`
	DataCompression     string `json:"data_compression"`
	SchemaCompression   string `json:"schema_compression"`
	MetadataCompression string `json:"metadata_compression"`
	WindowSizes         string `json:"window_sizes"`
}

// DefaultLevel is the --compress-level value used when the flag is omitted.
const DefaultLevel = 7

// levels mirrors mkdwarfs.cpp's constexpr levels[10] table. Data compression
// escalates lz4 -> zstd -> lzma as levels climb; schema compression always
// uses a fast textual codec; metadata compression turns on only at the two
// highest levels, matching the original's ALG_METADATA definition.
var levels = [10]LevelConfig{
	{20, "null", "null", "null", "-"},
	{20, "lz4", "zstd:level=19", "null", "-"},
	{20, "lz4hc:level=9", "zstd:level=19", "null", "-"},
	{20, "lz4hc:level=9", "zstd:level=19", "null", "13"},
	{21, "zstd:level=11", "zstd:level=19", "null", "11"},
	{22, "zstd:level=16", "zstd:level=19", "null", "11"},
	{23, "zstd:level=20", "zstd:level=19", "null", "15,11"},
	{24, "zstd:level=22", "zstd:level=19", "null", "17,15,13,11"},
	{24, "lzma:level=9", "zstd:level=19", "zstd:level=19", "17,15,13,11"},
	{24, "lzma:level=9:extreme", "zstd:level=19", "zstd:level=19", "17,15,13,11"},
}

// LevelDefaults returns the defaults table row for level, which must be in
// [0, 9].
func LevelDefaults(level int) (LevelConfig, error) {
	if level < 0 || level > 9 {
		return LevelConfig{}, fmt.Errorf("config: compress-level %d out of range [0,9]: %w", level, dwarfserr.ErrBadParameter)
	}
	return levels[level], nil
}

// AllLevels returns every row, in level order, for use by --help's
// "Compression level defaults" table.
func AllLevels() [10]LevelConfig {
	return levels
}
