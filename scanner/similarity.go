package scanner

import (
	"io"

	chunkers "github.com/PlakarKorp/go-cdc-chunkers"
	"github.com/cespare/xxhash/v2"
)

// similaritySampleThreshold is the file size above which SimilarityKey
// samples content-defined windows rather than hashing the whole file, per
// spec.md §4.4: "or over a fixed-size sample for very large files".
const similaritySampleThreshold = 8 << 20 // 8 MiB

// similarityChunkerOpts bounds the sample windows taken from large files;
// values chosen in the same range as chunking.NewDefaultConfiguration's
// fastcdc-v1.0.0 defaults, scaled down since a similarity key only needs a
// representative sample, not content-addressed dedup boundaries.
var similarityChunkerOpts = &chunkers.ChunkerOpts{
	MinSize:    16 * 1024,
	NormalSize: 64 * 1024,
	MaxSize:    256 * 1024,
}

// maxSampleWindows caps how many sampled windows contribute to the
// similarity key of a huge file, bounding scan time on multi-gigabyte
// inputs.
const maxSampleWindows = 64

// SimilarityKey computes the 32-bit Nilsimba-style hash spec.md §4.4
// describes: a content mix over either the whole file (small files) or a
// bounded set of content-defined sample windows (large files), reduced to
// 32 bits via xxhash.
//
// Grounded on kloset's use of go-cdc-chunkers (snapshot/backup.go's
// chunkify, via chunking.Configuration) for splitting a reader into
// content-defined windows; xxhash is kloset's own transitive dependency
// (pulled in by pebble) repurposed here as the mixing function, since
// kloset itself has no similarity-hash feature to ground one on directly.
func SimilarityKey(r io.Reader, size int64) (uint32, error) {
	if size <= similaritySampleThreshold {
		data, err := io.ReadAll(r)
		if err != nil {
			return 0, err
		}
		return nilsimbaMix(data), nil
	}

	chk, err := chunkers.NewChunker("fastcdc-v1.0.0", r, similarityChunkerOpts)
	if err != nil {
		return 0, err
	}

	var mix uint64
	for i := 0; i < maxSampleWindows; i++ {
		window, err := chk.Next()
		if err != nil && err != io.EOF {
			return 0, err
		}
		if window != nil {
			mix ^= rotl64(xxhash.Sum64(window), uint(i%64))
		}
		if err == io.EOF {
			break
		}
	}
	return uint32(mix) ^ uint32(mix>>32), nil
}

// nilsimbaMix folds a byte slice down to 32 bits the way a Nilsimba digest
// mixes n-grams into accumulator bits: every overlapping 4-byte window is
// hashed and XORed, rotated by its position, so permutations of similar
// content land close together after the Gray-code sort in order.go.
func nilsimbaMix(data []byte) uint32 {
	if len(data) == 0 {
		return 0
	}
	const window = 4
	var mix uint64
	step := 1
	if n := len(data) / 4096; n > 1 {
		step = n // subsample very large-but-under-threshold files evenly
	}
	for i := 0; i+window <= len(data); i += step {
		mix ^= rotl64(xxhash.Sum64(data[i:i+window]), uint(i%64))
	}
	return uint32(mix) ^ uint32(mix>>32)
}

func rotl64(x uint64, k uint) uint64 {
	return (x << (k % 64)) | (x >> ((64 - k) % 64))
}

// grayCode converts a key to its binary-reflected Gray code, so that
// sorting files by grayCode(key) places files whose keys differ in one bit
// adjacent to each other, per spec.md §4.4: "sorted by Gray-code of this
// key so that numerically adjacent keys differ in few bits".
func grayCode(key uint32) uint32 {
	return key ^ (key >> 1)
}
