package compressor

import (
	"fmt"
	"strconv"

	"github.com/dwarfs-go/dwarfs/dwarfserr"
	"github.com/klauspost/compress/zstd"
)

func init() {
	register("zstd", newZstd)
}

type zstdCompressor struct {
	level zstd.EncoderLevel
}

func newZstd(params map[string]string) (Compressor, error) {
	level := zstd.SpeedDefault
	if raw, ok := params["level"]; ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("compressor: zstd: bad level %q: %w", raw, dwarfserr.ErrBadParameter)
		}
		switch {
		case n <= 1:
			level = zstd.SpeedFastest
		case n <= 9:
			level = zstd.SpeedDefault
		case n <= 19:
			level = zstd.SpeedBetterCompression
		default:
			level = zstd.SpeedBestCompression
		}
	}
	return &zstdCompressor{level: level}, nil
}

func (c *zstdCompressor) Compress(src []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(c.level))
	if err != nil {
		return nil, fmt.Errorf("compressor: zstd: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(src, make([]byte, 0, len(src))), nil
}

func (c *zstdCompressor) Decompress(src []byte, expectedLen int) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("compressor: zstd: %w", err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(src, make([]byte, 0, expectedLen))
	if err != nil {
		return nil, fmt.Errorf("compressor: zstd: %w: %v", dwarfserr.ErrCorruptInput, err)
	}
	return out, nil
}

func (c *zstdCompressor) Name() string { return "zstd" }
