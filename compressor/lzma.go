package compressor

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/dwarfs-go/dwarfs/dwarfserr"
	"github.com/ulikunitz/xz/lzma"
)

func init() {
	register("lzma", newLZMA)
}

// lzmaCompressor wraps ulikunitz/xz/lzma, the one Go LZMA implementation
// in the retrieval pack's dependency closure (named, not grounded, per
// SPEC_FULL.md §B). lzma has no framed "expected length unknown" marker the
// way zstd does, so Decompress relies on the caller-supplied expectedLen.
type lzmaCompressor struct {
	preset lzma.Preset
	extreme bool
}

func newLZMA(params map[string]string) (Compressor, error) {
	preset := lzma.Preset6
	if raw, ok := params["level"]; ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("compressor: lzma: bad level %q: %w", raw, dwarfserr.ErrBadParameter)
		}
		if n < 0 || n > 9 {
			return nil, fmt.Errorf("compressor: lzma: level %d out of range [0,9]: %w", n, dwarfserr.ErrBadParameter)
		}
		preset = lzma.Preset(n)
	}
	_, extreme := params["extreme"]
	return &lzmaCompressor{preset: preset, extreme: extreme}, nil
}

func (c *lzmaCompressor) Compress(src []byte) ([]byte, error) {
	// ulikunitz/xz/lzma has no distinct "extreme" mode; the flag is parsed
	// for spec compatibility with xz's CLI-style presets but only the
	// numeric level affects the dictionary/match-finder settings here.
	cfg := lzma.WriterConfig{}
	c.preset.Config(&cfg)
	var buf bytes.Buffer
	w, err := cfg.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("compressor: lzma: %w", err)
	}
	if _, err := w.Write(src); err != nil {
		return nil, fmt.Errorf("compressor: lzma: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compressor: lzma: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *lzmaCompressor) Decompress(src []byte, expectedLen int) ([]byte, error) {
	r, err := lzma.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("compressor: lzma: %w: %v", dwarfserr.ErrCorruptInput, err)
	}
	out := bytes.NewBuffer(make([]byte, 0, expectedLen))
	if _, err := out.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("compressor: lzma: %w: %v", dwarfserr.ErrCorruptInput, err)
	}
	return out.Bytes(), nil
}

func (c *lzmaCompressor) Name() string { return "lzma" }
