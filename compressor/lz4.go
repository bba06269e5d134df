package compressor

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/dwarfs-go/dwarfs/dwarfserr"
	"github.com/pierrec/lz4/v4"
)

func init() {
	register("lz4", newLZ4)
	register("lz4hc", newLZ4HC)
}

type lz4Compressor struct {
	level lz4.CompressionLevel
	name  string
}

func newLZ4(params map[string]string) (Compressor, error) {
	return newLZ4Variant("lz4", lz4.Fast, params)
}

func newLZ4HC(params map[string]string) (Compressor, error) {
	return newLZ4Variant("lz4hc", lz4.Level9, params)
}

func newLZ4Variant(name string, defaultLevel lz4.CompressionLevel, params map[string]string) (Compressor, error) {
	level := defaultLevel
	if raw, ok := params["level"]; ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("compressor: %s: bad level %q: %w", name, raw, dwarfserr.ErrBadParameter)
		}
		if n < 0 || n > 9 {
			return nil, fmt.Errorf("compressor: %s: level %d out of range [0,9]: %w", name, n, dwarfserr.ErrBadParameter)
		}
		level = [...]lz4.CompressionLevel{lz4.Fast, lz4.Level1, lz4.Level2, lz4.Level3, lz4.Level4, lz4.Level5, lz4.Level6, lz4.Level7, lz4.Level8, lz4.Level9}[n]
	}
	return &lz4Compressor{level: level, name: name}, nil
}

func (c *lz4Compressor) Compress(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if err := w.Apply(lz4.CompressionLevelOption(c.level)); err != nil {
		return nil, fmt.Errorf("compressor: %s: %w", c.name, err)
	}
	if _, err := w.Write(src); err != nil {
		return nil, fmt.Errorf("compressor: %s: %w", c.name, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compressor: %s: %w", c.name, err)
	}
	return buf.Bytes(), nil
}

func (c *lz4Compressor) Decompress(src []byte, expectedLen int) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(src))
	out := make([]byte, 0, expectedLen)
	buf := bytes.NewBuffer(out)
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("compressor: %s: %w: %v", c.name, dwarfserr.ErrCorruptInput, err)
	}
	return buf.Bytes(), nil
}

func (c *lz4Compressor) Name() string { return c.name }
