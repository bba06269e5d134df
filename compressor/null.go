package compressor

func init() {
	register("null", newNull)
}

type nullCompressor struct{}

func newNull(params map[string]string) (Compressor, error) {
	return nullCompressor{}, nil
}

func (nullCompressor) Compress(src []byte) ([]byte, error) {
	out := make([]byte, len(src))
	copy(out, src)
	return out, nil
}

func (nullCompressor) Decompress(src []byte, expectedLen int) ([]byte, error) {
	out := make([]byte, len(src))
	copy(out, src)
	return out, nil
}

func (nullCompressor) Name() string { return "null" }
