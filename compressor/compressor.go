// Package compressor implements the opaque byte-buffer codec contract
// from spec.md §4.1: a named algorithm selected by a textual spec
// "algo:key=value:key=value", with availability gated at construction
// time. Modeled on kloset/packfile's interface+Ctor pattern (Packfile /
// PackfileCtor), generalized from "one concrete packer" to "one codec per
// algorithm name".
package compressor

import (
	"fmt"

	"github.com/dwarfs-go/dwarfs/dwarfserr"
)

// Compressor is the contract every algorithm variant implements.
type Compressor interface {
	// Compress returns the compressed form of src.
	Compress(src []byte) ([]byte, error)

	// Decompress returns the decompressed form of src. expectedLen is the
	// known original length (carried alongside the compressed section in
	// the image), used to preallocate and to validate framing.
	Decompress(src []byte, expectedLen int) ([]byte, error)

	// Name is the algorithm keyword, e.g. "zstd", "lz4hc", "null".
	Name() string
}

// Ctor builds a Compressor from the parsed key/value parameters of a spec.
type Ctor func(params map[string]string) (Compressor, error)

var registry = map[string]Ctor{}

func register(name string, ctor Ctor) {
	registry[name] = ctor
}

// New parses a textual spec of the form "algo" or "algo:key=value:key=value"
// (colon-separated segments, see parseSpec) and constructs the matching
// Compressor.
func New(spec string) (Compressor, error) {
	name, params, err := parseSpec(spec)
	if err != nil {
		return nil, err
	}
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("compressor: %q: %w", name, dwarfserr.ErrUnknownAlgorithm)
	}
	c, err := ctor(params)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// parseSpec splits a colon-delimited spec such as "zstd:level=19" or
// "lzma:level=9:extreme" into the algorithm name and a map of parameters.
// Each segment after the name is either "key=value" or a bare flag (like
// "extreme"), which is recorded with an empty value. A bare "algo" (no
// colon) yields an empty param map.
func parseSpec(spec string) (name string, params map[string]string, err error) {
	if spec == "" {
		return "", nil, fmt.Errorf("compressor: empty spec: %w", dwarfserr.ErrBadParameter)
	}

	segments := splitColon(spec)
	name = segments[0]
	if name == "" {
		return "", nil, fmt.Errorf("compressor: empty algorithm name in %q: %w", spec, dwarfserr.ErrBadParameter)
	}

	params = map[string]string{}
	for _, seg := range segments[1:] {
		if seg == "" {
			continue
		}
		eq := indexByte(seg, '=')
		if eq < 0 {
			params[seg] = ""
			continue
		}
		params[seg[:eq]] = seg[eq+1:]
	}
	return name, params, nil
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func splitColon(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}
