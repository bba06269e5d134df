package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FileOrder selects how the scanner assigns inode order to regular files,
// per spec.md §4.4.
type FileOrder int

const (
	OrderNone FileOrder = iota
	OrderPath
	OrderSimilarity
	OrderScript
)

func ParseFileOrder(s string) (FileOrder, error) {
	switch s {
	case "none":
		return OrderNone, nil
	case "path":
		return OrderPath, nil
	case "similarity", "":
		return OrderSimilarity, nil
	case "script":
		return OrderScript, nil
	default:
		return 0, fmt.Errorf("config: unknown order %q", s)
	}
}

func (o FileOrder) String() string {
	switch o {
	case OrderNone:
		return "none"
	case OrderPath:
		return "path"
	case OrderSimilarity:
		return "similarity"
	case OrderScript:
		return "script"
	default:
		return "unknown"
	}
}

// BuilderOptions carries the per-build knobs threaded through scanner,
// segmenter and writer, shaped after kloset's snapshot.BuilderOptions: a
// flat struct of scalars rather than a nested tree, populated once by the
// CLI and passed down by value/pointer.
type BuilderOptions struct {
	Input  string
	Output string

	BlockSizeBits int
	WindowSizes   []int // exponents, e.g. []int{17,15,13,11}; empty disables segmentation

	DataCompression     string
	SchemaCompression   string
	MetadataCompression string

	NumWorkers        int
	MaxScannerWorkers int
	MemoryLimit       uint64 // bytes

	Order      FileOrder
	ScriptPath string

	SetOwner *uint32
	SetGroup *uint32
	SetTime  *time.Time

	Recompress bool

	LogLevel   string
	NoProgress bool
}

// ParseWindowSizes parses the --blockhash-window-sizes flag: a
// comma-separated list of exponents ("17,15,13,11"), or "-" to disable
// segmentation entirely (the level table's own "-" entries, per spec.md
// §6's level defaults).
func ParseWindowSizes(s string) ([]int, error) {
	if s == "" || s == "-" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("config: bad window size exponent %q: %w", p, err)
		}
		out = append(out, n)
	}
	return out, nil
}
