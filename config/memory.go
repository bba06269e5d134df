package config

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// ParseMemoryLimit parses the --memory-limit flag's k/m/g-suffixed value
// (e.g. "1g", "512m") into a byte count, using go-humanize's ParseBytes,
// the library kloset's progress reporter uses for human-readable sizes.
// ParseBytes reads bare k/m/g as SI multiples of 1000 ("1g" is 10^9 bytes)
// and ki/mi/gi as IEC multiples of 1024. An empty string yields
// DefaultMemoryLimit.
func ParseMemoryLimit(s string) (uint64, error) {
	if s == "" {
		return DefaultMemoryLimit, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("config: bad memory-limit %q: %w", s, err)
	}
	return n, nil
}

// DefaultMemoryLimit is the limit used for an empty --memory-limit value:
// 1 GiB (2^30 bytes), slightly more than ParseMemoryLimit("1g").
const DefaultMemoryLimit = 1 << 30
