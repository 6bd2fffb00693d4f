package cache

import (
	"fmt"
	"strconv"

	"github.com/zeebo/xxh3"
)

// StatPair is one (name, count) pair in a structural fingerprint: per-label
// node counts followed by per-type relationship counts, in a fixed order.
type StatPair struct {
	Name  string
	Count int
}

// GraphFingerprint summarizes graph structure. Callers supply pairs in a
// deterministic order so equal graphs always produce equal fingerprints.
func GraphFingerprint(pairs []StatPair) string {
	h := xxh3.New()
	for _, p := range pairs {
		fmt.Fprintf(h, "%s=%d;", p.Name, p.Count)
	}
	return strconv.FormatUint(h.Sum64(), 16)
}
