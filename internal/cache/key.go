package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"
)

// Key derives a deterministic cache key from normalized query parameters.
// Identical logical queries hash identically regardless of filter map
// insertion order; every field is length-prefixed so adjacent values
// cannot collide by concatenation.
func Key(query string, topK int, filters map[string]any, tags []string) string {
	h := sha256.New()

	writeField(h, query)
	writeField(h, fmt.Sprintf("%d", topK))

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeField(h, k)
		writeField(h, fmt.Sprintf("%v", filters[k]))
	}

	sorted := append([]string(nil), tags...)
	sort.Strings(sorted)
	for _, tag := range sorted {
		writeField(h, tag)
	}

	return hex.EncodeToString(h.Sum(nil))
}

func writeField(h interface{ Write(p []byte) (int, error) }, s string) {
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(s)))
	_, _ = h.Write(lenBuf[:])
	_, _ = h.Write([]byte(s))
}
