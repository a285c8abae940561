package gate

import (
	"sort"
	"strings"
)

// MismatchedChecksums returns, sorted, every configured filename whose
// submitted checksum is missing or different. Hex digests compare
// case-insensitively.
func MismatchedChecksums(expected, submitted map[string]string) []string {
	var bad []string
	for name, want := range expected {
		got, ok := submitted[name]
		if !ok || !strings.EqualFold(strings.TrimSpace(got), strings.TrimSpace(want)) {
			bad = append(bad, name)
		}
	}
	sort.Strings(bad)
	return bad
}
