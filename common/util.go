package common

import (
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// HashStrings hashes a list of strings in the given order.  Each string is
// terminated so that ["ab", "c"] and ["a", "bc"] hash differently.
func HashStrings(strs []string) uint64 {
	d := xxhash.New()
	for _, s := range strs {
		d.WriteString(s)
		d.Write([]byte{0})
	}

	return d.Sum64()
}

// HashSortedStrings hashes a list of strings independent of their order.
func HashSortedStrings(strs []string) uint64 {
	sorted := append([]string(nil), strs...)
	sort.Strings(sorted)
	return HashStrings(sorted)
}

// ShortHash formats a hash as a fixed width hexadecimal string of the given
// length: used for chunk content hashes.
func ShortHash(h uint64, length int) string {
	s := strconv.FormatUint(h, 16)
	for len(s) < 16 {
		s = "0" + s
	}

	if length > 0 && length < len(s) {
		return s[:length]
	}

	return s
}
