package engine

import "github.com/cespare/xxhash/v2"

// Fingerprint computes a stable content hash over the exact outbound text.
// The same rendered content always produces the same fingerprint, so a
// session's bounded sent-hash set suffices to guarantee the same text is
// never delivered twice no matter how often scheduling re-evaluates.
func Fingerprint(content string) uint64 {
	return xxhash.Sum64String(content)
}
