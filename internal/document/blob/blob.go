// Package blob stores rendered version snapshots. Keys are content digests,
// so a write of the same bytes is idempotent.
package blob

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Digest returns the hex BLAKE2b-256 digest of data.
func Digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Key derives the object name for a snapshot.
func Key(digest string) string {
	return "versions/" + digest[:2] + "/" + digest
}
