// Package fileid derives deterministic index identifiers for watched local files.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const prefix = "file:"

// FileDocID returns a stable identifier for the given absolute path. The same
// path always yields the same ID, so re-indexing a watched file dedupes
// against its earlier insert.
func FileDocID(absolutePath string) string {
	normalized := filepath.Clean(absolutePath)
	hash := sha256.Sum256([]byte(normalized))
	return prefix + hex.EncodeToString(hash[:])
}
