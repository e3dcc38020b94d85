package badger

import (
	"encoding/binary"

	"github.com/poiesic/projectsearch/core"
)

// Key prefixes for different record types
const (
	embeddingPrefix = "embvec:"
)

// makeEmbeddingKey generates a key for a cached embedding.
// Format: prefix + 8-byte big-endian fingerprint
func makeEmbeddingKey(fp core.Fingerprint) []byte {
	buf := make([]byte, len(embeddingPrefix)+8)
	offset := copy(buf, embeddingPrefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(fp))
	return buf
}
