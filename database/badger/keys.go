package badger

import (
	"encoding/binary"
	"strings"

	"github.com/google/uuid"
)

// Key prefixes for different data types
const (
	documentPrefix = "doc:"
	chunkPrefix    = "chk:"
)

// makeDocumentKey generates the key of a document's content.
func makeDocumentKey(id uuid.UUID) []byte {
	return []byte(documentPrefix + id.String())
}

// makeChunkPrefix generates the prefix shared by all chunks of a document.
// Format: prefix:documentID:
func makeChunkPrefix(documentID uuid.UUID) []byte {
	return []byte(chunkPrefix + documentID.String() + ":")
}

// makeChunkKey generates the key of a chunk.
// Format: prefix:documentID:index, the index in BigEndian so chunks iterate in order.
func makeChunkKey(documentID uuid.UUID, index int) []byte {
	prefix := makeChunkPrefix(documentID)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(index))
	return buf
}

// documentIDFromKey extracts the document id of a document or chunk key.
func documentIDFromKey(key []byte) (uuid.UUID, bool) {
	s := string(key)
	switch {
	case strings.HasPrefix(s, documentPrefix):
		s = strings.TrimPrefix(s, documentPrefix)
	case strings.HasPrefix(s, chunkPrefix):
		s = strings.TrimPrefix(s, chunkPrefix)
		if len(s) < 36 {
			return uuid.Nil, false
		}
		s = s[:36]
	default:
		return uuid.Nil, false
	}

	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
