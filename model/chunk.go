package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Chunk is a contiguous span [StartPos, EndPos) of a document's content.
type Chunk struct {
	ID            uuid.UUID  `json:"id"`
	DocumentID    uuid.UUID  `json:"document_id"`
	Index         int        `json:"index"`
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	StartPos      int        `json:"start_pos"`
	EndPos        int        `json:"end_pos"`
	HeadingLevel  *int       `json:"heading_level,omitempty"`
	SubChunkIndex *int       `json:"sub_chunk_index,omitempty"`
	Metadata      Metadata   `json:"metadata,omitempty"`
	Embedding     *Embedding `json:"embedding,omitempty"`
	Failed        bool       `json:"failed,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Embedding is the vector of one chunk. ChunkID is the chunk's id.
type Embedding struct {
	ChunkID   uuid.UUID `json:"chunk_id"`
	Vector    []float32 `json:"vector"`
	Model     string    `json:"model"`
	Dimension int       `json:"dimension"`
}

// ChunkID returns the deterministic id of the chunk at index covering [start, end) of a document.
// Re-chunking the same document with the same policy yields the same ids.
func ChunkID(documentID uuid.UUID, index int, start int, end int) uuid.UUID {
	return uuid.NewSHA1(documentID, []byte(fmt.Sprintf("%d:%d:%d", index, start, end)))
}

// VectorID returns the id of the vector entry of a chunk: documentId-chunkId.
func VectorID(documentID uuid.UUID, chunkID uuid.UUID) string {
	return documentID.String() + "-" + chunkID.String()
}

// Preview returns the first n runes of the chunk content.
func (c *Chunk) Preview(n int) string {
	runes := []rune(c.Content)
	if len(runes) <= n {
		return c.Content
	}
	return string(runes[:n])
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
