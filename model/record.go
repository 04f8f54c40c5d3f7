package model

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// WordsPerMinute is the reading speed used for ReadingTime.
const WordsPerMinute = 200

// RecordStatus is the lifecycle state of a document record.
type RecordStatus string

const (
	RecordStatusProcessed RecordStatus = "processed"
)

// DocumentRecord is the metadata entry of a committed document.
// A document counts as stored if and only if its record exists.
type DocumentRecord struct {
	DocumentID        uuid.UUID    `json:"document_id"`
	Title             string       `json:"title"`
	Format            string       `json:"format"`
	Source            string       `json:"source,omitempty"`
	Status            RecordStatus `json:"status"`
	QualityScore      float64      `json:"quality_score"`
	WordCount         int          `json:"word_count"`
	ReadingTime       int          `json:"reading_time"`
	Checksum          string       `json:"checksum"`
	ChunkCount        int          `json:"chunk_count"`
	RelationshipCount int          `json:"relationship_count"`
	Metadata          Metadata     `json:"metadata,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// NewDocumentRecord derives the metadata record of a processed document.
func NewDocumentRecord(doc *Document, chunks []*Chunk, relationships []*Relationship) *DocumentRecord {
	words := len(strings.Fields(doc.Content))
	sum := sha256.Sum256([]byte(doc.Content))

	return &DocumentRecord{
		DocumentID:        doc.ID,
		Title:             doc.Title,
		Format:            doc.Format,
		Source:            doc.Source,
		Status:            RecordStatusProcessed,
		QualityScore:      QualityScore(doc, relationships),
		WordCount:         words,
		ReadingTime:       ReadingTime(words),
		Checksum:          hex.EncodeToString(sum[:]),
		ChunkCount:        len(chunks),
		RelationshipCount: len(relationships),
		Metadata:          doc.Metadata.Copy(),
	}
}

// ReadingTime returns the reading time in whole minutes, at least 1 for non-empty text.
func ReadingTime(words int) int {
	if words <= 0 {
		return 0
	}
	return int(math.Ceil(float64(words) / WordsPerMinute))
}

// QualityScore rates a processed document in [0,1] as the mean of three signals:
// length (saturating at 300 words), structure (headings present) and
// connectedness (saturating at 3 relationships).
func QualityScore(doc *Document, relationships []*Relationship) float64 {
	words := len(strings.Fields(doc.Content))
	if words == 0 {
		return 0
	}

	length := math.Min(float64(words)/300, 1)

	structure := 0.5
	if len(doc.Headings()) > 0 {
		structure = 1
	}

	connected := math.Min(float64(len(relationships))/3, 1)

	score := (length + structure + connected) / 3
	return math.Round(score*1000) / 1000
}
