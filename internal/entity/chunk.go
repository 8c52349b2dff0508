package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// EmbeddingDimension is the width of the chunks.embedding column.
const EmbeddingDimension = 768

// Chunk is a contiguous slice of one transcript section. Embedding stays nil until the
// embedding loop fills it; it is written exactly once.
type Chunk struct {
	ID         uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentID uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:uq_chunks_doc_section_idx" json:"document_id"`
	Section    string           `gorm:"type:varchar(32);not null;uniqueIndex:uq_chunks_doc_section_idx" json:"section"`
	Speaker    *string          `gorm:"type:varchar(128)" json:"speaker"`
	ChunkIndex int              `gorm:"not null;uniqueIndex:uq_chunks_doc_section_idx" json:"chunk_index"`
	Text       string           `gorm:"type:text;not null" json:"text"`
	Embedding  *pgvector.Vector `gorm:"type:vector(768)" json:"-"`
	CreatedAt  time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for the Chunk model.
func (Chunk) TableName() string {
	return "chunks"
}

// BeforeCreate assigns a random id when none was set.
func (c *Chunk) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// HasEmbedding reports whether the chunk is searchable.
func (c *Chunk) HasEmbedding() bool {
	return c.Embedding != nil
}

// ScoredChunk is a chunk returned by a nearest-neighbour query, with its cosine distance.
type ScoredChunk struct {
	Chunk    `gorm:"embedded"`
	Distance float64 `gorm:"column:distance" json:"distance"`
}
