package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// TestimonyChunk is one token-bounded slice of a transcript with its embedding.
// (testimony_id, chunk_index) is unique so re-indexing overwrites in place.
type TestimonyChunk struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	TestimonyID uint            `gorm:"not null;uniqueIndex:ux_chunks_testimony_index,priority:1" json:"testimony_id"`
	ChunkIndex  int             `gorm:"not null;uniqueIndex:ux_chunks_testimony_index,priority:2" json:"chunk_index"`
	Text        string          `gorm:"type:text;not null" json:"text"`
	TokenCount  int             `gorm:"not null" json:"token_count"`
	Embedding   pgvector.Vector `gorm:"type:vector" json:"-"`
}

// TableName specifies the table name for GORM
func (TestimonyChunk) TableName() string {
	return "testimony_chunks"
}

// TestimonyEmbedding is the summary-level embedding, one per testimony
type TestimonyEmbedding struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	TestimonyID uint            `gorm:"not null;uniqueIndex" json:"testimony_id"`
	Model       string          `json:"model"`
	Embedding   pgvector.Vector `gorm:"type:vector" json:"-"`
}

// TableName specifies the table name for GORM
func (TestimonyEmbedding) TableName() string {
	return "testimony_embeddings"
}
