package model

import (
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// DocumentChunk is one addressable segment of a processed document. Its ID is
// derived from (document_id, chunker_name, chunker_version, ordinal), so
// re-chunking under the same chunker version upserts rather than duplicates.
// A chunker version bump produces a new generation of rows alongside the old.
type DocumentChunk struct {
	BaseModel
	DocumentID     uuid.UUID        `gorm:"type:uuid;not null;index;uniqueIndex:idx_chunks_identity" json:"document_id"`
	ChunkerName    string           `gorm:"size:100;not null;uniqueIndex:idx_chunks_identity" json:"chunker_name"`
	ChunkerVersion string           `gorm:"size:50;not null;uniqueIndex:idx_chunks_identity" json:"chunker_version"`
	Ordinal        int              `gorm:"not null;uniqueIndex:idx_chunks_identity" json:"ordinal"`
	Text           string           `gorm:"type:text;not null" json:"text"`
	TokenCount     int              `gorm:"default:0" json:"token_count"`
	Embedding      *pgvector.Vector `gorm:"type:vector(1536)" json:"-"` // null until the embedding stage runs
	Metadata       JSONMap          `gorm:"type:jsonb" json:"metadata"`

	// Relations
	Document *Document `gorm:"foreignKey:DocumentID" json:"document,omitempty"`
}

func (DocumentChunk) TableName() string {
	return "document_chunks"
}
