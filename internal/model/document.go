package model

import (
	"github.com/google/uuid"
)

type DocumentStatus string

const (
	DocumentStatusUploaded   DocumentStatus = "uploaded"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusProcessed  DocumentStatus = "processed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// Document is one uploaded source file. Its ID is derived from
// (owner_id, content_hash), so re-uploading identical content by the same
// owner resolves to the same row.
type Document struct {
	BaseModel
	OwnerID      uuid.UUID      `gorm:"type:uuid;not null;index;uniqueIndex:idx_documents_owner_hash" json:"owner_id"`
	FileName     string         `gorm:"size:500;not null" json:"file_name"`
	ContentType  string         `gorm:"size:100" json:"content_type"`
	ContentHash  string         `gorm:"size:64;not null;uniqueIndex:idx_documents_owner_hash" json:"content_hash"`
	SizeBytes    int64          `gorm:"not null" json:"size_bytes"`
	StoragePath  string         `gorm:"size:1000" json:"storage_path"`
	ParsedPath   string         `gorm:"size:1000" json:"parsed_path,omitempty"`
	Status       DocumentStatus `gorm:"size:50;default:'uploaded'" json:"status"`
	ErrorMessage string         `gorm:"type:text" json:"error_message,omitempty"`
	Metadata     JSONMap        `gorm:"type:jsonb" json:"metadata"`
}

func (Document) TableName() string {
	return "documents"
}
