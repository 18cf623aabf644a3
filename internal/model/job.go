package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStage is one step of the ingestion state machine. A job advances through
// the ordered stages below; "failed" is reachable from any non-terminal stage
// once retries are exhausted.
type JobStage string

const (
	StageUploaded            JobStage = "uploaded"
	StageParsing             JobStage = "parsing"
	StageParsed              JobStage = "parsed"
	StageChunking            JobStage = "chunking"
	StageChunksStored        JobStage = "chunks_stored"
	StageEmbeddingQueued     JobStage = "embedding_queued"
	StageEmbeddingInProgress JobStage = "embedding_in_progress"
	StageEmbeddingsStored    JobStage = "embeddings_stored"
	StageComplete            JobStage = "complete"
	StageFailed              JobStage = "failed"
)

// stageOrder is the canonical progression. Index lookups back CanAdvanceTo,
// so the slice must stay in transition order.
var stageOrder = []JobStage{
	StageUploaded,
	StageParsing,
	StageParsed,
	StageChunking,
	StageChunksStored,
	StageEmbeddingQueued,
	StageEmbeddingInProgress,
	StageEmbeddingsStored,
	StageComplete,
}

// Valid reports whether s is a known stage value.
func (s JobStage) Valid() bool {
	if s == StageFailed {
		return true
	}
	for _, st := range stageOrder {
		if st == s {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are permitted from s.
func (s JobStage) Terminal() bool {
	return s == StageComplete || s == StageFailed
}

// Next returns the immediate successor stage. ok is false for terminal or
// unknown stages.
func (s JobStage) Next() (next JobStage, ok bool) {
	for i, st := range stageOrder {
		if st == s && i+1 < len(stageOrder) {
			return stageOrder[i+1], true
		}
	}
	return "", false
}

// CanAdvanceTo reports whether the transition s -> next is legal: either the
// immediate successor, or failed from any non-terminal stage.
func (s JobStage) CanAdvanceTo(next JobStage) bool {
	if s.Terminal() {
		return false
	}
	if next == StageFailed {
		return true
	}
	succ, ok := s.Next()
	return ok && succ == next
}

// JobSpec is the typed per-job processing configuration. It is validated when
// the job is created, never at consumption time. TokenCounter is part of the
// chunk identity: boundaries depend on the counter, so two workers processing
// the same job must resolve the same one by name rather than whatever their
// host happens to have available.
type JobSpec struct {
	ParserVersion       string `json:"parser_version"`
	ChunkerName         string `json:"chunker_name"`
	ChunkerVersion      string `json:"chunker_version"`
	TokenCounter        string `json:"token_counter"`
	MaxChunkTokens      int    `json:"max_chunk_tokens"`
	EmbeddingModel      string `json:"embedding_model"`
	EmbeddingDimensions int    `json:"embedding_dimensions"`
}

func (s JobSpec) Validate() error {
	if s.ParserVersion == "" {
		return fmt.Errorf("job spec: parser_version required")
	}
	if s.ChunkerName == "" || s.ChunkerVersion == "" {
		return fmt.Errorf("job spec: chunker_name and chunker_version required")
	}
	if s.TokenCounter == "" {
		return fmt.Errorf("job spec: token_counter required")
	}
	if s.MaxChunkTokens <= 0 {
		return fmt.Errorf("job spec: max_chunk_tokens must be positive, got %d", s.MaxChunkTokens)
	}
	if s.EmbeddingModel == "" {
		return fmt.Errorf("job spec: embedding_model required")
	}
	if s.EmbeddingDimensions <= 0 {
		return fmt.Errorf("job spec: embedding_dimensions must be positive, got %d", s.EmbeddingDimensions)
	}
	return nil
}

func (s JobSpec) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *JobSpec) Scan(value interface{}) error {
	if value == nil {
		*s = JobSpec{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for JobSpec: %T", value)
	}

	return json.Unmarshal(data, s)
}

// UploadJob is one unit of processing work against a document. Jobs are
// created by the upload service and mutated exclusively by the orchestrator.
// Job IDs are random by design; only documents and chunks need deterministic
// identity.
type UploadJob struct {
	BaseModel
	DocumentID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"document_id"`
	Stage          JobStage   `gorm:"size:50;not null;default:'uploaded';index" json:"stage"`
	RetryCount     int        `gorm:"default:0" json:"retry_count"`
	MaxRetries     int        `gorm:"default:3" json:"max_retries"`
	ErrorMessage   string     `gorm:"type:text" json:"error_message,omitempty"`
	LeaseOwner     string     `gorm:"size:100;default:''" json:"lease_owner,omitempty"`
	LeaseExpiresAt *time.Time `gorm:"index" json:"lease_expires_at,omitempty"`
	RunAfter       time.Time  `gorm:"not null;index" json:"run_after"`
	Spec           JobSpec    `gorm:"type:jsonb" json:"spec"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`

	// Relations
	Document *Document `gorm:"foreignKey:DocumentID" json:"document,omitempty"`
}

func (UploadJob) TableName() string {
	return "upload_jobs"
}
