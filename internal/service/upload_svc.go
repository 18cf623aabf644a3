package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/andrew-quintana/insurance-navigator-sub019/internal/config"
	"github.com/andrew-quintana/insurance-navigator-sub019/internal/identity"
	"github.com/andrew-quintana/insurance-navigator-sub019/internal/metrics"
	"github.com/andrew-quintana/insurance-navigator-sub019/internal/model"
)

// ErrFileTooLarge rejects uploads over the configured size cap.
var ErrFileTooLarge = errors.New("file exceeds maximum upload size")

type documentStore interface {
	Upsert(ctx context.Context, doc *model.Document) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Document, error)
}

type jobCreator interface {
	CreateIfNoneActive(ctx context.Context, job *model.UploadJob) (bool, *model.UploadJob, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.UploadJob, error)
}

type blobWriter interface {
	Save(key string, r io.Reader) (string, error)
}

// UploadService is the upload gateway: it content-addresses the file, creates
// or reuses the document record, and enqueues the processing job.
type UploadService struct {
	docs    documentStore
	jobs    jobCreator
	blobs   blobWriter
	cfg     *config.Config
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewUploadService(docs documentStore, jobs jobCreator, blobs blobWriter, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) *UploadService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadService{
		docs:    docs,
		jobs:    jobs,
		blobs:   blobs,
		cfg:     cfg,
		metrics: m,
		logger:  logger.With("service", "upload"),
	}
}

// UploadResult is the job handle returned to the caller.
type UploadResult struct {
	DocumentID uuid.UUID `json:"document_id"`
	JobID      uuid.UUID `json:"job_id"`
	JobCreated bool      `json:"job_created"`
}

// Submit is idempotent per (owner, content hash): identical content from the
// same owner resolves to the same document ID, and a new job is created only
// when the document has no active one.
func (s *UploadService) Submit(ctx context.Context, ownerID uuid.UUID, filename, contentType string, r io.Reader) (*UploadResult, error) {
	if ownerID == uuid.Nil {
		return nil, fmt.Errorf("owner_id required")
	}

	data, err := io.ReadAll(io.LimitReader(r, s.cfg.MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.cfg.MaxUploadSize {
		s.count("rejected")
		return nil, ErrFileTooLarge
	}

	contentHash := identity.HashBytes(data)
	documentID := identity.DocumentID(ownerID, contentHash)
	filename = filepath.Base(filename)

	key := fmt.Sprintf("raw/%s/%s/%s", ownerID, documentID, filename)
	storagePath, err := s.blobs.Save(key, bytes.NewReader(data))
	if err != nil {
		s.count("rejected")
		return nil, fmt.Errorf("store upload: %w", err)
	}

	doc := &model.Document{
		OwnerID:     ownerID,
		FileName:    filename,
		ContentType: contentType,
		ContentHash: contentHash,
		SizeBytes:   int64(len(data)),
		StoragePath: storagePath,
		Status:      model.DocumentStatusUploaded,
	}
	doc.ID = documentID

	if err := s.docs.Upsert(ctx, doc); err != nil {
		s.count("rejected")
		return nil, fmt.Errorf("persist document: %w", err)
	}

	spec := model.JobSpec{
		ParserVersion:       s.cfg.ParserVersion,
		ChunkerName:         s.cfg.ChunkerName,
		ChunkerVersion:      s.cfg.ChunkerVersion,
		TokenCounter:        s.cfg.TokenCounter,
		MaxChunkTokens:      s.cfg.MaxChunkTokens,
		EmbeddingModel:      s.cfg.EmbeddingModel,
		EmbeddingDimensions: s.cfg.EmbeddingDimensions,
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	job := &model.UploadJob{
		DocumentID: documentID,
		Stage:      model.StageUploaded,
		MaxRetries: s.cfg.MaxRetries,
		RunAfter:   time.Now(),
		Spec:       spec,
	}

	created, active, err := s.jobs.CreateIfNoneActive(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	if created {
		s.count("created")
		s.logger.Info("upload accepted",
			"owner_id", ownerID,
			"document_id", documentID,
			"job_id", active.ID,
			"size_bytes", len(data))
	} else {
		s.count("duplicate")
		s.logger.Info("upload deduplicated onto active job",
			"owner_id", ownerID,
			"document_id", documentID,
			"job_id", active.ID)
	}

	return &UploadResult{
		DocumentID: documentID,
		JobID:      active.ID,
		JobCreated: created,
	}, nil
}

// JobStatus is the caller-visible view of a job.
type JobStatus struct {
	JobID        uuid.UUID      `json:"job_id"`
	DocumentID   uuid.UUID      `json:"document_id"`
	Stage        model.JobStage `json:"stage"`
	RetryCount   int            `json:"retry_count"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

func (s *UploadService) Status(ctx context.Context, jobID uuid.UUID) (*JobStatus, error) {
	job, err := s.jobs.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &JobStatus{
		JobID:        job.ID,
		DocumentID:   job.DocumentID,
		Stage:        job.Stage,
		RetryCount:   job.RetryCount,
		ErrorMessage: job.ErrorMessage,
	}, nil
}

func (s *UploadService) count(outcome string) {
	if s.metrics != nil {
		s.metrics.UploadsTotal.WithLabelValues(outcome).Inc()
	}
}
