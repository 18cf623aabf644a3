package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/andrew-quintana/insurance-navigator-sub019/internal/chunker"
	"github.com/andrew-quintana/insurance-navigator-sub019/internal/embedder"
	"github.com/andrew-quintana/insurance-navigator-sub019/internal/identity"
	"github.com/andrew-quintana/insurance-navigator-sub019/internal/metrics"
	"github.com/andrew-quintana/insurance-navigator-sub019/internal/model"
	"github.com/andrew-quintana/insurance-navigator-sub019/internal/parser"
	"github.com/andrew-quintana/insurance-navigator-sub019/internal/pipeline"
	"github.com/andrew-quintana/insurance-navigator-sub019/internal/tokens"
)

// JobStore is the slice of the job repository the orchestrator drives. Every
// mutation is guarded server-side by (stage, lease_owner), so a worker whose
// lease expired cannot corrupt state.
type JobStore interface {
	ClaimNext(ctx context.Context, workerID string, ttl time.Duration) (*model.UploadJob, error)
	RenewLease(ctx context.Context, jobID uuid.UUID, workerID string, ttl time.Duration) error
	AdvanceStage(ctx context.Context, job *model.UploadJob, next model.JobStage, workerID string) error
	RescheduleRetry(ctx context.Context, job *model.UploadJob, workerID, errorMsg string, delay time.Duration) error
	MarkFailed(ctx context.Context, job *model.UploadJob, workerID, errorMsg string) error
}

type DocumentStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Document, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.DocumentStatus, errorMsg string) error
	SetParsedPath(ctx context.Context, id uuid.UUID, path string) error
}

type ChunkStore interface {
	UpsertBatch(ctx context.Context, chunks []model.DocumentChunk) error
	DeleteBeyond(ctx context.Context, documentID uuid.UUID, chunkerName, chunkerVersion string, firstStale int) error
	PendingEmbedding(ctx context.Context, documentID uuid.UUID, chunkerName, chunkerVersion string) ([]model.DocumentChunk, error)
	SetEmbedding(ctx context.Context, chunkID uuid.UUID, embedding pgvector.Vector) error
}

type BlobStore interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(key string, data []byte) (string, error)
}

// Config tunes the orchestrator's retry and batching behaviour.
type Config struct {
	LeaseTTL       time.Duration
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	EmbedBatchSize int
}

func (c Config) withDefaults() Config {
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = 2 * time.Minute
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 5 * time.Second
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = 5 * time.Minute
	}
	if c.EmbedBatchSize <= 0 {
		c.EmbedBatchSize = 64
	}
	return c
}

// Orchestrator drives a claimed job through the processing state machine.
// Each stage commits its durable side effect before the stage transition is
// persisted; parser, chunker and embedder stay stateless transformers.
type Orchestrator struct {
	jobs     JobStore
	docs     DocumentStore
	chunks   ChunkStore
	blobs    BlobStore
	parsers  *parser.Registry
	embedder embedder.Embedder
	cfg      Config
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewOrchestrator(jobs JobStore, docs DocumentStore, chunks ChunkStore, blobs BlobStore,
	parsers *parser.Registry, emb embedder.Embedder,
	cfg Config, m *metrics.Metrics, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		jobs:     jobs,
		docs:     docs,
		chunks:   chunks,
		blobs:    blobs,
		parsers:  parsers,
		embedder: emb,
		cfg:      cfg.withDefaults(),
		metrics:  m,
		logger:   logger.With("component", "orchestrator"),
	}
}

// Process runs the claimed job forward until it reaches a terminal stage or a
// stage fails. On failure it either re-schedules the same stage with backoff
// or marks the job permanently failed; errors never propagate past here.
func (o *Orchestrator) Process(ctx context.Context, job *model.UploadJob, workerID string) {
	logger := o.logger.With("job_id", job.ID, "document_id", job.DocumentID, "worker_id", workerID)

	doc, err := o.docs.FindByID(ctx, job.DocumentID)
	if err != nil {
		o.fail(ctx, job, workerID, logger, fmt.Errorf("load document: %w", err))
		return
	}

	for !job.Stage.Terminal() {
		stage := job.Stage
		start := time.Now()

		err := o.runStage(ctx, job, doc, workerID)

		if o.metrics != nil {
			o.metrics.StageDurationSeconds.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
		}

		if err != nil {
			o.fail(ctx, job, workerID, logger.With("stage", stage), err)
			return
		}

		if o.metrics != nil {
			o.metrics.JobStagesTotal.WithLabelValues(string(stage), "ok").Inc()
		}

		if job.Stage.Terminal() {
			break
		}

		if err := o.jobs.RenewLease(ctx, job.ID, workerID, o.cfg.LeaseTTL); err != nil {
			// Lease lost: another worker owns the job now, stop quietly.
			logger.Warn("lease lost, abandoning job", "stage", job.Stage, "error", err)
			return
		}
	}

	if job.Stage == model.StageComplete {
		logger.Info("job complete", "retry_count", job.RetryCount)
	}
}

// runStage executes the work owed at the job's current stage and commits the
// transition to the next one.
func (o *Orchestrator) runStage(ctx context.Context, job *model.UploadJob, doc *model.Document, workerID string) error {
	switch job.Stage {
	case model.StageUploaded:
		if err := o.docs.UpdateStatus(ctx, doc.ID, model.DocumentStatusProcessing, ""); err != nil {
			return fmt.Errorf("mark document processing: %w", err)
		}
		return o.jobs.AdvanceStage(ctx, job, model.StageParsing, workerID)

	case model.StageParsing:
		if err := o.parse(ctx, job, doc); err != nil {
			return err
		}
		return o.jobs.AdvanceStage(ctx, job, model.StageParsed, workerID)

	case model.StageParsed:
		return o.jobs.AdvanceStage(ctx, job, model.StageChunking, workerID)

	case model.StageChunking:
		if err := o.chunk(ctx, job, doc); err != nil {
			return err
		}
		return o.jobs.AdvanceStage(ctx, job, model.StageChunksStored, workerID)

	case model.StageChunksStored:
		return o.jobs.AdvanceStage(ctx, job, model.StageEmbeddingQueued, workerID)

	case model.StageEmbeddingQueued:
		return o.jobs.AdvanceStage(ctx, job, model.StageEmbeddingInProgress, workerID)

	case model.StageEmbeddingInProgress:
		if err := o.embed(ctx, job); err != nil {
			return err
		}
		return o.jobs.AdvanceStage(ctx, job, model.StageEmbeddingsStored, workerID)

	case model.StageEmbeddingsStored:
		if err := o.docs.UpdateStatus(ctx, doc.ID, model.DocumentStatusProcessed, ""); err != nil {
			return fmt.Errorf("mark document processed: %w", err)
		}
		return o.jobs.AdvanceStage(ctx, job, model.StageComplete, workerID)

	default:
		return fmt.Errorf("unexpected stage %q: %w", job.Stage, pipeline.ErrInvalidInput)
	}
}

// parse reads the raw upload, normalizes it, and durably persists the parse
// output before the stage can advance.
func (o *Orchestrator) parse(ctx context.Context, job *model.UploadJob, doc *model.Document) error {
	raw, err := o.blobs.ReadFile(doc.StoragePath)
	if err != nil {
		return fmt.Errorf("read raw upload: %w", err)
	}

	text, err := o.parsers.Parse(ctx, raw, doc.ContentType)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}

	key := fmt.Sprintf("derived/%s/normalized-%s.md", doc.ID, job.Spec.ParserVersion)
	path, err := o.blobs.WriteFile(key, []byte(text))
	if err != nil {
		return fmt.Errorf("persist parse output: %w", err)
	}

	if err := o.docs.SetParsedPath(ctx, doc.ID, path); err != nil {
		return fmt.Errorf("record parse output: %w", err)
	}
	doc.ParsedPath = path

	return nil
}

// chunk splits the parse output and upserts the chunk rows under their
// deterministic IDs; a retried stage rewrites the same rows. The counter is
// resolved from the name pinned in the job spec, never from whatever this
// worker has loaded, so a retry on another worker reproduces the same set.
func (o *Orchestrator) chunk(ctx context.Context, job *model.UploadJob, doc *model.Document) error {
	if doc.ParsedPath == "" {
		fresh, err := o.docs.FindByID(ctx, doc.ID)
		if err != nil {
			return fmt.Errorf("reload document: %w", err)
		}
		*doc = *fresh
	}

	text, err := o.blobs.ReadFile(doc.ParsedPath)
	if err != nil {
		return fmt.Errorf("read parse output: %w", err)
	}

	counter, err := tokens.ForName(job.Spec.TokenCounter)
	if err != nil {
		return fmt.Errorf("resolve token counter: %w", err)
	}

	ck := chunker.New(job.Spec.ChunkerName, job.Spec.ChunkerVersion, job.Spec.MaxChunkTokens, counter)
	pieces := ck.Chunk(string(text))

	rows := make([]model.DocumentChunk, 0, len(pieces))
	for _, p := range pieces {
		row := model.DocumentChunk{
			DocumentID:     doc.ID,
			ChunkerName:    ck.Name(),
			ChunkerVersion: ck.Version(),
			Ordinal:        p.Ordinal,
			Text:           p.Text,
			TokenCount:     p.TokenCount,
		}
		row.ID = identity.ChunkID(doc.ID, ck.Name(), ck.Version(), p.Ordinal)
		if p.Section != "" {
			row.Metadata = model.JSONMap{"section": p.Section}
		}
		rows = append(rows, row)
	}

	if err := o.chunks.UpsertBatch(ctx, rows); err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}

	// A re-chunk that produced fewer chunks than a previous run must not
	// leave the previous run's tail behind.
	if err := o.chunks.DeleteBeyond(ctx, doc.ID, ck.Name(), ck.Version(), len(rows)); err != nil {
		return fmt.Errorf("prune stale chunks: %w", err)
	}

	return nil
}

// embed fills in vectors for every chunk of this job's generation that still
// lacks one. Resuming after a partial failure only re-embeds the remainder.
func (o *Orchestrator) embed(ctx context.Context, job *model.UploadJob) error {
	pending, err := o.chunks.PendingEmbedding(ctx, job.DocumentID, job.Spec.ChunkerName, job.Spec.ChunkerVersion)
	if err != nil {
		return fmt.Errorf("list pending chunks: %w", err)
	}

	for start := 0; start < len(pending); start += o.cfg.EmbedBatchSize {
		end := start + o.cfg.EmbedBatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		vectors, err := o.embedder.Embed(ctx, texts)
		if err != nil {
			if o.metrics != nil {
				o.metrics.EmbeddingRequestsTotal.WithLabelValues("error").Inc()
			}
			return fmt.Errorf("embed batch: %w", err)
		}
		if o.metrics != nil {
			o.metrics.EmbeddingRequestsTotal.WithLabelValues("ok").Inc()
		}

		for i, c := range batch {
			if err := o.chunks.SetEmbedding(ctx, c.ID, pgvector.NewVector(vectors[i])); err != nil {
				return fmt.Errorf("store embedding: %w", err)
			}
		}
	}

	return nil
}

// fail translates a stage error into a retry decision: transient errors
// re-schedule the same stage with exponential backoff until retries are
// exhausted; invalid input fails the job immediately.
func (o *Orchestrator) fail(ctx context.Context, job *model.UploadJob, workerID string, logger *slog.Logger, stageErr error) {
	retryable := pipeline.Retryable(stageErr)

	if retryable && job.RetryCount < job.MaxRetries {
		delay := backoffDelay(o.cfg.RetryBaseDelay, o.cfg.RetryMaxDelay, job.RetryCount)
		if err := o.jobs.RescheduleRetry(ctx, job, workerID, stageErr.Error(), delay); err != nil {
			logger.Error("failed to reschedule job", "error", err)
			return
		}
		if o.metrics != nil {
			o.metrics.JobStagesTotal.WithLabelValues(string(job.Stage), "retry").Inc()
		}
		logger.Warn("stage failed, rescheduled",
			"error", stageErr,
			"retry_count", job.RetryCount,
			"delay", delay)
		return
	}

	reason := stageErr.Error()
	if !retryable {
		reason = "document cannot be processed: " + reason
	} else {
		reason = "retries exhausted: " + reason
	}

	if err := o.jobs.MarkFailed(ctx, job, workerID, reason); err != nil {
		logger.Error("failed to mark job failed", "error", err)
		return
	}
	if err := o.docs.UpdateStatus(ctx, job.DocumentID, model.DocumentStatusFailed, reason); err != nil {
		logger.Error("failed to mark document failed", "error", err)
	}
	if o.metrics != nil {
		o.metrics.JobStagesTotal.WithLabelValues(string(job.Stage), "failed").Inc()
	}
	logger.Error("job permanently failed", "error", stageErr, "retry_count", job.RetryCount)
}

// backoffDelay is base * 2^retry capped at max.
func backoffDelay(base, max time.Duration, retry int) time.Duration {
	if retry > 16 {
		retry = 16
	}
	delay := base << uint(retry)
	if delay > max || delay <= 0 {
		return max
	}
	return delay
}
