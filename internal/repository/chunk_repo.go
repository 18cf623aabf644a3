package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/andrew-quintana/insurance-navigator-sub019/internal/model"
)

type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// UpsertBatch writes chunks keyed by their deterministic IDs. A retried
// chunking stage overwrites the same rows rather than duplicating them.
func (r *ChunkRepository) UpsertBatch(ctx context.Context, chunks []model.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"text", "token_count", "metadata", "updated_at"}),
		}).
		Create(&chunks).Error
}

// DeleteBeyond removes rows of one chunk generation at or past firstStale.
// After a re-chunk upserts ordinals [0, firstStale), this prunes whatever a
// larger previous run left behind, making the stage set-idempotent. The
// delete is unscoped: a pruned ordinal that reappears in a later run must be
// creatable again under the same deterministic ID.
func (r *ChunkRepository) DeleteBeyond(ctx context.Context, documentID uuid.UUID, chunkerName, chunkerVersion string, firstStale int) error {
	return r.db.WithContext(ctx).Unscoped().
		Where("document_id = ? AND chunker_name = ? AND chunker_version = ? AND ordinal >= ?",
			documentID, chunkerName, chunkerVersion, firstStale).
		Delete(&model.DocumentChunk{}).Error
}

// SetEmbedding stores the vector for one chunk.
func (r *ChunkRepository) SetEmbedding(ctx context.Context, chunkID uuid.UUID, embedding pgvector.Vector) error {
	return r.db.WithContext(ctx).Model(&model.DocumentChunk{}).
		Where("id = ?", chunkID).
		Update("embedding", embedding).Error
}

// FindByDocument returns the chunk generation for one chunker identity,
// ordered by ordinal.
func (r *ChunkRepository) FindByDocument(ctx context.Context, documentID uuid.UUID, chunkerName, chunkerVersion string) ([]model.DocumentChunk, error) {
	var chunks []model.DocumentChunk
	err := r.db.WithContext(ctx).
		Where("document_id = ? AND chunker_name = ? AND chunker_version = ?",
			documentID, chunkerName, chunkerVersion).
		Order("ordinal ASC").
		Find(&chunks).Error
	return chunks, err
}

// PendingEmbedding returns the chunks of one generation that still lack a
// vector, ordered by ordinal.
func (r *ChunkRepository) PendingEmbedding(ctx context.Context, documentID uuid.UUID, chunkerName, chunkerVersion string) ([]model.DocumentChunk, error) {
	var chunks []model.DocumentChunk
	err := r.db.WithContext(ctx).
		Where("document_id = ? AND chunker_name = ? AND chunker_version = ? AND embedding IS NULL",
			documentID, chunkerName, chunkerVersion).
		Order("ordinal ASC").
		Find(&chunks).Error
	return chunks, err
}

// ChunkWithDistance is one similarity-search candidate.
type ChunkWithDistance struct {
	model.DocumentChunk
	Distance float64 `gorm:"column:distance"`
}

// SearchByOwner runs the pgvector cosine-distance scan restricted to the
// owner's documents and to one chunk generation. Owner scoping lives in the
// SQL itself so no code path can return another tenant's chunks; the
// generation filter keeps a superseded chunker version's near-duplicate rows
// out of the candidate set after a version bump.
func (r *ChunkRepository) SearchByOwner(ctx context.Context, ownerID uuid.UUID, embedding pgvector.Vector, chunkerName, chunkerVersion string, limit int) ([]ChunkWithDistance, error) {
	var results []ChunkWithDistance
	err := r.db.WithContext(ctx).
		Table("document_chunks").
		Select("document_chunks.*, document_chunks.embedding <=> ? AS distance", embedding).
		Joins("JOIN documents ON documents.id = document_chunks.document_id").
		Where("documents.owner_id = ?", ownerID).
		Where("document_chunks.chunker_name = ? AND document_chunks.chunker_version = ?", chunkerName, chunkerVersion).
		Where("documents.deleted_at IS NULL AND document_chunks.deleted_at IS NULL").
		Where("document_chunks.embedding IS NOT NULL").
		Order("distance ASC").
		Limit(limit).
		Find(&results).Error
	return results, err
}
