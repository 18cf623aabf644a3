package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/andrew-quintana/insurance-navigator-sub019/internal/model"
	"github.com/andrew-quintana/insurance-navigator-sub019/internal/repository"
)

// DocumentService serves the read-only document listing surface.
type DocumentService struct {
	docs   *repository.DocumentRepository
	chunks *repository.ChunkRepository
}

func NewDocumentService(docs *repository.DocumentRepository, chunks *repository.ChunkRepository) *DocumentService {
	return &DocumentService{docs: docs, chunks: chunks}
}

func (s *DocumentService) List(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]model.Document, int64, error) {
	return s.docs.FindByOwner(ctx, ownerID, limit, offset)
}

func (s *DocumentService) GetByID(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	return s.docs.FindByID(ctx, id)
}

// ListChunks returns one chunk generation for a document, ordered by ordinal.
func (s *DocumentService) ListChunks(ctx context.Context, documentID uuid.UUID, chunkerName, chunkerVersion string) ([]model.DocumentChunk, error) {
	return s.chunks.FindByDocument(ctx, documentID, chunkerName, chunkerVersion)
}
