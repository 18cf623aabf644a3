package service

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/andrew-quintana/insurance-navigator-sub019/internal/config"
	"github.com/andrew-quintana/insurance-navigator-sub019/internal/embedder"
	"github.com/andrew-quintana/insurance-navigator-sub019/internal/metrics"
	"github.com/andrew-quintana/insurance-navigator-sub019/internal/repository"
	"github.com/andrew-quintana/insurance-navigator-sub019/internal/tokens"
)

// RetrievalConfig tunes one retrieval call. Zero values fall back to the
// deployment defaults.
type RetrievalConfig struct {
	// SimilarityThreshold is the minimum cosine similarity to include.
	SimilarityThreshold float64 `json:"similarity_threshold"`

	// MaxChunks caps the number of returned results.
	MaxChunks int `json:"max_chunks"`

	// TokenBudget stops adding results once the cumulative token estimate
	// exceeds it. Zero means unbounded.
	TokenBudget int `json:"token_budget"`
}

const (
	defaultSimilarityThreshold = 0.3
	defaultMaxChunks           = 10
)

func (c RetrievalConfig) withDefaults() RetrievalConfig {
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = defaultSimilarityThreshold
	}
	if c.MaxChunks <= 0 {
		c.MaxChunks = defaultMaxChunks
	}
	return c
}

// RetrievedChunk is one ranked retrieval result.
type RetrievedChunk struct {
	ChunkID    uuid.UUID `json:"chunk_id"`
	DocumentID uuid.UUID `json:"document_id"`
	Text       string    `json:"text"`
	Similarity float64   `json:"similarity"`
	TokenCount int       `json:"token_count"`
}

type chunkSearcher interface {
	SearchByOwner(ctx context.Context, ownerID uuid.UUID, embedding pgvector.Vector, chunkerName, chunkerVersion string, limit int) ([]repository.ChunkWithDistance, error)
}

// RetrievalService serves similarity search over stored chunk vectors. It is
// read-only and fail-soft: every failure collapses into an empty result so a
// retrieval outage never breaks the conversation consuming it. Search is
// pinned to the deployment's active chunk generation, so rows from a
// superseded chunker version never compete with their replacements.
type RetrievalService struct {
	chunks         chunkSearcher
	embedder       embedder.Embedder
	counter        tokens.Counter
	chunkerName    string
	chunkerVersion string
	metrics        *metrics.Metrics
	logger         *slog.Logger
}

func NewRetrievalService(chunks chunkSearcher, emb embedder.Embedder, counter tokens.Counter, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) *RetrievalService {
	if logger == nil {
		logger = slog.Default()
	}
	if counter == nil {
		counter = tokens.Approximate{}
	}
	return &RetrievalService{
		chunks:         chunks,
		embedder:       emb,
		counter:        counter,
		chunkerName:    cfg.ChunkerName,
		chunkerVersion: cfg.ChunkerVersion,
		metrics:        m,
		logger:         logger.With("service", "retrieval"),
	}
}

// Retrieve returns the owner's chunks ranked by descending cosine similarity,
// filtered by threshold and capped by max_chunks and token_budget.
func (s *RetrievalService) Retrieve(ctx context.Context, ownerID uuid.UUID, queryEmbedding []float32, cfg RetrievalConfig) []RetrievedChunk {
	start := time.Now()
	cfg = cfg.withDefaults()

	if ownerID == uuid.Nil {
		s.observe(start, "error")
		s.logger.Warn("retrieval rejected: missing owner")
		return []RetrievedChunk{}
	}
	if len(queryEmbedding) != s.embedder.Dimensions() {
		s.observe(start, "error")
		s.logger.Warn("retrieval rejected: malformed query embedding",
			"got_dimensions", len(queryEmbedding),
			"want_dimensions", s.embedder.Dimensions())
		return []RetrievedChunk{}
	}

	candidates, err := s.chunks.SearchByOwner(ctx, ownerID, pgvector.NewVector(queryEmbedding), s.chunkerName, s.chunkerVersion, cfg.MaxChunks)
	if err != nil {
		// Fail-soft: no context found is a valid outcome for the caller.
		s.observe(start, "error")
		s.logger.Error("similarity search failed", "owner_id", ownerID, "error", err)
		return []RetrievedChunk{}
	}

	ranked := make([]RetrievedChunk, 0, len(candidates))
	for _, c := range candidates {
		tokenCount := c.TokenCount
		if tokenCount == 0 {
			tokenCount = s.counter.Count(c.Text)
		}
		ranked = append(ranked, RetrievedChunk{
			ChunkID:    c.ID,
			DocumentID: c.DocumentID,
			// Cosine distance to similarity.
			Similarity: 1 - c.Distance,
			Text:       c.Text,
			TokenCount: tokenCount,
		})
	}

	results := applyLimits(ranked, cfg)

	if len(results) == 0 {
		s.observe(start, "empty")
	} else {
		s.observe(start, "ok")
	}
	return results
}

// RetrieveText embeds the query server-side, then retrieves. Embedding
// failures degrade to an empty result like every other retrieval error.
func (s *RetrievalService) RetrieveText(ctx context.Context, ownerID uuid.UUID, query string, cfg RetrievalConfig) []RetrievedChunk {
	if query == "" {
		return []RetrievedChunk{}
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil || len(vectors) == 0 {
		s.logger.Error("query embedding failed", "owner_id", ownerID, "error", err)
		if s.metrics != nil {
			s.metrics.RetrievalRequestsTotal.WithLabelValues("error").Inc()
		}
		return []RetrievedChunk{}
	}

	return s.Retrieve(ctx, ownerID, vectors[0], cfg)
}

// applyLimits sorts by descending similarity, drops entries under the
// threshold, and greedily includes chunks in score order until max_chunks or
// the token budget is exhausted.
func applyLimits(chunks []RetrievedChunk, cfg RetrievalConfig) []RetrievedChunk {
	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Similarity > chunks[j].Similarity
	})

	out := make([]RetrievedChunk, 0, len(chunks))
	budgetUsed := 0
	for _, c := range chunks {
		if c.Similarity < cfg.SimilarityThreshold {
			break // sorted descending, everything after is below threshold too
		}
		if len(out) >= cfg.MaxChunks {
			break
		}
		if cfg.TokenBudget > 0 && budgetUsed+c.TokenCount > cfg.TokenBudget && len(out) > 0 {
			break
		}
		out = append(out, c)
		budgetUsed += c.TokenCount
	}
	return out
}

func (s *RetrievalService) observe(start time.Time, outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.RetrievalRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.RetrievalDurationSeconds.Observe(time.Since(start).Seconds())
}
