package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/andrew-quintana/insurance-navigator-sub019/internal/service"
)

type RetrieveHandler struct {
	svc *service.RetrievalService
}

func NewRetrieveHandler(svc *service.RetrievalService) *RetrieveHandler {
	return &RetrieveHandler{svc: svc}
}

type RetrieveRequest struct {
	OwnerID string `json:"owner_id" binding:"required"`

	// Either a raw query string (embedded server-side) or a pre-computed
	// query embedding. Query wins when both are set.
	Query          string    `json:"query"`
	QueryEmbedding []float32 `json:"query_embedding"`

	Config service.RetrievalConfig `json:"config"`
}

type RetrieveResponse struct {
	Chunks []service.RetrievedChunk `json:"chunks"`
}

// Retrieve serves similarity search for the AI agent layer. Retrieval never
// errors toward its caller: the worst case is an empty chunk list.
func (h *RetrieveHandler) Retrieve(c *gin.Context) {
	var req RetrieveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ownerID, err := uuid.Parse(req.OwnerID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid owner_id"})
		return
	}

	var chunks []service.RetrievedChunk
	if req.Query != "" {
		chunks = h.svc.RetrieveText(c.Request.Context(), ownerID, req.Query, req.Config)
	} else {
		chunks = h.svc.Retrieve(c.Request.Context(), ownerID, req.QueryEmbedding, req.Config)
	}

	c.JSON(http.StatusOK, RetrieveResponse{Chunks: chunks})
}
