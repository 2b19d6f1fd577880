package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"mint-gate.backend/internal/domain/entities"
	domainerrors "mint-gate.backend/internal/domain/errors"
	"mint-gate.backend/internal/interfaces/http/response"
)

type MintQueueService interface {
	AddToQueue(ctx context.Context, input *entities.EnqueueMintInput) (uuid.UUID, error)
	GetQueueStatus(ctx context.Context, id uuid.UUID) (*entities.MintQueueStatus, error)
	GetQueueStats(ctx context.Context) (*entities.MintQueueStats, error)
}

// MintQueueHandler handles mint queue endpoints
type MintQueueHandler struct {
	mints MintQueueService
}

// NewMintQueueHandler creates a new mint queue handler
func NewMintQueueHandler(mints MintQueueService) *MintQueueHandler {
	return &MintQueueHandler{mints: mints}
}

// EnqueueMint accepts a mint for asynchronous execution. Re-submitting an
// already-known mint reference returns the existing item's id.
// POST /api/v1/mints
func (h *MintQueueHandler) EnqueueMint(c *gin.Context) {
	var input entities.EnqueueMintInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	id, err := h.mints.AddToQueue(c.Request.Context(), &input)
	if err != nil {
		if errors.Is(err, domainerrors.ErrInvalidInput) {
			response.Error(c, domainerrors.BadRequest(err.Error()))
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{
		"id":     id,
		"status": entities.QueueStatusPending,
	})
}

// GetMint returns one mint queue item with its pending-queue position
// GET /api/v1/mints/:id
func (h *MintQueueHandler) GetMint(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("Invalid mint ID"))
		return
	}

	status, err := h.mints.GetQueueStatus(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			response.Error(c, domainerrors.NotFound("Mint not found"))
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"mint":     status.Item,
		"position": status.Position,
	})
}

// GetStats returns mint queue counts by status plus history size
// GET /api/v1/mints/stats
func (h *MintQueueHandler) GetStats(c *gin.Context) {
	stats, err := h.mints.GetQueueStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"stats": stats})
}
