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

type PaymentQueueService interface {
	AddToQueue(ctx context.Context, input *entities.EnqueuePaymentInput) (uuid.UUID, error)
	GetPaymentStatus(ctx context.Context, id uuid.UUID) (*entities.PaymentQueueItem, error)
	GetStats(ctx context.Context) (*entities.PaymentQueueStats, error)
}

// PaymentQueueHandler handles payment queue endpoints
type PaymentQueueHandler struct {
	payments PaymentQueueService
}

// NewPaymentQueueHandler creates a new payment queue handler
func NewPaymentQueueHandler(payments PaymentQueueService) *PaymentQueueHandler {
	return &PaymentQueueHandler{payments: payments}
}

// EnqueuePayment accepts a payment for asynchronous settlement
// POST /api/v1/payments
func (h *PaymentQueueHandler) EnqueuePayment(c *gin.Context) {
	var input entities.EnqueuePaymentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	id, err := h.payments.AddToQueue(c.Request.Context(), &input)
	if err != nil {
		switch {
		case errors.Is(err, domainerrors.ErrAlreadyExists):
			response.Error(c, domainerrors.Conflict("Authorization nonce already used"))
		case errors.Is(err, domainerrors.ErrInvalidInput),
			errors.Is(err, domainerrors.ErrInvalidAuthorization):
			response.Error(c, domainerrors.BadRequest(err.Error()))
		default:
			response.Error(c, err)
		}
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{
		"id":     id,
		"status": entities.QueueStatusPending,
	})
}

// GetPayment returns one payment queue item
// GET /api/v1/payments/:id
func (h *PaymentQueueHandler) GetPayment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("Invalid payment ID"))
		return
	}

	item, err := h.payments.GetPaymentStatus(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			response.Error(c, domainerrors.NotFound("Payment not found"))
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"payment": item})
}

// GetStats returns payment queue counts by status
// GET /api/v1/payments/stats
func (h *PaymentQueueHandler) GetStats(c *gin.Context) {
	stats, err := h.payments.GetStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"stats": stats})
}
