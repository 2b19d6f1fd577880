package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"mint-gate.backend/internal/config"
	"mint-gate.backend/internal/domain/entities"
	domainerrors "mint-gate.backend/internal/domain/errors"
	"mint-gate.backend/internal/interfaces/http/response"
	"mint-gate.backend/internal/x402"
)

// X402Handler implements the x402 paywall flow for mints: a request without
// an X-PAYMENT header gets a 402 with payment requirements; a request with a
// valid payload is enqueued for settlement.
type X402Handler struct {
	payments PaymentQueueService
	cfg      config.X402Config
}

// NewX402Handler creates a new x402 handler
func NewX402Handler(payments PaymentQueueService, cfg config.X402Config) *X402Handler {
	return &X402Handler{payments: payments, cfg: cfg}
}

type x402MintRequest struct {
	Quantity int `json:"quantity"`
}

func (h *X402Handler) requirements(c *gin.Context, quantity int) *x402.PaymentRequirements {
	amount := h.cfg.MintPrice
	if quantity > 1 {
		if price, err := strconv.ParseInt(h.cfg.MintPrice, 10, 64); err == nil {
			amount = strconv.FormatInt(price*int64(quantity), 10)
		}
	}
	return &x402.PaymentRequirements{
		Scheme:            x402.SchemeExact,
		Network:           h.cfg.Network,
		MaxAmountRequired: amount,
		Resource:          c.Request.URL.Path,
		Description:       "Token mint",
		MimeType:          "application/json",
		PayTo:             h.cfg.PayTo,
		MaxTimeoutSeconds: h.cfg.MaxTimeoutSeconds,
		Asset:             h.cfg.AssetAddress,
	}
}

// MintWithPayment drives one x402 exchange
// POST /api/v1/x402/mint
func (h *X402Handler) MintWithPayment(c *gin.Context) {
	var req x402MintRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, domainerrors.BadRequest(err.Error()))
			return
		}
	}
	if req.Quantity < 1 {
		req.Quantity = 1
	}

	requirements := h.requirements(c, req.Quantity)

	header := c.GetHeader("X-PAYMENT")
	payload, err := x402.DecodePaymentPayload(header)
	if err != nil {
		c.JSON(http.StatusPaymentRequired, x402.PaymentRequired{
			X402Version: x402.Version,
			Error:       "X-PAYMENT header is required",
			Accepts:     []x402.PaymentRequirements{*requirements},
		})
		return
	}

	if err := payload.Validate(requirements); err != nil {
		c.JSON(http.StatusPaymentRequired, x402.PaymentRequired{
			X402Version: x402.Version,
			Error:       err.Error(),
			Accepts:     []x402.PaymentRequirements{*requirements},
		})
		return
	}

	auth := payload.ToTransferAuthorization()
	target := h.cfg.TargetContract
	input := &entities.EnqueuePaymentInput{
		PaymentType:   entities.PaymentTypeMint,
		Payer:         auth.From,
		Amount:        auth.Value,
		AssetAddress:  h.cfg.AssetAddress,
		TargetAddress: &target,
		Authorization: auth,
		Metadata: entities.PaymentMetadata{
			Quantity: req.Quantity,
			Mode:     entities.PaymentModeX402,
		},
	}

	id, err := h.payments.AddToQueue(c.Request.Context(), input)
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
