package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mint-gate.backend/internal/domain/entities"
	domainerrors "mint-gate.backend/internal/domain/errors"
)

func paymentRouter(svc PaymentQueueService) *gin.Engine {
	h := NewPaymentQueueHandler(svc)
	r := gin.New()
	r.POST("/api/v1/payments", h.EnqueuePayment)
	r.GET("/api/v1/payments/stats", h.GetStats)
	r.GET("/api/v1/payments/:id", h.GetPayment)
	return r
}

func enqueuePaymentBody() string {
	return fmt.Sprintf(`{
		"paymentType": "mint",
		"payer": "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B",
		"amount": "1000000",
		"assetAddress": "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		"targetAddress": "0x1111111111111111111111111111111111111111",
		"authorization": {
			"from": "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B",
			"to": "0x2222222222222222222222222222222222222222",
			"value": "1000000",
			"validAfter": "0",
			"validBefore": "99999999999",
			"nonce": "0x%s",
			"signature": "0x%s1b"
		},
		"metadata": {"quantity": 2, "mode": "direct"}
	}`, strings.Repeat("11", 32), strings.Repeat("ab", 64))
}

func TestPaymentQueueHandler_Enqueue(t *testing.T) {
	id := uuid.New()
	svc := &stubPaymentService{
		addToQueueFn: func(_ context.Context, input *entities.EnqueuePaymentInput) (uuid.UUID, error) {
			assert.Equal(t, entities.PaymentTypeMint, input.PaymentType)
			assert.Equal(t, 2, input.Metadata.Quantity)
			return id, nil
		},
	}
	r := paymentRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(enqueuePaymentBody()))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), id.String())
	assert.Contains(t, w.Body.String(), `"status":"pending"`)
}

func TestPaymentQueueHandler_Enqueue_BadJSON(t *testing.T) {
	r := paymentRouter(&stubPaymentService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentQueueHandler_Enqueue_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"duplicate nonce", domainerrors.ErrAlreadyExists, http.StatusConflict},
		{"invalid input", fmt.Errorf("%w: bad payer", domainerrors.ErrInvalidInput), http.StatusBadRequest},
		{"invalid authorization", fmt.Errorf("%w: bad signature", domainerrors.ErrInvalidAuthorization), http.StatusBadRequest},
		{"storage failure", errors.New("db offline"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubPaymentService{
				addToQueueFn: func(context.Context, *entities.EnqueuePaymentInput) (uuid.UUID, error) {
					return uuid.Nil, tt.err
				},
			}
			r := paymentRouter(svc)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(enqueuePaymentBody()))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestPaymentQueueHandler_GetPayment(t *testing.T) {
	id := uuid.New()
	svc := &stubPaymentService{
		getPaymentStatusFn: func(_ context.Context, got uuid.UUID) (*entities.PaymentQueueItem, error) {
			require.Equal(t, id, got)
			return &entities.PaymentQueueItem{ID: id, Status: entities.QueueStatusCompleted}, nil
		},
	}
	r := paymentRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/payments/"+id.String(), nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"completed"`)
}

func TestPaymentQueueHandler_GetPayment_BadID(t *testing.T) {
	r := paymentRouter(&stubPaymentService{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/payments/not-a-uuid", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid payment ID")
}

func TestPaymentQueueHandler_GetPayment_NotFound(t *testing.T) {
	svc := &stubPaymentService{
		getPaymentStatusFn: func(context.Context, uuid.UUID) (*entities.PaymentQueueItem, error) {
			return nil, domainerrors.ErrNotFound
		},
	}
	r := paymentRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/payments/"+uuid.NewString(), nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPaymentQueueHandler_GetStats(t *testing.T) {
	svc := &stubPaymentService{
		getStatsFn: func(context.Context) (*entities.PaymentQueueStats, error) {
			return &entities.PaymentQueueStats{Pending: 3, Completed: 7}, nil
		},
	}
	r := paymentRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/payments/stats", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"pending":3`)
	assert.Contains(t, w.Body.String(), `"completed":7`)
}
