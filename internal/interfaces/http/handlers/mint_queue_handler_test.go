package handlers

import (
	"context"
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

func mintRouter(svc MintQueueService) *gin.Engine {
	h := NewMintQueueHandler(svc)
	r := gin.New()
	r.POST("/api/v1/mints", h.EnqueueMint)
	r.GET("/api/v1/mints/stats", h.GetStats)
	r.GET("/api/v1/mints/:id", h.GetMint)
	return r
}

func enqueueMintBody() string {
	return fmt.Sprintf(`{
		"payer": "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B",
		"mintReference": "0x%s",
		"targetAddress": "0x1111111111111111111111111111111111111111",
		"mode": "direct"
	}`, strings.Repeat("22", 32))
}

func TestMintQueueHandler_Enqueue(t *testing.T) {
	id := uuid.New()
	svc := &stubMintService{
		addToQueueFn: func(_ context.Context, input *entities.EnqueueMintInput) (uuid.UUID, error) {
			assert.Equal(t, entities.PaymentModeDirect, input.Mode)
			return id, nil
		},
	}
	r := mintRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/mints", strings.NewReader(enqueueMintBody()))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), id.String())
}

func TestMintQueueHandler_Enqueue_InvalidInput(t *testing.T) {
	svc := &stubMintService{
		addToQueueFn: func(context.Context, *entities.EnqueueMintInput) (uuid.UUID, error) {
			return uuid.Nil, fmt.Errorf("%w: bad reference", domainerrors.ErrInvalidInput)
		},
	}
	r := mintRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/mints", strings.NewReader(enqueueMintBody()))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMintQueueHandler_Enqueue_MissingFields(t *testing.T) {
	r := mintRouter(&stubMintService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/mints", strings.NewReader(`{"payer": "0x"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMintQueueHandler_GetMint(t *testing.T) {
	id := uuid.New()
	svc := &stubMintService{
		getQueueStatusFn: func(_ context.Context, got uuid.UUID) (*entities.MintQueueStatus, error) {
			require.Equal(t, id, got)
			return &entities.MintQueueStatus{
				Item:     &entities.MintQueueItem{ID: id, Status: entities.QueueStatusPending},
				Position: 4,
			}, nil
		},
	}
	r := mintRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/mints/"+id.String(), nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"position":4`)
}

func TestMintQueueHandler_GetMint_NotFound(t *testing.T) {
	svc := &stubMintService{
		getQueueStatusFn: func(context.Context, uuid.UUID) (*entities.MintQueueStatus, error) {
			return nil, domainerrors.ErrNotFound
		},
	}
	r := mintRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/mints/"+uuid.NewString(), nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMintQueueHandler_GetStats(t *testing.T) {
	svc := &stubMintService{
		getQueueStatsFn: func(context.Context) (*entities.MintQueueStats, error) {
			return &entities.MintQueueStats{Pending: 2, History: 40}, nil
		},
	}
	r := mintRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/mints/stats", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"history":40`)
}
