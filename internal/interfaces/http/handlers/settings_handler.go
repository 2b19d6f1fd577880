package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"mint-gate.backend/internal/domain/entities"
	domainerrors "mint-gate.backend/internal/domain/errors"
	"mint-gate.backend/internal/domain/repositories"
	"mint-gate.backend/internal/interfaces/http/response"
)

// SettingsHandler exposes the admin settings surface
type SettingsHandler struct {
	settings repositories.SettingsRepository
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(settings repositories.SettingsRepository) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// ListSettings returns all system settings
// GET /api/v1/settings
func (h *SettingsHandler) ListSettings(c *gin.Context) {
	settings, err := h.settings.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"settings": settings})
}

// GetSetting returns one setting by key
// GET /api/v1/settings/:key
func (h *SettingsHandler) GetSetting(c *gin.Context) {
	setting, err := h.settings.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			response.Error(c, domainerrors.NotFound("Setting not found"))
			return
		}
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"setting": setting})
}

type updateSettingRequest struct {
	Value       string `json:"value" binding:"required"`
	Description string `json:"description"`
}

// UpsertSetting creates or updates a setting. Processors read settings once
// at construction, so a change takes effect on the next restart.
// PUT /api/v1/settings/:key
func (h *SettingsHandler) UpsertSetting(c *gin.Context) {
	var req updateSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	setting := &entities.SystemSetting{
		Key:         c.Param("key"),
		Value:       req.Value,
		Description: req.Description,
	}
	if err := h.settings.Upsert(c.Request.Context(), setting); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"setting": setting})
}
