package handler

import (
	"errors"
	"net/http"

	"luxestore-backend/internal/domains/settings/model"
	"luxestore-backend/internal/domains/settings/service"
	"luxestore-backend/internal/shared/response"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/rs/zerolog/log"
)

type SettingsHandler struct {
	settings *service.SettingsService
}

func NewSettingsHandler(settings *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// Get returns the integration settings with masked secrets.
// GET /api/admin/integrations
func (h *SettingsHandler) Get(c *gin.Context) {
	settings, err := h.settings.Get(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to load integration settings")
		response.InternalServerError(c, "Failed to load settings")
		return
	}
	response.Success(c, http.StatusOK, settings)
}

type updateSettingsRequest struct {
	CJEmail            *string `json:"cj_email"`
	CJAPIKey           *string `json:"cj_api_key"`
	ExchangeRateAPIKey *string `json:"exchange_rate_api_key"`
}

func (r updateSettingsRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CJEmail, validation.NilOrNotEmpty, is.Email),
	)
}

// Update applies a partial settings change.
// POST /api/admin/integrations
func (h *SettingsHandler) Update(c *gin.Context) {
	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid settings", err)
		return
	}

	settings, err := h.settings.Update(c.Request.Context(), model.IntegrationUpdate{
		CJEmail:            req.CJEmail,
		CJAPIKey:           req.CJAPIKey,
		ExchangeRateAPIKey: req.ExchangeRateAPIKey,
	})
	if err != nil {
		if errors.Is(err, model.ErrNoFieldsToUpdate) {
			response.BadRequest(c, "No settings fields to update")
			return
		}
		log.Error().Err(err).Msg("Failed to update integration settings")
		response.InternalServerError(c, "Failed to update settings")
		return
	}
	response.Success(c, http.StatusOK, settings)
}
