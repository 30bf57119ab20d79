package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/makkenzo/device-license-service/internal/handler/dto"
	"github.com/makkenzo/device-license-service/internal/ierr"
	"github.com/makkenzo/device-license-service/internal/service"
	"go.uber.org/zap"
)

// LicenseHandler serves the endpoints called by the desktop client.
type LicenseHandler struct {
	service  *service.ActivationService
	location *time.Location
	nowFn    func() time.Time
	logger   *zap.Logger
}

func NewLicenseHandler(service *service.ActivationService, location *time.Location, logger *zap.Logger) *LicenseHandler {
	if location == nil {
		location = time.Local
	}
	return &LicenseHandler{
		service:  service,
		location: location,
		nowFn:    time.Now,
		logger:   logger.Named("LicenseHandler"),
	}
}

func (h *LicenseHandler) Activate(c *gin.Context) {
	var req dto.ActivateLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind activate request", zap.Error(err))
		_ = c.Error(fmt.Errorf("%w: %w", ierr.ErrValidation, err))
		return
	}

	result, err := h.service.Activate(c.Request.Context(), req.LicenseKey, req.DeviceID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	resp := dto.ActivateLicenseResponse{
		Valid:   true,
		Outcome: string(result.Outcome),
		Tier:    result.Tier,
		Message: "License activated successfully.",
	}
	if result.Outcome == service.OutcomeAllowReverify {
		resp.Message = "License verified."
	}
	if !result.ExpiresAt.IsZero() {
		exp := result.ExpiresAt
		resp.ExpiresAt = &exp
	}

	c.JSON(http.StatusOK, resp)
}

func (h *LicenseHandler) Check(c *gin.Context) {
	var req dto.CheckLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind check request", zap.Error(err))
		_ = c.Error(fmt.Errorf("%w: %w", ierr.ErrValidation, err))
		return
	}

	report, err := h.service.CheckStatus(c.Request.Context(), req.LicenseKey, req.DeviceID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	resp := dto.CheckLicenseResponse{
		Status: report.Status,
		Reason: string(report.Reason),
	}
	if report.Record != nil {
		resp.Tier = report.Record.Tier
		exp := report.Record.ExpiresAt
		resp.ExpiresAt = &exp
	}

	c.JSON(http.StatusOK, resp)
}

// ServerTime lets clients detect a tampered local clock before trusting
// the expiry date embedded in their key.
func (h *LicenseHandler) ServerTime(c *gin.Context) {
	now := h.nowFn().In(h.location)
	c.JSON(http.StatusOK, dto.ServerTimeResponse{
		Time:     now,
		UnixMs:   now.UnixMilli(),
		Timezone: h.location.String(),
	})
}
