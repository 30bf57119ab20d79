package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/makkenzo/device-license-service/internal/handler/dto"
	"github.com/makkenzo/device-license-service/internal/handler/middleware"
	"github.com/makkenzo/device-license-service/internal/ierr"
	"github.com/makkenzo/device-license-service/internal/service"
	"github.com/makkenzo/device-license-service/pkg/licensekey"
	"go.uber.org/zap"
)

const expiryDateLayout = "2006-01-02"

type AdminHandler struct {
	issuance *service.IssuanceService
	bans     *service.BanService
	queries  *service.LicenseQueryService
	location *time.Location
	logger   *zap.Logger
}

func NewAdminHandler(
	issuance *service.IssuanceService,
	bans *service.BanService,
	queries *service.LicenseQueryService,
	location *time.Location,
	logger *zap.Logger,
) *AdminHandler {
	if location == nil {
		location = time.Local
	}
	return &AdminHandler{
		issuance: issuance,
		bans:     bans,
		queries:  queries,
		location: location,
		logger:   logger.Named("AdminHandler"),
	}
}

// GenerateLicense issues a key for a configured tier or, when tier_code is given,
// encodes the raw tier code with the optional expiry date.
func (h *AdminHandler) GenerateLicense(c *gin.Context) {
	var req dto.GenerateLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind generate license request", zap.Error(err))
		_ = c.Error(fmt.Errorf("%w: %w", ierr.ErrValidation, err))
		return
	}

	if req.TierCode != "" {
		var expiry *time.Time
		if req.ExpiryDate != "" {
			t, err := time.ParseInLocation(expiryDateLayout, req.ExpiryDate, h.location)
			if err != nil {
				_ = c.Error(fmt.Errorf("%w: expiry_date: %v", ierr.ErrValidation, err))
				return
			}
			expiry = &t
		}

		key, err := h.issuance.GenerateKey(req.DeviceID, req.TierCode, expiry)
		if err != nil {
			_ = c.Error(err)
			return
		}

		resp := dto.GenerateLicenseResponse{
			LicenseKey: key,
			Tier:       strings.ToUpper(req.TierCode),
			DeviceID:   req.DeviceID,
		}
		if expiry != nil {
			endOfDay := time.Date(expiry.Year(), expiry.Month(), expiry.Day(), 23, 59, 59, 0, h.location)
			resp.ExpiresAt = &endOfDay
		}
		c.JSON(http.StatusCreated, resp)
		return
	}

	issued, err := h.issuance.IssueForTier(c.Request.Context(), req.DeviceID, req.Tier, req.OwnerUserID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	exp := issued.ExpiresAt
	c.JSON(http.StatusCreated, dto.GenerateLicenseResponse{
		LicenseKey: issued.LicenseKey,
		Tier:       issued.Tier.Code,
		DeviceID:   issued.DeviceID,
		ExpiresAt:  &exp,
		Bound:      issued.Record != nil,
	})
}

func (h *AdminHandler) ListLicenses(c *gin.Context) {
	var req dto.ListLicensesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Warn("Failed to bind list licenses query", zap.Error(err))
		_ = c.Error(fmt.Errorf("%w: %w", ierr.ErrValidation, err))
		return
	}

	records, total, err := h.queries.ListLicenses(c.Request.Context(), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	licenses := make([]*dto.LicenseResponse, len(records))
	for i, rec := range records {
		licenses[i] = dto.NewLicenseResponse(rec)
	}

	c.JSON(http.StatusOK, dto.PaginatedLicenseResponse{
		Licenses:   licenses,
		TotalCount: total,
		Limit:      req.Limit,
		Offset:     req.Offset,
	})
}

func (h *AdminHandler) BanLicense(c *gin.Context) {
	var req dto.LicenseKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(fmt.Errorf("%w: %w", ierr.ErrValidation, err))
		return
	}

	rec, err := h.bans.BanLicense(c.Request.Context(), req.LicenseKey)
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.logger.Info("License ban requested", zap.String("admin", actor(c)), zap.String("license_key", rec.LicenseKey))
	c.JSON(http.StatusOK, dto.NewLicenseResponse(rec))
}

func (h *AdminHandler) UnbanLicense(c *gin.Context) {
	var req dto.LicenseKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(fmt.Errorf("%w: %w", ierr.ErrValidation, err))
		return
	}

	rec, err := h.bans.UnbanLicense(c.Request.Context(), req.LicenseKey)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dto.NewLicenseResponse(rec))
}

func (h *AdminHandler) BanDevice(c *gin.Context) {
	var req dto.DeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(fmt.Errorf("%w: %w", ierr.ErrValidation, err))
		return
	}

	affected, err := h.bans.BanDevice(c.Request.Context(), req.DeviceID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.logger.Info("Device ban requested",
		zap.String("admin", actor(c)),
		zap.String("device_id", req.DeviceID),
		zap.Int("affected", len(affected)),
	)

	c.JSON(http.StatusOK, dto.BanDeviceResponse{
		DeviceID:       req.DeviceID,
		BannedLicenses: affected,
		AffectedCount:  len(affected),
	})
}

func (h *AdminHandler) UnbanDevice(c *gin.Context) {
	var req dto.DeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(fmt.Errorf("%w: %w", ierr.ErrValidation, err))
		return
	}

	if err := h.bans.UnbanDevice(c.Request.Context(), req.DeviceID); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Device unbanned. Previously banned licenses stay banned."})
}

func (h *AdminHandler) ListBannedDevices(c *gin.Context) {
	entries, err := h.bans.ListBannedDevices(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	resp := make([]dto.BannedDeviceResponse, len(entries))
	for i, e := range entries {
		resp[i] = dto.BannedDeviceResponse{
			DeviceID:  e.DeviceID,
			Prefix:    licensekey.DevicePrefix(e.DeviceID),
			CreatedAt: e.CreatedAt,
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AdminHandler) ListTiers(c *gin.Context) {
	tiers := h.issuance.Tiers()
	resp := make([]dto.TierResponse, len(tiers))
	for i, t := range tiers {
		resp[i] = dto.TierResponse{
			Name:     t.Name,
			Code:     t.Code,
			Title:    t.Title,
			Days:     t.Days,
			Price:    t.Price,
			Currency: t.Currency,
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AdminHandler) GetSummary(c *gin.Context) {
	summary, err := h.queries.GetDashboardSummary(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to get dashboard summary", zap.Error(err))
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func actor(c *gin.Context) string {
	if claims := middleware.GetAdminClaims(c); claims != nil {
		return claims.Username
	}
	return ""
}
