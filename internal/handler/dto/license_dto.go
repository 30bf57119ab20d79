package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/makkenzo/device-license-service/internal/domain/license"
)

type ActivateLicenseRequest struct {
	LicenseKey string `json:"license_key" binding:"required"`
	DeviceID   string `json:"device_id" binding:"required"`
}

type ActivateLicenseResponse struct {
	Valid     bool       `json:"valid"`
	Outcome   string     `json:"outcome"`
	Tier      string     `json:"tier,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Message   string     `json:"message"`
}

type CheckLicenseRequest struct {
	LicenseKey string `json:"license_key" binding:"required"`
	DeviceID   string `json:"device_id"`
}

type CheckLicenseResponse struct {
	Status    license.LicenseStatus `json:"status"`
	Reason    string                `json:"reason,omitempty"`
	Tier      string                `json:"tier,omitempty"`
	ExpiresAt *time.Time            `json:"expires_at,omitempty"`
}

type ServerTimeResponse struct {
	Time     time.Time `json:"time"`
	UnixMs   int64     `json:"unix_ms"`
	Timezone string    `json:"timezone"`
}

// GenerateLicenseRequest either names a configured tier, in which case the
// expiry comes from the tier duration, or passes a raw tier code with an
// optional YYYY-MM-DD expiry date.
type GenerateLicenseRequest struct {
	DeviceID    string `json:"device_id" binding:"required"`
	Tier        string `json:"tier" binding:"required_without=TierCode"`
	TierCode    string `json:"tier_code" binding:"omitempty,len=4"`
	ExpiryDate  string `json:"expiry_date" binding:"omitempty,datetime=2006-01-02"`
	OwnerUserID int64  `json:"owner_user_id" binding:"omitempty,gte=0"`
}

type GenerateLicenseResponse struct {
	LicenseKey string     `json:"license_key"`
	Tier       string     `json:"tier"`
	DeviceID   string     `json:"device_id"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Bound      bool       `json:"bound"`
}

type LicenseKeyRequest struct {
	LicenseKey string `json:"license_key" binding:"required"`
}

type DeviceRequest struct {
	DeviceID string `json:"device_id" binding:"required"`
}

type LicenseResponse struct {
	ID            uuid.UUID             `json:"id"`
	LicenseKey    string                `json:"license_key"`
	OwnerUserID   int64                 `json:"owner_user_id,omitempty"`
	Tier          string                `json:"tier"`
	BoundDeviceID string                `json:"bound_device_id"`
	ExpiresAt     time.Time             `json:"expires_at"`
	Status        license.LicenseStatus `json:"status"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

func NewLicenseResponse(rec *license.Record) *LicenseResponse {
	return &LicenseResponse{
		ID:            rec.ID,
		LicenseKey:    rec.LicenseKey,
		OwnerUserID:   rec.OwnerUserID,
		Tier:          rec.Tier,
		BoundDeviceID: rec.BoundDeviceID,
		ExpiresAt:     rec.ExpiresAt,
		Status:        rec.Status,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
}

type ListLicensesRequest struct {
	Status *license.LicenseStatus `form:"status" binding:"omitempty,oneof=active banned"`
	Device string                 `form:"device"`
	Limit  int                    `form:"limit,default=50" binding:"omitempty,gte=0,lte=500"`
	Offset int                    `form:"offset,default=0" binding:"omitempty,gte=0"`
}

type PaginatedLicenseResponse struct {
	Licenses   []*LicenseResponse `json:"licenses"`
	TotalCount int64              `json:"totalCount"`
	Limit      int                `json:"limit"`
	Offset     int                `json:"offset"`
}

type BanDeviceResponse struct {
	DeviceID       string   `json:"device_id"`
	BannedLicenses []string `json:"banned_licenses"`
	AffectedCount  int      `json:"affected_count"`
}

type BannedDeviceResponse struct {
	DeviceID  string    `json:"device_id"`
	Prefix    string    `json:"prefix"`
	CreatedAt time.Time `json:"created_at"`
}

type TierResponse struct {
	Name     string `json:"name"`
	Code     string `json:"code"`
	Title    string `json:"title"`
	Days     int    `json:"days"`
	Price    int64  `json:"price"`
	Currency string `json:"currency"`
}
