package dto

import (
	"time"

	"github.com/makkenzo/device-license-service/internal/domain/license"
)

type DashboardSummaryResponse struct {
	TotalLicenses int64                           `json:"totalLicenses"`
	StatusCounts  map[license.LicenseStatus]int64 `json:"statusCounts"`
	TierCounts    map[string]int64                `json:"tierCounts"`
	BannedDevices int64                           `json:"bannedDevices"`
	ExpiringSoon  ExpiringSoonSummary             `json:"expiringSoon"`
}

type ExpiringSoonSummary struct {
	Count        int64        `json:"count"`
	PeriodDays   int          `json:"periodDays"`
	NextToExpire *LicenseInfo `json:"nextToExpire,omitempty"`
}

type LicenseInfo struct {
	LicenseKey    string    `json:"licenseKey"`
	ExpiresAt     time.Time `json:"expiresAt"`
	BoundDeviceID string    `json:"boundDeviceId"`
}
