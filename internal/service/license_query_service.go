package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/makkenzo/device-license-service/internal/domain/device"
	"github.com/makkenzo/device-license-service/internal/domain/license"
	"github.com/makkenzo/device-license-service/internal/handler/dto"
	"go.uber.org/zap"
)

const expiringSoonDays = 7

// LicenseQueryService serves the read-only admin views of the ledger.
type LicenseQueryService struct {
	ledger   license.Ledger
	registry device.Registry
	nowFn    func() time.Time
	logger   *zap.Logger
}

func NewLicenseQueryService(ledger license.Ledger, registry device.Registry, nowFn func() time.Time, logger *zap.Logger) *LicenseQueryService {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &LicenseQueryService{
		ledger:   ledger,
		registry: registry,
		nowFn:    nowFn,
		logger:   logger.Named("LicenseQueryService"),
	}
}

// ListLicenses filters the ledger by status and bound device and pages the
// result. The total count is taken before paging.
func (s *LicenseQueryService) ListLicenses(ctx context.Context, req *dto.ListLicensesRequest) ([]*license.Record, int64, error) {
	var (
		records []*license.Record
		err     error
	)
	if dev := strings.TrimSpace(req.Device); dev != "" {
		records, err = s.ledger.FindByDevice(ctx, dev)
	} else {
		records, err = s.ledger.List(ctx)
	}
	if err != nil {
		s.logger.Error("Failed to list licenses", zap.Error(err))
		return nil, 0, fmt.Errorf("list licenses: %w", err)
	}

	filtered := records[:0]
	for _, rec := range records {
		if req.Status != nil && rec.Status != *req.Status {
			continue
		}
		filtered = append(filtered, rec)
	}
	total := int64(len(filtered))

	if req.Offset >= len(filtered) {
		return []*license.Record{}, total, nil
	}
	filtered = filtered[req.Offset:]
	if req.Limit > 0 && req.Limit < len(filtered) {
		filtered = filtered[:req.Limit]
	}
	return filtered, total, nil
}

func (s *LicenseQueryService) GetDashboardSummary(ctx context.Context) (*dto.DashboardSummaryResponse, error) {
	records, err := s.ledger.List(ctx)
	if err != nil {
		s.logger.Error("Failed to load licenses for summary", zap.Error(err))
		return nil, fmt.Errorf("list licenses: %w", err)
	}
	banned, err := s.registry.List(ctx)
	if err != nil {
		s.logger.Error("Failed to load ban registry for summary", zap.Error(err))
		return nil, fmt.Errorf("list banned devices: %w", err)
	}

	now := s.nowFn()
	horizon := now.AddDate(0, 0, expiringSoonDays)

	summary := &dto.DashboardSummaryResponse{
		TotalLicenses: int64(len(records)),
		StatusCounts:  make(map[license.LicenseStatus]int64),
		TierCounts:    make(map[string]int64),
		BannedDevices: int64(len(banned)),
		ExpiringSoon:  dto.ExpiringSoonSummary{PeriodDays: expiringSoonDays},
	}

	var next *license.Record
	for _, rec := range records {
		summary.StatusCounts[rec.Status]++
		summary.TierCounts[rec.Tier]++

		if rec.IsBanned() || rec.ExpiresAt.Before(now) || rec.ExpiresAt.After(horizon) {
			continue
		}
		summary.ExpiringSoon.Count++
		if next == nil || rec.ExpiresAt.Before(next.ExpiresAt) {
			next = rec
		}
	}
	if next != nil {
		summary.ExpiringSoon.NextToExpire = &dto.LicenseInfo{
			LicenseKey:    next.LicenseKey,
			ExpiresAt:     next.ExpiresAt,
			BoundDeviceID: next.BoundDeviceID,
		}
	}

	return summary, nil
}
