package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/makkenzo/device-license-service/internal/domain/device"
	"github.com/makkenzo/device-license-service/internal/domain/license"
	"github.com/makkenzo/device-license-service/internal/lock"
	"github.com/makkenzo/device-license-service/internal/metrics"
	"go.uber.org/zap"
)

// BanService applies administrative bans to devices and license records.
type BanService struct {
	ledger   license.Ledger
	registry device.Registry
	locker   lock.Locker
	logger   *zap.Logger
}

func NewBanService(ledger license.Ledger, registry device.Registry, locker lock.Locker, logger *zap.Logger) *BanService {
	return &BanService{
		ledger:   ledger,
		registry: registry,
		locker:   locker,
		logger:   logger.Named("BanService"),
	}
}

func deviceLockKey(deviceID string) string {
	return "device:" + strings.ToLower(deviceID)
}

// BanDevice adds deviceID to the ban registry and bans every license whose bound
// device matches it. The returned keys are the licenses it touched.
func (s *BanService) BanDevice(ctx context.Context, deviceID string) ([]string, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, license.ErrMalformedInput
	}

	unlock, err := s.locker.Lock(ctx, deviceLockKey(deviceID))
	if err != nil {
		return nil, fmt.Errorf("%w: acquire device lock: %w", license.ErrStorage, err)
	}
	defer unlock()

	added, err := s.registry.Add(ctx, deviceID)
	if err != nil {
		s.logger.Error("Failed to add device to ban registry", zap.String("device_id", deviceID), zap.Error(err))
		return nil, fmt.Errorf("ban device: %w", err)
	}
	if added {
		metrics.DeviceBansTotal.Inc()
	}

	records, err := s.ledger.FindByDevice(ctx, deviceID)
	if err != nil {
		s.logger.Error("Failed to find licenses bound to device", zap.String("device_id", deviceID), zap.Error(err))
		return nil, fmt.Errorf("find licenses for device: %w", err)
	}

	affected := make([]string, 0, len(records))
	for _, rec := range records {
		if err := s.setStatus(ctx, rec.LicenseKey, license.StatusBanned); err != nil {
			return affected, err
		}
		affected = append(affected, rec.LicenseKey)
	}
	metrics.BanPropagatedTotal.Add(float64(len(affected)))

	s.logger.Info("Device banned",
		zap.String("device_id", deviceID),
		zap.Bool("new_entry", added),
		zap.Int("banned_licenses", len(affected)),
	)
	return affected, nil
}

// UnbanDevice removes every registry entry matching deviceID, including prefix
// matches. License records banned by BanDevice stay banned.
func (s *BanService) UnbanDevice(ctx context.Context, deviceID string) error {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return license.ErrMalformedInput
	}

	unlock, err := s.locker.Lock(ctx, deviceLockKey(deviceID))
	if err != nil {
		return fmt.Errorf("%w: acquire device lock: %w", license.ErrStorage, err)
	}
	defer unlock()

	removed, err := s.registry.RemoveMatching(ctx, deviceID)
	if err != nil {
		s.logger.Error("Failed to remove device from ban registry", zap.String("device_id", deviceID), zap.Error(err))
		return fmt.Errorf("unban device: %w", err)
	}

	s.logger.Info("Device unbanned", zap.String("device_id", deviceID), zap.Strings("removed_entries", removed))
	return nil
}

func (s *BanService) ListBannedDevices(ctx context.Context) ([]*device.BanEntry, error) {
	entries, err := s.registry.List(ctx)
	if err != nil {
		s.logger.Error("Failed to list banned devices", zap.Error(err))
		return nil, fmt.Errorf("list banned devices: %w", err)
	}
	return entries, nil
}

func (s *BanService) BanLicense(ctx context.Context, key string) (*license.Record, error) {
	return s.changeLicenseStatus(ctx, key, license.StatusBanned)
}

// UnbanLicense sets the record back to active regardless of device bans.
func (s *BanService) UnbanLicense(ctx context.Context, key string) (*license.Record, error) {
	return s.changeLicenseStatus(ctx, key, license.StatusActive)
}

func (s *BanService) changeLicenseStatus(ctx context.Context, key string, status license.LicenseStatus) (*license.Record, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, license.ErrMalformedInput
	}

	if err := s.setStatus(ctx, key, status); err != nil {
		if !errors.Is(err, license.ErrNotFound) {
			s.logger.Error("Failed to change license status", zap.String("license_key", key), zap.Error(err))
		}
		return nil, err
	}

	rec, err := s.ledger.FindByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("reload license: %w", err)
	}

	s.logger.Info("License status changed", zap.String("license_key", key), zap.String("status", string(status)))
	return rec, nil
}

// ReconcileBans bans active licenses bound to a banned device whose status has
// never been written since binding. Those are bindings whose activation stopped
// between the insert and its own ban re-check. Records an administrator has
// unbanned are left alone.
func (s *BanService) ReconcileBans(ctx context.Context) ([]string, error) {
	entries, err := s.registry.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list banned devices: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}
	bannedIDs := device.IDs(entries)

	records, err := s.ledger.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list licenses: %w", err)
	}

	fixed := make([]string, 0)
	for _, rec := range records {
		if !reconcilable(rec, bannedIDs) {
			continue
		}
		banned, err := s.banIfReconcilable(ctx, rec.LicenseKey, bannedIDs)
		if err != nil {
			return fixed, err
		}
		if banned {
			fixed = append(fixed, rec.LicenseKey)
		}
	}
	metrics.BanPropagatedTotal.Add(float64(len(fixed)))

	return fixed, nil
}

func reconcilable(rec *license.Record, bannedIDs []string) bool {
	return !rec.IsBanned() && rec.StatusUntouched() && device.AnyMatch(rec.BoundDeviceID, bannedIDs)
}

// banIfReconcilable re-reads the record under its lock so a concurrent unban is
// never overwritten.
func (s *BanService) banIfReconcilable(ctx context.Context, key string, bannedIDs []string) (bool, error) {
	unlock, err := s.locker.Lock(ctx, licenseLockKey(key))
	if err != nil {
		return false, fmt.Errorf("%w: acquire license lock: %w", license.ErrStorage, err)
	}
	defer unlock()

	rec, err := s.ledger.FindByKey(ctx, key)
	if err != nil {
		if errors.Is(err, license.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("reload license: %w", err)
	}
	if !reconcilable(rec, bannedIDs) {
		return false, nil
	}

	if err := s.ledger.UpdateStatus(ctx, key, license.StatusBanned); err != nil {
		return false, fmt.Errorf("update license status: %w", err)
	}
	s.logger.Info("Reconciled license bound to banned device",
		zap.String("license_key", key),
		zap.String("device_id", rec.BoundDeviceID),
	)
	return true, nil
}

func (s *BanService) setStatus(ctx context.Context, key string, status license.LicenseStatus) error {
	unlock, err := s.locker.Lock(ctx, licenseLockKey(key))
	if err != nil {
		return fmt.Errorf("%w: acquire license lock: %w", license.ErrStorage, err)
	}
	defer unlock()

	if err := s.ledger.UpdateStatus(ctx, key, status); err != nil {
		if errors.Is(err, license.ErrNotFound) {
			return err
		}
		return fmt.Errorf("update license status: %w", err)
	}
	return nil
}
