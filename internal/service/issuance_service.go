package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/makkenzo/device-license-service/internal/config"
	"github.com/makkenzo/device-license-service/internal/domain/license"
	"github.com/makkenzo/device-license-service/internal/ierr"
	"github.com/makkenzo/device-license-service/internal/lock"
	"github.com/makkenzo/device-license-service/internal/metrics"
	"github.com/makkenzo/device-license-service/pkg/licensekey"
	"go.uber.org/zap"
)

// IssuedLicense is the outcome of issuing a key for a purchased tier.
type IssuedLicense struct {
	LicenseKey string
	Tier       config.TierConfig
	DeviceID   string
	ExpiresAt  time.Time
	Record     *license.Record
}

type IssuanceService struct {
	codec  *licensekey.Codec
	tiers  []config.TierConfig
	ledger license.Ledger
	locker lock.Locker
	nowFn  func() time.Time
	logger *zap.Logger
}

func NewIssuanceService(
	codec *licensekey.Codec,
	tiers []config.TierConfig,
	ledger license.Ledger,
	locker lock.Locker,
	nowFn func() time.Time,
	logger *zap.Logger,
) *IssuanceService {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &IssuanceService{
		codec:  codec,
		tiers:  tiers,
		ledger: ledger,
		locker: locker,
		nowFn:  nowFn,
		logger: logger.Named("IssuanceService"),
	}
}

func (s *IssuanceService) Tiers() []config.TierConfig {
	out := make([]config.TierConfig, len(s.tiers))
	copy(out, s.tiers)
	return out
}

// FindTier resolves a tier by its name (WEEKLY) or its key code (WEEK).
func (s *IssuanceService) FindTier(nameOrCode string) (config.TierConfig, error) {
	for _, t := range s.tiers {
		if strings.EqualFold(t.Name, nameOrCode) || strings.EqualFold(t.Code, nameOrCode) {
			return t, nil
		}
	}
	return config.TierConfig{}, fmt.Errorf("%w: %q", ierr.ErrUnknownTier, nameOrCode)
}

// GenerateKey builds the key string for deviceID. A nil expiry produces a key
// without an embedded date.
func (s *IssuanceService) GenerateKey(deviceID, tierCode string, expiry *time.Time) (string, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return "", fmt.Errorf("%w: device id is required", ierr.ErrValidation)
	}
	if len(tierCode) != 4 || strings.Contains(tierCode, "-") {
		return "", fmt.Errorf("%w: tier code must be 4 characters without '-'", ierr.ErrValidation)
	}
	if strings.Contains(licensekey.DevicePrefix(deviceID), "-") {
		return "", fmt.Errorf("%w: device id must not contain '-' in its first %d characters", ierr.ErrValidation, licensekey.PrefixLength)
	}

	key := s.codec.Encode(deviceID, strings.ToUpper(tierCode), expiry)
	metrics.KeysGeneratedTotal.WithLabelValues(strings.ToUpper(tierCode)).Inc()

	s.logger.Info("License key generated",
		zap.String("license_key", key),
		zap.String("device_prefix", licensekey.DevicePrefix(deviceID)),
	)
	return key, nil
}

// IssueForTier generates a key valid for the tier's duration from now. When the
// purchase belongs to a known user the key is bound to deviceID immediately.
func (s *IssuanceService) IssueForTier(ctx context.Context, deviceID, tierName string, ownerUserID int64) (*IssuedLicense, error) {
	tier, err := s.FindTier(tierName)
	if err != nil {
		return nil, err
	}

	expiresAt := s.nowFn().AddDate(0, 0, tier.Days)
	key, err := s.GenerateKey(deviceID, tier.Code, &expiresAt)
	if err != nil {
		return nil, err
	}

	issued := &IssuedLicense{
		LicenseKey: key,
		Tier:       tier,
		DeviceID:   strings.TrimSpace(deviceID),
		ExpiresAt:  expiresAt,
	}
	if ownerUserID == 0 {
		return issued, nil
	}

	unlock, err := s.locker.Lock(ctx, licenseLockKey(key))
	if err != nil {
		return nil, fmt.Errorf("%w: acquire license lock: %w", license.ErrStorage, err)
	}
	defer unlock()

	rec, created, err := s.ledger.Bind(ctx, &license.Record{
		LicenseKey:    key,
		OwnerUserID:   ownerUserID,
		Tier:          tier.Code,
		BoundDeviceID: issued.DeviceID,
		ExpiresAt:     expiresAt,
		Status:        license.StatusActive,
	})
	if err != nil {
		s.logger.Error("Failed to record issued license", zap.String("license_key", key), zap.Error(err))
		return nil, fmt.Errorf("record issued license: %w", err)
	}
	if !created {
		if rec.BoundDeviceID != issued.DeviceID {
			s.logger.Warn("Issued key already bound to another device",
				zap.String("license_key", key),
				zap.String("bound_device_id", rec.BoundDeviceID),
			)
			return nil, fmt.Errorf("%w: key %s is already bound to another device", ierr.ErrConflict, key)
		}
		s.logger.Warn("Issued key already present in ledger", zap.String("license_key", key))
	}
	issued.Record = rec

	return issued, nil
}
