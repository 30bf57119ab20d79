package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/makkenzo/device-license-service/internal/domain/device"
	"github.com/makkenzo/device-license-service/internal/domain/license"
	"github.com/makkenzo/device-license-service/internal/lock"
	"github.com/makkenzo/device-license-service/internal/metrics"
	"github.com/makkenzo/device-license-service/pkg/licensekey"
	"go.uber.org/zap"
)

type Outcome string

const (
	OutcomeAllowNew           Outcome = "ALLOW_NEW"
	OutcomeAllowReverify      Outcome = "ALLOW_REVERIFY"
	OutcomeRejectDeviceBanned Outcome = "REJECT_DEVICE_BANNED"
	OutcomeRejectMismatch     Outcome = "REJECT_DEVICE_MISMATCH"
	OutcomeRejectOtherDevice  Outcome = "REJECT_OTHER_DEVICE"
	OutcomeErrorMalformed     Outcome = "ERROR_MALFORMED"
)

// ActivationResult carries the decision for one activation attempt. Tier and
// ExpiresAt are set only when the outcome allows access.
type ActivationResult struct {
	Outcome   Outcome
	Tier      string
	ExpiresAt time.Time
	Record    *license.Record
}

func (r *ActivationResult) Allowed() bool {
	return r.Outcome == OutcomeAllowNew || r.Outcome == OutcomeAllowReverify
}

type StatusReason string

const (
	ReasonNone              StatusReason = ""
	ReasonNotActivated      StatusReason = "not_activated"
	ReasonDeviceBanned      StatusReason = "device_banned"
	ReasonLicenseBanned     StatusReason = "license_banned"
	ReasonBoundDeviceBanned StatusReason = "bound_device_banned"
)

type StatusReport struct {
	Status license.LicenseStatus
	Reason StatusReason
	Record *license.Record
}

type ActivationOptions struct {
	VerifyChecksum        bool
	DefaultValidityMonths int
	Now                   func() time.Time
}

type ActivationService struct {
	ledger   license.Ledger
	registry device.Registry
	locker   lock.Locker
	codec    *licensekey.Codec
	opts     ActivationOptions
	logger   *zap.Logger
}

func NewActivationService(
	ledger license.Ledger,
	registry device.Registry,
	locker lock.Locker,
	codec *licensekey.Codec,
	opts ActivationOptions,
	logger *zap.Logger,
) *ActivationService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DefaultValidityMonths <= 0 {
		opts.DefaultValidityMonths = 12
	}
	return &ActivationService{
		ledger:   ledger,
		registry: registry,
		locker:   locker,
		codec:    codec,
		opts:     opts,
		logger:   logger.Named("ActivationService"),
	}
}

func licenseLockKey(key string) string {
	return "license:" + key
}

// Activate decides whether deviceID may use licenseKey, binding the key to the
// device on its first successful activation. Rejections return the sentinel
// error of the matching outcome alongside the result.
func (s *ActivationService) Activate(ctx context.Context, licenseKey, deviceID string) (*ActivationResult, error) {
	licenseKey = strings.TrimSpace(licenseKey)
	deviceID = strings.TrimSpace(deviceID)

	result, err := s.activate(ctx, licenseKey, deviceID)
	if result != nil {
		metrics.ActivationsTotal.WithLabelValues(string(result.Outcome)).Inc()
	}
	return result, err
}

func (s *ActivationService) activate(ctx context.Context, licenseKey, deviceID string) (*ActivationResult, error) {
	if licenseKey == "" || deviceID == "" {
		return reject(OutcomeErrorMalformed, license.ErrMalformedInput)
	}

	banned, err := s.isBanned(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if banned {
		s.logger.Warn("Activation rejected, device is banned", zap.String("device_id", deviceID))
		return reject(OutcomeRejectDeviceBanned, license.ErrDeviceBanned)
	}

	unlock, err := s.locker.Lock(ctx, licenseLockKey(licenseKey))
	if err != nil {
		return nil, fmt.Errorf("%w: acquire license lock: %w", license.ErrStorage, err)
	}
	defer unlock()

	existing, err := s.ledger.FindByKey(ctx, licenseKey)
	switch {
	case err == nil:
		return s.evaluateBound(existing, deviceID)
	case !errors.Is(err, license.ErrNotFound):
		s.logger.Error("Failed to look up license", zap.String("license_key", licenseKey), zap.Error(err))
		return nil, fmt.Errorf("look up license: %w", err)
	}

	key, checkPrefix, err := s.decodeKey(licenseKey)
	if err != nil {
		s.logger.Warn("Activation rejected, key cannot be decoded", zap.String("license_key", licenseKey), zap.Error(err))
		return reject(OutcomeErrorMalformed, fmt.Errorf("%w: %v", license.ErrMalformedInput, err))
	}
	if checkPrefix && key.DevicePrefix != licensekey.WildcardPrefix && key.DevicePrefix != licensekey.DevicePrefix(deviceID) {
		s.logger.Warn("Activation rejected, key issued for another device",
			zap.String("license_key", licenseKey),
			zap.String("device_id", deviceID),
		)
		return reject(OutcomeRejectMismatch, license.ErrDeviceMismatch)
	}

	expiresAt, ok := key.ExpiryDate(s.codec.Location())
	if !ok {
		expiresAt = s.opts.Now().AddDate(0, s.opts.DefaultValidityMonths, 0)
	}

	stored, created, err := s.ledger.Bind(ctx, &license.Record{
		LicenseKey:    licenseKey,
		Tier:          key.Tier,
		BoundDeviceID: deviceID,
		ExpiresAt:     expiresAt,
		Status:        license.StatusActive,
	})
	if err != nil {
		s.logger.Error("Failed to bind license", zap.String("license_key", licenseKey), zap.Error(err))
		return nil, fmt.Errorf("bind license: %w", err)
	}
	if !created {
		// Another instance bound the key between our lookup and insert.
		return s.evaluateBound(stored, deviceID)
	}

	// A BanDevice that added its entry after our registry read may have scanned
	// the ledger before the insert. Whichever side runs second bans the record.
	banned, err = s.isBanned(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if banned {
		if err := s.ledger.UpdateStatus(ctx, licenseKey, license.StatusBanned); err != nil {
			s.logger.Error("Failed to ban license bound during device ban", zap.String("license_key", licenseKey), zap.Error(err))
			return nil, fmt.Errorf("ban raced license: %w", err)
		}
		metrics.BanPropagatedTotal.Inc()
		s.logger.Warn("Device banned while activating, new binding banned",
			zap.String("license_key", licenseKey),
			zap.String("device_id", deviceID),
		)
		return reject(OutcomeRejectDeviceBanned, license.ErrDeviceBanned)
	}

	s.logger.Info("License activated and bound to device",
		zap.String("license_key", licenseKey),
		zap.String("device_id", deviceID),
		zap.String("tier", stored.Tier),
		zap.Time("expires_at", stored.ExpiresAt),
	)
	return &ActivationResult{
		Outcome:   OutcomeAllowNew,
		Tier:      stored.Tier,
		ExpiresAt: stored.ExpiresAt,
		Record:    stored,
	}, nil
}

// evaluateBound applies the burn-once rule to a key that already has a record.
func (s *ActivationService) evaluateBound(rec *license.Record, deviceID string) (*ActivationResult, error) {
	if rec.BoundDeviceID != deviceID {
		s.logger.Warn("Activation rejected, key bound to another device",
			zap.String("license_key", rec.LicenseKey),
			zap.String("device_id", deviceID),
		)
		return reject(OutcomeRejectOtherDevice, license.ErrAlreadyBoundElsewhere)
	}

	s.logger.Debug("License re-verified", zap.String("license_key", rec.LicenseKey))
	return &ActivationResult{
		Outcome:   OutcomeAllowReverify,
		Tier:      rec.Tier,
		ExpiresAt: rec.ExpiresAt,
		Record:    rec,
	}, nil
}

// CheckStatus reports whether a key may still be used. Device bans win over the
// record's own state; keys never activated report active.
func (s *ActivationService) CheckStatus(ctx context.Context, licenseKey, deviceID string) (*StatusReport, error) {
	licenseKey = strings.TrimSpace(licenseKey)
	deviceID = strings.TrimSpace(deviceID)
	if licenseKey == "" {
		return nil, license.ErrMalformedInput
	}

	report, err := s.checkStatus(ctx, licenseKey, deviceID)
	if err != nil {
		return nil, err
	}
	metrics.StatusChecksTotal.WithLabelValues(string(report.Status)).Inc()
	return report, nil
}

func (s *ActivationService) checkStatus(ctx context.Context, licenseKey, deviceID string) (*StatusReport, error) {
	bannedIDs, err := s.bannedIDs(ctx)
	if err != nil {
		return nil, err
	}

	if deviceID != "" && device.AnyMatch(deviceID, bannedIDs) {
		return &StatusReport{Status: license.StatusBanned, Reason: ReasonDeviceBanned}, nil
	}

	rec, err := s.ledger.FindByKey(ctx, licenseKey)
	if err != nil {
		if errors.Is(err, license.ErrNotFound) {
			return &StatusReport{Status: license.StatusActive, Reason: ReasonNotActivated}, nil
		}
		s.logger.Error("Failed to look up license for status check", zap.String("license_key", licenseKey), zap.Error(err))
		return nil, fmt.Errorf("look up license: %w", err)
	}

	switch {
	case rec.IsBanned():
		return &StatusReport{Status: license.StatusBanned, Reason: ReasonLicenseBanned, Record: rec}, nil
	case rec.BoundDeviceID != "" && device.AnyMatch(rec.BoundDeviceID, bannedIDs):
		return &StatusReport{Status: license.StatusBanned, Reason: ReasonBoundDeviceBanned, Record: rec}, nil
	default:
		return &StatusReport{Status: rec.Status, Reason: ReasonNone, Record: rec}, nil
	}
}

func (s *ActivationService) isBanned(ctx context.Context, deviceID string) (bool, error) {
	ids, err := s.bannedIDs(ctx)
	if err != nil {
		return false, err
	}
	return device.AnyMatch(deviceID, ids), nil
}

func (s *ActivationService) bannedIDs(ctx context.Context) ([]string, error) {
	entries, err := s.registry.List(ctx)
	if err != nil {
		s.logger.Error("Failed to read device ban registry", zap.Error(err))
		return nil, fmt.Errorf("read ban registry: %w", err)
	}
	return device.IDs(entries), nil
}

var errChecksumMismatch = errors.New("checksum mismatch")

// decodeKey parses a key for first activation. With checksum verification on the
// key must have the 3 or 4 segment form and a valid checksum. Otherwise any
// string is accepted and the device prefix is compared only when the key has a
// second segment.
func (s *ActivationService) decodeKey(licenseKey string) (licensekey.Key, bool, error) {
	if !s.opts.VerifyChecksum {
		key, segments := licensekey.DecodeLenient(licenseKey)
		return key, segments >= 2, nil
	}

	key, err := licensekey.Decode(licenseKey)
	if err != nil {
		return licensekey.Key{}, false, err
	}
	if !s.codec.Verify(key) {
		return licensekey.Key{}, false, errChecksumMismatch
	}
	return key, true, nil
}

func reject(outcome Outcome, err error) (*ActivationResult, error) {
	return &ActivationResult{Outcome: outcome}, err
}
