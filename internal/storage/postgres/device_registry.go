package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/makkenzo/device-license-service/internal/domain/device"
	"github.com/makkenzo/device-license-service/internal/domain/license"
	"go.uber.org/zap"
)

type DeviceRegistry struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewDeviceRegistry(db *pgxpool.Pool, logger *zap.Logger) *DeviceRegistry {
	return &DeviceRegistry{
		db:     db,
		logger: logger.Named("DeviceRegistry"),
	}
}

var _ device.Registry = (*DeviceRegistry)(nil)

func (r *DeviceRegistry) Add(ctx context.Context, deviceID string) (bool, error) {
	query := `
		INSERT INTO banned_devices (device_id)
		VALUES ($1)
		ON CONFLICT ((lower(device_id))) DO NOTHING
	`
	cmdTag, err := r.db.Exec(ctx, query, deviceID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			r.logger.Warn("Device ban already present",
				zap.String("device_id", deviceID),
				zap.String("constraint", pgErr.ConstraintName),
			)
			return false, nil
		}
		r.logger.Error("Failed to insert banned device", zap.String("device_id", deviceID), zap.Error(err))
		return false, fmt.Errorf("%w: add banned device: %v", license.ErrStorage, err)
	}

	return cmdTag.RowsAffected() == 1, nil
}

func (r *DeviceRegistry) RemoveMatching(ctx context.Context, deviceID string) ([]string, error) {
	query := `
		DELETE FROM banned_devices
		WHERE lower(device_id) = lower($1)
		   OR starts_with(lower(device_id), lower($1))
		   OR starts_with(lower($1), lower(left(device_id, 8)))
		RETURNING device_id
	`
	rows, err := r.db.Query(ctx, query, deviceID)
	if err != nil {
		r.logger.Error("Failed to delete banned devices", zap.String("device_id", deviceID), zap.Error(err))
		return nil, fmt.Errorf("%w: remove banned device: %v", license.ErrStorage, err)
	}
	defer rows.Close()

	removed := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scan removed device: %v", license.ErrStorage, err)
		}
		removed = append(removed, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate removed devices: %v", license.ErrStorage, err)
	}

	return removed, nil
}

func (r *DeviceRegistry) List(ctx context.Context) ([]*device.BanEntry, error) {
	query := `SELECT device_id, created_at FROM banned_devices ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list banned devices", zap.Error(err))
		return nil, fmt.Errorf("%w: list banned devices: %v", license.ErrStorage, err)
	}
	defer rows.Close()

	entries := make([]*device.BanEntry, 0)
	for rows.Next() {
		var e device.BanEntry
		if err := rows.Scan(&e.DeviceID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan banned device: %v", license.ErrStorage, err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate banned devices: %v", license.ErrStorage, err)
	}

	return entries, nil
}
