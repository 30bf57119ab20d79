package postgres

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/makkenzo/device-license-service/internal/domain/device"
	"github.com/makkenzo/device-license-service/internal/domain/license"
	"go.uber.org/zap"
)

const licenseColumns = `
            id, license_key, owner_user_id, tier, bound_device_id,
            expires_at, status, created_at, updated_at`

type LicenseLedger struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewLicenseLedger(db *pgxpool.Pool, logger *zap.Logger) *LicenseLedger {
	return &LicenseLedger{
		db:     db,
		logger: logger.Named("LicenseLedger"),
	}
}

var _ license.Ledger = (*LicenseLedger)(nil)

func (r *LicenseLedger) FindByKey(ctx context.Context, key string) (*license.Record, error) {
	query := `SELECT` + licenseColumns + `
        FROM licenses
        WHERE license_key = $1
    `

	rec, err := r.scanRecord(r.db.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, license.ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// Bind inserts rec unless the key is already present. ON CONFLICT DO NOTHING keeps
// the first binding; the losing caller reads back the winner.
func (r *LicenseLedger) Bind(ctx context.Context, rec *license.Record) (*license.Record, bool, error) {
	id := rec.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	query := `
        INSERT INTO licenses (
            id, license_key, owner_user_id, tier, bound_device_id, expires_at, status
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7
        )
        ON CONFLICT (license_key) DO NOTHING
        RETURNING` + licenseColumns

	stored, err := r.scanRecord(r.db.QueryRow(ctx, query,
		id,
		rec.LicenseKey,
		rec.OwnerUserID,
		rec.Tier,
		rec.BoundDeviceID,
		rec.ExpiresAt,
		rec.Status,
	))
	if err == nil {
		r.logger.Info("License bound to device",
			zap.String("license_key", stored.LicenseKey),
			zap.String("device_id", stored.BoundDeviceID),
		)
		return stored, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	r.logger.Warn("License already bound, returning existing record", zap.String("license_key", rec.LicenseKey))
	existing, err := r.FindByKey(ctx, rec.LicenseKey)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *LicenseLedger) UpdateStatus(ctx context.Context, key string, status license.LicenseStatus) error {
	query := `UPDATE licenses
		SET status = $1, updated_at = greatest(now(), updated_at + interval '1 microsecond')
		WHERE license_key = $2`

	cmdTag, err := r.db.Exec(ctx, query, status, key)
	if err != nil {
		r.logger.Error("Failed to update license status", zap.String("license_key", key), zap.Error(err))
		return fmt.Errorf("%w: update status: %v", license.ErrStorage, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return license.ErrNotFound
	}

	r.logger.Info("License status updated", zap.String("license_key", key), zap.String("status", string(status)))
	return nil
}

// FindByDevice uses the display-prefix index whenever deviceID is long enough to
// pin it; shorter ids fall back to a scan.
func (r *LicenseLedger) FindByDevice(ctx context.Context, deviceID string) ([]*license.Record, error) {
	query := findByDeviceQuery(deviceID)
	args := []any{deviceID}

	recs, err := r.queryRecords(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	matched := recs[:0]
	for _, rec := range recs {
		if device.Matches(deviceID, rec.BoundDeviceID) {
			matched = append(matched, rec)
		}
	}
	return matched, nil
}

func (r *LicenseLedger) List(ctx context.Context) ([]*license.Record, error) {
	query := `SELECT` + licenseColumns + `
        FROM licenses
        ORDER BY created_at DESC
    `
	return r.queryRecords(ctx, query)
}

func (r *LicenseLedger) queryRecords(ctx context.Context, query string, args ...any) ([]*license.Record, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query licenses", zap.Error(err))
		return nil, fmt.Errorf("%w: query licenses: %v", license.ErrStorage, err)
	}
	defer rows.Close()

	records := make([]*license.Record, 0)
	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err = rows.Err(); err != nil {
		r.logger.Error("Error iterating license rows", zap.Error(err))
		return nil, fmt.Errorf("%w: iterate licenses: %v", license.ErrStorage, err)
	}

	return records, nil
}

func (r *LicenseLedger) scanRecord(row pgx.Row) (*license.Record, error) {
	var rec license.Record
	err := row.Scan(
		&rec.ID,
		&rec.LicenseKey,
		&rec.OwnerUserID,
		&rec.Tier,
		&rec.BoundDeviceID,
		&rec.ExpiresAt,
		&rec.Status,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		r.logger.Error("Failed to scan license row", zap.Error(err))
		return nil, fmt.Errorf("%w: scan license: %v", license.ErrStorage, err)
	}
	return &rec, nil
}

// findByDeviceQuery adds the indexed prefix predicate only when deviceID has at
// least 8 characters, as counted by SQL left().
func findByDeviceQuery(deviceID string) string {
	query := `SELECT` + licenseColumns + `
        FROM licenses
        WHERE (
            starts_with(upper(bound_device_id), upper($1))
            OR starts_with(upper($1), left(upper(bound_device_id), 8))
        )`

	if utf8.RuneCountInString(deviceID) >= device.DisplayPrefixLength {
		query += `
        AND (left(upper(bound_device_id), 8) = upper(left($1, 8)) OR length(bound_device_id) < 8)`
	}
	return query + `
        ORDER BY created_at DESC`
}
