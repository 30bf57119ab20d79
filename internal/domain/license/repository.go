package license

import (
	"context"
	"errors"
)

var (
	ErrNotFound              = errors.New("license not found")
	ErrMalformedInput        = errors.New("license key or device id is malformed")
	ErrDeviceBanned          = errors.New("device is banned")
	ErrDeviceMismatch        = errors.New("license key was issued for a different device")
	ErrAlreadyBoundElsewhere = errors.New("license key is already bound to another device")
	ErrStorage               = errors.New("license storage failure")
)

// Ledger persists license records keyed by license key.
//
// Implementations must make Bind an insert-if-absent: when a record for the key
// already exists it is returned unchanged with created=false.
type Ledger interface {
	FindByKey(ctx context.Context, key string) (*Record, error)
	Bind(ctx context.Context, rec *Record) (stored *Record, created bool, err error)
	UpdateStatus(ctx context.Context, key string, status LicenseStatus) error
	// FindByDevice returns records whose bound device matches deviceID under the
	// device matcher rule.
	FindByDevice(ctx context.Context, deviceID string) ([]*Record, error)
	List(ctx context.Context) ([]*Record, error)
}
