package license

import (
	"time"

	"github.com/google/uuid"
)

type LicenseStatus string

const (
	StatusActive LicenseStatus = "active"
	StatusBanned LicenseStatus = "banned"
)

func (s LicenseStatus) Valid() bool {
	return s == StatusActive || s == StatusBanned
}

// Record is the ledger entry of a license key. BoundDeviceID is set once, when the
// key is first activated, and never changes afterwards.
type Record struct {
	ID            uuid.UUID     `db:"id" json:"id"`
	LicenseKey    string        `db:"license_key" json:"license_key"`
	OwnerUserID   int64         `db:"owner_user_id" json:"owner_user_id"`
	Tier          string        `db:"tier" json:"tier"`
	BoundDeviceID string        `db:"bound_device_id" json:"bound_device_id"`
	ExpiresAt     time.Time     `db:"expires_at" json:"expires_at"`
	Status        LicenseStatus `db:"status" json:"status"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

func (r *Record) IsBanned() bool {
	return r.Status == StatusBanned
}

// StatusUntouched reports whether the status has not been written since the key
// was bound.
func (r *Record) StatusUntouched() bool {
	return r.UpdatedAt.Equal(r.CreatedAt)
}
