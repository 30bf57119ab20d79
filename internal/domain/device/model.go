package device

import "time"

// BanEntry is a banned device identifier, either a full hash or a display prefix.
type BanEntry struct {
	DeviceID  string    `db:"device_id" json:"device_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// IDs flattens entries to their identifiers.
func IDs(entries []*BanEntry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.DeviceID
	}
	return ids
}
