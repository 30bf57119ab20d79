package memstorage

import (
	"context"
	"sync"
	"time"

	"github.com/makkenzo/device-license-service/internal/domain/device"
)

type DeviceRegistry struct {
	mu      sync.RWMutex
	entries []*device.BanEntry
	nowFn   func() time.Time
}

func NewDeviceRegistry() *DeviceRegistry {
	return &DeviceRegistry{nowFn: time.Now}
}

var _ device.Registry = (*DeviceRegistry)(nil)

func (r *DeviceRegistry) Add(ctx context.Context, deviceID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if device.SameEntry(e.DeviceID, deviceID) {
			return false, nil
		}
	}
	r.entries = append(r.entries, &device.BanEntry{DeviceID: deviceID, CreatedAt: r.nowFn().UTC()})
	return true, nil
}

func (r *DeviceRegistry) RemoveMatching(ctx context.Context, deviceID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := make([]string, 0)
	kept := r.entries[:0]
	for _, e := range r.entries {
		if device.Matches(deviceID, e.DeviceID) {
			removed = append(removed, e.DeviceID)
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return removed, nil
}

func (r *DeviceRegistry) List(ctx context.Context) ([]*device.BanEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*device.BanEntry, len(r.entries))
	for i, e := range r.entries {
		entryCopy := *e
		out[i] = &entryCopy
	}
	return out, nil
}
