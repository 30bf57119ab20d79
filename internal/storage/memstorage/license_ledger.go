package memstorage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/makkenzo/device-license-service/internal/domain/device"
	"github.com/makkenzo/device-license-service/internal/domain/license"
)

// LicenseLedger keeps license records in process memory. Used by tests and by the
// "memory" storage driver for single-instance deployments without Postgres.
type LicenseLedger struct {
	mu      sync.RWMutex
	records map[string]*license.Record
	nowFn   func() time.Time
}

func NewLicenseLedger() *LicenseLedger {
	return &LicenseLedger{
		records: make(map[string]*license.Record),
		nowFn:   time.Now,
	}
}

var _ license.Ledger = (*LicenseLedger)(nil)

func (l *LicenseLedger) FindByKey(ctx context.Context, key string) (*license.Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rec, ok := l.records[key]
	if !ok {
		return nil, license.ErrNotFound
	}
	recCopy := *rec
	return &recCopy, nil
}

func (l *LicenseLedger) Bind(ctx context.Context, rec *license.Record) (*license.Record, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.records[rec.LicenseKey]; ok {
		existingCopy := *existing
		return &existingCopy, false, nil
	}

	stored := *rec
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	now := l.nowFn().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	l.records[stored.LicenseKey] = &stored

	out := stored
	return &out, true, nil
}

func (l *LicenseLedger) UpdateStatus(ctx context.Context, key string, status license.LicenseStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[key]
	if !ok {
		return license.ErrNotFound
	}
	rec.Status = status
	now := l.nowFn().UTC()
	if !now.After(rec.UpdatedAt) {
		now = rec.UpdatedAt.Add(time.Nanosecond)
	}
	rec.UpdatedAt = now
	return nil
}

func (l *LicenseLedger) FindByDevice(ctx context.Context, deviceID string) ([]*license.Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	matched := make([]*license.Record, 0)
	for _, rec := range l.records {
		if device.Matches(deviceID, rec.BoundDeviceID) {
			recCopy := *rec
			matched = append(matched, &recCopy)
		}
	}
	sortRecords(matched)
	return matched, nil
}

func (l *LicenseLedger) List(ctx context.Context) ([]*license.Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	all := make([]*license.Record, 0, len(l.records))
	for _, rec := range l.records {
		recCopy := *rec
		all = append(all, &recCopy)
	}
	sortRecords(all)
	return all, nil
}

// sortRecords orders newest first, like the Postgres listing.
func sortRecords(recs []*license.Record) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].LicenseKey < recs[j].LicenseKey
		}
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
}
