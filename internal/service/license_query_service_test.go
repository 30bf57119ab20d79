package service

import (
	"context"
	"testing"
	"time"

	"github.com/makkenzo/device-license-service/internal/domain/license"
	"github.com/makkenzo/device-license-service/internal/handler/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func seedLedger(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()
	for _, r := range []*license.Record{
		{LicenseKey: "K1", Tier: "WEEK", BoundDeviceID: testDevice, ExpiresAt: fixedNow.AddDate(0, 0, 3), Status: license.StatusActive},
		{LicenseKey: "K2", Tier: "WEEK", BoundDeviceID: "abcdef12-second", ExpiresAt: fixedNow.AddDate(0, 0, 1), Status: license.StatusBanned},
		{LicenseKey: "K3", Tier: "MNTH", BoundDeviceID: otherDevice, ExpiresAt: fixedNow.AddDate(0, 0, 30), Status: license.StatusActive},
		{LicenseKey: "K4", Tier: "DALY", BoundDeviceID: otherDevice, ExpiresAt: fixedNow.AddDate(0, 0, -1), Status: license.StatusActive},
	} {
		_, _, err := f.ledger.Bind(ctx, r)
		require.NoError(t, err)
	}
}

func TestListLicensesFilters(t *testing.T) {
	f := newFixture(t, true)
	seedLedger(t, f)
	svc := NewLicenseQueryService(f.ledger, f.registry, func() time.Time { return fixedNow }, zap.NewNop())
	ctx := context.Background()

	all, total, err := svc.ListLicenses(ctx, &dto.ListLicensesRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, all, 4)

	banned := license.StatusBanned
	recs, total, err := svc.ListLicenses(ctx, &dto.ListLicensesRequest{Status: &banned})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, recs, 1)
	assert.Equal(t, "K2", recs[0].LicenseKey)

	recs, total, err = svc.ListLicenses(ctx, &dto.ListLicensesRequest{Device: "ABCDEF12"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, recs, 2)

	recs, total, err = svc.ListLicenses(ctx, &dto.ListLicensesRequest{Limit: 3, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, recs, 2)

	recs, _, err = svc.ListLicenses(ctx, &dto.ListLicensesRequest{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestDashboardSummary(t *testing.T) {
	f := newFixture(t, true)
	seedLedger(t, f)
	_, err := f.registry.Add(context.Background(), "deadbeef")
	require.NoError(t, err)
	svc := NewLicenseQueryService(f.ledger, f.registry, func() time.Time { return fixedNow }, zap.NewNop())

	summary, err := svc.GetDashboardSummary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(4), summary.TotalLicenses)
	assert.Equal(t, int64(3), summary.StatusCounts[license.StatusActive])
	assert.Equal(t, int64(1), summary.StatusCounts[license.StatusBanned])
	assert.Equal(t, int64(2), summary.TierCounts["WEEK"])
	assert.Equal(t, int64(1), summary.BannedDevices)

	assert.Equal(t, 7, summary.ExpiringSoon.PeriodDays)
	assert.Equal(t, int64(1), summary.ExpiringSoon.Count)
	require.NotNil(t, summary.ExpiringSoon.NextToExpire)
	assert.Equal(t, "K1", summary.ExpiringSoon.NextToExpire.LicenseKey)
}
