package service

import (
	"context"
	"testing"
	"time"

	"github.com/makkenzo/device-license-service/internal/domain/license"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bindRecord(t *testing.T, f *fixture, key, deviceID string) {
	t.Helper()
	_, created, err := f.ledger.Bind(context.Background(), &license.Record{
		LicenseKey:    key,
		Tier:          "WEEK",
		BoundDeviceID: deviceID,
		ExpiresAt:     fixedNow.AddDate(0, 0, 7),
		Status:        license.StatusActive,
	})
	require.NoError(t, err)
	require.True(t, created)
}

func TestBanDevicePropagatesToMatchingLicenses(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	bindRecord(t, f, "K1", testDevice)
	bindRecord(t, f, "K2", "ABCDEF12")
	bindRecord(t, f, "K3", otherDevice)

	affected, err := f.bans.BanDevice(ctx, "abcdef12")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"K1", "K2"}, affected)

	for key, want := range map[string]license.LicenseStatus{
		"K1": license.StatusBanned,
		"K2": license.StatusBanned,
		"K3": license.StatusActive,
	} {
		rec, err := f.ledger.FindByKey(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, want, rec.Status, key)
	}
}

func TestBanDeviceIsIdempotent(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.bans.BanDevice(ctx, testDevice)
	require.NoError(t, err)
	_, err = f.bans.BanDevice(ctx, "ABCDEF1234567890FEDCBA")
	require.NoError(t, err)

	entries, err := f.bans.ListBannedDevices(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestUnbanDeviceRemovesPrefixEquivalentEntries(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.bans.BanDevice(ctx, "ABCDEF12")
	require.NoError(t, err)
	_, err = f.bans.BanDevice(ctx, testDevice)
	require.NoError(t, err)
	_, err = f.bans.BanDevice(ctx, otherDevice)
	require.NoError(t, err)

	require.NoError(t, f.bans.UnbanDevice(ctx, "abcdef12"))

	entries, err := f.bans.ListBannedDevices(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, otherDevice, entries[0].DeviceID)
}

func TestUnbanDeviceDoesNotRestoreLicenses(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	bindRecord(t, f, "K1", testDevice)

	_, err := f.bans.BanDevice(ctx, testDevice)
	require.NoError(t, err)
	require.NoError(t, f.bans.UnbanDevice(ctx, testDevice))

	rec, err := f.ledger.FindByKey(ctx, "K1")
	require.NoError(t, err)
	assert.Equal(t, license.StatusBanned, rec.Status)

	report, err := f.activation.CheckStatus(ctx, "K1", testDevice)
	require.NoError(t, err)
	assert.Equal(t, ReasonLicenseBanned, report.Reason)

	rec, err = f.bans.UnbanLicense(ctx, "K1")
	require.NoError(t, err)
	assert.Equal(t, license.StatusActive, rec.Status)

	report, err = f.activation.CheckStatus(ctx, "K1", testDevice)
	require.NoError(t, err)
	assert.Equal(t, license.StatusActive, report.Status)
}

func TestBanLicense(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	bindRecord(t, f, "K1", testDevice)

	rec, err := f.bans.BanLicense(ctx, "K1")
	require.NoError(t, err)
	assert.Equal(t, license.StatusBanned, rec.Status)

	_, err = f.bans.BanLicense(ctx, "missing")
	assert.ErrorIs(t, err, license.ErrNotFound)

	_, err = f.bans.UnbanLicense(ctx, "missing")
	assert.ErrorIs(t, err, license.ErrNotFound)

	_, err = f.bans.BanLicense(ctx, " ")
	assert.ErrorIs(t, err, license.ErrMalformedInput)
}

func TestBanDeviceRejectsEmptyID(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.bans.BanDevice(context.Background(), "")
	assert.ErrorIs(t, err, license.ErrMalformedInput)
	assert.ErrorIs(t, f.bans.UnbanDevice(context.Background(), " "), license.ErrMalformedInput)
}

func TestReconcileBansCatchesInterruptedActivations(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	// Registry entry without propagation, as left by an activation that stopped
	// between its insert and the ban re-check.
	_, err := f.registry.Add(ctx, testDevice)
	require.NoError(t, err)
	bindRecord(t, f, "K1", testDevice)
	bindRecord(t, f, "K2", otherDevice)

	fixed, err := f.bans.ReconcileBans(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"K1"}, fixed)

	rec, err := f.ledger.FindByKey(ctx, "K1")
	require.NoError(t, err)
	assert.Equal(t, license.StatusBanned, rec.Status)

	fixed, err = f.bans.ReconcileBans(ctx)
	require.NoError(t, err)
	assert.Empty(t, fixed)
}

func TestReconcileBansKeepsAdminUnban(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	bindRecord(t, f, "K1", testDevice)

	affected, err := f.bans.BanDevice(ctx, testDevice)
	require.NoError(t, err)
	require.Equal(t, []string{"K1"}, affected)

	rec, err := f.bans.UnbanLicense(ctx, "K1")
	require.NoError(t, err)
	require.Equal(t, license.StatusActive, rec.Status)

	fixed, err := f.bans.ReconcileBans(ctx)
	require.NoError(t, err)
	assert.Empty(t, fixed)

	rec, err = f.ledger.FindByKey(ctx, "K1")
	require.NoError(t, err)
	assert.Equal(t, license.StatusActive, rec.Status)
}

func TestReconcileBansWithEmptyRegistry(t *testing.T) {
	f := newFixture(t, true)
	bindRecord(t, f, "K1", testDevice)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	fixed, err := f.bans.ReconcileBans(ctx)
	require.NoError(t, err)
	assert.Empty(t, fixed)
}
