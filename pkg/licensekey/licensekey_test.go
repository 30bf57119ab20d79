package licensekey

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSalt = "SECRET_SALT_2025"

func TestChecksumKnownValues(t *testing.T) {
	tests := []struct {
		name   string
		tier   string
		prefix string
		expiry string
		want   string
	}{
		{name: "weekly with expiry", tier: "WEEK", prefix: "ABCDEF12", expiry: "20251231", want: "IK7Z"},
		{name: "weekly without expiry", tier: "WEEK", prefix: "ABCDEF12", want: "T247"},
		{name: "admin wildcard", tier: "MNTH", prefix: "ADMIN", want: "8ESD"},
		{name: "daily", tier: "DALY", prefix: "1234ABCD", expiry: "20260101", want: "TPJE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Checksum(tt.tier, tt.prefix, tt.expiry, testSalt))
		})
	}
}

func TestChecksumSensitivity(t *testing.T) {
	base := Checksum("WEEK", "ABCDEF12", "20251231", testSalt)

	assert.NotEqual(t, base, Checksum("WEEX", "ABCDEF12", "20251231", testSalt))
	assert.NotEqual(t, base, Checksum("WEEK", "ABCDEF13", "20251231", testSalt))
	assert.NotEqual(t, base, Checksum("WEEK", "ABCDEF12", "20251230", testSalt))
	assert.NotEqual(t, base, Checksum("WEEK", "ABCDEF12", "20251231", "OTHER_SALT"))
}

func TestChecksumIsAlwaysFourChars(t *testing.T) {
	for _, in := range []string{"", "a", "zz", "WEEKADMIN", "0000000000000000000000"} {
		sum := Checksum(in, "", "", "")
		assert.Len(t, sum, ChecksumLength, "input %q", in)
		assert.Regexp(t, `^[0-9A-Z]{4}$`, sum)
	}
}

func TestEncodeConcreteScenario(t *testing.T) {
	codec := NewCodec(testSalt, time.UTC)
	expiry := time.Date(2025, 12, 31, 10, 0, 0, 0, time.UTC)

	key := codec.Encode("ABCDEF1234567890", "WEEK", &expiry)
	assert.Equal(t, "WEEK-ABCDEF12-20251231-IK7Z", key)

	again := codec.Encode("ABCDEF1234567890", "WEEK", &expiry)
	assert.Equal(t, key, again)
}

func TestEncodeWithoutExpiry(t *testing.T) {
	codec := NewCodec(testSalt, time.UTC)

	assert.Equal(t, "WEEK-ABCDEF12-T247", codec.Encode("abcdef1234567890", "WEEK", nil))
}

func TestEncodeUsesCodecCalendar(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	codec := NewCodec(testSalt, loc)
	// 2025-12-31 22:00 UTC is already 2026-01-01 in UTC+5.
	expiry := time.Date(2025, 12, 31, 22, 0, 0, 0, time.UTC)

	k, err := Decode(codec.Encode("ABCDEF1234567890", "WEEK", &expiry))
	require.NoError(t, err)
	assert.Equal(t, "20260101", k.Expiry)
}

func TestEncodeShortDeviceID(t *testing.T) {
	codec := NewCodec(testSalt, time.UTC)

	k, err := Decode(codec.Encode("admin", "MNTH", nil))
	require.NoError(t, err)
	assert.Equal(t, WildcardPrefix, k.DevicePrefix)
	assert.Equal(t, "8ESD", k.Checksum)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Key
		wantErr bool
	}{
		{
			name: "three segments",
			in:   "WEEK-ABCDEF12-T247",
			want: Key{Tier: "WEEK", DevicePrefix: "ABCDEF12", Checksum: "T247"},
		},
		{
			name: "four segments",
			in:   "WEEK-ABCDEF12-20251231-IK7Z",
			want: Key{Tier: "WEEK", DevicePrefix: "ABCDEF12", Expiry: "20251231", Checksum: "IK7Z"},
		},
		{name: "empty", in: "", wantErr: true},
		{name: "single segment", in: "WEEK", wantErr: true},
		{name: "two segments", in: "WEEK-ABCDEF12", wantErr: true},
		{name: "five segments", in: "A-B-C-D-E", wantErr: true},
		{name: "empty segment", in: "WEEK--T247", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestVerify(t *testing.T) {
	codec := NewCodec(testSalt, time.UTC)

	k, err := Decode("WEEK-ABCDEF12-20251231-IK7Z")
	require.NoError(t, err)
	assert.True(t, codec.Verify(k))

	k.Expiry = "20261231"
	assert.False(t, codec.Verify(k))

	other := NewCodec("another-salt", time.UTC)
	k.Expiry = "20251231"
	assert.False(t, other.Verify(k))
}

func TestExpiryDate(t *testing.T) {
	k := Key{Expiry: "20251231"}
	got, ok := k.ExpiryDate(time.UTC)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC), got)

	_, ok = Key{Expiry: "2025123"}.ExpiryDate(time.UTC)
	assert.False(t, ok)

	_, ok = Key{Expiry: "2025ABCD"}.ExpiryDate(time.UTC)
	assert.False(t, ok)

	_, ok = Key{}.ExpiryDate(time.UTC)
	assert.False(t, ok)
}

func TestDevicePrefix(t *testing.T) {
	assert.Equal(t, "ABCDEF12", DevicePrefix("abcdef1234567890"))
	assert.Equal(t, "ABC", DevicePrefix("abc"))
	assert.Equal(t, "", DevicePrefix(""))
}

func TestDevicePrefixCountsCharacters(t *testing.T) {
	assert.Equal(t, "ÉÉÉÉÉÉÉÉ", DevicePrefix("ééééééééé"))
	assert.Equal(t, "ДЕВАЙС12", DevicePrefix("девайс1234"))
	// an astral rune is two UTF-16 units and is not split at the cut
	assert.Equal(t, "ABCDEFG", DevicePrefix("abcdefg😀x"))
	assert.Equal(t, "ABCDEF😀", DevicePrefix("abcdef😀x"))
}

func TestDecodeLenient(t *testing.T) {
	tests := []struct {
		in       string
		want     Key
		segments int
	}{
		{in: "WEEKABCDEF12", want: Key{Tier: "WEEK"}, segments: 1},
		{in: "WEEK-ABCDEF12", want: Key{Tier: "WEEK", DevicePrefix: "ABCDEF12"}, segments: 2},
		{in: "WEEK-ABCDEF12-T247", want: Key{Tier: "WEEK", DevicePrefix: "ABCDEF12"}, segments: 3},
		{in: "WEEK-ABCDEF12-20251231", want: Key{Tier: "WEEK", DevicePrefix: "ABCDEF12", Expiry: "20251231"}, segments: 3},
		{in: "WEEK-ABCDEF12-20251231-AAAA-X", want: Key{Tier: "WEEK", DevicePrefix: "ABCDEF12", Expiry: "20251231"}, segments: 5},
		{in: "HR-ABCDEF12", want: Key{Tier: "HR-A", DevicePrefix: "ABCDEF12"}, segments: 2},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			k, segments := DecodeLenient(tt.in)
			assert.Equal(t, tt.want, k)
			assert.Equal(t, tt.segments, segments)
		})
	}
}
