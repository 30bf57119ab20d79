// Package licensekey encodes and decodes device-bound license keys of the form
// TIER-HASHPREFIX[-YYYYMMDD]-CHECKSUM.
package licensekey

import (
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"
)

const (
	// PrefixLength is the number of device id characters embedded in a key.
	PrefixLength = 8
	// TierLength is the width of the tier code segment.
	TierLength = 4
	// ChecksumLength is the fixed width of the checksum segment.
	ChecksumLength = 4
	// WildcardPrefix is accepted for any device at first activation.
	WildcardPrefix = "ADMIN"
	// DateLayout is the layout of the embedded expiry segment.
	DateLayout = "20060102"

	separator = "-"
)

var ErrMalformed = errors.New("malformed license key")

// Key is the decoded form of a license key string.
type Key struct {
	Tier         string
	DevicePrefix string
	Expiry       string
	Checksum     string
}

// HasExpiry reports whether the key carries the 4-segment expiry form.
func (k Key) HasExpiry() bool {
	return k.Expiry != ""
}

// String re-derives the key string from its fields.
func (k Key) String() string {
	if k.HasExpiry() {
		return strings.Join([]string{k.Tier, k.DevicePrefix, k.Expiry, k.Checksum}, separator)
	}
	return strings.Join([]string{k.Tier, k.DevicePrefix, k.Checksum}, separator)
}

// ExpiryDate parses the embedded expiry as the last second of that day in loc.
// ok is false when the segment is absent or is not exactly 8 digits.
func (k Key) ExpiryDate(loc *time.Location) (t time.Time, ok bool) {
	if !isDate(k.Expiry) {
		return time.Time{}, false
	}
	year, _ := strconv.Atoi(k.Expiry[0:4])
	month, _ := strconv.Atoi(k.Expiry[4:6])
	day, _ := strconv.Atoi(k.Expiry[6:8])
	if loc == nil {
		loc = time.Local
	}
	// time.Date normalises out-of-range months and days the same way the
	// issuing side's calendar arithmetic did.
	return time.Date(year, time.Month(month), day, 23, 59, 59, 0, loc), true
}

// Decode splits a key string into its segments. It does not verify the checksum.
func Decode(s string) (Key, error) {
	parts := strings.Split(s, separator)
	for _, p := range parts {
		if p == "" {
			return Key{}, ErrMalformed
		}
	}

	switch len(parts) {
	case 3:
		return Key{Tier: parts[0], DevicePrefix: parts[1], Checksum: parts[2]}, nil
	case 4:
		return Key{Tier: parts[0], DevicePrefix: parts[1], Expiry: parts[2], Checksum: parts[3]}, nil
	default:
		return Key{}, ErrMalformed
	}
}

// DecodeLenient reads any key string without rejecting its shape. Tier is the
// first 4 characters, DevicePrefix the second segment and Expiry the third
// segment when it is an 8 digit date. segments is the number of parts so callers
// can tell a missing prefix from an empty one.
func DecodeLenient(s string) (k Key, segments int) {
	parts := strings.Split(s, separator)
	k.Tier = head(s, TierLength)
	if len(parts) >= 2 {
		k.DevicePrefix = parts[1]
	}
	if len(parts) >= 3 && isDate(parts[2]) {
		k.Expiry = parts[2]
	}
	return k, len(parts)
}

// DevicePrefix returns the uppercased first 8 characters of a device id, counted
// in UTF-16 code units.
func DevicePrefix(deviceID string) string {
	return strings.ToUpper(head(deviceID, PrefixLength))
}

// head returns the leading n UTF-16 code units of s. A surrogate pair that would
// straddle the cut is dropped whole.
func head(s string, n int) string {
	units := 0
	for i, r := range s {
		w := utf16.RuneLen(r)
		if w < 1 {
			w = 1
		}
		if units+w > n {
			return s[:i]
		}
		units += w
	}
	return s
}

func isDate(s string) bool {
	if len(s) != len(DateLayout) {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Checksum computes the 4 character integrity tag over the key fields and salt.
//
// The accumulator is a signed 32-bit rolling hash (h*31 + c) over the UTF-16 code
// units of tier+prefix+expiry+salt; its absolute value is rendered in base 36,
// truncated to the leading 4 characters and left-padded with zeros.
func Checksum(tier, devicePrefix, expiry, salt string) string {
	combined := tier + devicePrefix + expiry + salt

	var h int32
	for _, c := range utf16.Encode([]rune(combined)) {
		h = (h << 5) - h + int32(c)
	}

	v := int64(h)
	if v < 0 {
		v = -v
	}

	out := strings.ToUpper(strconv.FormatInt(v, 36))
	if len(out) > ChecksumLength {
		out = out[:ChecksumLength]
	}
	if len(out) < ChecksumLength {
		out = strings.Repeat("0", ChecksumLength-len(out)) + out
	}
	return out
}

// Codec binds the salt and calendar used for generating and verifying keys.
type Codec struct {
	salt     string
	location *time.Location
}

func NewCodec(salt string, loc *time.Location) *Codec {
	if loc == nil {
		loc = time.Local
	}
	return &Codec{salt: salt, location: loc}
}

// Location is the calendar used for embedded expiry dates.
func (c *Codec) Location() *time.Location {
	return c.location
}

// Encode builds a key for deviceID. A nil expiry yields the 3-segment form.
func (c *Codec) Encode(deviceID, tier string, expiry *time.Time) string {
	k := Key{
		Tier:         tier,
		DevicePrefix: DevicePrefix(deviceID),
	}
	if expiry != nil {
		k.Expiry = expiry.In(c.location).Format(DateLayout)
	}
	k.Checksum = Checksum(k.Tier, k.DevicePrefix, k.Expiry, c.salt)
	return k.String()
}

// Verify recomputes the checksum of k and compares it with the embedded one.
func (c *Codec) Verify(k Key) bool {
	return strings.EqualFold(Checksum(k.Tier, k.DevicePrefix, k.Expiry, c.salt), k.Checksum)
}
