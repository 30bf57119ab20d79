package device

import (
	"strings"
	"unicode/utf8"
)

// DisplayPrefixLength is the length of the short device id shown in UIs and
// accepted by ban commands.
const DisplayPrefixLength = 8

// Matches reports whether the queried id refers to the same device as stored.
//
// Ids may be a full client hash or its 8 character display prefix, so the check is
// case-insensitive and asymmetric: equal, or stored starts with queried, or
// queried starts with the first 8 characters of stored. Short queries match many
// hashes; callers treat that as a known false-positive risk.
func Matches(queried, stored string) bool {
	if queried == "" || stored == "" {
		return false
	}
	q := strings.ToUpper(queried)
	s := strings.ToUpper(stored)

	if q == s || strings.HasPrefix(s, q) {
		return true
	}
	return strings.HasPrefix(q, displayPrefix(s))
}

// displayPrefix cuts id to its first 8 characters.
func displayPrefix(id string) string {
	if utf8.RuneCountInString(id) <= DisplayPrefixLength {
		return id
	}
	n := 0
	for i := range id {
		if n == DisplayPrefixLength {
			return id[:i]
		}
		n++
	}
	return id
}

// AnyMatch reports whether queried matches any stored id.
func AnyMatch(queried string, stored []string) bool {
	for _, s := range stored {
		if Matches(queried, s) {
			return true
		}
	}
	return false
}

// SameEntry is the duplicate rule of the ban registry: exact, case-insensitive.
func SameEntry(a, b string) bool {
	return strings.EqualFold(a, b)
}
