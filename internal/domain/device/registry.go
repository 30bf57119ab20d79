package device

import (
	"context"
)

// Registry persists the set of banned device identifiers.
type Registry interface {
	// Add stores deviceID unless an entry equal to it ignoring case exists.
	Add(ctx context.Context, deviceID string) (added bool, err error)
	// RemoveMatching deletes every entry that Matches(deviceID, entry) and
	// returns the removed identifiers.
	RemoveMatching(ctx context.Context, deviceID string) ([]string, error)
	List(ctx context.Context) ([]*BanEntry, error)
}
