package output

import "context"

// Keys of the persisted records.
const (
	StateKeySettings = "settings"
	StateKeyRegions  = "regions"
	StateKeyTiles    = "tiles"
)

// StateStore defines the secondary port for persisted state. Values are
// opaque structured blobs (versioned JSON); the store itself is a plain
// string key-value table.
type StateStore interface {
	// Get returns the value for a key. The second return value reports
	// whether the key was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores the value for a key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes a key. Deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error

	// Close releases the underlying store.
	Close() error
}
