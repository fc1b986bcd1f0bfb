package interfaces

import "context"

// SettingsProvider supplies externally stored settings with defaults.
// A snapshot may be briefly stale, but every value in one snapshot comes from
// the same read of the store.
type SettingsProvider interface {
	// Snapshot returns the effective value of every known setting. Keys with
	// neither a stored override nor a configured default are absent.
	Snapshot(ctx context.Context) (map[string]string, error)
}
