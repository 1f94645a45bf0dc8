// Package store provides the key-value persistence behind the dashboard's
// column settings, overlay maps and authentication flag.
package store

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
)

// Fixed keys for dashboard state. Each value is a JSON document.
const (
	KeyColumnSettings = "column_settings"
	KeyVerified       = "verified_values"
	KeyEdited         = "edited_values"
	KeyAuth           = "auth_state"
)

// ErrDecode marks a stored value that is not valid JSON for its target.
var ErrDecode = eris.New("store: malformed value")

// Store defines the key-value persistence interface.
type Store interface {
	// Get returns the value for key, or nil when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Clear removes every key.
	Clear(ctx context.Context) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// GetJSON decodes the value under key into out. It reports false when the
// key is absent.
func GetJSON(ctx context.Context, s Store, key string, out any) (bool, error) {
	data, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, eris.Wrapf(ErrDecode, "store: decode %s: %v", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "store: encode %s", key)
	}
	return s.Set(ctx, key, data)
}

// Open creates a store for the given driver and runs its migration.
// Supported drivers are "memory", "sqlite" and "postgres".
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var (
		s   Store
		err error
	)
	switch driver {
	case "", "memory":
		s = NewMemory()
	case "sqlite":
		if dsn == "" {
			dsn = "dashboard.db"
		}
		s, err = NewSQLite(dsn)
	case "postgres":
		if dsn == "" {
			return nil, eris.New("store: postgres requires database_url")
		}
		s, err = NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}
