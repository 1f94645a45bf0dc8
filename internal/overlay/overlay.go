// Package overlay layers manual overrides and verification flags over source
// company values. Both maps are keyed by (company_name, field) and written
// through to the store after every mutation.
package overlay

import (
	"context"
	"maps"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/diligence-dashboard/internal/store"
)

// Overrides maps company name to field to replacement text.
type Overrides map[string]map[string]string

// Verified maps company name to field to a reviewer flag.
type Verified map[string]map[string]bool

// Overlay holds the override and verification maps.
type Overlay struct {
	mu        sync.RWMutex
	store     store.Store
	overrides Overrides
	verified  Verified
}

// New creates an empty Overlay backed by s. Call Load to read persisted state.
func New(s store.Store) *Overlay {
	return &Overlay{
		store:     s,
		overrides: Overrides{},
		verified:  Verified{},
	}
}

// Load replaces the in-memory maps with the persisted ones. A key that fails
// to decode is logged and treated as empty.
func (o *Overlay) Load(ctx context.Context) error {
	overrides := Overrides{}
	verified := Verified{}

	if _, err := store.GetJSON(ctx, o.store, store.KeyEdited, &overrides); err != nil {
		if !isDecode(err) {
			return eris.Wrap(err, "overlay: load overrides")
		}
		zap.L().Warn("overlay: discarding unreadable overrides", zap.Error(err))
		overrides = Overrides{}
	}
	if _, err := store.GetJSON(ctx, o.store, store.KeyVerified, &verified); err != nil {
		if !isDecode(err) {
			return eris.Wrap(err, "overlay: load verified")
		}
		zap.L().Warn("overlay: discarding unreadable verification flags", zap.Error(err))
		verified = Verified{}
	}

	o.mu.Lock()
	o.overrides = prune(overrides)
	o.verified = pruneVerified(verified)
	o.mu.Unlock()
	return nil
}

// Override returns the override for (company, field) if one exists.
func (o *Overlay) Override(company, field string) (string, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.overrides[company][field]
	return v, ok
}

// IsVerified reports the verification flag for (company, field).
func (o *Overlay) IsVerified(company, field string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.verified[company][field]
}

// SetOverride stores value as the displayed text for (company, field).
func (o *Overlay) SetOverride(ctx context.Context, company, field, value string) error {
	if company == "" || field == "" {
		return eris.New("overlay: company and field are required")
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	next := o.overrides.clone()
	fields, ok := next[company]
	if !ok {
		fields = map[string]string{}
		next[company] = fields
	}
	fields[field] = value
	return o.commitOverrides(ctx, next)
}

// ClearOverride reverts (company, field) to its source value. The company's
// entry is removed once it holds no overrides.
func (o *Overlay) ClearOverride(ctx context.Context, company, field string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.overrides[company][field]; !ok {
		return nil
	}
	next := o.overrides.clone()
	delete(next[company], field)
	if len(next[company]) == 0 {
		delete(next, company)
	}
	return o.commitOverrides(ctx, next)
}

// ToggleVerified flips the flag for (company, field) and returns the new value.
func (o *Overlay) ToggleVerified(ctx context.Context, company, field string) (bool, error) {
	if company == "" || field == "" {
		return false, eris.New("overlay: company and field are required")
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	was := o.verified[company][field]
	next := o.verified.clone()
	if was {
		delete(next[company], field)
		if len(next[company]) == 0 {
			delete(next, company)
		}
	} else {
		fields, ok := next[company]
		if !ok {
			fields = map[string]bool{}
			next[company] = fields
		}
		fields[field] = true
	}
	if err := o.commitVerified(ctx, next); err != nil {
		return was, err
	}
	return !was, nil
}

// ClearAll drops every override and verification flag.
func (o *Overlay) ClearAll(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.commitOverrides(ctx, Overrides{}); err != nil {
		return err
	}
	return o.commitVerified(ctx, Verified{})
}

// Overrides returns a deep copy of the override map.
func (o *Overlay) Overrides() Overrides {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.overrides.clone()
}

// Verified returns a deep copy of the verification map.
func (o *Overlay) Verified() Verified {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.verified.clone()
}

// commitOverrides persists next and only then makes it current, so a failed
// write leaves the previous state visible.
func (o *Overlay) commitOverrides(ctx context.Context, next Overrides) error {
	if err := store.SetJSON(ctx, o.store, store.KeyEdited, next); err != nil {
		return eris.Wrap(err, "overlay: persist overrides")
	}
	o.overrides = next
	return nil
}

func (o *Overlay) commitVerified(ctx context.Context, next Verified) error {
	if err := store.SetJSON(ctx, o.store, store.KeyVerified, next); err != nil {
		return eris.Wrap(err, "overlay: persist verified")
	}
	o.verified = next
	return nil
}

func (m Overrides) clone() Overrides {
	out := make(Overrides, len(m))
	for company, fields := range m {
		out[company] = maps.Clone(fields)
	}
	return out
}

func (m Verified) clone() Verified {
	out := make(Verified, len(m))
	for company, fields := range m {
		out[company] = maps.Clone(fields)
	}
	return out
}

func isDecode(err error) bool {
	return eris.Is(err, store.ErrDecode)
}

func prune(m Overrides) Overrides {
	for company, fields := range m {
		if len(fields) == 0 {
			delete(m, company)
		}
	}
	return m
}

func pruneVerified(m Verified) Verified {
	for company, fields := range m {
		for field, ok := range fields {
			if !ok {
				delete(fields, field)
			}
		}
		if len(fields) == 0 {
			delete(m, company)
		}
	}
	return m
}
