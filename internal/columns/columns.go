// Package columns manages the ordered, toggleable column configuration.
// The embedded default list is the only source of which columns exist;
// saved settings can change visibility and order, nothing else.
package columns

import (
	_ "embed"
	"slices"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/diligence-dashboard/internal/model"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Errors returned by Config commands.
var (
	ErrUnknownColumn = eris.New("columns: unknown column")
	ErrOutOfRange    = eris.New("columns: position out of range")
)

type defaultsDoc struct {
	Version int                `yaml:"version"`
	Columns []model.ColumnSpec `yaml:"columns"`
}

var loadDefaults = sync.OnceValues(func() (defaultsDoc, error) {
	return parseDefaults(defaultsYAML)
})

func parseDefaults(data []byte) (defaultsDoc, error) {
	var doc defaultsDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return defaultsDoc{}, eris.Wrap(err, "columns: parse defaults")
	}
	seen := make(map[string]bool, len(doc.Columns))
	for i := range doc.Columns {
		key := doc.Columns[i].Key
		if key == "" || seen[key] {
			return defaultsDoc{}, eris.Errorf("columns: invalid or duplicate key %q", key)
		}
		seen[key] = true
		doc.Columns[i].Order = i
	}
	return doc, nil
}

// Version returns the schema version of the embedded defaults.
func Version() int {
	doc, err := loadDefaults()
	if err != nil {
		return 0
	}
	return doc.Version
}

// Defaults returns a fresh copy of the default column list.
func Defaults() []model.ColumnSpec {
	doc, err := loadDefaults()
	if err != nil {
		// The file is embedded at build time; a parse failure is a build defect.
		panic(err)
	}
	return slices.Clone(doc.Columns)
}

// SavedColumn is the persisted per-column user state.
type SavedColumn struct {
	Key     string `json:"key"`
	Visible bool   `json:"visible"`
	Order   int    `json:"order"`
}

// Saved is the persisted column settings document.
type Saved struct {
	Version int           `json:"version"`
	Columns []SavedColumn `json:"columns"`
}

// Config is the working column list, always ordered by Order.
type Config struct {
	columns []model.ColumnSpec
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{columns: Defaults()}
}

// Restore applies saved settings on top of the defaults. Settings written
// under a different schema version are discarded entirely. Keys unknown to
// the defaults are dropped and defaults absent from saved are appended in
// default order.
func (c *Config) Restore(saved Saved) {
	defaults := Defaults()
	if saved.Version != Version() {
		if len(saved.Columns) > 0 {
			zap.L().Info("columns: discarding settings from another schema version",
				zap.Int("saved_version", saved.Version),
				zap.Int("current_version", Version()),
			)
		}
		c.columns = defaults
		return
	}

	byKey := make(map[string]model.ColumnSpec, len(defaults))
	for _, col := range defaults {
		byKey[col.Key] = col
	}

	ordered := slices.Clone(saved.Columns)
	slices.SortStableFunc(ordered, func(a, b SavedColumn) int { return a.Order - b.Order })

	result := make([]model.ColumnSpec, 0, len(defaults))
	used := make(map[string]bool, len(defaults))
	for _, s := range ordered {
		col, ok := byKey[s.Key]
		if !ok || used[s.Key] {
			continue
		}
		col.Visible = s.Visible
		result = append(result, col)
		used[s.Key] = true
	}
	for _, col := range defaults {
		if !used[col.Key] {
			result = append(result, col)
		}
	}

	c.columns = result
	c.renumber()
}

// Saved returns the persistable form of the current configuration.
func (c *Config) Saved() Saved {
	out := Saved{Version: Version(), Columns: make([]SavedColumn, len(c.columns))}
	for i, col := range c.columns {
		out.Columns[i] = SavedColumn{Key: col.Key, Visible: col.Visible, Order: col.Order}
	}
	return out
}

// Columns returns every column in order.
func (c *Config) Columns() []model.ColumnSpec {
	return slices.Clone(c.columns)
}

// Visible returns the visible columns in order.
func (c *Config) Visible() []model.ColumnSpec {
	out := make([]model.ColumnSpec, 0, len(c.columns))
	for _, col := range c.columns {
		if col.Visible {
			out = append(out, col)
		}
	}
	return out
}

// Lookup returns the column with key.
func (c *Config) Lookup(key string) (model.ColumnSpec, bool) {
	i := c.index(key)
	if i < 0 {
		return model.ColumnSpec{}, false
	}
	return c.columns[i], true
}

// Toggle flips the visibility of one column. Order is unchanged.
func (c *Config) Toggle(key string) error {
	i := c.index(key)
	if i < 0 {
		return eris.Wrapf(ErrUnknownColumn, "columns: toggle %q", key)
	}
	c.columns[i].Visible = !c.columns[i].Visible
	return nil
}

// Move relocates the column at position from to position to, shifting the
// columns between them, then renumbers every column densely.
func (c *Config) Move(from, to int) error {
	n := len(c.columns)
	if from < 0 || from >= n || to < 0 || to >= n {
		return eris.Wrapf(ErrOutOfRange, "columns: move %d -> %d (have %d)", from, to, n)
	}
	if from == to {
		return nil
	}
	col := c.columns[from]
	c.columns = slices.Delete(c.columns, from, from+1)
	c.columns = slices.Insert(c.columns, to, col)
	c.renumber()
	return nil
}

// Reset restores the default visibility and order.
func (c *Config) Reset() {
	c.columns = Defaults()
}

func (c *Config) renumber() {
	for i := range c.columns {
		c.columns[i].Order = i
	}
}

func (c *Config) index(key string) int {
	return slices.IndexFunc(c.columns, func(col model.ColumnSpec) bool { return col.Key == key })
}
