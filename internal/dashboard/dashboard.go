// Package dashboard composes ingestion, the filter/sort view, column
// configuration and the edit/verify overlay into one view-model. Every
// command runs to completion under a single lock and returns the new State.
package dashboard

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/diligence-dashboard/internal/columns"
	"github.com/sells-group/diligence-dashboard/internal/export"
	"github.com/sells-group/diligence-dashboard/internal/fetcher"
	"github.com/sells-group/diligence-dashboard/internal/ingest"
	"github.com/sells-group/diligence-dashboard/internal/model"
	"github.com/sells-group/diligence-dashboard/internal/overlay"
	"github.com/sells-group/diligence-dashboard/internal/store"
	"github.com/sells-group/diligence-dashboard/internal/table"
)

// Errors returned by commands given bad input.
var (
	ErrUnknownColumn  = eris.New("dashboard: unknown column")
	ErrUnknownCompany = eris.New("dashboard: unknown company")
	ErrNotEditable    = eris.New("dashboard: field is not editable")
)

// Options configures a Dashboard.
type Options struct {
	// Source is the CSV location passed to Opener.
	Source    string
	Opener    fetcher.Opener
	Store     store.Store
	Delimiter rune
}

// Dashboard is the view-model behind the table UI.
type Dashboard struct {
	mu sync.Mutex

	source    string
	opener    fetcher.Opener
	delimiter rune
	store     store.Store

	records []model.CompanyRecord
	loaded  bool

	view    *table.View
	columns *columns.Config
	overlay *overlay.Overlay
}

// New creates a Dashboard and restores persisted column settings and overlay
// maps from the store. Records are not loaded until Reload.
func New(ctx context.Context, opts Options) (*Dashboard, error) {
	if opts.Store == nil {
		return nil, eris.New("dashboard: store is required")
	}
	if opts.Opener == nil {
		opts.Opener = fetcher.NewSource()
	}

	d := &Dashboard{
		source:    opts.Source,
		opener:    opts.Opener,
		delimiter: opts.Delimiter,
		store:     opts.Store,
		records:   []model.CompanyRecord{},
		view:      table.NewView(),
		columns:   columns.New(),
		overlay:   overlay.New(opts.Store),
	}

	var saved columns.Saved
	found, err := store.GetJSON(ctx, opts.Store, store.KeyColumnSettings, &saved)
	switch {
	case err != nil && eris.Is(err, store.ErrDecode):
		zap.L().Warn("dashboard: ignoring unreadable column settings", zap.Error(err))
	case err != nil:
		return nil, eris.Wrap(err, "dashboard: load column settings")
	case found:
		d.columns.Restore(saved)
	}

	if err := d.overlay.Load(ctx); err != nil {
		return nil, eris.Wrap(err, "dashboard: load overlay")
	}
	return d, nil
}

// Reload fetches the source and replaces the record set wholesale. A failed
// fetch leaves an empty, loaded table. Filters, sort, columns and overlay
// state are kept.
func (d *Dashboard) Reload(ctx context.Context) State {
	var opts []ingest.Option
	if d.delimiter != 0 {
		opts = append(opts, ingest.WithDelimiter(d.delimiter))
	}
	return d.SetRecords(ingest.Load(ctx, d.opener, d.source, opts...))
}

// SetRecords replaces the record set without fetching. A nil set loads an
// empty table.
func (d *Dashboard) SetRecords(records []model.CompanyRecord) State {
	d.mu.Lock()
	defer d.mu.Unlock()
	if records == nil {
		records = []model.CompanyRecord{}
	}
	d.records = records
	d.loaded = true
	return d.stateLocked()
}

// State returns the current snapshot.
func (d *Dashboard) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stateLocked()
}

// ApplyFilter sets the text filter for column. Empty text removes it.
func (d *Dashboard) ApplyFilter(column, text string) (State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireColumn(column); err != nil {
		return State{}, err
	}
	d.view.ApplyFilter(column, text)
	return d.stateLocked(), nil
}

// ClearFilters removes every filter.
func (d *Dashboard) ClearFilters() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.view.ClearFilters()
	return d.stateLocked()
}

// SetSort makes column the active sort column.
func (d *Dashboard) SetSort(column string, dir table.Direction) (State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireColumn(column); err != nil {
		return State{}, err
	}
	d.view.SetSort(column, dir)
	return d.stateLocked(), nil
}

// ToggleSort sorts ascending by a new column or flips the active direction.
func (d *Dashboard) ToggleSort(column string) (State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireColumn(column); err != nil {
		return State{}, err
	}
	d.view.ToggleSort(column)
	return d.stateLocked(), nil
}

// ClearSort restores source order.
func (d *Dashboard) ClearSort() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.view.ClearSort()
	return d.stateLocked()
}

// SetOverride replaces the displayed value of an editable field.
func (d *Dashboard) SetOverride(ctx context.Context, company, field, value string) (State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireCell(company, field, true); err != nil {
		return State{}, err
	}
	if err := d.overlay.SetOverride(ctx, company, field, value); err != nil {
		return State{}, err
	}
	return d.stateLocked(), nil
}

// BeginEdit opens an editor draft for an editable cell, seeded with the
// displayed value.
func (d *Dashboard) BeginEdit(company, field string) (*overlay.Draft, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireCell(company, field, true); err != nil {
		return nil, err
	}
	return overlay.Begin(company, field, d.displayed(company, field)), nil
}

// CommitEdit saves an editor draft. A draft whose text matches the displayed
// value leaves the overlay untouched, so committing an unedited cell never
// creates an override.
func (d *Dashboard) CommitEdit(ctx context.Context, draft *overlay.Draft) (State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireCell(draft.Company, draft.Field, true); err != nil {
		return State{}, err
	}
	if err := d.overlay.Commit(ctx, draft, d.displayed(draft.Company, draft.Field)); err != nil {
		return State{}, err
	}
	return d.stateLocked(), nil
}

// ClearOverride reverts a field to its source value.
func (d *Dashboard) ClearOverride(ctx context.Context, company, field string) (State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.overlay.ClearOverride(ctx, company, field); err != nil {
		return State{}, err
	}
	return d.stateLocked(), nil
}

// ToggleVerified flips the reviewer flag on a field.
func (d *Dashboard) ToggleVerified(ctx context.Context, company, field string) (State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireCell(company, field, false); err != nil {
		return State{}, err
	}
	if _, err := d.overlay.ToggleVerified(ctx, company, field); err != nil {
		return State{}, err
	}
	return d.stateLocked(), nil
}

// ClearOverlay drops every override and verification flag.
func (d *Dashboard) ClearOverlay(ctx context.Context) (State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.overlay.ClearAll(ctx); err != nil {
		return State{}, err
	}
	return d.stateLocked(), nil
}

// ToggleColumn flips a column's visibility and persists the settings.
func (d *Dashboard) ToggleColumn(ctx context.Context, key string) (State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.columns.Toggle(key); err != nil {
		return State{}, eris.Wrapf(ErrUnknownColumn, "dashboard: toggle %q", key)
	}
	if err := d.saveColumns(ctx); err != nil {
		return State{}, err
	}
	return d.stateLocked(), nil
}

// MoveColumn reorders columns by position and persists the settings.
func (d *Dashboard) MoveColumn(ctx context.Context, from, to int) (State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.columns.Move(from, to); err != nil {
		return State{}, err
	}
	if err := d.saveColumns(ctx); err != nil {
		return State{}, err
	}
	return d.stateLocked(), nil
}

// ResetColumns restores the default column list and persists it.
func (d *Dashboard) ResetColumns(ctx context.Context) (State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.columns.Reset()
	if err := d.saveColumns(ctx); err != nil {
		return State{}, err
	}
	return d.stateLocked(), nil
}

// Columns returns the full column list in order.
func (d *Dashboard) Columns() []model.ColumnSpec {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.columns.Columns()
}

// Export flattens the currently visible rows with overrides applied.
// Verification flags are not exported.
func (d *Dashboard) Export() export.Sheet {
	d.mu.Lock()
	defer d.mu.Unlock()
	return export.Build(d.visibleRecords(), d.lookup)
}

func (d *Dashboard) saveColumns(ctx context.Context) error {
	if err := store.SetJSON(ctx, d.store, store.KeyColumnSettings, d.columns.Saved()); err != nil {
		return eris.Wrap(err, "dashboard: save column settings")
	}
	return nil
}

// lookup resolves displayed values: the override when one exists, otherwise
// the source value.
func (d *Dashboard) lookup(rec model.CompanyRecord, key string) model.Value {
	if v, ok := d.overlay.Override(rec.CompanyName, key); ok {
		return model.Text(v)
	}
	return rec.Field(key)
}

func (d *Dashboard) visibleRecords() []model.CompanyRecord {
	return d.view.Compute(d.records, d.lookup)
}

func (d *Dashboard) requireColumn(key string) error {
	if _, ok := d.columns.Lookup(key); !ok {
		return eris.Wrapf(ErrUnknownColumn, "dashboard: column %q", key)
	}
	return nil
}

func (d *Dashboard) requireCell(company, field string, edit bool) error {
	col, ok := d.columns.Lookup(field)
	if !ok {
		return eris.Wrapf(ErrUnknownColumn, "dashboard: column %q", field)
	}
	if edit && !col.Editable() {
		return eris.Wrapf(ErrNotEditable, "dashboard: column %q", field)
	}
	if _, ok := d.record(company); !ok {
		return eris.Wrapf(ErrUnknownCompany, "dashboard: company %q", company)
	}
	return nil
}

func (d *Dashboard) record(company string) (model.CompanyRecord, bool) {
	for _, rec := range d.records {
		if rec.CompanyName == company {
			return rec, true
		}
	}
	return model.CompanyRecord{}, false
}

// displayed is the cell text the editor starts from.
func (d *Dashboard) displayed(company, field string) string {
	rec, ok := d.record(company)
	if !ok {
		return ""
	}
	return d.lookup(rec, field).String()
}
