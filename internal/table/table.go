// Package table implements the filter/sort view over the in-memory record
// set: per-column substring filters and a single active sort column.
package table

import (
	"maps"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/sells-group/diligence-dashboard/internal/model"
)

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Valid reports whether d is Asc or Desc.
func (d Direction) Valid() bool {
	return d == Asc || d == Desc
}

// Sort is the active sort column and direction. An empty Column keeps
// source order.
type Sort struct {
	Column    string    `json:"column"`
	Direction Direction `json:"direction"`
}

// Lookup resolves the displayed value of a column for a record.
type Lookup func(rec model.CompanyRecord, key string) model.Value

// SourceLookup reads values straight from the record.
func SourceLookup(rec model.CompanyRecord, key string) model.Value {
	return rec.Field(key)
}

// View holds filter and sort state. It is not safe for concurrent use.
type View struct {
	filters map[string]string
	sort    Sort
}

// NewView creates a view with no filters and no sort.
func NewView() *View {
	return &View{filters: make(map[string]string)}
}

// ApplyFilter sets the filter text for a column. Empty text removes it.
func (v *View) ApplyFilter(column, text string) {
	if text == "" {
		delete(v.filters, column)
		return
	}
	v.filters[column] = text
}

// ClearFilters removes every column filter.
func (v *View) ClearFilters() {
	clear(v.filters)
}

// Filters returns a copy of the active filters.
func (v *View) Filters() map[string]string {
	return maps.Clone(v.filters)
}

// SetSort makes column the single active sort column.
func (v *View) SetSort(column string, dir Direction) {
	if !dir.Valid() {
		dir = Asc
	}
	v.sort = Sort{Column: column, Direction: dir}
}

// ToggleSort flips the direction when column is already active, otherwise
// sorts ascending on column.
func (v *View) ToggleSort(column string) {
	if v.sort.Column == column && v.sort.Direction == Asc {
		v.sort.Direction = Desc
		return
	}
	v.sort = Sort{Column: column, Direction: Asc}
}

// ClearSort restores source order.
func (v *View) ClearSort() {
	v.sort = Sort{}
}

// Sort returns the active sort.
func (v *View) Sort() Sort {
	return v.sort
}

// Compute returns the records passing every filter, ordered by the active
// sort. The input slice is not modified.
func (v *View) Compute(records []model.CompanyRecord, lookup Lookup) []model.CompanyRecord {
	if lookup == nil {
		lookup = SourceLookup
	}

	out := make([]model.CompanyRecord, 0, len(records))
	for _, rec := range records {
		if v.matchesAll(rec, lookup) {
			out = append(out, rec)
		}
	}

	if v.sort.Column == "" {
		return out
	}

	col := v.sort.Column
	cmp := NewComparator()
	slices.SortStableFunc(out, func(a, b model.CompanyRecord) int {
		c := cmp.Compare(lookup(a, col), lookup(b, col))
		if v.sort.Direction == Desc {
			return -c
		}
		return c
	})
	return out
}

func (v *View) matchesAll(rec model.CompanyRecord, lookup Lookup) bool {
	for col, text := range v.filters {
		if !Matches(lookup(rec, col), text) {
			return false
		}
	}
	return true
}

// Matches reports whether value contains text, ignoring case. List values
// match when any element does.
func Matches(value model.Value, text string) bool {
	needle := strings.ToLower(text)
	if value.IsList {
		for _, item := range value.List {
			if strings.Contains(strings.ToLower(item), needle) {
				return true
			}
		}
		return false
	}
	return strings.Contains(strings.ToLower(value.Text), needle)
}

// Comparator orders values with locale-aware, numeric-aware collation so
// "2" sorts before "10". A Comparator is not safe for concurrent use.
type Comparator struct {
	col *collate.Collator
}

// NewComparator creates a Comparator.
func NewComparator() *Comparator {
	return &Comparator{col: collate.New(language.English, collate.Numeric, collate.IgnoreCase)}
}

// Compare returns -1, 0 or 1. List values are compared by their joined form.
func (c *Comparator) Compare(a, b model.Value) int {
	return c.col.CompareString(a.String(), b.String())
}
