package company

import (
	"context"
	"slices"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/diligence-dashboard/internal/fetcher"
)

// Establishment filter columns beyond the shared ones.
const (
	ColState             = "state"
	ColEstablishmentType = "establishment_type"
	ColSize              = "size"
	ColMatchCompanyName  = "match_company_name"
	ColMultipleMatch     = "company_name_multiple_match"
)

// FilterColumns is the column order of FilterEstablishments output.
var FilterColumns = []string{
	ColCompanyName, ColState, ColEstablishmentType, ColSize, ColEmployees, ColHours,
	ColEIN, ColWebsite, ColMatchCompanyName, ColStrippedCompanyName, ColMultipleMatch,
}

// FilterMode picks which side drives FilterEstablishments output.
type FilterMode string

// Filter modes.
const (
	// FromInput emits one row per matched OSHA company.
	FromInput FilterMode = "input"
	// FromFilter emits one row per filter company, blank when unmatched.
	FromFilter FilterMode = "filter"
)

// ErrFilterMode is returned for an unknown FilterMode.
var ErrFilterMode = eris.New("company: filter mode must be input or filter")

// ErrEmptyFilter is returned when the filter list names no companies.
var ErrEmptyFilter = eris.New("company: no companies found in filter list")

// FilterEntry is one company in a filter list.
type FilterEntry struct {
	CompanyName string
	State       string
	Website     string
}

// ParseFilterMode validates a mode name.
func ParseFilterMode(s string) (FilterMode, error) {
	switch m := FilterMode(strings.ToLower(strings.TrimSpace(s))); m {
	case FromInput, FromFilter:
		return m, nil
	case "":
		return FromInput, nil
	default:
		return "", eris.Wrapf(ErrFilterMode, "company: mode %q", s)
	}
}

// establishments accumulates the OSHA rows sharing one normalized name.
type establishments struct {
	first     []string
	names     []string
	types     map[string]bool
	eins      map[string]bool
	size      int64
	employees int64
	hours     int64
}

func (e *establishments) add(tbl *fetcher.Table, rec []string, name string) {
	if e.first == nil {
		e.first = rec
	}
	if !slices.Contains(e.names, name) {
		e.names = append(e.names, name)
	}
	e.size += parseCount(tbl.Get(rec, ColSize))
	e.employees += parseCount(tbl.Get(rec, ColEmployees))
	e.hours += parseCount(tbl.Get(rec, ColHours))
	if v := strings.TrimSpace(tbl.Get(rec, ColEIN)); v != "" {
		e.eins[v] = true
	}
	if v := strings.TrimSpace(tbl.Get(rec, ColEstablishmentType)); v != "" {
		e.types[v] = true
	}
}

func joinSorted(set map[string]bool) string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	slices.Sort(out)
	return strings.Join(out, ", ")
}

func quoteNames(names []string) string {
	q := make([]string, len(names))
	for i, n := range names {
		q[i] = "'" + n + "'"
	}
	return strings.Join(q, ", ")
}

// FilterEstablishments narrows establishment-level OSHA rows to the
// companies of a filter list, matched by normalized name, and sums each
// matched company's establishments into one row.
//
// In FromInput mode the OSHA spelling and state are kept and
// match_company_name lists the filter spellings. In FromFilter mode every
// filter company gets a row carrying its own name and state, with blank
// OSHA columns when nothing matched.
func FilterEstablishments(tbl *fetcher.Table, filter []FilterEntry, mode FilterMode) (*Result, error) {
	if mode != FromInput && mode != FromFilter {
		return nil, eris.Wrapf(ErrFilterMode, "company: mode %q", mode)
	}

	var names []string
	websites := map[string]string{}
	for _, f := range filter {
		if f.CompanyName == "" {
			continue
		}
		names = append(names, f.CompanyName)
		key := NormalizeName(f.CompanyName)
		if _, ok := websites[key]; !ok && f.Website != "" {
			websites[key] = f.Website
		}
	}
	matcher := NewMatcher(names)
	if matcher.Len() == 0 {
		return nil, ErrEmptyFilter
	}

	matched := map[string]*establishments{}
	matchedRows := 0
	for _, rec := range tbl.Rows {
		name := strings.TrimSpace(tbl.Get(rec, ColCompanyName))
		if name == "" || len(matcher.Match(name)) == 0 {
			continue
		}
		matchedRows++
		key := NormalizeName(name)
		e, ok := matched[key]
		if !ok {
			e = &establishments{types: map[string]bool{}, eins: map[string]bool{}}
			matched[key] = e
		}
		e.add(tbl, rec, name)
	}

	out := &Result{Columns: slices.Clone(FilterColumns)}
	switch mode {
	case FromInput:
		keys := make([]string, 0, len(matched))
		for k := range matched {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, key := range keys {
			e := matched[key]
			spellings := matcher.Match(e.names[0])
			row := e.row(key)
			row[ColCompanyName] = strings.TrimSpace(tbl.Get(e.first, ColCompanyName))
			row[ColState] = tbl.Get(e.first, ColState)
			row[ColMatchCompanyName] = quoteNames(spellings)
			row[ColMultipleMatch] = strconv.FormatBool(len(spellings) > 1)
			row[ColWebsite] = websites[key]
			out.Rows = append(out.Rows, row)
		}
	case FromFilter:
		for _, f := range filter {
			if f.CompanyName == "" {
				continue
			}
			key := NormalizeName(f.CompanyName)
			row := blankFilterRow(key)
			if e, ok := matched[key]; ok {
				row = e.row(key)
				row[ColMatchCompanyName] = quoteNames(e.names[:1])
				row[ColMultipleMatch] = strconv.FormatBool(len(e.names) > 1)
			}
			row[ColCompanyName] = f.CompanyName
			row[ColState] = f.State
			row[ColWebsite] = websites[key]
			out.Rows = append(out.Rows, row)
		}
	}

	zap.L().Info("company: filtered osha establishments",
		zap.String("mode", string(mode)),
		zap.Int("rows", len(tbl.Rows)),
		zap.Int("filter_companies", matcher.Len()),
		zap.Int("matched_rows", matchedRows),
		zap.Int("matched_companies", len(matched)),
		zap.Int("output", len(out.Rows)),
	)
	return out, nil
}

func (e *establishments) row(key string) Row {
	return Row{
		ColEstablishmentType:   joinSorted(e.types),
		ColSize:                strconv.FormatInt(e.size, 10),
		ColEmployees:           strconv.FormatInt(e.employees, 10),
		ColHours:               strconv.FormatInt(e.hours, 10),
		ColEIN:                 joinSorted(e.eins),
		ColStrippedCompanyName: key,
	}
}

func blankFilterRow(key string) Row {
	row := make(Row, len(FilterColumns))
	for _, c := range FilterColumns {
		row[c] = ""
	}
	row[ColStrippedCompanyName] = key
	row[ColMultipleMatch] = "false"
	return row
}

// LoadFilter reads a filter list with company_name and optional state and
// website columns. Rows without a company name are skipped.
func LoadFilter(ctx context.Context, path string) ([]FilterEntry, error) {
	tbl, err := ReadTable(ctx, path)
	if err != nil {
		return nil, err
	}
	var out []FilterEntry
	for _, rec := range tbl.Rows {
		name := strings.TrimSpace(tbl.Get(rec, ColCompanyName))
		if name == "" {
			continue
		}
		out = append(out, FilterEntry{
			CompanyName: name,
			State:       strings.TrimSpace(tbl.Get(rec, ColState)),
			Website:     strings.TrimSpace(tbl.Get(rec, ColWebsite)),
		})
	}
	zap.L().Info("company: loaded filter list",
		zap.String("path", path),
		zap.Int("rows", len(tbl.Rows)),
		zap.Int("companies", len(out)),
	)
	return out, nil
}
