package company

import (
	"context"
	"encoding/csv"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/diligence-dashboard/internal/fetcher"
)

// OutputDelimiter separates fields in aggregate output.
const OutputDelimiter = '|'

// ErrNoLists is returned when neither added nor combine lists were given.
var ErrNoLists = eris.New("company: at least one added or combine list is required")

// ListEntry is one company from an added or combine list.
type ListEntry struct {
	CompanyName string
	Website     string
}

// List is a company list named by its file's base name without extension.
type List struct {
	Prefix  string
	Entries []ListEntry
}

func (l List) nameColumn() string    { return l.Prefix + "_" + ColCompanyName }
func (l List) websiteColumn() string { return l.Prefix + "_" + ColWebsite }

func (l List) hasWebsite() bool {
	return slices.ContainsFunc(l.Entries, func(e ListEntry) bool { return e.Website != "" })
}

// Result is the merged table.
type Result struct {
	Columns []string
	Rows    []Row
}

// Stats summarizes where the output rows came from.
type Stats struct {
	FromOSHA  int
	FromLists int
}

// Stats counts rows with and without an OSHA match.
func (r *Result) Stats() Stats {
	var s Stats
	for _, row := range r.Rows {
		if row[ColOSHACompanyName] != "" {
			s.FromOSHA++
		} else {
			s.FromLists++
		}
	}
	return s
}

// Aggregate merges the OSHA data with the company lists. Added lists update
// rows whose normalized name matches an OSHA company and create rows for the
// rest; combine lists only update matched rows.
func Aggregate(osha *OSHAData, added, combine []List) (*Result, error) {
	if len(added) == 0 && len(combine) == 0 {
		return nil, ErrNoLists
	}
	if osha == nil {
		osha = &OSHAData{Rows: map[string]Row{}}
	}

	all := append(slices.Clone(added), combine...)
	var dynamic []string
	websiteCols := map[string]bool{}
	for _, l := range all {
		if l.hasWebsite() {
			websiteCols[l.websiteColumn()] = true
			dynamic = append(dynamic, l.websiteColumn())
		}
	}
	for _, l := range all {
		dynamic = append(dynamic, l.nameColumn())
	}

	rows := make(map[string]Row, len(osha.Rows))
	for key, src := range osha.Rows {
		row := make(Row, len(src)+len(dynamic)+1)
		for k, v := range src {
			row[k] = v
		}
		row[ColCompanyName] = ""
		for _, c := range dynamic {
			row[c] = ""
		}
		rows[key] = row
	}

	set := func(row Row, l List, e ListEntry) {
		row[l.nameColumn()] = e.CompanyName
		if e.Website != "" && websiteCols[l.websiteColumn()] {
			row[l.websiteColumn()] = e.Website
		}
	}

	for _, l := range added {
		matched, created := 0, 0
		for _, e := range l.Entries {
			key := NormalizeName(e.CompanyName)
			if key == "" {
				continue
			}
			if _, ok := osha.Rows[key]; ok {
				matched++
				set(rows[key], l, e)
				continue
			}
			created++
			row, ok := rows[key]
			if !ok {
				row = newListRow(key, osha.Columns, dynamic)
				rows[key] = row
			}
			set(row, l, e)
		}
		zap.L().Info("company: merged added list",
			zap.String("list", l.Prefix),
			zap.Int("matched", matched),
			zap.Int("new", created),
		)
	}

	for _, l := range combine {
		matched := 0
		for _, e := range l.Entries {
			key := NormalizeName(e.CompanyName)
			if _, ok := osha.Rows[key]; !ok {
				continue
			}
			matched++
			set(rows[key], l, e)
		}
		zap.L().Info("company: merged combine list",
			zap.String("list", l.Prefix),
			zap.Int("matched", matched),
			zap.Int("skipped", len(l.Entries)-matched),
		)
	}

	for _, row := range rows {
		fillPrimaryName(row, added)
	}

	out := &Result{Columns: outputColumns(osha, dynamic)}
	out.Rows = make([]Row, 0, len(rows))
	for _, row := range rows {
		out.Rows = append(out.Rows, row)
	}
	slices.SortStableFunc(out.Rows, func(a, b Row) int {
		if c := strings.Compare(sortKey(a), sortKey(b)); c != 0 {
			return c
		}
		return strings.Compare(a[ColStrippedCompanyName], b[ColStrippedCompanyName])
	})
	return out, nil
}

func newListRow(key string, oshaColumns, dynamic []string) Row {
	row := Row{
		ColCompanyName:         "",
		ColOSHACompanyName:     "",
		ColEIN:                 "",
		ColStrippedCompanyName: key,
	}
	for _, c := range oshaColumns {
		if _, ok := row[c]; ok {
			continue
		}
		if isNumericColumn(c) {
			row[c] = "0"
		} else {
			row[c] = ""
		}
	}
	for _, c := range dynamic {
		row[c] = ""
	}
	return row
}

// fillPrimaryName sets company_name from the OSHA name, falling back to the
// first added list that named the company.
func fillPrimaryName(row Row, added []List) {
	if strings.TrimSpace(row[ColCompanyName]) != "" {
		return
	}
	if name := strings.TrimSpace(row[ColOSHACompanyName]); name != "" {
		row[ColCompanyName] = name
		return
	}
	for _, l := range added {
		if name := strings.TrimSpace(row[l.nameColumn()]); name != "" {
			row[ColCompanyName] = name
			return
		}
	}
}

func sortKey(r Row) string {
	if r[ColOSHACompanyName] != "" {
		return r[ColOSHACompanyName]
	}
	return r[ColStrippedCompanyName]
}

// outputColumns orders: company_name, ein, year columns, list websites,
// list names, remaining OSHA columns, stripped_company_name.
func outputColumns(osha *OSHAData, dynamic []string) []string {
	cols := []string{ColCompanyName, ColEIN}
	cols = append(cols, osha.YearColumns()...)
	cols = append(cols, dynamic...)

	seen := map[string]bool{}
	for _, c := range cols {
		seen[c] = true
	}
	if !slices.Contains(osha.Columns, ColOSHACompanyName) {
		cols = append(cols, ColOSHACompanyName)
		seen[ColOSHACompanyName] = true
	}
	for _, c := range osha.Columns {
		if seen[c] || c == ColStrippedCompanyName {
			continue
		}
		cols = append(cols, c)
		seen[c] = true
	}
	return append(cols, ColStrippedCompanyName)
}

// Write emits the result as pipe-delimited text with a header row. Missing
// cells are blank.
func Write(w io.Writer, r *Result) error {
	cw := csv.NewWriter(w)
	cw.Comma = OutputDelimiter
	if err := cw.Write(r.Columns); err != nil {
		return eris.Wrap(err, "company: write header")
	}
	rec := make([]string, len(r.Columns))
	for _, row := range r.Rows {
		for i, c := range r.Columns {
			rec[i] = row[c]
		}
		if err := cw.Write(rec); err != nil {
			return eris.Wrap(err, "company: write row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "company: flush output")
}

// ListPrefix derives a list's column prefix from its path.
func ListPrefix(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ReadTable reads a delimited or xlsx file with a header row. The delimiter
// is chosen by extension.
func ReadTable(ctx context.Context, path string) (*fetcher.Table, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		tbl, err := fetcher.ReadXLSXTable(path, fetcher.XLSXOptions{})
		if err != nil {
			return nil, eris.Wrapf(err, "company: read %s", path)
		}
		return tbl, nil
	}

	rc, err := fetcher.NewSource().Open(ctx, path)
	if err != nil {
		return nil, eris.Wrapf(err, "company: open %s", path)
	}
	defer rc.Close() //nolint:errcheck

	tbl, err := fetcher.ReadTable(ctx, rc, fetcher.CSVOptions{
		Delimiter:  fetcher.DelimiterFor(path),
		LazyQuotes: true,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "company: read %s", path)
	}
	return tbl, nil
}

// LoadList reads one company list. Rows without a company name are skipped.
func LoadList(ctx context.Context, path string) (List, error) {
	tbl, err := ReadTable(ctx, path)
	if err != nil {
		return List{}, err
	}

	l := List{Prefix: ListPrefix(path)}
	empty := 0
	for _, rec := range tbl.Rows {
		name := strings.TrimSpace(tbl.Get(rec, ColCompanyName))
		if name == "" {
			empty++
			continue
		}
		l.Entries = append(l.Entries, ListEntry{
			CompanyName: name,
			Website:     strings.TrimSpace(tbl.Get(rec, ColWebsite)),
		})
	}

	zap.L().Info("company: loaded list",
		zap.String("path", path),
		zap.Strings("columns", tbl.Header),
		zap.Int("rows", len(tbl.Rows)),
		zap.Int("empty", empty),
		zap.Int("companies", len(l.Entries)),
	)
	return l, nil
}

// LoadLists reads lists concurrently, preserving the order of paths.
func LoadLists(ctx context.Context, paths []string) ([]List, error) {
	lists := make([]List, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range paths {
		g.Go(func() error {
			l, err := LoadList(gctx, p)
			if err != nil {
				return err
			}
			lists[i] = l
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lists, nil
}

// LoadOSHA reads and interprets the OSHA input file.
func LoadOSHA(ctx context.Context, path string) (*OSHAData, error) {
	tbl, err := ReadTable(ctx, path)
	if err != nil {
		return nil, err
	}
	return BuildOSHA(tbl), nil
}
