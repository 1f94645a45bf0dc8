package company

import (
	"context"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/diligence-dashboard/internal/fetcher"
)

var (
	// ErrNoYears is returned when consolidation is given no year files.
	ErrNoYears = eris.New("company: at least one osha year file is required")
	// ErrDuplicateYear is returned when two files resolve to the same year.
	ErrDuplicateYear = eris.New("company: duplicate osha year")
)

var yearSuffixRe = regexp.MustCompile(`_(\d{4})$`)

// Year is one year of OSHA establishment filings summed per normalized
// company name.
type Year struct {
	Label     string
	Path      string
	companies map[string]*oshaGroup
}

// Len returns the number of distinct companies filed that year.
func (y *Year) Len() int { return len(y.companies) }

func (y *Year) sortedKeys() []string {
	keys := make([]string, 0, len(y.companies))
	for k := range y.companies {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// YearFromPath reads the year from a "<name>_<yyyy>.<ext>" file name. Files
// without that suffix are labeled by their base name.
func YearFromPath(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if m := yearSuffixRe.FindStringSubmatch(base); m != nil {
		return m[1]
	}
	zap.L().Warn("company: no year in osha file name, using base name",
		zap.String("path", path),
		zap.String("year", base),
	)
	return base
}

// NewYear sums a year's establishment rows per company.
func NewYear(label string, tbl *fetcher.Table) *Year {
	y := &Year{Label: label, companies: groupEstablishments(tbl)}
	zap.L().Info("company: aggregated osha year",
		zap.String("year", label),
		zap.Int("rows", len(tbl.Rows)),
		zap.Int("companies", len(y.companies)),
	)
	return y
}

// LoadYear reads one year file, labeled by YearFromPath.
func LoadYear(ctx context.Context, path string) (*Year, error) {
	tbl, err := ReadTable(ctx, path)
	if err != nil {
		return nil, err
	}
	y := NewYear(YearFromPath(path), tbl)
	y.Path = path
	return y, nil
}

// LoadYears reads year files concurrently, preserving the order of paths.
func LoadYears(ctx context.Context, paths []string) ([]*Year, error) {
	if len(paths) == 0 {
		return nil, ErrNoYears
	}
	years := make([]*Year, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range paths {
		g.Go(func() error {
			y, err := LoadYear(gctx, p)
			if err != nil {
				return err
			}
			years[i] = y
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return years, nil
}

// YearColumns returns the consolidated per-year columns: every employee
// column in year order, then every hours column.
func YearColumns(labels []string) []string {
	cols := make([]string, 0, 2*len(labels))
	for _, y := range labels {
		cols = append(cols, ColEmployees+"_"+y)
	}
	for _, y := range labels {
		cols = append(cols, ColHours+"_"+y)
	}
	return cols
}

// multiYear is one consolidated company.
type multiYear struct {
	name      string
	ein       string
	key       string
	named     string // year whose spelling names the record
	employees map[string]int64
	hours     map[string]int64
}

func newMultiYear(key, ein string) *multiYear {
	return &multiYear{
		key:       key,
		ein:       ein,
		employees: map[string]int64{},
		hours:     map[string]int64{},
	}
}

// add folds one year's totals into the record. Totals landing on a year that
// is already filled are summed. The latest year's spelling names the record.
func (m *multiYear) add(year string, g *oshaGroup) {
	m.employees[year] += g.employees
	m.hours[year] += g.hours
	if m.named == "" || year >= m.named {
		m.named = year
		m.name = g.name
		m.key = NormalizeName(g.name)
	}
}

func (m *multiYear) row(labels []string) Row {
	row := Row{
		ColCompanyName:         strings.Trim(m.name, `"'`),
		ColEIN:                 m.ein,
		ColStrippedCompanyName: m.key,
	}
	for _, y := range labels {
		row[ColEmployees+"_"+y] = strconv.FormatInt(m.employees[y], 10)
		row[ColHours+"_"+y] = strconv.FormatInt(m.hours[y], 10)
	}
	return row
}

func (m *multiYear) yearsFiled() int {
	n := 0
	for _, v := range m.employees {
		if v > 0 {
			n++
		}
	}
	return n
}

type yearKey struct {
	year string
	key  string
}

type einEntry struct {
	year string
	key  string
	g    *oshaGroup
}

// ConsolidateYears merges yearly OSHA totals into one row per company with
// annual_average_employees_<year> and total_hours_worked_<year> columns.
//
// Companies whose EIN set is filed in more than one year are joined first.
// The remaining companies without an EIN are joined across years by
// normalized name, attaching to an existing record of the same name when
// there is one. Companies with an EIN filed in a single year get their own
// row. Years a company did not file are zero.
func ConsolidateYears(years []*Year) (*Result, error) {
	if len(years) == 0 {
		return nil, ErrNoYears
	}
	byLabel := make(map[string]*Year, len(years))
	labels := make([]string, 0, len(years))
	for _, y := range years {
		if _, dup := byLabel[y.Label]; dup {
			return nil, eris.Wrapf(ErrDuplicateYear, "company: year %s", y.Label)
		}
		byLabel[y.Label] = y
		labels = append(labels, y.Label)
	}
	slices.Sort(labels)

	var (
		records   []*multiYear
		byName    = map[string]*multiYear{}
		processed = map[yearKey]bool{}
		byEIN     = map[string][]einEntry{}
		noEIN     []string
	)
	register := func(m *multiYear) {
		records = append(records, m)
		if _, ok := byName[m.key]; !ok {
			byName[m.key] = m
		}
	}

	for _, label := range labels {
		y := byLabel[label]
		for _, key := range y.sortedKeys() {
			g := y.companies[key]
			if ein := g.ein(); ein != "" {
				byEIN[ein] = append(byEIN[ein], einEntry{year: label, key: key, g: g})
			} else {
				noEIN = append(noEIN, g.name)
			}
		}
	}

	eins := make([]string, 0, len(byEIN))
	for ein := range byEIN {
		eins = append(eins, ein)
	}
	slices.Sort(eins)

	einJoined := 0
	for _, ein := range eins {
		entries := byEIN[ein]
		if len(entries) < 2 {
			continue
		}
		einJoined++
		m := newMultiYear(entries[0].key, ein)
		for _, e := range entries {
			m.add(e.year, e.g)
			processed[yearKey{e.year, e.key}] = true
		}
		register(m)
	}

	names := NewMatcher(noEIN)
	nameJoined := 0
	for _, label := range labels {
		y := byLabel[label]
		for _, key := range y.sortedKeys() {
			if processed[yearKey{label, key}] {
				continue
			}
			g := y.companies[key]

			ein := g.ein()
			if ein != "" {
				m := newMultiYear(key, ein)
				m.add(label, g)
				processed[yearKey{label, key}] = true
				register(m)
				continue
			}

			m, ok := byName[key]
			if !ok {
				m = newMultiYear(key, "")
				register(m)
			}
			if spellings := names.Match(g.name); len(spellings) > 1 {
				nameJoined++
				zap.L().Debug("company: joining osha spellings",
					zap.String("key", key),
					zap.Strings("spellings", spellings),
				)
			}
			for _, other := range labels {
				og, ok := byLabel[other].companies[key]
				if !ok || processed[yearKey{other, key}] {
					continue
				}
				m.add(other, og)
				processed[yearKey{other, key}] = true
			}
		}
	}

	out := &Result{
		Columns: append([]string{ColCompanyName, ColEIN, ColStrippedCompanyName}, YearColumns(labels)...),
		Rows:    make([]Row, 0, len(records)),
	}
	multi := 0
	for _, m := range records {
		if m.yearsFiled() > 1 {
			multi++
		}
		out.Rows = append(out.Rows, m.row(labels))
	}
	slices.SortStableFunc(out.Rows, func(a, b Row) int {
		if c := strings.Compare(strings.ToLower(a[ColCompanyName]), strings.ToLower(b[ColCompanyName])); c != 0 {
			return c
		}
		if c := strings.Compare(a[ColStrippedCompanyName], b[ColStrippedCompanyName]); c != 0 {
			return c
		}
		return strings.Compare(a[ColEIN], b[ColEIN])
	})

	zap.L().Info("company: consolidated osha years",
		zap.Strings("years", labels),
		zap.Int("companies", len(out.Rows)),
		zap.Int("ein_joined", einJoined),
		zap.Int("name_joined", nameJoined),
		zap.Int("multi_year", multi),
	)
	return out, nil
}
