package company

import (
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/diligence-dashboard/internal/fetcher"
)

// Column names used in OSHA inputs and aggregate output.
const (
	ColCompanyName         = "company_name"
	ColWebsite             = "website"
	ColEIN                 = "ein"
	ColOSHACompanyName     = "osha_company_name"
	ColStrippedCompanyName = "stripped_company_name"
	ColEmployees           = "annual_average_employees"
	ColHours               = "total_hours_worked"
	ColTotalEmployees      = "total_annual_average_employees"
	ColTotalHours          = "total_total_hours_worked"
)

// Row is one output record keyed by column name.
type Row map[string]string

// OSHAData is the OSHA input keyed by normalized company name.
type OSHAData struct {
	// Consolidated is true for multi-year input with per-year columns.
	Consolidated bool
	// Columns lists the keys carried by every OSHA row, in input order.
	Columns []string
	Rows    map[string]Row
}

// YearColumns returns the per-year OSHA columns, sorted.
func (d *OSHAData) YearColumns() []string {
	var out []string
	for _, c := range d.Columns {
		if isYearColumn(c) {
			out = append(out, c)
		}
	}
	slices.Sort(out)
	return out
}

func isYearColumn(col string) bool {
	return strings.Contains(col, ColEmployees+"_") || strings.Contains(col, ColHours+"_")
}

func isNumericColumn(col string) bool {
	return strings.Contains(col, ColEmployees) || strings.Contains(col, ColHours)
}

// BuildOSHA interprets an OSHA table. Consolidated input (any
// annual_average_employees_<year> column) is kept row for row; single-year
// input is summed per normalized name with distinct EINs joined.
func BuildOSHA(tbl *fetcher.Table) *OSHAData {
	consolidated := slices.ContainsFunc(tbl.Header, func(h string) bool {
		return strings.Contains(h, ColEmployees+"_")
	})
	if consolidated {
		return buildConsolidated(tbl)
	}
	return buildSingleYear(tbl)
}

func buildConsolidated(tbl *fetcher.Table) *OSHAData {
	d := &OSHAData{Consolidated: true, Rows: map[string]Row{}}
	d.Columns = append(slices.Clone(tbl.Header), ColOSHACompanyName)

	for _, rec := range tbl.Rows {
		name := strings.TrimSpace(tbl.Get(rec, ColCompanyName))
		if name == "" {
			continue
		}
		row := make(Row, len(d.Columns))
		for _, h := range tbl.Header {
			row[h] = tbl.Get(rec, h)
		}
		row[ColOSHACompanyName] = name
		d.Rows[NormalizeName(name)] = row
	}

	zap.L().Info("company: loaded consolidated osha data",
		zap.Int("rows", len(tbl.Rows)),
		zap.Int("companies", len(d.Rows)),
	)
	return d
}

type oshaGroup struct {
	name      string
	employees int64
	hours     int64
	eins      map[string]bool
}

// groupEstablishments sums establishment rows per normalized company name.
// The first spelling seen names the group.
func groupEstablishments(tbl *fetcher.Table) map[string]*oshaGroup {
	groups := map[string]*oshaGroup{}
	for _, rec := range tbl.Rows {
		name := strings.TrimSpace(tbl.Get(rec, ColCompanyName))
		if name == "" {
			continue
		}
		key := NormalizeName(name)
		g, ok := groups[key]
		if !ok {
			g = &oshaGroup{name: name, eins: map[string]bool{}}
			groups[key] = g
		}
		g.employees += parseCount(tbl.Get(rec, ColEmployees))
		g.hours += parseCount(tbl.Get(rec, ColHours))
		if ein := strings.TrimSpace(tbl.Get(rec, ColEIN)); ein != "" {
			g.eins[ein] = true
		}
	}
	return groups
}

// ein joins the group's distinct EINs in sorted order.
func (g *oshaGroup) ein() string {
	eins := make([]string, 0, len(g.eins))
	for e := range g.eins {
		eins = append(eins, e)
	}
	slices.Sort(eins)
	return strings.Join(eins, ", ")
}

func buildSingleYear(tbl *fetcher.Table) *OSHAData {
	groups := groupEstablishments(tbl)

	d := &OSHAData{
		Columns: []string{
			ColOSHACompanyName, ColEmployees, ColHours,
			ColTotalEmployees, ColTotalHours, ColEIN, ColStrippedCompanyName,
		},
		Rows: make(map[string]Row, len(groups)),
	}
	for key, g := range groups {
		emp := strconv.FormatInt(g.employees, 10)
		hrs := strconv.FormatInt(g.hours, 10)
		d.Rows[key] = Row{
			ColOSHACompanyName:     g.name,
			ColEmployees:           emp,
			ColHours:               hrs,
			ColTotalEmployees:      emp,
			ColTotalHours:          hrs,
			ColEIN:                 g.ein(),
			ColStrippedCompanyName: key,
		}
	}

	zap.L().Info("company: aggregated single-year osha data",
		zap.Int("rows", len(tbl.Rows)),
		zap.Int("companies", len(d.Rows)),
	)
	return d
}

// parseCount reads integers that may be written as floats ("12.0").
// Unparseable values count as zero.
func parseCount(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int64(f)
}
