// Package export flattens the current dashboard view into a tabular sheet
// and writes it as CSV or XLSX.
package export

import (
	"encoding/csv"
	"io"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/diligence-dashboard/internal/model"
	"github.com/sells-group/diligence-dashboard/internal/table"
)

// DefaultFilename is the download name for CSV exports.
const DefaultFilename = "roofing_companies.csv"

// OSHAPrefix marks the OSHA time series columns in exported headers.
const OSHAPrefix = "osha_"

// Contact position used when a contact has no usable position.
const fallbackPosition = "contact"

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Sheet is a rectangular export: every row has len(Header) cells.
type Sheet struct {
	Header []string
	Rows   [][]string
}

// NormalizePosition turns a free-text contact position into a column prefix.
func NormalizePosition(position string) string {
	p := nonAlnum.ReplaceAllString(strings.ToLower(strings.TrimSpace(position)), "_")
	p = strings.Trim(p, "_")
	if p == "" {
		return fallbackPosition
	}
	return p
}

// Build flattens records in the given order. Values come from lookup, so
// callers pass the overlaid lookup to export edited values. Contact columns
// are the union across all records, sorted by position.
func Build(records []model.CompanyRecord, lookup table.Lookup) Sheet {
	if lookup == nil {
		lookup = table.SourceLookup
	}

	// First pass: collect dynamic contact columns.
	flat := make([]map[string]string, len(records))
	seen := map[string]bool{}
	for i, rec := range records {
		var recPositions []string
		flat[i], recPositions = flattenContacts(rec.Contacts)
		for _, pos := range recPositions {
			seen[pos] = true
		}
	}
	positions := make([]string, 0, len(seen))
	for pos := range seen {
		positions = append(positions, pos)
	}
	slices.Sort(positions)

	header := leadingColumns()
	for _, pos := range positions {
		header = append(header, pos+"_name", pos+"_email")
	}
	header = append(header, model.FieldLastInteractionDate, model.FieldLastInteractionID)
	header = append(header, oshaColumns()...)

	// Second pass: emit rows with explicit blanks.
	rows := make([][]string, len(records))
	for i, rec := range records {
		row := make([]string, 0, len(header))
		for _, key := range leadingColumns() {
			row = append(row, lookup(rec, key).String())
		}
		for _, pos := range positions {
			row = append(row, flat[i][pos+"_name"], flat[i][pos+"_email"])
		}
		row = append(row,
			lookup(rec, model.FieldLastInteractionDate).String(),
			lookup(rec, model.FieldLastInteractionID).String(),
		)
		for _, key := range oshaSourceKeys() {
			row = append(row, lookup(rec, key).String())
		}
		rows[i] = row
	}

	return Sheet{Header: header, Rows: rows}
}

// flattenContacts groups contacts by normalized position. Names and emails of
// contacts sharing a position are comma-joined under "<pos>_name" and
// "<pos>_email". It also returns the positions seen, in first-seen order.
func flattenContacts(contacts []model.Contact) (map[string]string, []string) {
	names := map[string][]string{}
	emails := map[string][]string{}
	var order []string
	for _, c := range contacts {
		pos := columnPosition(NormalizePosition(c.Position))
		if _, ok := names[pos]; !ok {
			order = append(order, pos)
			names[pos] = nil
		}
		if n := c.FullName(); n != "" {
			names[pos] = append(names[pos], n)
		}
		if e := strings.TrimSpace(c.Email); e != "" {
			emails[pos] = append(emails[pos], e)
		}
	}

	out := make(map[string]string, len(order)*2)
	for _, pos := range order {
		out[pos+"_name"] = strings.Join(names[pos], model.ListSeparator)
		out[pos+"_email"] = strings.Join(emails[pos], model.ListSeparator)
	}
	return out, order
}

// columnPosition prefixes positions whose "<pos>_name" or "<pos>_email"
// column would shadow a fixed export column, e.g. "company" → company_name.
func columnPosition(pos string) string {
	fixed := fixedColumns()
	if fixed[pos+"_name"] || fixed[pos+"_email"] {
		return fallbackPosition + "_" + pos
	}
	return pos
}

func fixedColumns() map[string]bool {
	cols := append(leadingColumns(), model.FieldLastInteractionDate, model.FieldLastInteractionID)
	cols = append(cols, oshaColumns()...)
	set := make(map[string]bool, len(cols))
	for _, c := range cols {
		set[c] = true
	}
	return set
}

func leadingColumns() []string {
	cols := []string{
		model.FieldCompanyName,
		model.FieldState,
		model.FieldGrade,
		model.FieldGradeSummary,
		model.FieldGradeCitations,
	}
	for _, key := range model.MetricKeys {
		cols = append(cols, key, key+model.CitationsSuffix)
	}
	return append(cols, model.FieldWebsite)
}

func oshaSourceKeys() []string {
	keys := make([]string, 0, len(model.OSHAYears)*2)
	for _, y := range model.OSHAYears {
		keys = append(keys, model.PrefixEmployees+strconv.Itoa(y))
	}
	for _, y := range model.OSHAYears {
		keys = append(keys, model.PrefixHours+strconv.Itoa(y))
	}
	return keys
}

func oshaColumns() []string {
	src := oshaSourceKeys()
	out := make([]string, len(src))
	for i, k := range src {
		out[i] = OSHAPrefix + k
	}
	return out
}

// WriteCSV writes the sheet as RFC 4180 CSV with a header row.
func WriteCSV(w io.Writer, s Sheet) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(s.Header); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	if err := cw.WriteAll(s.Rows); err != nil {
		return eris.Wrap(err, "export: write rows")
	}
	return nil
}
