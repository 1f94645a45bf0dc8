// Package ingest turns the pre-generated company CSV into CompanyRecords.
// Malformed embedded JSON never aborts a load: the affected sub-fields fall
// back to model.Unknown or an empty collection.
package ingest

import (
	"context"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/diligence-dashboard/internal/fetcher"
	"github.com/sells-group/diligence-dashboard/internal/model"
)

// Source CSV column names.
const (
	ColCompanyName         = "company_name"
	ColState               = "state"
	ColInvestmentGrade     = "investment_grade"
	ColMetrics             = "metrics"
	ColWebsite             = "website"
	ColContactInfo         = "contact_info"
	ColLastInteractionDate = "last_interaction_date"
	ColLastInteractionID   = "last_interaction_id"
)

// Option configures CSV reading.
type Option func(*fetcher.CSVOptions)

// WithDelimiter sets the field delimiter. Zero keeps the comma default.
func WithDelimiter(d rune) Option {
	return func(o *fetcher.CSVOptions) {
		o.Delimiter = d
	}
}

// Parse reads the whole CSV stream and transforms every data row.
func Parse(ctx context.Context, r io.Reader, opts ...Option) ([]model.CompanyRecord, error) {
	csvOpts := fetcher.CSVOptions{LazyQuotes: true}
	for _, opt := range opts {
		opt(&csvOpts)
	}
	tbl, err := fetcher.ReadTable(ctx, r, csvOpts)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read csv")
	}

	records := make([]model.CompanyRecord, 0, len(tbl.Rows))
	for _, row := range tbl.Rows {
		records = append(records, TransformRow(tbl, row))
	}
	return records, nil
}

// Load opens location and parses it. Any fetch or parse failure is logged
// and yields an empty record set.
func Load(ctx context.Context, opener fetcher.Opener, location string, opts ...Option) []model.CompanyRecord {
	rc, err := opener.Open(ctx, location)
	if err != nil {
		zap.L().Warn("ingest: fetch failed, showing empty table",
			zap.String("source", location),
			zap.Error(err),
		)
		return []model.CompanyRecord{}
	}
	defer rc.Close() //nolint:errcheck

	records, err := Parse(ctx, rc, opts...)
	if err != nil {
		zap.L().Warn("ingest: parse failed, showing empty table",
			zap.String("source", location),
			zap.Error(err),
		)
		return []model.CompanyRecord{}
	}

	zap.L().Info("ingest: loaded companies",
		zap.String("source", location),
		zap.Int("count", len(records)),
	)
	return records
}

// TransformRow builds a CompanyRecord from one data row.
func TransformRow(tbl *fetcher.Table, row []string) model.CompanyRecord {
	get := func(col string) string {
		return strings.TrimSpace(tbl.Get(row, col))
	}

	name := get(ColCompanyName)
	grade := ParseGrade(get(ColInvestmentGrade))

	rec := model.CompanyRecord{
		CompanyName:              name,
		State:                    get(ColState),
		InvestmentGrade:          grade.Grade,
		InvestmentGradeSummary:   grade.Summary,
		InvestmentGradeCitations: grade.Citations,
		Metrics:                  ParseMetrics(get(ColMetrics)),
		Website:                  get(ColWebsite),
		Contacts:                 ParseContacts(get(ColContactInfo)),
		LastInteractionDate:      FormatDate(get(ColLastInteractionDate)),
		LastInteractionID:        get(ColLastInteractionID),
		AnnualAverageEmployees:   make(map[int]string, len(model.OSHAYears)),
		TotalHoursWorked:         make(map[int]string, len(model.OSHAYears)),
	}

	for _, year := range model.OSHAYears {
		if v := get(model.PrefixEmployees + itoa(year)); v != "" {
			rec.AnnualAverageEmployees[year] = v
		}
		if v := get(model.PrefixHours + itoa(year)); v != "" {
			rec.TotalHoursWorked[year] = v
		}
	}

	return rec
}
