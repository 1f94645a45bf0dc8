// Package model defines the company records, cell values and column
// definitions shared by ingestion, the table view-model and export.
package model

import (
	"strconv"
	"strings"
)

// Unknown is the sentinel shown for values that are missing or unparseable.
const Unknown = "Unknown"

// Metric field keys. Each metric carries a value and supporting citations.
const (
	MetricRevenue        = "est_annual_revenue"
	MetricGrowth         = "est_yoy_growth"
	MetricPEBacked       = "pe_backed"
	MetricAllocation     = "can_accommodate_allocation"
	MetricGoodReputation = "good_reputation"
)

// Identity and denormalized field keys.
const (
	FieldCompanyName         = "company_name"
	FieldState               = "state"
	FieldGrade               = "investment_grade"
	FieldGradeSummary        = "investment_grade_summary"
	FieldGradeCitations      = "investment_grade_citations"
	FieldWebsite             = "website"
	FieldContactInfo         = "contact_info"
	FieldLastInteractionDate = "last_interaction_date"
	FieldLastInteractionID   = "last_interaction_id"

	PrefixEmployees = "annual_average_employees_"
	PrefixHours     = "total_hours_worked_"

	// CitationsSuffix turns a metric key into the key of its citation list.
	CitationsSuffix = "_citations"
)

// MetricKeys lists the metric fields in display order.
var MetricKeys = []string{
	MetricRevenue,
	MetricGrowth,
	MetricPEBacked,
	MetricAllocation,
	MetricGoodReputation,
}

// OSHAYears are the years covered by the OSHA time series columns.
var OSHAYears = []int{2020, 2021, 2022, 2023, 2024}

// IsBooleanMetric reports whether the metric renders as a Yes/No label.
func IsBooleanMetric(key string) bool {
	return key == MetricPEBacked || key == MetricAllocation
}

// IsMetric reports whether key names one of the metric value fields.
func IsMetric(key string) bool {
	for _, k := range MetricKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Grade values produced by the research pipeline. Unrecognized grades are
// kept verbatim.
const (
	GradeA = "A"
	GradeB = "B"
	GradeC = "C"
	GradeD = "D"
	GradeF = "F"
)

// Metric is a single researched attribute with its evidence.
type Metric struct {
	Value     string   `json:"value"`
	Details   string   `json:"details,omitempty"`
	Citations []string `json:"citations"`
}

// Contact is one person listed in a company's contact_info column.
type Contact struct {
	Position  string `json:"position"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// FullName joins first and last name, skipping empty parts.
func (c Contact) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
}

// CompanyRecord is one row of the source CSV after transform.
// CompanyName is the natural key.
type CompanyRecord struct {
	CompanyName              string            `json:"company_name"`
	State                    string            `json:"state"`
	InvestmentGrade          string            `json:"investment_grade"`
	InvestmentGradeSummary   string            `json:"investment_grade_summary"`
	InvestmentGradeCitations []string          `json:"investment_grade_citations"`
	Metrics                  map[string]Metric `json:"metrics"`
	Website                  string            `json:"website,omitempty"`
	Contacts                 []Contact         `json:"contact_info,omitempty"`
	LastInteractionDate      string            `json:"last_interaction_date,omitempty"`
	LastInteractionID        string            `json:"last_interaction_id,omitempty"`
	AnnualAverageEmployees   map[int]string    `json:"annual_average_employees,omitempty"`
	TotalHoursWorked         map[int]string    `json:"total_hours_worked,omitempty"`
}

// Metric returns the metric stored under key, or an Unknown metric with no
// citations when the record does not carry it.
func (r CompanyRecord) Metric(key string) Metric {
	if m, ok := r.Metrics[key]; ok {
		return m
	}
	return Metric{Value: Unknown, Citations: []string{}}
}

// Field resolves a column key to the record's source value.
func (r CompanyRecord) Field(key string) Value {
	switch key {
	case FieldCompanyName:
		return Text(r.CompanyName)
	case FieldState:
		return Text(r.State)
	case FieldGrade:
		return Text(r.InvestmentGrade)
	case FieldGradeSummary:
		return Text(r.InvestmentGradeSummary)
	case FieldGradeCitations:
		return List(r.InvestmentGradeCitations)
	case FieldWebsite:
		return Text(r.Website)
	case FieldContactInfo:
		return Text(FormatContacts(r.Contacts))
	case FieldLastInteractionDate:
		return Text(r.LastInteractionDate)
	case FieldLastInteractionID:
		return Text(r.LastInteractionID)
	}

	if IsMetric(key) {
		return Text(r.Metric(key).Value)
	}
	if base, ok := strings.CutSuffix(key, CitationsSuffix); ok && IsMetric(base) {
		return List(r.Metric(base).Citations)
	}
	if year, ok := yearSuffix(key, PrefixEmployees); ok {
		return Text(r.AnnualAverageEmployees[year])
	}
	if year, ok := yearSuffix(key, PrefixHours); ok {
		return Text(r.TotalHoursWorked[year])
	}
	return Text("")
}

func yearSuffix(key, prefix string) (int, bool) {
	rest, ok := strings.CutPrefix(key, prefix)
	if !ok {
		return 0, false
	}
	year, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return year, true
}

// FormatContacts renders contacts as "Position: Name <email>" joined by "; ".
func FormatContacts(contacts []Contact) string {
	parts := make([]string, 0, len(contacts))
	for _, c := range contacts {
		var sb strings.Builder
		if c.Position != "" {
			sb.WriteString(c.Position)
			sb.WriteString(": ")
		}
		sb.WriteString(c.FullName())
		if c.Email != "" {
			sb.WriteString(" <")
			sb.WriteString(c.Email)
			sb.WriteString(">")
		}
		parts = append(parts, strings.TrimSpace(sb.String()))
	}
	return strings.Join(parts, "; ")
}
