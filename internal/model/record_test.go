package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleRecord() CompanyRecord {
	return CompanyRecord{
		CompanyName:              "Acme Roofing",
		State:                    "TX",
		InvestmentGrade:          GradeB,
		InvestmentGradeSummary:   "ok",
		InvestmentGradeCitations: []string{"http://g"},
		Metrics: map[string]Metric{
			MetricRevenue: {Value: "$5M", Citations: []string{"http://a", "http://b"}},
		},
		Contacts: []Contact{
			{Position: "CEO", FirstName: "Jane", LastName: "Doe", Email: "jane@acme.com"},
			{FirstName: "Bob"},
		},
		AnnualAverageEmployees: map[int]string{2022: "41"},
		TotalHoursWorked:       map[int]string{2024: "90000"},
	}
}

func TestCompanyRecord_Field(t *testing.T) {
	t.Parallel()
	r := sampleRecord()

	tests := []struct {
		key  string
		want string
		list bool
	}{
		{FieldCompanyName, "Acme Roofing", false},
		{FieldState, "TX", false},
		{FieldGrade, "B", false},
		{FieldGradeSummary, "ok", false},
		{FieldGradeCitations, "http://g", true},
		{MetricRevenue, "$5M", false},
		{MetricRevenue + CitationsSuffix, "http://a, http://b", true},
		{MetricGrowth, Unknown, false},
		{MetricGrowth + CitationsSuffix, "", true},
		{FieldContactInfo, "CEO: Jane Doe <jane@acme.com>; Bob", false},
		{"annual_average_employees_2022", "41", false},
		{"annual_average_employees_2020", "", false},
		{"total_hours_worked_2024", "90000", false},
		{"total_hours_worked_abc", "", false},
		{"no_such_column", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Parallel()
			v := r.Field(tt.key)
			assert.Equal(t, tt.want, v.String())
			assert.Equal(t, tt.list, v.IsList)
		})
	}
}

func TestIsBooleanMetric(t *testing.T) {
	t.Parallel()
	assert.True(t, IsBooleanMetric(MetricPEBacked))
	assert.True(t, IsBooleanMetric(MetricAllocation))
	assert.False(t, IsBooleanMetric(MetricRevenue))
}

func TestList_NilBecomesEmpty(t *testing.T) {
	t.Parallel()
	v := List(nil)
	assert.NotNil(t, v.List)
	assert.Empty(t, v.String())
}

func TestColumnSpec_Editable(t *testing.T) {
	t.Parallel()
	assert.True(t, ColumnSpec{Key: MetricRevenue, Kind: ColumnMetric}.Editable())
	assert.False(t, ColumnSpec{Key: MetricRevenue + CitationsSuffix, Kind: ColumnMetric}.Editable())
	assert.False(t, ColumnSpec{Key: FieldCompanyName, Kind: ColumnIdentity}.Editable())
}
