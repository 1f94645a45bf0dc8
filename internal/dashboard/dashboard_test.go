package dashboard

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/diligence-dashboard/internal/columns"
	"github.com/sells-group/diligence-dashboard/internal/model"
	"github.com/sells-group/diligence-dashboard/internal/store"
	"github.com/sells-group/diligence-dashboard/internal/table"
)

type stubOpener struct {
	body string
	err  error
}

func (s stubOpener) Open(context.Context, string) (io.ReadCloser, error) {
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(strings.NewReader(s.body)), nil
}

const sampleCSV = `company_name,state,investment_grade,metrics,contact_info
Acme Roofing,TX,"{""grade"":""B"",""summary"":""ok"",""citations"":[]}","[{""metric_name"":""est_annual_revenue"",""metric"":""$5M"",""citations"":[""http://a""]}]","[{""position"":""Owner"",""first_name"":""Ann"",""last_name"":""Lee"",""email"":""ann@acme.example""}]"
Beta Roofs,OK,A,not json,
Cedar Roofing,TX,C,"[{""metric_name"":""est_annual_revenue"",""metric"":""$12M"",""citations"":[]}]",
`

func newDashboard(t *testing.T, s store.Store) *Dashboard {
	t.Helper()
	if s == nil {
		s = store.NewMemory()
	}
	d, err := New(context.Background(), Options{Source: "data.csv", Opener: stubOpener{body: sampleCSV}, Store: s})
	require.NoError(t, err)
	d.Reload(context.Background())
	return d
}

func companies(s State) []string {
	out := make([]string, len(s.Rows))
	for i, r := range s.Rows {
		out[i] = r.Company
	}
	return out
}

func TestNew_RequiresStore(t *testing.T) {
	_, err := New(context.Background(), Options{})
	require.Error(t, err)
}

func TestReload(t *testing.T) {
	d, err := New(context.Background(), Options{Opener: stubOpener{body: sampleCSV}, Store: store.NewMemory()})
	require.NoError(t, err)
	assert.False(t, d.State().Loaded)

	s := d.Reload(context.Background())
	assert.True(t, s.Loaded)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, []string{"Acme Roofing", "Beta Roofs", "Cedar Roofing"}, companies(s))
	assert.Equal(t, "$5M", s.Rows[0].Cells[model.MetricRevenue].Value)
	assert.Equal(t, model.Unknown, s.Rows[1].Cells[model.MetricRevenue].Value)
	assert.Equal(t, "B", s.Rows[0].Cells[model.FieldGrade].Value)
}

func TestReload_FetchFailureIsEmptyAndLoaded(t *testing.T) {
	d, err := New(context.Background(), Options{Opener: stubOpener{err: errors.New("timeout")}, Store: store.NewMemory()})
	require.NoError(t, err)

	s := d.Reload(context.Background())
	assert.True(t, s.Loaded)
	assert.Zero(t, s.Total)
	assert.Empty(t, s.Rows)
}

func TestFilterAndSort(t *testing.T) {
	d := newDashboard(t, nil)

	s, err := d.ApplyFilter(model.FieldState, "tx")
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme Roofing", "Cedar Roofing"}, companies(s))
	assert.Equal(t, map[string]string{model.FieldState: "tx"}, s.Filters)

	s, err = d.SetSort(model.MetricRevenue, table.Desc)
	require.NoError(t, err)
	assert.Equal(t, []string{"Cedar Roofing", "Acme Roofing"}, companies(s))

	s, err = d.ToggleSort(model.MetricRevenue)
	require.NoError(t, err)
	assert.Equal(t, table.Asc, s.Sort.Direction)
	assert.Equal(t, []string{"Acme Roofing", "Cedar Roofing"}, companies(s))

	s = d.ClearFilters()
	assert.Len(t, s.Rows, 3)

	s = d.ClearSort()
	assert.Equal(t, table.Sort{}, s.Sort)

	_, err = d.ApplyFilter("bogus", "x")
	assert.True(t, eris.Is(err, ErrUnknownColumn))
	_, err = d.SetSort("bogus", table.Asc)
	assert.True(t, eris.Is(err, ErrUnknownColumn))
}

func TestOverride_EditRevert(t *testing.T) {
	ctx := context.Background()
	d := newDashboard(t, nil)

	s, err := d.SetOverride(ctx, "Beta Roofs", model.MetricRevenue, "$20M")
	require.NoError(t, err)
	cell := s.Rows[1].Cells[model.MetricRevenue]
	assert.Equal(t, "$20M", cell.Value)
	assert.True(t, cell.Edited)

	// Filters and sort see the displayed value.
	s, err = d.ApplyFilter(model.MetricRevenue, "20m")
	require.NoError(t, err)
	assert.Equal(t, []string{"Beta Roofs"}, companies(s))
	d.ClearFilters()

	s, err = d.ClearOverride(ctx, "Beta Roofs", model.MetricRevenue)
	require.NoError(t, err)
	cell = s.Rows[1].Cells[model.MetricRevenue]
	assert.Equal(t, model.Unknown, cell.Value)
	assert.False(t, cell.Edited)
}

func TestOverride_Validation(t *testing.T) {
	ctx := context.Background()
	d := newDashboard(t, nil)

	_, err := d.SetOverride(ctx, "Acme Roofing", model.FieldState, "CA")
	assert.True(t, eris.Is(err, ErrNotEditable))

	_, err = d.SetOverride(ctx, "Nobody", model.MetricRevenue, "$1")
	assert.True(t, eris.Is(err, ErrUnknownCompany))

	_, err = d.SetOverride(ctx, "Acme Roofing", "bogus", "$1")
	assert.True(t, eris.Is(err, ErrUnknownColumn))
}

func TestEditDraft(t *testing.T) {
	ctx := context.Background()
	d := newDashboard(t, nil)

	draft, err := d.BeginEdit("Acme Roofing", model.MetricRevenue)
	require.NoError(t, err)
	assert.Equal(t, "$5M", draft.Text)

	// Committing the untouched text does not create an override.
	s, err := d.CommitEdit(ctx, draft)
	require.NoError(t, err)
	assert.False(t, s.Rows[0].Cells[model.MetricRevenue].Edited)

	draft.Text = "$6M"
	s, err = d.CommitEdit(ctx, draft)
	require.NoError(t, err)
	cell := s.Rows[0].Cells[model.MetricRevenue]
	assert.Equal(t, "$6M", cell.Value)
	assert.True(t, cell.Edited)

	// A new draft starts from the override.
	draft, err = d.BeginEdit("Acme Roofing", model.MetricRevenue)
	require.NoError(t, err)
	assert.Equal(t, "$6M", draft.Text)

	_, err = d.BeginEdit("Acme Roofing", model.FieldState)
	assert.True(t, eris.Is(err, ErrNotEditable))
	_, err = d.BeginEdit("Nobody", model.MetricRevenue)
	assert.True(t, eris.Is(err, ErrUnknownCompany))
}

func TestToggleVerified(t *testing.T) {
	ctx := context.Background()
	d := newDashboard(t, nil)

	s, err := d.ToggleVerified(ctx, "Acme Roofing", model.MetricRevenue)
	require.NoError(t, err)
	cell := s.Rows[0].Cells[model.MetricRevenue]
	assert.True(t, cell.Verified)
	assert.False(t, cell.Edited)

	s, err = d.ToggleVerified(ctx, "Acme Roofing", model.MetricRevenue)
	require.NoError(t, err)
	assert.False(t, s.Rows[0].Cells[model.MetricRevenue].Verified)
}

func TestOverlaySurvivesReloadAndRestart(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	d := newDashboard(t, s)

	_, err := d.SetOverride(ctx, "Acme Roofing", model.MetricGrowth, "15%")
	require.NoError(t, err)
	_, err = d.ToggleVerified(ctx, "Cedar Roofing", model.MetricRevenue)
	require.NoError(t, err)

	st := d.Reload(ctx)
	assert.Equal(t, "15%", st.Rows[0].Cells[model.MetricGrowth].Value)

	restarted := newDashboard(t, s)
	st = restarted.State()
	assert.Equal(t, "15%", st.Rows[0].Cells[model.MetricGrowth].Value)
	assert.True(t, st.Rows[2].Cells[model.MetricRevenue].Verified)

	st, err = restarted.ClearOverlay(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Unknown, st.Rows[0].Cells[model.MetricGrowth].Value)
}

func TestColumns_TogglePersists(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	d := newDashboard(t, s)

	st, err := d.ToggleColumn(ctx, model.FieldState)
	require.NoError(t, err)
	assert.NotContains(t, st.Rows[0].Cells, model.FieldState)
	for _, c := range st.Visible() {
		assert.NotEqual(t, model.FieldState, c.Key)
	}

	restarted := newDashboard(t, s)
	assert.NotContains(t, restarted.State().Rows[0].Cells, model.FieldState)

	_, err = d.ToggleColumn(ctx, "bogus")
	assert.True(t, eris.Is(err, ErrUnknownColumn))
}

func TestColumns_MoveAndReset(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	d := newDashboard(t, s)
	orig := d.Columns()

	st, err := d.MoveColumn(ctx, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, orig[1].Key, st.Columns[0].Key)
	assert.Equal(t, 0, st.Columns[0].Order)

	var saved columns.Saved
	found, err := store.GetJSON(ctx, s, store.KeyColumnSettings, &saved)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, columns.Version(), saved.Version)
	assert.Equal(t, orig[1].Key, saved.Columns[0].Key)

	_, err = d.MoveColumn(ctx, 0, 999)
	require.Error(t, err)

	st, err = d.ResetColumns(ctx)
	require.NoError(t, err)
	assert.Equal(t, orig, st.Columns)
}

func TestNew_IgnoresUnreadableColumnSettings(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	require.NoError(t, s.Set(ctx, store.KeyColumnSettings, []byte("garbage")))

	d := newDashboard(t, s)
	assert.Equal(t, columns.Defaults(), d.Columns())
}

func TestExport_UsesViewAndOverrides(t *testing.T) {
	ctx := context.Background()
	d := newDashboard(t, nil)

	_, err := d.SetOverride(ctx, "Cedar Roofing", model.MetricRevenue, "$13M")
	require.NoError(t, err)
	_, err = d.ToggleVerified(ctx, "Cedar Roofing", model.MetricRevenue)
	require.NoError(t, err)
	_, err = d.ApplyFilter(model.FieldState, "TX")
	require.NoError(t, err)
	_, err = d.SetSort(model.FieldCompanyName, table.Desc)
	require.NoError(t, err)

	sheet := d.Export()
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, "Cedar Roofing", sheet.Rows[0][0])
	assert.Equal(t, "Acme Roofing", sheet.Rows[1][0])

	revenue := -1
	for i, h := range sheet.Header {
		if h == model.MetricRevenue {
			revenue = i
		}
		assert.NotContains(t, h, "verified")
	}
	require.GreaterOrEqual(t, revenue, 0)
	assert.Equal(t, "$13M", sheet.Rows[0][revenue])
	assert.Contains(t, sheet.Header, "owner_name")
}

func TestSetRecords(t *testing.T) {
	d := newDashboard(t, nil)
	s := d.SetRecords(nil)
	assert.True(t, s.Loaded)
	assert.NotNil(t, s.Rows)
	assert.Empty(t, s.Rows)
}
