package dashboard

import (
	"github.com/sells-group/diligence-dashboard/internal/model"
	"github.com/sells-group/diligence-dashboard/internal/table"
)

// Cell is one displayed value with its overlay markers.
type Cell struct {
	Value    string   `json:"value"`
	List     []string `json:"list,omitempty"`
	Edited   bool     `json:"edited,omitempty"`
	Verified bool     `json:"verified,omitempty"`
}

// Row is one visible company. Cells holds the visible columns only.
type Row struct {
	Company string          `json:"company"`
	Cells   map[string]Cell `json:"cells"`
}

// State is a snapshot of everything the table renders.
type State struct {
	// Loaded is false until the first Reload or SetRecords completes.
	Loaded  bool               `json:"loaded"`
	Total   int                `json:"total"`
	Columns []model.ColumnSpec `json:"columns"`
	Filters map[string]string  `json:"filters"`
	Sort    table.Sort         `json:"sort"`
	Rows    []Row              `json:"rows"`
}

// Visible returns the visible columns in order.
func (s State) Visible() []model.ColumnSpec {
	out := make([]model.ColumnSpec, 0, len(s.Columns))
	for _, c := range s.Columns {
		if c.Visible {
			out = append(out, c)
		}
	}
	return out
}

func (d *Dashboard) stateLocked() State {
	visible := d.columns.Visible()
	records := d.visibleRecords()

	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		cells := make(map[string]Cell, len(visible))
		for _, col := range visible {
			v := d.lookup(rec, col.Key)
			_, edited := d.overlay.Override(rec.CompanyName, col.Key)
			cell := Cell{
				Value:    v.String(),
				Edited:   edited,
				Verified: d.overlay.IsVerified(rec.CompanyName, col.Key),
			}
			if v.IsList {
				cell.List = v.List
			}
			cells[col.Key] = cell
		}
		rows = append(rows, Row{Company: rec.CompanyName, Cells: cells})
	}

	return State{
		Loaded:  d.loaded,
		Total:   len(d.records),
		Columns: d.columns.Columns(),
		Filters: d.view.Filters(),
		Sort:    d.view.Sort(),
		Rows:    rows,
	}
}
