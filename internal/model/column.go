package model

// ColumnKind distinguishes identity columns from editable metric columns.
type ColumnKind string

const (
	ColumnIdentity ColumnKind = "identity"
	ColumnMetric   ColumnKind = "metric"
)

// ColumnSpec describes one table column. Order values across a column list
// form a dense permutation starting at zero.
type ColumnSpec struct {
	Key     string     `json:"key" yaml:"key"`
	Label   string     `json:"label" yaml:"label"`
	Kind    ColumnKind `json:"kind" yaml:"kind"`
	Visible bool       `json:"visible" yaml:"visible"`
	Order   int        `json:"order" yaml:"-"`
	Group   string     `json:"group,omitempty" yaml:"group,omitempty"`
}

// Editable reports whether cells in this column accept overrides.
func (c ColumnSpec) Editable() bool {
	return c.Kind == ColumnMetric && IsMetric(c.Key)
}
