package model

import "strings"

// ListSeparator joins list elements for display, sorting and export.
const ListSeparator = ", "

// Value is a cell value. List-valued fields (citations) keep their elements
// so filters can match any single element.
type Value struct {
	Text   string   `json:"text"`
	List   []string `json:"list,omitempty"`
	IsList bool     `json:"is_list,omitempty"`
}

// Text builds a scalar value.
func Text(s string) Value {
	return Value{Text: s}
}

// List builds a list value. A nil slice is stored as empty.
func List(items []string) Value {
	if items == nil {
		items = []string{}
	}
	return Value{Text: strings.Join(items, ListSeparator), List: items, IsList: true}
}

// String returns the flattened form of the value.
func (v Value) String() string {
	if v.IsList {
		return strings.Join(v.List, ListSeparator)
	}
	return v.Text
}
