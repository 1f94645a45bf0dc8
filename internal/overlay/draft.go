package overlay

import "context"

// Draft is the state of an open inline editor. It lives only as long as the
// editor and is never persisted; abandoning it discards the text.
type Draft struct {
	Company string `json:"company"`
	Field   string `json:"field"`
	Text    string `json:"text"`
}

// Begin opens a draft for (company, field) seeded with the displayed value.
func Begin(company, field, displayed string) *Draft {
	return &Draft{Company: company, Field: field, Text: displayed}
}

// Changed reports whether the draft differs from the displayed value.
func (d *Draft) Changed(displayed string) bool {
	return d != nil && d.Text != displayed
}

// Commit saves the draft as an override. An unchanged draft is a no-op.
func (o *Overlay) Commit(ctx context.Context, d *Draft, displayed string) error {
	if !d.Changed(displayed) {
		return nil
	}
	return o.SetOverride(ctx, d.Company, d.Field, d.Text)
}
