package ingest

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/diligence-dashboard/internal/model"
)

// Boolean metric labels.
const (
	LabelYes = "Yes"
	LabelNo  = "No"
)

// DisplayDateLayout is the short human form used for date-like fields.
const DisplayDateLayout = "Jan 2, 2006"

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
}

type rawMetric struct {
	Name      string          `json:"metric_name"`
	Value     json.RawMessage `json:"metric"`
	Details   string          `json:"details"`
	Citations []string        `json:"citations"`
}

// Grade is the parsed investment_grade column.
type Grade struct {
	Grade     string   `json:"grade"`
	Summary   string   `json:"summary"`
	Citations []string `json:"citations"`
}

// ParseMetrics decodes the metrics JSON array. Every known metric key is
// present in the result; unknown names are ignored and missing or
// malformed entries resolve to model.Unknown.
func ParseMetrics(raw string) map[string]model.Metric {
	metrics := make(map[string]model.Metric, len(model.MetricKeys))
	for _, key := range model.MetricKeys {
		metrics[key] = model.Metric{Value: model.Unknown, Citations: []string{}}
	}
	if raw == "" {
		return metrics
	}

	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &elems); err != nil {
		zap.L().Debug("ingest: malformed metrics json", zap.Error(err))
		return metrics
	}

	// Entries decode one at a time so a bad entry only loses its own metric.
	for i, elem := range elems {
		var item rawMetric
		if err := json.Unmarshal(elem, &item); err != nil {
			zap.L().Debug("ingest: malformed metric entry", zap.Int("index", i), zap.Error(err))
			continue
		}
		if _, known := metrics[item.Name]; !known {
			continue
		}
		citations := item.Citations
		if citations == nil {
			citations = []string{}
		}
		metrics[item.Name] = model.Metric{
			Value:     metricValue(item.Name, item.Value),
			Details:   item.Details,
			Citations: citations,
		}
	}
	return metrics
}

// metricValue renders a raw metric JSON value as display text.
func metricValue(key string, raw json.RawMessage) string {
	var text string
	switch {
	case len(raw) == 0 || string(raw) == "null":
		return model.Unknown
	case json.Unmarshal(raw, &text) == nil:
	default:
		var b bool
		if json.Unmarshal(raw, &b) == nil {
			text = strconv.FormatBool(b)
		} else {
			text = string(raw)
		}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return model.Unknown
	}
	if model.IsBooleanMetric(key) {
		return BoolLabel(text)
	}
	return text
}

// BoolLabel maps truthy and falsy spellings to Yes/No. Other text is
// returned unchanged.
func BoolLabel(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1":
		return LabelYes
	case "false", "no", "n", "0":
		return LabelNo
	}
	return s
}

// ParseGrade decodes the investment_grade column, which holds either a JSON
// object or a bare grade string.
func ParseGrade(raw string) Grade {
	unknown := Grade{Grade: model.Unknown, Citations: []string{}}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return unknown
	}

	if strings.HasPrefix(raw, "{") {
		var g Grade
		if err := json.Unmarshal([]byte(raw), &g); err != nil {
			zap.L().Debug("ingest: malformed investment_grade json", zap.Error(err))
			return unknown
		}
		g.Grade = strings.TrimSpace(g.Grade)
		if g.Grade == "" {
			g.Grade = model.Unknown
		}
		if g.Citations == nil {
			g.Citations = []string{}
		}
		return g
	}

	var quoted string
	if json.Unmarshal([]byte(raw), &quoted) == nil {
		raw = strings.TrimSpace(quoted)
		if raw == "" {
			return unknown
		}
	}
	return Grade{Grade: raw, Citations: []string{}}
}

// ParseContacts decodes the contact_info JSON array. Malformed input yields
// no contacts.
func ParseContacts(raw string) []model.Contact {
	if raw == "" {
		return []model.Contact{}
	}
	var contacts []model.Contact
	if err := json.Unmarshal([]byte(raw), &contacts); err != nil {
		zap.L().Debug("ingest: malformed contact_info json", zap.Error(err))
		return []model.Contact{}
	}
	if contacts == nil {
		return []model.Contact{}
	}
	return contacts
}

// FormatDate renders a date-like value in DisplayDateLayout. Values that do
// not parse are returned verbatim.
func FormatDate(raw string) string {
	if raw == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(DisplayDateLayout)
		}
	}
	return raw
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
