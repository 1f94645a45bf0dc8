// Package company normalizes company names and merges company lists from
// OSHA filings, research exports and CRM pulls into one pipe-delimited
// table keyed by normalized name.
package company

import (
	"regexp"
	"strings"
)

// businessSuffixes are dropped from the end of a name before matching.
var businessSuffixes = map[string]bool{}

func init() {
	for _, s := range []string{
		"LLC", "INC", "INCORPORATED", "LTD", "LIMITED", "CORP", "CORPORATION", "CO", "COMPANY",
		"LP", "LLP", "PLLC", "PC", "PA", "PSC", "LLLP", "LC", "HOLDINGS", "GROUP", "ENTERPRISES",
		"SOLUTIONS", "SERVICES", "SYSTEMS", "TECHNOLOGIES", "ASSOCIATES", "PARTNERS", "CONSULTING",
		"MANAGEMENT", "ADVISORS", "VENTURES", "CAPITAL", "INVESTMENTS", "PROPERTIES", "DEVELOPMENT",
		"CONSTRUCTION", "CONTRACTORS", "MANUFACTURING", "INDUSTRIES", "INTERNATIONAL", "WORLDWIDE",
		"GLOBAL", "NATIONAL", "REGIONAL", "LOCAL",
	} {
		businessSuffixes[s] = true
	}
}

var (
	parenRe       = regexp.MustCompile(`\s*\([^)]*\)\s*`)
	andRe         = regexp.MustCompile(`(?i)\s+and\s+`)
	ampRe         = regexp.MustCompile(`\s*&\s*`)
	trailingAmpRe = regexp.MustCompile(`\s+&\s*$`)
	leadingAmpRe  = regexp.MustCompile(`^&\s+`)
)

const trailingPunct = ".,;!?"

// NormalizeName reduces a company name to its matching key: parentheticals
// and commas removed, "and" folded into "&", trailing business suffixes
// stripped, lower-cased.
//
//	"Apple Roofing (Roofing Services), LLC" -> "apple roofing"
//	"Smith and Sons Co."                    -> "smith & sons"
func NormalizeName(name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	n = strings.TrimRight(n, trailingPunct)
	n = strings.Trim(n, `"'`)
	n = strings.TrimSpace(strings.TrimLeft(n, `"'`))

	n = strings.TrimSpace(parenRe.ReplaceAllString(n, " "))
	n = strings.ReplaceAll(n, ",", "")
	n = andRe.ReplaceAllString(n, " & ")
	n = ampRe.ReplaceAllString(n, " & ")

	words := strings.Fields(strings.ToUpper(n))
	for len(words) > 0 {
		last := strings.TrimRight(words[len(words)-1], trailingPunct)
		if !businessSuffixes[last] {
			words[len(words)-1] = last
			break
		}
		words = words[:len(words)-1]
	}

	result := strings.TrimSpace(strings.ToLower(strings.Join(words, " ")))
	result = strings.TrimSpace(trailingAmpRe.ReplaceAllString(result, ""))
	result = strings.TrimSpace(leadingAmpRe.ReplaceAllString(result, ""))
	return result
}

// Matcher maps normalized names to the original spellings that produce them.
type Matcher struct {
	byKey map[string][]string
}

// NewMatcher indexes names. Empty names and names that normalize to nothing
// are skipped.
func NewMatcher(names []string) *Matcher {
	m := &Matcher{byKey: make(map[string][]string, len(names))}
	for _, name := range names {
		m.Add(name)
	}
	return m
}

// Add indexes one name.
func (m *Matcher) Add(name string) {
	if name == "" {
		return
	}
	key := NormalizeName(name)
	if key == "" {
		return
	}
	for _, existing := range m.byKey[key] {
		if existing == name {
			return
		}
	}
	m.byKey[key] = append(m.byKey[key], name)
}

// Match returns the original names sharing target's normalized key.
func (m *Matcher) Match(target string) []string {
	return m.byKey[NormalizeName(target)]
}

// Len returns the number of distinct normalized keys.
func (m *Matcher) Len() int {
	return len(m.byKey)
}
