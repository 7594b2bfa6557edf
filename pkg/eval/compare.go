package eval

import (
	"strings"

	"github.com/mikeboe/deep-leads/pkg/leads"
)

// LeadPair is a predicted lead and the expected lead with the same name.
type LeadPair struct {
	Actual   leads.Lead `json:"actual"`
	Expected leads.Lead `json:"expected"`
}

// Comparison is the exact-name comparison of two lead lists.
type Comparison struct {
	Matches []LeadPair   `json:"matches"`
	Missing []leads.Lead `json:"missing"`
	Extra   []leads.Lead `json:"extra"`
	// Expected and Actual count the distinct normalised names on each side.
	Expected int `json:"expected"`
	Actual   int `json:"actual"`
}

// Recall is the share of expected leads found, in percent.
func (c Comparison) Recall() float64 {
	if c.Expected == 0 {
		return 0
	}
	return 100 * float64(len(c.Matches)) / float64(c.Expected)
}

// NormalizeName lowercases name and collapses whitespace.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// MatchLeads pairs actual and expected leads by normalised name. Repeated
// names count once; the first occurrence wins.
func MatchLeads(actual, expected []leads.Lead) Comparison {
	actualByName, actualOrder := indexByName(actual)
	expectedByName, expectedOrder := indexByName(expected)

	c := Comparison{Expected: len(expectedOrder), Actual: len(actualOrder)}
	for _, name := range expectedOrder {
		if a, ok := actualByName[name]; ok {
			c.Matches = append(c.Matches, LeadPair{Actual: a, Expected: expectedByName[name]})
		} else {
			c.Missing = append(c.Missing, expectedByName[name])
		}
	}
	for _, name := range actualOrder {
		if _, ok := expectedByName[name]; !ok {
			c.Extra = append(c.Extra, actualByName[name])
		}
	}
	return c
}

func indexByName(ls []leads.Lead) (map[string]leads.Lead, []string) {
	byName := make(map[string]leads.Lead, len(ls))
	var order []string
	for _, l := range ls {
		key := NormalizeName(l.Name)
		if _, seen := byName[key]; seen {
			continue
		}
		byName[key] = l
		order = append(order, key)
	}
	return byName, order
}

// FieldsAgree compares two field values case-insensitively. Two empty values agree.
func FieldsAgree(actual, expected string) bool {
	return strings.EqualFold(strings.TrimSpace(actual), strings.TrimSpace(expected))
}
