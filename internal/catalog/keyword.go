package catalog

import (
	"regexp"
	"strings"
)

var (
	nonAlnum   = regexp.MustCompile(`[^a-z0-9\s]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// synonyms are applied in order; later entries see earlier rewrites.
var synonyms = []struct{ from, to string }{
	{"fridge", "refrigerator"},
	{"icebox", "refrigerator"},
	{"cooler", "refrigerator"},
	{"dish washer", "dishwasher"},
	{"dishwashing machine", "dishwasher"},
	{"freezer", "refrigerator freezer"},
	{"ice maker", "icemaker"},
	{"water filter", "filter water"},
	{"not cooling", "not cold warm"},
	{"not working", "broken defective"},
	{"wont start", "not starting broken"},
	{"leaking", "leak water drip"},
	{"noisy", "loud noise sound"},
	{"door seal", "gasket door"},
	{"handle", "door handle"},
}

// Normalize lowercases text, strips punctuation and rewrites common
// synonyms so that query and catalog vocabulary line up.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	s := whitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(text)), " ")
	s = nonAlnum.ReplaceAllString(s, " ")
	for _, syn := range synonyms {
		s = strings.ReplaceAll(s, syn.from, syn.to)
	}
	return s
}

func wordSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// Relevance scores fields against query as the share of normalized query
// words present in the fields, plus 0.3 when the raw query appears verbatim.
// The result is capped at 1.
func Relevance(query string, fields ...string) float64 {
	if strings.TrimSpace(query) == "" {
		return 0
	}
	queryWords := wordSet(Normalize(query))
	if len(queryWords) == 0 {
		return 0
	}

	nonEmpty := fields[:0:0]
	for _, f := range fields {
		if f != "" {
			nonEmpty = append(nonEmpty, f)
		}
	}
	combined := strings.Join(nonEmpty, " ")
	textWords := wordSet(Normalize(combined))
	if len(textWords) == 0 {
		return 0
	}

	matches := 0
	for w := range queryWords {
		if _, ok := textWords[w]; ok {
			matches++
		}
	}
	score := float64(matches) / float64(len(queryWords))

	if strings.Contains(strings.ToLower(combined), strings.ToLower(strings.TrimSpace(query))) {
		score += 0.3
	}
	if score > 1 {
		score = 1
	}
	return score
}
