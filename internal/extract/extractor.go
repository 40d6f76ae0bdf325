// Package extract pulls structured appliance facts out of free text.
package extract

import (
	"regexp"
	"strings"

	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/appliance"
)

// Extraction is the structured result of scanning one message.
type Extraction struct {
	PartNumbers    []string         `json:"part_numbers"`
	ModelNumbers   []string         `json:"model_numbers"`
	Brands         []string         `json:"brands"`
	ApplianceTypes []appliance.Type `json:"appliance_types"`
	Symptoms       []string         `json:"symptoms"`
	Confidence     float64          `json:"confidence"`
}

// Empty reports whether nothing was recognised.
func (e Extraction) Empty() bool {
	return len(e.PartNumbers) == 0 && len(e.ModelNumbers) == 0 && len(e.Brands) == 0 &&
		len(e.ApplianceTypes) == 0 && len(e.Symptoms) == 0
}

// HasIdentifier reports whether a part or model number was found.
func (e Extraction) HasIdentifier() bool {
	return len(e.PartNumbers) > 0 || len(e.ModelNumbers) > 0
}

type tagPattern struct {
	tag string
	re  *regexp.Regexp
}

var (
	partPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(PS\d{8,})\b`),
		regexp.MustCompile(`(?i)\b(WP[A-Z]?\d{8,})\b`),
		regexp.MustCompile(`(?i)\b(W\d{8,})\b`),
		regexp.MustCompile(`(?i)\b([A-Z]{2,3}\d{6,})\b`),
	}

	// anchored forms used to reject model candidates that are really part numbers
	partExact = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^PS\d{8,}$`),
		regexp.MustCompile(`(?i)^WP[A-Z]?\d{8,}$`),
		regexp.MustCompile(`(?i)^W\d{8,}$`),
		regexp.MustCompile(`(?i)^[A-Z]{2,3}\d{6,}$`),
	}

	modelPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b([A-Z]{2,}[0-9A-Z]{4,})\b`),
		regexp.MustCompile(`\b(\d{3}\.\d{8,})\b`),
		regexp.MustCompile(`(?i)\b([A-Z]+\d+[A-Z]+\d*)\b`),
	}

	hasDigit = regexp.MustCompile(`\d`)

	brandPatterns = []tagPattern{
		{"whirlpool", regexp.MustCompile(`\b(whirlpool|wp[a-z]?\d+)\b`)},
		{"ge", regexp.MustCompile(`\b(ge|general electric)\b`)},
		{"samsung", regexp.MustCompile(`\bsamsung\b`)},
		{"lg", regexp.MustCompile(`\blg\b`)},
		{"bosch", regexp.MustCompile(`\bbosch\b`)},
		{"kitchenaid", regexp.MustCompile(`\b(kitchenaid|kitchen aid)\b`)},
		{"maytag", regexp.MustCompile(`\bmaytag\b`)},
		{"kenmore", regexp.MustCompile(`(\bkenmore\b|\b106\.)`)},
		{"frigidaire", regexp.MustCompile(`\bfrigidaire\b`)},
		{"admiral", regexp.MustCompile(`\badmiral\b`)},
		{"amana", regexp.MustCompile(`\bamana\b`)},
	}

	appliancePatterns = []struct {
		kind appliance.Type
		re   *regexp.Regexp
	}{
		{appliance.Refrigerator, regexp.MustCompile(`\b(refrigerator|fridge|ice maker|freezer)\b`)},
		{appliance.Dishwasher, regexp.MustCompile(`\b(dishwasher|dish washer)\b`)},
	}

	symptomPatterns = []tagPattern{
		{"not_cooling", regexp.MustCompile(`\b(not cooling|warm|too hot|temperature)\b`)},
		{"not_draining", regexp.MustCompile(`\b(not draining|won't drain|wont drain|water standing|pooling)\b`)},
		{"leaking", regexp.MustCompile(`\b(leaking|leak|water on floor)\b`)},
		{"noisy", regexp.MustCompile(`\b(noisy|loud|grinding|squealing|banging)\b`)},
		{"not_starting", regexp.MustCompile(`\b(not starting|won't start|wont start|dead|no power)\b`)},
		{"not_cleaning", regexp.MustCompile(`\b(not cleaning|dirty dishes|spots|film)\b`)},
		{"ice_maker_issues", regexp.MustCompile(`\b(ice maker|no ice|ice not dispensing)\b`)},
		{"door_issues", regexp.MustCompile(`\b(door won't close|door wont close|door seal|latch)\b`)},
	}
)

// Extractor is a stateless entity extractor. The zero value is ready to use.
type Extractor struct{}

// New returns an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract scans text for part numbers, model numbers, brands, appliance
// types and symptoms. It is pure: the same input always yields the same
// output, and unrecognisable text yields an empty Extraction.
func (x *Extractor) Extract(text string) Extraction {
	var out Extraction
	if strings.TrimSpace(text) == "" {
		return out
	}

	partSeen := make(map[string]bool)
	for _, re := range partPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			id := strings.ToUpper(m[1])
			if !partSeen[id] {
				partSeen[id] = true
				out.PartNumbers = append(out.PartNumbers, id)
			}
		}
	}

	modelSeen := make(map[string]bool)
	for _, re := range modelPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			candidate := strings.ToUpper(m[1])
			if modelSeen[candidate] || !hasDigit.MatchString(candidate) || isPartNumber(candidate) {
				continue
			}
			modelSeen[candidate] = true
			out.ModelNumbers = append(out.ModelNumbers, candidate)
		}
	}

	lower := strings.ToLower(text)
	for _, p := range brandPatterns {
		if p.re.MatchString(lower) {
			out.Brands = append(out.Brands, p.tag)
		}
	}
	for _, p := range appliancePatterns {
		if p.re.MatchString(lower) {
			out.ApplianceTypes = append(out.ApplianceTypes, p.kind)
		}
	}
	for _, p := range symptomPatterns {
		if p.re.MatchString(lower) {
			out.Symptoms = append(out.Symptoms, p.tag)
		}
	}

	out.Confidence = confidence(out)
	return out
}

// IsPartNumber reports whether s is exactly a part number.
func IsPartNumber(s string) bool {
	return isPartNumber(strings.TrimSpace(s))
}

func isPartNumber(s string) bool {
	for _, re := range partExact {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func confidence(e Extraction) float64 {
	categories := 0
	for _, n := range []int{len(e.PartNumbers), len(e.ModelNumbers), len(e.Brands), len(e.ApplianceTypes), len(e.Symptoms)} {
		if n > 0 {
			categories++
		}
	}
	c := float64(categories) * 0.2
	if c > 1.0 {
		c = 1.0
	}
	return c
}
