package retrieval

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/appliance"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/extract"
)

// PatternKind classifies a pattern response.
type PatternKind string

const (
	PatternDiagnostic    PatternKind = "diagnostic"
	PatternPartLookup    PatternKind = "part_lookup"
	PatternCompatibility PatternKind = "compatibility_check"
	PatternInformational PatternKind = "informational"
)

// PatternResponse is a canned reply with the confidence of its match.
type PatternResponse struct {
	Rule       string      `json:"rule,omitempty"`
	Response   string      `json:"response"`
	Confidence float64     `json:"confidence"`
	Kind       PatternKind `json:"kind"`
}

type patternRule struct {
	name       string
	keywords   []string
	response   string
	confidence float64
	re         *regexp.Regexp
}

// Rules are scanned in order; the first rule with a matching keyword wins.
var patternRules = []patternRule{
	{
		name:     "not_cooling",
		keywords: []string{"not cooling", "not cold", "warm", "hot", "temperature"},
		response: "I can help with that cooling issue. This is usually caused by airflow blockage, dirty coils or a failing component. " +
			"1. Is the compressor running (do you hear humming)? 2. Are the vents blocked by food? " +
			"3. When did you last clean the condenser coils? Based on your answers I'll recommend the specific parts you need.",
		confidence: 0.95,
	},
	{
		name:     "ice_maker",
		keywords: []string{"ice maker", "icemaker", "no ice", "ice not working"},
		response: "Ice maker problems are very common. Let me help troubleshoot: 1. Is the ice maker getting power? " +
			"2. Is water reaching the refrigerator? 3. Any error codes showing? 4. When did it last make ice? " +
			"Most issues are water supply problems or the ice maker assembly needs replacement.",
		confidence: 0.95,
	},
	{
		name:     "dishwasher_not_cleaning",
		keywords: []string{"not cleaning", "dishes dirty", "spots on dishes", "poor cleaning"},
		response: "Poor cleaning is frustrating. Let's diagnose this: 1. Are the spray arms spinning freely? " +
			"2. Is the water temperature at 120F? 3. Are you using rinse aid? 4. When did you last clean the bottom filter? " +
			"Most cleaning issues come from clogged spray arms or dirty filters.",
		confidence: 0.9,
	},
	{
		name:     "not_starting",
		keywords: []string{"won't start", "not starting", "dead", "no power", "not turning on"},
		response: "A unit that won't start usually has a few common causes. Tell me: 1. Any lights or sounds when you try to start it? " +
			"2. Is it getting power? 3. Any error codes? 4. Did this happen suddenly? " +
			"This is typically a door latch, control board or power issue.",
		confidence: 0.9,
	},
	{
		name:     "leaking",
		keywords: []string{"leaking", "leak", "water on floor", "puddle", "dripping"},
		response: "Water leaks need quick attention. Let me help find the source: 1. Where exactly is the water coming from? " +
			"2. Is it a constant leak or only during cycles? 3. Any recent repairs? 4. Is the door seal intact? " +
			"Most leaks are from worn seals or loose connections.",
		confidence: 0.85,
	},
	{
		name:     "not_draining",
		keywords: []string{"not draining", "won't drain", "water sitting", "standing water", "water at bottom"},
		response: "Drainage issues are common. Let me help you troubleshoot: 1. Is the garbage disposal clear, if connected? " +
			"2. Is the dishwasher filter at the bottom clogged? 3. Are there any error codes? " +
			"Most drainage problems are caused by a clogged filter, a blocked drain hose or a faulty drain pump.",
		confidence: 0.95,
	},
	{
		name:     "categories_support",
		keywords: []string{"what categories", "what do you support", "what can you help", "categories", "support"},
		response: "I specialize in refrigerator and dishwasher parts and repairs. I can help you: 1. Find the right parts for your appliance " +
			"2. Troubleshoot common issues 3. Check part compatibility with your model 4. Provide installation guidance. " +
			"Just tell me your appliance brand, model number and what issue you're experiencing.",
		confidence: 0.9,
	},
}

func init() {
	for i := range patternRules {
		quoted := make([]string, len(patternRules[i].keywords))
		for j, k := range patternRules[i].keywords {
			quoted[j] = regexp.QuoteMeta(k)
		}
		patternRules[i].re = regexp.MustCompile(`\b(` + strings.Join(quoted, "|") + `)\b`)
	}
}

// PatternThresholds are the confidences assigned outside the rule table.
type PatternThresholds struct {
	Generic       float64
	PartLookup    float64
	Compatibility float64
}

// PatternResponder answers common symptom phrasing with canned diagnostic
// questions.
type PatternResponder struct {
	extractor  *extract.Extractor
	thresholds PatternThresholds
}

// NewPatternResponder creates a responder.
func NewPatternResponder(extractor *extract.Extractor, thresholds PatternThresholds) *PatternResponder {
	if extractor == nil {
		extractor = extract.New()
	}
	return &PatternResponder{extractor: extractor, thresholds: thresholds}
}

// Respond always returns a response; callers decide whether its confidence
// is high enough to use. known is the appliance type already established in
// the conversation and is used when the query names none.
func (p *PatternResponder) Respond(query string, known appliance.Type) PatternResponse {
	lower := strings.ToLower(strings.TrimSpace(query))
	ex := p.extractor.Extract(query)

	if len(ex.PartNumbers) > 0 {
		if containsAny(lower, compatibilityWords) {
			return PatternResponse{
				Confidence: p.thresholds.Compatibility,
				Kind:       PatternCompatibility,
			}
		}
		return PatternResponse{
			Response: fmt.Sprintf("I can help you with part number %s. To make sure it's the right part: "+
				"1. What's your appliance model number? 2. What issue are you fixing? 3. Where did you find this part number? "+
				"I'll verify compatibility and provide installation guidance.", ex.PartNumbers[0]),
			Confidence: p.thresholds.PartLookup,
			Kind:       PatternPartLookup,
		}
	}

	for _, r := range patternRules {
		if r.re.MatchString(lower) {
			return PatternResponse{
				Rule:       r.name,
				Response:   r.response,
				Confidence: r.confidence,
				Kind:       PatternDiagnostic,
			}
		}
	}

	kind := known
	if len(ex.ApplianceTypes) > 0 {
		kind = ex.ApplianceTypes[0]
	}
	name := "appliance"
	if kind.Known() {
		name = kind.String()
	}
	return PatternResponse{
		Response: fmt.Sprintf("I'm here to help with your %s issue. To give you the most accurate assistance: "+
			"1. What specific problem are you experiencing? 2. What's the make and model? 3. When did this issue start? "+
			"I specialize in refrigerator and dishwasher parts, so I can walk you through diagnosis and recommend exact parts.", name),
		Confidence: p.thresholds.Generic,
		Kind:       PatternInformational,
	}
}

// RuleCount returns the number of symptom rules.
func RuleCount() int {
	return len(patternRules)
}
