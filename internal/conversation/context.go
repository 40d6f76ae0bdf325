// Package conversation accumulates structured facts across the turns of a chat.
package conversation

import (
	"regexp"
	"strings"
	"time"

	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/appliance"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/extract"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Stage classifies how much has been gathered so far. It is always derived.
type Stage string

const (
	StageInitial            Stage = "initial"
	StageGatheringInfo      Stage = "gathering_info"
	StageDiagnosis          Stage = "diagnosis"
	StagePartSelection      Stage = "part_selection"
	StageCompatibilityCheck Stage = "compatibility_check"
	StageInstallation       Stage = "installation"
	StageComplete           Stage = "complete"
)

// Missing information tags.
const (
	MissingApplianceType      = "appliance_type"
	MissingModelNumber        = "model_number"
	MissingProblemDescription = "problem_description"
)

const (
	weightAppliance = 0.3
	weightBrand     = 0.2
	weightModel     = 0.3
	weightSymptoms  = 0.2

	minDescriptionLength = 20
)

var seriesPattern = regexp.MustCompile(`^[A-Z]{2,4}`)

// Message is one entry of the conversation history.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Mismatch records a later message contradicting an established fact.
type Mismatch struct {
	Field       string    `json:"field"`
	Established string    `json:"established"`
	Observed    string    `json:"observed"`
	Message     string    `json:"message"`
	At          time.Time `json:"at"`
}

// Context is the accumulated state of one conversation.
type Context struct {
	ConversationID     string         `json:"conversation_id"`
	ApplianceType      appliance.Type `json:"appliance_type,omitempty"`
	Brand              string         `json:"brand,omitempty"`
	ModelNumber        string         `json:"model_number,omitempty"`
	Series             string         `json:"series,omitempty"`
	Symptoms           []string       `json:"symptoms"`
	ProblemDescription string         `json:"problem_description,omitempty"`
	MentionedParts     []string       `json:"mentioned_parts"`
	Stage              Stage          `json:"stage"`
	Completeness       float64        `json:"completeness"`
	MissingInfo        []string       `json:"missing_info"`
	MessageCount       int            `json:"message_count"`
	UserMessageCount   int            `json:"user_message_count"`
	Mismatches         []Mismatch     `json:"mismatches,omitempty"`
	History            []Message      `json:"history,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

func newContext(id string, now time.Time) *Context {
	c := &Context{
		ConversationID: id,
		Symptoms:       []string{},
		MentionedParts: []string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	c.derive()
	return c
}

// Clone returns a deep copy safe to hand to callers.
func (c *Context) Clone() Context {
	out := *c
	out.Symptoms = append([]string{}, c.Symptoms...)
	out.MentionedParts = append([]string{}, c.MentionedParts...)
	out.MissingInfo = append([]string{}, c.MissingInfo...)
	out.Mismatches = append([]Mismatch(nil), c.Mismatches...)
	out.History = append([]Message(nil), c.History...)
	return out
}

// Has reports whether tag is listed in MissingInfo.
func (c *Context) Has(missing string) bool {
	for _, m := range c.MissingInfo {
		if m == missing {
			return true
		}
	}
	return false
}

// merge folds an extraction into the context. Appliance type, brand and
// model are first-writer-wins; a disagreeing appliance type is returned as
// a Mismatch instead of being applied.
func (c *Context) merge(ex extract.Extraction, message string, now time.Time) []Mismatch {
	var mismatches []Mismatch

	if len(ex.ApplianceTypes) > 0 {
		if c.ApplianceType == appliance.Unset {
			c.ApplianceType = ex.ApplianceTypes[0]
		} else if !containsType(ex.ApplianceTypes, c.ApplianceType) {
			mismatches = append(mismatches, Mismatch{
				Field:       MissingApplianceType,
				Established: c.ApplianceType.String(),
				Observed:    ex.ApplianceTypes[0].String(),
				Message:     message,
				At:          now,
			})
		}
	}

	if len(ex.Brands) > 0 && c.Brand == "" {
		c.Brand = titleBrand(ex.Brands[0])
	}

	if len(ex.ModelNumbers) > 0 && c.ModelNumber == "" {
		c.ModelNumber = ex.ModelNumbers[0]
		c.Series = seriesPattern.FindString(c.ModelNumber)
	}

	c.MentionedParts = appendUnique(c.MentionedParts, ex.PartNumbers...)
	c.Symptoms = appendUnique(c.Symptoms, ex.Symptoms...)

	if len(message) > minDescriptionLength && len(message) > len(c.ProblemDescription) {
		c.ProblemDescription = message
	}

	c.Mismatches = append(c.Mismatches, mismatches...)
	return mismatches
}

// derive recomputes stage, completeness and missing info.
func (c *Context) derive() {
	hasAppliance := c.ApplianceType != appliance.Unset

	score := 0.0
	if hasAppliance {
		score += weightAppliance
	}
	if c.Brand != "" {
		score += weightBrand
	}
	if c.ModelNumber != "" {
		score += weightModel
	}
	if len(c.Symptoms) > 0 {
		score += weightSymptoms
	}
	c.Completeness = score

	switch {
	case len(c.MentionedParts) > 0 && c.ModelNumber != "":
		c.Stage = StageCompatibilityCheck
	case len(c.MentionedParts) > 0:
		c.Stage = StagePartSelection
	case hasAppliance && len(c.Symptoms) > 0:
		c.Stage = StageDiagnosis
	case hasAppliance || c.Brand != "" || c.ModelNumber != "":
		c.Stage = StageGatheringInfo
	default:
		c.Stage = StageInitial
	}

	missing := []string{}
	if !hasAppliance {
		missing = append(missing, MissingApplianceType)
	}
	if c.ModelNumber == "" && c.Stage != StageInitial {
		missing = append(missing, MissingModelNumber)
	}
	if len(c.Symptoms) == 0 && len(c.MentionedParts) == 0 {
		missing = append(missing, MissingProblemDescription)
	}
	c.MissingInfo = missing
}

func appendUnique(list []string, items ...string) []string {
	for _, item := range items {
		found := false
		for _, existing := range list {
			if existing == item {
				found = true
				break
			}
		}
		if !found {
			list = append(list, item)
		}
	}
	return list
}

func containsType(types []appliance.Type, t appliance.Type) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

var brandDisplay = map[string]string{
	"ge":         "GE",
	"lg":         "LG",
	"kitchenaid": "KitchenAid",
}

func titleBrand(tag string) string {
	if s, ok := brandDisplay[tag]; ok {
		return s
	}
	if tag == "" {
		return ""
	}
	return strings.ToUpper(tag[:1]) + tag[1:]
}
