package conversation

import (
	"context"
	"fmt"
	"strings"
)

const noContext = "No conversation context available."

var missingReadable = map[string]string{
	MissingApplianceType:      "appliance type (refrigerator/dishwasher)",
	MissingModelNumber:        "specific model number",
	MissingProblemDescription: "description of the problem",
}

// Render returns the conversation summary prepended to generation prompts.
// Section order is fixed.
func (m *Manager) Render(ctx context.Context, conversationID string) string {
	c, ok := m.Get(ctx, conversationID)
	if !ok {
		return noContext
	}
	return RenderContext(c)
}

// RenderContext formats a context snapshot.
func RenderContext(c Context) string {
	var b strings.Builder
	b.WriteString("=== CONVERSATION CONTEXT ===\n")

	if c.ApplianceType != "" || c.Brand != "" || c.ModelNumber != "" {
		b.WriteString("APPLIANCE INFORMATION:\n")
		if c.ApplianceType != "" {
			fmt.Fprintf(&b, "  - Type: %s\n", c.ApplianceType.Title())
		}
		if c.Brand != "" {
			fmt.Fprintf(&b, "  - Brand: %s\n", c.Brand)
		}
		if c.ModelNumber != "" {
			fmt.Fprintf(&b, "  - Model: %s\n", c.ModelNumber)
		}
		if c.Series != "" {
			fmt.Fprintf(&b, "  - Series: %s\n", c.Series)
		}
	}

	if len(c.Symptoms) > 0 || c.ProblemDescription != "" {
		b.WriteString("\nPROBLEM INFORMATION:\n")
		if len(c.Symptoms) > 0 {
			fmt.Fprintf(&b, "  - Symptoms: %s\n", strings.Join(c.Symptoms, ", "))
		}
		if c.ProblemDescription != "" {
			fmt.Fprintf(&b, "  - Description: %s\n", c.ProblemDescription)
		}
	}

	if len(c.MentionedParts) > 0 {
		fmt.Fprintf(&b, "\nPARTS MENTIONED: %s\n", strings.Join(c.MentionedParts, ", "))
	}

	fmt.Fprintf(&b, "\nCONVERSATION STAGE: %s\n", stageTitle(c.Stage))
	fmt.Fprintf(&b, "INFORMATION COMPLETENESS: %.0f%%\n", c.Completeness*100)

	if len(c.MissingInfo) > 0 {
		readable := make([]string, 0, len(c.MissingInfo))
		for _, mi := range c.MissingInfo {
			if r, ok := missingReadable[mi]; ok {
				readable = append(readable, r)
			} else {
				readable = append(readable, mi)
			}
		}
		fmt.Fprintf(&b, "STILL NEEDED: %s\n", strings.Join(readable, ", "))
	}

	b.WriteString("=== END CONTEXT ===\n")
	return b.String()
}

// SuggestedQuestions derives follow-up questions from what is still
// missing. Nothing already known is asked for again.
func (m *Manager) SuggestedQuestions(ctx context.Context, conversationID string) []string {
	c, ok := m.Get(ctx, conversationID)
	if !ok {
		return []string{"Could you tell me what type of appliance you're working with?"}
	}
	return SuggestedQuestionsFor(c)
}

// SuggestedQuestionsFor derives follow-up questions for a snapshot.
func SuggestedQuestionsFor(c Context) []string {
	questions := []string{}

	if c.Has(MissingApplianceType) {
		questions = append(questions, "Is this for a refrigerator or dishwasher?")
	}

	if c.Has(MissingModelNumber) && c.ApplianceType != "" {
		questions = append(questions, fmt.Sprintf(
			"What's the model number of your %s? You can usually find it on a sticker inside the appliance.", c.ApplianceType))
	}

	if c.Has(MissingProblemDescription) {
		if c.Stage == StageGatheringInfo && c.ApplianceType != "" {
			questions = append(questions, fmt.Sprintf("What issue are you having with your %s?", c.ApplianceType))
		} else {
			questions = append(questions, "What specific problem are you experiencing?")
		}
	}

	return questions
}

func stageTitle(s Stage) string {
	words := strings.Split(string(s), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
