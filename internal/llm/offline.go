package llm

import (
	"context"
	"strings"
)

const (
	offlineMinLength = 20

	offlineNoData = "I couldn't find matching refrigerator or dishwasher parts for that yet. " +
		"Could you share your appliance type, model number and what's going wrong?"
)

// Offline answers without a remote model by echoing the catalog sections of
// the assembled context. It is used when no API key is configured.
type Offline struct{}

// NewOffline returns the offline model.
func NewOffline() *Offline { return &Offline{} }

// Generate formats the search sections of contextText as the answer.
func (Offline) Generate(ctx context.Context, query, contextText string, _ []Turn) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sections := catalogSections(contextText)
	if len(sections) == 0 {
		return offlineNoData, nil
	}
	var b strings.Builder
	b.WriteString("Here is what I found in our refrigerator and dishwasher catalog:\n")
	for _, s := range sections {
		b.WriteString("\n")
		b.WriteString(s)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// Validate applies length and scope heuristics. It never returns feedback,
// so the first answer is always kept.
func (Offline) Validate(ctx context.Context, _, response, _ string) (Validation, error) {
	if err := ctx.Err(); err != nil {
		return Validation{}, err
	}
	lower := strings.ToLower(response)
	return Validation{
		IsAppropriate: len(strings.TrimSpace(response)) > offlineMinLength,
		StaysInScope:  strings.Contains(lower, "refrigerator") || strings.Contains(lower, "dishwasher"),
	}, nil
}

// catalogSections returns the "=== ... ===" blocks that carry search results,
// skipping the conversation summary.
func catalogSections(contextText string) []string {
	var (
		sections []string
		current  strings.Builder
		lines    int
		keep     bool
	)
	flush := func() {
		if keep && lines > 1 {
			sections = append(sections, current.String())
		}
		current.Reset()
		lines = 0
	}
	for _, line := range strings.Split(contextText, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "===") && strings.HasSuffix(trimmed, "===") {
			flush()
			keep = !strings.Contains(trimmed, "CONTEXT")
			if !keep {
				continue
			}
		}
		if keep {
			current.WriteString(line)
			current.WriteString("\n")
			if trimmed != "" {
				lines++
			}
		}
	}
	flush()
	return sections
}

var _ Model = Offline{}
