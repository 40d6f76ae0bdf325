// Package llm generates and validates free-text answers.
package llm

import "context"

// Turn is one prior message handed to the model as history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Validation is the verdict on a generated answer.
type Validation struct {
	IsAppropriate bool   `json:"is_appropriate"`
	StaysInScope  bool   `json:"stays_in_scope"`
	Hallucination bool   `json:"hallucination"`
	Feedback      string `json:"feedback,omitempty"`
}

// Passed reports whether the answer can be returned as is.
func (v Validation) Passed() bool {
	return v.IsAppropriate && v.StaysInScope && !v.Hallucination
}

// Generator produces an answer for query given the assembled context.
type Generator interface {
	Generate(ctx context.Context, query, contextText string, history []Turn) (string, error)
}

// Validator judges a generated answer.
type Validator interface {
	Validate(ctx context.Context, query, response, contextText string) (Validation, error)
}

// Model is a Generator that can also validate its own output.
type Model interface {
	Generator
	Validator
}

// historyWindow bounds how many prior turns reach the model.
const historyWindow = 10

func recent(history []Turn) []Turn {
	if len(history) > historyWindow {
		return history[len(history)-historyWindow:]
	}
	return history
}
