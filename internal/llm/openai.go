package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/domain"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/observability"
)

const (
	validationTemperature = 0.1
	validationMaxTokens   = 200
	validationContextLen  = 500
)

const systemPrompt = `You're an appliance parts assistant. Focus on refrigerator and dishwasher parts only.

Read the user's query carefully for all details. Never ask for information the user already gave you.

Key rules:
- If the user gives a part number (PS11739035, WP2180353) use it immediately
- If the user gives a model number (WDT780SAEM1, RF23J9011SR) use it immediately
- If the user gives an appliance type or brand, use it

For compatibility questions, check appliance types first: a refrigerator part never fits a dishwasher model.
For installation questions, use the search results for steps, difficulty, time estimates and video links.
For troubleshooting, ask for the model number if not provided, then suggest specific parts based on symptoms.

Business rules:
- Never suggest refrigerator parts for dishwashers
- Whirlpool parts often work in Kenmore and Maytag appliances
- Ask appliance type, then model, then symptoms, then recommend parts
- Use the provided parts data, repair guides and conversation context instead of guessing`

const validationPrompt = `You are a response validator for an appliance parts assistant.

Original Query: %q
Retrieved Context: %q
Generated Response: %q

Evaluate the response on these criteria:
1. Is it appropriate for a parts assistant? (professional, helpful tone)
2. Does it stay within refrigerator/dishwasher parts scope?
3. Does it hallucinate information not in the context?
4. Does it use specific parts/prices from the context when available?

Respond with ONLY this JSON:
{
  "is_appropriate": true/false,
  "stays_in_scope": true/false,
  "hallucination": true/false,
  "feedback": "specific feedback for improvement or null"
}`

// ClientConfig configures an OpenAI-compatible chat endpoint.
type ClientConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Retry       RetryConfig
}

// Client generates and validates answers through an OpenAI-compatible API
// such as DeepSeek.
type Client struct {
	client *openai.Client
	cfg    ClientConfig
	logger *observability.Logger
}

// NewClient creates a new chat client.
func NewClient(cfg ClientConfig, logger *observability.Logger) *Client {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &Client{
		client: openai.NewClientWithConfig(oc),
		cfg:    cfg,
		logger: logger,
	}
}

// Generate answers query using the supplied context and recent history.
func (c *Client) Generate(ctx context.Context, query, contextText string, history []Turn) (string, error) {
	messages := []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleSystem, Content: systemPrompt}}
	for _, t := range recent(history) {
		if t.Role != openai.ChatMessageRoleUser && t.Role != openai.ChatMessageRoleAssistant {
			continue
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: t.Role, Content: t.Content})
	}

	user := "User query: " + query
	if strings.TrimSpace(contextText) != "" {
		user += "\n\nRelevant information found:\n" + contextText
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: user})

	c.logger.Debug().
		Int("context_chars", len(contextText)).
		Int("history", len(messages)-2).
		Msg("Generating answer")

	return c.complete(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: float32(c.cfg.Temperature),
		MaxTokens:   c.cfg.MaxTokens,
	})
}

// Validate asks the model to grade response. Unparseable verdicts pass.
func (c *Client) Validate(ctx context.Context, query, response, contextText string) (Validation, error) {
	if len(contextText) > validationContextLen {
		contextText = contextText[:validationContextLen] + "..."
	}
	content, err := c.complete(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleUser,
			Content: fmt.Sprintf(validationPrompt, query, contextText, response),
		}},
		Temperature: validationTemperature,
		MaxTokens:   validationMaxTokens,
	})
	if err != nil {
		return Validation{}, err
	}

	v, err := ParseValidation(content)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Unparseable validation verdict, accepting answer")
		return Validation{IsAppropriate: true, StaysInScope: true}, nil
	}
	return v, nil
}

func (c *Client) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	resp, err := retryWithBackoff(ctx, c.cfg.Retry, c.logger, func() (openai.ChatCompletionResponse, error) {
		return c.client.CreateChatCompletion(ctx, req)
	})
	if err != nil {
		return "", domain.CollaboratorFailure("chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", domain.CollaboratorFailure("chat completion returned no choices", nil)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// ParseValidation decodes a verdict, tolerating markdown code fences.
// Missing boolean fields default to a passing verdict.
func ParseValidation(raw string) (Validation, error) {
	text := strings.TrimSpace(raw)
	if i := strings.Index(text, "```json"); i >= 0 {
		text = text[i+len("```json"):]
	} else if i := strings.Index(text, "```"); i >= 0 {
		text = text[i+3:]
	}
	if i := strings.Index(text, "```"); i >= 0 {
		text = text[:i]
	}

	var wire struct {
		IsAppropriate *bool   `json:"is_appropriate"`
		StaysInScope  *bool   `json:"stays_in_scope"`
		Hallucination *bool   `json:"hallucination"`
		Feedback      *string `json:"feedback"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &wire); err != nil {
		return Validation{}, domain.MalformedData("validation verdict", err)
	}

	v := Validation{IsAppropriate: true, StaysInScope: true}
	if wire.IsAppropriate != nil {
		v.IsAppropriate = *wire.IsAppropriate
	}
	if wire.StaysInScope != nil {
		v.StaysInScope = *wire.StaysInScope
	}
	if wire.Hallucination != nil {
		v.Hallucination = *wire.Hallucination
	}
	if wire.Feedback != nil && *wire.Feedback != "null" {
		v.Feedback = strings.TrimSpace(*wire.Feedback)
	}
	return v, nil
}

var _ Model = (*Client)(nil)
