package retrieval

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/catalog"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/conversation"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/domain"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/llm"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/observability"
)

const noResults = "No specific parts, repair guides, or articles found in the database."

// SearchBackend is the catalog surface the pipeline searches.
type SearchBackend interface {
	catalog.Catalog
	catalog.KnowledgeBase
}

// PipelineConfig configures the search-and-generate tier.
type PipelineConfig struct {
	PartsLimit    int
	RepairsLimit  int
	ArticlesLimit int
	MaxAttempts   int
	// Timeout bounds the whole generate and validate loop.
	Timeout    time.Duration
	Confidence float64
}

// DefaultPipelineConfig returns the limits used by the assistant.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		PartsLimit:    5,
		RepairsLimit:  3,
		ArticlesLimit: 2,
		MaxAttempts:   3,
		Timeout:       30 * time.Second,
		Confidence:    0.9,
	}
}

// SearchResults holds what the parallel searches returned. A nil slice
// means that search failed.
type SearchResults struct {
	Parts    []catalog.Part
	Repairs  []catalog.RepairGuide
	Articles []catalog.Article
}

// Pipeline searches the catalog and asks the model for an answer.
type Pipeline struct {
	search SearchBackend
	model  llm.Model
	logger *observability.Logger
	cfg    PipelineConfig
}

// NewPipeline creates the search-and-generate tier.
func NewPipeline(search SearchBackend, model llm.Model, logger *observability.Logger, cfg PipelineConfig) *Pipeline {
	def := DefaultPipelineConfig()
	if cfg.PartsLimit <= 0 {
		cfg.PartsLimit = def.PartsLimit
	}
	if cfg.RepairsLimit <= 0 {
		cfg.RepairsLimit = def.RepairsLimit
	}
	if cfg.ArticlesLimit <= 0 {
		cfg.ArticlesLimit = def.ArticlesLimit
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Pipeline{search: search, model: model, logger: logger, cfg: cfg}
}

// Run answers query for the conversation described by conv.
func (p *Pipeline) Run(ctx context.Context, query string, conv conversation.Context) (Answer, error) {
	start := time.Now()
	results := p.Search(ctx, query, conv)
	contextText := BuildContext(conv, results)

	genCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	response, err := p.generate(genCtx, query, contextText, historyTurns(conv.History, query))
	if err != nil {
		return Answer{}, err
	}

	p.logger.Debug().
		Int("parts", len(results.Parts)).
		Int("repairs", len(results.Repairs)).
		Int("articles", len(results.Articles)).
		Dur("duration", time.Since(start)).
		Msg("Pipeline answered")

	return Answer{
		Response:   response,
		Parts:      nonNil(results.Parts),
		Repairs:    nonNil(results.Repairs),
		Articles:   nonNil(results.Articles),
		Source:     SourcePipeline,
		Confidence: p.cfg.Confidence,
	}, nil
}

// Search runs the parts, repair and article searches concurrently. A failed
// search leaves its category nil and does not affect the others.
func (p *Pipeline) Search(ctx context.Context, query string, conv conversation.Context) SearchResults {
	var (
		wg  sync.WaitGroup
		out SearchResults
	)
	filter := catalog.Filter{}
	if conv.ApplianceType.Known() {
		filter.Appliance = conv.ApplianceType
	}

	wg.Add(3)
	go func() {
		defer wg.Done()
		defer p.recoverSearch("parts")
		parts, err := p.search.Search(ctx, query, filter, p.cfg.PartsLimit)
		if err != nil {
			p.logger.Warn().Err(err).Msg("Parts search failed")
			return
		}
		out.Parts = nonNil(parts)
	}()
	go func() {
		defer wg.Done()
		defer p.recoverSearch("repairs")
		repairs, err := p.search.SearchRepairs(ctx, query, conv.ApplianceType, p.cfg.RepairsLimit)
		if err != nil {
			p.logger.Warn().Err(err).Msg("Repair search failed")
			return
		}
		out.Repairs = nonNil(repairs)
	}()
	go func() {
		defer wg.Done()
		defer p.recoverSearch("articles")
		articles, err := p.search.SearchArticles(ctx, query, p.cfg.ArticlesLimit)
		if err != nil {
			p.logger.Warn().Err(err).Msg("Article search failed")
			return
		}
		out.Articles = nonNil(articles)
	}()
	wg.Wait()

	return out
}

// recoverSearch turns a panicking search into a failed one. It must be
// deferred directly by the search goroutine.
func (p *Pipeline) recoverSearch(search string) {
	if rec := recover(); rec != nil {
		p.logger.Error().
			Str("search", search).
			Str("panic", fmt.Sprint(rec)).
			Msg("Search panicked")
	}
}

// generate runs the bounded generate and validate loop. Rejected answers
// with feedback are regenerated with the feedback appended to the context;
// otherwise the latest answer is kept.
func (p *Pipeline) generate(ctx context.Context, query, contextText string, history []llm.Turn) (string, error) {
	var response string
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		var err error
		response, err = p.model.Generate(ctx, query, contextText, history)
		if err != nil {
			return "", domain.CollaboratorFailure(fmt.Sprintf("generation attempt %d", attempt), err)
		}

		verdict, err := p.model.Validate(ctx, query, response, contextText)
		if err != nil {
			p.logger.Warn().Err(err).Int("attempt", attempt).Msg("Validation failed, keeping answer")
			break
		}
		if verdict.Passed() {
			p.logger.Debug().Int("attempt", attempt).Msg("Answer passed validation")
			break
		}
		if verdict.Feedback == "" || attempt == p.cfg.MaxAttempts {
			p.logger.Warn().Int("attempt", attempt).Msg("Answer failed validation, using anyway")
			break
		}

		p.logger.Info().Int("attempt", attempt).Str("feedback", verdict.Feedback).Msg("Regenerating with feedback")
		contextText += "\n\nIMPROVEMENT NEEDED: " + verdict.Feedback
	}
	return response, nil
}

// BuildContext assembles the conversation summary and search sections
// handed to the model.
func BuildContext(conv conversation.Context, results SearchResults) string {
	var sections []string

	if len(results.Parts) > 0 {
		var b strings.Builder
		b.WriteString("=== RELEVANT PARTS FOUND ===\n")
		for i, part := range results.Parts {
			fmt.Fprintf(&b, "Part %d: %s\n", i+1, part.Name)
			fmt.Fprintf(&b, "  Part Number: %s\n", part.PartID)
			fmt.Fprintf(&b, "  Price: %s\n", formatPrice(part.Price))
			fmt.Fprintf(&b, "  Brand: %s\n", orDefault(part.Brand, "N/A"))
			if part.Symptoms != "" {
				fmt.Fprintf(&b, "  Fixes: %s\n", part.Symptoms)
			}
			if part.InstallDifficulty != "" {
				fmt.Fprintf(&b, "  Installation: %s (%s)\n", part.InstallDifficulty, orDefault(part.InstallTime, "Unknown time"))
			}
			if part.ProductURL != "" {
				fmt.Fprintf(&b, "  Product URL: %s\n", part.ProductURL)
			}
			b.WriteString("\n")
		}
		sections = append(sections, b.String())
	}

	if len(results.Repairs) > 0 {
		var b strings.Builder
		b.WriteString("=== REPAIR GUIDES ===\n")
		for i, r := range results.Repairs {
			fmt.Fprintf(&b, "Repair %d: %s\n", i+1, r.Title)
			if r.Symptom != "" {
				fmt.Fprintf(&b, "  Symptom: %s\n", r.Symptom)
			}
			fmt.Fprintf(&b, "  Description: %s\n", orDefault(r.Description, "N/A"))
			fmt.Fprintf(&b, "  Difficulty: %s\n", orDefault(r.Difficulty, "N/A"))
			if len(r.PartsNeeded) > 0 {
				fmt.Fprintf(&b, "  Parts Needed: %s\n", strings.Join(r.PartsNeeded, ", "))
			}
			if r.URL != "" {
				fmt.Fprintf(&b, "  Guide URL: %s\n", r.URL)
			}
			b.WriteString("\n")
		}
		sections = append(sections, b.String())
	}

	if len(results.Articles) > 0 {
		var b strings.Builder
		b.WriteString("=== HELPFUL ARTICLES ===\n")
		for i, a := range results.Articles {
			fmt.Fprintf(&b, "Article %d: %s\n", i+1, a.Title)
			if a.Description != "" {
				fmt.Fprintf(&b, "  Summary: %s\n", a.Description)
			}
			if a.URL != "" {
				fmt.Fprintf(&b, "  URL: %s\n", a.URL)
			}
			b.WriteString("\n")
		}
		sections = append(sections, b.String())
	}

	body := noResults
	if len(sections) > 0 {
		body = strings.TrimRight(strings.Join(sections, ""), "\n")
	}
	return conversation.RenderContext(conv) + "\n" + body
}

// historyTurns converts stored messages to model history, dropping the
// trailing copy of the query being answered.
func historyTurns(history []conversation.Message, query string) []llm.Turn {
	if n := len(history); n > 0 && history[n-1].Role == conversation.RoleUser && history[n-1].Content == query {
		history = history[:n-1]
	}
	turns := make([]llm.Turn, 0, len(history))
	for _, m := range history {
		turns = append(turns, llm.Turn{Role: string(m.Role), Content: m.Content})
	}
	return turns
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
