package retrieval

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/conversation"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/domain"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/observability"
)

// FullSearch is the last tier: search plus generation.
type FullSearch interface {
	Run(ctx context.Context, query string, conv conversation.Context) (Answer, error)
}

// RouterConfig holds router configuration.
type RouterConfig struct {
	// PatternAcceptConfidence is the confidence a pattern response must
	// exceed to be returned.
	PatternAcceptConfidence float64
	// SpecificTokens are whole words that mark a query as too specific for
	// a canned pattern response.
	SpecificTokens []string
}

// DefaultRouterConfig returns the thresholds used by the assistant.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		PatternAcceptConfidence: 0.9,
		SpecificTokens:          []string{"part", "ps", "model", "whirlpool", "ge", "bosch"},
	}
}

// Result is a routed answer plus the conversation state it was produced in.
type Result struct {
	Answer
	ConversationID     string                  `json:"conversation_id"`
	Context            conversation.Context    `json:"-"`
	Mismatches         []conversation.Mismatch `json:"mismatches,omitempty"`
	SuggestedQuestions []string                `json:"suggested_questions"`
	Duration           time.Duration           `json:"-"`
	// Err is set when every tier failed.
	Err error `json:"-"`
}

// RouterStats counts tier activity since startup.
type RouterStats struct {
	Requests  int64            `json:"requests"`
	Calls     map[Source]int64 `json:"tier_calls"`
	Hits      map[Source]int64 `json:"tier_hits"`
	Failures  map[Source]int64 `json:"tier_failures"`
	Exhausted int64            `json:"exhausted"`
}

// RouterMetrics tracks per-tier call counts.
type RouterMetrics struct {
	mu        sync.Mutex
	requests  int64
	calls     map[Source]int64
	hits      map[Source]int64
	failures  map[Source]int64
	exhausted int64
}

// NewRouterMetrics creates a new metrics tracker.
func NewRouterMetrics() *RouterMetrics {
	return &RouterMetrics{
		calls:    make(map[Source]int64),
		hits:     make(map[Source]int64),
		failures: make(map[Source]int64),
	}
}

func (m *RouterMetrics) add(counter map[Source]int64, tier Source) {
	m.mu.Lock()
	counter[tier]++
	m.mu.Unlock()
}

// Snapshot copies the counters.
func (m *RouterMetrics) Snapshot() RouterStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := RouterStats{
		Requests:  m.requests,
		Calls:     make(map[Source]int64, len(m.calls)),
		Hits:      make(map[Source]int64, len(m.hits)),
		Failures:  make(map[Source]int64, len(m.failures)),
		Exhausted: m.exhausted,
	}
	for k, v := range m.calls {
		s.Calls[k] = v
	}
	for k, v := range m.hits {
		s.Hits[k] = v
	}
	for k, v := range m.failures {
		s.Failures[k] = v
	}
	return s
}

// Router sends each message through the cache, fast lookup, pattern and
// full search tiers in that order and returns the first answer.
type Router struct {
	logger        *observability.Logger
	conversations *conversation.Manager
	cache         *ResponseCache
	fast          *FastLookupResolver
	patterns      *PatternResponder
	pipeline      FullSearch
	config        RouterConfig
	specific      *regexp.Regexp
	metrics       *RouterMetrics
}

// NewRouter creates a new query router. Any tier except the conversation
// manager may be nil, in which case it is skipped.
func NewRouter(
	logger *observability.Logger,
	conversations *conversation.Manager,
	cache *ResponseCache,
	fast *FastLookupResolver,
	patterns *PatternResponder,
	pipeline FullSearch,
	cfg RouterConfig,
) *Router {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	if cfg.PatternAcceptConfidence <= 0 {
		cfg.PatternAcceptConfidence = DefaultRouterConfig().PatternAcceptConfidence
	}
	if cfg.SpecificTokens == nil {
		cfg.SpecificTokens = DefaultRouterConfig().SpecificTokens
	}

	return &Router{
		logger:        logger,
		conversations: conversations,
		cache:         cache,
		fast:          fast,
		patterns:      patterns,
		pipeline:      pipeline,
		config:        cfg,
		specific:      wordSet(cfg.SpecificTokens),
		metrics:       NewRouterMetrics(),
	}
}

// Metrics returns the router's counters.
func (r *Router) Metrics() *RouterMetrics {
	return r.metrics
}

// Cache returns the response cache, which may be nil.
func (r *Router) Cache() *ResponseCache {
	return r.cache
}

// Conversations returns the conversation manager.
func (r *Router) Conversations() *conversation.Manager {
	return r.conversations
}

// Handle records message in the conversation and resolves it. It never
// returns an error: when every tier fails the answer is an apology and
// Result.Err describes the failure.
func (r *Router) Handle(ctx context.Context, conversationID, message string) Result {
	start := time.Now()
	log := r.logger.WithConversation(conversationID)

	r.metrics.mu.Lock()
	r.metrics.requests++
	r.metrics.mu.Unlock()

	conv, mismatches := r.conversations.Update(ctx, conversationID, message, conversation.RoleUser)

	answer, err := r.resolve(ctx, log, conversationID, message, conv)
	if err != nil {
		log.Error().Err(err).Msg("All tiers failed")
	}

	r.conversations.Update(ctx, conversationID, answer.Response, conversation.RoleAssistant)

	res := Result{
		Answer:             answer,
		ConversationID:     conversationID,
		Context:            conv,
		Mismatches:         mismatches,
		SuggestedQuestions: conversation.SuggestedQuestionsFor(conv),
		Duration:           time.Since(start),
		Err:                err,
	}
	log.Info().
		Str("source", string(answer.Source)).
		Float64("confidence", answer.Confidence).
		Dur("duration", res.Duration).
		Msg("Query routed")
	return res
}

func (r *Router) resolve(ctx context.Context, log *observability.Logger, conversationID, message string, conv conversation.Context) (Answer, error) {
	if r.cache != nil {
		ans, err := r.runTier(log, SourceCache, func() (*Answer, error) {
			cached, ok := r.cache.Get(message, conversationID)
			if !ok {
				return nil, nil
			}
			a := cached.Answer
			a.Source = SourceCache
			return &a, nil
		})
		if err == nil && ans != nil {
			return *ans, nil
		}
	}

	if r.fast != nil {
		ans, err := r.runTier(log, SourceFastLookup, func() (*Answer, error) {
			a, ok := r.fast.Resolve(ctx, message)
			if !ok {
				return nil, nil
			}
			return a, nil
		})
		if err == nil && ans != nil {
			r.store(message, conversationID, *ans)
			return *ans, nil
		}
	}

	if r.patterns != nil {
		ans, err := r.runTier(log, SourcePattern, func() (*Answer, error) {
			pr := r.patterns.Respond(message, conv.ApplianceType)
			if !r.acceptPattern(pr, message, conv) {
				log.Debug().
					Str("rule", pr.Rule).
					Float64("confidence", pr.Confidence).
					Msg("Pattern response not accepted")
				return nil, nil
			}
			return &Answer{
				Response:   pr.Response,
				Source:     SourcePattern,
				Confidence: pr.Confidence,
			}, nil
		})
		if err == nil && ans != nil {
			a := ans.clone()
			r.store(message, conversationID, a)
			return a, nil
		}
	}

	var lastErr error
	if r.pipeline != nil {
		ans, err := r.runTier(log, SourcePipeline, func() (*Answer, error) {
			a, err := r.pipeline.Run(ctx, message, conv)
			if err != nil {
				return nil, err
			}
			return &a, nil
		})
		if err == nil && ans != nil {
			r.store(message, conversationID, *ans)
			return *ans, nil
		}
		lastErr = err
	}

	r.metrics.mu.Lock()
	r.metrics.exhausted++
	r.metrics.mu.Unlock()
	return exhausted(), domain.PipelineExhausted("no tier produced an answer", lastErr)
}

// runTier invokes one tier, converting errors and panics into a miss.
func (r *Router) runTier(log *observability.Logger, tier Source, fn func() (*Answer, error)) (ans *Answer, err error) {
	r.metrics.add(r.metrics.calls, tier)
	log = log.WithTier(string(tier))
	defer func() {
		if rec := recover(); rec != nil {
			ans = nil
			err = domain.CollaboratorFailure(fmt.Sprintf("%s tier panicked: %v", tier, rec), nil)
		}
		switch {
		case err != nil:
			r.metrics.add(r.metrics.failures, tier)
			log.Warn().Err(err).Msg("Tier failed, escalating")
		case ans != nil:
			r.metrics.add(r.metrics.hits, tier)
			log.Debug().Msg("Tier answered")
		}
	}()
	return fn()
}

// acceptPattern gates canned responses to confident matches on the first
// user message of a query without specific identifiers.
func (r *Router) acceptPattern(pr PatternResponse, message string, conv conversation.Context) bool {
	if pr.Response == "" || pr.Confidence <= r.config.PatternAcceptConfidence {
		return false
	}
	if conv.UserMessageCount > 1 {
		return false
	}
	return !r.HasSpecificToken(message)
}

// HasSpecificToken reports whether message contains one of the configured
// specific tokens as a whole word.
func (r *Router) HasSpecificToken(message string) bool {
	return r.specific != nil && r.specific.MatchString(strings.ToLower(message))
}

func (r *Router) store(message, conversationID string, a Answer) {
	if r.cache != nil {
		r.cache.Put(message, conversationID, a)
	}
}

func wordSet(words []string) *regexp.Regexp {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(strings.ToLower(w)); w != "" {
			quoted = append(quoted, regexp.QuoteMeta(w))
		}
	}
	if len(quoted) == 0 {
		return nil
	}
	return regexp.MustCompile(`\b(` + strings.Join(quoted, "|") + `)\b`)
}
