package retrieval

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/appliance"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/catalog"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/conversation"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/domain"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/extract"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/llm"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/observability"
)

// fakeBackend serves fixed results and can fail individual searches.
type fakeBackend struct {
	*catalog.MemoryCatalog

	mu          sync.Mutex
	filter      catalog.Filter
	repairKind  appliance.Type
	failParts    bool
	failRepairs  bool
	panicRepairs bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{MemoryCatalog: catalog.NewMemoryCatalog(testDataset())}
}

func (b *fakeBackend) Search(ctx context.Context, query string, filter catalog.Filter, limit int) ([]catalog.Part, error) {
	b.mu.Lock()
	b.filter = filter
	b.mu.Unlock()
	if b.failParts {
		return nil, errors.New("parts index offline")
	}
	return b.MemoryCatalog.Search(ctx, query, filter, limit)
}

func (b *fakeBackend) SearchRepairs(ctx context.Context, query string, kind appliance.Type, limit int) ([]catalog.RepairGuide, error) {
	b.mu.Lock()
	b.repairKind = kind
	b.mu.Unlock()
	if b.panicRepairs {
		panic("repairs backend exploded")
	}
	if b.failRepairs {
		return nil, errors.New("repairs index offline")
	}
	return b.MemoryCatalog.SearchRepairs(ctx, query, kind, limit)
}

func dishwasherContext() conversation.Context {
	return conversation.Context{
		ConversationID: "c1",
		ApplianceType:  appliance.Dishwasher,
		Symptoms:       []string{"leaking"},
		Stage:          conversation.StageDiagnosis,
		Completeness:   0.5,
		MissingInfo:    []string{conversation.MissingModelNumber},
	}
}

func newTestPipeline(backend SearchBackend, model llm.Model, cfg PipelineConfig) *Pipeline {
	return NewPipeline(backend, model, observability.NewNopLogger(), cfg)
}

func TestPipeline_SearchFiltersByConversationAppliance(t *testing.T) {
	backend := newFakeBackend()
	p := newTestPipeline(backend, &scriptedModel{}, PipelineConfig{})

	res := p.Search(context.Background(), "leaking door gasket", dishwasherContext())

	assert.Equal(t, appliance.Dishwasher, backend.filter.Appliance)
	assert.Equal(t, appliance.Dishwasher, backend.repairKind)
	require.NotEmpty(t, res.Parts)
	for _, part := range res.Parts {
		assert.Equal(t, appliance.Dishwasher, part.Appliance())
	}
	assert.NotEmpty(t, res.Repairs)
	assert.NotEmpty(t, res.Articles)
}

func TestPipeline_SearchFailureOmitsOnlyThatCategory(t *testing.T) {
	backend := newFakeBackend()
	backend.failRepairs = true
	p := newTestPipeline(backend, &scriptedModel{}, PipelineConfig{})

	res := p.Search(context.Background(), "leaking door gasket", dishwasherContext())
	assert.Nil(t, res.Repairs)
	assert.NotEmpty(t, res.Parts)
	assert.NotEmpty(t, res.Articles)

	text := BuildContext(dishwasherContext(), res)
	assert.Contains(t, text, "=== RELEVANT PARTS FOUND ===")
	assert.NotContains(t, text, "=== REPAIR GUIDES ===")
	assert.Contains(t, text, "=== HELPFUL ARTICLES ===")
}

func TestPipeline_SearchSurvivesPanickingBackend(t *testing.T) {
	backend := newFakeBackend()
	backend.panicRepairs = true
	p := newTestPipeline(backend, &scriptedModel{}, PipelineConfig{})

	var res SearchResults
	require.NotPanics(t, func() {
		res = p.Search(context.Background(), "leaking door gasket", dishwasherContext())
	})
	assert.Nil(t, res.Repairs)
	assert.NotEmpty(t, res.Parts)
	assert.NotEmpty(t, res.Articles)
}

func TestPipeline_PanickingSearchStillAnswersThroughRouter(t *testing.T) {
	logger := observability.NewNopLogger()
	extractor := extract.New()
	rc, err := NewResponseCache(100, logger)
	require.NoError(t, err)

	backend := newFakeBackend()
	backend.panicRepairs = true
	pipeline := newTestPipeline(backend, &scriptedModel{}, DefaultPipelineConfig())
	conversations := conversation.NewManager(extractor, logger, conversation.ManagerConfig{})
	router := NewRouter(logger, conversations, rc, nil, nil, pipeline, DefaultRouterConfig())

	res := router.Handle(context.Background(), "c1", "my dishwasher model WDT780SAEM1 makes a weird smell")

	assert.Equal(t, SourcePipeline, res.Source)
	assert.NoError(t, res.Err)
	assert.Empty(t, res.Repairs)
}

func TestBuildContext(t *testing.T) {
	ds := testDataset()
	text := BuildContext(dishwasherContext(), SearchResults{
		Parts:    ds.Parts[2:3],
		Repairs:  ds.Repairs,
		Articles: ds.Articles,
	})

	order := []string{
		"=== CONVERSATION CONTEXT ===",
		"=== END CONTEXT ===",
		"=== RELEVANT PARTS FOUND ===",
		"Part 1: Dishwasher Door Gasket",
		"  Part Number: PS10065979",
		"  Price: $24.50",
		"=== REPAIR GUIDES ===",
		"Repair 1: Dishwasher Leaking",
		"  Parts Needed: Door Gasket, Water Inlet Valve",
		"=== HELPFUL ARTICLES ===",
		"Article 1: How to fix a leaking dishwasher",
	}
	last := -1
	for _, s := range order {
		i := strings.Index(text, s)
		require.GreaterOrEqual(t, i, 0, "missing %q", s)
		assert.Greater(t, i, last, "%q out of order", s)
		last = i
	}

	empty := BuildContext(dishwasherContext(), SearchResults{})
	assert.True(t, strings.HasSuffix(empty, noResults))
}

func TestPipeline_RunAcceptsValidatedAnswer(t *testing.T) {
	model := &scriptedModel{answers: []string{"Replace the dishwasher door gasket PS10065979."}}
	p := newTestPipeline(newFakeBackend(), model, PipelineConfig{Confidence: 0.9})

	ans, err := p.Run(context.Background(), "my dishwasher is leaking", dishwasherContext())
	require.NoError(t, err)
	assert.Equal(t, "Replace the dishwasher door gasket PS10065979.", ans.Response)
	assert.Equal(t, SourcePipeline, ans.Source)
	assert.InDelta(t, 0.9, ans.Confidence, 1e-9)
	assert.NotNil(t, ans.Parts)
	assert.Equal(t, 1, model.gens)
	assert.Equal(t, 1, model.checks)
}

func TestPipeline_ValidationLoop(t *testing.T) {
	reject := func(feedback string) llm.Validation {
		return llm.Validation{IsAppropriate: true, StaysInScope: false, Feedback: feedback}
	}
	pass := llm.Validation{IsAppropriate: true, StaysInScope: true}

	t.Run("feedback is appended until the answer passes", func(t *testing.T) {
		model := &scriptedModel{
			answers:  []string{"first", "second", "third"},
			verdicts: []llm.Validation{reject("mention the part number"), reject("mention the price"), pass},
		}
		p := newTestPipeline(newFakeBackend(), model, PipelineConfig{MaxAttempts: 3})

		ans, err := p.Run(context.Background(), "leaking", dishwasherContext())
		require.NoError(t, err)
		assert.Equal(t, "third", ans.Response)
		require.Len(t, model.contexts, 3)
		assert.NotContains(t, model.contexts[0], "IMPROVEMENT NEEDED")
		assert.Contains(t, model.contexts[1], "\n\nIMPROVEMENT NEEDED: mention the part number")
		assert.Contains(t, model.contexts[2], "IMPROVEMENT NEEDED: mention the part number")
		assert.Contains(t, model.contexts[2], "IMPROVEMENT NEEDED: mention the price")
	})

	t.Run("attempts are bounded", func(t *testing.T) {
		model := &scriptedModel{
			answers:  []string{"first", "second", "third", "fourth"},
			verdicts: []llm.Validation{reject("try again")},
		}
		p := newTestPipeline(newFakeBackend(), model, PipelineConfig{MaxAttempts: 3})

		ans, err := p.Run(context.Background(), "leaking", dishwasherContext())
		require.NoError(t, err)
		assert.Equal(t, "third", ans.Response, "last attempt is accepted")
		assert.Equal(t, 3, model.gens)
	})

	t.Run("rejection without feedback keeps the answer", func(t *testing.T) {
		model := &scriptedModel{
			answers:  []string{"first", "second"},
			verdicts: []llm.Validation{{Hallucination: true}},
		}
		p := newTestPipeline(newFakeBackend(), model, PipelineConfig{MaxAttempts: 3})

		ans, err := p.Run(context.Background(), "leaking", dishwasherContext())
		require.NoError(t, err)
		assert.Equal(t, "first", ans.Response)
		assert.Equal(t, 1, model.gens)
	})
}

func TestPipeline_GenerationFailure(t *testing.T) {
	model := &scriptedModel{genErr: errors.New("model unavailable")}
	p := newTestPipeline(newFakeBackend(), model, PipelineConfig{})

	_, err := p.Run(context.Background(), "leaking", dishwasherContext())
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeCollaboratorFailure))
}

// blockingModel waits for its context to end.
type blockingModel struct{}

func (blockingModel) Generate(ctx context.Context, _, _ string, _ []llm.Turn) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (blockingModel) Validate(ctx context.Context, _, _, _ string) (llm.Validation, error) {
	return llm.Validation{}, nil
}

func TestPipeline_GenerationTimeout(t *testing.T) {
	p := newTestPipeline(newFakeBackend(), blockingModel{}, PipelineConfig{Timeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := p.Run(context.Background(), "leaking", dishwasherContext())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestHistoryTurns(t *testing.T) {
	history := []conversation.Message{
		{Role: conversation.RoleUser, Content: "my dishwasher leaks"},
		{Role: conversation.RoleAssistant, Content: "Where is the water coming from?"},
		{Role: conversation.RoleUser, Content: "under the door"},
	}

	turns := historyTurns(history, "under the door")
	require.Len(t, turns, 2)
	assert.Equal(t, llm.Turn{Role: "user", Content: "my dishwasher leaks"}, turns[0])
	assert.Equal(t, "assistant", turns[1].Role)

	assert.Len(t, historyTurns(history, "something else"), 3)
	assert.Empty(t, historyTurns(nil, "q"))
}
