package retrieval

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/appliance"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/catalog"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/conversation"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/extract"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/llm"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/observability"
)

func testDataset() *catalog.Dataset {
	return &catalog.Dataset{
		Parts: []catalog.Part{
			{
				PartID:            "PS11739035",
				Name:              "Refrigerator Crisper Drawer",
				Price:             "41.25",
				Brand:             "Whirlpool",
				ApplianceTypes:    "Refrigerator",
				Symptoms:          "Drawer cracked | Drawer won't slide",
				ProductURL:        "https://example.com/PS11739035",
				InstallDifficulty: "Really Easy",
				InstallTime:       "Less than 15 mins",
				CompatibleModels:  []string{"WRF555SDFZ"},
			},
			{
				PartID:            "PS11752778",
				Name:              "Refrigerator Ice Maker Assembly",
				Price:             "89.95",
				Brand:             "Whirlpool",
				ApplianceTypes:    "Refrigerator",
				Symptoms:          "Ice maker not making ice | Leaking",
				ProductURL:        "https://example.com/PS11752778",
				InstallDifficulty: "Easy",
				InstallTime:       "15 - 30 mins",
				InstallVideoURL:   "https://example.com/v/1",
				CompatibleModels:  []string{"WRF555SDFZ", "WRS325SDHZ"},
			},
			{
				PartID:            "PS10065979",
				Name:              "Dishwasher Door Gasket",
				Price:             "24.50",
				Brand:             "Whirlpool",
				ApplianceTypes:    "Dishwasher",
				Symptoms:          "Leaking | Door won't close",
				ProductURL:        "https://example.com/PS10065979",
				Availability:      "In Stock",
				InstallDifficulty: "Really Easy",
				InstallTime:       "Less than 15 mins",
				CompatibleModels:  []string{"WDT780SAEM1", "WDF520PADM"},
			},
			{
				PartID:           "PS11722130",
				Name:             "Water Inlet Valve",
				Price:            "45.00",
				Brand:            "Whirlpool",
				ApplianceTypes:   "Dishwasher",
				Symptoms:         "Not draining",
				ProductURL:       "https://example.com/PS11722130",
				CompatibleModels: []string{"WDT780SAEM1"},
			},
		},
		Repairs: []catalog.RepairGuide{
			{
				ID:            "r1",
				Title:         "Dishwasher Leaking",
				ApplianceType: "Dishwasher",
				Symptom:       "Leaking",
				Description:   "Check the door gasket and the water inlet valve.",
				Difficulty:    "Easy",
				PartsNeeded:   []string{"Door Gasket", "Water Inlet Valve"},
			},
		},
		Articles: []catalog.Article{
			{ID: "a1", Title: "How to fix a leaking dishwasher", URL: "https://example.com/blog/leak", Description: "Leaks usually start at the door gasket."},
		},
	}
}

// countingCatalog wraps a catalog and counts calls. When fail is set every
// call errors; when explode is set every call panics.
type countingCatalog struct {
	inner   *catalog.MemoryCatalog
	calls   atomic.Int32
	fail    bool
	explode bool
}

func newCountingCatalog() *countingCatalog {
	return &countingCatalog{inner: catalog.NewMemoryCatalog(testDataset())}
}

func (c *countingCatalog) enter() error {
	c.calls.Add(1)
	if c.explode {
		panic("catalog exploded")
	}
	if c.fail {
		return errors.New("catalog unavailable")
	}
	return nil
}

func (c *countingCatalog) FindByIdentifier(ctx context.Context, id string) (*catalog.Part, error) {
	if err := c.enter(); err != nil {
		return nil, err
	}
	return c.inner.FindByIdentifier(ctx, id)
}

func (c *countingCatalog) Search(ctx context.Context, query string, filter catalog.Filter, limit int) ([]catalog.Part, error) {
	if err := c.enter(); err != nil {
		return nil, err
	}
	return c.inner.Search(ctx, query, filter, limit)
}

func (c *countingCatalog) PartsForModel(ctx context.Context, model string, limit int) ([]catalog.Part, error) {
	if err := c.enter(); err != nil {
		return nil, err
	}
	return c.inner.PartsForModel(ctx, model, limit)
}

func testIndex(t *testing.T) *appliance.PrefixIndex {
	t.Helper()
	records, err := catalog.NewMemoryCatalog(testDataset()).IndexRecords(context.Background())
	require.NoError(t, err)
	return appliance.NewPrefixIndex(records, nil)
}

// scriptedModel returns canned answers and verdicts in order, repeating the
// last one when the script runs out.
type scriptedModel struct {
	mu       sync.Mutex
	answers  []string
	verdicts []llm.Validation
	genErr   error
	contexts []string
	gens     int
	checks   int
}

func (m *scriptedModel) Generate(ctx context.Context, query, contextText string, history []llm.Turn) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contexts = append(m.contexts, contextText)
	m.gens++
	if m.genErr != nil {
		return "", m.genErr
	}
	if len(m.answers) == 0 {
		return "Here is a refrigerator answer.", nil
	}
	return m.answers[min(m.gens, len(m.answers))-1], nil
}

func (m *scriptedModel) Validate(ctx context.Context, query, response, contextText string) (llm.Validation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks++
	if len(m.verdicts) == 0 {
		return llm.Validation{IsAppropriate: true, StaysInScope: true}, nil
	}
	return m.verdicts[min(m.checks, len(m.verdicts))-1], nil
}

// stubPipeline is a FullSearch with a call counter.
type stubPipeline struct {
	calls   atomic.Int32
	err     error
	explode bool
}

func (p *stubPipeline) Run(ctx context.Context, query string, conv conversation.Context) (Answer, error) {
	p.calls.Add(1)
	if p.explode {
		panic("pipeline exploded")
	}
	if p.err != nil {
		return Answer{}, p.err
	}
	return Answer{
		Response:   "Generated answer for: " + query,
		Parts:      []catalog.Part{},
		Repairs:    []catalog.RepairGuide{},
		Articles:   []catalog.Article{},
		Source:     SourcePipeline,
		Confidence: 0.9,
	}, nil
}

type routerFixture struct {
	router   *Router
	cache    *ResponseCache
	catalog  *countingCatalog
	pipeline *stubPipeline
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	logger := observability.NewNopLogger()
	extractor := extract.New()

	rc, err := NewResponseCache(100, logger)
	require.NoError(t, err)

	cat := newCountingCatalog()
	pipeline := &stubPipeline{}
	fast := NewFastLookupResolver(extractor, testIndex(t), cat, logger, 0.7, 5)
	patterns := NewPatternResponder(extractor, PatternThresholds{Generic: 0.6, PartLookup: 0.8, Compatibility: 0.3})
	conversations := conversation.NewManager(extractor, logger, conversation.ManagerConfig{})

	return &routerFixture{
		router:   NewRouter(logger, conversations, rc, fast, patterns, pipeline, DefaultRouterConfig()),
		cache:    rc,
		catalog:  cat,
		pipeline: pipeline,
	}
}
