package retrieval

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/appliance"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/conversation"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/domain"
)

func TestRouter_FridgeNotCoolingUsesPattern(t *testing.T) {
	f := newRouterFixture(t)

	res := f.router.Handle(context.Background(), "c1", "My fridge is not cooling")

	assert.Equal(t, SourcePattern, res.Source)
	assert.InDelta(t, 0.95, res.Confidence, 1e-9)
	assert.Contains(t, res.Response, "cooling issue")
	assert.Equal(t, appliance.Refrigerator, res.Context.ApplianceType)
	assert.Equal(t, []string{"not_cooling"}, res.Context.Symptoms)
	assert.Equal(t, conversation.StageDiagnosis, res.Context.Stage)
	assert.NoError(t, res.Err)
	assert.Equal(t, int32(0), f.pipeline.calls.Load())
}

func TestRouter_RepeatedQueryHitsCache(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()

	first := f.router.Handle(ctx, "c1", "My fridge is not cooling")
	require.NotEqual(t, SourceCache, first.Source)

	before := f.router.Metrics().Snapshot()
	second := f.router.Handle(ctx, "c1", "My fridge is not cooling")
	after := f.router.Metrics().Snapshot()

	assert.Equal(t, SourceCache, second.Source)
	assert.Equal(t, first.Response, second.Response)
	assert.Equal(t, before.Calls[SourceFastLookup], after.Calls[SourceFastLookup], "fast lookup skipped on a cache hit")
	assert.Equal(t, before.Calls[SourcePattern], after.Calls[SourcePattern], "patterns skipped on a cache hit")
	assert.Equal(t, before.Calls[SourceCache]+1, after.Calls[SourceCache])
}

func TestRouter_SeededCacheAnswersNewConversation(t *testing.T) {
	f := newRouterFixture(t)

	res := f.router.Handle(context.Background(), "brand-new", "Refrigerator not cooling")

	assert.Equal(t, SourceCache, res.Source)
	assert.Equal(t, int64(0), f.router.Metrics().Snapshot().Calls[SourceFastLookup])
}

func TestRouter_DefaultConversationAnswersStayPrivate(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()
	query := "my dishwasher model WDT780SAEM1 makes a weird smell"

	first := f.router.Handle(ctx, "default", query)
	require.Equal(t, SourcePipeline, first.Source)

	second := f.router.Handle(ctx, "someone-else", query)
	assert.Equal(t, SourcePipeline, second.Source)
	assert.Equal(t, int32(2), f.pipeline.calls.Load())
}

func TestRouter_InstantIncompatibility(t *testing.T) {
	f := newRouterFixture(t)

	res := f.router.Handle(context.Background(), "c1", "Is PS11739035 compatible with my WDT780SAEM1?")

	assert.Equal(t, SourceFastLookup, res.Source)
	assert.InDelta(t, 1.0, res.Confidence, 1e-9)
	assert.Contains(t, res.Response, "NOT compatible")
	assert.Equal(t, int32(0), f.catalog.calls.Load(), "no catalog search")
	assert.Equal(t, int32(0), f.pipeline.calls.Load())
	assert.Equal(t, conversation.StageCompatibilityCheck, res.Context.Stage)

	cached, ok := f.cache.Get("Is PS11739035 compatible with my WDT780SAEM1?", "c1")
	require.True(t, ok, "fast lookup answers are cached")
	assert.Equal(t, res.Response, cached.Response)
}

func TestRouter_AppliancePinnedAndMismatchSurfaced(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()

	f.router.Handle(ctx, "c1", "My refrigerator ice maker is broken")
	res := f.router.Handle(ctx, "c1", "also my dishwasher needs help")

	assert.Equal(t, appliance.Refrigerator, res.Context.ApplianceType)
	require.Len(t, res.Mismatches, 1)
	assert.Equal(t, "refrigerator", res.Mismatches[0].Established)
	assert.Equal(t, "dishwasher", res.Mismatches[0].Observed)
}

func TestRouter_PatternOnlyOnFirstUserMessage(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()

	f.router.Handle(ctx, "c1", "hello")
	res := f.router.Handle(ctx, "c1", "my dishwasher is not draining")

	assert.Equal(t, SourcePipeline, res.Source)
	assert.Equal(t, int32(2), f.pipeline.calls.Load())
}

func TestRouter_SpecificTokensBlockPatterns(t *testing.T) {
	tests := []struct {
		message string
		want    Source
	}{
		{"My GE fridge is not cooling", SourcePipeline},
		{"my bosch dishwasher is not draining", SourcePipeline},
		{"which model of ice maker is not working", SourcePipeline},
		{"my fridge is not cooling at all", SourcePattern}, // "ge" inside "fridge" is not a token
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			f := newRouterFixture(t)
			res := f.router.Handle(context.Background(), "c1", tt.message)
			assert.Equal(t, tt.want, res.Source)
		})
	}
}

func TestRouter_LowConfidencePatternEscalates(t *testing.T) {
	f := newRouterFixture(t)

	// The leaking rule scores 0.85, below the 0.9 acceptance threshold.
	res := f.router.Handle(context.Background(), "c1", "puddle under my dishwasher")

	assert.Equal(t, SourcePipeline, res.Source)
	assert.Equal(t, "Generated answer for: puddle under my dishwasher", res.Response)

	again := f.router.Handle(context.Background(), "c1", "puddle under my dishwasher")
	assert.Equal(t, SourceCache, again.Source, "pipeline answers are cached")
	assert.Equal(t, int32(1), f.pipeline.calls.Load())
}

func TestRouter_TierPanicIsAMiss(t *testing.T) {
	f := newRouterFixture(t)
	f.catalog.explode = true

	res := f.router.Handle(context.Background(), "c1", "how do I install PS11752778")

	assert.Equal(t, SourcePipeline, res.Source)
	stats := f.router.Metrics().Snapshot()
	assert.Equal(t, int64(1), stats.Failures[SourceFastLookup])
	assert.Equal(t, int64(1), stats.Hits[SourcePipeline])
}

func TestRouter_AllTiersFailing(t *testing.T) {
	for name, configure := range map[string]func(*stubPipeline){
		"error": func(p *stubPipeline) { p.err = domain.CollaboratorFailure("generation timed out", context.DeadlineExceeded) },
		"panic": func(p *stubPipeline) { p.explode = true },
	} {
		t.Run(name, func(t *testing.T) {
			f := newRouterFixture(t)
			configure(f.pipeline)

			res := f.router.Handle(context.Background(), "c1", "something unusual about my appliance")

			assert.Equal(t, SourceExhausted, res.Source)
			assert.Equal(t, apology, res.Response)
			assert.Empty(t, res.Parts)
			assert.Empty(t, res.Repairs)
			assert.Empty(t, res.Articles)
			require.Error(t, res.Err)
			assert.True(t, domain.IsType(res.Err, domain.ErrorTypePipelineExhausted))
			assert.Equal(t, int64(1), f.router.Metrics().Snapshot().Exhausted)

			_, cached := f.cache.Get("something unusual about my appliance", "c1")
			assert.False(t, cached, "apologies are never cached")
		})
	}
}

func TestRouter_RecordsBothSidesOfTheExchange(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()

	res := f.router.Handle(ctx, "c1", "My fridge is not cooling")

	history := f.router.Conversations().History(ctx, "c1")
	require.Len(t, history, 2)
	assert.Equal(t, conversation.RoleUser, history[0].Role)
	assert.Equal(t, conversation.RoleAssistant, history[1].Role)
	assert.Equal(t, res.Response, history[1].Content)
	assert.Equal(t, []string{"What's the model number of your refrigerator? You can usually find it on a sticker inside the appliance."},
		res.SuggestedQuestions)
}

func TestRouter_ConcurrentConversations(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", i)
			msg := "My fridge is not cooling"
			if i%2 == 1 {
				msg = "My dishwasher is not draining"
			}
			f.router.Handle(ctx, id, msg)
			f.router.Handle(ctx, id, "the dishwasher and the fridge both")
		}(i)
	}
	wg.Wait()

	for i := 0; i < 20; i++ {
		c, ok := f.router.Conversations().Get(ctx, fmt.Sprintf("c%d", i))
		require.True(t, ok)
		want := appliance.Refrigerator
		if i%2 == 1 {
			want = appliance.Dishwasher
		}
		assert.Equal(t, want, c.ApplianceType)
		assert.Equal(t, 4, c.MessageCount)
	}
	assert.Equal(t, int64(40), f.router.Metrics().Snapshot().Requests)
}

func TestRouter_HasSpecificToken(t *testing.T) {
	r := NewRouter(nil, conversation.NewManager(nil, nil, conversation.ManagerConfig{}), nil, nil, nil, nil, DefaultRouterConfig())

	assert.True(t, r.HasSpecificToken("Which PART do I need"))
	assert.True(t, r.HasSpecificToken("ps: it's a Whirlpool"))
	assert.False(t, r.HasSpecificToken("my fridge has spare parts"))
	assert.False(t, r.HasSpecificToken("the gear is stuck"))
}

func TestRouter_NoTiersConfigured(t *testing.T) {
	r := NewRouter(nil, conversation.NewManager(nil, nil, conversation.ManagerConfig{}), nil, nil, nil, nil, DefaultRouterConfig())

	res := r.Handle(context.Background(), "c1", "anything")
	assert.Equal(t, SourceExhausted, res.Source)
	assert.True(t, domain.IsType(res.Err, domain.ErrorTypePipelineExhausted))
}
