package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/appliance"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/extract"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/observability"
)

func newTestResolver(t *testing.T) (*FastLookupResolver, *countingCatalog) {
	t.Helper()
	cat := newCountingCatalog()
	return NewFastLookupResolver(extract.New(), testIndex(t), cat, observability.NewNopLogger(), 0.7, 5), cat
}

func TestFastLookup_Detect(t *testing.T) {
	f, _ := newTestResolver(t)

	tests := []struct {
		query      string
		confidence float64
		compat     bool
		install    bool
	}{
		{"PS11739035", 0.8, false, false},
		{"WDT780SAEM1", 0.6, false, false},
		{"install steps for WDT780SAEM1", 0.8, false, true},
		{"Is PS11739035 compatible with my WDT780SAEM1?", 1.0, true, false},
		{"my fridge is broken", 0, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			d := f.Detect(tt.query)
			assert.InDelta(t, tt.confidence, d.Confidence, 1e-9)
			assert.Equal(t, tt.compat, d.Compatibility)
			assert.Equal(t, tt.install, d.Installation)
		})
	}
}

func TestFastLookup_InstantIncompatible(t *testing.T) {
	f, cat := newTestResolver(t)

	ans, ok := f.Resolve(context.Background(), "Is PS11739035 compatible with my WDT780SAEM1?")
	require.True(t, ok)
	assert.Equal(t, SourceFastLookup, ans.Source)
	assert.InDelta(t, 1.0, ans.Confidence, 1e-9)
	assert.Contains(t, ans.Response, "Part PS11739035 is NOT compatible with your WDT780SAEM1 model.")
	assert.Contains(t, ans.Response, "Refrigerator parts cannot be used in dishwashers.")
	assert.Empty(t, ans.Parts)
	assert.Equal(t, int32(0), cat.calls.Load(), "instant check never touches the catalog")
}

func TestFastLookup_InstantCompatible(t *testing.T) {
	f, cat := newTestResolver(t)

	ans, ok := f.Resolve(context.Background(), "will PS10065979 fit WDT780SAEM1")
	require.True(t, ok)
	assert.Contains(t, ans.Response, "Part PS10065979 is compatible with your WDT780SAEM1 model! Both are dishwasher components.")
	assert.Equal(t, int32(0), cat.calls.Load())
}

func TestFastLookup_CompatibilityIsDeterministic(t *testing.T) {
	f, _ := newTestResolver(t)
	d := f.Detect("Is PS11739035 compatible with WDT780SAEM1")

	first, ok := f.CheckCompatibility(d)
	require.True(t, ok)
	for i := 0; i < 10; i++ {
		again, ok := f.CheckCompatibility(d)
		require.True(t, ok)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, Compatibility{
		PartID:         "PS11739035",
		PartAppliance:  appliance.Refrigerator,
		ModelID:        "WDT780SAEM1",
		ModelAppliance: appliance.Dishwasher,
		Compatible:     false,
	}, first)
}

func TestFastLookup_CompatibilityNeverGuesses(t *testing.T) {
	f, cat := newTestResolver(t)
	ctx := context.Background()

	tests := []string{
		"Is PS99999999 compatible with WDT780SAEM1?",   // unknown part
		"Is PS11739035 compatible with ZQX12345?",      // unknown model prefix
		"Is PS11739035 compatible with my dishwasher?", // no model at all
	}
	for _, q := range tests {
		t.Run(q, func(t *testing.T) {
			_, ok := f.Resolve(ctx, q)
			assert.False(t, ok)
		})
	}
	assert.Equal(t, int32(0), cat.calls.Load(), "compatibility phrasing never falls back to the catalog")
}

func TestFastLookup_InstallGuide(t *testing.T) {
	f, _ := newTestResolver(t)

	ans, ok := f.Resolve(context.Background(), "How do I install PS10065979?")
	require.True(t, ok)
	assert.Contains(t, ans.Response, "**Installation Steps for Dishwasher Door Gasket (Part #PS10065979)**")
	assert.Contains(t, ans.Response, "- Installation Difficulty: Really Easy")
	assert.Contains(t, ans.Response, "- Price: $24.50")
	assert.Contains(t, ans.Response, "Check product page for video")
	assert.Contains(t, ans.Response, "https://example.com/PS10065979")
	require.Len(t, ans.Parts, 1)
	assert.Equal(t, "PS10065979", ans.Parts[0].PartID)

	ans, ok = f.Resolve(context.Background(), "replacement steps for PS11752778")
	require.True(t, ok)
	assert.Contains(t, ans.Response, "https://example.com/v/1")
}

func TestFastLookup_PartInfo(t *testing.T) {
	f, _ := newTestResolver(t)

	ans, ok := f.Resolve(context.Background(), "tell me about PS10065979")
	require.True(t, ok)
	assert.Contains(t, ans.Response, "**Dishwasher Door Gasket - Part #PS10065979**")
	assert.Contains(t, ans.Response, "- Appliance Type: Dishwasher")
	assert.Contains(t, ans.Response, "Leaking | Door won't close")
	assert.Contains(t, ans.Response, "View full details: https://example.com/PS10065979")
}

func TestFastLookup_PartWithoutIntentDeclines(t *testing.T) {
	f, _ := newTestResolver(t)
	_, ok := f.Resolve(context.Background(), "PS10065979")
	assert.False(t, ok)

	_, ok = f.Resolve(context.Background(), "tell me about PS00000001")
	assert.False(t, ok, "unknown part")
}

func TestFastLookup_ModelParts(t *testing.T) {
	f, _ := newTestResolver(t)

	ans, ok := f.Resolve(context.Background(), "show me parts for WDT780SAEM1")
	require.True(t, ok)
	assert.Contains(t, ans.Response, "**Parts Available for Model WDT780SAEM1:**")
	assert.Contains(t, ans.Response, "Found 2 compatible parts:")
	assert.Contains(t, ans.Response, "1. **Dishwasher Door Gasket** (#PS10065979) - $24.50")
	assert.Len(t, ans.Parts, 2)

	_, ok = f.Resolve(context.Background(), "what parts for WDT780SAEM1")
	assert.False(t, ok, "a model alone does not clear the detection gate")
}

func TestFastLookup_CatalogFailureIsAMiss(t *testing.T) {
	f, cat := newTestResolver(t)
	cat.fail = true

	_, ok := f.Resolve(context.Background(), "tell me about PS10065979")
	assert.False(t, ok)
	_, ok = f.Resolve(context.Background(), "show me parts for WDT780SAEM1")
	assert.False(t, ok)
	assert.Equal(t, int32(2), cat.calls.Load())
}

func TestCompatibilityMessage(t *testing.T) {
	msg := CompatibilityMessage(Compatibility{
		PartID:         "PS10065979",
		PartAppliance:  appliance.Dishwasher,
		ModelID:        "WRF555SDFZ",
		ModelAppliance: appliance.Refrigerator,
	})
	assert.Equal(t, "Part PS10065979 is NOT compatible with your WRF555SDFZ model. PS10065979 is a dishwasher part, "+
		"but WRF555SDFZ is a refrigerator model. Dishwasher parts cannot be used in refrigerators. "+
		"What specific issue are you trying to fix with your WRF555SDFZ? I can help find the right refrigerator parts.", msg)
}
