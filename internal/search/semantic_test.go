package search

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/appliance"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/catalog"
)

// bagOfWords returns a deterministic embedding where texts sharing
// normalized words land close together.
type bagOfWords struct {
	dims int
	fail atomic.Bool
}

func (b *bagOfWords) embed(_ context.Context, text string) ([]float32, error) {
	if b.fail.Load() {
		return nil, errors.New("embedding endpoint unavailable")
	}
	vec := make([]float32, b.dims)
	for _, w := range strings.Fields(catalog.Normalize(text)) {
		h := fnv.New32a()
		h.Write([]byte(w))
		vec[int(h.Sum32())%b.dims] += 1
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}

func testDataset() *catalog.Dataset {
	return &catalog.Dataset{
		Parts: []catalog.Part{
			{PartID: "PS11752778", Name: "Refrigerator Ice Maker Assembly", Brand: "Whirlpool",
				ApplianceTypes: "Refrigerator", Symptoms: "Ice maker not making ice"},
			{PartID: "PS10065979", Name: "Dishwasher Door Gasket", Brand: "Whirlpool",
				ApplianceTypes: "Dishwasher", Symptoms: "Leaking", CompatibleModels: []string{"WDT780SAEM1"}},
			{PartID: "PS3406971", Name: "Dishwasher Lower Rack Wheel", Brand: "GE",
				ApplianceTypes: "Dishwasher", Symptoms: "Door won't close"},
		},
		Repairs: []catalog.RepairGuide{
			{ID: "repair_0", ApplianceType: "Dishwasher", Symptom: "Leaking", Description: "Inspect the door gasket."},
			{ID: "repair_1", ApplianceType: "Refrigerator", Symptom: "Ice maker not making ice", Description: "Check the ice maker assembly."},
		},
		Articles: []catalog.Article{
			{ID: "blog_0", Title: "How to fix a leaking dishwasher", Description: "Find the leak."},
			{ID: "blog_1", Title: "Refrigerator ice maker troubleshooting", Description: "No ice?"},
		},
	}
}

func newTestStore(t *testing.T) (*SemanticStore, *bagOfWords) {
	t.Helper()
	ds := testDataset()
	emb := &bagOfWords{dims: 512}
	s, err := NewSemanticStore(context.Background(), catalog.NewMemoryCatalog(ds), ds, emb.embed, nil)
	require.NoError(t, err)
	return s, emb
}

func TestSemanticStore_Search(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	parts, err := s.Search(ctx, "refrigerator ice maker assembly", catalog.Filter{}, 2)
	require.NoError(t, err)
	require.NotEmpty(t, parts)
	assert.Equal(t, "PS11752778", parts[0].PartID)
	assert.LessOrEqual(t, len(parts), 2)

	parts, err = s.Search(ctx, "dishwasher", catalog.Filter{Appliance: appliance.Dishwasher}, 5)
	require.NoError(t, err)
	require.NotEmpty(t, parts)
	for _, p := range parts {
		assert.Equal(t, appliance.Dishwasher, p.Appliance())
	}

	parts, err = s.Search(ctx, "dishwasher", catalog.Filter{Brand: "GE"}, 5)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, "PS3406971", parts[0].PartID)
}

func TestSemanticStore_SearchRepairsFiltersAppliance(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	guides, err := s.SearchRepairs(ctx, "ice maker", appliance.Dishwasher, 3)
	require.NoError(t, err)
	for _, g := range guides {
		assert.Equal(t, "Dishwasher", g.ApplianceType)
	}

	guides, err = s.SearchRepairs(ctx, "ice maker not making ice", appliance.Unset, 1)
	require.NoError(t, err)
	require.Len(t, guides, 1)
	assert.Equal(t, "repair_1", guides[0].ID)
}

func TestSemanticStore_SearchArticles(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	articles, err := s.SearchArticles(ctx, "leaking dishwasher", 10)
	require.NoError(t, err)
	require.Len(t, articles, 2, "limit is clamped to the collection size")
	assert.Equal(t, "blog_0", articles[0].ID)
}

func TestSemanticStore_FallsBackToKeywordSearch(t *testing.T) {
	ctx := context.Background()
	s, emb := newTestStore(t)
	emb.fail.Store(true)

	parts, err := s.Search(ctx, "door gasket", catalog.Filter{}, 5)
	require.NoError(t, err)
	require.NotEmpty(t, parts)
	assert.Equal(t, "PS10065979", parts[0].PartID)

	guides, err := s.SearchRepairs(ctx, "door gasket", appliance.Dishwasher, 3)
	require.NoError(t, err)
	assert.Len(t, guides, 1)
}

func TestSemanticStore_Delegates(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	p, err := s.FindByIdentifier(ctx, "ps10065979")
	require.NoError(t, err)
	assert.Equal(t, "Dishwasher Door Gasket", p.Name)

	parts, err := s.PartsForModel(ctx, "WDT780SAEM1", 5)
	require.NoError(t, err)
	assert.Len(t, parts, 1)

	records, err := s.IndexRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}
