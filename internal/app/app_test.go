package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/catalog"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/config"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/retrieval"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/search"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/storage"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Catalog = config.CatalogConfig{
		PartsPath:   "../catalog/testdata/parts.csv",
		RepairsPath: "../catalog/testdata/repairs.csv",
		BlogsPath:   "../catalog/testdata/blogs.csv",
	}
	cfg.LLM.APIKey = ""
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, opts Options) *App {
	t.Helper()
	a, err := New(context.Background(), cfg, nil, opts)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNew_InMemoryCatalog(t *testing.T) {
	a := newTestApp(t, testConfig(), Options{})

	assert.False(t, a.LLMEnabled)
	assert.Equal(t, 3, a.Index.PartCount())

	res := a.Router.Handle(context.Background(), "c1", "Is PS11752778 compatible with my WDT780SAEM1?")
	assert.Equal(t, retrieval.SourceFastLookup, res.Source)
	assert.Contains(t, res.Response, "NOT compatible")
}

func TestNew_OfflineModelAnswersFromCatalog(t *testing.T) {
	a := newTestApp(t, testConfig(), Options{})

	res := a.Router.Handle(context.Background(), "c1", "my dishwasher door gasket is leaking")
	require.NoError(t, res.Err)
	assert.Equal(t, retrieval.SourcePipeline, res.Source)
	assert.Contains(t, res.Response, "PS10065979")
}

func TestNew_SQLiteSeededFromCSV(t *testing.T) {
	cfg := testConfig()
	cfg.Database.Driver = "sqlite"
	cfg.Database.SQLite.Path = ":memory:"

	a := newTestApp(t, cfg, Options{})
	require.IsType(t, &storage.SQLStore{}, a.Store)

	n, err := a.Store.(*storage.SQLStore).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	part, err := a.Store.FindByIdentifier(context.Background(), "PS10065979")
	require.NoError(t, err)
	assert.Equal(t, "Dishwasher Door Gasket", part.Name)
}

func TestNew_FastLookupServedFromMemorySnapshot(t *testing.T) {
	cfg := testConfig()
	cfg.Database.Driver = "sqlite"
	cfg.Database.SQLite.Path = ":memory:"

	a := newTestApp(t, cfg, Options{})
	require.NotNil(t, a.Lookup)
	assert.Equal(t, 3, a.Lookup.Len())

	// With the database gone, the lookup tier must still answer.
	require.NoError(t, a.Close())
	_, err := a.Store.FindByIdentifier(context.Background(), "PS10065979")
	require.Error(t, err)

	ans, ok := a.FastLookup.Resolve(context.Background(), "how do I install PS10065979")
	require.True(t, ok)
	assert.Equal(t, retrieval.SourceFastLookup, ans.Source)
	assert.Contains(t, ans.Response, "Dishwasher Door Gasket")
}

func TestNew_SemanticSearchWrapsCatalog(t *testing.T) {
	cfg := testConfig()
	cfg.Search.Semantic = true

	embed := func(_ context.Context, text string) ([]float32, error) {
		v := []float32{0, 0, 0, 1}
		if len(text)%2 == 0 {
			v = []float32{0, 0, 1, 0}
		}
		return v, nil
	}

	a := newTestApp(t, cfg, Options{Embed: embed})
	require.IsType(t, &search.SemanticStore{}, a.Store)

	parts, err := a.Store.Search(context.Background(), "door gasket", catalog.Filter{}, 5)
	require.NoError(t, err)
	assert.NotEmpty(t, parts)
}

func TestNew_MissingCatalogFails(t *testing.T) {
	cfg := testConfig()
	cfg.Catalog.PartsPath = "does-not-exist.csv"

	_, err := New(context.Background(), cfg, nil, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load catalog")
}

func TestPruneConversationsStopsWithContext(t *testing.T) {
	a := newTestApp(t, testConfig(), Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		a.PruneConversations(ctx, 1)
		close(done)
	}()
	<-done
}
