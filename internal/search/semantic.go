// Package search adds embedding-based ranking on top of a catalog store.
package search

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	chromem "github.com/philippgille/chromem-go"

	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/appliance"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/catalog"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/observability"
)

const (
	partsCollection    = "parts"
	repairsCollection  = "repairs"
	articlesCollection = "articles"

	// overfetch widens the vector query so post-filters still fill limit.
	overfetch = 3
)

// EmbeddingConfig configures an OpenAI-compatible embeddings endpoint.
type EmbeddingConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// NewOpenAIEmbeddingFunc returns an embedding function backed by an
// OpenAI-compatible API.
func NewOpenAIEmbeddingFunc(cfg EmbeddingConfig) chromem.EmbeddingFunc {
	return chromem.NewEmbeddingFuncOpenAICompat(cfg.BaseURL, cfg.APIKey, cfg.Model, nil)
}

// SemanticStore ranks parts, repair guides and articles by embedding
// similarity. Exact lookups and model listings go to the wrapped store, and
// any vector failure falls back to the wrapped store's keyword search.
type SemanticStore struct {
	base   catalog.Store
	logger *observability.Logger

	parts    *chromem.Collection
	repairs  *chromem.Collection
	articles *chromem.Collection

	partsByID    map[string]catalog.Part
	repairsByID  map[string]catalog.RepairGuide
	articlesByID map[string]catalog.Article
}

// NewSemanticStore embeds ds into in-memory collections.
func NewSemanticStore(ctx context.Context, base catalog.Store, ds *catalog.Dataset, ef chromem.EmbeddingFunc, logger *observability.Logger) (*SemanticStore, error) {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	db := chromem.NewDB()

	s := &SemanticStore{
		base:         base,
		logger:       logger,
		partsByID:    make(map[string]catalog.Part, len(ds.Parts)),
		repairsByID:  make(map[string]catalog.RepairGuide, len(ds.Repairs)),
		articlesByID: make(map[string]catalog.Article, len(ds.Articles)),
	}

	var err error
	if s.parts, err = db.GetOrCreateCollection(partsCollection, nil, ef); err != nil {
		return nil, fmt.Errorf("create parts collection: %w", err)
	}
	if s.repairs, err = db.GetOrCreateCollection(repairsCollection, nil, ef); err != nil {
		return nil, fmt.Errorf("create repairs collection: %w", err)
	}
	if s.articles, err = db.GetOrCreateCollection(articlesCollection, nil, ef); err != nil {
		return nil, fmt.Errorf("create articles collection: %w", err)
	}

	concurrency := runtime.NumCPU()

	partDocs := make([]chromem.Document, 0, len(ds.Parts))
	for _, p := range ds.Parts {
		if _, dup := s.partsByID[p.PartID]; dup || p.PartID == "" {
			continue
		}
		s.partsByID[p.PartID] = p
		partDocs = append(partDocs, chromem.Document{
			ID:      p.PartID,
			Content: strings.Join([]string{p.Name, p.Symptoms, p.Brand, p.ApplianceTypes, p.ReplaceParts}, " "),
			Metadata: map[string]string{
				"appliance": p.Appliance().String(),
				"brand":     strings.ToLower(p.Brand),
			},
		})
	}
	if len(partDocs) > 0 {
		if err := s.parts.AddDocuments(ctx, partDocs, concurrency); err != nil {
			return nil, fmt.Errorf("embed parts: %w", err)
		}
	}

	repairDocs := make([]chromem.Document, 0, len(ds.Repairs))
	for _, g := range ds.Repairs {
		s.repairsByID[g.ID] = g
		repairDocs = append(repairDocs, chromem.Document{
			ID:      g.ID,
			Content: strings.Join([]string{g.Symptom, g.Description, strings.Join(g.PartsNeeded, ", "), g.ApplianceType}, " "),
			Metadata: map[string]string{
				"appliance": appliance.Parse(g.ApplianceType).String(),
			},
		})
	}
	if len(repairDocs) > 0 {
		if err := s.repairs.AddDocuments(ctx, repairDocs, concurrency); err != nil {
			return nil, fmt.Errorf("embed repairs: %w", err)
		}
	}

	articleDocs := make([]chromem.Document, 0, len(ds.Articles))
	for _, a := range ds.Articles {
		s.articlesByID[a.ID] = a
		articleDocs = append(articleDocs, chromem.Document{
			ID:      a.ID,
			Content: a.Title + " " + a.Description,
		})
	}
	if len(articleDocs) > 0 {
		if err := s.articles.AddDocuments(ctx, articleDocs, concurrency); err != nil {
			return nil, fmt.Errorf("embed articles: %w", err)
		}
	}

	logger.Info().
		Int("parts", len(partDocs)).
		Int("repairs", len(repairDocs)).
		Int("articles", len(articleDocs)).
		Msg("Semantic index built")

	return s, nil
}

// FindByIdentifier delegates to the wrapped store.
func (s *SemanticStore) FindByIdentifier(ctx context.Context, id string) (*catalog.Part, error) {
	return s.base.FindByIdentifier(ctx, id)
}

// PartsForModel delegates to the wrapped store.
func (s *SemanticStore) PartsForModel(ctx context.Context, model string, limit int) ([]catalog.Part, error) {
	return s.base.PartsForModel(ctx, model, limit)
}

// IndexRecords delegates to the wrapped store.
func (s *SemanticStore) IndexRecords(ctx context.Context) ([]appliance.PartRecord, error) {
	return s.base.IndexRecords(ctx)
}

// Search ranks parts by similarity.
func (s *SemanticStore) Search(ctx context.Context, query string, filter catalog.Filter, limit int) ([]catalog.Part, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	var where map[string]string
	if filter.Appliance.Known() {
		where = map[string]string{"appliance": filter.Appliance.String()}
	}

	results, err := nearest(ctx, s.parts, query, limit*overfetch, where)
	if err != nil {
		s.logger.Warn().Err(err).Str("collection", partsCollection).Msg("Vector query failed, using keyword search")
		return s.base.Search(ctx, query, filter, limit)
	}

	parts := make([]catalog.Part, 0, max(limit, 0))
	for _, r := range results {
		p, ok := s.partsByID[r.ID]
		if !ok || !filter.Matches(p) {
			continue
		}
		p.Relevance = float64(r.Similarity)
		parts = append(parts, p)
		if limit > 0 && len(parts) == limit {
			break
		}
	}
	return parts, nil
}

// SearchRepairs ranks repair guides by similarity.
func (s *SemanticStore) SearchRepairs(ctx context.Context, query string, kind appliance.Type, limit int) ([]catalog.RepairGuide, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	results, err := nearest(ctx, s.repairs, query, limit*overfetch, nil)
	if err != nil {
		s.logger.Warn().Err(err).Str("collection", repairsCollection).Msg("Vector query failed, using keyword search")
		return s.base.SearchRepairs(ctx, query, kind, limit)
	}

	guides := make([]catalog.RepairGuide, 0, max(limit, 0))
	for _, r := range results {
		g, ok := s.repairsByID[r.ID]
		if !ok || !catalog.RepairMatches(g, kind) {
			continue
		}
		g.Relevance = float64(r.Similarity)
		guides = append(guides, g)
		if limit > 0 && len(guides) == limit {
			break
		}
	}
	return guides, nil
}

// SearchArticles ranks articles by similarity.
func (s *SemanticStore) SearchArticles(ctx context.Context, query string, limit int) ([]catalog.Article, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	results, err := nearest(ctx, s.articles, query, limit, nil)
	if err != nil {
		s.logger.Warn().Err(err).Str("collection", articlesCollection).Msg("Vector query failed, using keyword search")
		return s.base.SearchArticles(ctx, query, limit)
	}

	articles := make([]catalog.Article, 0, len(results))
	for _, r := range results {
		a, ok := s.articlesByID[r.ID]
		if !ok {
			continue
		}
		a.Relevance = float64(r.Similarity)
		a.Description = catalog.Excerpt(a.Description, 200)
		articles = append(articles, a)
	}
	return articles, nil
}

// nearest runs a bounded vector query. chromem-go requires n <= collection size.
func nearest(ctx context.Context, col *chromem.Collection, text string, n int, where map[string]string) ([]chromem.Result, error) {
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if n <= 0 || n > count {
		n = count
	}
	return col.Query(ctx, text, n, where, nil)
}

var _ catalog.Store = (*SemanticStore)(nil)
