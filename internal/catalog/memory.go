package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/appliance"
)

// MemoryCatalog serves a Dataset from memory using keyword relevance.
type MemoryCatalog struct {
	mu       sync.RWMutex
	parts    []Part
	byID     map[string]int
	repairs  []RepairGuide
	articles []Article
}

// NewMemoryCatalog indexes ds. The dataset slices are copied.
func NewMemoryCatalog(ds *Dataset) *MemoryCatalog {
	c := &MemoryCatalog{}
	if ds != nil {
		c.Replace(ds)
	} else {
		c.byID = map[string]int{}
	}
	return c
}

// Replace swaps the served dataset.
func (c *MemoryCatalog) Replace(ds *Dataset) {
	parts := append([]Part(nil), ds.Parts...)
	byID := make(map[string]int, len(parts)*2)
	for i, p := range parts {
		if p.PartID != "" {
			byID[strings.ToUpper(p.PartID)] = i
		}
	}
	// Manufacturer numbers never shadow a part id.
	for i, p := range parts {
		mpn := strings.ToUpper(p.ManufacturerNumber)
		if _, taken := byID[mpn]; mpn != "" && !taken {
			byID[mpn] = i
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.parts = parts
	c.byID = byID
	c.repairs = append([]RepairGuide(nil), ds.Repairs...)
	c.articles = append([]Article(nil), ds.Articles...)
}

// Len returns the number of parts.
func (c *MemoryCatalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.parts)
}

// FindByIdentifier matches a part id or manufacturer number, ignoring case.
func (c *MemoryCatalog) FindByIdentifier(ctx context.Context, id string) (*Part, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.byID[strings.ToUpper(strings.TrimSpace(id))]
	if !ok {
		return nil, ErrNotFound
	}
	p := c.parts[i]
	return &p, nil
}

// Search ranks parts by keyword relevance.
func (c *MemoryCatalog) Search(ctx context.Context, query string, filter Filter, limit int) ([]Part, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	var results []Part
	for _, p := range c.parts {
		score := Relevance(query, p.Name, p.Symptoms, p.Brand, p.ApplianceTypes, p.PartID, p.ManufacturerNumber, p.ReplaceParts)
		if score <= 0 || !filter.Matches(p) {
			continue
		}
		p.Relevance = score
		results = append(results, p)
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Relevance > results[j].Relevance })
	return truncate(results, limit), nil
}

// PartsForModel lists parts that fit model, in catalog order.
func (c *MemoryCatalog) PartsForModel(ctx context.Context, model string, limit int) ([]Part, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	var results []Part
	for _, p := range c.parts {
		if p.FitsModel(model) {
			results = append(results, p)
			if limit > 0 && len(results) == limit {
				break
			}
		}
	}
	return results, nil
}

// SearchRepairs ranks repair guides. A known kind keeps only guides whose
// product names that appliance.
func (c *MemoryCatalog) SearchRepairs(ctx context.Context, query string, kind appliance.Type, limit int) ([]RepairGuide, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	var results []RepairGuide
	for _, r := range c.repairs {
		score := Relevance(query, r.Symptom, r.Description, strings.Join(r.PartsNeeded, ", "), r.ApplianceType)
		if score <= 0 || !RepairMatches(r, kind) {
			continue
		}
		r.Relevance = score
		results = append(results, r)
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Relevance > results[j].Relevance })
	return truncate(results, limit), nil
}

// SearchArticles ranks articles.
func (c *MemoryCatalog) SearchArticles(ctx context.Context, query string, limit int) ([]Article, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	var results []Article
	for _, a := range c.articles {
		score := Relevance(query, a.Title, a.Description)
		if score <= 0 {
			continue
		}
		a.Relevance = score
		a.Description = Excerpt(a.Description, 200)
		results = append(results, a)
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Relevance > results[j].Relevance })
	return truncate(results, limit), nil
}

// IndexRecords projects every part for the appliance index.
func (c *MemoryCatalog) IndexRecords(ctx context.Context) ([]appliance.PartRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	records := make([]appliance.PartRecord, 0, len(c.parts))
	for _, p := range c.parts {
		records = append(records, p.IndexRecord())
	}
	return records, nil
}

// RepairMatches reports whether r applies to kind. An unset or unknown kind
// matches everything.
func RepairMatches(r RepairGuide, kind appliance.Type) bool {
	if !kind.Known() {
		return true
	}
	return strings.Contains(strings.ToLower(r.ApplianceType), kind.String())
}

// Excerpt shortens s to n bytes followed by an ellipsis.
func Excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

var _ Store = (*MemoryCatalog)(nil)
