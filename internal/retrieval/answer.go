// Package retrieval routes a user message through the cache, fast lookup,
// pattern and full search-and-generate tiers.
package retrieval

import (
	"time"

	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/catalog"
)

// Source tags which tier produced an answer.
type Source string

const (
	SourceCache      Source = "cache"
	SourceFastLookup Source = "fast_lookup"
	SourcePattern    Source = "pattern"
	SourcePipeline   Source = "full_search_llm"
	SourceExhausted  Source = "error"
)

// apology is returned when every tier failed.
const apology = "I'm sorry, I ran into a problem looking that up. " +
	"Could you try again, or tell me your appliance type, model number and the issue you're seeing?"

// Answer is the bundle returned for one resolved query.
type Answer struct {
	Response   string                `json:"response"`
	Parts      []catalog.Part        `json:"parts"`
	Repairs    []catalog.RepairGuide `json:"repairs"`
	Articles   []catalog.Article     `json:"blogs"`
	Source     Source                `json:"source"`
	Confidence float64               `json:"confidence"`
}

func (a Answer) clone() Answer {
	a.Parts = append([]catalog.Part{}, a.Parts...)
	a.Repairs = append([]catalog.RepairGuide{}, a.Repairs...)
	a.Articles = append([]catalog.Article{}, a.Articles...)
	return a
}

// CachedAnswer is an Answer held by the ResponseCache.
type CachedAnswer struct {
	Answer
	CreatedAt time.Time `json:"created_at"`
	HitCount  int       `json:"hit_count"`
}

func exhausted() Answer {
	return Answer{
		Response: apology,
		Parts:    []catalog.Part{},
		Repairs:  []catalog.RepairGuide{},
		Articles: []catalog.Article{},
		Source:   SourceExhausted,
	}
}
