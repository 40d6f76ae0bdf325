package catalog

import (
	"context"
	"errors"

	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/appliance"
)

// ErrNotFound is returned when an identifier has no catalog entry.
var ErrNotFound = errors.New("catalog: not found")

// Catalog answers part lookups.
type Catalog interface {
	// FindByIdentifier returns the part with the exact id, or ErrNotFound.
	FindByIdentifier(ctx context.Context, id string) (*Part, error)
	// Search ranks parts against free text.
	Search(ctx context.Context, query string, filter Filter, limit int) ([]Part, error)
	// PartsForModel returns parts whose compatible models include model.
	PartsForModel(ctx context.Context, model string, limit int) ([]Part, error)
}

// KnowledgeBase answers repair-guide and article searches.
type KnowledgeBase interface {
	SearchRepairs(ctx context.Context, query string, kind appliance.Type, limit int) ([]RepairGuide, error)
	SearchArticles(ctx context.Context, query string, limit int) ([]Article, error)
}

// Store is the full catalog surface consumed at startup and per request.
type Store interface {
	Catalog
	KnowledgeBase
	// IndexRecords lists every part for building the appliance index.
	IndexRecords(ctx context.Context) ([]appliance.PartRecord, error)
}

// Dataset is a complete in-memory copy of the catalog.
type Dataset struct {
	Parts    []Part
	Repairs  []RepairGuide
	Articles []Article
}
