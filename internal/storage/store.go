package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	// Registered database/sql drivers.
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/appliance"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/catalog"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/domain"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Open opens and pings a database. driver is "sqlite3" or "postgres".
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, domain.ValidationError(fmt.Sprintf("unsupported database driver %q", driver), nil)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// A single connection keeps ":memory:" databases shared.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, nil
}

// Migrate applies the embedded schema. Migrations are idempotent.
func Migrate(ctx context.Context, db DB) error {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		body, err := migrations.ReadFile(name)
		if err != nil {
			return err
		}
		for _, stmt := range splitStatements(string(body)) {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migration %s: %w", name, err)
			}
		}
	}
	return nil
}

func splitStatements(body string) []string {
	var lines []string
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		lines = append(lines, line)
	}
	var stmts []string
	for _, stmt := range strings.Split(strings.Join(lines, "\n"), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// ImportProgress is called after each imported record.
type ImportProgress func(done, total int)

// SQLStore serves the catalog from a SQL database. Ranking uses the same
// keyword scorer as the in-memory catalog.
type SQLStore struct {
	db    *sql.DB
	repos *Repositories
}

// NewSQLStore wraps an open, migrated database.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, repos: NewRepositories(db)}
}

// ImportDataset upserts ds in one transaction.
func (s *SQLStore) ImportDataset(ctx context.Context, ds *catalog.Dataset, progress ImportProgress) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	repos := NewRepositories(tx)
	total := len(ds.Parts) + len(ds.Repairs) + len(ds.Articles)
	done := 0
	tick := func() {
		done++
		if progress != nil {
			progress(done, total)
		}
	}

	for i, p := range ds.Parts {
		row := NewPartRow(p, i)
		if err := repos.Parts.Upsert(ctx, &row); err != nil {
			return fmt.Errorf("upsert part %s: %w", p.PartID, err)
		}
		tick()
	}
	for i, g := range ds.Repairs {
		if err := repos.Repairs.Upsert(ctx, g, i); err != nil {
			return fmt.Errorf("upsert repair %s: %w", g.ID, err)
		}
		tick()
	}
	for i, a := range ds.Articles {
		if err := repos.Articles.Upsert(ctx, a, i); err != nil {
			return fmt.Errorf("upsert article %s: %w", a.ID, err)
		}
		tick()
	}
	return tx.Commit()
}

// Count returns the number of stored parts.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	return s.repos.Parts.Count(ctx)
}

// FindByIdentifier matches a part id or manufacturer number.
func (s *SQLStore) FindByIdentifier(ctx context.Context, id string) (*catalog.Part, error) {
	row, err := s.repos.Parts.GetByIdentifier(ctx, id)
	if err != nil {
		return nil, err
	}
	p := row.Part()
	return &p, nil
}

// Search ranks stored parts by keyword relevance.
func (s *SQLStore) Search(ctx context.Context, query string, filter catalog.Filter, limit int) ([]catalog.Part, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	rows, err := s.repos.Parts.ListByBrand(ctx, filter.Brand)
	if err != nil {
		return nil, err
	}

	var results []catalog.Part
	for _, row := range rows {
		p := row.Part()
		score := catalog.Relevance(query, p.Name, p.Symptoms, p.Brand, p.ApplianceTypes, p.PartID, p.ManufacturerNumber, p.ReplaceParts)
		if score <= 0 || !filter.Matches(p) {
			continue
		}
		p.Relevance = score
		results = append(results, p)
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Relevance > results[j].Relevance })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// PartsForModel lists parts whose compatible models contain model.
func (s *SQLStore) PartsForModel(ctx context.Context, model string, limit int) ([]catalog.Part, error) {
	if strings.TrimSpace(model) == "" {
		return nil, nil
	}
	rows, err := s.repos.Parts.ListByModel(ctx, model, limit)
	if err != nil {
		return nil, err
	}
	parts := make([]catalog.Part, 0, len(rows))
	for _, row := range rows {
		parts = append(parts, row.Part())
	}
	return parts, nil
}

// SearchRepairs ranks repair guides for kind.
func (s *SQLStore) SearchRepairs(ctx context.Context, query string, kind appliance.Type, limit int) ([]catalog.RepairGuide, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	filter := ""
	if kind.Known() {
		filter = kind.String()
	}
	guides, err := s.repos.Repairs.ListByAppliance(ctx, filter)
	if err != nil {
		return nil, err
	}

	var results []catalog.RepairGuide
	for _, g := range guides {
		score := catalog.Relevance(query, g.Symptom, g.Description, strings.Join(g.PartsNeeded, ", "), g.ApplianceType)
		if score <= 0 {
			continue
		}
		g.Relevance = score
		results = append(results, g)
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Relevance > results[j].Relevance })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// SearchArticles ranks articles.
func (s *SQLStore) SearchArticles(ctx context.Context, query string, limit int) ([]catalog.Article, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	articles, err := s.repos.Articles.List(ctx)
	if err != nil {
		return nil, err
	}

	var results []catalog.Article
	for _, a := range articles {
		score := catalog.Relevance(query, a.Title, a.Description)
		if score <= 0 {
			continue
		}
		a.Relevance = score
		a.Description = catalog.Excerpt(a.Description, 200)
		results = append(results, a)
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Relevance > results[j].Relevance })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Parts lists every stored part in catalog order.
func (s *SQLStore) Parts(ctx context.Context) ([]catalog.Part, error) {
	rows, err := s.repos.Parts.ListByBrand(ctx, "")
	if err != nil {
		return nil, err
	}
	parts := make([]catalog.Part, 0, len(rows))
	for _, row := range rows {
		parts = append(parts, row.Part())
	}
	return parts, nil
}

// IndexRecords lists every stored part for the appliance index.
func (s *SQLStore) IndexRecords(ctx context.Context) ([]appliance.PartRecord, error) {
	parts, err := s.Parts(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]appliance.PartRecord, 0, len(parts))
	for _, p := range parts {
		records = append(records, p.IndexRecord())
	}
	return records, nil
}

var _ catalog.Store = (*SQLStore)(nil)
