package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/catalog"
)

// Common errors
var (
	ErrNotFound = catalog.ErrNotFound
)

// DB represents a database connection interface.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// PartRepository handles part persistence.
type PartRepository struct {
	db DB
}

// NewPartRepository creates a new part repository.
func NewPartRepository(db DB) *PartRepository {
	return &PartRepository{db: db}
}

// Upsert inserts or replaces a part keyed by part_id.
func (r *PartRepository) Upsert(ctx context.Context, row *PartRow) error {
	row.UpdatedAt = time.Now().UTC()

	query := `
		INSERT INTO parts (` + partColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (part_id) DO UPDATE SET
			seq = excluded.seq, name = excluded.name,
			manufacturer_number = excluded.manufacturer_number, price = excluded.price,
			brand = excluded.brand, appliance_types = excluded.appliance_types,
			symptoms = excluded.symptoms, product_url = excluded.product_url,
			availability = excluded.availability, install_difficulty = excluded.install_difficulty,
			install_time = excluded.install_time, install_video_url = excluded.install_video_url,
			replace_parts = excluded.replace_parts, compatible_models = excluded.compatible_models,
			updated_at = excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		row.PartID, row.Seq, row.Name, row.ManufacturerNumber, row.Price, row.Brand,
		row.ApplianceTypes, row.Symptoms, row.ProductURL, row.Availability,
		row.InstallDifficulty, row.InstallTime, row.InstallVideoURL, row.ReplaceParts,
		row.CompatibleModels, row.UpdatedAt,
	)
	return err
}

// GetByIdentifier retrieves a part by part id, falling back to manufacturer
// number. Matching ignores case.
func (r *PartRepository) GetByIdentifier(ctx context.Context, id string) (*PartRow, error) {
	query := `
		SELECT ` + partColumns + `
		FROM parts
		WHERE UPPER(part_id) = $1 OR UPPER(manufacturer_number) = $1
		ORDER BY CASE WHEN UPPER(part_id) = $1 THEN 0 ELSE 1 END, seq
		LIMIT 1
	`
	row := &PartRow{}
	err := r.db.QueryRowContext(ctx, query, strings.ToUpper(strings.TrimSpace(id))).Scan(row.scanTargets()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return row, err
}

// ListByBrand lists parts in catalog order. An empty brand lists all parts.
func (r *PartRepository) ListByBrand(ctx context.Context, brand string) ([]*PartRow, error) {
	query := `
		SELECT ` + partColumns + `
		FROM parts
		WHERE CAST($1 AS TEXT) = '' OR LOWER(brand) = $1
		ORDER BY seq
	`
	return r.list(ctx, query, strings.ToLower(strings.TrimSpace(brand)))
}

// ListByModel lists parts whose compatible models contain model.
func (r *PartRepository) ListByModel(ctx context.Context, model string, limit int) ([]*PartRow, error) {
	query := `
		SELECT ` + partColumns + `
		FROM parts
		WHERE UPPER(compatible_models) LIKE $1 ESCAPE '\'
		ORDER BY seq
	`
	rows, err := r.list(ctx, query, "%"+escapeLike(strings.ToUpper(strings.TrimSpace(model)))+"%")
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// Count returns the number of stored parts.
func (r *PartRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM parts`).Scan(&n)
	return n, err
}

func (r *PartRepository) list(ctx context.Context, query string, args ...interface{}) ([]*PartRow, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var parts []*PartRow
	for rows.Next() {
		row := &PartRow{}
		if err := rows.Scan(row.scanTargets()...); err != nil {
			return nil, err
		}
		parts = append(parts, row)
	}
	return parts, rows.Err()
}

// RepairRepository handles repair guide persistence.
type RepairRepository struct {
	db DB
}

// NewRepairRepository creates a new repair guide repository.
func NewRepairRepository(db DB) *RepairRepository {
	return &RepairRepository{db: db}
}

// Upsert inserts or replaces a repair guide.
func (r *RepairRepository) Upsert(ctx context.Context, g catalog.RepairGuide, seq int) error {
	query := `
		INSERT INTO repair_guides (` + repairColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			seq = excluded.seq, title = excluded.title, appliance_type = excluded.appliance_type,
			symptom = excluded.symptom, description = excluded.description,
			difficulty = excluded.difficulty, parts_needed = excluded.parts_needed, url = excluded.url
	`
	_, err := r.db.ExecContext(ctx, query,
		g.ID, seq, g.Title, g.ApplianceType, g.Symptom, g.Description, g.Difficulty,
		strings.Join(g.PartsNeeded, "|"), g.URL,
	)
	return err
}

// ListByAppliance lists guides whose product mentions kind. An empty kind
// lists every guide.
func (r *RepairRepository) ListByAppliance(ctx context.Context, kind string) ([]catalog.RepairGuide, error) {
	query := `
		SELECT ` + repairColumns + `
		FROM repair_guides
		WHERE CAST($1 AS TEXT) = '' OR LOWER(appliance_type) LIKE $2 ESCAPE '\'
		ORDER BY seq
	`
	kind = strings.ToLower(strings.TrimSpace(kind))
	rows, err := r.db.QueryContext(ctx, query, kind, "%"+escapeLike(kind)+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var guides []catalog.RepairGuide
	for rows.Next() {
		g, err := scanRepair(rows)
		if err != nil {
			return nil, err
		}
		guides = append(guides, g)
	}
	return guides, rows.Err()
}

// ArticleRepository handles article persistence.
type ArticleRepository struct {
	db DB
}

// NewArticleRepository creates a new article repository.
func NewArticleRepository(db DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

// Upsert inserts or replaces an article.
func (r *ArticleRepository) Upsert(ctx context.Context, a catalog.Article, seq int) error {
	query := `
		INSERT INTO articles (` + articleColumns + `)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			seq = excluded.seq, title = excluded.title, url = excluded.url, description = excluded.description
	`
	_, err := r.db.ExecContext(ctx, query, a.ID, seq, a.Title, a.URL, a.Description)
	return err
}

// List lists every article in catalog order.
func (r *ArticleRepository) List(ctx context.Context) ([]catalog.Article, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+articleColumns+` FROM articles ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var articles []catalog.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// Repositories bundles all repositories.
type Repositories struct {
	Parts    *PartRepository
	Repairs  *RepairRepository
	Articles *ArticleRepository
}

// NewRepositories creates all repositories with the given database.
func NewRepositories(db DB) *Repositories {
	return &Repositories{
		Parts:    NewPartRepository(db),
		Repairs:  NewRepairRepository(db),
		Articles: NewArticleRepository(db),
	}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
