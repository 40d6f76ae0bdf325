// Package storage provides the SQL-backed parts catalog.
package storage

import (
	"database/sql"
	"strings"
	"time"

	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/catalog"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// DriverName maps a configured database driver ("sqlite", "sqlite3" or
// "postgres") to its database/sql name. Unknown names are returned as given
// so Open can reject them.
func DriverName(configured string) string {
	switch strings.ToLower(strings.TrimSpace(configured)) {
	case "sqlite", DriverSQLite:
		return DriverSQLite
	case "postgres", "postgresql":
		return DriverPostgres
	}
	return configured
}

// PartRow is the persisted form of a catalog part.
type PartRow struct {
	PartID             string
	Seq                int
	Name               string
	ManufacturerNumber string
	Price              string
	Brand              string
	ApplianceTypes     string
	Symptoms           string
	ProductURL         string
	Availability       string
	InstallDifficulty  string
	InstallTime        string
	InstallVideoURL    string
	ReplaceParts       string
	CompatibleModels   string
	UpdatedAt          time.Time
}

const partColumns = `part_id, seq, name, manufacturer_number, price, brand, appliance_types,
	symptoms, product_url, availability, install_difficulty, install_time,
	install_video_url, replace_parts, compatible_models, updated_at`

func (r *PartRow) scanTargets() []interface{} {
	return []interface{}{
		&r.PartID, &r.Seq, &r.Name, &r.ManufacturerNumber, &r.Price, &r.Brand, &r.ApplianceTypes,
		&r.Symptoms, &r.ProductURL, &r.Availability, &r.InstallDifficulty, &r.InstallTime,
		&r.InstallVideoURL, &r.ReplaceParts, &r.CompatibleModels, &r.UpdatedAt,
	}
}

// NewPartRow converts a catalog part at catalog position seq.
func NewPartRow(p catalog.Part, seq int) PartRow {
	return PartRow{
		PartID:             strings.ToUpper(p.PartID),
		Seq:                seq,
		Name:               p.Name,
		ManufacturerNumber: p.ManufacturerNumber,
		Price:              p.Price,
		Brand:              p.Brand,
		ApplianceTypes:     p.ApplianceTypes,
		Symptoms:           p.Symptoms,
		ProductURL:         p.ProductURL,
		Availability:       p.Availability,
		InstallDifficulty:  p.InstallDifficulty,
		InstallTime:        p.InstallTime,
		InstallVideoURL:    p.InstallVideoURL,
		ReplaceParts:       p.ReplaceParts,
		CompatibleModels:   strings.Join(p.CompatibleModels, ","),
	}
}

// Part converts the row back to a catalog part.
func (r PartRow) Part() catalog.Part {
	return catalog.Part{
		PartID:             r.PartID,
		Name:               r.Name,
		ManufacturerNumber: r.ManufacturerNumber,
		Price:              r.Price,
		Brand:              r.Brand,
		ApplianceTypes:     r.ApplianceTypes,
		Symptoms:           r.Symptoms,
		ProductURL:         r.ProductURL,
		Availability:       r.Availability,
		InstallDifficulty:  r.InstallDifficulty,
		InstallTime:        r.InstallTime,
		InstallVideoURL:    r.InstallVideoURL,
		ReplaceParts:       r.ReplaceParts,
		CompatibleModels:   catalog.SplitList(r.CompatibleModels),
	}
}

const repairColumns = `id, seq, title, appliance_type, symptom, description, difficulty, parts_needed, url`

func scanRepair(rows *sql.Rows) (catalog.RepairGuide, error) {
	var (
		g     catalog.RepairGuide
		seq   int
		parts string
	)
	err := rows.Scan(&g.ID, &seq, &g.Title, &g.ApplianceType, &g.Symptom, &g.Description, &g.Difficulty, &parts, &g.URL)
	if parts != "" {
		g.PartsNeeded = strings.Split(parts, "|")
	}
	return g, err
}

const articleColumns = `id, seq, title, url, description`

func scanArticle(rows *sql.Rows) (catalog.Article, error) {
	var (
		a   catalog.Article
		seq int
	)
	err := rows.Scan(&a.ID, &seq, &a.Title, &a.URL, &a.Description)
	return a, err
}
