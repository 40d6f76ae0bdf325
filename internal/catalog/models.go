// Package catalog defines the parts catalog records and the lookups the
// router consumes.
package catalog

import (
	"strings"

	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/appliance"
)

// Part is one replacement part.
type Part struct {
	PartID             string   `json:"part_number"`
	Name               string   `json:"name"`
	ManufacturerNumber string   `json:"manufacturer_number"`
	Price              string   `json:"price"`
	Brand              string   `json:"brand"`
	ApplianceTypes     string   `json:"appliance_types"`
	Symptoms           string   `json:"symptoms"`
	ProductURL         string   `json:"url"`
	Availability       string   `json:"stock_status"`
	InstallDifficulty  string   `json:"install_difficulty"`
	InstallTime        string   `json:"install_time"`
	InstallVideoURL    string   `json:"install_video_url"`
	ReplaceParts       string   `json:"replace_parts"`
	CompatibleModels   []string `json:"compatible_models,omitempty"`
	Relevance          float64  `json:"relevance_score,omitempty"`
}

// Appliance returns the primary appliance type of the part.
func (p Part) Appliance() appliance.Type {
	return appliance.Parse(p.ApplianceTypes)
}

// FitsModel reports whether model appears in the compatible-models list.
func (p Part) FitsModel(model string) bool {
	m := strings.ToUpper(strings.TrimSpace(model))
	if m == "" {
		return false
	}
	for _, cm := range p.CompatibleModels {
		if strings.Contains(strings.ToUpper(cm), m) {
			return true
		}
	}
	return false
}

// IndexRecord projects the part onto what the appliance index needs.
func (p Part) IndexRecord() appliance.PartRecord {
	return appliance.PartRecord{
		PartID:           p.PartID,
		ApplianceTypes:   p.ApplianceTypes,
		CompatibleModels: p.CompatibleModels,
	}
}

// RepairGuide is a symptom-oriented repair article.
type RepairGuide struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	ApplianceType string   `json:"appliance_type"`
	Symptom       string   `json:"symptom"`
	Description   string   `json:"steps"`
	Difficulty    string   `json:"difficulty"`
	PartsNeeded   []string `json:"parts_needed"`
	URL           string   `json:"url"`
	Relevance     float64  `json:"relevance_score,omitempty"`
}

// Article is a how-to or blog post.
type Article struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Description string  `json:"description"`
	Relevance   float64 `json:"relevance_score,omitempty"`
}

// Filter narrows a parts search.
type Filter struct {
	Brand     string
	Appliance appliance.Type
}

// Matches reports whether p passes the filter.
func (f Filter) Matches(p Part) bool {
	if f.Brand != "" && !strings.EqualFold(strings.TrimSpace(p.Brand), strings.TrimSpace(f.Brand)) {
		return false
	}
	if f.Appliance.Known() && p.Appliance() != f.Appliance {
		return false
	}
	return true
}
