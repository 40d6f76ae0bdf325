package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/appliance"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/catalog"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/extract"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/observability"
)

// Detection weights. A part number alone clears the default 0.7 gate; a
// model number needs an intent word as well.
const (
	partWeight   = 0.8
	modelWeight  = 0.6
	intentWeight = 0.2
)

var (
	intentWords        = []string{"install", "steps", "compatible", "show me", "tell me about", "info"}
	installWords       = []string{"install", "installation", "steps", "how to install", "replace", "replacement"}
	compatibilityWords = []string{"compatible", "compatibility", "fit", "work with", "works with"}
	infoWords          = []string{"show me", "tell me about", "info", "information", "details", "price"}
	modelPartsWords    = []string{"parts for", "what parts", "which parts", "need for"}
)

// Detection is the fast-lookup reading of a query.
type Detection struct {
	PartNumbers   []string
	ModelNumbers  []string
	Installation  bool
	Compatibility bool
	PartInfo      bool
	ModelParts    bool
	Confidence    float64
}

// CanLookup reports whether any identifier was found.
func (d Detection) CanLookup() bool {
	return len(d.PartNumbers) > 0 || len(d.ModelNumbers) > 0
}

// Compatibility is the verdict of an instant compatibility check.
type Compatibility struct {
	PartID         string         `json:"part_id"`
	PartAppliance  appliance.Type `json:"part_appliance"`
	ModelID        string         `json:"model_id"`
	ModelAppliance appliance.Type `json:"model_appliance"`
	Compatible     bool           `json:"compatible"`
}

// FastLookupResolver answers identifier questions from the appliance index
// and exact catalog lookups, without search or generation.
type FastLookupResolver struct {
	extractor     *extract.Extractor
	index         *appliance.PrefixIndex
	catalog       catalog.Catalog
	logger        *observability.Logger
	minConfidence float64
	partsLimit    int
}

// NewFastLookupResolver creates a resolver. minConfidence gates detection and
// partsLimit caps model-parts answers.
func NewFastLookupResolver(
	extractor *extract.Extractor,
	index *appliance.PrefixIndex,
	cat catalog.Catalog,
	logger *observability.Logger,
	minConfidence float64,
	partsLimit int,
) *FastLookupResolver {
	if extractor == nil {
		extractor = extract.New()
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	if partsLimit <= 0 {
		partsLimit = 5
	}
	return &FastLookupResolver{
		extractor:     extractor,
		index:         index,
		catalog:       cat,
		logger:        logger,
		minConfidence: minConfidence,
		partsLimit:    partsLimit,
	}
}

// Detect classifies query by identifiers and intent phrasing.
func (f *FastLookupResolver) Detect(query string) Detection {
	ex := f.extractor.Extract(query)
	lower := strings.ToLower(query)

	d := Detection{
		PartNumbers:   ex.PartNumbers,
		ModelNumbers:  ex.ModelNumbers,
		Installation:  containsAny(lower, installWords),
		Compatibility: containsAny(lower, compatibilityWords),
		PartInfo:      containsAny(lower, infoWords),
		ModelParts:    containsAny(lower, modelPartsWords),
	}
	if len(d.PartNumbers) > 0 {
		d.Confidence += partWeight
	}
	if len(d.ModelNumbers) > 0 {
		d.Confidence += modelWeight
	}
	if containsAny(lower, intentWords) {
		d.Confidence += intentWeight
	}
	d.Confidence = min(d.Confidence, 1.0)
	return d
}

// Resolve returns an answer or false when the query is not something this
// tier can answer with certainty. Catalog failures are logged and reported
// as a miss.
func (f *FastLookupResolver) Resolve(ctx context.Context, query string) (*Answer, bool) {
	d := f.Detect(query)
	if !d.CanLookup() || d.Confidence < f.minConfidence {
		return nil, false
	}

	if d.Compatibility {
		verdict, ok := f.CheckCompatibility(d)
		if !ok {
			f.logger.Debug().
				Strs("parts", d.PartNumbers).
				Strs("models", d.ModelNumbers).
				Msg("Compatibility not resolvable from index, escalating")
			return nil, false
		}
		return compatibilityAnswer(verdict), true
	}

	if len(d.PartNumbers) > 0 && (d.Installation || d.PartInfo) {
		part, err := f.catalog.FindByIdentifier(ctx, d.PartNumbers[0])
		switch {
		case err == nil:
			if d.Installation {
				return installAnswer(*part), true
			}
			return partInfoAnswer(*part), true
		case errors.Is(err, catalog.ErrNotFound):
			f.logger.Debug().Str("part", d.PartNumbers[0]).Msg("Part not in catalog")
		default:
			f.logger.Warn().Err(err).Str("part", d.PartNumbers[0]).Msg("Part lookup failed")
		}
	}

	if len(d.ModelNumbers) > 0 && d.ModelParts {
		model := d.ModelNumbers[0]
		parts, err := f.catalog.PartsForModel(ctx, model, f.partsLimit)
		if err != nil {
			f.logger.Warn().Err(err).Str("model", model).Msg("Model parts lookup failed")
			return nil, false
		}
		if len(parts) > 0 {
			return modelPartsAnswer(model, parts), true
		}
	}

	return nil, false
}

// CheckCompatibility compares the appliance types of the first part number
// and the last model number. It never guesses: if either side is missing or
// unknown to the index it reports false.
func (f *FastLookupResolver) CheckCompatibility(d Detection) (Compatibility, bool) {
	if f.index == nil || len(d.PartNumbers) == 0 || len(d.ModelNumbers) == 0 {
		return Compatibility{}, false
	}
	partID := d.PartNumbers[0]
	modelID := d.ModelNumbers[len(d.ModelNumbers)-1]

	partType, ok := f.index.LookupPart(partID)
	if !ok {
		return Compatibility{}, false
	}
	modelType, ok := f.index.LookupModel(modelID)
	if !ok {
		return Compatibility{}, false
	}

	f.logger.Debug().
		Str("part", partID).
		Str("part_appliance", partType.String()).
		Str("model", modelID).
		Str("model_appliance", modelType.String()).
		Msg("Instant compatibility check")

	return Compatibility{
		PartID:         partID,
		PartAppliance:  partType,
		ModelID:        modelID,
		ModelAppliance: modelType,
		Compatible:     partType == modelType,
	}, true
}

// CompatibilityMessage renders a verdict for the user.
func CompatibilityMessage(c Compatibility) string {
	if c.Compatible {
		return fmt.Sprintf("Part %s is compatible with your %s model! Both are %s components. "+
			"Would you like installation instructions or more details about this part?",
			c.PartID, c.ModelID, c.PartAppliance)
	}
	return fmt.Sprintf("Part %s is NOT compatible with your %s model. %s is a %s part, but %s is a %s model. "+
		"%s parts cannot be used in %ss. What specific issue are you trying to fix with your %s? "+
		"I can help find the right %s parts.",
		c.PartID, c.ModelID, c.PartID, c.PartAppliance, c.ModelID, c.ModelAppliance,
		c.PartAppliance.Title(), c.ModelAppliance, c.ModelID, c.ModelAppliance)
}

func compatibilityAnswer(c Compatibility) *Answer {
	return &Answer{
		Response:   CompatibilityMessage(c),
		Parts:      []catalog.Part{},
		Repairs:    []catalog.RepairGuide{},
		Articles:   []catalog.Article{},
		Source:     SourceFastLookup,
		Confidence: 1.0,
	}
}

func installAnswer(p catalog.Part) *Answer {
	kind := p.Appliance()
	if !kind.Known() {
		kind = "appliance"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Installation Steps for %s (Part #%s)**\n\n", p.Name, p.PartID)
	b.WriteString("**Part Details:**\n")
	fmt.Fprintf(&b, "- Brand: %s\n", orUnknown(p.Brand))
	fmt.Fprintf(&b, "- Price: %s\n", formatPrice(p.Price))
	fmt.Fprintf(&b, "- Installation Difficulty: %s\n", orUnknown(p.InstallDifficulty))
	fmt.Fprintf(&b, "- Estimated Time: %s\n", orUnknown(p.InstallTime))
	fmt.Fprintf(&b, "- Common Issues Fixed: %s\n\n", orDefault(p.Symptoms, "No symptoms listed"))
	b.WriteString("**Installation Steps:**\n")
	fmt.Fprintf(&b, "1. **Safety First**: Disconnect power (and water, if connected) to your %s\n", kind)
	fmt.Fprintf(&b, "2. **Access**: Locate the existing %s\n", strings.ToLower(p.Name))
	b.WriteString("3. **Remove**: Take out the old part, noting how it was mounted and connected\n")
	b.WriteString("4. **Install**: Fit the new part in the same position and reconnect it\n")
	b.WriteString("5. **Test**: Restore power and run a short cycle to confirm the repair\n\n")
	fmt.Fprintf(&b, "**Video Instructions Available:** %s\n\n", orDefault(p.InstallVideoURL, "Check product page for video"))
	fmt.Fprintf(&b, "**Need specific instructions for your model?** Visit the full part page: %s", p.ProductURL)

	return &Answer{
		Response:   b.String(),
		Parts:      []catalog.Part{p},
		Repairs:    []catalog.RepairGuide{},
		Articles:   []catalog.Article{},
		Source:     SourceFastLookup,
		Confidence: 1.0,
	}
}

func partInfoAnswer(p catalog.Part) *Answer {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s - Part #%s**\n\n", p.Name, p.PartID)
	b.WriteString("**Details:**\n")
	fmt.Fprintf(&b, "- Brand: %s\n", orUnknown(p.Brand))
	fmt.Fprintf(&b, "- Price: %s\n", formatPrice(p.Price))
	fmt.Fprintf(&b, "- Appliance Type: %s\n", orDefault(p.ApplianceTypes, "Appliance"))
	if p.Availability != "" {
		fmt.Fprintf(&b, "- Availability: %s\n", p.Availability)
	}
	fmt.Fprintf(&b, "\n**Description:** %s\n\n", orDefault(p.Symptoms, "No symptoms listed"))
	fmt.Fprintf(&b, "View full details: %s", p.ProductURL)

	return &Answer{
		Response:   b.String(),
		Parts:      []catalog.Part{p},
		Repairs:    []catalog.RepairGuide{},
		Articles:   []catalog.Article{},
		Source:     SourceFastLookup,
		Confidence: 1.0,
	}
}

func modelPartsAnswer(model string, parts []catalog.Part) *Answer {
	var b strings.Builder
	fmt.Fprintf(&b, "**Parts Available for Model %s:**\n\n", model)
	fmt.Fprintf(&b, "Found %d compatible parts:\n", len(parts))
	for i, p := range parts {
		fmt.Fprintf(&b, "%d. **%s** (#%s) - %s\n", i+1, p.Name, p.PartID, formatPrice(p.Price))
	}
	b.WriteString("\n**Need help choosing?** Provide your specific symptom for better recommendations.")

	return &Answer{
		Response:   b.String(),
		Parts:      append([]catalog.Part{}, parts...),
		Repairs:    []catalog.RepairGuide{},
		Articles:   []catalog.Article{},
		Source:     SourceFastLookup,
		Confidence: 1.0,
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func formatPrice(price string) string {
	price = strings.TrimSpace(price)
	switch {
	case price == "":
		return "N/A"
	case strings.HasPrefix(price, "$"):
		return price
	default:
		return "$" + price
	}
}

func orUnknown(s string) string {
	return orDefault(s, "Unknown")
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
