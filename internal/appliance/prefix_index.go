package appliance

import (
	"sort"
	"strings"
)

// DefaultModelPrefixes maps known brand model-number prefixes to their appliance.
var DefaultModelPrefixes = map[string]Type{
	// dishwashers
	"WDT":  Dishwasher,
	"WDF":  Dishwasher,
	"DU":   Dishwasher,
	"GDT":  Dishwasher,
	"DDT":  Dishwasher,
	"PDT":  Dishwasher,
	"KUDS": Dishwasher,
	"KDFE": Dishwasher,
	"KDTE": Dishwasher,
	"665.": Dishwasher,

	// refrigerators
	"WRF":  Refrigerator,
	"WRS":  Refrigerator,
	"RF":   Refrigerator,
	"RT":   Refrigerator,
	"RS":   Refrigerator,
	"GTS":  Refrigerator,
	"GNE":  Refrigerator,
	"GSS":  Refrigerator,
	"KRFF": Refrigerator,
	"KRMF": Refrigerator,
	"KFCS": Refrigerator,
	"106.": Refrigerator,
}

// minObservedPrefix and maxObservedPrefix bound the prefixes harvested from
// catalog compatible-model lists.
const (
	minObservedPrefix = 3
	maxObservedPrefix = 4
)

// PartRecord is the slice of catalog data the index needs.
type PartRecord struct {
	PartID           string
	ApplianceTypes   string
	CompatibleModels []string
}

type prefixEntry struct {
	prefix string
	kind   Type
}

// PrefixIndex resolves part ids and model numbers to an appliance type.
// It is immutable after construction and safe for concurrent use.
//
// Overlapping prefixes resolve to the longest match, so "WDTA" beats "WDT"
// regardless of insertion order.
type PrefixIndex struct {
	parts    map[string]Type
	prefixes []prefixEntry // sorted longest first, then lexically
}

// NewPrefixIndex builds the index from catalog records and the given
// prefix table. A nil table uses DefaultModelPrefixes. Seeded prefixes take
// precedence over prefixes observed in catalog data.
func NewPrefixIndex(records []PartRecord, seed map[string]Type) *PrefixIndex {
	if seed == nil {
		seed = DefaultModelPrefixes
	}

	idx := &PrefixIndex{parts: make(map[string]Type, len(records))}
	table := make(map[string]Type, len(seed))
	for p, t := range seed {
		table[strings.ToUpper(p)] = t
	}

	observed := make(map[string]Type)
	conflicted := make(map[string]bool)

	for _, rec := range records {
		id := strings.ToUpper(strings.TrimSpace(rec.PartID))
		kind := Parse(rec.ApplianceTypes)
		if id == "" || !kind.Known() {
			continue
		}
		idx.parts[id] = kind
		if !namesSingleType(rec.ApplianceTypes) {
			continue
		}

		for _, model := range rec.CompatibleModels {
			p := observedPrefix(model)
			if p == "" {
				continue
			}
			if prev, ok := observed[p]; ok && prev != kind {
				conflicted[p] = true
				continue
			}
			observed[p] = kind
		}
	}

	for p, t := range observed {
		if conflicted[p] {
			continue
		}
		if _, seeded := table[p]; !seeded {
			table[p] = t
		}
	}

	for p, t := range table {
		idx.prefixes = append(idx.prefixes, prefixEntry{prefix: p, kind: t})
	}
	sort.Slice(idx.prefixes, func(i, j int) bool {
		if len(idx.prefixes[i].prefix) != len(idx.prefixes[j].prefix) {
			return len(idx.prefixes[i].prefix) > len(idx.prefixes[j].prefix)
		}
		return idx.prefixes[i].prefix < idx.prefixes[j].prefix
	})

	return idx
}

// LookupPart returns the appliance type for an exact part id.
func (idx *PrefixIndex) LookupPart(partID string) (Type, bool) {
	t, ok := idx.parts[strings.ToUpper(strings.TrimSpace(partID))]
	return t, ok
}

// LookupModel returns the appliance type of the longest known prefix of model.
func (idx *PrefixIndex) LookupModel(model string) (Type, bool) {
	m := strings.ToUpper(strings.TrimSpace(model))
	if m == "" {
		return Unset, false
	}
	for _, e := range idx.prefixes {
		if strings.HasPrefix(m, e.prefix) {
			return e.kind, true
		}
	}
	return Unset, false
}

// PartCount returns the number of indexed part ids.
func (idx *PrefixIndex) PartCount() int {
	return len(idx.parts)
}

// PrefixCount returns the number of known model prefixes.
func (idx *PrefixIndex) PrefixCount() int {
	return len(idx.prefixes)
}

// observedPrefix takes the leading letters of a model number. Purely
// numeric or very short prefixes are too ambiguous to keep.
func observedPrefix(model string) string {
	m := strings.ToUpper(strings.TrimSpace(model))
	n := 0
	for n < len(m) && n < maxObservedPrefix && m[n] >= 'A' && m[n] <= 'Z' {
		n++
	}
	if n < minObservedPrefix {
		return ""
	}
	return m[:n]
}

func namesSingleType(s string) bool {
	lower := strings.ToLower(s)
	fridge := strings.Contains(lower, "refrigerator") || strings.Contains(lower, "fridge")
	return fridge != strings.Contains(lower, "dishwasher")
}
