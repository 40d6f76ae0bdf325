// Package appliance classifies parts and model numbers by appliance type.
package appliance

import "strings"

// Type is the appliance category a part or model belongs to.
type Type string

const (
	Unset        Type = ""
	Refrigerator Type = "refrigerator"
	Dishwasher   Type = "dishwasher"
	Unknown      Type = "unknown"
)

// String returns the wire form of the type.
func (t Type) String() string {
	return string(t)
}

// Title returns the capitalised display form.
func (t Type) Title() string {
	if t == Unset {
		return ""
	}
	s := string(t)
	return strings.ToUpper(s[:1]) + s[1:]
}

// Known reports whether t is a concrete, supported appliance type.
func (t Type) Known() bool {
	return t == Refrigerator || t == Dishwasher
}

// Parse maps free text such as a catalog "appliance_types" cell to a Type.
// Refrigerator wins when both names appear, matching how catalog rows list
// their primary appliance first.
func Parse(s string) Type {
	lower := strings.ToLower(s)
	switch {
	case strings.Contains(lower, "refrigerator"), strings.Contains(lower, "fridge"):
		return Refrigerator
	case strings.Contains(lower, "dishwasher"):
		return Dishwasher
	case strings.TrimSpace(lower) == "":
		return Unset
	default:
		return Unknown
	}
}
