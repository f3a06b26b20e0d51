package boundary

import "fmt"

// PropertyKind tags the concrete type held by a PropertyValue. Modeling
// upstream feature properties this way (§9 redesign note: "Dynamic, untyped
// feature dictionaries... model as a tagged union... avoid deep inheritance
// trees") keeps FeatureProperties representable without reflection or an
// interface{} map at the validator boundary.
type PropertyKind int

const (
	PropertyNull PropertyKind = iota
	PropertyString
	PropertyInt
	PropertyFloat
)

// PropertyValue is a closed sum type over the value shapes upstream
// provider responses actually contain.
type PropertyValue struct {
	Kind PropertyKind
	Str  string
	Int  int64
	Flt  float64
}

// NullValue returns the null property value.
func NullValue() PropertyValue { return PropertyValue{Kind: PropertyNull} }

// StringValue wraps a string.
func StringValue(s string) PropertyValue { return PropertyValue{Kind: PropertyString, Str: s} }

// IntValue wraps an integer.
func IntValue(i int64) PropertyValue { return PropertyValue{Kind: PropertyInt, Int: i} }

// FloatValue wraps a float.
func FloatValue(f float64) PropertyValue { return PropertyValue{Kind: PropertyFloat, Flt: f} }

// String renders the value for display and for canonical hashing input.
func (v PropertyValue) String() string {
	switch v.Kind {
	case PropertyString:
		return v.Str
	case PropertyInt:
		return fmt.Sprintf("%d", v.Int)
	case PropertyFloat:
		return fmt.Sprintf("%g", v.Flt)
	default:
		return ""
	}
}

// FeatureProperties is the ordered key->value mapping of semantic properties
// relevant to a record's layer (§3: BoundaryRecord.attributes). Keys is kept
// separate from the map so callers that need deterministic iteration (the
// attribute_digest in §4.G) don't need to re-derive a sorted key list.
type FeatureProperties struct {
	Keys   []string
	Values map[string]PropertyValue
}

// NewFeatureProperties builds an empty property set.
func NewFeatureProperties() FeatureProperties {
	return FeatureProperties{Values: make(map[string]PropertyValue)}
}

// Set inserts or overwrites a key, preserving first-insertion key order.
func (p *FeatureProperties) Set(key string, value PropertyValue) {
	if p.Values == nil {
		p.Values = make(map[string]PropertyValue)
	}
	if _, exists := p.Values[key]; !exists {
		p.Keys = append(p.Keys, key)
	}
	p.Values[key] = value
}

// Get returns a key's value and whether it was present.
func (p FeatureProperties) Get(key string) (PropertyValue, bool) {
	v, ok := p.Values[key]
	return v, ok
}

// SortedKeys returns the property keys in lexicographic order, used by the
// attribute_digest (§4.G step 6: "attributes sorted by key").
func (p FeatureProperties) SortedKeys() []string {
	keys := make([]string, len(p.Keys))
	copy(keys, p.Keys)
	// Insertion sort: property sets are small (typically under two dozen
	// keys), and this avoids importing sort for a handful of comparisons
	// while keeping the sort stable and allocation-free beyond the copy.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}
