package validation

import (
	"regexp"
	"strings"

	"shadowatlas/internal/boundary"
)

// redFlagPatterns catch semantic misalignment: transit/infrastructure
// keywords or a mismatched-scope legislative/county keyword leaking into a
// municipal collection (§4.F stage 1).
var redFlagPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\btransit\b`),
	regexp.MustCompile(`(?i)\butility\b`),
	regexp.MustCompile(`(?i)\bpipeline\b`),
	regexp.MustCompile(`(?i)\bsenate\b`),
	regexp.MustCompile(`(?i)\bassembly\b`),
	regexp.MustCompile(`(?i)\bcounty\b`),
}

// greenFlagPatterns indicate an explicit, well-formed district/ward/zone
// naming convention.
var greenFlagPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bdistrict\s*\d+\b`),
	regexp.MustCompile(`(?i)\bward\s*\d+\b`),
	regexp.MustCompile(`(?i)\bzone\s*\d+\b`),
	regexp.MustCompile(`^\d+$`),
}

// namePattern is the name-pattern validator (§4.F stage 1).
func (p *Pipeline) namePattern(fc boundary.FeatureCollection) StageResult {
	if len(fc.Records) == 0 {
		return StageResult{Stage: "name_pattern", Confidence: 60, Issues: []string{"collection has no records to classify"}}
	}

	// A red-flag keyword appropriate to this layer's own domain (e.g. a
	// county collection whose names say "county") is expected, not a
	// misalignment; only flag keywords from a *different* layer's domain.
	foreignRedFlags := foreignRedFlagsFor(fc.Layer)

	green, red := 0, 0
	for _, rec := range fc.Records {
		name := rec.DisplayName
		if matchesAny(foreignRedFlags, name) {
			red++
			continue
		}
		if matchesAny(greenFlagPatterns, name) {
			green++
		}
	}

	if red > 0 {
		return StageResult{
			Stage:      "name_pattern",
			Confidence: 15,
			Rejected:   true,
			Issues:     []string{"name pattern indicates a different layer's semantic domain"},
		}
	}

	ratio := float64(green) / float64(len(fc.Records))
	switch {
	case ratio >= 0.9:
		return StageResult{Stage: "name_pattern", Confidence: 85}
	case ratio >= 0.5:
		return StageResult{Stage: "name_pattern", Confidence: 70}
	default:
		return StageResult{Stage: "name_pattern", Confidence: 60}
	}
}

func foreignRedFlagsFor(layer boundary.Layer) []*regexp.Regexp {
	var out []*regexp.Regexp
	for _, re := range redFlagPatterns {
		if layer == boundary.LayerCounty && strings.Contains(re.String(), "county") {
			continue
		}
		if (layer == boundary.LayerStateUpper || layer == boundary.LayerStateLower) &&
			(strings.Contains(re.String(), "senate") || strings.Contains(re.String(), "assembly")) {
			continue
		}
		if (layer == boundary.LayerSpecialTransit) && strings.Contains(re.String(), "transit") {
			continue
		}
		if (layer == boundary.LayerSpecialUtility) && strings.Contains(re.String(), "utility") {
			continue
		}
		out = append(out, re)
	}
	return out
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
