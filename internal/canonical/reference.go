// Package canonical holds the authoritative expected-data reference the
// validation pipeline checks extracted boundaries against: which GEOIDs
// should exist per (layer, state), independent of what any provider
// reports (§4.A).
package canonical

import (
	"embed"
	"fmt"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"

	"shadowatlas/internal/boundary"
)

//go:embed data/*.yaml
var embeddedTables embed.FS

// jurisdictionTable is the on-disk shape of one (layer, state) reference
// file under data/.
type jurisdictionTable struct {
	Layer         string   `yaml:"layer"`
	StateFIPS     string   `yaml:"state_fips"`
	ExpectedCount int      `yaml:"expected_count"`
	GEOIDs        []string `yaml:"geoids"`
	VariableLength bool    `yaml:"variable_length"`
	GEOIDPattern  string   `yaml:"geoid_pattern"`
}

// entry is a loaded, validated jurisdiction table plus its compiled regex
// (nil when the layer uses fixed-length GEOIDs).
type entry struct {
	geoids  []string
	set     map[string]bool
	pattern *regexp.Regexp
}

// Reference is the self-validated in-memory canonical reference. Construct
// it with Load; a non-nil error means the embedded tables are internally
// inconsistent and the caller must refuse to start (§4.A: "the system
// refuses to run with a broken reference").
type Reference struct {
	tables map[string]entry // key: layer + "/" + state_fips
}

func key(layer boundary.Layer, stateFIPS string) string {
	return string(layer) + "/" + stateFIPS
}

// Load reads every embedded reference table and self-validates: for each
// enumerated (layer, state), |set| == expected_count, and any declared
// geoid_pattern compiles and matches every listed GEOID.
func Load() (*Reference, error) {
	files, err := embeddedTables.ReadDir("data")
	if err != nil {
		return nil, fmt.Errorf("canonical: read embedded tables: %w", err)
	}

	tables := make(map[string]entry, len(files))
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		raw, err := embeddedTables.ReadFile("data/" + f.Name())
		if err != nil {
			return nil, fmt.Errorf("canonical: read %s: %w", f.Name(), err)
		}
		var t jurisdictionTable
		if err := yaml.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("canonical: parse %s: %w", f.Name(), err)
		}

		var pattern *regexp.Regexp
		if t.VariableLength {
			if t.GEOIDPattern == "" {
				return nil, fmt.Errorf("canonical: %s declares variable_length but no geoid_pattern", f.Name())
			}
			pattern, err = regexp.Compile(t.GEOIDPattern)
			if err != nil {
				return nil, fmt.Errorf("canonical: %s: compile geoid_pattern: %w", f.Name(), err)
			}
			for _, id := range t.GEOIDs {
				if !pattern.MatchString(id) {
					return nil, fmt.Errorf("canonical: %s: geoid %q does not match geoid_pattern %q", f.Name(), id, t.GEOIDPattern)
				}
			}
		}

		if len(t.GEOIDs) != t.ExpectedCount {
			return nil, fmt.Errorf("canonical: %s: self-validation failed: |set|=%d but expected_count=%d", f.Name(), len(t.GEOIDs), t.ExpectedCount)
		}

		set := make(map[string]bool, len(t.GEOIDs))
		for _, id := range t.GEOIDs {
			if set[id] {
				return nil, fmt.Errorf("canonical: %s: duplicate geoid %q in reference table", f.Name(), id)
			}
			set[id] = true
		}

		k := key(boundary.Layer(t.Layer), t.StateFIPS)
		tables[k] = entry{
			geoids:  append([]string(nil), t.GEOIDs...),
			set:     set,
			pattern: pattern,
		}
	}

	return &Reference{tables: tables}, nil
}

// ExpectedGEOIDs returns the ordered set of GEOIDs expected for
// (layer, state_fips), and whether a reference table exists for it.
func (r *Reference) ExpectedGEOIDs(layer boundary.Layer, stateFIPS string) ([]string, bool) {
	e, ok := r.tables[key(layer, stateFIPS)]
	if !ok {
		return nil, false
	}
	return append([]string(nil), e.geoids...), true
}

// ExpectedCount returns the expected cardinality for (layer, state_fips).
func (r *Reference) ExpectedCount(layer boundary.Layer, stateFIPS string) (int, bool) {
	e, ok := r.tables[key(layer, stateFIPS)]
	if !ok {
		return 0, false
	}
	return len(e.geoids), true
}

// Completeness is the result of comparing an observed GEOID set against
// the canonical reference (§4.A: complete(...) -> {ok, missing, extra}).
type Completeness struct {
	OK      bool
	Missing []string
	Extra   []string
}

// Missing returns the ordered set of expected GEOIDs absent from observed.
func (r *Reference) Missing(layer boundary.Layer, stateFIPS string, observed []string) []string {
	e, ok := r.tables[key(layer, stateFIPS)]
	if !ok {
		return nil
	}
	seen := toSet(observed)
	var missing []string
	for _, id := range e.geoids {
		if !seen[id] {
			missing = append(missing, id)
		}
	}
	return missing
}

// Extra returns observed GEOIDs not present in the canonical reference,
// sorted for deterministic reporting.
func (r *Reference) Extra(layer boundary.Layer, stateFIPS string, observed []string) []string {
	e, ok := r.tables[key(layer, stateFIPS)]
	if !ok {
		return nil
	}
	var extra []string
	for _, id := range observed {
		if !e.set[id] {
			extra = append(extra, id)
		}
	}
	sort.Strings(extra)
	return extra
}

// Complete reports whether observed exactly matches the canonical reference
// for (layer, state_fips), along with the missing and extra sets.
func (r *Reference) Complete(layer boundary.Layer, stateFIPS string, observed []string) Completeness {
	missing := r.Missing(layer, stateFIPS, observed)
	extra := r.Extra(layer, stateFIPS, observed)
	return Completeness{
		OK:      len(missing) == 0 && len(extra) == 0,
		Missing: missing,
		Extra:   extra,
	}
}

// MatchesPattern reports whether id is well-formed for a variable-length
// layer's declared geoid_pattern. Fixed-length layers always return true
// here; their shape is enforced by ExpectedGEOIDs membership instead.
func (r *Reference) MatchesPattern(layer boundary.Layer, stateFIPS, id string) bool {
	e, ok := r.tables[key(layer, stateFIPS)]
	if !ok || e.pattern == nil {
		return true
	}
	return e.pattern.MatchString(id)
}

func toSet(ids []string) map[string]bool {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}
