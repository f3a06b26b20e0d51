package boundary

// AuthorityTier ranks provider trust: federal > state > regional > municipal
// > derived (GLOSSARY). Used to break ties when the Extractor Registry selects
// among candidate providers for a scope.
type AuthorityTier int

const (
	AuthorityDerived AuthorityTier = iota
	AuthorityMunicipal
	AuthorityRegional
	AuthorityState
	AuthorityFederal
)

// String renders the tier name for logging and reports.
func (t AuthorityTier) String() string {
	switch t {
	case AuthorityFederal:
		return "federal"
	case AuthorityState:
		return "state"
	case AuthorityRegional:
		return "regional"
	case AuthorityMunicipal:
		return "municipal"
	case AuthorityDerived:
		return "derived"
	default:
		return "unknown"
	}
}
