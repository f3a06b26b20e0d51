// Package atlas exposes the programmatic service surface that wires the
// Canonical Reference, Integrity Manifest, Extractor Registry, Cache,
// Extraction Engine, Validation Pipeline, Merkle Commit Engine, Snapshot
// Store, Change Detector, Incremental Updater, and Job Registry together
// (§6's programmatic surface).
package atlas

import "fmt"

// Kind is the error taxonomy from §7: machine-readable, not a Go type
// hierarchy, so callers branch on Kind rather than type-asserting.
type Kind string

const (
	KindConfiguration      Kind = "configuration_error"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindUpstreamRejected   Kind = "upstream_rejected"
	KindIntegrityFailure   Kind = "integrity_failure"
	KindSchemaRejection    Kind = "schema_rejection"
	KindValidationRejected Kind = "validation_rejected"
	KindCardinalityMismatch Kind = "cardinality_mismatch"
	KindGeometryInvalid    Kind = "geometry_invalid"
	KindCrossSourceMismatch Kind = "cross_source_mismatch"
	KindCommitConflict     Kind = "commit_conflict"
	KindNotFound           Kind = "not_found"
	KindCancelled          Kind = "cancelled"
)

// Error is the wrapped, machine-readable error shape every public atlas
// method returns (§7).
type Error struct {
	Kind        Kind
	Stage       string
	Message     string
	Remediation string
	Err         error
}

func (e *Error) Error() string {
	if e.Remediation != "" {
		return fmt.Sprintf("%s [%s/%s]: %s (try: %s)", e.Message, e.Kind, e.Stage, errString(e.Err), e.Remediation)
	}
	return fmt.Sprintf("%s [%s/%s]: %s", e.Message, e.Kind, e.Stage, errString(e.Err))
}

func (e *Error) Unwrap() error { return e.Err }

func errString(err error) string {
	if err == nil {
		return "no underlying error"
	}
	return err.Error()
}

// newError builds an *Error, the single constructor every wiring site uses
// so Kind/Stage are always populated together.
func newError(kind Kind, stage, message, remediation string, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Message: message, Remediation: remediation, Err: err}
}
