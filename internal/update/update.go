// Package update implements the Incremental Updater: the five-step
// algorithm that composes the Change Detector, Extraction Engine,
// Validation Pipeline, and Merkle Commit Engine to refresh only the
// sub-scopes that changed since a parent snapshot (§4.J).
package update

import (
	"context"

	"shadowatlas/internal/boundary"
	"shadowatlas/internal/changedetect"
	"shadowatlas/internal/merkle"
	"shadowatlas/internal/snapshot"
	"shadowatlas/internal/validation"
)

// Status is the outcome tag of an update run.
type Status string

const (
	StatusNoChanges Status = "no_changes"
	StatusUnchanged Status = "unchanged"
	StatusCommitted Status = "committed"
)

// Diff enumerates what changed between the parent snapshot and the newly
// committed one, by boundary_id (§4.J step 5).
type Diff struct {
	Added    []string
	Removed  []string
	Modified []string
}

// Result is what IncrementalUpdater.Run returns.
type Result struct {
	Status         Status
	PreviousRoot   [32]byte
	NewRoot        [32]byte
	NewSnapshotID  string
	Diff           Diff
}

// Extractor is the subset of the Extraction Engine's contract the updater
// needs: re-running extraction for exactly the sub-scopes that changed.
type Extractor interface {
	ExtractScope(ctx context.Context, scope boundary.Scope) (boundary.FeatureCollection, error)
}

// ChangeSource adapts a provider to the Change Detector for one sub-scope.
type ChangeSource func(scope boundary.Scope) (changedetect.Source, changedetect.PriorState)

// ReferenceResolver looks up the parent municipal polygon a freshly
// extracted collection should tessellate against, or nil when none applies
// (§4.F stage 6). Wired from atlas.Service via the Extractor Registry.
type ReferenceResolver func(ctx context.Context, fc boundary.FeatureCollection) *boundary.BoundaryRecord

// SecondarySource fetches an independent collection for the same scope from
// a second provider, for the cross-source comparator (§4.F stage 7), or nil
// when no second candidate is registered.
type SecondarySource func(ctx context.Context, fc boundary.FeatureCollection) *boundary.FeatureCollection

// Updater runs the incremental update algorithm.
type Updater struct {
	store           *snapshot.Store
	extractor       Extractor
	pipeline        *validation.Pipeline
	changeSrc       ChangeSource
	referenceLookup ReferenceResolver
	secondarySource SecondarySource
}

// New builds an Updater over the given Snapshot Store, Extraction Engine
// adapter, Validation Pipeline, and per-scope change-source resolver.
// referenceLookup and secondarySource may be nil, in which case stages 6 and
// 7 of the Validation Pipeline are skipped for every collection, matching
// Validate's own nil-means-skip contract.
func New(store *snapshot.Store, extractor Extractor, pipeline *validation.Pipeline, changeSrc ChangeSource, referenceLookup ReferenceResolver, secondarySource SecondarySource) *Updater {
	return &Updater{store: store, extractor: extractor, pipeline: pipeline, changeSrc: changeSrc, referenceLookup: referenceLookup, secondarySource: secondarySource}
}

// ForceRefresh bypasses the Change Detector's no-changes short-circuit.
type Options struct {
	ForceRefresh bool
}

// Run executes the five-step incremental update against parentSnapshotID
// for the sub-scopes in affectedScopes (§4.J).
func (u *Updater) Run(ctx context.Context, parentSnapshotID string, affectedScopes []boundary.Scope, opts Options) (Result, error) {
	parent, ok := u.store.Get(parentSnapshotID)
	if !ok {
		return Result{}, errParentNotFound(parentSnapshotID)
	}

	// Step 1: run the Change Detector over every affected scope.
	var anyChanged bool
	minConfidence := 1.0
	var changedScopes []boundary.Scope
	for _, scope := range affectedScopes {
		src, prior := u.changeSrc(scope)
		result := changedetect.Detect(ctx, src, prior)
		if result.Confidence < minConfidence {
			minConfidence = result.Confidence
		}
		if result.HasChanges {
			anyChanged = true
			changedScopes = append(changedScopes, scope)
		}
	}

	if !anyChanged && minConfidence >= 0.9 && !opts.ForceRefresh {
		return Result{Status: StatusNoChanges, PreviousRoot: parent.Tree.Root, NewRoot: parent.Tree.Root}, nil
	}
	if opts.ForceRefresh {
		changedScopes = affectedScopes
	}

	// Step 2: re-run extraction + validation for affected sub-scopes only.
	fresh := make(map[string]boundary.BoundaryRecord)
	for _, scope := range changedScopes {
		fc, err := u.extractor.ExtractScope(ctx, scope)
		if err != nil {
			return Result{}, err
		}
		var reference *boundary.BoundaryRecord
		if u.referenceLookup != nil {
			reference = u.referenceLookup(ctx, fc)
		}
		var other *boundary.FeatureCollection
		if u.secondarySource != nil {
			other = u.secondarySource(ctx, fc)
		}
		result := u.pipeline.Validate(fc, reference, other)
		if !result.CommitEligible(validation.MinConfidence) {
			return Result{}, result.AsError()
		}
		for _, rec := range fc.Records {
			fresh[rec.BoundaryID] = rec
		}
	}

	// Step 3: merge into the parent record set.
	merged, diff := mergeRecords(parent.Records, fresh, changedScopes)

	// Step 4: commit a new snapshot with parent_snapshot_id = parent, unless
	// the merged set is bytewise identical.
	commit, err := merkle.Commit(merged)
	if err != nil {
		return Result{}, err
	}
	if commit.Root == parent.Tree.Root {
		return Result{Status: StatusUnchanged, PreviousRoot: parent.Tree.Root, NewRoot: parent.Tree.Root}, nil
	}

	newID, err := u.store.Put(snapshot.Snapshot{
		ParentID: parentSnapshotID,
		Records:  merged,
		Tree:     commit.Tree,
	})
	if err != nil {
		return Result{}, err
	}

	// Step 5: emit the diff.
	return Result{
		Status:        StatusCommitted,
		PreviousRoot:  parent.Tree.Root,
		NewRoot:       commit.Root,
		NewSnapshotID: newID,
		Diff:          diff,
	}, nil
}

// mergeRecords replaces records with matching boundary_id, drops records
// whose boundary_id no longer exists upstream within a changed scope, and
// keeps everything else unaffected (§4.J step 3).
func mergeRecords(parentRecords []boundary.BoundaryRecord, fresh map[string]boundary.BoundaryRecord, changedScopes []boundary.Scope) ([]boundary.BoundaryRecord, Diff) {
	var diff Diff
	seenFresh := make(map[string]bool, len(fresh))

	merged := make([]boundary.BoundaryRecord, 0, len(parentRecords)+len(fresh))
	for _, old := range parentRecords {
		if replacement, ok := fresh[old.BoundaryID]; ok {
			merged = append(merged, replacement)
			seenFresh[old.BoundaryID] = true
			if !recordsEqual(old, replacement) {
				diff.Modified = append(diff.Modified, old.BoundaryID)
			}
			continue
		}
		if withinChangedScope(old, changedScopes) {
			// This jurisdiction was re-extracted and no longer reports
			// this boundary_id upstream: drop it.
			diff.Removed = append(diff.Removed, old.BoundaryID)
			continue
		}
		merged = append(merged, old)
	}

	for id, rec := range fresh {
		if !seenFresh[id] {
			merged = append(merged, rec)
			diff.Added = append(diff.Added, id)
		}
	}

	return merged, diff
}

func withinChangedScope(rec boundary.BoundaryRecord, scopes []boundary.Scope) bool {
	for _, s := range scopes {
		if s.Kind == boundary.ScopeLayer && s.Layer == rec.Layer && s.StateFIPS == rec.JurisdictionFIPS {
			return true
		}
		if s.Kind == boundary.ScopeState && s.StateFIPS == rec.JurisdictionFIPS {
			return true
		}
	}
	return false
}

func recordsEqual(a, b boundary.BoundaryRecord) bool {
	digestA, errA := merkle.LeafDigest(a)
	digestB, errB := merkle.LeafDigest(b)
	if errA != nil || errB != nil {
		return false
	}
	return digestA == digestB
}

type errParentNotFoundType string

func (e errParentNotFoundType) Error() string { return "update: parent snapshot " + string(e) + " not found" }

func errParentNotFound(id string) error { return errParentNotFoundType(id) }
