package atlas

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"shadowatlas/internal/boundary"
	"shadowatlas/internal/cache"
	"shadowatlas/internal/canonical"
	"shadowatlas/internal/changedetect"
	"shadowatlas/internal/config"
	"shadowatlas/internal/extraction"
	"shadowatlas/internal/integrity"
	"shadowatlas/internal/job"
	"shadowatlas/internal/merkle"
	"shadowatlas/internal/registry"
	"shadowatlas/internal/snapshot"
	"shadowatlas/internal/telemetry"
	"shadowatlas/internal/update"
	"shadowatlas/internal/validation"
)

// Service is the single programmatic surface wiring the Canonical
// Reference, Integrity Manifest, Extractor Registry, Cache, Extraction
// Engine, Validation Pipeline, Merkle Commit Engine, Snapshot Store, Change
// Detector, Incremental Updater, and Job Registry together (§6).
type Service struct {
	cfg        *config.Config
	logger     *zap.Logger
	reference  *canonical.Reference
	manifest   *integrity.Manifest
	registry   *registry.Registry
	cache      *cache.Cache
	engine     *extraction.Engine
	pipeline   *validation.Pipeline
	snapshots  *snapshot.Store
	jobs       *job.Registry
	changeSrc  update.ChangeSource
}

// New constructs a Service by loading the canonical reference, opening the
// cache and job databases, and wiring every component with cfg's
// thresholds and policies. A non-nil error is always a configuration_error,
// fatal per §7.
func New(cfg *config.Config, reg *registry.Registry, rules map[boundary.Layer]validation.CardinalityRule, changeSrc update.ChangeSource, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, newError(KindConfiguration, "config", "invalid configuration", "fix the reported field and retry", err)
	}

	reference, err := canonical.Load()
	if err != nil {
		return nil, newError(KindConfiguration, "canonical", "embedded reference tables are internally inconsistent", "fix the embedded YAML tables under internal/canonical/data", err)
	}

	manifest := integrity.New(cfg.Integrity.ManifestMode())

	c, err := cache.Open(cfg.Cache.Directory+"/cache.db", cfg.Cache.GracePeriodDuration())
	if err != nil {
		return nil, newError(KindConfiguration, "cache", "cannot open cache database", "check cache.directory permissions", err)
	}

	jobs, err := job.Open(cfg.Storage.JobDBPath)
	if err != nil {
		return nil, newError(KindConfiguration, "job", "cannot open job database", "check storage.job_db_path permissions", err)
	}

	snapshots, err := snapshot.Open(cfg.Storage.SnapshotDBPath)
	if err != nil {
		return nil, newError(KindConfiguration, "snapshot", "cannot open snapshot database", "check storage.snapshot_db_path permissions", err)
	}

	thresholds := validation.Thresholds{
		GeographicBoundsKM:    cfg.Validation.GeographicBoundsKM,
		MaxCountRatio:         cfg.Validation.MaxCountRatio,
		TessellationTolerance: cfg.Validation.TessellationTolerance,
		ExhaustivityMin:       cfg.Validation.ExhaustivityMin,
		MinMatchRate:          cfg.Validation.MinMatchRate,
	}
	pipeline := validation.New(reference, rules, thresholds)

	engine := extraction.New(c, manifest, reg, telemetry.Named(logger, telemetry.ComponentExtraction))

	return &Service{
		cfg:       cfg,
		logger:    telemetry.Named(logger, telemetry.ComponentAtlas),
		reference: reference,
		manifest:  manifest,
		registry:  reg,
		cache:     c,
		engine:    engine,
		pipeline:  pipeline,
		snapshots: snapshots,
		jobs:      jobs,
		changeSrc: changeSrc,
	}, nil
}

// Close releases the cache, job, and snapshot database handles.
func (s *Service) Close() error {
	if err := s.cache.Close(); err != nil {
		return err
	}
	if err := s.snapshots.Close(); err != nil {
		return err
	}
	return s.jobs.Close()
}

// ExtractResult is what Extract hands back to a caller.
type ExtractResult struct {
	JobID      string
	SnapshotID string
	Root       [32]byte
	Summary    extraction.Summary
}

// Extract runs a full extraction-validation-commitment pass over scope for
// the given layers: plan tasks, run the Extraction Engine, validate each
// resulting collection, and commit a new root snapshot from every
// commit-eligible collection (§2, §4.E-§4.G).
func (s *Service) Extract(ctx context.Context, scope boundary.Scope, layers []boundary.Layer, opts extraction.Options) (ExtractResult, error) {
	tasks, err := extraction.Plan(s.registry, scope, layers)
	if err != nil {
		return ExtractResult{}, newError(KindConfiguration, "plan", "failed to plan extraction tasks", "", err)
	}

	planJSON := fmt.Sprintf("%d tasks for scope %s", len(tasks), scope.Fingerprint())
	jobID := fmt.Sprintf("job-%s-%d", scope.Fingerprint(), time.Now().UnixNano())
	if err := s.jobs.Create(jobID, planJSON); err != nil {
		return ExtractResult{}, newError(KindConfiguration, "job", "failed to create job record", "", err)
	}
	if err := s.jobs.Transition(jobID, job.StateRunning); err != nil {
		return ExtractResult{}, newError(KindConfiguration, "job", "failed to start job", "", err)
	}

	var records []boundary.BoundaryRecord
	var rejected []string
	collect := func(fc boundary.FeatureCollection) {
		result := s.pipeline.Validate(fc, s.resolveReferencePolygon(ctx, fc), s.resolveSecondarySource(ctx, fc))
		if !result.CommitEligible(s.cfg.Validation.MinConfidence) {
			rejected = append(rejected, fmt.Sprintf("%s: %v", fc.Layer, result.Issues))
			return
		}
		records = append(records, fc.Records...)
	}

	progress := func(completed, total int, taskID string) {
		s.jobs.RecordTaskOutcome(jobID, job.TaskStatus{TaskID: taskID, Completed: true}, extraction.Summary{})
	}

	summary, err := s.engine.Extract(ctx, tasks, opts, collect, progress)
	if err != nil {
		s.jobs.Transition(jobID, job.StateExtractionFailed)
		return ExtractResult{JobID: jobID, Summary: summary}, newError(KindUpstreamUnavailable, "extract", "extraction aborted", "retry with continue_on_error, or address the reported task failures", err)
	}

	if len(records) == 0 {
		s.jobs.Transition(jobID, job.StateValidationFailed)
		return ExtractResult{JobID: jobID, Summary: summary}, newError(KindValidationRejected, "validate", "no collection was commit-eligible", fmt.Sprintf("rejected collections: %v", rejected), nil)
	}

	commit, err := merkle.Commit(records)
	if err != nil {
		s.jobs.Transition(jobID, job.StateExtractionFailed)
		return ExtractResult{JobID: jobID, Summary: summary}, newError(KindGeometryInvalid, "commit", "failed to build merkle tree", "", err)
	}

	snapshotID, err := s.snapshots.Put(snapshot.Snapshot{Records: records, Tree: commit.Tree})
	if err != nil {
		return ExtractResult{JobID: jobID, Summary: summary}, newError(KindCommitConflict, "commit", "failed to store snapshot", "", err)
	}

	if len(summary.Failed) > 0 {
		s.jobs.Transition(jobID, job.StatePartial)
	} else {
		s.jobs.Transition(jobID, job.StateCommitted)
	}

	return ExtractResult{JobID: jobID, SnapshotID: snapshotID, Root: commit.Root, Summary: summary}, nil
}

// IncrementalUpdate runs the five-step Incremental Updater algorithm
// against parentSnapshotID (§4.J).
func (s *Service) IncrementalUpdate(ctx context.Context, parentSnapshotID string, affectedScopes []boundary.Scope, opts update.Options) (update.Result, error) {
	u := update.New(s.snapshots, extractorAdapter{s}, s.pipeline, s.changeSrc, s.resolveReferencePolygon, s.resolveSecondarySource)
	result, err := u.Run(ctx, parentSnapshotID, affectedScopes, opts)
	if err != nil {
		return update.Result{}, newError(KindValidationRejected, "update", "incremental update failed", "", err)
	}
	return result, nil
}

// DetectChanges runs the Change Detector for a single scope against its
// prior recorded state (§4.I).
func (s *Service) DetectChanges(ctx context.Context, scope boundary.Scope, prior changedetect.PriorState) changedetect.Result {
	src, _ := s.changeSrc(scope)
	return changedetect.Detect(ctx, src, prior)
}

// ResumeExtraction re-plans and re-runs only the outstanding tasks of a
// partial job (§4.K).
func (s *Service) ResumeExtraction(ctx context.Context, jobID string, allTasks []extraction.Task, opts extraction.Options) (ExtractResult, error) {
	rec, err := s.jobs.Get(jobID)
	if err != nil {
		return ExtractResult{}, newError(KindNotFound, "resume", "job not found", "", err)
	}
	if !job.CanTransition(rec.State, job.StateRunning) {
		return ExtractResult{}, newError(KindConfiguration, "resume", fmt.Sprintf("job %s is in state %s and cannot resume", jobID, rec.State), "only a partial job may resume", nil)
	}

	allIDs := make([]string, len(allTasks))
	byID := make(map[string]extraction.Task, len(allTasks))
	for i, t := range allTasks {
		allIDs[i] = t.ID
		byID[t.ID] = t
	}
	outstanding := job.OutstandingTaskIDs(allIDs, rec.Tasks)

	var tasks []extraction.Task
	for _, id := range outstanding {
		tasks = append(tasks, byID[id])
	}

	if err := s.jobs.Transition(jobID, job.StateRunning); err != nil {
		return ExtractResult{}, newError(KindConfiguration, "resume", "failed to resume job", "", err)
	}

	var records []boundary.BoundaryRecord
	collect := func(fc boundary.FeatureCollection) {
		result := s.pipeline.Validate(fc, s.resolveReferencePolygon(ctx, fc), s.resolveSecondarySource(ctx, fc))
		if result.CommitEligible(s.cfg.Validation.MinConfidence) {
			records = append(records, fc.Records...)
		}
	}
	progress := func(completed, total int, taskID string) {
		s.jobs.RecordTaskOutcome(jobID, job.TaskStatus{TaskID: taskID, Completed: true}, extraction.Summary{})
	}

	summary, err := s.engine.Extract(ctx, tasks, opts, collect, progress)
	if err != nil {
		s.jobs.Transition(jobID, job.StateExtractionFailed)
		return ExtractResult{JobID: jobID, Summary: summary}, newError(KindUpstreamUnavailable, "resume", "resumed extraction aborted", "", err)
	}

	if len(summary.Failed) > 0 {
		s.jobs.Transition(jobID, job.StatePartial)
	} else {
		s.jobs.Transition(jobID, job.StateCommitted)
	}
	return ExtractResult{JobID: jobID, Summary: summary}, nil
}

// HealthStatus is the aggregate health report across every registered
// provider.
type HealthStatus struct {
	Providers map[string]registry.HealthStatus
}

// HealthCheck runs HealthCheck against every provider in the registry that
// supports layer.
func (s *Service) HealthCheck(ctx context.Context, layer boundary.Layer) HealthStatus {
	out := HealthStatus{Providers: make(map[string]registry.HealthStatus)}
	for _, p := range s.registry.Candidates(layer) {
		status, err := p.HealthCheck(ctx)
		if err != nil {
			status = registry.HealthStatus{Available: false, Issues: []string{err.Error()}}
		}
		out.Providers[p.ID()] = status
	}
	return out
}

// GenerateProof returns the Merkle inclusion proof for boundaryID within
// snapshotID (§4.G).
func (s *Service) GenerateProof(snapshotID, boundaryID string) (*merkle.Proof, error) {
	snap, ok := s.snapshots.Get(snapshotID)
	if !ok {
		return nil, newError(KindNotFound, "proof", fmt.Sprintf("snapshot %s not found", snapshotID), "", nil)
	}
	proof, err := snap.Tree.Prove(boundaryID)
	if err != nil {
		return nil, newError(KindNotFound, "proof", fmt.Sprintf("boundary %s not in snapshot %s", boundaryID, snapshotID), "", err)
	}
	return proof, nil
}

// VerifyProof checks proof against its own recorded root, the operation a
// downstream consumer runs without trusting the Snapshot Store at all
// (§4.G).
func (s *Service) VerifyProof(proof *merkle.Proof) bool {
	return proof.Verify()
}

// resolveReferencePolygon looks up the parent municipality a council
// district collection should tessellate against (§4.F stage 6), by
// extracting the state's place layer from the Extractor Registry and
// matching on the shared jurisdiction FIPS code. It returns nil for any
// other layer, or when no place provider or matching municipality exists,
// in which case the tessellation-proof stage is skipped.
func (s *Service) resolveReferencePolygon(ctx context.Context, fc boundary.FeatureCollection) *boundary.BoundaryRecord {
	if fc.Layer != boundary.LayerCouncilDistrict || len(fc.Records) == 0 {
		return nil
	}
	provider, ok := s.registry.Select(boundary.LayerPlace, fc.Scope.StateFIPS)
	if !ok {
		return nil
	}
	places, err := provider.Extract(ctx, boundary.NewLayerScope(boundary.LayerPlace, fc.Scope.StateFIPS))
	if err != nil {
		return nil
	}
	jurisdictionFIPS := fc.Records[0].JurisdictionFIPS
	for _, rec := range places.Records {
		if rec.BoundaryID == jurisdictionFIPS {
			municipality := rec
			return &municipality
		}
	}
	return nil
}

// resolveSecondarySource fetches an independent collection for fc's scope
// from the next-best candidate in the Extractor Registry (§4.F stage 7).
// Candidates is already ranked by Select's tie-break order, so the second
// entry is the best available independent source; it returns nil when
// fewer than two providers cover the layer.
func (s *Service) resolveSecondarySource(ctx context.Context, fc boundary.FeatureCollection) *boundary.FeatureCollection {
	candidates := s.registry.Candidates(fc.Layer)
	if len(candidates) < 2 {
		return nil
	}
	other, err := candidates[1].Extract(ctx, fc.Scope)
	if err != nil {
		return nil
	}
	return &other
}

// extractorAdapter satisfies update.Extractor by planning and running a
// single-scope extraction through the Extraction Engine, the same path
// Extract uses for a full run.
type extractorAdapter struct {
	s *Service
}

func (a extractorAdapter) ExtractScope(ctx context.Context, scope boundary.Scope) (boundary.FeatureCollection, error) {
	var layer boundary.Layer
	if scope.Kind == boundary.ScopeLayer {
		layer = scope.Layer
	}
	tasks, err := extraction.Plan(a.s.registry, scope, []boundary.Layer{layer})
	if err != nil {
		return boundary.FeatureCollection{}, err
	}

	var merged boundary.FeatureCollection
	collect := func(fc boundary.FeatureCollection) {
		merged.Layer = fc.Layer
		merged.Scope = fc.Scope
		merged.Records = append(merged.Records, fc.Records...)
	}
	_, err = a.s.engine.Extract(ctx, tasks, extraction.DefaultOptions(), collect, nil)
	if err != nil {
		return boundary.FeatureCollection{}, err
	}
	return merged, nil
}
