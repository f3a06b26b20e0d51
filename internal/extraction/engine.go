package extraction

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"shadowatlas/internal/boundary"
	"shadowatlas/internal/cache"
	"shadowatlas/internal/integrity"
	"shadowatlas/internal/registry"
)

// RetryPolicy controls the exponential-backoff retry of a single task
// (§4.E step 5: "base_delay * 2^attempt, up to retry.attempts").
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
}

// Options configures one Extract invocation (§4.E contract).
type Options struct {
	Concurrency     int
	ContinueOnError bool
	TimeoutPerTask  time.Duration
	Retry           RetryPolicy
}

// DefaultOptions mirrors the spec's stated defaults (§5: "concurrency,
// default 5").
func DefaultOptions() Options {
	return Options{
		Concurrency:     5,
		ContinueOnError: true,
		TimeoutPerTask:  30 * time.Second,
		Retry:           RetryPolicy{Attempts: 3, BaseDelay: 500 * time.Millisecond},
	}
}

// TaskFailure records why a task did not produce a FeatureCollection.
type TaskFailure struct {
	TaskID    string
	Err       error `json:"-"`
	Message   string
	Retryable bool
}

// Summary is the Extraction Engine's final report (§4.E: "ExtractionSummary
// { total_boundaries, successful, failed[] }").
type Summary struct {
	TotalBoundaries int
	Successful      int
	Failed          []TaskFailure
}

// ProgressFunc is invoked after each task terminates (§4.E step 6).
type ProgressFunc func(completed, total int, taskID string)

// errNonRetryable aborts the engine immediately when ContinueOnError is
// false, regardless of which task raised it.
var errNonRetryable = errors.New("extraction: non-retryable task failure")

// Engine runs the Extraction Engine algorithm against a Cache and an
// Integrity Manifest, feeding provider outcomes back into the Extractor
// Registry's reliability tracking.
type Engine struct {
	cache    *cache.Cache
	manifest *integrity.Manifest
	registry *registry.Registry
	logger   *zap.Logger
}

// New builds an Engine. reg may be nil, in which case failure-rate tracking
// is skipped (e.g. in unit tests that exercise the engine in isolation).
func New(c *cache.Cache, manifest *integrity.Manifest, reg *registry.Registry, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cache: c, manifest: manifest, registry: reg, logger: logger}
}

// Extract runs tasks through the dispatch/cache/verify/parse/retry
// pipeline, emitting each successful FeatureCollection to collect and
// returning the final Summary (§4.E). collect and progress are called one at
// a time, never concurrently, so callers need no locking of their own.
func (e *Engine) Extract(ctx context.Context, tasks []Task, opts Options, collect func(boundary.FeatureCollection), progress ProgressFunc) (Summary, error) {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	sem := semaphore.NewWeighted(int64(concurrency))

	var (
		mu       sync.Mutex
		handoffMu sync.Mutex // serializes collect and progress calls
		summary  Summary
		completed int
	)

	group, groupCtx := errgroup.WithContext(ctx)

	for _, task := range tasks {
		task := task
		if err := sem.Acquire(groupCtx, 1); err != nil {
			break
		}
		group.Go(func() error {
			defer sem.Release(1)

			taskCtx := groupCtx
			var cancel context.CancelFunc
			if opts.TimeoutPerTask > 0 {
				taskCtx, cancel = context.WithTimeout(groupCtx, opts.TimeoutPerTask)
				defer cancel()
			}

			fc, failure := e.runTask(taskCtx, task, opts.Retry)
			if e.registry != nil {
				e.registry.RecordOutcome(task.Provider.ID(), failure == nil)
			}

			mu.Lock()
			completed++
			if failure != nil {
				summary.Failed = append(summary.Failed, *failure)
			} else {
				summary.Successful++
				summary.TotalBoundaries += len(fc.Records)
			}
			n := completed
			mu.Unlock()

			handoffMu.Lock()
			if progress != nil {
				progress(n, len(tasks), task.ID)
			}
			if failure == nil {
				collect(fc)
			}
			handoffMu.Unlock()
			if failure == nil {
				return nil
			}

			e.logger.Warn("task failed",
				zap.String("task_id", task.ID),
				zap.Bool("retryable", failure.Retryable),
				zap.Error(failure.Err),
			)
			if !opts.ContinueOnError && !failure.Retryable {
				return errNonRetryable
			}
			return nil
		})
	}

	err := group.Wait()
	if err != nil && !errors.Is(err, errNonRetryable) {
		return summary, err
	}
	if err != nil && !opts.ContinueOnError {
		return summary, fmt.Errorf("extraction: aborted: %w", err)
	}
	return summary, nil
}

// runTask executes one task's cache-check, fetch, integrity verification,
// and retry-with-backoff sequence (§4.E steps 2-5).
func (e *Engine) runTask(ctx context.Context, task Task, retry RetryPolicy) (boundary.FeatureCollection, *TaskFailure) {
	key := cache.Key{
		ProviderID:       task.Provider.ID(),
		ScopeFingerprint: task.Scope.Fingerprint(),
		Vintage:          fmt.Sprintf("%d", time.Now().Year()),
	}
	if e.cache != nil {
		if entry, ok, err := e.cache.Get(key); err == nil && ok && !e.cache.IsStale(entry, vintageReleaseDate(key.Vintage)) {
			entry.Collection.Provenance.CacheHit = true
			return entry.Collection, nil
		}
	}

	var fc boundary.FeatureCollection
	operation := func() error {
		var err error
		fc, err = task.Provider.Extract(ctx, task.Scope)
		if err != nil {
			if !isRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		if warning, verifyErr := e.verifyIntegrity(task, fc); verifyErr != nil {
			return backoff.Permanent(&IntegrityFailureError{Reason: verifyErr.Error()})
		} else if warning != "" {
			e.logger.Warn("integrity manifest warning", zap.String("task_id", task.ID), zap.String("warning", warning))
		}
		return nil
	}

	bo := backoff.WithMaxRetries(
		&backoff.ExponentialBackOff{
			InitialInterval:     retry.BaseDelay,
			Multiplier:          2,
			RandomizationFactor: 0,
			MaxInterval:         retry.BaseDelay * (1 << retry.Attempts),
			MaxElapsedTime:      0,
			Clock:               backoff.SystemClock,
		},
		uint64(retry.Attempts),
	)

	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		retryable := isRetryable(err)
		return boundary.FeatureCollection{}, &TaskFailure{
			TaskID:    task.ID,
			Err:       err,
			Message:   err.Error(),
			Retryable: retryable,
		}
	}

	if e.cache != nil {
		e.cache.Put(key, cache.Entry{Collection: fc, FetchedAt: time.Now()})
	}
	return fc, nil
}

// verifyIntegrity checks a freshly fetched collection's response checksum
// against the Integrity Manifest (§4.E step 3). A collection with no
// provenance checksum (test doubles, or adapters that don't stamp one) skips
// verification rather than being rejected, since the manifest has nothing to
// compare against. The file key is not yet registered on first sight, the
// entry is auto-pinned unpinned so Verify's warn/strict-reject policy for
// unpinned files applies, rather than the harder "unknown file" error.
func (e *Engine) verifyIntegrity(task Task, fc boundary.FeatureCollection) (warning string, err error) {
	if e.manifest == nil || len(fc.Records) == 0 {
		return "", nil
	}
	checksum := fc.Records[0].Provenance.ResponseChecksum
	if checksum == "" {
		return "", nil
	}
	vintage := fmt.Sprintf("%d", time.Now().Year())
	fileKey := task.Provider.ID() + ":" + task.ID
	if _, ok := e.manifest.Lookup(vintage, fileKey); !ok {
		e.manifest.Pin(vintage, fileKey, integrity.Entry{})
	}
	return e.manifest.Verify(vintage, fileKey, checksum)
}

// vintageReleaseDate approximates an upstream file's release date as
// January 1 of its vintage year, the only freshness signal the cache key
// itself carries, for the grace-period staleness check (§4.D).
func vintageReleaseDate(vintage string) time.Time {
	year, err := strconv.Atoi(vintage)
	if err != nil {
		return time.Time{}
	}
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
}

// isRetryable classifies an extraction error per §4.E step 5: network
// errors, 5xx, and timeouts are retryable; HTTP 4xx (except 408/429),
// integrity failures, and schema rejection are not.
func isRetryable(err error) bool {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if statusErr.Code == http.StatusRequestTimeout || statusErr.Code == http.StatusTooManyRequests {
			return true
		}
		if statusErr.Code >= 400 && statusErr.Code < 500 {
			return false
		}
		return statusErr.Code >= 500
	}
	var integrityErr *IntegrityFailureError
	if errors.As(err, &integrityErr) {
		return false
	}
	var schemaErr *SchemaRejectionError
	if errors.As(err, &schemaErr) {
		return false
	}
	return true
}

// HTTPStatusError wraps a provider's non-2xx HTTP response.
type HTTPStatusError struct {
	Code int
}

func (e *HTTPStatusError) Error() string { return fmt.Sprintf("http status %d", e.Code) }

// IntegrityFailureError marks a non-retryable checksum mismatch (§4.E step 3).
type IntegrityFailureError struct {
	Reason string
}

func (e *IntegrityFailureError) Error() string { return "integrity_failure: " + e.Reason }

// SchemaRejectionError marks a non-retryable parse/normalize failure.
type SchemaRejectionError struct {
	Reason string
}

func (e *SchemaRejectionError) Error() string { return "schema_rejection: " + e.Reason }
